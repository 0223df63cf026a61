package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/courierhq/courier/packages/collection"
	"github.com/courierhq/courier/packages/engine"
	"github.com/courierhq/courier/packages/httpclient"
	"github.com/courierhq/courier/packages/output"
	"github.com/courierhq/courier/packages/runner"
	"github.com/courierhq/courier/packages/store"
)

var runCmd = &cobra.Command{
	Use:   "run <collection.yaml>",
	Short: "Run every request in a collection",
	Long: `Run a collection top to bottom. Requests execute in document order
unless --parallel launches them all at once.

Examples:
  courier run api.yaml
  courier run api.yaml --env staging.yaml
  courier run api.yaml --iterations 5 --delay 200ms
  courier run api.yaml --parallel
  courier run api.yaml --stop-on-error`,
	Args: cobra.ExactArgs(1),
	RunE: runCommand,
}

var (
	runEnvFlag         string
	runParallelFlag    bool
	runIterationsFlag  int
	runDelayFlag       string
	runStopOnErrorFlag bool
	runTimeoutFlag     string
	runInsecureFlag    bool
	runProxyFlag       string
	runRateFlag        float64
	runNoColorFlag     bool
	runVerboseFlag     bool
	runWatchEnvFlag    bool
)

func init() {
	runCmd.Flags().StringVarP(&runEnvFlag, "env", "e", getEnvString("COURIER_ENV", ""), "Environment file to use (env: COURIER_ENV)")
	runCmd.Flags().BoolVarP(&runParallelFlag, "parallel", "p", getEnvBool("COURIER_PARALLEL", false), "Launch all requests at once (env: COURIER_PARALLEL)")
	runCmd.Flags().IntVarP(&runIterationsFlag, "iterations", "n", getEnvInt("COURIER_ITERATIONS", 1), "Number of times to run the collection (env: COURIER_ITERATIONS)")
	runCmd.Flags().StringVar(&runDelayFlag, "delay", getEnvString("COURIER_DELAY", "0s"), "Delay between requests (e.g., 200ms, 1s) (env: COURIER_DELAY)")
	runCmd.Flags().BoolVar(&runStopOnErrorFlag, "stop-on-error", getEnvBool("COURIER_STOP_ON_ERROR", false), "Skip remaining requests after a failure (env: COURIER_STOP_ON_ERROR)")
	runCmd.Flags().StringVar(&runTimeoutFlag, "timeout", getEnvString("COURIER_TIMEOUT", "30s"), "Request timeout (e.g., 30s, 1m) (env: COURIER_TIMEOUT)")
	runCmd.Flags().BoolVarP(&runInsecureFlag, "insecure", "k", getEnvBool("COURIER_INSECURE", false), "Disable SSL certificate validation (env: COURIER_INSECURE)")
	runCmd.Flags().StringVar(&runProxyFlag, "proxy", getEnvString("COURIER_PROXY", ""), "Proxy URL for HTTP requests (env: COURIER_PROXY)")
	runCmd.Flags().Float64Var(&runRateFlag, "rate", 0, "Limit outgoing requests per second (0 = unlimited)")
	runCmd.Flags().BoolVar(&runNoColorFlag, "no-color", getEnvBool("COURIER_NO_COLOR", false), "Disable colored output (env: COURIER_NO_COLOR)")
	runCmd.Flags().BoolVarP(&runVerboseFlag, "verbose", "v", false, "Show script output per request")
	runCmd.Flags().BoolVarP(&runWatchEnvFlag, "watch-env", "w", false, "Reload the environment file when it changes on disk")
}

func runCommand(cmd *cobra.Command, args []string) error {
	formatter := output.NewConsoleFormatter(
		output.WithVerbose(runVerboseFlag),
		output.WithNoColor(runNoColorFlag),
	)

	col, err := store.LoadCollection(args[0])
	if err != nil {
		formatter.FormatError(err)
		return err
	}

	envStore, err := loadEnvironment(runEnvFlag)
	if err != nil {
		formatter.FormatError(err)
		return err
	}
	if runWatchEnvFlag {
		if runEnvFlag == "" {
			return fmt.Errorf("--watch-env requires --env")
		}
		if err := envStore.Watch(func() {
			fmt.Fprintf(os.Stderr, "environment reloaded: %s\n", runEnvFlag)
		}); err != nil {
			return err
		}
		defer envStore.Close()
	}

	timeout, err := time.ParseDuration(runTimeoutFlag)
	if err != nil {
		return fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", runTimeoutFlag, err)
	}
	delay, err := time.ParseDuration(runDelayFlag)
	if err != nil {
		return fmt.Errorf("invalid delay value %q: %w (use format like 200ms, 1s)", runDelayFlag, err)
	}

	clientOpts := []httpclient.ClientOption{
		httpclient.WithTimeout(timeout),
		httpclient.WithValidateSSL(!runInsecureFlag),
	}
	if runProxyFlag != "" {
		clientOpts = append(clientOpts, httpclient.WithProxy(runProxyFlag))
	}
	if runRateFlag > 0 {
		clientOpts = append(clientOpts, httpclient.WithRateLimit(runRateFlag))
	}
	client := httpclient.NewClient(clientOpts...)

	eng := engine.New(client, envStore,
		engine.WithTimeout(timeout),
		engine.WithWarnFunc(func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
		}),
	)

	mode := runner.Sequential
	if runParallelFlag {
		mode = runner.Parallel
	}
	cfg := runner.Config{
		Mode:                 mode,
		DelayBetweenRequests: delay,
		StopOnError:          runStopOnErrorFlag,
		Iterations:           runIterationsFlag,
	}

	r := runner.New(eng, col, envStore)
	r.Subscribe(func(ev runner.Event) {
		switch ev.Type {
		case runner.EventIterationStarted:
			formatter.FormatIteration(ev.Iteration, runIterationsFlag)
		case runner.EventResultUpdated:
			if ev.Result.Status != runner.StatusRunning && ev.Result.Status != runner.StatusPending {
				formatter.FormatRunResult(ev.Result)
			}
		}
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			fmt.Fprintln(os.Stderr, "\nReceived interrupt, stopping after the current request...")
			r.Stop()
		}
	}()

	formatter.FormatRunHeader(col.Name, len(collectionRequests(col)), runIterationsFlag)

	if err := r.Start(cfg); err != nil {
		formatter.FormatError(err)
		return err
	}
	r.Wait()

	summary := r.Summary()
	formatter.FormatSummary(summary)

	if summary.Failed > 0 {
		os.Exit(1)
	}
	return nil
}

func collectionRequests(col *collection.Collection) []collection.FlatEntry {
	return collection.Flatten(col)
}
