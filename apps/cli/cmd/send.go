package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/courierhq/courier/packages/collection"
	"github.com/courierhq/courier/packages/engine"
	"github.com/courierhq/courier/packages/history"
	"github.com/courierhq/courier/packages/httpclient"
	"github.com/courierhq/courier/packages/output"
	"github.com/courierhq/courier/packages/store"
	"github.com/courierhq/courier/packages/vars"
)

var sendCmd = &cobra.Command{
	Use:   "send <collection.yaml> <request>",
	Short: "Send a single request from a collection",
	Long: `Send one request from a collection file, identified by name or id.

Examples:
  courier send api.yaml "Create User"
  courier send api.yaml createUser --env staging.yaml
  courier send api.yaml login -k --timeout 10s`,
	Args: cobra.ExactArgs(2),
	RunE: sendCommand,
}

var (
	sendEnvFlag       string
	sendTimeoutFlag   string
	sendInsecureFlag  bool
	sendProxyFlag     string
	sendNoColorFlag   bool
	sendVerboseFlag   bool
	sendNoHistoryFlag bool
	sendDBFlag        string
)

func init() {
	sendCmd.Flags().StringVarP(&sendEnvFlag, "env", "e", getEnvString("COURIER_ENV", ""), "Environment file to use (env: COURIER_ENV)")
	sendCmd.Flags().StringVar(&sendTimeoutFlag, "timeout", getEnvString("COURIER_TIMEOUT", "30s"), "Request timeout (e.g., 30s, 1m) (env: COURIER_TIMEOUT)")
	sendCmd.Flags().BoolVarP(&sendInsecureFlag, "insecure", "k", getEnvBool("COURIER_INSECURE", false), "Disable SSL certificate validation (env: COURIER_INSECURE)")
	sendCmd.Flags().StringVar(&sendProxyFlag, "proxy", getEnvString("COURIER_PROXY", ""), "Proxy URL for HTTP requests (env: COURIER_PROXY)")
	sendCmd.Flags().BoolVar(&sendNoColorFlag, "no-color", getEnvBool("COURIER_NO_COLOR", false), "Disable colored output (env: COURIER_NO_COLOR)")
	sendCmd.Flags().BoolVarP(&sendVerboseFlag, "verbose", "v", false, "Show response headers and script output")
	sendCmd.Flags().BoolVar(&sendNoHistoryFlag, "no-history", false, "Skip recording this request to history")
	sendCmd.Flags().StringVar(&sendDBFlag, "db", getEnvString("COURIER_HISTORY_DB", ""), "History database path (env: COURIER_HISTORY_DB)")
}

// defaultHistoryPath is where history lands unless --db overrides it.
func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "courier-history.db"
	}
	return filepath.Join(home, ".courier", "history.db")
}

func loadEnvironment(path string) (*store.EnvironmentStore, error) {
	if path == "" {
		return store.NewEnvironmentStore(store.Environment{}), nil
	}
	return store.LoadEnvironment(path)
}

func sendCommand(cmd *cobra.Command, args []string) error {
	formatter := output.NewConsoleFormatter(
		output.WithVerbose(sendVerboseFlag),
		output.WithNoColor(sendNoColorFlag),
	)

	col, err := store.LoadCollection(args[0])
	if err != nil {
		formatter.FormatError(err)
		return err
	}

	req, owner := col.FindRequest(args[1])
	if req == nil {
		err := fmt.Errorf("request %q not found in %s", args[1], col.Name)
		formatter.FormatError(err)
		return err
	}

	envStore, err := loadEnvironment(sendEnvFlag)
	if err != nil {
		formatter.FormatError(err)
		return err
	}

	timeout, err := time.ParseDuration(sendTimeoutFlag)
	if err != nil {
		return fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", sendTimeoutFlag, err)
	}

	clientOpts := []httpclient.ClientOption{
		httpclient.WithTimeout(timeout),
		httpclient.WithValidateSSL(!sendInsecureFlag),
	}
	if sendProxyFlag != "" {
		clientOpts = append(clientOpts, httpclient.WithProxy(sendProxyFlag))
	}
	client := httpclient.NewClient(clientOpts...)

	eng := engine.New(client, envStore,
		engine.WithTimeout(timeout),
		engine.WithWarnFunc(func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
		}),
	)

	inherited := collection.InheritedAuth(col, owner)
	resp := eng.Execute(req, col.Variables, envStore.Variables(), inherited)

	formatter.FormatResponse(req.Name, resp)

	if !sendNoHistoryFlag {
		if err := recordHistory(sendDBFlag, col, req, envStore, resp); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to record history: %v\n", err)
		}
	}

	if !resp.IsSuccess() {
		os.Exit(1)
	}
	return nil
}

// recordHistory resolves the request with the history scope (secrets
// stay literal) and appends it to the history database.
func recordHistory(dbPath string, col *collection.Collection, req *collection.Request, envStore *store.EnvironmentStore, resp *engine.ApiResponse) error {
	if dbPath == "" {
		dbPath = defaultHistoryPath()
	}
	db, err := history.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	scope := vars.NewHistoryScope(col.Variables, envStore.Variables())
	resolved := vars.ResolveRequest(req, scope)
	return db.Record(col.Name, resolved, resp)
}
