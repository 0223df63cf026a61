package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/courierhq/courier/packages/engine"
	"github.com/courierhq/courier/packages/history"
	"github.com/courierhq/courier/packages/runner"
)

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// FormatResponse prints a single executed request.
func (f *ConsoleFormatter) FormatResponse(name string, resp *engine.ApiResponse) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	statusLine := fmt.Sprintf("%d %s", resp.Status, resp.StatusText)
	if resp.Status == 0 {
		statusLine = resp.StatusText
	}
	symbol := green("✓")
	paint := green
	if !resp.IsSuccess() {
		symbol = red("✗")
		paint = red
	}

	fmt.Fprintf(f.writer, "\n%s %s %s %s\n", symbol, bold(name), paint(statusLine),
		cyan(fmt.Sprintf("(%dms, %d bytes)", resp.Time.Milliseconds(), resp.Size)))

	if f.verbose && len(resp.Headers) > 0 {
		keys := make([]string, 0, len(resp.Headers))
		for k := range resp.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(f.writer, "\n")
		for _, k := range keys {
			fmt.Fprintf(f.writer, "  %s %s\n", dim(k+":"), resp.Headers[k])
		}
	}

	if resp.PreScriptOutput != "" {
		f.printScriptBlock("pre-script", resp.PreScriptOutput, dim)
	}
	if resp.ScriptOutput != "" {
		f.printScriptBlock("script", resp.ScriptOutput, dim)
	}
	if resp.ScriptError != "" {
		fmt.Fprintf(f.writer, "\n  %s %s\n", red("script error:"), resp.ScriptError)
	}

	if resp.Body != "" {
		fmt.Fprintf(f.writer, "\n%s\n", indentBody(prettyBody(resp.Body)))
	}
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) printScriptBlock(label, out string, dim func(...any) string) {
	fmt.Fprintf(f.writer, "\n  %s\n", dim(label+":"))
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		fmt.Fprintf(f.writer, "    %s\n", line)
	}
}

// prettyBody re-indents JSON bodies; anything else passes through as-is.
func prettyBody(body string) string {
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return body
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return body
	}
	return string(pretty)
}

func indentBody(body string) string {
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}

// FormatRunHeader prints the banner before a collection run.
func (f *ConsoleFormatter) FormatRunHeader(name string, requests, iterations int) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "\n%s\n", bold("Running: "+name))
	if iterations > 1 {
		fmt.Fprintf(f.writer, "%d requests x %d iterations\n", requests, iterations)
	}
	fmt.Fprintf(f.writer, "\n")
}

// FormatRunResult prints one finished request during a collection run.
func (f *ConsoleFormatter) FormatRunResult(r runner.Result) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	switch r.Status {
	case runner.StatusSkipped:
		fmt.Fprintf(f.writer, "  %s %s\n", yellow("-"), r.Name)
	case runner.StatusSuccess:
		fmt.Fprintf(f.writer, "  %s %s %s\n", green("✓"), r.Name,
			cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))
		if f.verbose && r.Response != nil && r.Response.ScriptOutput != "" {
			f.printScriptBlock("script", r.Response.ScriptOutput, color.New(color.Faint).SprintFunc())
		}
	case runner.StatusFailed:
		fmt.Fprintf(f.writer, "  %s %s %s\n", red("✗"), r.Name, red("("+r.Err+")"))
		if r.Response != nil && r.Response.ScriptError != "" {
			fmt.Fprintf(f.writer, "    %s %s\n", red("script error:"), r.Response.ScriptError)
		}
	}
}

// FormatIteration prints the iteration separator for multi-iteration runs.
func (f *ConsoleFormatter) FormatIteration(n, total int) {
	if total <= 1 {
		return
	}
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s\n", bold(fmt.Sprintf("Iteration %d/%d", n, total)))
}

// FormatSummary prints the run totals and latency percentiles.
func (f *ConsoleFormatter) FormatSummary(s runner.Summary) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Requests: ")
	if s.Success > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", s.Success)))
	}
	if s.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", s.Failed)))
	}
	if s.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", s.Skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", s.Success+s.Failed+s.Skipped)
	fmt.Fprintf(f.writer, "Time:     %dms\n", s.Duration.Milliseconds())
	if s.Success+s.Failed > 0 {
		fmt.Fprintf(f.writer, "Latency:  p50=%s p95=%s p99=%s\n",
			formatLatency(s.P50), formatLatency(s.P95), formatLatency(s.P99))
	}
	fmt.Fprintf(f.writer, "\n")
}

func formatLatency(d time.Duration) string {
	if d >= time.Millisecond {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%dµs", d.Microseconds())
}

// FormatHistory prints recent history entries, newest first.
func (f *ConsoleFormatter) FormatHistory(entries []history.Entry) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	if len(entries) == 0 {
		fmt.Fprintf(f.writer, "No history yet.\n")
		return
	}
	for _, e := range entries {
		status := fmt.Sprintf("%d", e.Status)
		paint := green
		if e.Status == 0 || e.Status >= 400 {
			paint = red
			if e.Status == 0 {
				status = e.StatusText
			}
		}
		fmt.Fprintf(f.writer, "%s  %-7s %s %s %s\n",
			dim(e.Timestamp.Local().Format("2006-01-02 15:04:05")),
			e.Method, e.URL, paint(status),
			dim(fmt.Sprintf("(%dms)", e.DurationMs)))
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("courier"), version)
}
