package runner

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Summary aggregates a whole run: terminal-status counts across all
// iterations plus latency percentiles over every completed execution.
type Summary struct {
	Requests   int
	Iterations int
	Success    int
	Failed     int
	Skipped    int
	Duration   time.Duration
	P50        time.Duration
	P95        time.Duration
	P99        time.Duration
}

// latencyTracker records execution durations. Histogram values are kept
// in microseconds, range 1us to 60s with 3 significant digits.
type latencyTracker struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

func newLatencyTracker() *latencyTracker {
	return &latencyTracker{
		hist: hdrhistogram.New(1, 60_000_000, 3),
	}
}

func (t *latencyTracker) record(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.hist.RecordValue(d.Microseconds())
}

func (t *latencyTracker) quantile(q float64) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.hist.ValueAtQuantile(q)) * time.Microsecond
}

// Summary returns the aggregate view of the current or most recent run.
func (r *Runner) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{
		Requests:   len(r.entries),
		Iterations: r.iteration,
		Success:    r.totals.success,
		Failed:     r.totals.failed,
		Skipped:    r.totals.skipped,
	}
	if !r.startTime.IsZero() {
		if r.endTime.IsZero() {
			s.Duration = time.Since(r.startTime)
		} else {
			s.Duration = r.endTime.Sub(r.startTime)
		}
	}
	if r.latencies != nil {
		s.P50 = r.latencies.quantile(50)
		s.P95 = r.latencies.quantile(95)
		s.P99 = r.latencies.quantile(99)
	}
	return s
}
