package runner

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/courierhq/courier/packages/collection"
	"github.com/courierhq/courier/packages/engine"
)

type Mode string

const (
	Sequential Mode = "sequential"
	Parallel   Mode = "parallel"
)

// Config is the run configuration for one collection run.
type Config struct {
	Mode                 Mode
	DelayBetweenRequests time.Duration
	StopOnError          bool
	Iterations           int
}

func (c *Config) normalize() error {
	if c.Mode == "" {
		c.Mode = Sequential
	}
	if c.Mode != Sequential && c.Mode != Parallel {
		return fmt.Errorf("unknown run mode %q", c.Mode)
	}
	if c.DelayBetweenRequests < 0 {
		return fmt.Errorf("delay between requests must not be negative")
	}
	if c.Iterations < 1 {
		c.Iterations = 1
	}
	return nil
}

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result is the per-request record for the current iteration. It is
// reset to pending at the start of every iteration.
type Result struct {
	RequestID string
	Name      string
	Status    Status
	Response  *engine.ApiResponse
	Err       string
	Duration  time.Duration
}

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateAborted State = "aborted"
)

type EventType string

const (
	EventStateChanged     EventType = "state"
	EventIterationStarted EventType = "iteration"
	EventResultUpdated    EventType = "result"
)

// Event is pushed to subscribers on every observable change.
type Event struct {
	Type      EventType
	State     State
	Iteration int
	Index     int
	Result    Result
}

// Executor runs a single request. *engine.Engine satisfies it.
type Executor interface {
	Execute(req *collection.Request, collectionVars, envVars []collection.Variable, inherited collection.Auth) *engine.ApiResponse
}

// VarSource supplies the live environment variables; reads happen fresh
// per request since scripts may have written new values.
type VarSource interface {
	Variables() []collection.Variable
}

type Runner struct {
	exec      Executor
	col       *collection.Collection
	envSource VarSource

	mu          sync.Mutex
	state       State
	entries     []collection.FlatEntry
	results     []Result
	iteration   int
	totals      counts
	startTime   time.Time
	endTime     time.Time
	latencies   *latencyTracker
	abortCh     chan struct{}
	abortClosed bool
	done        chan struct{}

	aborted atomic.Bool
	gate    *gate

	emitMu    sync.Mutex
	listeners []func(Event)
}

type counts struct {
	success int
	failed  int
	skipped int
}

func New(exec Executor, col *collection.Collection, envSource VarSource) *Runner {
	return &Runner{
		exec:      exec,
		col:       col,
		envSource: envSource,
		state:     StateIdle,
		gate:      newGate(),
	}
}

// Subscribe registers a listener for run events. Listeners are invoked
// serially; slow listeners delay progress reporting, not execution.
func (r *Runner) Subscribe(fn func(Event)) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Runner) emit(ev Event) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	for _, fn := range r.listeners {
		fn(ev)
	}
}

// Start begins a run in the background. It fails if a run is already in
// progress.
func (r *Runner) Start(cfg Config) error {
	if err := cfg.normalize(); err != nil {
		return err
	}

	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return fmt.Errorf("a run is already in progress")
	}
	r.entries = collection.Flatten(r.col)
	if len(r.entries) == 0 {
		r.mu.Unlock()
		return fmt.Errorf("collection %q has no requests", r.col.Name)
	}
	r.results = make([]Result, len(r.entries))
	for i, entry := range r.entries {
		r.results[i] = Result{RequestID: entry.Request.ID, Name: entry.Request.Name, Status: StatusPending}
	}
	r.state = StateRunning
	r.iteration = 0
	r.totals = counts{}
	r.latencies = newLatencyTracker()
	r.abortCh = make(chan struct{})
	r.abortClosed = false
	r.aborted.Store(false)
	r.gate = newGate()
	r.done = make(chan struct{})
	r.startTime = time.Now()
	r.mu.Unlock()

	r.emit(Event{Type: EventStateChanged, State: StateRunning})
	go r.run(cfg)
	return nil
}

// Pause prevents further requests from starting in sequential mode. The
// in-flight request still completes. No effect on a parallel iteration
// already in flight.
func (r *Runner) Pause() {
	r.mu.Lock()
	changed := r.state == StateRunning
	if changed {
		r.state = StatePaused
		r.gate.pause()
	}
	r.mu.Unlock()
	if changed {
		r.emit(Event{Type: EventStateChanged, State: StatePaused})
	}
}

// Resume releases a paused run.
func (r *Runner) Resume() {
	r.mu.Lock()
	changed := r.state == StatePaused
	if changed {
		r.state = StateRunning
		r.gate.resume()
	}
	r.mu.Unlock()
	if changed {
		r.emit(Event{Type: EventStateChanged, State: StateRunning})
	}
}

// Stop aborts the run. One-way: sequential mode stops launching new
// requests at its next check point; in-flight executions are not
// cancelled, and completed results are kept.
func (r *Runner) Stop() {
	r.mu.Lock()
	changed := r.state == StateRunning || r.state == StatePaused
	if changed {
		r.state = StateAborted
		r.aborted.Store(true)
		if !r.abortClosed {
			close(r.abortCh)
			r.abortClosed = true
		}
		r.gate.resume()
	}
	r.mu.Unlock()
	if changed {
		r.emit(Event{Type: EventStateChanged, State: StateAborted})
	}
}

// Wait blocks until the current run finishes. It returns immediately if
// no run was started.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) CurrentIteration() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.iteration
}

// Results returns a snapshot of the current iteration's result list.
func (r *Runner) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Result, len(r.results))
	copy(out, r.results)
	return out
}

func (r *Runner) run(cfg Config) {
	for iter := 1; iter <= cfg.Iterations; iter++ {
		if r.aborted.Load() {
			break
		}
		r.beginIteration(iter)

		if cfg.Mode == Parallel {
			r.runParallel()
		} else {
			r.runSequential(cfg)
		}

		if r.aborted.Load() {
			break
		}
		if iter < cfg.Iterations && cfg.DelayBetweenRequests > 0 {
			r.sleep(cfg.DelayBetweenRequests)
		}
	}

	r.mu.Lock()
	r.endTime = time.Now()
	r.state = StateIdle
	done := r.done
	r.mu.Unlock()

	r.emit(Event{Type: EventStateChanged, State: StateIdle})
	close(done)
}

// beginIteration resets every result to pending. Results are never
// carried across iterations.
func (r *Runner) beginIteration(iter int) {
	r.mu.Lock()
	r.iteration = iter
	for i := range r.results {
		r.results[i].Status = StatusPending
		r.results[i].Response = nil
		r.results[i].Err = ""
		r.results[i].Duration = 0
	}
	r.mu.Unlock()
	r.emit(Event{Type: EventIterationStarted, Iteration: iter})
}

func (r *Runner) runSequential(cfg Config) {
	for i := range r.entries {
		if r.aborted.Load() {
			return
		}
		r.gate.wait(r.abortCh)
		if r.aborted.Load() {
			return
		}

		r.setStatus(i, StatusRunning)
		res := r.executeOne(i)
		r.record(i, res)

		if res.Status == StatusFailed && cfg.StopOnError {
			r.skipRemaining(i + 1)
			return
		}
		if cfg.DelayBetweenRequests > 0 && i < len(r.entries)-1 {
			r.sleep(cfg.DelayBetweenRequests)
		}
	}
}

// runParallel launches every request at once. StopOnError and pause are
// not observed here: everything is already in flight. The iteration is
// finished only when every execution has settled.
func (r *Runner) runParallel() {
	for i := range r.entries {
		r.setStatus(i, StatusRunning)
	}

	var wg sync.WaitGroup
	for i := range r.entries {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			res := r.executeOne(idx)
			r.record(idx, res)
		}(i)
	}
	wg.Wait()
}

// executeOne runs a single entry. Anything thrown by the execution is
// caught here and treated as a failed result, so one bad request cannot
// take down the iteration.
func (r *Runner) executeOne(i int) (result Result) {
	entry := r.entries[i]
	result = Result{RequestID: entry.Request.ID, Name: entry.Request.Name}

	defer func() {
		if p := recover(); p != nil {
			result.Status = StatusFailed
			result.Err = fmt.Sprintf("request execution panicked: %v", p)
		}
	}()

	inherited := collection.InheritedAuth(r.col, entry.Folder)
	envVars := r.envSource.Variables()

	resp := r.exec.Execute(entry.Request, r.col.Variables, envVars, inherited)
	result.Response = resp
	result.Duration = resp.Time

	if resp.IsSuccess() {
		result.Status = StatusSuccess
	} else {
		result.Status = StatusFailed
		result.Err = failureText(resp)
	}
	return result
}

func failureText(resp *engine.ApiResponse) string {
	if resp.PreScriptError != "" {
		return "pre-script error: " + resp.PreScriptError
	}
	if resp.ErrorCode != "" {
		return resp.StatusText
	}
	return fmt.Sprintf("HTTP %d", resp.Status)
}

// setStatus transitions one slot and announces it.
func (r *Runner) setStatus(i int, status Status) {
	r.mu.Lock()
	r.results[i].Status = status
	ev := Event{Type: EventResultUpdated, Index: i, Iteration: r.iteration, Result: r.results[i]}
	r.mu.Unlock()
	r.emit(ev)
}

// record writes a terminal result into its own slot. In parallel mode
// many completions run concurrently; each touches only its index.
func (r *Runner) record(i int, res Result) {
	r.mu.Lock()
	r.results[i] = res
	switch res.Status {
	case StatusSuccess:
		r.totals.success++
	case StatusFailed:
		r.totals.failed++
	}
	if res.Duration > 0 {
		r.latencies.record(res.Duration)
	}
	ev := Event{Type: EventResultUpdated, Index: i, Iteration: r.iteration, Result: res}
	r.mu.Unlock()
	r.emit(ev)
}

// skipRemaining marks every not-yet-run request in this iteration as
// skipped after a stop-on-error failure.
func (r *Runner) skipRemaining(from int) {
	var events []Event
	r.mu.Lock()
	for i := from; i < len(r.results); i++ {
		if r.results[i].Status != StatusPending {
			continue
		}
		r.results[i].Status = StatusSkipped
		r.totals.skipped++
		events = append(events, Event{Type: EventResultUpdated, Index: i, Iteration: r.iteration, Result: r.results[i]})
	}
	r.mu.Unlock()
	for _, ev := range events {
		r.emit(ev)
	}
}

// sleep waits out the configured delay but returns early on abort.
func (r *Runner) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-r.abortCh:
	}
}
