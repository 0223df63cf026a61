// Package runner replays an entire collection under a run
// configuration. It flattens the request tree into a stable order,
// drives executions sequentially or in parallel across iterations, and
// owns the pause/resume/abort lifecycle. Results live in a fixed slice
// where each execution writes only its own slot.
package runner
