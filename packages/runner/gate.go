package runner

import "sync"

// gate blocks the sequential loop while the run is paused. The channel
// is closed while the gate is open; pausing swaps in a fresh channel
// that resume later closes, so waiters block without polling.
type gate struct {
	mu sync.Mutex
	ch chan struct{}
}

func newGate() *gate {
	ch := make(chan struct{})
	close(ch)
	return &gate{ch: ch}
}

func (g *gate) pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.ch:
		g.ch = make(chan struct{})
	default:
		// already paused
	}
}

func (g *gate) resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.ch:
	default:
		close(g.ch)
	}
}

// wait blocks until the gate is open or the run is aborted.
func (g *gate) wait(abort <-chan struct{}) {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()

	select {
	case <-ch:
	case <-abort:
	}
}
