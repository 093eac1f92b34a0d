package lifecycle

import "sync"

// GateState is a copy of a gate's two flags.
type GateState struct {
	Open         bool `json:"open"`
	ContentReady bool `json:"content_ready"`
}

// Gate is the shared "interstitial" indicator. The interceptor only opens it
// and marks it ready; closing is up to whoever displays it.
type Gate struct {
	mu    sync.Mutex
	state GateState
}

func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = GateState{}
}

// reopen resets the gate and opens it in one step so readers never observe a
// half-reset state.
func (g *Gate) reopen() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = GateState{}
	g.state.Open = true
}

func (g *Gate) markReady() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = GateState{Open: true, ContentReady: true}
}
