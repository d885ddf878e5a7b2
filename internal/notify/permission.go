package notify

import (
	"context"
	"sync"
)

// State is the notification permission state.
type State string

const (
	StateDefault State = "default"
	StateGranted State = "granted"
	StateDenied  State = "denied"
)

// Gatekeeper tracks the user's notification permission decision. A prompt
// suspends the caller until the user decides through the permission endpoint;
// once decided, prompts resolve immediately without re-asking.
//
// When the platform has no notification sink at all, the gatekeeper is
// constructed unsupported and reports denied forever.
type Gatekeeper struct {
	mu        sync.Mutex
	state     State
	supported bool
	waiters   []chan bool
}

func NewGatekeeper(supported bool) *Gatekeeper {
	state := StateDefault
	if !supported {
		state = StateDenied
	}
	return &Gatekeeper{state: state, supported: supported}
}

func (g *Gatekeeper) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gatekeeper) Granted() bool {
	return g.State() == StateGranted
}

// Prompt returns the existing decision immediately when one was made, and
// otherwise blocks until Decide is called. The gatekeeper imposes no timeout
// of its own; ctx cancellation is honored so an abandoned caller does not
// leak.
func (g *Gatekeeper) Prompt(ctx context.Context) (bool, error) {
	g.mu.Lock()
	if g.state != StateDefault {
		granted := g.state == StateGranted
		g.mu.Unlock()
		return granted, nil
	}

	ch := make(chan bool, 1)
	g.waiters = append(g.waiters, ch)
	g.mu.Unlock()

	select {
	case granted := <-ch:
		return granted, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Decide records the user's answer and releases every pending prompt.
// No-op on an unsupported gatekeeper.
func (g *Gatekeeper) Decide(granted bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.supported {
		return
	}

	if granted {
		g.state = StateGranted
	} else {
		g.state = StateDenied
	}

	for _, ch := range g.waiters {
		ch <- granted
	}
	g.waiters = nil
}
