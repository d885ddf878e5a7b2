package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Gateway is the foreground-facing notification API. It checks permission,
// allocates reminder identifiers and forwards work to the agent; the agent
// owns all timing.
type Gateway struct {
	agent *Agent
	gate  *Gatekeeper
	now   func() time.Time
}

func NewGateway(agent *Agent, gate *Gatekeeper) *Gateway {
	return &Gateway{agent: agent, gate: gate, now: time.Now}
}

// PermissionState returns the current permission decision.
func (g *Gateway) PermissionState() State {
	return g.gate.State()
}

// RequestPermission resolves immediately when a decision exists and otherwise
// suspends until the user answers the prompt.
func (g *Gateway) RequestPermission(ctx context.Context) (bool, error) {
	return g.gate.Prompt(ctx)
}

// ShowNow fires an immediate notification if and only if permission is
// granted; otherwise it is a silent no-op.
func (g *Gateway) ShowNow(title string, opts Options) {
	if !g.gate.Granted() {
		return
	}
	g.agent.Show(title, opts)
}

// ScheduleAt arranges a reminder at the given instant and returns its fresh
// identifier. Returns ok=false, scheduling nothing, when permission is not
// granted or the instant is not strictly in the future.
func (g *Gateway) ScheduleAt(title string, at time.Time, opts Options) (string, bool) {
	if !g.gate.Granted() {
		return "", false
	}
	if !at.After(g.now()) {
		return "", false
	}

	id := uuid.New().String()
	g.agent.Schedule(id, title, opts, at)
	return id, true
}

// Cancel revokes a pending reminder. Idempotent: stale, fired or unknown
// identifiers are a harmless no-op.
func (g *Gateway) Cancel(id string) {
	if id == "" {
		return
	}
	g.agent.Cancel(id)
}
