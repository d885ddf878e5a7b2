package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/routineflow/routineflow/internal/pkg/logs"
	"github.com/routineflow/routineflow/internal/pkg/metrics"
)

// SnoozeDelay is how far ahead a snoozed reminder is re-armed, measured from
// the snooze action itself, not from the original fire instant.
const SnoozeDelay = 5 * time.Minute

const snoozeTitlePrefix = "⏰ Snoozed: "

// Sink displays notifications to the user and reports back their
// interactions. Implementations live in the sink subpackage.
type Sink interface {
	ID() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// Show displays a notification. opts.Tag identifies it for Close and
	// for interaction callbacks.
	Show(ctx context.Context, title string, opts Options) error

	// Close removes a displayed notification by tag. Unknown tags are a
	// no-op.
	Close(ctx context.Context, tag string) error

	// OnAction registers the callback invoked when the user presses an
	// action button (or the notification body) on a displayed notification.
	OnAction(fn func(tag, actionID string))
}

// pendingTimer is one registry entry: a live platform timer plus the payload
// to display when it elapses.
type pendingTimer struct {
	title  string
	opts   Options
	fireAt time.Time
	timer  *time.Timer
}

// shownPayload keeps a fired notification's payload reachable until the user
// interacts with it, so snooze can re-arm with the original content.
type shownPayload struct {
	title string
	opts  Options
}

// Agent owns the registry of pending reminder timers. It outlives any single
// HTTP request and is the only writer of its registry: every operation
// arrives as a one-way message on the mailbox and is handled by a single
// loop goroutine, including timer expiry.
//
// The registry is volatile. It starts empty and is never persisted; a durable
// variant would store (id, fireAt, payload) and re-arm future entries on
// startup, which is an explicit non-goal here.
type Agent struct {
	sink    Sink
	mailbox chan agentMsg

	// loop-owned state, never touched outside the loop goroutine
	pending   map[string]*pendingTimer
	displayed map[string]shownPayload

	now func() time.Time

	runCtx    context.Context
	runCancel context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewAgent(sink Sink) *Agent {
	return &Agent{
		sink:      sink,
		mailbox:   make(chan agentMsg, 64),
		pending:   make(map[string]*pendingTimer),
		displayed: make(map[string]shownPayload),
		now:       time.Now,
	}
}

// Start launches the message loop and wires sink interactions back into it.
func (a *Agent) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		a.runCtx, a.runCancel = context.WithCancel(ctx)
		a.done = make(chan struct{})
		if a.sink != nil {
			a.sink.OnAction(a.dispatchAction)
		}
		go a.loop()
		logs.CtxInfo(ctx, "[notify] agent started")
	})
}

// Stop cancels the loop and waits for it to drain, or for ctx to expire.
func (a *Agent) Stop(ctx context.Context) {
	a.stopOnce.Do(func() {
		if a.runCancel != nil {
			a.runCancel()
		}
		if a.done != nil {
			select {
			case <-a.done:
			case <-ctx.Done():
				logs.CtxWarn(ctx, "[notify] agent stop timed out")
			}
		}
	})
}

// Show displays an immediate notification. Fire-and-forget.
func (a *Agent) Show(title string, opts Options) {
	a.post(showMsg{title: title, opts: opts})
}

// Schedule registers a timer for id firing at fireAt. Requests for a past
// instant are dropped by the loop. Fire-and-forget.
func (a *Agent) Schedule(id, title string, opts Options, fireAt time.Time) {
	a.post(scheduleMsg{id: id, title: title, opts: opts, fireAt: fireAt})
}

// Cancel stops the pending timer for id. Unknown or already-terminal ids are
// a harmless no-op. Fire-and-forget.
func (a *Agent) Cancel(id string) {
	a.post(cancelMsg{id: id})
}

// Pending reports whether id currently has a live timer.
func (a *Agent) Pending(id string) bool {
	r, ok := a.inspect(id)
	return ok && r.pending
}

// PendingFireAt returns the fire instant of a pending id.
func (a *Agent) PendingFireAt(id string) (time.Time, bool) {
	r, ok := a.inspect(id)
	if !ok || !r.pending {
		return time.Time{}, false
	}
	return r.fireAt, true
}

// PendingCount returns the number of registered timers.
func (a *Agent) PendingCount() int {
	r, ok := a.inspect("")
	if !ok {
		return 0
	}
	return r.count
}

func (a *Agent) post(m agentMsg) {
	if a.runCtx == nil {
		return // not started
	}
	select {
	case a.mailbox <- m:
	case <-a.runCtx.Done():
	}
}

func (a *Agent) inspect(id string) (inspectReply, bool) {
	if a.runCtx == nil {
		return inspectReply{}, false
	}
	reply := make(chan inspectReply, 1)
	select {
	case a.mailbox <- inspectMsg{id: id, reply: reply}:
	case <-a.runCtx.Done():
		return inspectReply{}, false
	}
	select {
	case r := <-reply:
		return r, true
	case <-a.runCtx.Done():
		return inspectReply{}, false
	}
}

func (a *Agent) dispatchAction(tag, actionID string) {
	a.post(actionMsg{id: tag, action: actionID})
}

func (a *Agent) loop() {
	defer close(a.done)

	for {
		select {
		case <-a.runCtx.Done():
			for id, e := range a.pending {
				e.timer.Stop()
				delete(a.pending, id)
			}
			return
		case m := <-a.mailbox:
			a.handle(m)
		}
	}
}

func (a *Agent) handle(m agentMsg) {
	switch msg := m.(type) {
	case showMsg:
		a.show(msg.title, msg.opts)
	case scheduleMsg:
		a.schedule(msg.id, msg.title, msg.opts, msg.fireAt)
	case cancelMsg:
		a.cancel(msg.id)
	case firedMsg:
		a.fired(msg.id)
	case actionMsg:
		a.interact(msg.id, msg.action)
	case inspectMsg:
		e, pending := a.pending[msg.id]
		r := inspectReply{pending: pending, count: len(a.pending)}
		if pending {
			r.fireAt = e.fireAt
		}
		msg.reply <- r
	}
}

func (a *Agent) show(title string, opts Options) {
	if a.sink == nil {
		return
	}
	if err := a.sink.Show(a.runCtx, title, opts); err != nil {
		logs.CtxWarn(a.runCtx, "[notify] show %q failed: %v", title, err)
	}
}

func (a *Agent) schedule(id, title string, opts Options, fireAt time.Time) {
	now := a.now()
	if !fireAt.After(now) {
		// A user editing a routine to a time already passed should not get
		// a reminder; dropping silently is policy, not an error.
		metrics.RemindersDroppedPast.Inc()
		logs.CtxDebug(a.runCtx, "[notify] dropped past-instant schedule for %s (%v)", id, fireAt)
		return
	}

	// Last message wins when an id is re-scheduled while still pending.
	if old, exists := a.pending[id]; exists {
		old.timer.Stop()
	}

	entry := &pendingTimer{title: title, opts: opts, fireAt: fireAt}
	entry.timer = time.AfterFunc(fireAt.Sub(now), func() {
		a.post(firedMsg{id: id})
	})
	a.pending[id] = entry

	metrics.RemindersScheduled.Inc()
	logs.CtxDebug(a.runCtx, "[notify] scheduled %s for %v", id, fireAt)
}

func (a *Agent) cancel(id string) {
	e, ok := a.pending[id]
	if !ok {
		return
	}
	e.timer.Stop()
	delete(a.pending, id)
	metrics.RemindersCanceled.Inc()
	logs.CtxDebug(a.runCtx, "[notify] canceled %s", id)
}

func (a *Agent) fired(id string) {
	e, ok := a.pending[id]
	if !ok {
		return // canceled between timer expiry and message delivery
	}
	delete(a.pending, id)

	opts := e.opts
	opts.Tag = id
	if len(opts.Actions) == 0 {
		opts.Actions = ReminderActions()
	}

	a.displayed[id] = shownPayload{title: e.title, opts: opts}
	a.show(e.title, opts)
	metrics.RemindersFired.Inc()
	logs.CtxInfo(a.runCtx, "[notify] fired %s: %s", id, e.title)
}

func (a *Agent) interact(id, action string) {
	p, ok := a.displayed[id]
	if !ok {
		return // payload already gone, nothing to act on
	}
	delete(a.displayed, id)

	if a.sink != nil {
		if err := a.sink.Close(a.runCtx, id); err != nil {
			logs.CtxWarn(a.runCtx, "[notify] close %s failed: %v", id, err)
		}
	}

	switch action {
	case ActionSnooze:
		title := p.title
		if !strings.HasPrefix(title, snoozeTitlePrefix) {
			title = snoozeTitlePrefix + title
		}
		a.schedule(id, title, p.opts, a.now().Add(SnoozeDelay))
		metrics.RemindersSnoozed.Inc()
		logs.CtxInfo(a.runCtx, "[notify] snoozed %s", id)
	case ActionDismiss, ActionOpen:
		// Dismiss ends here; open is rendered by the sink as a link to the
		// application, so the agent only clears the payload.
	default:
		logs.CtxWarn(a.runCtx, "[notify] unknown action %q on %s", action, id)
	}
}
