package notify

import (
	"context"
	"sync"
	"testing"
	"time"
)

type shownRecord struct {
	title string
	opts  Options
}

type fakeSink struct {
	mu       sync.Mutex
	shown    []shownRecord
	closed   []string
	onAction func(tag, actionID string)
}

func (s *fakeSink) ID() string                     { return "fake" }
func (s *fakeSink) Start(context.Context) error    { return nil }
func (s *fakeSink) Stop(context.Context) error     { return nil }
func (s *fakeSink) OnAction(fn func(string, string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAction = fn
}

func (s *fakeSink) Show(_ context.Context, title string, opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown, shownRecord{title: title, opts: opts})
	return nil
}

func (s *fakeSink) Close(_ context.Context, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, tag)
	return nil
}

func (s *fakeSink) shownCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shown)
}

func (s *fakeSink) lastShown() (shownRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.shown) == 0 {
		return shownRecord{}, false
	}
	return s.shown[len(s.shown)-1], true
}

func (s *fakeSink) press(tag, action string) {
	s.mu.Lock()
	fn := s.onAction
	s.mu.Unlock()
	if fn != nil {
		fn(tag, action)
	}
}

func startAgent(t *testing.T) (*Agent, *fakeSink) {
	t.Helper()
	sink := &fakeSink{}
	agent := NewAgent(sink)
	ctx, cancel := context.WithCancel(context.Background())
	agent.Start(ctx)
	t.Cleanup(func() {
		agent.Stop(context.Background())
		cancel()
	})
	return agent, sink
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestAgent_SchedulePastDropped(t *testing.T) {
	agent, sink := startAgent(t)

	agent.Schedule("r1", "title", Options{}, time.Now().Add(-time.Second))

	if agent.Pending("r1") {
		t.Error("past-instant schedule must not create a registry entry")
	}
	if agent.PendingCount() != 0 {
		t.Errorf("registry count = %d, want 0", agent.PendingCount())
	}
	if sink.shownCount() != 0 {
		t.Error("nothing should have been displayed")
	}
}

func TestAgent_ScheduleAndFire(t *testing.T) {
	agent, sink := startAgent(t)

	agent.Schedule("r1", "Time for: Physics", Options{Body: "8am - 10am"}, time.Now().Add(20*time.Millisecond))

	if !agent.Pending("r1") {
		t.Fatal("entry should be pending before the timer elapses")
	}

	if !waitFor(t, time.Second, func() bool { return sink.shownCount() == 1 }) {
		t.Fatal("timer did not fire")
	}

	if agent.Pending("r1") {
		t.Error("fired entry must leave the registry")
	}

	rec, _ := sink.lastShown()
	if rec.title != "Time for: Physics" {
		t.Errorf("shown title = %q", rec.title)
	}
	if rec.opts.Tag != "r1" {
		t.Errorf("tag = %q, want reminder id", rec.opts.Tag)
	}
	if len(rec.opts.Actions) == 0 {
		t.Error("fired notification should carry action buttons")
	}
}

func TestAgent_CancelIdempotent(t *testing.T) {
	agent, sink := startAgent(t)

	agent.Schedule("r1", "t", Options{}, time.Now().Add(time.Hour))
	if !agent.Pending("r1") {
		t.Fatal("expected pending entry")
	}

	agent.Cancel("r1")
	if !waitFor(t, time.Second, func() bool { return !agent.Pending("r1") }) {
		t.Fatal("cancel did not remove the entry")
	}

	// Second cancel and cancel of an unknown id are both harmless.
	agent.Cancel("r1")
	agent.Cancel("never-existed")

	time.Sleep(20 * time.Millisecond)
	if sink.shownCount() != 0 {
		t.Error("canceled timer must never fire")
	}
}

func TestAgent_RescheduleLastMessageWins(t *testing.T) {
	agent, _ := startAgent(t)

	first := time.Now().Add(time.Hour)
	second := time.Now().Add(2 * time.Hour)
	agent.Schedule("r1", "t", Options{}, first)
	agent.Schedule("r1", "t", Options{}, second)

	if agent.PendingCount() != 1 {
		t.Fatalf("count = %d, want 1", agent.PendingCount())
	}
	at, ok := agent.PendingFireAt("r1")
	if !ok || !at.Equal(second) {
		t.Errorf("fire instant = %v, want %v", at, second)
	}
}

func TestAgent_SnoozeReArmsFiveMinutesFromAction(t *testing.T) {
	agent, sink := startAgent(t)

	agent.Schedule("r1", "Time for: Maths", Options{Body: "b"}, time.Now().Add(10*time.Millisecond))
	if !waitFor(t, time.Second, func() bool { return sink.shownCount() == 1 }) {
		t.Fatal("timer did not fire")
	}

	pressed := time.Now()
	sink.press("r1", ActionSnooze)

	if !waitFor(t, time.Second, func() bool { return agent.Pending("r1") }) {
		t.Fatal("snooze did not re-arm the reminder")
	}

	at, _ := agent.PendingFireAt("r1")
	lo := pressed.Add(SnoozeDelay - 2*time.Second)
	hi := pressed.Add(SnoozeDelay + 2*time.Second)
	if at.Before(lo) || at.After(hi) {
		t.Errorf("snoozed fire instant %v not ~5m after the action %v", at, pressed)
	}
}

func TestAgent_DismissClosesWithoutReArm(t *testing.T) {
	agent, sink := startAgent(t)

	agent.Schedule("r1", "t", Options{}, time.Now().Add(10*time.Millisecond))
	if !waitFor(t, time.Second, func() bool { return sink.shownCount() == 1 }) {
		t.Fatal("timer did not fire")
	}

	sink.press("r1", ActionDismiss)

	waitFor(t, 200*time.Millisecond, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.closed) == 1
	})

	sink.mu.Lock()
	closed := append([]string(nil), sink.closed...)
	sink.mu.Unlock()
	if len(closed) != 1 || closed[0] != "r1" {
		t.Errorf("closed = %v, want [r1]", closed)
	}
	if agent.Pending("r1") {
		t.Error("dismiss must not re-arm")
	}
}

func TestAgent_ShowImmediate(t *testing.T) {
	agent, sink := startAgent(t)

	agent.Show("hello", Options{Body: "now"})

	if !waitFor(t, time.Second, func() bool { return sink.shownCount() == 1 }) {
		t.Fatal("immediate show did not reach the sink")
	}
}
