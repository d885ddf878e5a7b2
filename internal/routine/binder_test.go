package routine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/routineflow/routineflow/internal/notify"
)

// nullSink satisfies notify.Sink without delivering anywhere.
type nullSink struct {
	mu    sync.Mutex
	shown []string
}

func (s *nullSink) ID() string                  { return "null" }
func (s *nullSink) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
func (s *nullSink) Stop(context.Context) error { return nil }
func (s *nullSink) Show(_ context.Context, title string, _ notify.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown, title)
	return nil
}
func (s *nullSink) Close(context.Context, string) error  { return nil }
func (s *nullSink) OnAction(func(tag, actionID string)) {}

func newTestBinder(t *testing.T, granted bool) (*Binder, *notify.Agent) {
	t.Helper()

	agent := notify.NewAgent(&nullSink{})
	agent.Start(context.Background())
	t.Cleanup(func() { agent.Stop(context.Background()) })

	gate := notify.NewGatekeeper(true)
	gate.Decide(granted)

	store := NewStore(filepath.Join(t.TempDir(), "routines.json"))
	return NewBinder(store, notify.NewGateway(agent, gate), "/icon.png"), agent
}

func settle(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func futureClock(t *testing.T) string {
	t.Helper()
	return time.Now().Add(2 * time.Minute).Format("15:04")
}

func TestBinder_CreateArmsReminder(t *testing.T) {
	ctx := context.Background()
	b, agent := newTestBinder(t, true)

	r, err := b.Create(ctx, Input{
		Attempt:   AttemptFirst,
		StartTime: futureClock(t),
		Work:      "morning run",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.ReminderID == "" {
		t.Fatal("expected a reminder id on a future, uncompleted routine")
	}
	if !settle(t, func() bool { return agent.Pending(r.ReminderID) }) {
		t.Error("reminder not registered with the agent")
	}
	if r.ReminderAt.IsZero() {
		t.Error("expected the armed instant to be recorded")
	}
}

func TestBinder_CreateRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBinder(t, true)

	cases := []struct {
		name string
		in   Input
	}{
		{"bad attempt", Input{Attempt: "Fourth", TimeSlot: "9am", Work: "x"}},
		{"empty work", Input{Attempt: AttemptFirst, TimeSlot: "9am", Work: "  "}},
		{"no time", Input{Attempt: AttemptFirst, Work: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := b.Create(ctx, tc.in); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
	if b.store.Len() != 0 {
		t.Error("rejected input must not be persisted")
	}
}

func TestBinder_CreateWithoutPermission(t *testing.T) {
	ctx := context.Background()
	b, agent := newTestBinder(t, false)

	r, err := b.Create(ctx, Input{
		Attempt:   AttemptFirst,
		StartTime: futureClock(t),
		Work:      "morning run",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.ReminderID != "" {
		t.Error("no reminder id expected when permission is denied")
	}
	time.Sleep(20 * time.Millisecond)
	if agent.PendingCount() != 0 {
		t.Error("no agent entry expected when permission is denied")
	}
}

func TestBinder_UpdateReplacesReminder(t *testing.T) {
	ctx := context.Background()
	b, agent := newTestBinder(t, true)

	r, err := b.Create(ctx, Input{Attempt: AttemptFirst, StartTime: futureClock(t), Work: "reading"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	oldID := r.ReminderID

	updated, err := b.Update(ctx, r.ID, Input{
		Attempt:   AttemptSecond,
		StartTime: futureClock(t),
		Work:      "deep reading",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ReminderID == "" || updated.ReminderID == oldID {
		t.Errorf("expected a fresh reminder id, got %q (old %q)", updated.ReminderID, oldID)
	}
	if !settle(t, func() bool { return !agent.Pending(oldID) && agent.Pending(updated.ReminderID) }) {
		t.Error("old reminder should be canceled and the new one pending")
	}
	if updated.Work != "deep reading" || updated.Attempt != AttemptSecond {
		t.Errorf("fields not applied: %+v", updated)
	}
}

func TestBinder_RejectedUpdateKeepsReminder(t *testing.T) {
	ctx := context.Background()
	b, agent := newTestBinder(t, true)

	r, err := b.Create(ctx, Input{Attempt: AttemptFirst, StartTime: futureClock(t), Work: "reading"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !settle(t, func() bool { return agent.Pending(r.ReminderID) }) {
		t.Fatal("reminder not registered with the agent")
	}

	if _, err := b.Update(ctx, r.ID, Input{
		Attempt:   "Fourth",
		StartTime: futureClock(t),
		Work:      "reading",
	}); err == nil {
		t.Fatal("expected a validation error")
	}

	kept, err := b.Get(r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if kept.ReminderID != r.ReminderID {
		t.Errorf("ReminderID = %q, want the original %q", kept.ReminderID, r.ReminderID)
	}
	if !agent.Pending(r.ReminderID) {
		t.Error("original reminder must stay pending after a rejected update")
	}
	if kept.Work != "reading" || kept.Attempt != AttemptFirst {
		t.Errorf("record mutated by a rejected update: %+v", kept)
	}
}

func TestBinder_DeleteCancelsReminder(t *testing.T) {
	ctx := context.Background()
	b, agent := newTestBinder(t, true)

	r, err := b.Create(ctx, Input{Attempt: AttemptFirst, StartTime: futureClock(t), Work: "reading"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := b.Delete(ctx, r.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !settle(t, func() bool { return agent.PendingCount() == 0 }) {
		t.Error("delete must cancel the pending reminder")
	}
	if _, err := b.Get(r.ID); err == nil {
		t.Error("deleted routine still retrievable")
	}
}

// Full lifecycle: create with a future time, complete, then un-complete after
// the armed instant has passed. The routine must not pick up a new reminder.
func TestBinder_ToggleLifecycle(t *testing.T) {
	ctx := context.Background()
	b, agent := newTestBinder(t, true)

	r, err := b.Create(ctx, Input{Attempt: AttemptFirst, StartTime: futureClock(t), Work: "reading"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.ReminderID == "" {
		t.Fatal("expected a reminder id after create")
	}
	if !settle(t, func() bool { return agent.Pending(r.ReminderID) }) {
		t.Fatal("reminder not registered with the agent")
	}

	done, err := b.ToggleComplete(ctx, r.ID)
	if err != nil {
		t.Fatalf("ToggleComplete: %v", err)
	}
	if !done.Completed || done.ReminderID != "" {
		t.Fatalf("after completing: %+v", done)
	}
	if !settle(t, func() bool { return agent.PendingCount() == 0 }) {
		t.Fatal("completing must remove the agent entry")
	}

	// Move the binder's clock past the armed instant before un-completing.
	b.now = func() time.Time { return done.ReminderAt.Add(time.Minute) }

	back, err := b.ToggleComplete(ctx, r.ID)
	if err != nil {
		t.Fatalf("ToggleComplete: %v", err)
	}
	if back.Completed {
		t.Error("expected the routine to be un-completed")
	}
	if back.ReminderID != "" {
		t.Errorf("no new reminder id expected for a passed instant, got %q", back.ReminderID)
	}
	time.Sleep(20 * time.Millisecond)
	if agent.PendingCount() != 0 {
		t.Error("no agent entry expected for a passed instant")
	}
}

func TestBinder_DeriveHours(t *testing.T) {
	b, _ := newTestBinder(t, true)

	cases := []struct {
		name string
		in   Input
		want float64
	}{
		{"explicit wins", Input{Hours: 3, StartTime: "09:00", EndTime: "10:00"}, 3},
		{"from pair", Input{StartTime: "09:00", EndTime: "11:30"}, 2.5},
		{"from slot range", Input{TimeSlot: "8am - 10am"}, 2},
		{"overnight pair", Input{StartTime: "22:00", EndTime: "02:00"}, 4},
		{"nothing", Input{TimeSlot: "sometime"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := b.deriveHours(tc.in); got != tc.want {
				t.Errorf("deriveHours = %v, want %v", got, tc.want)
			}
		})
	}
}
