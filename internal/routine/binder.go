package routine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/routineflow/routineflow/internal/notify"
	"github.com/routineflow/routineflow/internal/pkg/logs"
	"github.com/routineflow/routineflow/internal/timeparse"
)

// Input carries the user-editable routine fields for create and update.
type Input struct {
	Attempt   Attempt `json:"attempt"`
	TimeSlot  string  `json:"time"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
	Work      string  `json:"work"`
	Hours     float64 `json:"hours"`
	Score     int     `json:"score"`
}

// Binder owns the routine lifecycle: every mutation goes through it so the
// persisted set and the pending reminders never drift apart.
type Binder struct {
	store *Store
	gw    *notify.Gateway
	icon  string

	now func() time.Time
}

func NewBinder(store *Store, gw *notify.Gateway, icon string) *Binder {
	return &Binder{
		store: store,
		gw:    gw,
		icon:  icon,
		now:   time.Now,
	}
}

// Create validates the input, persists a new routine and arms its reminder.
func (b *Binder) Create(ctx context.Context, in Input) (Routine, error) {
	now := b.now()
	r := Routine{
		ID:        uuid.New().String(),
		Attempt:   in.Attempt,
		TimeSlot:  in.TimeSlot,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Work:      strings.TrimSpace(in.Work),
		Hours:     b.deriveHours(in),
		Score:     ClampScore(in.Score),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.Validate(); err != nil {
		return Routine{}, err
	}

	b.arm(ctx, &r)
	b.store.Put(r)
	if err := b.store.Save(ctx); err != nil {
		return Routine{}, err
	}

	logs.CtxInfo(ctx, "[routine] created %s (%s, reminder=%q)", r.ID, r.Work, r.ReminderID)
	return r, nil
}

// Update applies the new field values and re-arms with the same logic as
// Create. The prior reminder is only canceled once the new values are known
// to be valid, so a rejected update leaves the routine exactly as it was.
func (b *Binder) Update(ctx context.Context, id string, in Input) (Routine, error) {
	r, err := b.store.Get(id)
	if err != nil {
		return Routine{}, err
	}

	next := r
	next.Attempt = in.Attempt
	next.TimeSlot = in.TimeSlot
	next.StartTime = in.StartTime
	next.EndTime = in.EndTime
	next.Work = strings.TrimSpace(in.Work)
	next.Hours = b.deriveHours(in)
	next.Score = ClampScore(in.Score)
	next.ReminderAt = time.Time{}
	next.UpdatedAt = b.now()
	if err := next.Validate(); err != nil {
		return Routine{}, err
	}

	b.disarm(ctx, &r)
	b.arm(ctx, &next)
	b.store.Put(next)
	if err := b.store.Save(ctx); err != nil {
		return Routine{}, err
	}
	return next, nil
}

// ToggleComplete flips the completed flag. Completing a routine cancels its
// reminder; un-completing re-arms only when the original reminder instant has
// not yet passed.
func (b *Binder) ToggleComplete(ctx context.Context, id string) (Routine, error) {
	r, err := b.store.Get(id)
	if err != nil {
		return Routine{}, err
	}

	if r.Completed {
		r.Completed = false
		b.rearm(ctx, &r)
	} else {
		r.Completed = true
		b.disarm(ctx, &r)
	}
	r.UpdatedAt = b.now()

	b.store.Put(r)
	if err := b.store.Save(ctx); err != nil {
		return Routine{}, err
	}

	logs.CtxInfo(ctx, "[routine] toggled %s completed=%v", r.ID, r.Completed)
	return r, nil
}

// Delete cancels any pending reminder and removes the routine.
func (b *Binder) Delete(ctx context.Context, id string) error {
	r, err := b.store.Get(id)
	if err != nil {
		return err
	}

	b.disarm(ctx, &r)
	if err := b.store.Remove(id); err != nil {
		return err
	}
	if err := b.store.Save(ctx); err != nil {
		return err
	}

	logs.CtxInfo(ctx, "[routine] deleted %s", id)
	return nil
}

func (b *Binder) Get(id string) (Routine, error) { return b.store.Get(id) }

func (b *Binder) List() []Routine { return b.store.List() }

// TotalHours sums the planned hours across all routines.
func (b *Binder) TotalHours() float64 {
	var total float64
	for _, r := range b.store.List() {
		total += r.Hours
	}
	return total
}

// arm schedules a fresh reminder for an uncompleted routine. Permission is
// checked here so a denied state short-circuits before touching the gateway.
func (b *Binder) arm(ctx context.Context, r *Routine) {
	r.ReminderID = ""
	if r.Completed {
		return
	}
	if b.gw == nil || b.gw.PermissionState() != notify.StateGranted {
		return
	}

	text := r.ReminderTime()
	if !timeparse.Valid(text) {
		logs.CtxWarn(ctx, "[routine] %s has unparseable time %q, no reminder armed", r.ID, text)
		return
	}

	now := b.now()
	at := timeparse.ResolveAt(text, now)
	if !at.After(now) {
		return
	}

	if id, ok := b.gw.ScheduleAt(b.title(r), at, b.options(r)); ok {
		r.ReminderID = id
		r.ReminderAt = at
	}
}

// rearm restores the reminder after a routine is un-completed. It reuses the
// instant the reminder was originally armed for: once that has passed the
// routine simply stays without a reminder instead of slipping to tomorrow.
func (b *Binder) rearm(ctx context.Context, r *Routine) {
	r.ReminderID = ""
	if b.gw == nil || b.gw.PermissionState() != notify.StateGranted {
		return
	}

	if r.ReminderAt.IsZero() {
		b.arm(ctx, r)
		return
	}
	if !r.ReminderAt.After(b.now()) {
		logs.CtxDebug(ctx, "[routine] %s reminder instant already passed, not re-arming", r.ID)
		return
	}
	if id, ok := b.gw.ScheduleAt(b.title(r), r.ReminderAt, b.options(r)); ok {
		r.ReminderID = id
	}
}

func (b *Binder) disarm(ctx context.Context, r *Routine) {
	if r.ReminderID == "" {
		return
	}
	b.gw.Cancel(r.ReminderID)
	logs.CtxDebug(ctx, "[routine] canceled reminder %s for %s", r.ReminderID, r.ID)
	r.ReminderID = ""
}

func (b *Binder) title(r *Routine) string {
	return fmt.Sprintf("Time for: %s", r.Work)
}

func (b *Binder) options(r *Routine) notify.Options {
	slot := r.TimeSlot
	if slot == "" {
		slot = r.StartTime
	}
	return notify.Options{
		Body: fmt.Sprintf("Your %s attempt routine is scheduled for %s", strings.ToLower(string(r.Attempt)), slot),
		Icon: b.icon,
		Data: map[string]string{
			"routine_id": r.ID,
			"attempt":    string(r.Attempt),
		},
		Actions: notify.ReminderActions(),
	}
}

// deriveHours prefers an explicit duration; otherwise it computes one from the
// start/end pair when both are present.
func (b *Binder) deriveHours(in Input) float64 {
	if in.Hours > 0 {
		return in.Hours
	}
	if in.StartTime != "" && in.EndTime != "" {
		return timeparse.DurationHours(in.StartTime, in.EndTime)
	}
	if start, end, ok := timeparse.SplitRange(in.TimeSlot); ok {
		return timeparse.DurationHours(start, end)
	}
	return 0
}
