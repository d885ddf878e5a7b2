package routine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "routines.json"))
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := tempStore(t)

	s.Put(Routine{
		ID:        "a",
		Attempt:   AttemptFirst,
		TimeSlot:  "8am - 10am",
		Work:      "reading",
		Hours:     2,
		CreatedAt: time.Now().Add(-time.Hour),
	})
	s.Put(Routine{
		ID:        "b",
		Attempt:   AttemptSecond,
		StartTime: "14:00",
		EndTime:   "15:30",
		Work:      "writing",
		Hours:     1.5,
		Completed: true,
		Score:     7,
		CreatedAt: time.Now(),
	})
	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	fresh := NewStore(s.path)
	if err := fresh.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fresh.Len() != 2 {
		t.Fatalf("Len = %d, want 2", fresh.Len())
	}

	got, err := fresh.Get("b")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Work != "writing" || !got.Completed || got.Score != 7 {
		t.Errorf("round trip mangled record: %+v", got)
	}
}

func TestStore_LoadMissingFileIsEmpty(t *testing.T) {
	s := tempStore(t)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestStore_ReminderIDNeverPersisted(t *testing.T) {
	ctx := context.Background()
	s := tempStore(t)

	s.Put(Routine{
		ID:         "a",
		Attempt:    AttemptFirst,
		TimeSlot:   "9am",
		Work:       "gym",
		ReminderID: "volatile-reminder-id",
		CreatedAt:  time.Now(),
	})
	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		t.Fatalf("read store file: %v", err)
	}
	if strings.Contains(string(data), "volatile-reminder-id") {
		t.Error("reminder id leaked into the persisted blob")
	}

	fresh := NewStore(s.path)
	if err := fresh.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, _ := fresh.Get("a")
	if got.ReminderID != "" {
		t.Errorf("loaded ReminderID = %q, want cleared", got.ReminderID)
	}
}

func TestStore_ListOrderedByCreation(t *testing.T) {
	s := tempStore(t)
	base := time.Now()

	s.Put(Routine{ID: "late", CreatedAt: base.Add(time.Minute)})
	s.Put(Routine{ID: "early", CreatedAt: base.Add(-time.Minute)})
	s.Put(Routine{ID: "mid-b", CreatedAt: base})
	s.Put(Routine{ID: "mid-a", CreatedAt: base})

	var ids []string
	for _, r := range s.List() {
		ids = append(ids, r.ID)
	}
	want := []string{"early", "mid-a", "mid-b", "late"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("List order = %v, want %v", ids, want)
		}
	}
}

func TestStore_RemoveAbsent(t *testing.T) {
	s := tempStore(t)
	if err := s.Remove("ghost"); err == nil {
		t.Error("removing an absent id must error")
	}
}
