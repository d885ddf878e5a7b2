package routine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/routineflow/routineflow/internal/pkg/logs"
)

var ErrNotFound = errors.New("routine: not found")

// Store persists routines as a single JSON blob on disk. All mutations write
// the whole file through a temp-file rename so a crash mid-write never leaves
// a truncated store behind.
type Store struct {
	path string

	mu       sync.RWMutex
	routines map[string]*Routine
}

func NewStore(path string) *Store {
	return &Store{
		path:     path,
		routines: make(map[string]*Routine),
	}
}

// Load reads the blob from disk. A missing file is an empty store.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			logs.CtxInfo(ctx, "[routine] store file %s not found, starting empty", s.path)
			return nil
		}
		return fmt.Errorf("read routine store: %w", err)
	}

	var list []*Routine
	if err := sonic.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parse routine store: %w", err)
	}

	s.routines = make(map[string]*Routine, len(list))
	for _, r := range list {
		r.ReminderID = ""
		s.routines[r.ID] = r
	}
	logs.CtxInfo(ctx, "[routine] loaded %d routines from %s", len(list), s.path)
	return nil
}

// Save writes the current set to disk. Reminder identifiers are volatile and
// are stripped by the model's serialization.
func (s *Store) Save(ctx context.Context) error {
	s.mu.RLock()
	list := s.sortedLocked()
	s.mu.RUnlock()

	data, err := sonic.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal routine store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write routine store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace routine store: %w", err)
	}

	logs.CtxDebug(ctx, "[routine] saved %d routines to %s", len(list), s.path)
	return nil
}

// Get returns a copy of the routine with the given id.
func (s *Store) Get(id string) (Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.routines[id]
	if !ok {
		return Routine{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *r, nil
}

// List returns copies of all routines ordered by creation time, then id.
func (s *Store) List() []Routine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Routine, 0, len(s.routines))
	for _, r := range s.sortedLocked() {
		out = append(out, *r)
	}
	return out
}

// Put inserts or replaces a routine.
func (s *Store) Put(r Routine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := r
	s.routines[r.ID] = &cp
}

// Remove deletes a routine. Removing an absent id is an error so callers can
// surface it to the user.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routines[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.routines, id)
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.routines)
}

func (s *Store) sortedLocked() []*Routine {
	list := make([]*Routine, 0, len(s.routines))
	for _, r := range s.routines {
		list = append(list, r)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list
}
