package sink

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bytedance/gg/gmap"

	"github.com/routineflow/routineflow/internal/notify"
	"github.com/routineflow/routineflow/internal/pkg/logs"
)

var _ notify.Sink = (*Registry)(nil)

// Registry groups the configured delivery backends behind the single Sink
// surface the agent consumes: Show and Close fan out to every registered
// backend, and a user interaction on any backend is reported upward once.
type Registry struct {
	mu       sync.RWMutex
	sinks    map[string]notify.Sink
	onAction func(tag, actionID string)
}

func NewRegistry() *Registry {
	return &Registry{
		sinks: make(map[string]notify.Sink, 2),
	}
}

// Register adds a backend. Its interactions are routed through the registry
// from this point on.
func (r *Registry) Register(s notify.Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.sinks[s.ID()]; dup {
		return fmt.Errorf("sink %s already registered", s.ID())
	}
	s.OnAction(r.dispatch)
	r.sinks[s.ID()] = s
	return nil
}

func (r *Registry) List() []notify.Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return gmap.ToSlice(
		r.sinks,
		func(k string, v notify.Sink) notify.Sink { return v },
	)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}

// ID lists the registered backends, e.g. "log,telegram".
func (r *Registry) ID() string {
	r.mu.RLock()
	ids := gmap.ToSlice(
		r.sinks,
		func(k string, v notify.Sink) string { return k },
	)
	r.mu.RUnlock()
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

// Start runs every backend's delivery loop and blocks until ctx is canceled.
func (r *Registry) Start(ctx context.Context) error {
	for _, s := range r.List() {
		go func(s notify.Sink) {
			logs.CtxInfo(ctx, "[sink] starting #%s", s.ID())
			if err := s.Start(ctx); err != nil {
				logs.CtxError(ctx, "[sink] #%s stopped with error: %v", s.ID(), err)
			}
		}(s)
	}
	<-ctx.Done()
	return nil
}

func (r *Registry) Stop(ctx context.Context) error {
	var firstErr error
	for _, s := range r.List() {
		if err := s.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Show displays the notification on every backend. One backend failing does
// not keep the others from delivering; the first failure is reported.
func (r *Registry) Show(ctx context.Context, title string, opts notify.Options) error {
	var firstErr error
	for _, s := range r.List() {
		if err := s.Show(ctx, title, opts); err != nil {
			logs.CtxWarn(ctx, "[sink] show on #%s failed: %v", s.ID(), err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Registry) Close(ctx context.Context, tag string) error {
	var firstErr error
	for _, s := range r.List() {
		if err := s.Close(ctx, tag); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Registry) OnAction(fn func(tag, actionID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onAction = fn
}

func (r *Registry) dispatch(tag, actionID string) {
	r.mu.RLock()
	fn := r.onAction
	r.mu.RUnlock()
	if fn != nil {
		fn(tag, actionID)
	}
}
