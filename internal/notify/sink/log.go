package sink

import (
	"context"

	"github.com/routineflow/routineflow/internal/notify"
	"github.com/routineflow/routineflow/internal/pkg/logs"
)

var _ notify.Sink = (*Log)(nil)

// Log writes notifications to the service log. It is the fallback delivery
// backend when no real sink is configured but notifications should still be
// observable, e.g. in development.
type Log struct {
	id string
}

func NewLog(id string) *Log {
	return &Log{id: id}
}

func (s *Log) ID() string { return s.id }

func (s *Log) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *Log) Stop(context.Context) error { return nil }

func (s *Log) Show(ctx context.Context, title string, opts notify.Options) error {
	logs.CtxInfo(ctx, "[sink:log] %s | %s (tag=%s)", title, opts.Body, opts.Tag)
	return nil
}

func (s *Log) Close(ctx context.Context, tag string) error {
	logs.CtxDebug(ctx, "[sink:log] close %s", tag)
	return nil
}

// OnAction is accepted for interface completeness; a log sink has no way for
// the user to interact with a displayed notification.
func (s *Log) OnAction(func(tag, actionID string)) {}
