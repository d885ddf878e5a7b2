package server

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/routineflow/routineflow/internal/notify"
	"github.com/routineflow/routineflow/internal/pkg/logs"
	"github.com/routineflow/routineflow/internal/routine"
)

// cronParser is a standard 5-field cron expression parser (minute hour dom month dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Digest periodically pushes a summary of the day's uncompleted routines as a
// single notification, on a cron schedule like "0 8 * * *".
type Digest struct {
	schedule cron.Schedule
	binder   *routine.Binder
	gw       *notify.Gateway

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func NewDigest(expr string, binder *routine.Binder, gw *notify.Gateway) (*Digest, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse digest schedule %q: %w", expr, err)
	}
	return &Digest{
		schedule: sched,
		binder:   binder,
		gw:       gw,
		done:     make(chan struct{}),
	}, nil
}

func (d *Digest) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	go d.run(ctx)
}

func (d *Digest) Stop() {
	d.stopOnce.Do(func() {
		if d.cancel != nil {
			d.cancel()
		}
		<-d.done
	})
}

func (d *Digest) run(ctx context.Context) {
	defer close(d.done)

	for {
		next := d.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			d.send(ctx)
		}
	}
}

func (d *Digest) send(ctx context.Context) {
	var open []routine.Routine
	for _, r := range d.binder.List() {
		if !r.Completed {
			open = append(open, r)
		}
	}
	if len(open) == 0 {
		logs.CtxDebug(ctx, "[digest] nothing open, skipping")
		return
	}

	var b strings.Builder
	for i, r := range open {
		if i > 0 {
			b.WriteString("\n")
		}
		slot := r.TimeSlot
		if slot == "" {
			slot = r.StartTime
		}
		fmt.Fprintf(&b, "- %s (%s)", r.Work, slot)
	}

	d.gw.ShowNow(
		fmt.Sprintf("Today's plan: %d routines open", len(open)),
		notify.Options{Body: b.String(), Tag: "daily-digest"},
	)
	logs.CtxInfo(ctx, "[digest] sent summary of %d open routines", len(open))
}
