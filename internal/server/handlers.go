package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/routineflow/routineflow/internal/notify"
	"github.com/routineflow/routineflow/internal/pkg/logs"
	"github.com/routineflow/routineflow/internal/routine"
	"github.com/routineflow/routineflow/internal/suggest"
	"github.com/routineflow/routineflow/internal/timeparse"
)

func (s *Server) listRoutines(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{
		"routines":    s.binder.List(),
		"total_hours": s.binder.TotalHours(),
	})
}

func (s *Server) createRoutine(ctx context.Context, c *app.RequestContext) {
	in, ok := s.bindInput(c)
	if !ok {
		return
	}

	r, err := s.binder.Create(ctx, in)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(consts.StatusCreated, r)
}

func (s *Server) updateRoutine(ctx context.Context, c *app.RequestContext) {
	in, ok := s.bindInput(c)
	if !ok {
		return
	}

	r, err := s.binder.Update(ctx, c.Param("id"), in)
	if err != nil {
		if errors.Is(err, routine.ErrNotFound) {
			notFound(c, err)
			return
		}
		badRequest(c, err)
		return
	}
	c.JSON(consts.StatusOK, r)
}

func (s *Server) toggleRoutine(ctx context.Context, c *app.RequestContext) {
	r, err := s.binder.ToggleComplete(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, routine.ErrNotFound) {
			notFound(c, err)
			return
		}
		internalError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, r)
}

func (s *Server) deleteRoutine(ctx context.Context, c *app.RequestContext) {
	if err := s.binder.Delete(ctx, c.Param("id")); err != nil {
		if errors.Is(err, routine.ErrNotFound) {
			notFound(c, err)
			return
		}
		internalError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"deleted": true})
}

func (s *Server) suggestions(ctx context.Context, c *app.RequestContext) {
	if s.engine == nil {
		c.JSON(consts.StatusServiceUnavailable, utils.H{"error": "suggestions are not enabled"})
		return
	}

	history := suggest.HistoryFrom(s.binder.List())
	result, err := s.engine.Suggest(ctx, history)
	if err != nil {
		if errors.Is(err, suggest.ErrNoHistory) {
			badRequest(c, err)
			return
		}
		// The model backend is flaky by nature; tell the client to retry
		// rather than treating this as a server bug.
		c.JSON(consts.StatusBadGateway, utils.H{"error": err.Error(), "retryable": true})
		return
	}
	c.JSON(consts.StatusOK, utils.H{"suggestions": result})
}

func (s *Server) permissionState(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"state": string(s.gate.State())})
}

// decidePermission records the user's answer to an outstanding permission
// prompt. It is the HTTP stand-in for the platform permission dialog.
func (s *Server) decidePermission(ctx context.Context, c *app.RequestContext) {
	var req struct {
		Granted bool `json:"granted"`
	}
	body, err := c.Body()
	if err != nil {
		badRequest(c, fmt.Errorf("read body: %w", err))
		return
	}
	if err := sonic.Unmarshal(body, &req); err != nil {
		badRequest(c, fmt.Errorf("parse body: %w", err))
		return
	}

	s.gate.Decide(req.Granted)
	logs.CtxInfo(ctx, "[server] notification permission decided: granted=%v", req.Granted)
	c.JSON(consts.StatusOK, utils.H{"state": string(s.gate.State())})
}

// requestPermission blocks until the permission is decided, mirroring a
// platform prompt that suspends the caller.
func (s *Server) requestPermission(ctx context.Context, c *app.RequestContext) {
	granted, err := s.gw.RequestPermission(ctx)
	if err != nil {
		c.JSON(consts.StatusRequestTimeout, utils.H{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, utils.H{
		"granted": granted,
		"state":   string(s.gate.State()),
	})
}

func (s *Server) testNotification(ctx context.Context, c *app.RequestContext) {
	if !s.gate.Granted() {
		c.JSON(consts.StatusForbidden, utils.H{"error": "notification permission not granted"})
		return
	}
	s.gw.ShowNow("RoutineFlow", notify.Options{
		Body: "Notifications are working.",
	})
	c.JSON(consts.StatusAccepted, utils.H{"shown": true})
}

// bindInput parses and validates the shared create/update payload. Explicit
// start and end times must be parseable clock text; the free-form slot is only
// required when no start time is given.
func (s *Server) bindInput(c *app.RequestContext) (routine.Input, bool) {
	var in routine.Input
	body, err := c.Body()
	if err != nil {
		badRequest(c, fmt.Errorf("read body: %w", err))
		return in, false
	}
	if err := sonic.Unmarshal(body, &in); err != nil {
		badRequest(c, fmt.Errorf("parse body: %w", err))
		return in, false
	}

	if !in.Attempt.IsValid() {
		badRequest(c, fmt.Errorf("invalid attempt %q", in.Attempt))
		return in, false
	}
	if strings.TrimSpace(in.Work) == "" {
		badRequest(c, errors.New("work is required"))
		return in, false
	}
	for _, tf := range []struct{ name, val string }{
		{"start_time", in.StartTime},
		{"end_time", in.EndTime},
	} {
		if tf.val != "" && !timeparse.Valid(tf.val) {
			badRequest(c, fmt.Errorf("unparseable %s %q", tf.name, tf.val))
			return in, false
		}
	}
	if in.StartTime == "" && strings.TrimSpace(in.TimeSlot) == "" {
		badRequest(c, errors.New("a time slot or start time is required"))
		return in, false
	}
	return in, true
}

func badRequest(c *app.RequestContext, err error) {
	c.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
}

func notFound(c *app.RequestContext, err error) {
	c.JSON(consts.StatusNotFound, utils.H{"error": err.Error()})
}

func internalError(ctx context.Context, c *app.RequestContext, err error) {
	logs.CtxError(ctx, "[server] request failed: %v", err)
	c.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
}
