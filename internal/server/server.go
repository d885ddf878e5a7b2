package server

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	hzServer "github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/tracer"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	hertzprom "github.com/hertz-contrib/monitor-prometheus"

	"github.com/routineflow/routineflow/internal/config"
	"github.com/routineflow/routineflow/internal/notify"
	"github.com/routineflow/routineflow/internal/pkg/logs"
	"github.com/routineflow/routineflow/internal/pkg/metrics"
	"github.com/routineflow/routineflow/internal/routine"
	"github.com/routineflow/routineflow/internal/suggest"
)

// Server exposes the routine CRUD, suggestion and notification endpoints over
// HTTP. It owns no domain state; everything routes through the binder, the
// gateway and the suggestion engine.
type Server struct {
	cfg    config.ServerConfig
	binder *routine.Binder
	gw     *notify.Gateway
	gate   *notify.Gatekeeper
	engine *suggest.Engine // nil when suggestions are disabled

	httpServer *hzServer.Hertz
	digest     *Digest

	stopOnce sync.Once
}

type Options struct {
	Binder *routine.Binder
	Gw     *notify.Gateway
	Gate   *notify.Gatekeeper
	Engine *suggest.Engine
	Digest *Digest
}

// The tracer registers its collectors into the shared metrics registry, so it
// must be created exactly once per process.
var (
	tracerOnce sync.Once
	promTracer tracer.Tracer
)

func metricsTracer(addr string) tracer.Tracer {
	tracerOnce.Do(func() {
		promTracer = hertzprom.NewServerTracer(
			addr,
			"/metrics",
			hertzprom.WithRegistry(metrics.GetRegistry()),
			hertzprom.WithEnableGoCollector(true),
		)
	})
	return promTracer
}

func New(cfg config.ServerConfig, opts Options) *Server {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second

	hzSvr := hzServer.Default(
		hzServer.WithHostPorts(cfg.Bind),
		hzServer.WithReadTimeout(timeout),
		hzServer.WithWriteTimeout(timeout),
		hzServer.WithExitWaitTime(5*time.Second),
		hzServer.WithTracer(metricsTracer(cfg.MetricsBind)),
	)

	s := &Server{
		cfg:        cfg,
		binder:     opts.Binder,
		gw:         opts.Gw,
		gate:       opts.Gate,
		engine:     opts.Engine,
		digest:     opts.Digest,
		httpServer: hzSvr,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	h := s.httpServer

	// Every request gets a correlation id so its log lines can be tied
	// together; the id is echoed to the client for bug reports.
	h.Use(func(ctx context.Context, c *app.RequestContext) {
		logID := logs.NewLogID()
		c.Header("X-Log-ID", logID)
		c.Next(logs.SetLogID(ctx, logID))
	})

	h.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	api := h.Group("/api/v1")

	routines := api.Group("/routines")
	routines.GET("", s.listRoutines)
	routines.POST("", s.createRoutine)
	routines.PUT("/:id", s.updateRoutine)
	routines.DELETE("/:id", s.deleteRoutine)
	routines.POST("/:id/toggle", s.toggleRoutine)

	api.POST("/suggestions", s.suggestions)

	notifications := api.Group("/notifications")
	notifications.GET("/permission", s.permissionState)
	notifications.POST("/permission", s.decidePermission)
	notifications.POST("/request", s.requestPermission)
	notifications.POST("/test", s.testNotification)
}

// Start begins serving in the background; use Stop to shut down.
func (s *Server) Start(ctx context.Context) {
	hlog.SetLogger(logs.NewHlogLogger(logs.DefaultLogger()))
	if s.digest != nil {
		s.digest.Start(ctx)
	}
	go s.httpServer.Spin()
	logs.CtxInfo(ctx, "[server] listening on %s (metrics on %s)", s.cfg.Bind, s.cfg.MetricsBind)
}

func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		if s.digest != nil {
			s.digest.Stop()
		}
		if e := s.httpServer.Shutdown(ctx); e != nil {
			logs.CtxWarn(ctx, "[server] shutdown error: %v", e)
			err = e
		}
	})
	return err
}
