package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/routineflow/routineflow/internal/config"
	"github.com/routineflow/routineflow/internal/notify"
	"github.com/routineflow/routineflow/internal/notify/sink"
	"github.com/routineflow/routineflow/internal/pkg/logs"
	"github.com/routineflow/routineflow/internal/routine"
	"github.com/routineflow/routineflow/internal/server"
	"github.com/routineflow/routineflow/internal/suggest"
)

var serveHwd = &ServeRunner{}

type ServeRunner struct{}

func (r *ServeRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the routine tracker service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path of the config file",
			},
		},
		Action: r.run,
	}
}

func (r *ServeRunner) run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("loading config error: %w", err)
	}

	if err = r.initLogger(cfg.Logging); err != nil {
		return fmt.Errorf("init logger error: %w", err)
	}
	defer logs.Flush()

	logs.CtxInfo(ctx, "booting RoutineFlow, store at %s...", cfg.Store.Path)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sinks, err := r.buildSinks(cfg.Notify)
	if err != nil {
		return fmt.Errorf("create notification sinks: %w", err)
	}
	supported := sinks.Len() > 0

	var deliverer notify.Sink
	if supported {
		deliverer = sinks
	}
	agent := notify.NewAgent(deliverer)
	agent.Start(ctx)

	gate := notify.NewGatekeeper(supported)
	gw := notify.NewGateway(agent, gate)

	if supported {
		logs.CtxInfo(ctx, "delivering notifications via [%s]", sinks.ID())
		go func() {
			if err := sinks.Start(ctx); err != nil {
				logs.CtxError(ctx, "sink registry stopped with error: %v", err)
			}
		}()
	}

	store := routine.NewStore(cfg.Store.Path)
	if err = store.Load(ctx); err != nil {
		return fmt.Errorf("load routine store: %w", err)
	}
	binder := routine.NewBinder(store, gw, cfg.Notify.Icon)

	var engine *suggest.Engine
	if cfg.Suggest.Enabled {
		engine = suggest.NewEngine(
			cfg.Suggest.BaseURL,
			cfg.Suggest.Model,
			time.Duration(cfg.Suggest.TimeoutSec)*time.Second,
		)
	}

	var digest *server.Digest
	if cfg.Digest.Enabled {
		if digest, err = server.NewDigest(cfg.Digest.Schedule, binder, gw); err != nil {
			return fmt.Errorf("create digest: %w", err)
		}
	}

	srv := server.New(cfg.Server, server.Options{
		Binder: binder,
		Gw:     gw,
		Gate:   gate,
		Engine: engine,
		Digest: digest,
	})
	srv.Start(ctx)

	logs.CtxInfo(ctx, "ALL IS WELL!!! Press Ctrl+C to stop.")

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	select {
	case sig := <-signalCh:
		logs.CtxInfo(ctx, "Received shutdown signal (%s). Stopping...", sig.String())
	case <-ctx.Done():
		logs.CtxInfo(ctx, "Context canceled. Stopping...")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()

	if err = srv.Stop(stopCtx); err != nil {
		logs.CtxError(ctx, "stop server error: %v", err)
	}
	if supported {
		if err = sinks.Stop(stopCtx); err != nil {
			logs.CtxWarn(ctx, "stop sinks error: %v", err)
		}
	}
	agent.Stop(stopCtx)

	logs.CtxInfo(ctx, "all stopped, good bye!")
	return nil
}

// buildSinks registers every configured delivery backend. An empty registry
// means the platform cannot display notifications and permission stays denied.
func (r *ServeRunner) buildSinks(cfg config.NotifyConfig) (*sink.Registry, error) {
	reg := sink.NewRegistry()
	for _, name := range cfg.Sinks() {
		var (
			s   notify.Sink
			err error
		)
		switch name {
		case "telegram":
			s, err = sink.NewTelegram("telegram", cfg.Telegram, cfg.AppURL)
		case "log":
			s = sink.NewLog("log")
		default:
			err = fmt.Errorf("unknown sink %q", name)
		}
		if err != nil {
			return nil, err
		}
		if err = reg.Register(s); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (r *ServeRunner) initLogger(cfg config.LoggingConfig) error {
	return logs.Init(logs.Options{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		File:       cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
	})
}
