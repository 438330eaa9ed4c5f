package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/gyaneshwarpardhi/nodegraph/internal/api"
	"github.com/gyaneshwarpardhi/nodegraph/internal/archive"
	"github.com/gyaneshwarpardhi/nodegraph/internal/calculator"
	"github.com/gyaneshwarpardhi/nodegraph/internal/config"
	"github.com/gyaneshwarpardhi/nodegraph/internal/controller"
	"github.com/gyaneshwarpardhi/nodegraph/internal/engine"
	"github.com/gyaneshwarpardhi/nodegraph/internal/registry"
)

func main() {
	cfgPath := flag.String("config", "configs/nodegraph.yaml", "Path to service YAML config")
	addr := flag.String("addr", "", "HTTP listen address (overrides server.addr)")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath, logger)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}
	if l, err := cfg.Log.SlogLevel(); err == nil {
		level.Set(l)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	// ── Node kinds and controller ────────────────────────────────────────────
	reg := registry.New()
	calculator.Register(reg)
	ctrl := controller.New(cfg.Graph.Name, reg, logger)
	ctrl.Graph().SetAutoExecute(cfg.Graph.AutoExecuteEnabled())
	slog.Info("node kinds registered", "nodes", len(reg.NodeTypes()), "edges", len(reg.EdgeTypes()))

	// ── Engine ────────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng := engine.New(ctx, ctrl, cfg.Engine, logger)
	defer eng.Shutdown()

	// ── Document ──────────────────────────────────────────────────────────────
	var watcher *archive.Watcher
	if doc := cfg.Document; doc.Path != "" {
		if doc.Autoload {
			if err := autoload(ctx, eng, doc.Path, logger); err != nil {
				slog.Warn("document not loaded, starting empty", "path", doc.Path, "err", err)
			}
		}
		if doc.Watch {
			watcher = archive.NewWatcher(doc.Path, logger)
			stopDocWatch, err := watcher.Watch(func(d *archive.Document) {
				if err := eng.Post("reload document", api.LoadCommand(d, logger)); err != nil {
					slog.Warn("document reload dropped", "path", doc.Path, "err", err)
				}
			})
			if err != nil {
				slog.Warn("document watcher unavailable (reload disabled)", "err", err)
				watcher = nil
			} else {
				defer stopDocWatch()
			}
		}
	}

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		if l, err := newCfg.Log.SlogLevel(); err == nil {
			level.Set(l)
		}
		eng.SetTickInterval(newCfg.Engine.TickInterval())
		slog.Info("config hot-reloaded", "log_level", newCfg.Log.Level, "tick_interval_ms", newCfg.Engine.TickIntervalMs)
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.New(api.Options{
		Engine:       eng,
		Registry:     reg,
		DocumentPath: cfg.Document.Path,
		Watcher:      watcher,
		Logger:       logger,
	})
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down…")
		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace())
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "err", err)
		eng.Shutdown()
		os.Exit(1)
	}
	slog.Info("goodbye")
}

func autoload(ctx context.Context, eng *engine.Engine, path string, logger *slog.Logger) error {
	doc, err := archive.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = eng.Do(ctx, "load document", api.LoadCommand(doc, logger))
	return err
}
