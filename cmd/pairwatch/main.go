package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"pairwatch/internal/browser"
	"pairwatch/internal/config"
	server "pairwatch/internal/http"
	"pairwatch/internal/metrics"
	"pairwatch/internal/notify"
	"pairwatch/internal/status"
	"pairwatch/internal/supervisor"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// The default config file is optional; an explicit -config is not.
	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})

	cfg, err := config.Load(*configPath, !explicit)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Set up logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("pairwatch stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("pairwatch stopped")
}

// run supervises the client and serves the status page until ctx is done or
// one of the units fails. Resources are released before it returns.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	notifier, err := notify.New(cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	defer notifier.Close()

	st := status.NewStore()
	st.Subscribe(func(s status.Status) {
		metrics.RecordTransition(string(s.Phase))
	})
	if notifier.Enabled() {
		st.Subscribe(notifier.Enqueue)
		logger.Info("publishing status changes", "channel", notifier.Channel())
	}

	sup := supervisor.New(cfg, st, logger)
	srv := server.NewServer(cfg, st, notifier, logger)

	g, gctx := errgroup.WithContext(ctx)

	// Supervision unit: owns the child and is the only status writer.
	g.Go(func() error {
		return sup.Run(gctx)
	})

	g.Go(func() error {
		return notifier.Run(gctx)
	})

	// API unit.
	g.Go(func() error {
		logger.Info("status page listening", "url", srv.URL(), "dashboard", cfg.Dashboard.URL())
		if err := srv.Listen(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownTimeout)
	})

	if cfg.Browser.AutoOpen {
		go browser.OpenAfter(gctx, browser.Open, srv.URL(), cfg.Browser.Delay(), logger)
	}

	return g.Wait()
}
