package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ncecere/chatstore/backend/internal/app"
	"github.com/ncecere/chatstore/backend/internal/config"
	"github.com/ncecere/chatstore/backend/internal/database"
	"github.com/ncecere/chatstore/backend/internal/httpserver"
	"github.com/ncecere/chatstore/backend/internal/redisclient"
	catalogsyncsvc "github.com/ncecere/chatstore/backend/internal/services/catalogsync"
	usagesvc "github.com/ncecere/chatstore/backend/internal/services/usage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.Options{})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := database.RunMigrations(ctx, cfg.Database); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	dbPool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer dbPool.Close()

	redisClient := redisclient.New(cfg.Redis)
	if err := redisclient.Ping(ctx, redisClient); err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	defer redisClient.Close()

	container, err := app.NewContainer(ctx, cfg, dbPool, redisClient)
	if err != nil {
		log.Fatalf("build container: %v", err)
	}
	if container.Observability != nil {
		defer container.Observability.Shutdown(ctx)
	}

	scheduler := startSyncScheduler(ctx, container, cfg.CatalogSync)
	if scheduler != nil {
		defer scheduler.Stop()
	}
	startRetentionSweeper(ctx, container.Usage, cfg.Retention)

	server, err := httpserver.New(container)
	if err != nil {
		log.Fatalf("construct server: %v", err)
	}

	if err := server.Listen(ctx); err != nil && err != context.Canceled {
		log.Fatalf("server stopped: %v", err)
	}
}

func startSyncScheduler(ctx context.Context, container *app.Container, cfg config.CatalogSyncConfig) *cron.Cron {
	if !cfg.Enabled || cfg.SourceURL == "" {
		return nil
	}

	scheduler := cron.New()
	_, err := scheduler.AddFunc(cfg.Schedule, func() {
		result, err := container.CatalogSync.SyncFromSource(ctx)
		if err != nil {
			if err == catalogsyncsvc.ErrSyncInProgress {
				slog.Warn("scheduled catalog sync skipped, run already in progress")
				return
			}
			slog.Error("scheduled catalog sync error", slog.String("error", err.Error()))
			return
		}
		if container.Observability != nil {
			status := "completed"
			if !result.Success {
				status = "failed"
			}
			container.Observability.RecordSyncRun(status, time.Duration(result.DurationMs)*time.Millisecond)
		}
	})
	if err != nil {
		log.Fatalf("invalid catalog sync schedule %q: %v", cfg.Schedule, err)
	}
	scheduler.Start()
	return scheduler
}

func startRetentionSweeper(ctx context.Context, svc *usagesvc.Service, cfg config.RetentionConfig) {
	if svc == nil || cfg.DailyUsageDays <= 0 {
		return
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := time.Duration(cfg.DailyUsageDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		run := func() {
			if _, err := svc.PruneBefore(ctx, retention); err != nil {
				slog.Error("usage retention sweep error", slog.String("error", err.Error()))
			}
		}
		run()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}
