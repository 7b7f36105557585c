// Command synccatalog runs one catalog sync and prints the structured result.
// It reconciles either the configured source URL or a local payload file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ncecere/chatstore/backend/internal/app"
	"github.com/ncecere/chatstore/backend/internal/config"
	"github.com/ncecere/chatstore/backend/internal/database"
	"github.com/ncecere/chatstore/backend/internal/redisclient"
	catalogsyncsvc "github.com/ncecere/chatstore/backend/internal/services/catalogsync"
)

func main() {
	configFile := flag.String("config", "", "path to config file")
	payloadFile := flag.String("payload", "", "reconcile a local JSON payload instead of the source URL")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.Options{ConfigFile: *configFile})
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

	var result catalogsyncsvc.Result
	if *payloadFile != "" {
		raw, err := os.ReadFile(*payloadFile)
		if err != nil {
			log.Fatalf("read payload: %v", err)
		}
		result, err = container.CatalogSync.SyncPayload(ctx, raw)
		if err != nil {
			log.Fatalf("sync: %v", err)
		}
	} else {
		result, err = container.CatalogSync.SyncFromSource(ctx)
		if err != nil {
			log.Fatalf("sync: %v", err)
		}
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("encode result: %v", err)
	}
	os.Stdout.Write(append(out, '\n'))

	if !result.Success {
		os.Exit(1)
	}
}
