package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ncecere/chatstore/backend/internal/auth"
	"github.com/ncecere/chatstore/backend/internal/cache"
	"github.com/ncecere/chatstore/backend/internal/config"
	"github.com/ncecere/chatstore/backend/internal/db"
	"github.com/ncecere/chatstore/backend/internal/observability"
	admincatalogsvc "github.com/ncecere/chatstore/backend/internal/services/admincatalog"
	catalogsyncsvc "github.com/ncecere/chatstore/backend/internal/services/catalogsync"
	chatsvc "github.com/ncecere/chatstore/backend/internal/services/chat"
	costingsvc "github.com/ncecere/chatstore/backend/internal/services/costing"
	tieraccesssvc "github.com/ncecere/chatstore/backend/internal/services/tieraccess"
	usagesvc "github.com/ncecere/chatstore/backend/internal/services/usage"
	"github.com/ncecere/chatstore/backend/internal/storage/blob"
)

// modelListCacheTTL bounds staleness if an invalidation is ever missed.
const modelListCacheTTL = 5 * time.Minute

// Container aggregates runtime dependencies for handlers and services.
type Container struct {
	Config        *config.Config
	DBPool        *pgxpool.Pool
	Redis         *redis.Client
	Queries       *db.Queries
	Chat          *chatsvc.Service
	Usage         *usagesvc.Service
	Costing       *costingsvc.Service
	TierAccess    *tieraccesssvc.Service
	AdminCatalog  *admincatalogsvc.Service
	CatalogSync   *catalogsyncsvc.Service
	ModelLists    *cache.ModelListCache
	Tokens        *auth.TokenManager
	Observability *observability.Provider
	Archive       blob.Store

	ReportingLocation *time.Location
}

// NewContainer builds a dependency container from the provided primitives.
func NewContainer(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if pool == nil {
		return nil, fmt.Errorf("db pool is required")
	}
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	locName := strings.TrimSpace(cfg.Reporting.Timezone)
	if locName == "" {
		locName = "UTC"
	}
	reportingLoc, err := time.LoadLocation(locName)
	if err != nil {
		return nil, fmt.Errorf("load reporting timezone: %w", err)
	}

	logger := slog.Default()
	queries := db.New(pool)

	obsProvider, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("setup observability: %w", err)
	}

	pricing := costingsvc.NewPricingReader(queries, cfg.Pricing)
	costing := costingsvc.NewService(pricing, logger)
	usage := usagesvc.NewService(queries, reportingLoc, logger)
	chat := chatsvc.NewService(pool, queries, costing, usage, logger)

	modelLists := cache.NewModelListCache(redisClient, modelListCacheTTL)
	tierAccess := tieraccesssvc.NewService(queries, modelLists, logger)
	adminCatalog := admincatalogsvc.NewService(queries, tierAccess, logger)

	var archive blob.Store
	if cfg.Archive.Enabled {
		archive, err = blob.New(ctx, cfg.Archive)
		if err != nil {
			return nil, fmt.Errorf("init sync archive store: %w", err)
		}
	}

	var fetcher catalogsyncsvc.Fetcher
	if strings.TrimSpace(cfg.CatalogSync.SourceURL) != "" {
		fetcher = catalogsyncsvc.NewHTTPFetcher(cfg.CatalogSync.SourceURL, cfg.CatalogSync.HTTPTimeout)
	}
	catalogSync := catalogsyncsvc.NewService(catalogsyncsvc.Options{
		Queries:     queries,
		Locker:      catalogsyncsvc.NewPgLocker(pool),
		Fetcher:     fetcher,
		Archive:     archive,
		Invalidator: tierAccess,
		Logger:      logger,
	})

	var tokens *auth.TokenManager
	if strings.TrimSpace(cfg.Admin.JWTSecret) != "" {
		tokens, err = auth.NewTokenManager(cfg.Admin.JWTSecret, cfg.Admin.AccessTokenTTL, "chatstore")
		if err != nil {
			return nil, fmt.Errorf("init token manager: %w", err)
		}
	}

	return &Container{
		Config:            cfg,
		DBPool:            pool,
		Redis:             redisClient,
		Queries:           queries,
		Chat:              chat,
		Usage:             usage,
		Costing:           costing,
		TierAccess:        tierAccess,
		AdminCatalog:      adminCatalog,
		CatalogSync:       catalogSync,
		ModelLists:        modelLists,
		Tokens:            tokens,
		Observability:     obsProvider,
		Archive:           archive,
		ReportingLocation: reportingLoc,
	}, nil
}

// ReportingLoc returns the configured reporting timezone (defaults to UTC).
func (c *Container) ReportingLoc() *time.Location {
	if c != nil && c.ReportingLocation != nil {
		return c.ReportingLocation
	}
	return time.UTC
}
