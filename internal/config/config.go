package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config captures the runtime configuration for the chat store service.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Pricing       PricingConfig       `mapstructure:"pricing"`
	CatalogSync   CatalogSyncConfig   `mapstructure:"catalog_sync"`
	Reporting     ReportingConfig     `mapstructure:"reporting"`
	Retention     RetentionConfig     `mapstructure:"retention"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Admin         AdminConfig         `mapstructure:"admin"`
	Archive       ArchiveConfig       `mapstructure:"archive"`
}

type ServerConfig struct {
	ListenAddr            string        `mapstructure:"listen_addr"`
	BodyLimitMB           int           `mapstructure:"body_limit_mb"`
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`
	IdleTimeout           time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdownDelay time.Duration `mapstructure:"graceful_shutdown_delay"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	RunMigrations   bool          `mapstructure:"run_migrations"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MinConns        int32         `mapstructure:"min_conns"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// PricingConfig controls cost computation for assistant messages.
// Default prices apply when a message's model has no catalog entry.
type PricingConfig struct {
	DefaultPromptPrice     float64 `mapstructure:"default_prompt_price"`
	DefaultCompletionPrice float64 `mapstructure:"default_completion_price"`
	DefaultExtraUnitPrice  float64 `mapstructure:"default_extra_unit_price"`
}

// CatalogSyncConfig controls the scheduled model-catalog reconciliation.
type CatalogSyncConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	SourceURL   string        `mapstructure:"source_url"`
	Schedule    string        `mapstructure:"schedule"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

type ReportingConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type RetentionConfig struct {
	DailyUsageDays int           `mapstructure:"daily_usage_days"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

type ObservabilityConfig struct {
	EnableOTLP    bool   `mapstructure:"enable_otlp"`
	EnableMetrics bool   `mapstructure:"enable_metrics"`
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`
}

type AdminConfig struct {
	// KeyHash is the argon2id hash of the operator key required by /admin routes.
	KeyHash        string        `mapstructure:"key_hash"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// ArchiveConfig controls where raw catalog-sync payloads are archived.
type ArchiveConfig struct {
	Enabled       bool            `mapstructure:"enabled"`
	Storage       string          `mapstructure:"storage"`
	EncryptionKey string          `mapstructure:"encryption_key"`
	Local         ArchiveLocal    `mapstructure:"local"`
	S3            ArchiveS3Config `mapstructure:"s3"`
}

type ArchiveLocal struct {
	Directory string `mapstructure:"directory"`
}

type ArchiveS3Config struct {
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// Options tweaks configuration loading (used by tests and auxiliary binaries).
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load returns the merged configuration sourced from YAML and environment variables.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	explicitFile := false
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		explicitFile = true
	} else {
		if cfg := os.Getenv("CHATSTORE_CONFIG_FILE"); cfg != "" {
			v.SetConfigFile(cfg)
			explicitFile = true
		}
	}

	if !explicitFile {
		// Allow standard lookup locations when no explicit file is provided.
		v.SetConfigName("chatstore")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("CHATSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(timeStringToDurationHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures required values are set and normalizes dependent defaults.
func (c *Config) Validate() error {
	var missing []string

	if c.Database.URL == "" {
		missing = append(missing, "CHATSTORE_DATABASE_URL")
	}
	if c.Redis.URL == "" {
		missing = append(missing, "CHATSTORE_REDIS_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Pricing.DefaultPromptPrice < 0 || c.Pricing.DefaultCompletionPrice < 0 || c.Pricing.DefaultExtraUnitPrice < 0 {
		return fmt.Errorf("pricing defaults must be >= 0")
	}

	if c.Database.RunMigrations && c.Database.MigrationsDir == "" {
		return fmt.Errorf("database.migrations_dir must be provided when run_migrations is true")
	}

	if c.CatalogSync.Enabled {
		if strings.TrimSpace(c.CatalogSync.SourceURL) == "" {
			return fmt.Errorf("catalog_sync.source_url must be provided when catalog_sync.enabled is true")
		}
		if strings.TrimSpace(c.CatalogSync.Schedule) == "" {
			return fmt.Errorf("catalog_sync.schedule must be provided when catalog_sync.enabled is true")
		}
		if c.CatalogSync.HTTPTimeout <= 0 {
			c.CatalogSync.HTTPTimeout = 30 * time.Second
		}
	}

	if c.Admin.JWTSecret != "" && c.Admin.AccessTokenTTL <= 0 {
		return fmt.Errorf("admin.access_token_ttl must be > 0 when admin.jwt_secret is set")
	}

	if c.Retention.DailyUsageDays < 0 {
		return fmt.Errorf("retention.daily_usage_days must be >= 0")
	}

	reportingTZ := strings.TrimSpace(c.Reporting.Timezone)
	if reportingTZ == "" {
		c.Reporting.Timezone = "UTC"
	} else if _, err := time.LoadLocation(reportingTZ); err != nil {
		return fmt.Errorf("reporting.timezone: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(c.Archive.Storage)) {
	case "", "local", "s3":
	default:
		return fmt.Errorf("archive.storage must be local or s3")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.body_limit_mb", 4)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.graceful_shutdown_delay", "5s")

	v.SetDefault("database.run_migrations", true)
	v.SetDefault("database.migrations_dir", "./migrations")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("pricing.default_prompt_price", 0)
	v.SetDefault("pricing.default_completion_price", 0)
	v.SetDefault("pricing.default_extra_unit_price", 0)

	v.SetDefault("catalog_sync.enabled", false)
	v.SetDefault("catalog_sync.schedule", "0 3 * * *")
	v.SetDefault("catalog_sync.http_timeout", "30s")

	v.SetDefault("reporting.timezone", "UTC")

	v.SetDefault("retention.daily_usage_days", 365)
	v.SetDefault("retention.sweep_interval", "24h")

	v.SetDefault("observability.enable_otlp", false)
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.otlp_endpoint", "http://localhost:4317")

	v.SetDefault("admin.access_token_ttl", "15m")

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.storage", "local")
	v.SetDefault("archive.local.directory", "./data/sync-payloads")
}

func timeStringToDurationHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, err
			}
			return d, nil
		default:
			return nil, fmt.Errorf("cannot decode %T into time.Duration", data)
		}
	}
}
