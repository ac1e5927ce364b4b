// Package config defines service configuration and its loader.
//
// Defaults come from New. Load layers an optional YAML file and ECHELON_
// environment variables on top of them.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/echelon/internal/domain/model"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreBackend selects the record store: memory or postgres.
	StoreBackend string `koanf:"store_backend"`

	// DatabaseURL is the pgx connection string used by the postgres backend.
	DatabaseURL string `koanf:"database_url"`

	// DatabaseMaxConns caps the Postgres pool. Zero keeps the pgx default.
	DatabaseMaxConns int32 `koanf:"database_max_conns"`

	// RedisAddr enables the sorted-set leaderboard mirror when set.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// AuthSecret switches caller identity from the wallet header to HS256
	// bearer tokens.
	AuthSecret string `koanf:"auth_secret"`
	// AuthIssuer, when set, is required as the token "iss" claim.
	AuthIssuer string `koanf:"auth_issuer"`

	// DefaultLeaderboardLimit applies when GET /leaderboard has no limit;
	// MaxLeaderboardLimit caps it.
	DefaultLeaderboardLimit int `koanf:"default_leaderboard_limit"`
	MaxLeaderboardLimit     int `koanf:"max_leaderboard_limit"`

	// DefaultHistoryLimit bounds a player's history listing.
	DefaultHistoryLimit int `koanf:"default_history_limit"`

	// LivePushBuffer is the per-subscriber queue depth of the live hub.
	LivePushBuffer int `koanf:"live_push_buffer"`
	// LiveWriteTimeout bounds a single websocket write.
	LiveWriteTimeout time.Duration `koanf:"live_write_timeout"`
	// LiveAllowedOrigins lists cross-origin host patterns accepted by the
	// websocket upgrade. Empty allows same-origin only; "*" allows any.
	LiveAllowedOrigins []string `koanf:"live_allowed_origins"`

	// MetricsRefreshInterval is how often system gauges are sampled.
	MetricsRefreshInterval time.Duration `koanf:"metrics_refresh_interval"`

	// Drills is seeded into the store at startup.
	Drills []model.Drill `koanf:"drills"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		Addr:                    ":9080",
		StoreBackend:            BackendMemory,
		DefaultLeaderboardLimit: 10,
		MaxLeaderboardLimit:     100,
		DefaultHistoryLimit:     20,
		LivePushBuffer:          16,
		LiveWriteTimeout:        5 * time.Second,
		MetricsRefreshInterval:  10 * time.Second,
		Drills: []model.Drill{
			{ID: "pattern-recall", Name: "Pattern Recall", Category: model.CategoryCognition, Difficulty: "medium", BaseCredits: 100, BaseXP: 50},
			{ID: "reaction-burst", Name: "Reaction Burst", Category: model.CategoryReflex, Difficulty: "easy", BaseCredits: 80, BaseXP: 40},
			{ID: "sharpshooter", Name: "Sharpshooter", Category: model.CategoryAccuracy, Difficulty: "hard", BaseCredits: 120, BaseXP: 60},
			{ID: "endurance-run", Name: "Endurance Run", Category: model.CategoryEndurance, Difficulty: "medium", BaseCredits: 150, BaseXP: 75},
		},
	}
}

// Validate checks the settings that the process cannot start without.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StoreBackend != BackendMemory && c.StoreBackend != BackendPostgres:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	case c.StoreBackend == BackendPostgres && c.DatabaseURL == "":
		return fmt.Errorf("%w: database_url is required for the postgres backend", ErrInvalidConfig)
	case c.DefaultLeaderboardLimit < 1 || c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: leaderboard limits must be positive", ErrInvalidConfig)
	case c.DefaultLeaderboardLimit > c.MaxLeaderboardLimit:
		return fmt.Errorf("%w: default_leaderboard_limit exceeds max_leaderboard_limit", ErrInvalidConfig)
	case c.DefaultHistoryLimit < 1:
		return fmt.Errorf("%w: default_history_limit must be positive", ErrInvalidConfig)
	case c.LivePushBuffer < 1:
		return fmt.Errorf("%w: live_push_buffer must be positive", ErrInvalidConfig)
	case c.DatabaseMaxConns < 0:
		return fmt.Errorf("%w: database_max_conns must not be negative", ErrInvalidConfig)
	case c.LiveWriteTimeout <= 0 || c.MetricsRefreshInterval <= 0:
		return fmt.Errorf("%w: live_write_timeout and metrics_refresh_interval must be positive", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(c.Drills))
	for i, d := range c.Drills {
		id := strings.TrimSpace(d.ID)
		if id == "" {
			return fmt.Errorf("%w: drills[%d] has no id", ErrInvalidConfig, i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate drill id %q", ErrInvalidConfig, id)
		}
		if d.BaseCredits < 0 || d.BaseXP < 0 {
			return fmt.Errorf("%w: drill %q has negative base rewards", ErrInvalidConfig, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
