// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime settings, parsed from PICIS_* environment
// variables.
type Config struct {
	Port    int    `env:"PICIS_PORT" envDefault:"3001"`
	DataDir string `env:"PICIS_DATA_DIR" envDefault:"./data"`
	// Backend selects the entity store: memory or bbolt.
	Backend string `env:"PICIS_BACKEND" envDefault:"bbolt"`
	// RedisAddr enables Redis-backed sessions when set.
	RedisAddr string `env:"PICIS_REDIS_ADDR"`

	GoogleClientID     string `env:"PICIS_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"PICIS_GOOGLE_CLIENT_SECRET"`
	// CallbackBase is the externally reachable base URL for OAuth
	// callbacks.
	CallbackBase   string `env:"PICIS_CALLBACK_BASE" envDefault:"http://localhost:3001"`
	FrontendOrigin string `env:"PICIS_FRONTEND_ORIGIN" envDefault:"http://localhost:5173"`
	// StateSecret signs the OAuth state parameter.
	StateSecret string `env:"PICIS_STATE_SECRET"`

	SessionTTL         time.Duration `env:"PICIS_SESSION_TTL" envDefault:"12h"`
	SessionIdleTimeout time.Duration `env:"PICIS_SESSION_IDLE_TIMEOUT" envDefault:"30m"`

	ClientFacingTimeout time.Duration `env:"PICIS_CLIENT_FACING_TIMEOUT" envDefault:"15m"`
	InternalTimeout     time.Duration `env:"PICIS_INTERNAL_TIMEOUT" envDefault:"10m"`
	ActionWindow        time.Duration `env:"PICIS_ACTION_WINDOW" envDefault:"20m"`

	// RoleAssignments maps emails to roles, e.g.
	// "ana@example.com:supervisor,luis@example.com:responsible".
	RoleAssignments map[string]string `env:"PICIS_ROLE_ASSIGNMENTS"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.Backend != "memory" && cfg.Backend != "bbolt" {
		return Config{}, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	return cfg, nil
}
