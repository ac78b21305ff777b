// Package config loads server configuration from the environment. A local
// .env file is honored in development; real deployments set the variables
// directly.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable the server reads at startup.
type Config struct {
	ListenAddr string `env:"WOLFDEN_ADDR" envDefault:":8080"`
	DBPath     string `env:"WOLFDEN_DB" envDefault:"wolfden.db"`
	DevMode    bool   `env:"WOLFDEN_DEV" envDefault:"false"`

	// Timing knobs for the session pipelines.
	NightActionTimeout time.Duration `env:"WOLFDEN_NIGHT_TIMEOUT" envDefault:"60s"`
	WolfChatWindow     time.Duration `env:"WOLFDEN_WOLF_CHAT" envDefault:"45s"`
	NominationWindow   time.Duration `env:"WOLFDEN_NOMINATIONS" envDefault:"60s"`
	VoteTimeout        time.Duration `env:"WOLFDEN_VOTE_TIMEOUT" envDefault:"45s"`
	ReadDelay          time.Duration `env:"WOLFDEN_READ_DELAY" envDefault:"3s"`
}

// Load reads .env (if present) and parses the environment into a Config.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
