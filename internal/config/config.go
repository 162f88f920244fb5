package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DriverCSV      = "csv"
	DriverPostgres = "postgres"

	ModeShared  = "shared"
	ModePerUser = "per-user"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Sales Ledger"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	Storage struct {
		Driver      string `envconfig:"STORAGE_DRIVER" default:"csv"`
		Dir         string `envconfig:"DATA_DIR" default:"data"`
		DatabaseURL string `envconfig:"DATABASE_URL"`
	}

	Ledger struct {
		Mode       string `envconfig:"LEDGER_MODE" default:"per-user"`
		SharedName string `envconfig:"LEDGER_SHARED_NAME" default:"erp_data"`
	}

	Auth struct {
		Hasher        string        `envconfig:"PASSWORD_HASHER" default:"bcrypt"`
		Secret        string        `envconfig:"AUTH_SECRET"`
		TokenTTL      time.Duration `envconfig:"AUTH_TOKEN_TTL" default:"8h"`
		AllowedOrigin string        `envconfig:"ALLOWED_ORIGIN" default:"http://localhost:3000"`
	}

	Log struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info"`
		Format string `envconfig:"LOG_FORMAT" default:"json"`
		Output string `envconfig:"LOG_OUTPUT" default:"stderr"`
	}
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is fine; the environment may carry everything.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	switch c.Storage.Driver {
	case DriverCSV:
		if c.Storage.Dir == "" {
			return errors.New("DATA_DIR must not be empty")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be provided for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}

	switch c.Ledger.Mode {
	case ModeShared:
		if c.Ledger.SharedName == "" {
			return errors.New("LEDGER_SHARED_NAME must not be empty in shared mode")
		}
	case ModePerUser:
	default:
		return fmt.Errorf("unknown LEDGER_MODE %q", c.Ledger.Mode)
	}

	switch c.Auth.Hasher {
	case "bcrypt", "sha256":
	default:
		return fmt.Errorf("unknown PASSWORD_HASHER %q", c.Auth.Hasher)
	}

	if c.Auth.TokenTTL <= 0 {
		return errors.New("AUTH_TOKEN_TTL must be positive")
	}

	return nil
}
