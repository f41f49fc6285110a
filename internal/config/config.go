// internal/config/config.go
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the server configuration sourced from environment variables.
// A .env file, if present, is loaded by the godotenv autoload import in
// cmd/server before this is parsed.
type Config struct {
	// Port is the HTTP/WebSocket listening port.
	Port int `env:"PORT" envDefault:"3000"`

	// StaticDir is the directory served at the root path for client assets.
	StaticDir string `env:"STATIC_DIR" envDefault:"./public"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
