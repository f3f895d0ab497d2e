package testutil

import (
	"time"

	"github.com/ethpandaops/quake-harvester/internal/config"
)

// NewTestConfig returns a minimal valid standalone config for testing.
func NewTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: time.Second,
			LogLevel:        "info",
		},
	}
}
