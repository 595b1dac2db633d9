// Package container provides dependency injection and lifecycle management
// for the discussion review backend.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Lark     LarkConfig
	Export   ExportConfig
	Worker   WorkerConfig

	// BootstrapAdmin is ensured as an admin during Start when set
	BootstrapAdmin string
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LarkConfig holds Lark bot settings. Empty values disable chat notices.
type LarkConfig struct {
	AppID     string
	AppSecret string
	ChatID    string
}

// ExportConfig holds report export settings.
type ExportConfig struct {
	// Dir receives saved bottleneck workbooks
	Dir string
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	// Enabled is false for one-shot processes such as the CLI
	Enabled bool

	ReconcileInterval    time.Duration
	ReconcileTimeout     time.Duration
	ReconcileConcurrency int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/review.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Export: ExportConfig{
			Dir: "exports",
		},
		Worker: WorkerConfig{
			Enabled:              true,
			ReconcileTimeout:     5 * time.Minute,
			ReconcileConcurrency: 4,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Export.Dir == "" {
		return fmt.Errorf("export.dir is required")
	}
	if c.Worker.ReconcileConcurrency < 1 {
		return fmt.Errorf("worker.reconcile_concurrency must be at least 1")
	}
	return nil
}
