package config

import (
	"github.com/garyjia/discussion-review/internal/container"
)

// ToContainerConfig converts the file-based configuration loaded by viper
// into the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Lark: container.LarkConfig{
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			ChatID:    c.Lark.ChatID,
		},
		Export: container.ExportConfig{
			Dir: c.Export.Dir,
		},
		Worker: container.WorkerConfig{
			Enabled:              true,
			ReconcileInterval:    c.Workflow.ReconcileInterval,
			ReconcileTimeout:     c.Workflow.ReconcileTimeout,
			ReconcileConcurrency: c.Workflow.ReconcileConcurrency,
		},
		BootstrapAdmin: c.Workflow.BootstrapAdmin,
	}
}
