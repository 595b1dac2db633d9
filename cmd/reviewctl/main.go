package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/garyjia/discussion-review/internal/config"
	"github.com/garyjia/discussion-review/internal/container"
	"github.com/garyjia/discussion-review/pkg/utils"
)

var rootCmd = &cobra.Command{
	Use:   "reviewctl",
	Short: "Operate the discussion review workflow",
	Long: `reviewctl runs operator tasks against the review database:
status reconciliation, bottleneck and task reports, spreadsheet exports
and the authorized user list. It talks to the database directly and
acts as the system, so role checks for acting users do not apply.`,
	SilenceUsage: true,
}

func main() {
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("config", "c", "configs/config.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(bottlenecksCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(usersCmd())
}

// withContainer starts a worker-less container for one command and closes it after.
func withContainer(ctx context.Context, fn func(ctx context.Context, c *container.Container) error) error {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return err
	}

	// Logs go to stderr so tables and JSON stay clean on stdout
	logCfg := utils.LoggerConfig{Level: cfg.Logger.Level, OutputPath: cfg.Logger.OutputPath, Format: cfg.Logger.Format}
	if logCfg.OutputPath == "" || logCfg.OutputPath == "stdout" {
		logCfg.OutputPath = "stderr"
	}
	if cfg.Logger.Level == "info" {
		logCfg.Level = "warn"
	}
	logger, err := utils.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	cc := cfg.ToContainerConfig()
	cc.Worker.Enabled = false

	c, err := container.NewContainer(cc, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			logger.Error("Container shutdown error", zap.Error(cerr))
		}
	}()

	return fn(ctx, c)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
