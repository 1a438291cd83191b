package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rzayevsahil/Monity/internal/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the Monity configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	fmt.Println("✅ Configuration is valid")

	bold := color.New(color.Bold)
	bold.Println("\nEffective settings:")
	fmt.Printf("  database.path          %s\n", cfg.Database.Path)
	fmt.Printf("  logging.level          %s\n", cfg.Logging.Level)
	fmt.Printf("  logging.format         %s\n", cfg.Logging.Format)
	fmt.Printf("  tracking.poll_interval %s\n", cfg.Tracking.ParsedPollInterval())
	fmt.Printf("  tracking.idle_threshold %s\n", cfg.Tracking.ParsedIdleThreshold())
	fmt.Printf("  buffer.flush_count     %d\n", cfg.Buffer.FlushCount)
	fmt.Printf("  buffer.flush_interval  %s\n", cfg.Buffer.ParsedFlushInterval())
	fmt.Printf("  limits.enabled         %t\n", cfg.Limits.Enabled)
	fmt.Printf("  retention.days         %d\n", cfg.Retention.Days)
	fmt.Printf("  metrics.enabled        %t\n", cfg.Metrics.Enabled)
	if cfg.Metrics.Enabled {
		fmt.Printf("  metrics.addr           %s:%d\n", cfg.Metrics.BindAddress, cfg.Metrics.Port)
	}
	return nil
}
