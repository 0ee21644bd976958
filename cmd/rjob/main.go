// Package main is the entry point for the rjob CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hi-liyan/rjob/internal/config"
	"github.com/hi-liyan/rjob/internal/scheduler"
	"github.com/hi-liyan/rjob/pkg/app"
	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rjob:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rjob",
		Short:         "A config-driven HTTP cron runner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("rjob %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler with the configured jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			levelName, _ := cmd.Flags().GetString("log-level")

			level, err := parseLevel(levelName)
			if err != nil {
				return err
			}

			return app.Run(app.RunParams{
				ConfigPath: cfgPath,
				Version:    version,
				LogLevel:   level,
			})
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to the jobs file (default: discover jobs.json/jobs.yaml/jobs.yml)")
	cmd.Flags().String("log-level", "info", "Minimum log level (debug, info, warn, error)")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate a jobs file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			doc, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(doc); err != nil {
				return err
			}

			registry, err := config.BuildRegistry(doc, slog.Default())
			if err != nil {
				return err
			}
			if err := scheduler.CheckExpressions(registry); err != nil {
				return err
			}

			fmt.Printf("Configuration OK (%d jobs, %d enabled, timezone %s)\n",
				registry.Len(), registry.Enabled(), registry.Timezone())
			for _, j := range registry.Jobs() {
				state := "enabled"
				if !j.Enable {
					state = "disabled"
				}
				fmt.Printf("  %-20s %-16s %s (%s)\n", j.Name, j.Cron, j.Request.URL, state)
			}
			return nil
		},
	})
	return cmd
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid log level %q (expected debug, info, warn, or error)", name)
	}
	return level, nil
}
