package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/totegamma/ilp3/internal/config"
)

var (
	// Global flags
	cfgFile  string
	logLevel string

	// Set during PersistentPreRunE
	conf config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ilp3",
	Short: "Send and receive conditional transfers over HTTP",
	Long: `ilp3 posts ILP transfers to a connector with a short-lived caveated
bearer token, runs a receiver that verifies tokens and releases
fulfillments, and mints tokens for connector URIs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogger(logLevel); err != nil {
			return err
		}

		if cfgFile == "" {
			conf = config.Default()
			return nil
		}
		var err error
		conf, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to YAML config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(mintCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setupLogger(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}
