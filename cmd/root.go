/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docregistry/apiserver/config"
	"github.com/docregistry/apiserver/internal/logger"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "docregistry",
	Short: "Office record registry backend",
	Long: `docregistry serves the office record registry: correspondents, their
address history and registered documents, over a GraphQL API.`,
}

// Execute adds all child commands to the root command and runs it with a
// context cancelled on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{Level: cfg.Logging.Level, DevMode: cfg.Logging.DevMode})
}
