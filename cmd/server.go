/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docregistry/apiserver/config"
	"github.com/docregistry/apiserver/internal/server"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the docregistry backend server",
	Long: `Starts the docregistry backend server. Usage:

	docregistry server
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		srv, err := server.New(cmd.Context(), cfg, log)
		if err != nil {
			log.Error("failed to start server", zap.Error(err))
			return fmt.Errorf("start server: %w", err)
		}
		if err := srv.Run(cmd.Context()); err != nil {
			log.Error("server error", zap.Error(err))
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
