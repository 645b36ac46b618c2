/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docregistry/apiserver/config"
	"github.com/docregistry/apiserver/internal/events"
	"github.com/docregistry/apiserver/internal/logger"
	"github.com/docregistry/apiserver/internal/mq"
)

var eventsChannel string

// eventsCmd groups audit event tooling.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect registry audit events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow audit events on the message queue and log them",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if eventsChannel != "" {
			cfg.MQ.Channel = eventsChannel
		}

		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		queue, err := mq.Open(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("no message queue configured, set MQ_BACKEND")
		}
		defer queue.Close()

		log.Info("tailing events", zap.String("backend", cfg.MQ.Backend), zap.String("channel", cfg.MQ.Channel))
		err = queue.Subscribe(cmd.Context(), cfg.MQ.Channel, logEvents(log))
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

// logEvents writes each decoded event as one log line.
func logEvents(log *logger.Logger) mq.Handler {
	return func(_ context.Context, msg mq.Message) error {
		event, err := events.Decode(msg)
		if err != nil {
			// Malformed payloads are dropped rather than redelivered forever.
			log.Warn("skipping message", zap.String("message_id", msg.ID), zap.Error(err))
			return nil
		}
		log.Info("event",
			zap.String("id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Int("actor_id", event.ActorID),
			zap.Int("subject_id", event.SubjectID),
			zap.Time("occurred_at", event.OccurredAt),
			zap.Any("data", event.Data),
		)
		return nil
	}
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsTailCmd.Flags().StringVar(&eventsChannel, "channel", "", "channel to follow (defaults to MQ_CHANNEL)")
	eventsCmd.AddCommand(eventsTailCmd)
}
