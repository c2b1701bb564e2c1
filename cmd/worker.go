/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"

	"github.com/eventra/authserver/config"
	"github.com/eventra/authserver/internal/mq"
	"github.com/eventra/authserver/internal/notify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// workerCmd consumes queued OTP deliveries and emails them.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Delivers queued OTP emails",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		if cfg.MQ.Backend == config.MQBackendNone {
			return errors.New("MQ_BACKEND must be set to run the worker")
		}

		queue, err := mq.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = queue.Close() }()

		var sender notify.Sender
		if cfg.SMTP.Host != "" {
			mailer, err := notify.NewMailer(cfg.SMTP)
			if err != nil {
				return err
			}
			sender = mailer
		} else {
			logger.Warn("SMTP_HOST not set, OTP deliveries are only logged")
			sender = notify.NewLogSender(logger)
		}

		logger.Info("connected to queue", zap.String("backend", cfg.MQ.Backend))
		err = notify.NewWorker(queue, cfg.MQ.OTPChannel, sender, logger).Run(cmd.Context())
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
