package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"say-hi/broker"
	"say-hi/internal"
	"say-hi/services"
	"say-hi/workers"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run owns the mail service: one MAIL_QUEUE consumer draining OTP
// notifications into an SMTP submission endpoint.
func run() error {
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mailer, err := services.NewSMTPMailer(services.SMTPConfig{
		Host:     config.SMTPHost,
		Port:     config.SMTPPort,
		Username: config.SMTPUsername,
		Password: config.SMTPPassword,
		From:     config.MailFrom,
	}, log)
	if err != nil {
		return fmt.Errorf("smtp setup failed: %w", err)
	}
	mailService := services.NewMailService(mailer, log)

	ch := broker.NewChannel(log, config.AmqpURL)
	if err := ch.Connect(ctx); err != nil {
		return fmt.Errorf("broker connection failed: %w", err)
	}
	defer ch.Close()

	consumer := broker.NewConsumer(ch, log, config.Prefetch)
	sup := workers.NewSupervisor(log).Add(
		workers.NewQueueWorker(consumer, broker.MailQueue, services.MailActions(mailService, log), false),
		workers.NewHealthWorker(log, "mail", config.HealthInterval),
	)

	log.Info("Mail service started")
	sup.Run(ctx)
	log.Info("Program stopped cleanly")
	return nil
}
