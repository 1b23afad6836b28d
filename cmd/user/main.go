package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"say-hi/auth"
	"say-hi/broker"
	"say-hi/internal"
	"say-hi/repositories"
	"say-hi/services"
	"say-hi/workers"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run owns the lifecycle of the account service: the AUTH_QUEUE and
// USER_QUEUE consumers under one supervisor, BadgerDB for accounts and
// Redis for OTP and login sessions.
func run() error {
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	auth.SetSigningKey(config.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	redisClient, err := repositories.NewRedisClient(ctx, config.RedisURL)
	if err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	defer redisClient.Close()

	ch := broker.NewChannel(log, config.AmqpURL)
	if err := ch.Connect(ctx); err != nil {
		return fmt.Errorf("broker connection failed: %w", err)
	}
	defer ch.Close()

	users := repositories.NewUserRepository(db, log)
	sessions := repositories.NewSessionStore(redisClient, log)
	notifier := broker.NewRPCClient(ch, log)
	authService := services.NewAuthService(users, sessions, notifier, config.AuthTokenDuration, log)

	consumer := broker.NewConsumer(ch, log, config.Prefetch)
	sup := workers.NewSupervisor(log).Add(
		workers.NewQueueWorker(consumer, broker.AuthQueue, services.AuthActions(authService), false),
		workers.NewQueueWorker(consumer, broker.UserQueue, services.UserActions(authService), false),
		workers.NewHealthWorker(log, "user", config.HealthInterval),
	)

	log.Info("User service started")
	sup.Run(ctx)
	log.Info("Program stopped cleanly")
	return nil
}
