package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"say-hi/auth"
	"say-hi/broker"
	"say-hi/internal"
	"say-hi/moderation"
	"say-hi/presence"
	"say-hi/realtime"
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

// run owns the delivery engine: the CHAT_QUEUE consumer, the websocket
// endpoint and the presence registry they share. Both faces must live in
// one process because seen-on-arrival reads presence at delivery time.
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

	ch := broker.NewChannel(log, config.AmqpURL)
	if err := ch.Connect(ctx); err != nil {
		return fmt.Errorf("broker connection failed: %w", err)
	}
	defer ch.Close()

	censoredChar, err := internal.CharacterRune(config.ModerationCharReplacement)
	if err != nil {
		return err
	}
	moderator, err := moderation.NewModerator(moderation.DefaultWords(), censoredChar, log)
	if err != nil {
		return fmt.Errorf("moderator setup failed: %w", err)
	}

	registry := presence.NewRegistry()
	hub := realtime.NewHub(registry, log)
	rpc := broker.NewRPCClient(ch, log)
	chatService := services.NewChatService(
		repositories.NewConversationRepository(db, log),
		repositories.NewMessageRepository(db, log),
		registry, hub, &moderator, rpc, log,
	)

	consumer := broker.NewConsumer(ch, log, config.Prefetch)
	sup := workers.NewSupervisor(log).Add(
		workers.NewQueueWorker(consumer, broker.ChatQueue, services.ChatActions(chatService), false),
		workers.NewHealthWorker(log, "chat", config.HealthInterval),
	)
	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	mux := http.NewServeMux()
	mux.Handle("/ws", realtime.NewHandler(hub, registry, chatService, log))
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting websocket endpoint", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("websocket server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown was not clean", "error", err)
	}
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")
	return nil
}
