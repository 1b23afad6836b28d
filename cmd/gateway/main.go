package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"say-hi/auth"
	"say-hi/broker"
	"say-hi/gateway"
	"say-hi/internal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and centralizes error reporting, so every
// defer executes before the process exits.
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

	ch := broker.NewChannel(log, config.AmqpURL)
	if err := ch.Connect(ctx); err != nil {
		return fmt.Errorf("broker connection failed: %w", err)
	}
	defer ch.Close()

	rpc := broker.NewRPCClient(ch, log)
	app := gateway.NewApp(gateway.NewHandler(rpc, config.RPCTimeout, log))

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP gateway", "address", address, "at", time.Now().UTC())
		if err := app.Listen(address); err != nil {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Error("Shutdown was not clean", "error", err)
	}
	log.Info("Program stopped cleanly")
	return nil
}
