package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/acme/campaign-dialer/internal/app"
	"github.com/acme/campaign-dialer/internal/telemetry"
	"github.com/acme/campaign-dialer/internal/worker/events"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", getEnv("CONFIG_FILE", "configs/config.yaml"), "path to configuration file")
	flag.Parse()

	container, err := app.Build(ctx, *configPath)
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer container.Close(context.Background())

	shutdown, err := telemetry.Setup(ctx, container.Config.Telemetry, container.Config.App.Name+"-dialer")
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	if err := container.EnsureTopics(ctx); err != nil {
		log.Fatalf("failed to ensure kafka topics: %v", err)
	}

	engine := container.Dialer()
	worker := events.New(container.Kafka, container.Config.Kafka, engine, container.Logger.Named("events"))

	errCh := make(chan error, 2)
	go func() { errCh <- engine.Run(ctx) }()
	go func() { errCh <- worker.Run(ctx) }()

	if err := <-errCh; err != nil && err != context.Canceled {
		log.Fatalf("dialer terminated: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
