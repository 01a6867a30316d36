package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-notify-nosql/internal/config"
	"github.com/go-notify-nosql/internal/infrastructure/dynamo"
	"github.com/go-notify-nosql/internal/infrastructure/push"
	"github.com/go-notify-nosql/internal/worker"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	jobRepo := dynamo.NewJobRepo(dynamoClient, cfg.DynamoTables.Jobs)
	notifRepo := dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications, cfg.DynamoTables.Jobs)
	tokenRepo := dynamo.NewTokenRepo(dynamoClient, cfg.DynamoTables.DeviceTokens)

	dispatcher := push.New(cfg, logger)

	w := worker.New(jobRepo, notifRepo, tokenRepo, dispatcher, cfg.WorkerPollInterval, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("worker starting", "poll_interval", cfg.WorkerPollInterval.String())
	w.Run(ctx)
	logger.Info("worker stopped")
}
