package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/quote-stream/cmd/processor/internal/processor"
	"github.com/shubham-shewale/quote-stream/pkg/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := waitForRedis(ctx, rdb, logger); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.Topic,
		GroupID:  cfg.Kafka.GroupID,
		MinBytes: 200,
		MaxBytes: 10e6,
		MaxWait:  200 * time.Millisecond,
		// Auto-commit; duplicates are absorbed by the per-company Equal check
		CommitInterval:    time.Second,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    10 * time.Second,
	})

	proc := processor.NewProcessor(cfg, logger, rdb, reader)
	if err := proc.Run(ctx); err != nil {
		logger.Error("Processor stopped with error", zap.Error(err))
	}

	logger.Info("Closing Kafka Reader...")
	if err := reader.Close(); err != nil {
		logger.Error("Error closing reader", zap.Error(err))
	}

	logger.Info("Closing Redis...")
	rdb.Close()

	logger.Info("Processor exited cleanly")
}

func waitForRedis(ctx context.Context, rdb *redis.Client, logger *zap.Logger) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	return backoff.RetryNotify(func() error {
		return rdb.Ping(ctx).Err()
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		logger.Warn("Redis not reachable yet", zap.Error(err), zap.Duration("retry_in", next))
	})
}
