package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/quote-stream/cmd/generator/internal/generator"
	"github.com/shubham-shewale/quote-stream/pkg/codec"
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

	cdc, err := codec.ByName(cfg.Codec.Name)
	if err != nil {
		logger.Fatal("Invalid codec", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Ensure the topic exists before producing
	dialer := generator.BrokerDialer{Dialer: &kafka.Dialer{Timeout: 10 * time.Second}}
	tc := generator.NewTopicCreator(logger, dialer)
	if err := tc.Create(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions); err != nil {
		logger.Warn("Topic not confirmed, producing anyway", zap.Error(err))
	}

	writer := &kafka.Writer{
		Addr:  kafka.TCP(cfg.Kafka.Brokers...),
		Topic: cfg.Kafka.Topic,
		// Same company -> same partition, so consumers see a company's quotes in order
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Kafka async write failed", zap.Error(err), zap.Int("messages", len(messages)))
			}
		},
	}

	gen := generator.NewQuoteGenerator(
		logger,
		writer,
		cfg.Generator.Companies,
		cfg.Generator.BasePrices,
		generator.NewSeededRand(),
		generator.SystemClock{},
		generator.WithInterval(cfg.Generator.Interval),
		generator.WithMaxStep(cfg.Generator.MaxStep),
		generator.WithCodec(cdc),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		gen.Run(ctx)
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")
	<-done

	// Flushes the async buffer
	if err := writer.Close(); err != nil {
		logger.Error("Error closing Kafka writer", zap.Error(err))
	} else {
		logger.Info("Kafka writer closed cleanly")
	}
}
