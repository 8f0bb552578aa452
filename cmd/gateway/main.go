package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubham-shewale/quote-stream/cmd/gateway/internal/api"
	"github.com/shubham-shewale/quote-stream/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/quote-stream/cmd/gateway/internal/repository"
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

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	repo := repository.NewRedisStore(rdb)

	// Hub depends on the store interface only
	wsHub := hub.NewHub(repo, logger)

	validTickers := make(map[string]bool)
	for _, t := range cfg.Gateway.ValidTickers {
		validTickers[t] = true
	}

	router := api.NewRouter(api.NewServer(wsHub, repo, logger, validTickers))
	srv := &http.Server{Addr: cfg.App.Port, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Server Started", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown", zap.Error(err))
	}
	wsHub.Shutdown()
	if err := repo.Close(); err != nil {
		logger.Error("Closing Redis", zap.Error(err))
	}
	logger.Info("Shutdown Complete")
}
