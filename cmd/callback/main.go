package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kitchenhub/order-relay/internal/callback"
	"github.com/kitchenhub/order-relay/internal/config"
	kafkax "github.com/kitchenhub/order-relay/internal/kafka"
	"github.com/kitchenhub/order-relay/internal/redisx"
	"github.com/kitchenhub/order-relay/internal/relay"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if cfg.Env != "production" {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &callback.Service{
		Redis:       rdb,
		HTTP:        &http.Client{Timeout: 10 * time.Second},
		Log:         sugar,
		MaxAttempts: 3,
	}

	orderCons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.CallbackGroup, relay.TopicOrderReceived, cfg.CallbackWorkers, sugar)
	hsCons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.CallbackGroup, relay.TopicHandshakeCompleted, cfg.CallbackWorkers, sugar)

	go func() {
		sugar.Infow("callback consumer started", "group", cfg.CallbackGroup, "topic", relay.TopicOrderReceived)
		if err := orderCons.Start(ctx, svc.HandleOrderReceived); err != nil {
			sugar.Errorw("order consumer exit", "error", err)
			cancel()
		}
	}()
	go func() {
		sugar.Infow("callback consumer started", "group", cfg.CallbackGroup, "topic", relay.TopicHandshakeCompleted)
		if err := hsCons.Start(ctx, svc.HandleHandshakeCompleted); err != nil {
			sugar.Errorw("handshake consumer exit", "error", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	sugar.Info("shutting down callback dispatcher...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
