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
	"github.com/kitchenhub/order-relay/internal/config"
	"github.com/kitchenhub/order-relay/internal/httpx"
	kafkax "github.com/kitchenhub/order-relay/internal/kafka"
	"github.com/kitchenhub/order-relay/internal/postgres"
	"github.com/kitchenhub/order-relay/internal/redisx"
	"github.com/kitchenhub/order-relay/internal/relay"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := newLogger(cfg.Env)
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		sugar.Fatalw("db connect", "error", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	orderProd := kafkax.NewProducer(cfg.KafkaBrokers, relay.TopicOrderReceived, 1024, sugar)
	orderProd.Start(ctx)
	hsProd := kafkax.NewProducer(cfg.KafkaBrokers, relay.TopicHandshakeCompleted, 1024, sugar)
	hsProd.Start(ctx)

	// Repos & handlers
	registry := &relay.RegistryRepo{DB: db}
	handshakes := &relay.HandshakeRepo{DB: db}
	orders := &relay.OrderRepo{DB: db}

	router := httpx.NewRouter()
	(&httpx.RegisterHandler{Registry: registry, Log: sugar}).Register(router)
	(&httpx.HandshakeHandler{
		Handshakes: handshakes,
		Registry:   registry,
		Producer:   hsProd,
		Service:    cfg.ServiceName,
		Log:        sugar,
	}).Register(router)
	(&httpx.OrdersHandler{
		Orders:   orders,
		Registry: registry,
		Producer: orderProd,
		Redis:    rdb,
		Service:  cfg.ServiceName,
		Log:      sugar,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		sugar.Infow("HTTP listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("listen", "error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	sugar.Infow("shutting down", "signal", s.String())

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	orderProd.Close()
	hsProd.Close()
	cancel()
	orderProd.WaitClosed()
	hsProd.WaitClosed()
}

func newLogger(env string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	return logger
}
