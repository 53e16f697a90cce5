package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/LennoxMacadangdang/caps-backend/internal/bootstrap"
	"github.com/LennoxMacadangdang/caps-backend/internal/config"
	"github.com/LennoxMacadangdang/caps-backend/internal/events"
	httpapi "github.com/LennoxMacadangdang/caps-backend/internal/http"
	"github.com/LennoxMacadangdang/caps-backend/internal/logger"
	"github.com/LennoxMacadangdang/caps-backend/internal/metrics"
	"github.com/LennoxMacadangdang/caps-backend/internal/orders"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("sales")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	zlog, err := bootstrap.Logger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New("sales")

	backend, err := bootstrap.OpenBackend(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to open backend", zap.Error(err))
	}
	defer backend.Close()

	// Sales ledger fed from the event topic
	var wg sync.WaitGroup
	consumerCtx, consumerCancel := context.WithCancel(logger.WithContext(context.Background(), zlog))
	var consumer *events.Consumer
	if len(cfg.Kafka.Brokers) > 0 {
		ledger := orders.NewLedger(m)
		consumer = events.NewConsumer(cfg.Kafka.Topic, "sales", ledger.Handle, cfg.Kafka.Brokers...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(consumerCtx)
		}()
		zlog.Info("Consuming events", zap.String("topic", cfg.Kafka.Topic))
	}

	service := orders.NewService(backend.Orders)
	handler := httpapi.NewOrdersHandler(service, cfg.HTTP.RequestTimeout)
	router := httpapi.NewSalesRouter(httpapi.RouterConfig{
		Service:            "sales",
		Logger:             zlog,
		Metrics:            m,
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
	}, handler)

	srv := bootstrap.NewServer(cfg.Port, router)
	if err := bootstrap.Serve(ctx, srv, cfg.HTTP.ShutdownTimeout, zlog); err != nil {
		zlog.Error("Sales service stopped with error", zap.Error(err))
	}

	consumerCancel()
	if consumer != nil {
		doneChan := make(chan struct{})
		go func() {
			wg.Wait()
			close(doneChan)
		}()
		select {
		case <-doneChan:
			zlog.Info("Consumer stopped cleanly")
		case <-time.After(5 * time.Second):
			zlog.Warn("Consumer didn't stop in time")
		}
		if err := consumer.Close(); err != nil {
			zlog.Warn("Failed to close event consumer", zap.Error(err))
		}
	}
	zlog.Info("Sales service stopped")
}
