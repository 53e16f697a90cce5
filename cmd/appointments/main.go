package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/LennoxMacadangdang/caps-backend/internal/appointment"
	"github.com/LennoxMacadangdang/caps-backend/internal/bootstrap"
	"github.com/LennoxMacadangdang/caps-backend/internal/catalog"
	"github.com/LennoxMacadangdang/caps-backend/internal/config"
	httpapi "github.com/LennoxMacadangdang/caps-backend/internal/http"
	"github.com/LennoxMacadangdang/caps-backend/internal/metrics"
	"github.com/LennoxMacadangdang/caps-backend/internal/stock"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("appointments")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := bootstrap.Logger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New("appointments")

	backend, err := bootstrap.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open backend", zap.Error(err))
	}
	defer backend.Close()

	publisher := bootstrap.Publisher(cfg, logger)
	defer publisher.Close()

	// Completing an appointment consumes the service's linked products from
	// the inventory project.
	catalogService := catalog.NewService(backend.Inventory, cfg.Catalog.ProductCategoryID)
	deductor := stock.NewDeductor(catalogService, backend.Inventory, m)
	service := appointment.NewService(backend.Appointments, deductor, publisher, m)

	handler := httpapi.NewAppointmentsHandler(service, cfg.HTTP.RequestTimeout)
	router := httpapi.NewAppointmentsRouter(httpapi.RouterConfig{
		Service:            "appointments",
		Logger:             logger,
		Metrics:            m,
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
	}, handler)

	srv := bootstrap.NewServer(cfg.Port, router)
	if err := bootstrap.Serve(ctx, srv, cfg.HTTP.ShutdownTimeout, logger); err != nil {
		logger.Error("Appointments service stopped with error", zap.Error(err))
		return
	}
	logger.Info("Appointments service stopped")
}
