package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/LennoxMacadangdang/caps-backend/internal/bootstrap"
	"github.com/LennoxMacadangdang/caps-backend/internal/cart"
	"github.com/LennoxMacadangdang/caps-backend/internal/catalog"
	"github.com/LennoxMacadangdang/caps-backend/internal/checkout"
	"github.com/LennoxMacadangdang/caps-backend/internal/config"
	httpapi "github.com/LennoxMacadangdang/caps-backend/internal/http"
	"github.com/LennoxMacadangdang/caps-backend/internal/metrics"
	"github.com/LennoxMacadangdang/caps-backend/internal/orders"
	"github.com/LennoxMacadangdang/caps-backend/internal/payment"
	"github.com/LennoxMacadangdang/caps-backend/internal/stock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("inventory")
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

	m := metrics.New("inventory")

	backend, err := bootstrap.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open backend", zap.Error(err))
	}
	defer backend.Close()

	// Carts
	mongoDB, err := cart.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer mongoDB.Client().Disconnect(context.Background())

	cartRepo := cart.NewMongoRepository(mongoDB)
	if err := cartRepo.CreateIndexes(ctx); err != nil {
		logger.Fatal("Failed to create cart indexes", zap.Error(err))
	}
	logger.Info("Connected to MongoDB", zap.String("database", cfg.Mongo.DBName))

	var cache cart.Cache = cart.NopCache{}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, cart cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	} else {
		cache = cart.NewRedisCache(redisClient, cfg.Redis.TTL)
		logger.Info("Redis ping succeeded", zap.String("addr", cfg.Redis.Addr))
	}

	publisher := bootstrap.Publisher(cfg, logger)
	defer publisher.Close()

	catalogService := catalog.NewService(backend.Inventory, cfg.Catalog.ProductCategoryID)
	cartService := cart.NewService(cartRepo, cache, catalogService)
	deductor := stock.NewDeductor(catalogService, backend.Inventory, m)
	proofs := payment.NewStore(backend.Uploader, cfg.Storage.Bucket)
	orderService := orders.NewService(backend.Orders)
	checkoutService := checkout.NewService(cartService, deductor, proofs, orderService, publisher, m)

	handler := httpapi.NewInventoryHandler(catalogService, cartService, checkoutService, cfg.HTTP.RequestTimeout)
	router := httpapi.NewInventoryRouter(httpapi.RouterConfig{
		Service:            "inventory",
		Logger:             logger,
		Metrics:            m,
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
	}, handler)

	srv := bootstrap.NewServer(cfg.Port, router)
	if err := bootstrap.Serve(ctx, srv, cfg.HTTP.ShutdownTimeout, logger); err != nil {
		logger.Error("Inventory service stopped with error", zap.Error(err))
		return
	}
	logger.Info("Inventory service stopped")
}
