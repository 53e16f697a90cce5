// Package bootstrap wires configuration into the backends, publishers and
// HTTP server shared by the three binaries.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/LennoxMacadangdang/caps-backend/internal/config"
	"github.com/LennoxMacadangdang/caps-backend/internal/events"
	"github.com/LennoxMacadangdang/caps-backend/internal/logger"
	"github.com/LennoxMacadangdang/caps-backend/internal/payment"
	"github.com/LennoxMacadangdang/caps-backend/internal/repository"
	"github.com/LennoxMacadangdang/caps-backend/internal/repository/memory"
	"github.com/LennoxMacadangdang/caps-backend/internal/repository/postgres"
	"github.com/LennoxMacadangdang/caps-backend/internal/repository/rest"
	"github.com/LennoxMacadangdang/caps-backend/internal/supabase"
	"go.uber.org/zap"
)

// Logger builds the service logger and installs it as the zap global.
func Logger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.New(cfg.Service, cfg.Environment, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	return log, nil
}

// Backend holds the repositories of the configured store. Uploader stores
// payment proofs: the POS project's Storage API, or the memory store. It is
// nil when neither is configured.
type Backend struct {
	Inventory    repository.InventoryRepository
	Orders       repository.OrderRepository
	Appointments repository.AppointmentRepository
	Uploader     payment.Uploader

	db *sql.DB
}

func (b *Backend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *Backend) supabaseClient(cfg *config.Config, name string, project config.SupabaseConfig) *supabase.Client {
	if project.URL == "" {
		return nil
	}
	return supabase.NewClient(project.URL, project.Key, supabase.Options{
		Name:        name,
		Timeout:     cfg.HTTP.RequestTimeout,
		MaxFailures: cfg.Breaker.MaxFailures,
		OpenTimeout: cfg.Breaker.OpenTimeout,
	})
}

// OpenBackend connects the store selected by cfg.Backend. The postgres
// backend runs migrations before returning.
func OpenBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Backend, error) {
	b := &Backend{}
	pos := b.supabaseClient(cfg, "pos", cfg.POS)
	if pos != nil {
		b.Uploader = pos
	}

	switch cfg.Backend {
	case config.BackendREST:
		if c := b.supabaseClient(cfg, "inventory", cfg.Inventory); c != nil {
			b.Inventory = rest.NewInventoryRepository(c)
		}
		if pos != nil {
			b.Orders = rest.NewOrderRepository(pos)
		}
		if c := b.supabaseClient(cfg, "appointments", cfg.Appointments); c != nil {
			b.Appointments = rest.NewAppointmentRepository(c)
		}
		log.Info("using supabase rest backend")

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrations(db, cfg.Database.MigrationsDirPath); err != nil {
			_ = db.Close()
			return nil, err
		}
		b.db = db
		b.Inventory = postgres.NewInventoryRepository(db)
		b.Orders = postgres.NewOrderRepository(db)
		b.Appointments = postgres.NewAppointmentRepository(db)
		log.Info("using postgres backend",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.DBName),
		)

	case config.BackendMemory:
		store := memory.NewStore()
		seedDemo(store)
		b.Inventory, b.Orders, b.Appointments = store, store, store
		if b.Uploader == nil {
			b.Uploader = store
		}
		log.Info("using in-memory backend", zap.Int("products", len(demoProducts)))

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	return b, nil
}

// Publisher returns a Kafka publisher, or events.Nop when no brokers are set.
func Publisher(cfg *config.Config, log *zap.Logger) events.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("event publishing disabled")
		return events.Nop{}
	}
	log.Info("publishing events",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
	)
	return events.NewKafkaPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
}

// Serve runs srv until ctx is done and then shuts it down within timeout.
func Serve(ctx context.Context, srv *http.Server, timeout time.Duration, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}

// NewServer applies the read, write and idle timeouts every binary uses.
func NewServer(port string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
