package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrWorkingHourNotFound = errors.New("working hour not found")

	// ErrStockChanged means a conditional stock write found a different stock
	// value than the one it was computed from.
	ErrStockChanged = errors.New("stock changed since it was read")

	// ErrInsufficientStock is returned by backends that check stock inside
	// the write itself.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrStatusChanged means a conditional status write found the appointment
	// in another status.
	ErrStatusChanged = errors.New("appointment status changed")
)

// StockWriteError names the product whose stock write failed.
type StockWriteError struct {
	ProductID int64
	Err       error
}

func (e *StockWriteError) Error() string {
	return fmt.Sprintf("stock write for product %d: %v", e.ProductID, e.Err)
}

func (e *StockWriteError) Unwrap() error { return e.Err }

// StockWrite sets a product's stock from Expected to Expected-Quantity.
type StockWrite struct {
	ProductID int64
	Name      string
	Quantity  int
	Expected  int
}

// InventoryRepository reads the catalog and writes stock. Batch lookups omit
// unknown ids instead of failing.
type InventoryRepository interface {
	GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
	ListProducts(ctx context.Context, categoryID int64) ([]*domain.Product, error)
	GetServices(ctx context.Context, ids []int64) (map[int64]*domain.Service, error)
	ListServices(ctx context.Context) ([]*domain.Service, error)
	GetServiceLinks(ctx context.Context, serviceIDs []int64) ([]domain.ServiceProductLink, error)

	// ApplyStock performs the writes in order. Implementations that can run
	// them atomically do so; otherwise the returned count says how many
	// writes were committed before the error. Write failures come back as
	// *StockWriteError.
	ApplyStock(ctx context.Context, writes []StockWrite) (applied int, err error)

	// Atomic reports whether ApplyStock is all-or-nothing.
	Atomic() bool
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	ListOrders(ctx context.Context) ([]*domain.Order, error)
	DeleteOrder(ctx context.Context, id int64) error
}

type AppointmentRepository interface {
	GetAppointment(ctx context.Context, id int64) (*domain.Appointment, error)
	ListByStatus(ctx context.Context, statuses ...domain.AppointmentStatus) ([]*domain.Appointment, error)

	// UpdateStatus applies upd only while the appointment is still in from.
	// It returns ErrStatusChanged when the row exists in another status.
	UpdateStatus(ctx context.Context, id int64, from domain.AppointmentStatus, upd domain.AppointmentUpdate) (*domain.Appointment, error)

	GetWorkingHour(ctx context.Context, timeID int64) (string, error)
	InsertHistory(ctx context.Context, entry domain.HistoryEntry) error
}
