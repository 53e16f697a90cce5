package http

import (
	"context"

	"github.com/LennoxMacadangdang/caps-backend/internal/apperr"
	"github.com/LennoxMacadangdang/caps-backend/internal/cart"
	"github.com/LennoxMacadangdang/caps-backend/internal/checkout"
	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
)

func errNotFound(format string, args ...any) error {
	return apperr.NotFound(format, args...)
}

type CatalogMock struct {
	products []*domain.Product
	services []*domain.Service
	err      error
}

func (m *CatalogMock) ListProducts(context.Context) ([]*domain.Product, error) {
	return m.products, m.err
}

func (m *CatalogMock) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, errNotFound("Product not found")
}

func (m *CatalogMock) ListServices(context.Context) ([]*domain.Service, error) {
	return m.services, m.err
}

func (m *CatalogMock) GetService(_ context.Context, id int64) (*domain.Service, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, s := range m.services {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, errNotFound("Service not found")
}

// CartMock keeps lines per session and records the calls it receives.
type CartMock struct {
	carts    map[string][]domain.CartLine
	sessions []string
	err      error
}

func newCartMock() *CartMock {
	return &CartMock{carts: map[string][]domain.CartLine{}}
}

func (m *CartMock) Snapshot(_ context.Context, sessionID string) (*domain.Cart, error) {
	m.sessions = append(m.sessions, sessionID)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Cart{SessionID: sessionID, Items: m.carts[sessionID]}, nil
}

func (m *CartMock) Add(_ context.Context, sessionID string, req cart.AddRequest) (*domain.Cart, error) {
	m.sessions = append(m.sessions, sessionID)
	if m.err != nil {
		return nil, m.err
	}
	size, _ := domain.ParseSizeTier(req.Size)
	m.carts[sessionID] = append(m.carts[sessionID], domain.CartLine{
		ID: int64(req.ID), Type: req.Type, Quantity: req.Quantity, Size: size, Name: "Item",
	})
	return &domain.Cart{SessionID: sessionID, Items: m.carts[sessionID]}, nil
}

func (m *CartMock) RemoveOne(_ context.Context, sessionID string, req cart.RemoveRequest) (*domain.Cart, error) {
	m.sessions = append(m.sessions, sessionID)
	if m.err != nil {
		return nil, m.err
	}
	lines := m.carts[sessionID]
	for i, l := range lines {
		if l.ID == int64(req.ID) && l.Type == req.Type {
			m.carts[sessionID] = append(lines[:i:i], lines[i+1:]...)
			return &domain.Cart{SessionID: sessionID, Items: m.carts[sessionID]}, nil
		}
	}
	return nil, errNotFound("Item not found in cart")
}

func (m *CartMock) Clear(_ context.Context, sessionID string) error {
	m.sessions = append(m.sessions, sessionID)
	if m.err != nil {
		return m.err
	}
	delete(m.carts, sessionID)
	return nil
}

type CheckoutMock struct {
	order   *domain.Order
	err     error
	request checkout.Request
	session string
}

func (m *CheckoutMock) Checkout(_ context.Context, sessionID string, req checkout.Request) (*domain.Order, error) {
	m.session, m.request = sessionID, req
	return m.order, m.err
}

type AppointmentsMock struct {
	upcoming []*domain.Appointment
	history  []*domain.Appointment
	err      error
	calls    []string
	replyID  int
}

func (m *AppointmentsMock) ListUpcoming(context.Context) ([]*domain.Appointment, error) {
	return m.upcoming, m.err
}

func (m *AppointmentsMock) ListHistory(context.Context) ([]*domain.Appointment, error) {
	return m.history, m.err
}

func (m *AppointmentsMock) Complete(_ context.Context, id int64) (*domain.Appointment, error) {
	m.calls = append(m.calls, "complete")
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Appointment{ID: id, Status: domain.StatusCompleted, StatusName: "completed"}, nil
}

func (m *AppointmentsMock) Cancel(_ context.Context, id int64) (*domain.Appointment, error) {
	m.calls = append(m.calls, "cancel")
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Appointment{ID: id, Status: domain.StatusCancelled, StatusName: "cancelled"}, nil
}

func (m *AppointmentsMock) Reject(_ context.Context, id int64, replyID int) (*domain.Appointment, error) {
	m.calls = append(m.calls, "reject")
	m.replyID = replyID
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Appointment{ID: id, Status: domain.StatusRejected, StatusName: "rejected", ReplyID: &replyID}, nil
}

type OrdersMock struct {
	orders  map[int64]*domain.Order
	err     error
	deleted []int64
}

func (m *OrdersMock) List(context.Context) ([]*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Order
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

func (m *OrdersMock) Get(_ context.Context, id int64) (*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, errNotFound("Order %d not found", id)
	}
	return o, nil
}

func (m *OrdersMock) Delete(_ context.Context, id int64) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.orders[id]; !ok {
		return errNotFound("Order %d not found", id)
	}
	delete(m.orders, id)
	m.deleted = append(m.deleted, id)
	return nil
}
