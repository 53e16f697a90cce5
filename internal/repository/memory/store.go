// Package memory keeps the catalog, orders, appointments and uploaded
// payment proofs in process memory. Stock writes behave like the REST
// backend: each write is a compare-and-swap on the expected stock and
// nothing rolls back.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"github.com/LennoxMacadangdang/caps-backend/internal/repository"
)

// Store implements repository.InventoryRepository, OrderRepository and
// AppointmentRepository.
type Store struct {
	mu           sync.RWMutex
	products     map[int64]*domain.Product
	services     map[int64]*domain.Service
	links        []domain.ServiceProductLink
	orders       map[int64]*domain.Order
	nextOrderID  int64
	appointments map[int64]*domain.Appointment
	workingHours map[int64]string
	history      []domain.HistoryEntry
	objects      map[string][]byte

	// BeforeWrite runs, unlocked, before each stock write. Tests use it to
	// change stock underneath an in-flight deduction.
	BeforeWrite func(w repository.StockWrite)

	failAt  int
	failErr error
	writes  int
	readErr error
}

func NewStore() *Store {
	return &Store{
		products:     make(map[int64]*domain.Product),
		services:     make(map[int64]*domain.Service),
		orders:       make(map[int64]*domain.Order),
		appointments: make(map[int64]*domain.Appointment),
		workingHours: make(map[int64]string),
		objects:      make(map[string][]byte),
	}
}

func (s *Store) SetProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = &p
}

func (s *Store) SetService(svc domain.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if svc.Pricing == nil {
		svc.Pricing = map[domain.SizeTier]float64{}
	}
	svc.Active = true
	s.services[svc.ID] = &svc
}

func (s *Store) AddLink(l domain.ServiceProductLink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = append(s.links, l)
}

func (s *Store) SetStock(productID int64, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[productID]; ok {
		p.Stock = stock
	}
}

// Stock returns the current stock of a product, or -1 when it is unknown.
func (s *Store) Stock(productID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.products[productID]; ok {
		return p.Stock
	}
	return -1
}

// FailStockWriteAt makes the n-th stock write from now on return err.
func (s *Store) FailStockWriteAt(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = 0
	s.failAt = n
	s.failErr = err
}

// FailReads makes every catalog read return err until cleared with nil.
func (s *Store) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

func (s *Store) GetProducts(_ context.Context, ids []int64) (map[int64]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	out := make(map[int64]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *Store) ListProducts(_ context.Context, categoryID int64) ([]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	var out []*domain.Product
	for _, p := range s.products {
		if categoryID != 0 && p.CategoryID != categoryID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func copyService(svc *domain.Service) *domain.Service {
	cp := *svc
	cp.Pricing = make(map[domain.SizeTier]float64, len(svc.Pricing))
	for k, v := range svc.Pricing {
		cp.Pricing[k] = v
	}
	return &cp
}

func (s *Store) GetServices(_ context.Context, ids []int64) (map[int64]*domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	out := make(map[int64]*domain.Service, len(ids))
	for _, id := range ids {
		if svc, ok := s.services[id]; ok {
			out[id] = copyService(svc)
		}
	}
	return out, nil
}

func (s *Store) ListServices(_ context.Context) ([]*domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	out := make([]*domain.Service, 0, len(s.services))
	for _, svc := range s.services {
		out = append(out, copyService(svc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetServiceLinks(_ context.Context, serviceIDs []int64) ([]domain.ServiceProductLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	want := make(map[int64]bool, len(serviceIDs))
	for _, id := range serviceIDs {
		want[id] = true
	}
	var out []domain.ServiceProductLink
	for _, l := range s.links {
		if want[l.ServiceID] {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Store) ApplyStock(_ context.Context, writes []repository.StockWrite) (int, error) {
	for i, w := range writes {
		if s.BeforeWrite != nil {
			s.BeforeWrite(w)
		}
		if err := s.applyOne(w); err != nil {
			return i, &repository.StockWriteError{ProductID: w.ProductID, Err: err}
		}
	}
	return len(writes), nil
}

func (s *Store) applyOne(w repository.StockWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writes++
	if s.failAt > 0 && s.writes == s.failAt {
		return s.failErr
	}
	p, ok := s.products[w.ProductID]
	if !ok || p.Stock != w.Expected {
		return repository.ErrStockChanged
	}
	p.Stock = w.Expected - w.Quantity
	return nil
}

func (s *Store) Atomic() bool { return false }

func (s *Store) CreateOrder(_ context.Context, order *domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextOrderID++
	cp := *order
	cp.ID = s.nextOrderID
	if cp.OrderDate.IsZero() {
		cp.OrderDate = time.Now().UTC()
	}
	cp.ItemDetails = append([]domain.OrderItem(nil), order.ItemDetails...)
	s.orders[cp.ID] = &cp

	out := cp
	return &out, nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *Store) ListOrders(_ context.Context) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderDate.Equal(out[j].OrderDate) {
			return out[i].ID > out[j].ID
		}
		return out[i].OrderDate.After(out[j].OrderDate)
	})
	return out, nil
}

func (s *Store) DeleteOrder(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return repository.ErrOrderNotFound
	}
	delete(s.orders, id)
	return nil
}

func (s *Store) PutAppointment(a domain.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments[a.ID] = &a
}

func (s *Store) SetWorkingHour(timeID int64, slot string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workingHours[timeID] = slot
}

func (s *Store) History() []domain.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.HistoryEntry(nil), s.history...)
}

func (s *Store) GetAppointment(_ context.Context, id int64) (*domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, repository.ErrAppointmentNotFound
	}
	return s.withJoins(a), nil
}

// withJoins fills the fields the SQL backends read through joins.
func (s *Store) withJoins(a *domain.Appointment) *domain.Appointment {
	cp := *a
	if svc, ok := s.services[cp.ServiceID]; ok {
		cp.ServiceName = svc.Name
	}
	if cp.TimeID != nil {
		if slot, ok := s.workingHours[*cp.TimeID]; ok {
			cp.Time = &slot
		}
	}
	cp.StatusName = cp.Status.String()
	return &cp
}

func (s *Store) ListByStatus(_ context.Context, statuses ...domain.AppointmentStatus) ([]*domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[domain.AppointmentStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []*domain.Appointment
	for _, a := range s.appointments {
		if want[a.Status] {
			out = append(out, s.withJoins(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := deref(out[i].Date), deref(out[j].Date)
		if di == dj {
			return out[i].ID < out[j].ID
		}
		return di < dj
	})
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *Store) UpdateStatus(_ context.Context, id int64, from domain.AppointmentStatus, upd domain.AppointmentUpdate) (*domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, repository.ErrAppointmentNotFound
	}
	if a.Status != from {
		return nil, repository.ErrStatusChanged
	}
	a.Status = upd.Status
	if upd.ReplyID != nil {
		r := *upd.ReplyID
		a.ReplyID = &r
	}
	if upd.ClearSchedule {
		a.Date = nil
		a.TimeID = nil
	}
	return s.withJoins(a), nil
}

func (s *Store) GetWorkingHour(_ context.Context, timeID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.workingHours[timeID]
	if !ok {
		return "", repository.ErrWorkingHourNotFound
	}
	return slot, nil
}

func (s *Store) InsertHistory(_ context.Context, entry domain.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entry)
	return nil
}

// Upload keeps the object and returns a memory:// URL for it.
func (s *Store) Upload(_ context.Context, bucket, name, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := bucket + "/" + name
	s.objects[key] = append([]byte(nil), data...)
	return fmt.Sprintf("memory://%s", key), nil
}

func (s *Store) Object(bucket, name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[bucket+"/"+name]
	return b, ok
}
