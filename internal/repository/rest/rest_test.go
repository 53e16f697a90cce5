package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LennoxMacadangdang/caps-backend/internal/apperr"
	"github.com/LennoxMacadangdang/caps-backend/internal/appointment"
	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"github.com/LennoxMacadangdang/caps-backend/internal/repository"
	"github.com/LennoxMacadangdang/caps-backend/internal/supabase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProducts is a tiny PostgREST stand-in for the products table that
// honours product_id=eq and stock=eq filters on PATCH.
type fakeProducts struct {
	mu     sync.Mutex
	stocks map[string]int
	writes int
}

func (f *fakeProducts) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := strings.TrimPrefix(r.URL.Query().Get("product_id"), "eq.")
	switch r.Method {
	case http.MethodPatch:
		stock, ok := f.stocks[id]
		expected := strings.TrimPrefix(r.URL.Query().Get("stock"), "eq.")
		if !ok || expected != itoa(stock) {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		var patch map[string]int
		_ = json.Unmarshal(body, &patch)
		f.stocks[id] = patch["stock"]
		f.writes++
		_, _ = w.Write([]byte(`[{"product_id":` + id + `,"stock":` + itoa(patch["stock"]) + `}]`))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func itoa(i int) string {
	b, _ := json.Marshal(i)
	return string(b)
}

func newClient(t *testing.T, h http.Handler) *supabase.Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return supabase.NewClient(srv.URL, "key", supabase.Options{Name: t.Name()})
}

func TestApplyStock_CompareAndSwap(t *testing.T) {
	fake := &fakeProducts{stocks: map[string]int{"5": 10, "6": 3}}
	repo := NewInventoryRepository(newClient(t, fake))

	applied, err := repo.ApplyStock(context.Background(), []repository.StockWrite{
		{ProductID: 5, Quantity: 2, Expected: 10},
		{ProductID: 6, Quantity: 1, Expected: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, 8, fake.stocks["5"])
	assert.Equal(t, 2, fake.stocks["6"])
	assert.False(t, repo.Atomic())
}

func TestApplyStock_StaleExpectationStops(t *testing.T) {
	fake := &fakeProducts{stocks: map[string]int{"5": 10, "6": 1}}
	repo := NewInventoryRepository(newClient(t, fake))

	applied, err := repo.ApplyStock(context.Background(), []repository.StockWrite{
		{ProductID: 5, Quantity: 2, Expected: 10},
		{ProductID: 6, Quantity: 1, Expected: 3},
		{ProductID: 5, Quantity: 1, Expected: 8},
	})
	assert.ErrorIs(t, err, repository.ErrStockChanged)
	assert.Equal(t, 1, applied)
	assert.Equal(t, 8, fake.stocks["5"])
	assert.Equal(t, 1, fake.stocks["6"])
}

func TestGetServiceLinks_MapsVariants(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/service_products", r.URL.Path)
		assert.Equal(t, "in.(9)", r.URL.Query().Get("service_id"))
		_, _ = w.Write([]byte(`[
			{"service_id":9,"product_id":1,"quantity":2,"variant_id":3},
			{"service_id":9,"product_id":2,"quantity":1,"variant_id":1},
			{"service_id":9,"product_id":3,"quantity":1,"variant_id":9}
		]`))
	}))
	repo := NewInventoryRepository(client)

	links, err := repo.GetServiceLinks(context.Background(), []int64{9})
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, domain.ServiceProductLink{ServiceID: 9, ProductID: 1, QuantityPerUnit: 2, Variant: domain.SizeLarge}, links[0])
	assert.Equal(t, domain.SizeSmall, links[1].Variant)
}

func TestGetServices_PricingFromColumns(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"service_id":4,"service_name":"Wash","small":null,"medium":250,"large":300}]`))
	}))
	repo := NewInventoryRepository(client)

	services, err := repo.GetServices(context.Background(), []int64{4, 99})
	require.NoError(t, err)
	require.Len(t, services, 1)

	s := services[4]
	assert.Equal(t, map[domain.SizeTier]float64{domain.SizeMedium: 250, domain.SizeLarge: 300}, s.Pricing)
	first, ok := s.FirstPricedSize()
	assert.True(t, ok)
	assert.Equal(t, domain.SizeMedium, first)
}

func TestGetProducts_EmptyIDsSkipsRequest(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s", r.URL)
	}))
	repo := NewInventoryRepository(client)

	products, err := repo.GetProducts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestOrder_CreateAndDecodeLegacyDetails(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			var row map[string]any
			require.NoError(t, json.Unmarshal(body, &row))
			assert.Equal(t, "Product: Wax x2 @ ₱150", row["items"])
			assert.Equal(t, "cash", row["payment_method"])
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`[{"order_id":12,"order_date":"2025-03-01T10:00:00Z","total_quantity":2,"total_amount":300,
				"items":"Product: Wax x2 @ ₱150","item_details":[{"id":5,"type":"product","name":"Wax","quantity":2,"price":150}],
				"payment_method":"cash","payment_proof":null}]`))
		case http.MethodGet:
			_, _ = w.Write([]byte(`[{"order_id":3,"order_date":"2024-01-01T00:00:00Z","total_quantity":1,"total_amount":50,
				"items":"x","item_details":"[{\"id\":1,\"type\":\"service\",\"name\":\"Wash\",\"size\":\"small\",\"quantity\":1,\"price\":50}]",
				"payment_method":"gcash","payment_proof":"https://x/y.png","reference_number":"REF1"}]`))
		}
	}))
	repo := NewOrderRepository(client)

	created, err := repo.CreateOrder(context.Background(), &domain.Order{
		OrderDate:     time.Now(),
		TotalQuantity: 2,
		TotalAmount:   300,
		ItemsText:     "Product: Wax x2 @ ₱150",
		ItemDetails:   []domain.OrderItem{{ID: 5, Type: domain.ItemProduct, Name: "Wax", Quantity: 2, UnitPrice: 150}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), created.ID)
	assert.Nil(t, created.PaymentProofURL)
	require.Len(t, created.ItemDetails, 1)

	legacy, err := repo.GetOrder(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "REF1", legacy.ReferenceNumber)
	require.Len(t, legacy.ItemDetails, 1)
	assert.Equal(t, domain.SizeSmall, legacy.ItemDetails[0].Size)
}

func TestOrder_GetMissing(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	repo := NewOrderRepository(client)

	_, err := repo.GetOrder(context.Background(), 404)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
	assert.ErrorIs(t, repo.DeleteOrder(context.Background(), 404), repository.ErrOrderNotFound)
}

func TestAppointment_UpdateStatusRace(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPatch:
			assert.Equal(t, "eq.1", r.URL.Query().Get("status_id"))
			_, _ = w.Write([]byte(`[]`))
		case http.MethodGet:
			_, _ = w.Write([]byte(`[{"appointment_id":7,"service_id":2,"car_size":"large","status_id":5,"created_at":"2025-01-01T00:00:00Z"}]`))
		}
	}))
	repo := NewAppointmentRepository(client)

	_, err := repo.UpdateStatus(context.Background(), 7, domain.StatusUpcoming, domain.AppointmentUpdate{Status: domain.StatusCancelled, ClearSchedule: true})
	assert.ErrorIs(t, err, repository.ErrStatusChanged)
}

func TestAppointment_LegacyCompletedStatus(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "in.(2,3)", r.URL.Query().Get("status_id"))
		_, _ = w.Write([]byte(`[{"appointment_id":1,"service_id":2,"car_size":"small","status_id":3,"created_at":"2025-01-01T00:00:00Z",
			"services":{"service_name":"Wash"},"working_hours":{"time":"09:00"}}]`))
	}))
	repo := NewAppointmentRepository(client)

	list, err := repo.ListByStatus(context.Background(), domain.StatusCompleted)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.StatusCompleted, list[0].Status)
	assert.Equal(t, "Wash", list[0].ServiceName)
	assert.Equal(t, "09:00", *list[0].Time)
}

func TestAppointment_UnknownCarSizeStillLists(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rows := `[{"appointment_id":1,"service_id":2,"car_size":"suv","status_id":1,"created_at":"2025-01-01T00:00:00Z"},
			{"appointment_id":2,"service_id":2,"car_size":"small","status_id":1,"created_at":"2025-01-01T00:00:00Z"}]`
		if r.URL.Query().Get("appointment_id") == "eq.1" {
			rows = `[{"appointment_id":1,"service_id":2,"car_size":"suv","status_id":1,"created_at":"2025-01-01T00:00:00Z"}]`
		}
		_, _ = w.Write([]byte(rows))
	}))
	repo := NewAppointmentRepository(client)

	list, err := repo.ListByStatus(context.Background(), domain.StatusUpcoming)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.SizeTier("suv"), list[0].CarSize)
	assert.False(t, list[0].CarSize.Valid())
	assert.Equal(t, domain.SizeSmall, list[1].CarSize)

	svc := appointment.NewService(repo, nil, nil, nil)
	_, err = svc.Complete(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	assert.Equal(t, "Invalid car size", apperr.Message(err))
}
