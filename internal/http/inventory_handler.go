package http

import (
	"context"
	"net/http"
	"time"

	"github.com/LennoxMacadangdang/caps-backend/internal/cart"
	"github.com/LennoxMacadangdang/caps-backend/internal/checkout"
	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
)

type Catalog interface {
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListServices(ctx context.Context) ([]*domain.Service, error)
	GetService(ctx context.Context, id int64) (*domain.Service, error)
}

type Cart interface {
	Snapshot(ctx context.Context, sessionID string) (*domain.Cart, error)
	Add(ctx context.Context, sessionID string, req cart.AddRequest) (*domain.Cart, error)
	RemoveOne(ctx context.Context, sessionID string, req cart.RemoveRequest) (*domain.Cart, error)
	Clear(ctx context.Context, sessionID string) error
}

type Checkout interface {
	Checkout(ctx context.Context, sessionID string, req checkout.Request) (*domain.Order, error)
}

type InventoryHandler struct {
	catalog  Catalog
	cart     Cart
	checkout Checkout
	timeout  time.Duration
}

func NewInventoryHandler(catalog Catalog, cart Cart, checkout Checkout, timeout time.Duration) *InventoryHandler {
	return &InventoryHandler{catalog: catalog, cart: cart, checkout: checkout, timeout: timeout}
}

type ServicesResponse struct {
	Services []*domain.Service `json:"services"`
}

type CartResponse struct {
	Cart  []string          `json:"cart"`
	Items []domain.CartLine `json:"items"`
}

type CartMutationResponse struct {
	Message string            `json:"message"`
	Cart    []domain.CartLine `json:"cart"`
}

type CartClearedResponse struct {
	Message string   `json:"message"`
	Cart    []string `json:"cart"`
}

type CheckoutResponse struct {
	Message string        `json:"message"`
	Order   *domain.Order `json:"order"`
}

// GET /products
func (h *InventoryHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.ListProducts(ctx)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

// GET /products/{id}
func (h *InventoryHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.catalog.GetProduct(ctx, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// GET /services
func (h *InventoryHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	services, err := h.catalog.ListServices(ctx)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if services == nil {
		services = []*domain.Service{}
	}
	respondJSON(w, http.StatusOK, ServicesResponse{Services: services})
}

// GET /services/{id}
func (h *InventoryHandler) GetService(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	svc, err := h.catalog.GetService(ctx, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, svc)
}

// GET /cart
func (h *InventoryHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := h.cart.Snapshot(ctx, getSessionID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CartResponse{Cart: c.Text(), Items: lines(c)})
}

// POST /cart/addtocart
func (h *InventoryHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req cart.AddRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.cart.Add(ctx, getSessionID(r.Context()), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CartMutationResponse{Message: "Item added to cart", Cart: lines(c)})
}

// POST /cart/remove-one
func (h *InventoryHandler) RemoveOne(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req cart.RemoveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.cart.RemoveOne(ctx, getSessionID(r.Context()), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CartMutationResponse{Message: "One item removed", Cart: lines(c)})
}

// POST /cart/clear
func (h *InventoryHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.cart.Clear(ctx, getSessionID(r.Context())); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CartClearedResponse{Message: "Cart cleared", Cart: []string{}})
}

// POST /checkout
func (h *InventoryHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req checkout.Request
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	order, err := h.checkout.Checkout(ctx, getSessionID(r.Context()), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CheckoutResponse{Message: "Order submitted successfully", Order: order})
}

func lines(c *domain.Cart) []domain.CartLine {
	if c == nil || c.Items == nil {
		return []domain.CartLine{}
	}
	return c.Items
}
