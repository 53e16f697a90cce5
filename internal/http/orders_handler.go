package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
)

type Orders interface {
	List(ctx context.Context) ([]*domain.Order, error)
	Get(ctx context.Context, id int64) (*domain.Order, error)
	Delete(ctx context.Context, id int64) error
}

type OrdersHandler struct {
	orders  Orders
	timeout time.Duration
}

func NewOrdersHandler(orders Orders, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{orders: orders, timeout: timeout}
}

// GET /orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.orders.List(ctx)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if list == nil {
		list = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, list)
}

// GET /orders/{id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	order, err := h.orders.Get(ctx, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// DELETE /orders/{id}
func (h *OrdersHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.orders.Delete(ctx, id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("Order %d deleted successfully", id)})
}
