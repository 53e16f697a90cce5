package http

import (
	"net/http"
	"time"

	"github.com/LennoxMacadangdang/caps-backend/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// RouterConfig holds what every service router shares.
type RouterConfig struct {
	Service            string
	Logger             *zap.Logger
	Metrics            *metrics.Metrics
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

func newRouter(cfg RouterConfig, withSession bool) chi.Router {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	if withSession {
		r.Use(SessionMiddleware)
	}
	r.Use(LoggerMiddleware(log))
	r.Use(MetricsMiddleware(cfg.Metrics))
	r.Use(BodyLimitMiddleware(cfg.MaxRequestBodySize))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": cfg.Service})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
	return r
}

// instrument wraps the router in an OpenTelemetry server span.
func instrument(cfg RouterConfig, r chi.Router) http.Handler {
	return otelhttp.NewHandler(r, cfg.Service)
}

func NewInventoryRouter(cfg RouterConfig, h *InventoryHandler) http.Handler {
	r := newRouter(cfg, true)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)
	})
	r.Route("/services", func(r chi.Router) {
		r.Get("/", h.ListServices)
		r.Get("/{id}", h.GetService)
	})
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Post("/addtocart", h.AddToCart)
		r.Post("/remove-one", h.RemoveOne)
		r.Post("/clear", h.ClearCart)
	})
	r.Post("/checkout", h.Checkout)

	return instrument(cfg, r)
}

func NewAppointmentsRouter(cfg RouterConfig, h *AppointmentsHandler) http.Handler {
	r := newRouter(cfg, false)

	r.Get("/getAllUpcomingAppointments", h.ListUpcoming)
	r.Get("/getAllHistoryAppointments", h.ListHistory)
	r.Put("/updateAppointmentStatus/{id}", h.Complete)
	r.Put("/approveAppointment/{id}", h.Complete)
	r.Put("/cancelAppointment/{id}", h.Cancel)
	r.Put("/rejectAppointment/{id}", h.Reject)

	return instrument(cfg, r)
}

func NewSalesRouter(cfg RouterConfig, h *OrdersHandler) http.Handler {
	r := newRouter(cfg, false)

	orders := func(r chi.Router) {
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
		r.Delete("/{id}", h.DeleteOrder)
	}
	r.Route("/orders", orders)
	r.Route("/api/orders", orders)

	return instrument(cfg, r)
}
