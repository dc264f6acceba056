package transport

import (
	"net/http"

	"zwitch-gateway/internal/config"
	"zwitch-gateway/internal/logger"
	"zwitch-gateway/internal/metrics"
	"zwitch-gateway/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterOptions struct {
	JWTSecret      string
	AllowedOrigins []string
	Limiter        *middleware.RateLimiter
}

// NewRouter wires every route. callback serves /callback/zwitch.
func NewRouter(h *Handler, callback http.HandlerFunc, opts RouterOptions) *mux.Router {
	r := mux.NewRouter()
	r.Use(logger.RequestIDMiddleware, logger.LoggingMiddleware, metrics.Middleware)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	public := r.NewRoute().Subrouter()
	if opts.Limiter != nil {
		public.Use(opts.Limiter.Middleware)
	}
	public.Use(middleware.CORS(opts.AllowedOrigins))

	// OPTIONS is routed so CORS preflight reaches the middleware.
	public.HandleFunc("/"+config.CallbackPath, callback).
		Methods(http.MethodGet, http.MethodPost, http.MethodOptions)
	public.HandleFunc("/checkout/link", h.CheckoutLink).Methods(http.MethodGet)

	login := r.PathPrefix("/admin/login").Subrouter()
	if opts.Limiter != nil {
		login.Use(opts.Limiter.Middleware)
	}
	login.HandleFunc("", h.AdminLogin).Methods(http.MethodPost)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AdminAuth(opts.JWTSecret))
	if opts.Limiter != nil {
		admin.Use(opts.Limiter.Middleware)
	}
	admin.HandleFunc("/refunds", h.Refund).Methods(http.MethodPost)
	admin.HandleFunc("/invoices/{id:[0-9]+}/logs", h.InvoiceLogs).Methods(http.MethodGet)
	admin.HandleFunc("/gateway", h.GatewayInfo).Methods(http.MethodGet)

	return r
}
