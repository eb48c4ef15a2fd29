package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/malwarebo/condopay/middleware"
	"github.com/malwarebo/condopay/utils"
)

type RouterConfig struct {
	Boletos *BoletoHandler
	Pix     *PixHandler
	Users   *UserHandler
	Health  *HealthHandler

	Auth        *middleware.AuthMiddleware
	Idempotency mux.MiddlewareFunc
	Webhook     mux.MiddlewareFunc

	AllowedOrigins   []string
	MaxBodyBytes     int64
	SimulatorEnabled bool
}

func NewRouter(cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.RecoveryMiddleware)
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.SecurityHeadersMiddleware)
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	if cfg.MaxBodyBytes > 0 {
		router.Use(middleware.RequestSizeLimitMiddleware(cfg.MaxBodyBytes))
	}

	// A Methods matcher here would turn every unknown path into a 405.
	router.MatcherFunc(isPreflight).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/health", cfg.Health.HandleHealth).Methods(http.MethodGet)

	webhook := cfg.Auth.WebhookRateLimit(cfg.Webhook(http.HandlerFunc(cfg.Pix.HandleWebhook)))
	apiRouter.Handle("/pix/webhook", webhook).Methods(http.MethodPost)

	authed := apiRouter.NewRoute().Subrouter()
	authed.Use(cfg.Auth.Authenticate)
	authed.Use(cfg.Auth.RateLimit)

	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAdmin(h)
	}
	idempotent := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAdmin(cfg.Idempotency(h))
	}

	authed.Handle("/metrics", admin(cfg.Health.HandleMetrics)).Methods(http.MethodGet)

	authed.Handle("/boletos", idempotent(cfg.Boletos.HandleCreate)).Methods(http.MethodPost)
	authed.Handle("/boletos/bulk-create", idempotent(cfg.Boletos.HandleBulkCreate)).Methods(http.MethodPost)
	authed.HandleFunc("/boletos", cfg.Boletos.HandleList).Methods(http.MethodGet)
	authed.Handle("/boletos/stats", admin(cfg.Boletos.HandleStats)).Methods(http.MethodGet)
	authed.Handle("/boletos/export", admin(cfg.Boletos.HandleExport)).Methods(http.MethodGet)
	authed.HandleFunc("/boletos/{id}", cfg.Boletos.HandleGet).Methods(http.MethodGet)
	authed.HandleFunc("/boletos/{id}/slip", cfg.Boletos.HandleSlip).Methods(http.MethodGet)
	authed.Handle("/boletos/{id}/history", admin(cfg.Boletos.HandleHistory)).Methods(http.MethodGet)
	authed.Handle("/boletos/{id}", admin(cfg.Boletos.HandleUpdate)).Methods(http.MethodPut)
	authed.Handle("/boletos/{id}/pay", admin(cfg.Boletos.HandlePay)).Methods(http.MethodPut)
	authed.Handle("/boletos/{id}", admin(cfg.Boletos.HandleCancel)).Methods(http.MethodDelete)

	authed.Handle("/pix/generate", admin(cfg.Pix.HandleGenerate)).Methods(http.MethodPost)
	if cfg.SimulatorEnabled {
		authed.Handle("/pix/simulate-payment/{boletoId}", admin(cfg.Pix.HandleSimulatePayment)).Methods(http.MethodPost)
	}

	authed.Handle("/users", admin(cfg.Users.HandleCreate)).Methods(http.MethodPost)
	authed.Handle("/users", admin(cfg.Users.HandleList)).Methods(http.MethodGet)
	authed.HandleFunc("/users/{id}", cfg.Users.HandleGet).Methods(http.MethodGet)
	authed.Handle("/users/{id}", admin(cfg.Users.HandleUpdate)).Methods(http.MethodPut)

	router.NotFoundHandler = http.HandlerFunc(notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	return router
}

func isPreflight(r *http.Request, _ *mux.RouteMatch) bool {
	return r.Method == http.MethodOptions
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, utils.ErrNotFound)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, utils.NewAPIError(http.StatusMethodNotAllowed, "Method not allowed"))
}
