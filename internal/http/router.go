package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

type Deps struct {
	Sessions SessionService
	Catalog  CatalogService
	Engine   CartEngine
	Journal  JournalReader
	Health   map[string]HealthChecker
	Log      logrus.FieldLogger
}

func NewRouter(cfg RouterConfig, deps Deps) chi.Router {
	sessionHandler := NewSessionHandler(deps.Sessions, cfg.RequestTimeout, deps.Log)
	catalogHandler := NewCatalogHandler(deps.Catalog, cfg.RequestTimeout, deps.Log)
	cartHandler := NewCartHandler(deps.Engine, deps.Catalog, cfg.RequestTimeout, deps.Log)
	checkoutHandler := NewCheckoutHandler(deps.Engine, deps.Catalog, deps.Log)
	journalHandler := NewJournalHandler(deps.Journal, cfg.RequestTimeout, deps.Log)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(deps.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(BodyLimit(cfg.MaxRequestBodySize))

	r.Get("/health", healthHandler(deps.Health))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/session/login", sessionHandler.Login)
		r.Post("/session/signup", sessionHandler.SignUp)

		r.Group(func(r chi.Router) {
			r.Use(RequireSession(deps.Sessions, deps.Log))

			r.Post("/session/logout", sessionHandler.Logout)
			r.Get("/session/profile", sessionHandler.Profile)

			r.Get("/catalog", catalogHandler.ListProducts)
			r.Get("/categories", catalogHandler.ListCategories)
			r.Post("/categories", catalogHandler.AddCategory)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/items", cartHandler.AddItem)
				r.Delete("/items/{stock_id}", cartHandler.RemoveItem)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", checkoutHandler.GetCheckout)
				r.Post("/payment", checkoutHandler.BeginPayment)
				r.Delete("/payment", checkoutHandler.CancelPayment)
				r.Post("/tender", checkoutHandler.ConfirmTender)
				r.Post("/submit", checkoutHandler.Submit)
			})

			r.Get("/journal/partial-failures", journalHandler.PartialFailures)
		})
	})

	return r
}

func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		for name, check := range checks {
			if err := check.Ping(ctx); err != nil {
				status[name] = err.Error()
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		respondJSON(w, code, status)
	}
}
