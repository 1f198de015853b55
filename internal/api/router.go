// Package api wires the HTTP handlers, middleware and routes of the server.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phuslu/log"

	"github.com/ndewijer/portfolio-rebalancer/internal/api/handlers"
	custommiddleware "github.com/ndewijer/portfolio-rebalancer/internal/api/middleware"
	"github.com/ndewijer/portfolio-rebalancer/internal/config"
	"github.com/ndewijer/portfolio-rebalancer/internal/service"
)

// NewRouter creates and configures the HTTP router.
// limiters is shared by every request; the caller owns its lifetime.
func NewRouter(svc *service.Services, limiters *custommiddleware.LimiterStore, cfg *config.Config, logger *log.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.UserScope)
	r.Use(custommiddleware.Logger(logger))
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	r.Route("/api", func(r chi.Router) {
		// System namespace, not rate limited so health checks never see 429
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(svc.System)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		r.Group(func(r chi.Router) {
			r.Use(custommiddleware.RateLimit(limiters))

			rebalanceHandler := handlers.NewRebalanceHandler(svc.Rebalance)
			r.Get("/rebalance", rebalanceHandler.GetRebalance)

			performanceHandler := handlers.NewPerformanceHandler(svc.Performance, svc.Snapshot)
			r.Route("/performance", func(r chi.Router) {
				r.Get("/", performanceHandler.GetPerformance)
				r.Get("/history", performanceHandler.GetHistory)
			})

			ledgerHandler := handlers.NewLedgerHandler(svc.Ledger, svc.Replay)
			r.Get("/lots", ledgerHandler.GetLots)
			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", ledgerHandler.GetTransactions)
				r.Post("/", ledgerHandler.CreateTransaction)
			})
			r.Get("/ledger/verify", ledgerHandler.Verify)

			allocationHandler := handlers.NewAllocationHandler(svc.Allocation, svc.Price)
			r.Route("/accounts", func(r chi.Router) {
				r.Get("/", allocationHandler.GetAccounts)
				r.Post("/", allocationHandler.CreateAccount)
			})
			r.Route("/holdings", func(r chi.Router) {
				r.Get("/", allocationHandler.GetHoldings)
				r.Post("/", allocationHandler.CreateHolding)
			})
			r.Post("/prices", allocationHandler.SavePrices)
			r.Route("/groups", func(r chi.Router) {
				r.Get("/", allocationHandler.GetGroups)
				r.With(custommiddleware.ValidateUUIDMiddleware).Put("/{uuid}", allocationHandler.SaveGroup)
			})
			r.With(custommiddleware.ValidateUUIDMiddleware).Put("/targets/{uuid}", allocationHandler.SaveTarget)
		})
	})

	return r
}
