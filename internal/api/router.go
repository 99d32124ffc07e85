// Package api serves read-only JSON queries over a loaded journal.
package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/brightsidebudget/bsb/internal/journal"
)

// NewRouter creates a chi router with all API routes mounted. The journal
// must not be mutated while the router serves requests.
func NewRouter(j *journal.Journal, logger *slog.Logger) chi.Router {
	h := NewHandler(j, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/accounts", h.ListAccounts)
	r.Get("/balance", h.Balance)
	r.Get("/balances", h.Balances)
	r.Get("/flow", h.Flow)
	r.Get("/bassertions/failed", h.FailedBAssertions)
	r.Get("/txns", h.ListTxns)

	return r
}
