package mockapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/invoicedash/internal/metrics"
	"github.com/hitoshi/invoicedash/internal/middleware"
	"github.com/hitoshi/invoicedash/internal/model"
)

// NewHandler はフィクスチャを公開するルーターを返す。
//
//	GET /invoices
//	GET /invoices/{id}
//	GET /activities
func NewHandler(fixture *Fixture, allowedOrigin string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, metrics.NopCollector{}))
	r.Use(middleware.NewCORSMiddleware(allowedOrigin))

	r.Get("/invoices", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, fixture.Invoices)
	})
	r.Get("/invoices/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		for _, inv := range fixture.Invoices {
			if inv.ID == id {
				middleware.WriteJSON(w, http.StatusOK, inv)
				return
			}
		}
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewInvoiceNotFoundError(id))
	})
	r.Get("/activities", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, fixture.Activities)
	})

	return r
}
