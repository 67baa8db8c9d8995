package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mmeshcher/salon-comanda/internal/apperror"
	custommiddleware "github.com/mmeshcher/salon-comanda/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
// extra добавляются после общих middleware, например ограничение частоты запросов.
func (h *Handler) SetupRouter(extra ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	for _, mw := range extra {
		r.Use(mw)
	}

	r.Route("/comandas", func(r chi.Router) {
		r.Post("/", h.CreateComanda)
		r.Get("/", h.ListComandas)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetComanda)
			r.Post("/lines", h.AddLine)
			r.Delete("/lines/{lineId}", h.RemoveLine)
			r.Post("/finalize", h.FinalizeComanda)
			r.Get("/commissions", h.GetComandaCommissions)
		})
	})

	r.Get("/faturamento", h.GetFaturamento)
	r.Get("/commissions", h.GetCommissionReport)

	r.Route("/cashier", func(r chi.Router) {
		r.Post("/", h.OpenSession)
		r.Get("/", h.ListSessions)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Post("/movements", h.RecordMovement)
			r.Post("/close", h.CloseSession)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Code: apperror.NotFound, Message: "route not found"})
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Code: apperror.InvalidArgument, Message: "method not allowed"})
	})

	return r
}
