package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all product routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Get("/report", h.HandleReport)
			r.Get("/coupons", h.HandleCoupons)
			r.Get("/scenarios", h.HandleScenarios)
			r.Get("/events", h.HandleTimeline)
			r.Put("/prices", h.HandleUpdatePrices)
			r.Post("/fixings", h.HandleAddFixing)
			r.Post("/issuer-call", h.HandleIssuerCall)
			r.Post("/what-if", h.HandleWhatIf)
		})
	})
}
