package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires all endpoints onto a chi router.
func NewRouter(h *Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Delete("/", h.DeleteSession)
			r.Post("/csv", h.ReplaceCSV)
			r.Get("/profile", h.GetProfile)
			r.Post("/ask", h.Ask)
			r.Get("/history", h.GetHistory)
			r.Delete("/history", h.ClearHistory)
			r.Post("/chart", h.Chart)
		})
	})

	return r
}
