package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vogiaan1904/tablequeue/pkg/logger"
)

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(logger.HTTPLogger(h.l))

	r.Get("/healthz", h.HealthCheck)

	r.Route("/api/v1/queue", func(r chi.Router) {
		r.Get("/", h.GetQueue)
		r.Delete("/", h.LeaveQueue)
		r.Post("/join", h.JoinQueue)
		r.Get("/stream", h.StreamQueue)
	})

	return r
}
