package server

import (
	"net/http"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/api"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/api/handlers"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	TaskHandler  *handlers.TaskHandler
	AuditHandler *handlers.AuditHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/tasks", cfg.TaskHandler.Submit)

		r.Route("/audit", func(r chi.Router) {
			r.Get("/", cfg.AuditHandler.List)
			r.Get("/stats", cfg.AuditHandler.Stats)
			r.Get("/export", cfg.AuditHandler.Export)
		})
	})

	return r
}
