package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chesstour/live-backend/internal/registry"
	"github.com/chesstour/live-backend/internal/ws"
)

func SetupRoutes(gw *ws.Gateway, reg *registry.Registry, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", gw.Handler())

	// System-originated pushes from the business layer. Not exposed publicly.
	r.Post("/internal/notifications", Notify(reg, log))

	return r
}
