package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"potroom/internal/hub"
	"potroom/internal/ws"
)

func SetupRoutes(h *hub.Hub, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.AllowAll().Handler)

	r.Get("/ws", ws.Handler(h, log))
	r.Get("/healthz", Healthz)
	r.Get("/debug", Debug)
	return r
}
