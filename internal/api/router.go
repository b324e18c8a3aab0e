package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// NewRouter builds the Chi router. Rate limiting is applied globally:
// 60 requests per minute per IP, which keeps one abusive client from
// burning through the upstream Overpass/forecast quota.
func NewRouter(handlers *Handlers, db dbPinger, redisClient redisPinger, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(httprate.LimitByIP(60, time.Minute))

	r.Get("/api/v1/health", HealthHandlerFunc(db, redisClient, log))
	r.Get("/api/v1/places/nearby", handlers.GetNearby)
	r.Post("/api/v1/places/suggest", handlers.PostSuggest)
	r.Get("/api/v1/geocode", handlers.GetGeocode)

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
