package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/geo"
	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/geocode"
	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/suggest"
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	places    PlaceFinder
	suggester Suggester
	geocoder  Geocoder
	cache     SuggestionCache
	snapshots SnapshotStore
	log       *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(places PlaceFinder, suggester Suggester, geocoder Geocoder, cache SuggestionCache, snapshots SnapshotStore, log *slog.Logger) *Handlers {
	return &Handlers{
		places:    places,
		suggester: suggester,
		geocoder:  geocoder,
		cache:     cache,
		snapshots: snapshots,
		log:       log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseCoords reads and validates lat/lon query parameters.
func parseCoords(r *http.Request) (geo.Point, bool) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return geo.Point{}, false
	}
	return geo.Point{Lat: lat, Lon: lon}, true
}

// splitKinds parses a comma-separated kinds value; empty means defaults.
func splitKinds(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	var kinds []string
	for _, k := range strings.Split(csv, ",") {
		if k = strings.TrimSpace(k); k != "" {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// GetNearby handles GET /api/v1/places/nearby?lat&lon&radius&kinds.
func (h *Handlers) GetNearby(w http.ResponseWriter, r *http.Request) {
	center, ok := parseCoords(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "lat and lon are required and must be valid coordinates")
		return
	}

	radius := 20000.0
	if v := r.URL.Query().Get("radius"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "radius must be a positive number of meters")
			return
		}
		radius = parsed
	}

	kinds := splitKinds(r.URL.Query().Get("kinds"))
	if kinds == nil {
		kinds = suggest.DefaultKinds
	}

	places, err := h.places.FindCandidates(r.Context(), center, radius, kinds)
	if err != nil {
		h.log.Error("candidate discovery failed", "lat", center.Lat, "lon", center.Lon, "err", err)
		writeError(w, http.StatusBadGateway, "place discovery is unavailable")
		return
	}

	writeJSON(w, http.StatusOK, places)
}

// suggestRequest is the POST /suggest body.
type suggestRequest struct {
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	Radius      float64  `json:"radius,omitempty"`
	Kinds       string   `json:"kinds,omitempty"`
	Start       string   `json:"start,omitempty"`
	End         string   `json:"end,omitempty"`
	MinGoodDays *int     `json:"minGoodDays,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

// PostSuggest handles POST /api/v1/places/suggest.
// Cache hit → return. Otherwise run the engine, snapshot the run
// (best-effort), cache, and return.
func (h *Handlers) PostSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Lat == nil || req.Lon == nil ||
		*req.Lat < -90 || *req.Lat > 90 || *req.Lon < -180 || *req.Lon > 180 {
		writeError(w, http.StatusBadRequest, "lat and lon are required and must be valid coordinates")
		return
	}

	opts := suggest.Options{
		Center:      geo.Point{Lat: *req.Lat, Lon: *req.Lon},
		RadiusM:     req.Radius,
		Kinds:       splitKinds(req.Kinds),
		Start:       req.Start,
		End:         req.End,
		MinGoodDays: req.MinGoodDays,
		Limit:       req.Limit,
	}

	cached, err := h.cache.Get(r.Context(), opts)
	if err != nil {
		h.log.Error("cache get failed", "err", err)
	}
	if cached != nil {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	suggestions, diag, err := h.suggester.Suggest(r.Context(), opts)
	if err != nil {
		h.log.Error("suggest failed", "lat", opts.Center.Lat, "lon", opts.Center.Lon, "err", err)
		writeError(w, http.StatusBadGateway, "suggestion sources are unavailable")
		return
	}

	h.log.Info("suggest completed",
		"lat", opts.Center.Lat, "lon", opts.Center.Lon,
		"suggestions", len(suggestions),
		"candidates", diag.Candidates, "checked", diag.Checked,
		"byWeather", diag.ByWeather, "byGoodDays", diag.ByGoodDays,
		"byEmpty", diag.ByEmpty, "byError", diag.ByError,
		"relaxed", diag.Relaxed)

	if err := h.snapshots.InsertSnapshot(r.Context(), opts.Center.Lat, opts.Center.Lon, opts.RadiusM, suggestions, diag); err != nil {
		h.log.Warn("snapshot insert failed", "err", err)
	}
	if err := h.cache.Set(r.Context(), opts, suggestions); err != nil {
		h.log.Warn("cache set failed", "err", err)
	}

	writeJSON(w, http.StatusOK, suggestions)
}

// GetGeocode handles GET /api/v1/geocode?q=.
func (h *Handlers) GetGeocode(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	hit, err := h.geocoder.Search(r.Context(), q)
	if err != nil {
		if errors.Is(err, geocode.ErrNotFound) {
			writeError(w, http.StatusNotFound, "place not found")
			return
		}
		h.log.Error("geocode failed", "q", q, "err", err)
		writeError(w, http.StatusBadGateway, "geocoder is unavailable")
		return
	}

	writeJSON(w, http.StatusOK, hit)
}

type dbPinger interface {
	Ping(ctx context.Context) error
}

type redisPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlerFunc returns an http.HandlerFunc that checks db and redis
// connectivity; 200 if both ok, 503 otherwise.
func HealthHandlerFunc(db dbPinger, redis redisPinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "ok"
		redisStatus := "ok"

		if err := db.Ping(ctx); err != nil {
			log.Error("health check: db ping failed", "err", err)
			dbStatus = "error"
			status = http.StatusServiceUnavailable
		}

		if err := redis.Ping(ctx); err != nil {
			log.Error("health check: redis ping failed", "err", err)
			redisStatus = "error"
			status = http.StatusServiceUnavailable
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}

		writeJSON(w, status, map[string]string{
			"status": overall,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	}
}
