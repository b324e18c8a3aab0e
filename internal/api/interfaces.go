package api

import (
	"context"

	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/geo"
	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/geocode"
	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/overpass"
	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/suggest"
)

// PlaceFinder defines the candidate discovery needed by the nearby handler.
type PlaceFinder interface {
	FindCandidates(ctx context.Context, center geo.Point, radiusM float64, kinds []string) ([]overpass.Place, error)
}

// Suggester defines the suggestion engine operation needed by handlers.
type Suggester interface {
	Suggest(ctx context.Context, opts suggest.Options) ([]suggest.Suggestion, suggest.Diagnostics, error)
}

// Geocoder defines the place-name lookup needed by handlers.
type Geocoder interface {
	Search(ctx context.Context, q string) (*geocode.Hit, error)
}

// SuggestionCache defines the cache operations needed by handlers.
type SuggestionCache interface {
	Get(ctx context.Context, opts suggest.Options) ([]suggest.Suggestion, error)
	Set(ctx context.Context, opts suggest.Options, suggestions []suggest.Suggestion) error
}

// SnapshotStore defines the snapshot persistence needed by handlers.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, lat, lon, radiusM float64, suggestions []suggest.Suggestion, diag suggest.Diagnostics) error
}
