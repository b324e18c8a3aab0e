package suggest

import (
	"strings"

	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/overpass"
)

// Activity is the trip activity a place is suitable for. It drives which
// hard weather thresholds apply.
type Activity string

const (
	ActivityBeach Activity = "beach"
	ActivityHike  Activity = "hike"
	ActivityCity  Activity = "city"
)

// ActivityFor classifies a travel category into an activity. Beaches win
// over everything (a natural:beach is a beach, not a hike), viewpoints are
// hikes regardless of namespace, and the remaining mapping is total over
// the category kinds.
func ActivityFor(cat overpass.Category) Activity {
	sub := strings.ToLower(cat.Sub)
	if strings.Contains(sub, "beach") {
		return ActivityBeach
	}
	if strings.Contains(sub, "viewpoint") {
		return ActivityHike
	}

	switch cat.Kind {
	case overpass.CategoryNatural, overpass.CategoryPark:
		return ActivityHike
	case overpass.CategoryHistoric:
		return ActivityCity
	case overpass.CategoryTourism:
		if strings.Contains(sub, "museum") {
			return ActivityCity
		}
		return ActivityHike
	default:
		return ActivityCity
	}
}
