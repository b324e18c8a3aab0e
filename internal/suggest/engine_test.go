package suggest_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/forecast"
	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/geo"
	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/overpass"
	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/suggest"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

// ---- mock collaborators ----

type mockPlaces struct {
	findFn func(ctx context.Context, center geo.Point, radiusM float64, kinds []string) ([]overpass.Place, error)
}

func (m *mockPlaces) FindCandidates(ctx context.Context, center geo.Point, radiusM float64, kinds []string) ([]overpass.Place, error) {
	return m.findFn(ctx, center, radiusM, kinds)
}

type mockForecast struct {
	calls   atomic.Int64
	dailyFn func(ctx context.Context, lat, lon float64) ([]forecast.Day, error)
}

func (m *mockForecast) Daily(ctx context.Context, lat, lon float64) ([]forecast.Day, error) {
	m.calls.Add(1)
	return m.dailyFn(ctx, lat, lon)
}

// ---- helpers ----

func fp(v float64) *float64 { return &v }

func place(id string, distM int, category string) overpass.Place {
	return overpass.Place{
		ID:        id,
		Type:      overpass.ElementNode,
		Name:      id,
		Category:  overpass.ParseCategory(category),
		Lat:       6.9 + float64(distM)/111000,
		Lon:       79.86,
		DistanceM: distM,
		Tags:      map[string]string{},
	}
}

// pleasantWeek is five in-window days that score 4 each (t in range, dry).
func pleasantWeek() []forecast.Day {
	days := make([]forecast.Day, 5)
	for i := range days {
		days[i] = forecast.Day{
			Date:     fmt.Sprintf("2025-09-1%d", i),
			T2M:      fp(27),
			T2MHi:    fp(30),
			Precip:   fp(0.2),
			PrecipHi: fp(1.0),
		}
	}
	return days
}

func fixedPlaces(places ...overpass.Place) *mockPlaces {
	return &mockPlaces{
		findFn: func(_ context.Context, _ geo.Point, _ float64, _ []string) ([]overpass.Place, error) {
			return places, nil
		},
	}
}

func fixedForecast(days []forecast.Day) *mockForecast {
	return &mockForecast{
		dailyFn: func(_ context.Context, _, _ float64) ([]forecast.Day, error) {
			return days, nil
		},
	}
}

func newEngine(p suggest.CandidateSource, f suggest.ForecastSource) *suggest.Engine {
	return suggest.NewEngine(p, f, suggest.Config{}, testLog)
}

var colombo = geo.Point{Lat: 6.9271, Lon: 79.8612}

// ---- scoring ----

func TestScoreDay(t *testing.T) {
	tests := []struct {
		name string
		t2m  *float64
		rain *float64
		want int
	}{
		{"ideal", fp(22), fp(0.5), 4},
		{"hot penalty", fp(36), fp(0.5), 0},
		{"missing temperature", nil, fp(5), -1},
		{"missing rain", fp(25), nil, -1},
		{"cool edge", fp(20), fp(3), 2},
		{"warm edge", fp(33), fp(0.8), 3},
		{"soaked scorcher", fp(36), fp(12), -4},
		{"upper comfort bound", fp(32), fp(0), 4},
		{"just past comfort", fp(34), fp(0), 3},
		{"wet good temp", fp(28), fp(11), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, suggest.ScoreDay(tt.t2m, tt.rain))
		})
	}
}

func TestActivityFor(t *testing.T) {
	tests := []struct {
		category string
		want     suggest.Activity
	}{
		{"natural:beach", suggest.ActivityBeach},
		{"tourism:beach_resort", suggest.ActivityBeach},
		{"tourism:viewpoint", suggest.ActivityHike},
		{"natural:peak", suggest.ActivityHike},
		{"natural:waterfall", suggest.ActivityHike},
		{"leisure:park", suggest.ActivityHike},
		{"tourism:attraction", suggest.ActivityHike},
		{"tourism:museum", suggest.ActivityCity},
		{"historic:castle", suggest.ActivityCity},
		{"historic:ruins", suggest.ActivityCity},
		{"other", suggest.ActivityCity},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			assert.Equal(t, tt.want, suggest.ActivityFor(overpass.ParseCategory(tt.category)))
		})
	}
}

// ---- the happy path ----

func TestSuggest_RanksByDistanceOnScoreTie(t *testing.T) {
	places := fixedPlaces(
		place("node/3", 3000, "tourism:attraction"),
		place("node/1", 500, "tourism:attraction"),
		place("node/2", 1500, "tourism:attraction"),
	)
	fc := fixedForecast(pleasantWeek())

	got, diag, err := newEngine(places, fc).Suggest(context.Background(), suggest.Options{Center: colombo})
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Identical forecasts tie on score, so ordering falls to distance.
	assert.Equal(t, []int{500, 1500, 3000}, []int{got[0].Place.DistanceM, got[1].Place.DistanceM, got[2].Place.DistanceM})
	assert.Equal(t, 20, got[0].Score, "five days at score 4 each")
	assert.Equal(t, 5, got[0].Summary.GoodDays)
	assert.Equal(t, 5, got[0].Summary.Days)
	assert.Equal(t, 1.0, got[0].Summary.SumRain)
	assert.Equal(t, 27.0, got[0].Summary.AvgT)
	assert.False(t, diag.Relaxed)
	assert.Equal(t, 3, diag.Candidates)
	assert.Equal(t, 3, diag.Checked)
}

func TestSuggest_RanksByScoreFirst(t *testing.T) {
	near := place("node/near", 500, "tourism:attraction")
	far := place("node/far", 9000, "tourism:attraction")

	rainy := pleasantWeek()
	for i := range rainy {
		rainy[i].Precip = fp(4.0) // drops each day from 4 to 3
	}

	fc := &mockForecast{dailyFn: func(_ context.Context, lat, _ float64) ([]forecast.Day, error) {
		if lat == near.Lat {
			return rainy, nil
		}
		return pleasantWeek(), nil
	}}

	got, _, err := newEngine(fixedPlaces(near, far), fc).Suggest(context.Background(), suggest.Options{Center: colombo})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "node/far", got[0].Place.ID, "higher score wins despite larger distance")
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestSuggest_WindowFiltersDays(t *testing.T) {
	fc := fixedForecast(pleasantWeek()) // dates 2025-09-10 .. 2025-09-14

	got, _, err := newEngine(fixedPlaces(place("node/1", 500, "tourism:attraction")), fc).
		Suggest(context.Background(), suggest.Options{Center: colombo, Start: "2025-09-11", End: "2025-09-12"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Summary.Days)
	assert.Equal(t, 8, got[0].Score)
}

// ---- rejection paths ----

func TestSuggest_HardWeatherRejection(t *testing.T) {
	beach := place("node/beach", 500, "natural:beach")
	peak := place("node/peak", 1500, "natural:peak")

	stormyHi := pleasantWeek()
	for i := range stormyHi {
		stormyHi[i].PrecipHi = fp(28) // above the 25mm beach bound, under the 30mm hike bound
	}

	fc := &mockForecast{dailyFn: func(_ context.Context, lat, _ float64) ([]forecast.Day, error) {
		_ = lat
		return stormyHi, nil
	}}

	got, diag, err := newEngine(fixedPlaces(beach, peak), fc).Suggest(context.Background(), suggest.Options{Center: colombo})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "node/peak", got[0].Place.ID)
	assert.Equal(t, 1, diag.ByWeather)
}

func TestSuggest_HeatRejectsOutdoorButNotCity(t *testing.T) {
	peak := place("node/peak", 500, "natural:peak")
	museum := place("node/museum", 1500, "tourism:museum")

	scorchingHi := pleasantWeek()
	for i := range scorchingHi {
		scorchingHi[i].T2MHi = fp(41)
	}
	fc := fixedForecast(scorchingHi)

	got, diag, err := newEngine(fixedPlaces(peak, museum), fc).Suggest(context.Background(), suggest.Options{Center: colombo})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, suggest.ActivityCity, got[0].Activity, "city has no hard weather rejection")
	assert.Equal(t, 1, diag.ByWeather)
}

func TestSuggest_OneFlakyCandidateDoesNotSinkBatch(t *testing.T) {
	bad := place("node/bad", 500, "tourism:attraction")
	good := place("node/good", 1500, "tourism:attraction")

	fc := &mockForecast{dailyFn: func(_ context.Context, lat, _ float64) ([]forecast.Day, error) {
		if lat == bad.Lat {
			return nil, errors.New("upstream exploded")
		}
		return pleasantWeek(), nil
	}}

	got, diag, err := newEngine(fixedPlaces(bad, good), fc).Suggest(context.Background(), suggest.Options{Center: colombo})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "node/good", got[0].Place.ID)
	assert.Equal(t, 1, diag.ByError)
}

func TestSuggest_MinGoodDaysGate(t *testing.T) {
	soSo := pleasantWeek()
	for i := range soSo {
		soSo[i].Precip = fp(8.0) // score 2 per day: never "good"
	}
	fc := fixedForecast(soSo)
	three := 3

	got, diag, err := newEngine(fixedPlaces(place("node/1", 500, "tourism:attraction")), fc).
		Suggest(context.Background(), suggest.Options{Center: colombo, MinGoodDays: &three})
	require.NoError(t, err)

	// The only candidate failed the gate, so the relaxed pass resurfaces it
	// with its real (gate-free) score.
	require.Len(t, got, 1)
	assert.True(t, diag.Relaxed)
	assert.Equal(t, 1, diag.ByGoodDays)
	assert.Equal(t, 10, got[0].Score)
	assert.Equal(t, 0, got[0].Summary.GoodDays)
}

// ---- fallback ladder ----

func TestSuggest_RelaxedPassKeepsRealScores(t *testing.T) {
	var pool []overpass.Place
	for i := 0; i < 15; i++ {
		pool = append(pool, place(fmt.Sprintf("node/%d", i), 100*(i+1), "natural:beach"))
	}

	// Plausible in-window forecast that fails the beach hard filter every time.
	doomed := pleasantWeek()
	for i := range doomed {
		doomed[i].PrecipHi = fp(60)
	}
	fc := fixedForecast(doomed)

	got, diag, err := newEngine(fixedPlaces(pool...), fc).Suggest(context.Background(), suggest.Options{Center: colombo})
	require.NoError(t, err)

	require.Len(t, got, 10, "relaxed pass re-checks the nearest min(10, pool)")
	assert.True(t, diag.Relaxed)
	assert.Equal(t, 15, diag.ByWeather)
	for _, s := range got {
		assert.Equal(t, 20, s.Score, "relaxed pass still computes real scores")
		assert.Equal(t, 5, s.Summary.Days)
	}
}

func TestSuggest_ZeroStateWhenForecastIsDown(t *testing.T) {
	pool := []overpass.Place{
		place("node/1", 500, "natural:beach"),
		place("node/2", 1500, "tourism:museum"),
		place("node/3", 3000, "leisure:park"),
	}
	fc := &mockForecast{dailyFn: func(_ context.Context, _, _ float64) ([]forecast.Day, error) {
		return nil, errors.New("total outage")
	}}

	got, diag, err := newEngine(fixedPlaces(pool...), fc).Suggest(context.Background(), suggest.Options{Center: colombo})
	require.NoError(t, err)

	// Never an empty answer while candidates exist.
	require.Len(t, got, 3)
	assert.True(t, diag.Relaxed)
	assert.Equal(t, 3, diag.ByError)
	assert.Equal(t, suggest.ActivityBeach, got[0].Activity)
	assert.Equal(t, suggest.ActivityCity, got[1].Activity)
	assert.Equal(t, suggest.ActivityHike, got[2].Activity)
	for _, s := range got {
		assert.Equal(t, 0, s.Score)
		assert.Equal(t, suggest.Summary{}, s.Summary)
	}
}

func TestSuggest_EmptyWindowFallsBackToZeroState(t *testing.T) {
	fc := fixedForecast(pleasantWeek())

	got, diag, err := newEngine(fixedPlaces(place("node/1", 500, "tourism:attraction")), fc).
		Suggest(context.Background(), suggest.Options{Center: colombo, Start: "2030-01-01"})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, 1, diag.ByEmpty)
	assert.Equal(t, 0, got[0].Score)
}

func TestSuggest_ZeroCandidates(t *testing.T) {
	fc := fixedForecast(pleasantWeek())

	got, diag, err := newEngine(fixedPlaces(), fc).Suggest(context.Background(), suggest.Options{Center: colombo})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, diag.Candidates)
	assert.Equal(t, int64(0), fc.calls.Load(), "no forecast calls without candidates")
}

func TestSuggest_DiscoveryFailurePropagates(t *testing.T) {
	boom := errors.New("all overpass mirrors failed")
	places := &mockPlaces{findFn: func(_ context.Context, _ geo.Point, _ float64, _ []string) ([]overpass.Place, error) {
		return nil, boom
	}}

	_, _, err := newEngine(places, fixedForecast(pleasantWeek())).Suggest(context.Background(), suggest.Options{Center: colombo})
	require.ErrorIs(t, err, boom)
}

// ---- defaults ----

func TestSuggest_DefaultsPassedToDiscovery(t *testing.T) {
	var gotRadius float64
	var gotKinds []string
	places := &mockPlaces{findFn: func(_ context.Context, _ geo.Point, radiusM float64, kinds []string) ([]overpass.Place, error) {
		gotRadius = radiusM
		gotKinds = kinds
		return nil, nil
	}}

	_, _, err := newEngine(places, fixedForecast(nil)).Suggest(context.Background(), suggest.Options{Center: colombo})
	require.NoError(t, err)
	assert.Equal(t, 20000.0, gotRadius)
	assert.Equal(t, suggest.DefaultKinds, gotKinds)
}

func TestSuggest_LimitBoundsForecastCalls(t *testing.T) {
	var pool []overpass.Place
	for i := 0; i < 200; i++ {
		pool = append(pool, place(fmt.Sprintf("node/%d", i), 100*(i+1), "tourism:attraction"))
	}
	fc := fixedForecast(pleasantWeek())

	got, diag, err := newEngine(fixedPlaces(pool...), fc).
		Suggest(context.Background(), suggest.Options{Center: colombo, Limit: 500})
	require.NoError(t, err)
	assert.Len(t, got, 120, "limit is capped at 120")
	assert.Equal(t, int64(120), fc.calls.Load())
	assert.Equal(t, 120, diag.Checked)

	fc2 := fixedForecast(pleasantWeek())
	_, diag, err = newEngine(fixedPlaces(pool...), fc2).
		Suggest(context.Background(), suggest.Options{Center: colombo, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, diag.Checked, "limit has a floor of 5")
	assert.Equal(t, int64(5), fc2.calls.Load())
}
