// Package suggest ranks travel places around a coordinate by how good the
// forecast weather looks for each place's activity, with a relaxed
// fallback so a caller never gets an empty answer while candidates exist.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/async"
	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/forecast"
	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/geo"
	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/overpass"
)

const (
	defaultRadiusM     = 20000
	defaultLimit       = 40
	minCheck           = 5
	maxCheck           = 120
	fallbackCandidates = 10
)

// DefaultKinds is the candidate category set used when the caller does not
// narrow it.
var DefaultKinds = []string{"tourism", "natural", "historic", "park"}

// CandidateSource is the interface satisfied by overpass.Client.
type CandidateSource interface {
	FindCandidates(ctx context.Context, center geo.Point, radiusM float64, kinds []string) ([]overpass.Place, error)
}

// ForecastSource is the interface satisfied by forecast.Client.
type ForecastSource interface {
	Daily(ctx context.Context, lat, lon float64) ([]forecast.Day, error)
}

// Config holds the engine's weather thresholds and concurrency width.
// Zero values fall back to the defaults below.
type Config struct {
	BeachMaxRainHi float64 // mm, hard reject for beach days (default 25)
	HikeMaxRainHi  float64 // mm, hard reject for hikes (default 30)
	MaxTempHi      float64 // °C, hard reject for any outdoor activity (default 38)
	MinGoodDays    int     // default gate when a request does not set one (default 1)
	Concurrency    int     // forecast fan-out width (default 6)
}

func (c Config) withDefaults() Config {
	if c.BeachMaxRainHi <= 0 {
		c.BeachMaxRainHi = 25
	}
	if c.HikeMaxRainHi <= 0 {
		c.HikeMaxRainHi = 30
	}
	if c.MaxTempHi <= 0 {
		c.MaxTempHi = 38
	}
	if c.MinGoodDays <= 0 {
		c.MinGoodDays = 1
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 6
	}
	return c
}

// Options are the per-request knobs for Suggest.
type Options struct {
	Center      geo.Point `json:"center"`
	RadiusM     float64   `json:"radius_m"`
	Kinds       []string  `json:"kinds,omitempty"`
	Start       string    `json:"start,omitempty"` // YYYY-MM-DD, inclusive; empty = unbounded
	End         string    `json:"end,omitempty"`   // YYYY-MM-DD, inclusive; empty = unbounded
	MinGoodDays *int      `json:"min_good_days,omitempty"`
	Limit       int       `json:"limit,omitempty"` // max places to weather-check
}

// Summary aggregates the forecast window for one suggestion.
type Summary struct {
	GoodDays  int     `json:"goodDays"`
	Days      int     `json:"days"`
	SumRain   float64 `json:"sumRain"`
	AvgT      float64 `json:"avgT"`
	MaxRainHi float64 `json:"maxRainHi"`
	MaxTHi    float64 `json:"maxTHi"`
}

// Suggestion is one ranked place. Score is only meaningful relative to the
// other suggestions in the same result.
type Suggestion struct {
	Place    overpass.Place `json:"place"`
	Activity Activity       `json:"activity"`
	Score    int            `json:"score"`
	Summary  Summary        `json:"summary"`
}

// Diagnostics tallies what happened to the checked candidates. It is
// operator-facing (logs, snapshots) and never sent to API clients; its
// point is post-hoc tuning of the thresholds.
type Diagnostics struct {
	Candidates int  `json:"candidates"`
	Checked    int  `json:"checked"`
	ByWeather  int  `json:"byWeather"`
	ByGoodDays int  `json:"byGoodDays"`
	ByEmpty    int  `json:"byEmpty"`
	ByError    int  `json:"byError"`
	Relaxed    bool `json:"relaxed"`
}

// Engine composes candidate discovery with per-candidate forecast
// enrichment, scoring, and ranking.
type Engine struct {
	places   CandidateSource
	forecast ForecastSource
	cfg      Config
	log      *slog.Logger
}

// NewEngine constructs an Engine.
func NewEngine(places CandidateSource, fc ForecastSource, cfg Config, log *slog.Logger) *Engine {
	return &Engine{places: places, forecast: fc, cfg: cfg.withDefaults(), log: log}
}

// rejection is the outcome of evaluating one candidate.
type rejection int

const (
	rejectedNone rejection = iota
	rejectedEmpty
	rejectedWeather
	rejectedGoodDays
	rejectedError
)

type evaluation struct {
	suggestion Suggestion
	rejected   rejection
}

// Suggest returns weather-ranked suggestions around opts.Center.
//
// The primary pass weather-checks the nearest candidates under the hard
// safety filters and the good-days gate. If nothing survives, a relaxed
// pass re-scores the nearest few without those gates, and if even that
// yields nothing (every forecast call failed), the nearest candidates are
// returned with zero scores. The result is empty only when discovery
// found no candidates at all; a discovery failure propagates as an error.
func (e *Engine) Suggest(ctx context.Context, opts Options) ([]Suggestion, Diagnostics, error) {
	started := time.Now()

	radius := opts.RadiusM
	if radius <= 0 {
		radius = defaultRadiusM
	}
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}

	candidates, err := e.places.FindCandidates(ctx, opts.Center, radius, kinds)
	if err != nil {
		return nil, Diagnostics{}, fmt.Errorf("discovering candidates: %w", err)
	}

	diag := Diagnostics{Candidates: len(candidates)}
	if len(candidates) == 0 {
		return []Suggestion{}, diag, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	check := max(minCheck, min(limit, maxCheck))
	if check > len(candidates) {
		check = len(candidates)
	}
	batch := candidates[:check]
	diag.Checked = len(batch)

	minGood := e.cfg.MinGoodDays
	if opts.MinGoodDays != nil {
		minGood = *opts.MinGoodDays
	}

	results, err := e.runPass(ctx, batch, opts, minGood, false, &diag)
	if err != nil {
		return nil, diag, err
	}
	if len(results) > 0 {
		e.log.Debug("suggest done", "suggestions", len(results), "checked", diag.Checked, "elapsed", time.Since(started))
		return results, diag, nil
	}

	// Nothing survived the strict pass. Re-score the nearest few without
	// the hard filters and the good-days gate.
	diag.Relaxed = true
	nearest := batch[:min(fallbackCandidates, len(batch))]
	e.log.Warn("no suggestions after filtering, relaxing",
		"checked", diag.Checked,
		"byWeather", diag.ByWeather, "byGoodDays", diag.ByGoodDays,
		"byEmpty", diag.ByEmpty, "byError", diag.ByError)

	relaxed, err := e.runPass(ctx, nearest, opts, minGood, true, nil)
	if err != nil {
		return nil, diag, err
	}
	if len(relaxed) > 0 {
		return relaxed, diag, nil
	}

	// Even the relaxed pass produced nothing, so every forecast fetch must
	// have failed. Surface the nearest candidates with zero scores rather
	// than an empty list.
	out := make([]Suggestion, 0, len(nearest))
	for _, p := range nearest {
		out = append(out, Suggestion{
			Place:    p,
			Activity: ActivityFor(p.Category),
			Score:    0,
			Summary:  Summary{},
		})
	}
	return out, diag, nil
}

// runPass evaluates one batch under bounded concurrency and returns the
// survivors ranked by score then distance. When diag is non-nil the
// rejection tallies are recorded there.
func (e *Engine) runPass(ctx context.Context, batch []overpass.Place, opts Options, minGood int, relaxed bool, diag *Diagnostics) ([]Suggestion, error) {
	evals, err := async.MapWithLimit(ctx, batch, e.cfg.Concurrency, func(ctx context.Context, p overpass.Place, _ int) (evaluation, error) {
		return e.evaluate(ctx, p, opts, minGood, relaxed), nil
	})
	if err != nil {
		return nil, err
	}

	var results []Suggestion
	for _, ev := range evals {
		if diag != nil {
			switch ev.rejected {
			case rejectedEmpty:
				diag.ByEmpty++
			case rejectedWeather:
				diag.ByWeather++
			case rejectedGoodDays:
				diag.ByGoodDays++
			case rejectedError:
				diag.ByError++
			}
		}
		if ev.rejected == rejectedNone {
			results = append(results, ev.suggestion)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Place.DistanceM < results[j].Place.DistanceM
	})
	return results, nil
}

// evaluate fetches and scores one candidate's forecast. Any failure is
// contained here and reported as a rejection so one flaky candidate does
// not sink the batch.
func (e *Engine) evaluate(ctx context.Context, p overpass.Place, opts Options, minGood int, relaxed bool) evaluation {
	daily, err := e.forecast.Daily(ctx, p.Lat, p.Lon)
	if err != nil {
		e.log.Warn("forecast failed for candidate", "place", p.ID, "err", err)
		return evaluation{rejected: rejectedError}
	}

	var window []forecast.Day
	for _, d := range daily {
		if inWindow(d.Date, opts.Start, opts.End) {
			window = append(window, d)
		}
	}
	if len(window) == 0 {
		return evaluation{rejected: rejectedEmpty}
	}

	activity := ActivityFor(p.Category)

	maxRainHi := 0.0
	maxTHi := -99.0 // missing highs never trigger the temperature reject
	for _, d := range window {
		if d.PrecipHi != nil && *d.PrecipHi > maxRainHi {
			maxRainHi = *d.PrecipHi
		}
		if d.T2MHi != nil && *d.T2MHi > maxTHi {
			maxTHi = *d.T2MHi
		}
	}

	if !relaxed {
		tooHot := maxTHi > e.cfg.MaxTempHi
		switch activity {
		case ActivityBeach:
			if maxRainHi > e.cfg.BeachMaxRainHi || tooHot {
				return evaluation{rejected: rejectedWeather}
			}
		case ActivityHike:
			if maxRainHi > e.cfg.HikeMaxRainHi || tooHot {
				return evaluation{rejected: rejectedWeather}
			}
		}
	}

	total := 0
	goodDays := 0
	sumRain := 0.0
	sumT := 0.0
	for _, d := range window {
		s := ScoreDay(d.T2M, d.Precip)
		total += s
		if s >= goodDayScore {
			goodDays++
		}
		if d.Precip != nil {
			sumRain += *d.Precip
		}
		if d.T2M != nil {
			sumT += *d.T2M
		}
	}

	if !relaxed && goodDays < minGood {
		return evaluation{rejected: rejectedGoodDays}
	}

	return evaluation{suggestion: Suggestion{
		Place:    p,
		Activity: activity,
		Score:    total,
		Summary: Summary{
			GoodDays:  goodDays,
			Days:      len(window),
			SumRain:   round1(sumRain),
			AvgT:      round1(sumT / float64(len(window))),
			MaxRainHi: maxRainHi,
			MaxTHi:    maxTHi,
		},
	}}
}

// inWindow reports whether ISO date d falls inside [start, end], treating
// an empty bound as unbounded. Lexicographic comparison is correct for
// YYYY-MM-DD.
func inWindow(d, start, end string) bool {
	if start != "" && d < start {
		return false
	}
	if end != "" && d > end {
		return false
	}
	return true
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
