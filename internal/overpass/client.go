// Package overpass discovers travel points of interest around a coordinate
// by querying the Overpass API, with sequential failover across a list of
// interchangeable mirrors.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/geo"
)

const (
	defaultTimeout    = 25 * time.Second
	defaultMaxRadiusM = 50000
	minRadiusM        = 100
	defaultUserAgent  = "trip-planner/1.0"
)

// DefaultMirrors are the public Overpass endpoints tried in order. Any one
// of them going down is routine, which is why failover exists at all.
var DefaultMirrors = []string{
	"https://overpass-api.de/api/interpreter",
	"https://overpass.kumi.systems/api/interpreter",
	"https://overpass.openstreetmap.ru/api/interpreter",
}

// naturalSpots are the natural= tag values people actually travel to see.
const naturalSpots = "beach|waterfall|peak|cliff|cave_entrance|spring|geyser|moor|dune|wetland"

// Config holds the tunables for a Client. Zero values fall back to the
// package defaults.
type Config struct {
	Mirrors    []string
	UserAgent  string
	Timeout    time.Duration
	MaxRadiusM float64
}

// Client queries Overpass mirrors for nearby travel places.
type Client struct {
	mirrors    []string
	userAgent  string
	maxRadiusM float64
	client     *http.Client
	log        *slog.Logger
}

// NewClient constructs a Client, applying defaults for unset Config fields.
func NewClient(cfg Config, log *slog.Logger) *Client {
	if len(cfg.Mirrors) == 0 {
		cfg.Mirrors = DefaultMirrors
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRadiusM <= 0 {
		cfg.MaxRadiusM = defaultMaxRadiusM
	}
	return &Client{
		mirrors:    cfg.Mirrors,
		userAgent:  cfg.UserAgent,
		maxRadiusM: cfg.MaxRadiusM,
		client:     &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

// FindCandidates returns travel places within radiusM of center for the
// requested kind groups (tourism, natural, historic, park), deduplicated by
// id and sorted by distance. Unrecognized kinds contribute nothing; if no
// kind is recognized the result is empty without any provider call.
func (c *Client) FindCandidates(ctx context.Context, center geo.Point, radiusM float64, kinds []string) ([]Place, error) {
	radiusM = math.Max(minRadiusM, math.Min(radiusM, c.maxRadiusM))

	ql := buildQuery(center, radiusM, kinds)
	if ql == "" {
		return []Place{}, nil
	}

	resp, err := c.runQuery(ctx, ql)
	if err != nil {
		return nil, err
	}

	return normalize(center, resp.Elements), nil
}

// runQuery tries each mirror in order and returns the first success.
// Mirrors are attempted sequentially so a flaky endpoint does not cause
// the rest to be hammered in parallel.
func (c *Client) runQuery(ctx context.Context, ql string) (*overpassResponse, error) {
	var failures []string
	for _, mirror := range c.mirrors {
		resp, err := c.post(ctx, mirror, ql)
		if err == nil {
			return resp, nil
		}
		c.log.Warn("overpass mirror failed", "mirror", mirror, "err", err)
		failures = append(failures, fmt.Sprintf("%s: %v", mirror, err))

		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("all overpass mirrors failed: %s", strings.Join(failures, "; "))
}

func (c *Client) post(ctx context.Context, mirror, ql string) (*overpassResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, mirror, strings.NewReader(ql))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=UTF-8")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var parsed overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &parsed, nil
}

// buildQuery assembles Overpass QL covering the recognized kind groups.
// Returns "" when no group is recognized.
func buildQuery(center geo.Point, radiusM float64, kinds []string) string {
	groups := map[string]bool{}
	for _, k := range kinds {
		groups[strings.ToLower(strings.TrimSpace(k))] = true
	}

	around := fmt.Sprintf("around:%.0f,%f,%f", radiusM, center.Lat, center.Lon)

	var parts []string
	if groups["tourism"] {
		parts = append(parts,
			fmt.Sprintf("node(%s)[tourism];", around),
			fmt.Sprintf("way(%s)[tourism];", around),
			fmt.Sprintf("relation(%s)[tourism];", around),
		)
	}
	if groups["natural"] {
		parts = append(parts,
			fmt.Sprintf("node(%s)[natural~%q];", around, naturalSpots),
			fmt.Sprintf("way(%s)[natural~%q];", around, naturalSpots),
			fmt.Sprintf("relation(%s)[natural~%q];", around, naturalSpots),
		)
	}
	if groups["historic"] {
		parts = append(parts,
			fmt.Sprintf("node(%s)[historic];", around),
			fmt.Sprintf("way(%s)[historic];", around),
			fmt.Sprintf("relation(%s)[historic];", around),
		)
	}
	if groups["park"] {
		parts = append(parts,
			fmt.Sprintf("node(%s)[leisure=park];", around),
			fmt.Sprintf("way(%s)[leisure=park];", around),
			fmt.Sprintf("relation(%s)[leisure=park];", around),
		)
	}

	if len(parts) == 0 {
		return ""
	}
	return "[out:json][timeout:30];(\n" + strings.Join(parts, "\n") + "\n);out center;"
}

// normalize converts raw elements into Places: resolves coordinates,
// derives name and category, drops non-travel categories, dedupes by id
// keeping the instance nearest to center, and sorts by distance.
func normalize(center geo.Point, elements []overpassElement) []Place {
	nearest := make(map[string]Place)
	for _, el := range elements {
		pt, ok := coordOf(el)
		if !ok {
			continue
		}

		category := categoryFromTags(el.Tags)
		if category.Kind == CategoryOther {
			continue
		}

		tags := el.Tags
		if tags == nil {
			tags = map[string]string{}
		}

		p := Place{
			ID:        fmt.Sprintf("%s/%d", el.Type, el.ID),
			Type:      el.Type,
			Name:      nameFromTags(el.Tags),
			Category:  category,
			Lat:       pt.Lat,
			Lon:       pt.Lon,
			DistanceM: int(math.Round(geo.DistanceMeters(center, pt))),
			Tags:      tags,
		}

		if prev, seen := nearest[p.ID]; !seen || p.DistanceM < prev.DistanceM {
			nearest[p.ID] = p
		}
	}

	out := make([]Place, 0, len(nearest))
	for _, p := range nearest {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceM < out[j].DistanceM })
	return out
}

// coordOf resolves an element's point: nodes carry lat/lon directly, ways
// and relations carry a provider-computed center. Elements with neither
// are unusable.
func coordOf(el overpassElement) (geo.Point, bool) {
	if el.Lat != nil && el.Lon != nil {
		return geo.Point{Lat: *el.Lat, Lon: *el.Lon}, true
	}
	if el.Center != nil {
		return geo.Point{Lat: el.Center.Lat, Lon: el.Center.Lon}, true
	}
	return geo.Point{}, false
}

// nameFromTags picks a display name: localized name first, then the raw
// category token, then a generic label.
func nameFromTags(tags map[string]string) string {
	for _, k := range []string{"name", "name:en", "tourism", "historic", "natural"} {
		if v := tags[k]; v != "" {
			return v
		}
	}
	return "Unnamed"
}

// categoryFromTags derives the travel category with a fixed priority among
// tag namespaces.
func categoryFromTags(tags map[string]string) Category {
	if v := tags["tourism"]; v != "" {
		return Category{Kind: CategoryTourism, Sub: v}
	}
	if v := tags["natural"]; v != "" {
		return Category{Kind: CategoryNatural, Sub: v}
	}
	if v := tags["historic"]; v != "" {
		return Category{Kind: CategoryHistoric, Sub: v}
	}
	if tags["leisure"] == "park" {
		return Category{Kind: CategoryPark}
	}
	return Category{Kind: CategoryOther}
}
