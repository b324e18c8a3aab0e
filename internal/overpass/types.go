package overpass

import (
	"encoding/json"
	"strings"
)

// ElementType is the OSM element kind a place was derived from.
type ElementType string

const (
	ElementNode     ElementType = "node"
	ElementWay      ElementType = "way"
	ElementRelation ElementType = "relation"
)

// CategoryKind is the closed set of tag namespaces a travel place can
// belong to. CategoryOther marks elements outside the travel categories;
// those never leave this package.
type CategoryKind int

const (
	CategoryOther CategoryKind = iota
	CategoryTourism
	CategoryNatural
	CategoryHistoric
	CategoryPark
)

// Category is a tagged travel category, e.g. {CategoryTourism, "museum"}.
type Category struct {
	Kind CategoryKind
	Sub  string
}

// String renders the category in the colon-namespaced wire form.
func (c Category) String() string {
	switch c.Kind {
	case CategoryTourism:
		return "tourism:" + c.Sub
	case CategoryNatural:
		return "natural:" + c.Sub
	case CategoryHistoric:
		return "historic:" + c.Sub
	case CategoryPark:
		return "leisure:park"
	default:
		return "other"
	}
}

// ParseCategory is the inverse of String. Unrecognized values parse as
// CategoryOther.
func ParseCategory(s string) Category {
	if s == "leisure:park" {
		return Category{Kind: CategoryPark}
	}
	ns, sub, ok := strings.Cut(s, ":")
	if !ok {
		return Category{Kind: CategoryOther}
	}
	switch ns {
	case "tourism":
		return Category{Kind: CategoryTourism, Sub: sub}
	case "natural":
		return Category{Kind: CategoryNatural, Sub: sub}
	case "historic":
		return Category{Kind: CategoryHistoric, Sub: sub}
	default:
		return Category{Kind: CategoryOther}
	}
}

// MarshalJSON serializes the category as its colon-namespaced string.
func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON parses the colon-namespaced string form.
func (c *Category) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*c = ParseCategory(s)
	return nil
}

// Place is a normalized point-of-interest candidate. It lives only for
// the duration of one request cycle and is never persisted as an entity.
type Place struct {
	ID        string            `json:"id"` // provider-qualified, e.g. "node/123"
	Type      ElementType       `json:"type"`
	Name      string            `json:"name"`
	Category  Category          `json:"category"`
	Lat       float64           `json:"lat"`
	Lon       float64           `json:"lon"`
	DistanceM int               `json:"distance_m"`
	Tags      map[string]string `json:"tags"`
}

// overpassResponse is the raw Overpass API JSON envelope.
type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type ElementType `json:"type"`
	ID   int64       `json:"id"`
	Lat  *float64    `json:"lat"`
	Lon  *float64    `json:"lon"`
	Center *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"center"`
	Tags map[string]string `json:"tags"`
}
