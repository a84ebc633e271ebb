package core

import (
	"strings"
	"time"

	"github.com/lumipallolabs/facetmap/internal/model"
	"github.com/lumipallolabs/facetmap/internal/search"
	"github.com/lumipallolabs/facetmap/internal/stats"
	"github.com/lumipallolabs/facetmap/internal/tiling"
)

// State is the controller's position in the zoom state machine
type State int

const (
	// StateRoot shows the top-level aggregation
	StateRoot State = iota
	// StateZoomedIn shows the children of a drilled node
	StateZoomedIn
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateRoot:
		return "root"
	case StateZoomedIn:
		return "zoomed-in"
	default:
		return ""
	}
}

// ZoomLevel is one displayed level
// Levels are replaced on every transition, never mutated in place.
type ZoomLevel struct {
	// Active is the node whose children are rendered
	Active *model.Node
	// Focus is the node zoomed into from the level below, nil at the root
	Focus *model.Node

	DomainX [2]float64
	DomainY [2]float64

	// Dimension is the facet the active children are buckets of
	Dimension string
	Stats     stats.Map
}

// Extent returns the level's coordinate domain as a rect
func (l ZoomLevel) Extent() model.Rect {
	return model.Rect{X0: l.DomainX[0], Y0: l.DomainY[0], X1: l.DomainX[1], Y1: l.DomainY[1]}
}

func newLevel(active, focus *model.Node, dimension string, st stats.Map) ZoomLevel {
	r := active.Rect
	return ZoomLevel{
		Active:    active,
		Focus:     focus,
		DomainX:   [2]float64{r.X0, r.X1},
		DomainY:   [2]float64{r.Y0, r.Y1},
		Dimension: dimension,
		Stats:     st,
	}
}

// Options configures a controller
type Options struct {
	// ViewBy is the facet the root level is grouped by
	ViewBy string
	// Facets are requested on every root load
	Facets []search.FacetRequest
	// Drill is the facet fetched when zooming into a root bucket; empty disables drilling
	Drill search.FacetRequest

	Width  int
	Height int
	Header int

	Transition time.Duration
	Strategy   tiling.Strategy
}

// Defaults of the original deployment
const (
	DefaultViewBy     = "group_id"
	DefaultDrillField = "user_id"
	DefaultDrillSize  = 999999
	DefaultFacetSize  = 99999
	DefaultWidth      = 928
	DefaultHeight     = 800
	DefaultHeader     = 30
	DefaultTransition = 750 * time.Millisecond
)

// DefaultOptions returns the options of the original deployment
func DefaultOptions() Options {
	facets := make([]search.FacetRequest, 0, 3)
	for _, f := range []string{"mode_first_char", "user_id", "group_id"} {
		facets = append(facets, search.FacetRequest{Field: f, Type: search.FacetTerms, Size: DefaultFacetSize})
	}
	return Options{
		ViewBy:     DefaultViewBy,
		Facets:     facets,
		Drill:      search.FacetRequest{Field: DefaultDrillField, Type: search.FacetTerms, Size: DefaultDrillSize},
		Width:      DefaultWidth,
		Height:     DefaultHeight,
		Header:     DefaultHeader,
		Transition: DefaultTransition,
	}
}

// Drillable reports whether root buckets get their children on demand
func (o Options) Drillable() bool {
	return o.Drill.Field != "" && o.Drill.Field != o.ViewBy
}

// prefix shortens a field name for node naming: "group_id" -> "group"
func prefix(field string) string {
	return strings.TrimSuffix(field, "_id")
}

// DrillRootName names the synthetic root holding the children of value
func DrillRootName(view, value, drill string) string {
	return prefix(view) + ":" + value + ":" + prefix(drill) + "s"
}

// DrillChildName names one drilled bucket
func DrillChildName(drill, value string) string {
	return prefix(drill) + ":" + value
}
