// Package render describes what the layout core hands to a drawing backend.
//
// A Bridge receives a Frame on every layout pass: the positioned items in the
// level's coordinate domain plus the Transform mapping that domain to device
// pixels. Bridges own painting, hit-testing and transition animation; the core
// only decides what the before and after layouts are.
package render

import (
	"fmt"
	"math"
	"time"

	"github.com/lumipallolabs/facetmap/internal/bands"
	"github.com/lumipallolabs/facetmap/internal/model"
)

// Item is one drawable region
type Item struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Rect      model.Rect `json:"rect"`
	Device    DeviceRect `json:"device"`
	Band      bands.Band `json:"band"`
	Color     string     `json:"color"`
	Label     string     `json:"label"`
	Lines     []string   `json:"lines"`
	Title     string     `json:"title"`
	Weight    float64    `json:"weight"`
	Depth     int        `json:"depth"`
	IsRoot    bool       `json:"is_root"`
	Drillable bool       `json:"drillable"`

	Node *model.Node `json:"-"`
}

// DeviceRect is an item's placement in device units
type DeviceRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Contains reports whether the device point (x, y) falls inside r
func (r DeviceRect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Scale is a linear map from a domain onto a device range, rounded to whole units
type Scale struct {
	Domain [2]float64 `json:"domain"`
	Range  [2]float64 `json:"range"`
}

// Apply maps v from the domain into the range
func (s Scale) Apply(v float64) int {
	d := s.Domain[1] - s.Domain[0]
	if d == 0 {
		return int(math.Floor(s.Range[0] + 0.5))
	}
	t := (v - s.Domain[0]) / d
	return int(math.Floor(s.Range[0] + t*(s.Range[1]-s.Range[0]) + 0.5))
}

// Transform maps the active level's domain to the device
type Transform struct {
	X Scale `json:"x"`
	Y Scale `json:"y"`
}

// NewTransform maps domainX x domainY onto a width x height device area
func NewTransform(domainX, domainY [2]float64, width, height int) Transform {
	return Transform{
		X: Scale{Domain: domainX, Range: [2]float64{0, float64(width)}},
		Y: Scale{Domain: domainY, Range: [2]float64{0, float64(height)}},
	}
}

// Apply maps a domain rect to device units
func (t Transform) Apply(r model.Rect) DeviceRect {
	x0, x1 := t.X.Apply(r.X0), t.X.Apply(r.X1)
	y0, y1 := t.Y.Apply(r.Y0), t.Y.Apply(r.Y1)
	return DeviceRect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Width returns the device width covered by the range
func (t Transform) Width() int {
	return int(t.X.Range[1] - t.X.Range[0])
}

// Height returns the device height covered by the range
func (t Transform) Height() int {
	return int(t.Y.Range[1] - t.Y.Range[0])
}

// Direction tells which way a transition moves through the levels
type Direction int

const (
	DirectionNone Direction = iota
	DirectionIn
	DirectionOut
)

// String returns a human-readable direction
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "in"
	case DirectionOut:
		return "out"
	default:
		return ""
	}
}

// Transition asks the bridge to move from one render set to another
//
// From is positioned with the transform of the level being left, To with
// the transform of the level being entered.
type Transition struct {
	Direction Direction     `json:"direction"`
	From      []Item        `json:"from"`
	To        []Item        `json:"to"`
	Duration  time.Duration `json:"duration"`
}

// Frame is one complete render set
type Frame struct {
	Items       []Item      `json:"items"`
	Transform   Transform   `json:"transform"`
	Header      int         `json:"header"`
	Interactive bool        `json:"interactive"`
	Generation  uint64      `json:"generation"`
	Level       int         `json:"level"`
	Transition  *Transition `json:"transition,omitempty"`
}

// Root returns the header item of the frame
func (f Frame) Root() (Item, bool) {
	for _, it := range f.Items {
		if it.IsRoot {
			return it, true
		}
	}
	return Item{}, false
}

// Find returns the item with the given name
func (f Frame) Find(name string) (Item, bool) {
	for _, it := range f.Items {
		if it.Name == name {
			return it, true
		}
	}
	return Item{}, false
}

// Hit returns the top-most item covering the device point (x, y)
func (f Frame) Hit(x, y int) (Item, bool) {
	for i := len(f.Items) - 1; i >= 0; i-- {
		if f.Items[i].Device.Contains(x, y) {
			return f.Items[i], true
		}
	}
	return Item{}, false
}

// Bridge draws frames
type Bridge interface {
	Render(frame Frame) error
}

// BridgeFunc adapts a function to Bridge
type BridgeFunc func(Frame) error

// Render implements Bridge
func (f BridgeFunc) Render(frame Frame) error { return f(frame) }

// Handles hands out unique region identifiers, for clip-path style linkage
type Handles struct {
	n int
}

// Handle is a unique region identifier
type Handle struct {
	ID string
}

// Ref returns the fragment reference to the handle
func (h Handle) Ref() string { return "#" + h.ID }

// URL returns the handle wrapped for use in presentation attributes
func (h Handle) URL() string { return fmt.Sprintf("url(#%s)", h.ID) }

// Next returns a new handle for the given region kind
func (h *Handles) Next(kind string) Handle {
	h.n++
	if kind == "" {
		return Handle{ID: fmt.Sprintf("O-%d", h.n)}
	}
	return Handle{ID: fmt.Sprintf("O-%s-%d", kind, h.n)}
}
