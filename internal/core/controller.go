package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lumipallolabs/facetmap/internal/bands"
	"github.com/lumipallolabs/facetmap/internal/hierarchy"
	"github.com/lumipallolabs/facetmap/internal/logging"
	"github.com/lumipallolabs/facetmap/internal/model"
	"github.com/lumipallolabs/facetmap/internal/render"
	"github.com/lumipallolabs/facetmap/internal/search"
	"github.com/lumipallolabs/facetmap/internal/stats"
	"github.com/lumipallolabs/facetmap/internal/tiling"
)

var (
	// ErrQueryFailure wraps every failed fetch
	ErrQueryFailure = errors.New("query failed")
	// ErrStaleResponse is returned for a result whose transition was superseded
	ErrStaleResponse = errors.New("stale response")
	// ErrNotDrillable is returned when zooming into a node without children
	ErrNotDrillable = errors.New("node is not drillable")
	// ErrBusy is returned while a transition is outstanding
	ErrBusy = errors.New("transition in progress")
	// ErrAtRoot is returned when zooming out of the root level
	ErrAtRoot = errors.New("already at root")
	// ErrNotLoaded is returned before the first root level exists
	ErrNotLoaded = errors.New("no data loaded")
	// ErrMissingFacet is returned when a response lacks the grouping facet
	ErrMissingFacet = errors.New("facet missing from response")
)

// Phase tells which fetch failed
type Phase int

const (
	PhaseRoot Phase = iota
	PhaseDrill
)

// String returns a human-readable phase name
func (p Phase) String() string {
	switch p {
	case PhaseRoot:
		return "root"
	case PhaseDrill:
		return "drill"
	default:
		return ""
	}
}

// QueryError reports a failed fetch
type QueryError struct {
	Phase Phase
	Node  string
	Err   error
}

func (e *QueryError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("%s query: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("%s query for %q: %v", e.Phase, e.Node, e.Err)
}

// Unwrap returns the underlying error
func (e *QueryError) Unwrap() error { return e.Err }

// Is matches ErrQueryFailure
func (e *QueryError) Is(target error) bool { return target == ErrQueryFailure }

// Fetch is an outstanding request issued by a transition
type Fetch struct {
	Phase      Phase
	Node       *model.Node
	Request    search.Request
	Generation uint64
}

// Run executes the fetch; it touches no controller state and may run on any goroutine
func (f *Fetch) Run(ctx context.Context, q search.Querier) Result {
	logging.Debug.Debugf("[Controller] fetch gen=%d %s", f.Generation, f.Request)
	resp, err := q.Query(ctx, f.Request)
	return Result{Fetch: f, Response: resp, Err: err}
}

// Result is the outcome of a Fetch, handed back to Apply
type Result struct {
	Fetch    *Fetch
	Response search.Response
	Err      error
}

// Controller owns the displayed levels and drives zoom transitions
// Layout runs synchronously in the caller; only Fetch.Run is meant for other goroutines.
type Controller struct {
	mu sync.Mutex

	opts   Options
	engine *tiling.Engine
	bridge render.Bridge

	levels      []ZoomLevel
	interactive bool
	generation  uint64
	pending     *Fetch
	frame       render.Frame

	listeners []func(Event)
}

// NewController creates a controller; bridge may be nil
func NewController(opts Options, bridge render.Bridge) (*Controller, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("display %dx%d: %w", opts.Width, opts.Height, tiling.ErrDegenerateRectangle)
	}
	engine := tiling.New(float64(opts.Width), float64(opts.Height))
	if opts.Strategy != nil {
		engine.Strategy = opts.Strategy
	}
	return &Controller{
		opts:        opts,
		engine:      engine,
		bridge:      bridge,
		interactive: true,
	}, nil
}

// Subscribe registers fn to receive every event
func (c *Controller) Subscribe(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Options returns the controller's configuration
func (c *Controller) Options() Options {
	return c.opts
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.levels) > 1 {
		return StateZoomedIn
	}
	return StateRoot
}

// Level returns the displayed level
func (c *Controller) Level() ZoomLevel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.levels) == 0 {
		return ZoomLevel{}
	}
	return c.levels[len(c.levels)-1]
}

// Depth returns how many levels sit above the root
func (c *Controller) Depth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return max(len(c.levels)-1, 0)
}

// Interactive reports whether the displayed render set accepts input
func (c *Controller) Interactive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interactive
}

// Pending returns the outstanding fetch, if any
func (c *Controller) Pending() *Fetch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Generation returns the current transition token
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Frame returns the latest render set
func (c *Controller) Frame() render.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// Load begins a root fetch
// The displayed set stays on screen, non-interactive, until the result is applied.
func (c *Controller) Load() *Fetch {
	c.mu.Lock()
	c.generation++
	f := &Fetch{
		Phase:      PhaseRoot,
		Request:    search.RootRequest(c.opts.Facets),
		Generation: c.generation,
	}
	c.pending = f
	c.setInteractive(false)
	ev := LoadStartedEvent{Generation: f.Generation}
	frame := c.frame
	c.mu.Unlock()

	c.publish(ev, frame, len(frame.Items) > 0)
	return f
}

// Refresh (re)initializes the root level from a top-level aggregation
// Any zoomed-in state and pending fetch are discarded.
func (c *Controller) Refresh(resp search.Response) (Event, error) {
	facet, ok := resp.Facet(c.opts.ViewBy)
	if !ok {
		return nil, fmt.Errorf("refresh: %q: %w", c.opts.ViewBy, ErrMissingFacet)
	}
	root, err := hierarchy.Build(hierarchy.Input{
		RootName: facet.Name,
		Buckets:  facet.Buckets,
		Deferred: c.opts.Drillable(),
	})
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	return c.SetRoot(root, c.opts.ViewBy, stats.FromResponse(resp))
}

// SetRoot installs an already built tree as the root level
func (c *Controller) SetRoot(root *model.Node, dimension string, st stats.Map) (Event, error) {
	if err := c.engine.Layout(root); err != nil {
		return nil, fmt.Errorf("layout root: %w", err)
	}

	c.mu.Lock()
	c.generation++
	c.pending = nil
	c.interactive = true
	c.levels = []ZoomLevel{newLevel(root, nil, dimension, st)}
	frame := c.buildFrame(nil)
	c.frame = frame
	c.mu.Unlock()

	logging.Debug.Debugf("[Controller] root %q with %d children, gen=%d", root.Name, len(root.Children), frame.Generation)
	ev := RefreshedEvent{Root: root, Frame: frame}
	c.publish(ev, frame, true)
	return ev, nil
}

// ZoomIn begins a transition into node
//
// A deferred node returns the Fetch that will supply its children; run it and
// hand the result to Apply. An internal node with attached children is
// displayed immediately and the returned Fetch is nil.
func (c *Controller) ZoomIn(node *model.Node) (*Fetch, error) {
	if node == nil || !node.Drillable() {
		return nil, ErrNotDrillable
	}

	c.mu.Lock()
	if len(c.levels) == 0 {
		c.mu.Unlock()
		return nil, ErrNotLoaded
	}
	level := c.levels[len(c.levels)-1]
	if node.Parent != level.Active {
		c.mu.Unlock()
		return nil, fmt.Errorf("zoom into %q: not shown at this level: %w", node.Name, ErrNotDrillable)
	}
	if !c.interactive {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.setInteractive(false)

	if node.Kind == model.KindInternal {
		// children are already tiled inside node's rect; the domain moves onto it
		next := newLevel(node, node, level.Dimension, level.Stats)
		c.levels = append(c.levels, next)
		c.interactive = true
		frame := c.buildFrame(&render.Transition{
			Direction: render.DirectionIn,
			From:      c.frame.Items,
			Duration:  c.opts.Transition,
		})
		c.frame = frame
		c.mu.Unlock()

		c.publish(ZoomedInEvent{Node: node, Level: frame.Level, Frame: frame}, frame, true)
		return nil, nil
	}

	c.generation++
	f := &Fetch{
		Phase:      PhaseDrill,
		Node:       node,
		Request:    search.DrillRequest(c.opts.Drill, level.Dimension, node.Name),
		Generation: c.generation,
	}
	c.pending = f
	frame := c.frame
	c.mu.Unlock()

	logging.Debug.Debugf("[Controller] zoom into %q, gen=%d", node.Name, f.Generation)
	c.publish(ZoomStartedEvent{Node: node, Generation: f.Generation}, frame, true)
	return f, nil
}

// Apply completes the transition a Fetch belongs to
func (c *Controller) Apply(res Result) (Event, error) {
	f := res.Fetch
	if f == nil {
		return nil, fmt.Errorf("apply: result without fetch: %w", ErrStaleResponse)
	}

	c.mu.Lock()
	if c.pending != f || f.Generation != c.generation {
		current := c.generation
		c.mu.Unlock()
		logging.Debug.Debugf("[Controller] discard stale gen=%d (current %d)", f.Generation, current)
		return nil, fmt.Errorf("generation %d superseded by %d: %w", f.Generation, current, ErrStaleResponse)
	}
	c.pending = nil

	if res.Err != nil {
		return c.fail(f, res.Err)
	}

	if f.Phase == PhaseRoot {
		c.mu.Unlock()
		ev, err := c.Refresh(res.Response)
		if err != nil {
			c.restore()
			return nil, err
		}
		return ev, nil
	}

	level := c.levels[len(c.levels)-1]
	sub, st, err := c.drillTree(f, level, res.Response)
	if err != nil {
		c.mu.Unlock()
		c.restore()
		return nil, err
	}

	c.levels = append(c.levels, newLevel(sub, f.Node, c.opts.Drill.Field, st))
	c.interactive = true
	frame := c.buildFrame(&render.Transition{
		Direction: render.DirectionIn,
		From:      c.frame.Items,
		Duration:  c.opts.Transition,
	})
	c.frame = frame
	c.mu.Unlock()

	logging.Debug.Debugf("[Controller] zoomed into %q: %d children", f.Node.Name, len(sub.Children))
	ev := ZoomedInEvent{Node: f.Node, Level: frame.Level, Frame: frame}
	c.publish(ev, frame, true)
	return ev, nil
}

// drillTree builds and lays out the level for a drill response
// Nothing is attached to the displayed tree on failure.
func (c *Controller) drillTree(f *Fetch, level ZoomLevel, resp search.Response) (*model.Node, stats.Map, error) {
	field := c.opts.Drill.Field
	facet, ok := resp.Facet(field)
	if !ok {
		if len(resp.FacetResults) == 0 {
			return nil, nil, fmt.Errorf("drill %q: %q: %w", f.Node.Name, field, ErrMissingFacet)
		}
		facet = resp.FacetResults[0]
	}

	sub, err := hierarchy.Build(hierarchy.Input{
		RootName: DrillRootName(level.Dimension, f.Node.Name, field),
		Buckets:  facet.Buckets,
		Name: func(b search.Bucket) string {
			return DrillChildName(field, b.Value)
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("drill %q: %w", f.Node.Name, err)
	}
	if err := c.engine.Layout(sub); err != nil {
		return nil, nil, fmt.Errorf("drill %q: %w", f.Node.Name, err)
	}

	st := stats.FromResponse(resp)
	if _, ok := st[field]; !ok {
		st[field] = stats.FromResponse(search.Response{FacetResults: []search.FacetResult{facet}})[facet.Name]
	}
	return sub, st, nil
}

// fail restores the displayed set after a failed fetch; c.mu must be held
func (c *Controller) fail(f *Fetch, err error) (Event, error) {
	qe := &QueryError{Phase: f.Phase, Err: err}
	var node *model.Node
	if f.Node != nil {
		node = f.Node
		qe.Node = f.Node.Name
	}
	c.interactive = true
	c.frame.Interactive = true
	c.frame.Transition = nil
	frame := c.frame
	c.mu.Unlock()

	logging.Debug.Debugf("[Controller] %v", qe)
	ev := ZoomFailedEvent{Node: node, Err: qe}
	c.publish(ev, frame, len(frame.Items) > 0)
	return ev, qe
}

// restore re-enables input on the displayed set
func (c *Controller) restore() {
	c.mu.Lock()
	c.setInteractive(true)
	frame := c.frame
	c.mu.Unlock()
	c.publish(nil, frame, len(frame.Items) > 0)
}

// ZoomOut returns to the parent level
// With a fetch outstanding it cancels that fetch instead and keeps the current level.
func (c *Controller) ZoomOut() (Event, error) {
	c.mu.Lock()
	if c.pending != nil {
		f := c.pending
		c.generation++
		c.pending = nil
		c.setInteractive(true)
		frame := c.frame
		c.mu.Unlock()

		logging.Debug.Debugf("[Controller] canceled gen=%d", f.Generation)
		ev := FetchCanceledEvent{Node: f.Node, Generation: f.Generation}
		c.publish(ev, frame, len(frame.Items) > 0)
		return ev, nil
	}
	if len(c.levels) < 2 {
		c.mu.Unlock()
		return nil, ErrAtRoot
	}
	if !c.interactive {
		c.mu.Unlock()
		return nil, ErrBusy
	}

	parent := c.levels[len(c.levels)-2]
	if err := c.engine.Layout(parent.Active.Root()); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("zoom out: %w", err)
	}
	c.levels = c.levels[:len(c.levels)-1]
	c.levels[len(c.levels)-1] = newLevel(parent.Active, parent.Focus, parent.Dimension, parent.Stats)

	frame := c.buildFrame(&render.Transition{
		Direction: render.DirectionOut,
		From:      c.frame.Items,
		Duration:  c.opts.Transition,
	})
	c.frame = frame
	c.mu.Unlock()

	ev := ZoomedOutEvent{Level: frame.Level, Frame: frame}
	c.publish(ev, frame, true)
	return ev, nil
}

// ZoomTo zooms into the active child with the given name
func (c *Controller) ZoomTo(name string) (*Fetch, error) {
	c.mu.Lock()
	var node *model.Node
	if len(c.levels) > 0 {
		node = c.levels[len(c.levels)-1].Active.Child(name)
	}
	c.mu.Unlock()
	if node == nil {
		return nil, fmt.Errorf("zoom to %q: %w", name, ErrNotDrillable)
	}
	return c.ZoomIn(node)
}

// buildFrame renders the top level; c.mu must be held
func (c *Controller) buildFrame(tr *render.Transition) render.Frame {
	level := c.levels[len(c.levels)-1]
	t := render.NewTransform(level.DomainX, level.DomainY, c.opts.Width, c.opts.Height)
	peak, ok := level.Stats.Max(level.Dimension)

	active := level.Active
	items := make([]render.Item, 0, len(active.Children)+1)
	for _, ch := range active.Children {
		items = append(items, render.NewItem(ch, false, bands.ClassifyDefined(ch.Weight, peak, ok), t, c.opts.Header))
	}
	items = append(items, render.NewItem(active, true, bands.ClassifyDefined(active.Weight, peak, ok), t, c.opts.Header))

	if tr != nil {
		tr.To = items
	}
	return render.Frame{
		Items:       items,
		Transform:   t,
		Header:      c.opts.Header,
		Interactive: c.interactive,
		Generation:  c.generation,
		Level:       len(c.levels) - 1,
		Transition:  tr,
	}
}

// setInteractive flips input on the displayed set; c.mu must be held
func (c *Controller) setInteractive(on bool) {
	c.interactive = on
	c.frame.Interactive = on
	c.frame.Transition = nil
}

// publish hands the frame to the bridge and the event to listeners; c.mu must not be held
func (c *Controller) publish(ev Event, frame render.Frame, draw bool) {
	if draw && c.bridge != nil {
		if err := c.bridge.Render(frame); err != nil {
			logging.Debug.Debugf("[Controller] render failed: %v", err)
		}
	}
	if ev == nil {
		return
	}
	c.mu.Lock()
	listeners := c.listeners
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}
