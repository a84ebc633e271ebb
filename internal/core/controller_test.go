package core

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/lumipallolabs/facetmap/internal/bands"
	"github.com/lumipallolabs/facetmap/internal/cache"
	"github.com/lumipallolabs/facetmap/internal/hierarchy"
	"github.com/lumipallolabs/facetmap/internal/model"
	"github.com/lumipallolabs/facetmap/internal/render"
	"github.com/lumipallolabs/facetmap/internal/search"
	"github.com/lumipallolabs/facetmap/internal/stats"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Width = 100
	opts.Height = 100
	return opts
}

func rootResponse() search.Response {
	return search.Response{FacetResults: []search.FacetResult{
		{Name: "mode_first_char", Buckets: []search.Bucket{{Value: "-", Count: 95}, {Value: "d", Count: 5}}},
		{Name: "group_id", Buckets: []search.Bucket{{Value: "A", Count: 90}, {Value: "B", Count: 10}}},
	}}
}

func drillResponse() search.Response {
	return search.Response{FacetResults: []search.FacetResult{
		{Name: "user_id", Buckets: []search.Bucket{
			{Value: "alice", Count: 50},
			{Value: "bob", Count: 30},
			{Value: "carol", Count: 10},
		}},
	}}
}

func staticQuerier(resp search.Response, err error) search.Querier {
	return search.QuerierFunc(func(ctx context.Context, req search.Request) (search.Response, error) {
		return resp, err
	})
}

func newLoaded(t *testing.T, opts Options, bridge render.Bridge) *Controller {
	t.Helper()
	c, err := NewController(opts, bridge)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	if _, err := c.Refresh(rootResponse()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return c
}

func rootNode(t *testing.T, c *Controller, name string) *model.Node {
	t.Helper()
	n := c.Level().Active.Child(name)
	if n == nil {
		t.Fatalf("no child %q", name)
	}
	return n
}

type placement struct {
	rect   model.Rect
	device render.DeviceRect
}

func placements(f render.Frame) map[string]placement {
	out := make(map[string]placement, len(f.Items))
	for _, it := range f.Items {
		out[it.ID] = placement{it.Rect, it.Device}
	}
	return out
}

func TestEndToEndExample(t *testing.T) {
	c := newLoaded(t, testOptions(), nil)

	f := c.Frame()
	a, ok := f.Find("A")
	if !ok {
		t.Fatal("A not rendered")
	}
	b, _ := f.Find("B")

	if share := a.Rect.Area(); math.Abs(share-0.9) > 1e-9 {
		t.Errorf("A should cover 90%% of the display, got %.4f", share)
	}
	if share := b.Rect.Area(); math.Abs(share-0.1) > 1e-9 {
		t.Errorf("B should cover 10%% of the display, got %.4f", share)
	}
	if area := a.Device.W * a.Device.H; area != 9000 {
		t.Errorf("A device area: expected 9000, got %d", area)
	}
	if a.Band != bands.A {
		t.Errorf("A: expected band A, got %s", a.Band)
	}
	if b.Band != bands.E {
		t.Errorf("B: expected band E, got %s", b.Band)
	}

	head, ok := f.Root()
	if !ok || head.Label != "group_id" || head.Device.Y != -30 {
		t.Errorf("unexpected header %+v", head)
	}
	if last := f.Items[len(f.Items)-1]; !last.IsRoot {
		t.Error("header must be drawn last")
	}
	if c.State() != StateRoot || !c.Interactive() {
		t.Errorf("expected interactive root, got %s interactive=%v", c.State(), c.Interactive())
	}
}

func TestZoomInThenOutRestoresRects(t *testing.T) {
	c := newLoaded(t, testOptions(), nil)
	before := placements(c.Frame())

	fetch, err := c.ZoomIn(rootNode(t, c, "A"))
	if err != nil {
		t.Fatalf("zoom in: %v", err)
	}
	if fetch == nil {
		t.Fatal("deferred node should return a fetch")
	}
	if c.Interactive() || c.Frame().Interactive {
		t.Error("render set must be non-interactive while the fetch is outstanding")
	}

	ev, err := c.Apply(fetch.Run(context.Background(), staticQuerier(drillResponse(), nil)))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	in, ok := ev.(ZoomedInEvent)
	if !ok || in.Level != 1 {
		t.Fatalf("expected ZoomedInEvent at level 1, got %#v", ev)
	}
	if c.State() != StateZoomedIn || !c.Interactive() {
		t.Errorf("expected interactive zoomed-in state, got %s", c.State())
	}

	frame := c.Frame()
	head, _ := frame.Root()
	if head.Label != "group:A:users" {
		t.Errorf("unexpected drill root %q", head.Label)
	}
	if _, ok := frame.Find("user:alice"); !ok {
		t.Error("drilled children should be named user:<value>")
	}
	if frame.Transition == nil || frame.Transition.Direction != render.DirectionIn {
		t.Error("zoom in should request a transition")
	}

	if _, err := c.ZoomOut(); err != nil {
		t.Fatalf("zoom out: %v", err)
	}
	after := placements(c.Frame())
	if len(after) != len(before) {
		t.Fatalf("expected %d items after zoom out, got %d", len(before), len(after))
	}
	for id, want := range before {
		if got, ok := after[id]; !ok || got != want {
			t.Errorf("%s: expected %+v, got %+v", id, want, got)
		}
	}
	if c.State() != StateRoot {
		t.Errorf("expected root, got %s", c.State())
	}
	if tr := c.Frame().Transition; tr == nil || tr.Direction != render.DirectionOut || tr.Duration != DefaultTransition {
		t.Errorf("zoom out should request a %v transition, got %+v", DefaultTransition, tr)
	}
}

func TestZoomFailureKeepsRoot(t *testing.T) {
	c := newLoaded(t, testOptions(), nil)
	before := placements(c.Frame())

	fetch, err := c.ZoomIn(rootNode(t, c, "A"))
	if err != nil {
		t.Fatalf("zoom in: %v", err)
	}
	ev, err := c.Apply(fetch.Run(context.Background(), staticQuerier(search.Response{}, errors.New("connection reset"))))
	if !errors.Is(err, ErrQueryFailure) {
		t.Fatalf("expected query failure, got %v", err)
	}
	var qe *QueryError
	if !errors.As(err, &qe) || qe.Phase != PhaseDrill || qe.Node != "A" {
		t.Errorf("unexpected query error %#v", qe)
	}
	if _, ok := ev.(ZoomFailedEvent); !ok {
		t.Errorf("expected ZoomFailedEvent, got %#v", ev)
	}

	if c.State() != StateRoot {
		t.Errorf("expected root, got %s", c.State())
	}
	if !c.Interactive() || !c.Frame().Interactive {
		t.Error("interactivity must be restored")
	}
	for id, got := range placements(c.Frame()) {
		if got != before[id] {
			t.Errorf("%s moved after a failed zoom", id)
		}
	}

	// the view is usable again
	if _, err := c.ZoomIn(rootNode(t, c, "A")); err != nil {
		t.Errorf("zoom after failure: %v", err)
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	c := newLoaded(t, testOptions(), nil)
	before := c.Frame()

	fetch, err := c.ZoomIn(rootNode(t, c, "A"))
	if err != nil {
		t.Fatalf("zoom in: %v", err)
	}

	ev, err := c.ZoomOut()
	if err != nil {
		t.Fatalf("zoom out: %v", err)
	}
	if _, ok := ev.(FetchCanceledEvent); !ok {
		t.Errorf("expected FetchCanceledEvent, got %#v", ev)
	}
	if !c.Interactive() {
		t.Error("canceling must restore interactivity")
	}

	_, err = c.Apply(fetch.Run(context.Background(), staticQuerier(drillResponse(), nil)))
	if !errors.Is(err, ErrStaleResponse) {
		t.Fatalf("expected stale response, got %v", err)
	}
	if c.State() != StateRoot {
		t.Errorf("stale response changed state to %s", c.State())
	}
	after := c.Frame()
	if got := c.Generation(); got != before.Generation+2 {
		t.Errorf("expected generation %d, got %d", before.Generation+2, got)
	}
	for id, got := range placements(after) {
		if got != placements(before)[id] {
			t.Errorf("%s moved after a stale response", id)
		}
	}
}

func TestBusyRejectsSecondZoom(t *testing.T) {
	c := newLoaded(t, testOptions(), nil)
	if _, err := c.ZoomIn(rootNode(t, c, "A")); err != nil {
		t.Fatalf("zoom in: %v", err)
	}
	if _, err := c.ZoomIn(rootNode(t, c, "B")); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
}

func TestLeavesAreNotDrillable(t *testing.T) {
	opts := testOptions()
	opts.Drill = search.FacetRequest{}
	c := newLoaded(t, opts, nil)

	if _, err := c.ZoomIn(rootNode(t, c, "A")); !errors.Is(err, ErrNotDrillable) {
		t.Errorf("expected ErrNotDrillable, got %v", err)
	}
	if _, err := c.ZoomIn(nil); !errors.Is(err, ErrNotDrillable) {
		t.Errorf("nil node: expected ErrNotDrillable, got %v", err)
	}
	if _, err := c.ZoomOut(); !errors.Is(err, ErrAtRoot) {
		t.Errorf("expected ErrAtRoot, got %v", err)
	}
	if !c.Interactive() {
		t.Error("rejected zoom must not disable input")
	}
}

func TestDrillRequest(t *testing.T) {
	c := newLoaded(t, testOptions(), nil)
	fetch, err := c.ZoomIn(rootNode(t, c, "B"))
	if err != nil {
		t.Fatalf("zoom in: %v", err)
	}

	req := fetch.Request
	if req.Limit != 0 || req.Offset != 0 || req.Query != search.MatchAll {
		t.Errorf("unexpected paging %+v", req)
	}
	if len(req.Facets) != 1 || req.Facets[0].Field != "user_id" || req.Facets[0].Size != DefaultDrillSize {
		t.Errorf("unexpected facets %+v", req.Facets)
	}
	if len(req.Filters) != 1 {
		t.Fatalf("expected one filter, got %+v", req.Filters)
	}
	fl := req.Filters[0]
	if fl.Type != search.FilterMatchAny || fl.Field != "group_id" || len(fl.Values) != 1 || fl.Values[0] != "B" {
		t.Errorf("unexpected filter %+v", fl)
	}
}

func TestDrillEmptyBucketsKeepsRoot(t *testing.T) {
	c := newLoaded(t, testOptions(), nil)
	fetch, _ := c.ZoomIn(rootNode(t, c, "A"))

	empty := search.Response{FacetResults: []search.FacetResult{{Name: "user_id"}}}
	_, err := c.Apply(fetch.Run(context.Background(), staticQuerier(empty, nil)))
	if !errors.Is(err, hierarchy.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if c.State() != StateRoot || !c.Interactive() {
		t.Errorf("expected interactive root, got %s interactive=%v", c.State(), c.Interactive())
	}
}

func TestEagerZoom(t *testing.T) {
	c, err := NewController(testOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}

	groups := map[string][]search.Bucket{
		"staff":    {{Value: "ann", Count: 30}, {Value: "ben", Count: 30}},
		"students": {{Value: "cy", Count: 40}},
	}
	root, err := hierarchy.Build(hierarchy.Input{
		RootName: "group_id",
		Buckets:  []search.Bucket{{Value: "staff", Count: 60}, {Value: "students", Count: 40}},
		Nested:   func(b search.Bucket) []search.Bucket { return groups[b.Value] },
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := c.SetRoot(root, "group_id", stats.Map{"group_id": {Max: 60, Min: 40}}); err != nil {
		t.Fatalf("set root: %v", err)
	}
	before := placements(c.Frame())

	staff := root.Child("staff")
	fetch, err := c.ZoomIn(staff)
	if err != nil || fetch != nil {
		t.Fatalf("eager zoom should apply at once, got %v %v", fetch, err)
	}

	level := c.Level()
	if level.Extent() != staff.Rect {
		t.Errorf("domain should be the node's extent, got %+v want %+v", level.Extent(), staff.Rect)
	}
	var area int
	for _, it := range c.Frame().Items {
		if !it.IsRoot {
			area += it.Device.W * it.Device.H
		}
	}
	if area != 100*100 {
		t.Errorf("zoomed children should fill the display, got area %d", area)
	}

	if _, err := c.ZoomOut(); err != nil {
		t.Fatalf("zoom out: %v", err)
	}
	for id, got := range placements(c.Frame()) {
		if got != before[id] {
			t.Errorf("%s: expected %+v, got %+v", id, before[id], got)
		}
	}
}

func TestLoadAppliesRoot(t *testing.T) {
	c, err := NewController(testOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.ZoomIn(&model.Node{Name: "x", Kind: model.KindDeferred}); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}

	fetch := c.Load()
	if len(fetch.Request.Facets) != 3 || fetch.Request.Limit != 0 {
		t.Errorf("unexpected root request %+v", fetch.Request)
	}
	ev, err := c.Apply(fetch.Run(context.Background(), staticQuerier(rootResponse(), nil)))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, ok := ev.(RefreshedEvent); !ok {
		t.Errorf("expected RefreshedEvent, got %#v", ev)
	}
	if len(c.Frame().Items) != 3 {
		t.Errorf("expected two buckets and a header, got %d items", len(c.Frame().Items))
	}

	failed := c.Load()
	_, err = c.Apply(failed.Run(context.Background(), staticQuerier(search.Response{}, errors.New("timeout"))))
	var qe *QueryError
	if !errors.As(err, &qe) || qe.Phase != PhaseRoot {
		t.Errorf("expected root query error, got %v", err)
	}
	if !c.Interactive() || len(c.Frame().Items) != 3 {
		t.Error("failed reload must keep the previous view")
	}
}

func TestRefreshDiscardsZoom(t *testing.T) {
	c := newLoaded(t, testOptions(), nil)
	fetch, _ := c.ZoomIn(rootNode(t, c, "A"))
	if _, err := c.Apply(fetch.Run(context.Background(), staticQuerier(drillResponse(), nil))); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if _, err := c.Refresh(rootResponse()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if c.State() != StateRoot || c.Depth() != 0 {
		t.Errorf("refresh should return to root, got %s depth %d", c.State(), c.Depth())
	}

	if _, err := c.Refresh(search.Response{}); !errors.Is(err, ErrMissingFacet) {
		t.Errorf("expected ErrMissingFacet, got %v", err)
	}
}

func TestBridgeAndListeners(t *testing.T) {
	var rec render.Recorder
	c, err := NewController(testOptions(), &rec)
	if err != nil {
		t.Fatal(err)
	}
	var events []Event
	c.Subscribe(func(ev Event) { events = append(events, ev) })

	if _, err := c.Refresh(rootResponse()); err != nil {
		t.Fatal(err)
	}
	fetch, _ := c.ZoomIn(c.Level().Active.Child("A"))
	if _, err := c.Apply(fetch.Run(context.Background(), staticQuerier(drillResponse(), nil))); err != nil {
		t.Fatal(err)
	}

	last, ok := rec.Last()
	if !ok || last.Level != 1 || last.Transition == nil {
		t.Fatalf("bridge should get the drilled frame, got %+v", last)
	}
	if len(last.Transition.From) != 3 || len(last.Transition.To) != 4 {
		t.Errorf("transition from %d to %d items", len(last.Transition.From), len(last.Transition.To))
	}
	for _, f := range rec.Frames[1 : len(rec.Frames)-1] {
		if f.Interactive {
			t.Error("frames drawn during the fetch must be non-interactive")
		}
	}

	want := []string{"core.RefreshedEvent", "core.ZoomStartedEvent", "core.ZoomedInEvent"}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	if _, ok := events[1].(ZoomStartedEvent); !ok {
		t.Errorf("expected ZoomStartedEvent second, got %#v", events[1])
	}
}

func TestNewControllerRejectsEmptyDisplay(t *testing.T) {
	opts := testOptions()
	opts.Height = 0
	if _, err := NewController(opts, nil); err == nil {
		t.Error("expected an error for a zero-height display")
	}
}

func TestDrillNames(t *testing.T) {
	if got := DrillRootName("group_id", "staff", "user_id"); got != "group:staff:users" {
		t.Errorf("unexpected root name %q", got)
	}
	if got := DrillChildName("user_id", "alice"); got != "user:alice" {
		t.Errorf("unexpected child name %q", got)
	}
}

func TestZoomInRejectsNodeOutsideLevel(t *testing.T) {
	c := newLoaded(t, testOptions(), nil)
	old := rootNode(t, c, "A")

	// a reload replaces the tree; nodes from the old one are no longer shown
	if _, err := c.Refresh(rootResponse()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := c.ZoomIn(old); !errors.Is(err, ErrNotDrillable) {
		t.Errorf("stale node: expected ErrNotDrillable, got %v", err)
	}
	if !c.Interactive() || c.Pending() != nil {
		t.Error("rejected zoom should leave the controller idle")
	}

	deep := &model.Node{Name: "x", Kind: model.KindDeferred, Parent: rootNode(t, c, "B")}
	if _, err := c.ZoomIn(deep); !errors.Is(err, ErrNotDrillable) {
		t.Errorf("descendant: expected ErrNotDrillable, got %v", err)
	}
}

func TestDrillFailureThroughSnapshotCache(t *testing.T) {
	fail := false
	next := search.QuerierFunc(func(ctx context.Context, req search.Request) (search.Response, error) {
		if fail {
			return search.Response{}, errors.New("connection reset")
		}
		if len(req.Filters) > 0 {
			return drillResponse(), nil
		}
		return rootResponse(), nil
	})
	q := &cache.Querier{Cache: cache.New(t.TempDir()), Next: next}

	c := newLoaded(t, testOptions(), nil)
	f, err := c.ZoomIn(rootNode(t, c, "A"))
	if err != nil {
		t.Fatalf("zoom in: %v", err)
	}
	if _, err := c.Apply(f.Run(context.Background(), q)); err != nil {
		t.Fatalf("first drill: %v", err)
	}
	if _, err := c.ZoomOut(); err != nil {
		t.Fatalf("zoom out: %v", err)
	}

	// the drill response is now on disk, but a live failure must still surface
	fail = true
	f, err = c.ZoomIn(rootNode(t, c, "A"))
	if err != nil {
		t.Fatalf("zoom in: %v", err)
	}
	ev, err := c.Apply(f.Run(context.Background(), q))
	if !errors.Is(err, ErrQueryFailure) {
		t.Fatalf("expected ErrQueryFailure, got %v", err)
	}
	if _, ok := ev.(ZoomFailedEvent); !ok {
		t.Errorf("expected ZoomFailedEvent, got %T", ev)
	}
	if c.State() != StateRoot || !c.Interactive() {
		t.Errorf("failed drill should keep the root, got %s interactive=%v", c.State(), c.Interactive())
	}
}
