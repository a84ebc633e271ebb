package tui

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lumipallolabs/facetmap/internal/core"
	"github.com/lumipallolabs/facetmap/internal/search"
)

type fakeSource struct {
	failDrill atomic.Bool
	calls     atomic.Int32
}

func (s *fakeSource) Query(ctx context.Context, req search.Request) (search.Response, error) {
	s.calls.Add(1)
	if len(req.Filters) > 0 {
		if s.failDrill.Load() {
			return search.Response{}, errors.New("index offline")
		}
		return drillResponse(), nil
	}
	return rootResponse(), nil
}

func newTestApp(t *testing.T, src search.Querier) App {
	t.Helper()
	app, err := NewApp(context.Background(), Options{
		Version: "test",
		Source:  "idx",
		Querier: src,
		Core:    core.DefaultOptions(),
	})
	if err != nil {
		t.Fatal(err)
	}
	app.Init()
	app = update(t, app, tea.WindowSizeMsg{Width: 100, Height: 40})
	return settle(t, app)
}

func update(t *testing.T, app App, msg tea.Msg) App {
	t.Helper()
	m, _ := app.Update(msg)
	out, ok := m.(App)
	if !ok {
		t.Fatalf("unexpected model %T", m)
	}
	return out
}

// settle runs the controller's pending fetch and feeds the result back
func settle(t *testing.T, app App) App {
	t.Helper()
	f := app.ctrl.Pending()
	if f == nil {
		t.Fatal("expected a pending fetch")
	}
	return update(t, app, fetchResultMsg{res: f.Run(context.Background(), app.querier)})
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestAppLoadsRoot(t *testing.T) {
	app := newTestApp(t, &fakeSource{})

	if len(app.treemap.Blocks()) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(app.treemap.Blocks()))
	}
	view := app.View()
	if !strings.Contains(view, "group_id") || !strings.Contains(view, "staff") {
		t.Errorf("expected header path and labels in view:\n%s", view)
	}
	if !app.ctrl.Interactive() {
		t.Error("loaded app should accept input")
	}
}

func TestAppZoomInAndOut(t *testing.T) {
	app := newTestApp(t, &fakeSource{})

	app = update(t, app, keyMsg("enter"))
	if app.ctrl.Interactive() {
		t.Error("display should be frozen while the drill is in flight")
	}
	app = settle(t, app)

	if app.ctrl.Depth() != 1 {
		t.Fatalf("expected depth 1, got %d", app.ctrl.Depth())
	}
	if !strings.Contains(app.header.View(), "group:staff:users") {
		t.Errorf("expected drill path in header:\n%s", app.header.View())
	}
	if !app.treemap.Animating() {
		t.Error("expected a zoom-in animation")
	}

	app = update(t, app, keyMsg("esc"))
	if app.ctrl.Depth() != 0 {
		t.Errorf("expected root after zoom out, got depth %d", app.ctrl.Depth())
	}
	if sel, _ := app.treemap.Selected(); sel.Name != "staff" {
		t.Errorf("expected heaviest selected at root, got %q", sel.Name)
	}
}

func TestAppCancelDiscardsResponse(t *testing.T) {
	app := newTestApp(t, &fakeSource{})

	app = update(t, app, keyMsg("enter"))
	f := app.ctrl.Pending()
	if f == nil {
		t.Fatal("expected a pending drill")
	}
	app = update(t, app, keyMsg("esc"))
	if app.ctrl.Pending() != nil || !app.ctrl.Interactive() {
		t.Fatal("escape should cancel the drill")
	}

	app = update(t, app, fetchResultMsg{res: f.Run(context.Background(), app.querier)})
	if app.ctrl.Depth() != 0 {
		t.Errorf("late response should be discarded, got depth %d", app.ctrl.Depth())
	}
	if app.err != nil {
		t.Errorf("stale response should not surface an error: %v", app.err)
	}
}

func TestAppDrillFailure(t *testing.T) {
	src := &fakeSource{}
	src.failDrill.Store(true)
	app := newTestApp(t, src)

	app = update(t, app, keyMsg("enter"))
	app = settle(t, app)

	if !errors.Is(app.err, core.ErrQueryFailure) {
		t.Errorf("expected a query failure, got %v", app.err)
	}
	if app.ctrl.Depth() != 0 || !app.ctrl.Interactive() {
		t.Error("failure should leave the root interactive")
	}
	if !strings.Contains(app.header.View(), "index offline") {
		t.Error("expected the failure in the header")
	}
}

func TestAppNavigationAndJump(t *testing.T) {
	app := newTestApp(t, &fakeSource{})

	app = update(t, app, keyMsg("right"))
	if sel, _ := app.treemap.Selected(); sel.Name != "guests" {
		t.Errorf("expected guests after moving right, got %q", sel.Name)
	}

	app = update(t, app, keyMsg("/"))
	if !app.jump.IsVisible() {
		t.Fatal("expected the jump prompt")
	}
	for _, r := range "stf" {
		app = update(t, app, keyMsg(string(r)))
	}
	if it, ok := app.jump.Choice(); !ok || it.Name != "staff" {
		t.Errorf("expected staff to match, got %q", it.Name)
	}
	app = update(t, app, keyMsg("enter"))
	if app.jump.IsVisible() {
		t.Error("enter should close the prompt")
	}
	if app.ctrl.Pending() == nil {
		t.Error("jumping to a drillable block should zoom into it")
	}
}

func TestAppMouse(t *testing.T) {
	app := newTestApp(t, &fakeSource{})

	click := tea.MouseMsg{X: 99, Y: headerHeight + 1, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}
	app = update(t, app, click)
	if sel, _ := app.treemap.Selected(); sel.Name != "guests" {
		t.Errorf("expected click to select guests, got %q", sel.Name)
	}
	if app.ctrl.Pending() == nil {
		t.Fatal("click on a drillable block should zoom")
	}
	app = settle(t, app)

	right := tea.MouseMsg{X: 1, Y: headerHeight + 1, Action: tea.MouseActionPress, Button: tea.MouseButtonRight}
	app = update(t, app, right)
	if app.ctrl.Depth() != 0 {
		t.Errorf("right click should zoom out, got depth %d", app.ctrl.Depth())
	}
}

func TestAppReloadsOnChange(t *testing.T) {
	src := &fakeSource{}
	changes := make(chan struct{}, 1)
	app, err := NewApp(context.Background(), Options{Querier: src, Core: core.DefaultOptions(), Changes: changes})
	if err != nil {
		t.Fatal(err)
	}
	app.Init()
	app = settle(t, app)

	app = update(t, app, changeMsg{})
	if app.ctrl.Pending() == nil {
		t.Fatal("change should start a reload")
	}
	app = settle(t, app)
	if got := src.calls.Load(); got != 2 {
		t.Errorf("expected 2 root queries, got %d", got)
	}
}

func TestAppReloadsAfterChangeDuringFetch(t *testing.T) {
	src := &fakeSource{}
	changes := make(chan struct{}, 1)
	app, err := NewApp(context.Background(), Options{Querier: src, Core: core.DefaultOptions(), Changes: changes})
	if err != nil {
		t.Fatal(err)
	}
	app.Init()
	app = update(t, app, tea.WindowSizeMsg{Width: 100, Height: 40})
	app = settle(t, app)

	app = update(t, app, keyMsg("enter"))
	drill := app.ctrl.Pending()
	if drill == nil {
		t.Fatal("expected a drill in flight")
	}
	app = update(t, app, changeMsg{})
	if app.ctrl.Pending() != drill {
		t.Fatal("a change must not interrupt the drill")
	}

	// the drill lands, then the deferred reload starts
	app = settle(t, app)
	if f := app.ctrl.Pending(); f == nil || f.Phase != core.PhaseRoot {
		t.Fatalf("expected a root reload after the drill, got %+v", f)
	}
	app = settle(t, app)
	if got := src.calls.Load(); got != 3 {
		t.Errorf("expected root, drill and reload queries, got %d", got)
	}
	if app.dirty {
		t.Error("reload should clear the pending change")
	}
}

func TestAppDiffSummary(t *testing.T) {
	prev := search.Response{FacetResults: []search.FacetResult{{
		Name:    "group_id",
		Buckets: []search.Bucket{{Value: "staff", Count: 50}, {Value: "old", Count: 5}},
	}}}
	app, err := NewApp(context.Background(), Options{
		Querier:  &fakeSource{},
		Core:     core.DefaultOptions(),
		Baseline: func(search.Request) (search.Response, bool) { return prev, true },
	})
	if err != nil {
		t.Fatal(err)
	}
	app.Init()
	app = update(t, app, tea.WindowSizeMsg{Width: 120, Height: 30})
	app = settle(t, app)

	if !app.header.hasDiff {
		t.Fatal("expected a change summary")
	}
	if app.header.diff.Grew != 1 || app.header.diff.New != 1 || app.header.diff.Removed != 1 {
		t.Errorf("unexpected summary %+v", app.header.diff)
	}
}

func TestNewAppRequiresQuerier(t *testing.T) {
	if _, err := NewApp(context.Background(), Options{Core: core.DefaultOptions()}); err == nil {
		t.Error("expected an error without a querier")
	}
}
