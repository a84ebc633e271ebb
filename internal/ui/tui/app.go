// Package tui is the terminal front end: a bubbletea program that draws the
// controller's frames on a cell grid and turns keys and clicks into zooms.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lumipallolabs/facetmap/internal/cache"
	"github.com/lumipallolabs/facetmap/internal/core"
	"github.com/lumipallolabs/facetmap/internal/logging"
	"github.com/lumipallolabs/facetmap/internal/render"
	"github.com/lumipallolabs/facetmap/internal/search"
)

// Message types for Bubble Tea
type (
	fetchResultMsg struct{ res core.Result }
	animTickMsg    struct{ t time.Time }
	spinnerTickMsg struct{}
	changeMsg      struct{}
)

// Spinner frames - modern braille dots spinner
var spinnerFrames = []string{
	"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏",
}

// Timing constants
const (
	spinnerTickInterval = 80 * time.Millisecond
	animFrameInterval   = 33 * time.Millisecond
)

// Layout constants
const (
	headerHeight  = 2
	helpBarHeight = 1
)

// Options configures the application
type Options struct {
	Version string
	// Source is shown in the header, e.g. the index name or scanned path
	Source  string
	Querier search.Querier
	Core    core.Options
	// Baseline returns the previous snapshot of a request, for the change summary
	Baseline func(search.Request) (search.Response, bool)
	// Changes delivers a value whenever the source should be reloaded
	Changes <-chan struct{}
}

// App is the main TUI application model
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	ctrl     *core.Controller
	querier  search.Querier
	baseline func(search.Request) (search.Response, bool)
	changes  <-chan struct{}

	// UI Components
	header  Header
	treemap TreemapPanel
	help    HelpOverlay
	jump    JumpPrompt
	keys    KeyMap
	version string

	spinner int
	err     error
	// dirty records a source change seen while a fetch was outstanding
	dirty bool

	width  int
	height int
}

// NewApp creates a new application instance
func NewApp(ctx context.Context, opts Options) (App, error) {
	if opts.Querier == nil {
		return App{}, errors.New("tui: no querier")
	}
	ctrl, err := core.NewController(opts.Core, nil)
	if err != nil {
		return App{}, err
	}
	ctx, cancel := context.WithCancel(ctx)
	return App{
		ctx:      ctx,
		cancel:   cancel,
		ctrl:     ctrl,
		querier:  opts.Querier,
		baseline: opts.Baseline,
		changes:  opts.Changes,
		header:   NewHeader(opts.Source, opts.Version),
		treemap:  NewTreemapPanel(),
		help:     NewHelpOverlay(opts.Version),
		jump:     NewJumpPrompt(),
		keys:     DefaultKeyMap(),
		version:  opts.Version,
	}, nil
}

// Controller returns the zoom controller behind the app
func (a App) Controller() *core.Controller {
	return a.ctrl
}

// Init implements tea.Model
func (a App) Init() tea.Cmd {
	return tea.Batch(a.reload(), a.listenForChanges())
}

// Update implements tea.Model
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.updateLayout()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.MouseMsg:
		return a.handleMouse(msg)

	case fetchResultMsg:
		return a.applyResult(msg.res)

	case animTickMsg:
		if a.treemap.Advance(msg.t) {
			return a, animTick()
		}
		return a, nil

	case spinnerTickMsg:
		if a.ctrl.Pending() == nil {
			return a, nil
		}
		a.spinner = (a.spinner + 1) % len(spinnerFrames)
		a.header.SetLoading(true, a.loadingText())
		return a, spinnerTick()

	case changeMsg:
		logging.Debug.Debugf("[TUI] source changed")
		if a.ctrl.Pending() != nil {
			a.dirty = true
			return a, a.listenForChanges()
		}
		return a, tea.Batch(a.reload(), a.listenForChanges())
	}

	return a, nil
}

// reload issues a root fetch
func (a *App) reload() tea.Cmd {
	f := a.ctrl.Load()
	a.err = nil
	a.syncFrame()
	a.header.SetLoading(true, a.loadingText())
	return tea.Batch(a.fetch(f), spinnerTick())
}

// fetch runs f off the event loop
func (a App) fetch(f *core.Fetch) tea.Cmd {
	if f == nil {
		return nil
	}
	ctx, q := a.ctx, a.querier
	return func() tea.Msg {
		return fetchResultMsg{res: f.Run(ctx, q)}
	}
}

// applyResult hands a finished fetch to the controller, then reloads if the
// source changed while it was outstanding
func (a App) applyResult(res core.Result) (tea.Model, tea.Cmd) {
	m, cmd := a.apply(res)
	a = m.(App)
	if a.dirty && a.ctrl.Pending() == nil {
		a.dirty = false
		return a, tea.Batch(cmd, a.reload())
	}
	return a, cmd
}

func (a App) apply(res core.Result) (tea.Model, tea.Cmd) {
	ev, err := a.ctrl.Apply(res)
	if errors.Is(err, core.ErrStaleResponse) {
		// canceled or superseded while in flight
		return a, nil
	}
	a.header.SetLoading(false, "")
	if err != nil {
		logging.Debug.Debugf("[TUI] apply failed: %v", err)
		a.err = err
		a.header.SetLoading(false, err.Error())
		a.syncFrame()
		return a, nil
	}
	a.err = nil
	a.syncFrame()

	switch e := ev.(type) {
	case core.RefreshedEvent:
		a.showDiff(res)
	case core.ZoomedInEvent:
		return a, a.animate(e.Node.Name)
	}
	return a, nil
}

// showDiff summarizes bucket changes against the previous snapshot
func (a *App) showDiff(res core.Result) {
	if a.baseline == nil || res.Fetch == nil {
		return
	}
	prev, ok := a.baseline(res.Fetch.Request)
	if !ok {
		return
	}
	a.header.SetDiff(cache.Summarize(cache.Diff(res.Response, prev, a.ctrl.Options().ViewBy)))
}

// listenForChanges creates a command that waits for the next source change
func (a App) listenForChanges() tea.Cmd {
	if a.changes == nil {
		return nil
	}
	ch := a.changes
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changeMsg{}
	}
}

// handleKey handles keyboard input
func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Help overlay - any key closes it
	if a.help.IsVisible() {
		a.help.SetVisible(false)
		return a, nil
	}

	if a.jump.IsVisible() {
		switch msg.String() {
		case "esc":
			a.jump.Close()
			return a, nil
		case "enter":
			it, ok := a.jump.Choice()
			a.jump.Close()
			if !ok {
				return a, nil
			}
			a.treemap.Select(it.ID)
			a.header.SetSelected(a.treemap.Selected())
			if it.Drillable {
				return a.zoomIn(it)
			}
			return a, nil
		}
		var cmd tea.Cmd
		a.jump, cmd = a.jump.Update(msg)
		return a, cmd
	}

	switch {
	case key.Matches(msg, a.keys.Quit):
		a.cancel()
		return a, tea.Quit

	case key.Matches(msg, a.keys.Help):
		a.help.Toggle()
		return a, nil

	case key.Matches(msg, a.keys.Jump):
		return a, a.jump.Open(a.ctrl.Frame().Items)

	case key.Matches(msg, a.keys.Up):
		a.move(0, -1)
	case key.Matches(msg, a.keys.Down):
		a.move(0, 1)
	case key.Matches(msg, a.keys.Left):
		a.move(-1, 0)
	case key.Matches(msg, a.keys.Right):
		a.move(1, 0)

	case key.Matches(msg, a.keys.Top):
		a.treemap.SelectFirst()
		a.header.SetSelected(a.treemap.Selected())

	case key.Matches(msg, a.keys.Enter):
		if it, ok := a.treemap.Selected(); ok {
			return a.zoomIn(it)
		}

	case key.Matches(msg, a.keys.Back):
		return a.zoomOut()

	case key.Matches(msg, a.keys.Reload):
		if a.ctrl.Pending() == nil {
			return a, a.reload()
		}
	}

	return a, nil
}

// handleMouse selects on click; left zooms in and right zooms out
func (a App) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress || a.help.IsVisible() || a.jump.IsVisible() {
		return a, nil
	}
	switch msg.Button {
	case tea.MouseButtonRight:
		return a.zoomOut()
	case tea.MouseButtonLeft:
		it, ok := a.treemap.HitCell(msg.X, msg.Y-headerHeight)
		if !ok {
			return a, nil
		}
		a.treemap.Select(it.ID)
		a.header.SetSelected(a.treemap.Selected())
		if it.Drillable {
			return a.zoomIn(it)
		}
	}
	return a, nil
}

func (a *App) move(dx, dy int) {
	a.treemap.MoveToBlock(dx, dy)
	a.header.SetSelected(a.treemap.Selected())
}

// zoomIn starts a zoom into it, fetching its children when they are deferred
func (a App) zoomIn(it render.Item) (tea.Model, tea.Cmd) {
	if it.Node == nil {
		return a, nil
	}
	f, err := a.ctrl.ZoomIn(it.Node)
	switch {
	case errors.Is(err, core.ErrBusy):
		return a, nil
	case errors.Is(err, core.ErrNotDrillable):
		a.header.SetLoading(false, fmt.Sprintf("%s has no breakdown", it.Name))
		return a, nil
	case err != nil:
		a.err = err
		a.header.SetLoading(false, err.Error())
		return a, nil
	}

	a.err = nil
	a.syncFrame()
	if f == nil {
		return a, a.animate(it.Name)
	}
	a.header.SetLoading(true, a.loadingText())
	return a, tea.Batch(a.fetch(f), spinnerTick())
}

// zoomOut returns to the parent level, or cancels the fetch in flight
func (a App) zoomOut() (tea.Model, tea.Cmd) {
	var anchor string
	if lvl := a.ctrl.Level(); lvl.Focus != nil {
		anchor = lvl.Focus.Name
	}
	ev, err := a.ctrl.ZoomOut()
	if err != nil {
		if !errors.Is(err, core.ErrAtRoot) && !errors.Is(err, core.ErrBusy) {
			a.header.SetLoading(false, err.Error())
		}
		return a, nil
	}

	a.header.SetLoading(false, "")
	a.syncFrame()
	if _, ok := ev.(core.ZoomedOutEvent); ok {
		return a, a.animate(anchor)
	}
	return a, nil
}

// syncFrame pulls the controller's frame into the components
func (a *App) syncFrame() {
	f := a.ctrl.Frame()
	a.treemap.SetFrame(f)
	a.header.SetFrame(f)
	a.header.SetSelected(a.treemap.Selected())
}

func (a *App) animate(anchor string) tea.Cmd {
	if !a.treemap.StartTransition(anchor, time.Now()) {
		return nil
	}
	return animTick()
}

func (a App) loadingText() string {
	what := "root"
	if f := a.ctrl.Pending(); f != nil && f.Node != nil {
		what = f.Node.Name
	}
	return spinnerFrames[a.spinner] + " Loading " + what
}

func animTick() tea.Cmd {
	return tea.Tick(animFrameInterval, func(t time.Time) tea.Msg {
		return animTickMsg{t: t}
	})
}

func spinnerTick() tea.Cmd {
	return tea.Tick(spinnerTickInterval, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

// updateLayout calculates component sizes
func (a *App) updateLayout() {
	panelHeight := a.height - headerHeight - helpBarHeight
	if panelHeight < 1 {
		panelHeight = 1
	}
	a.header.SetWidth(a.width)
	a.treemap.SetSize(a.width, panelHeight)
	a.help.SetSize(a.width, a.height)
	a.jump.SetWidth(min(a.width, 60))
}

// View implements tea.Model
func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Loading..."
	}

	// Overlays
	if a.help.IsVisible() {
		return a.renderOverlay(a.help.View())
	}
	if a.jump.IsVisible() {
		return a.renderOverlay(a.jump.View())
	}

	sections := []string{a.header.View()}
	if len(a.treemap.Frame().Items) == 0 && a.err != nil {
		panelHeight := a.height - headerHeight - helpBarHeight
		msg := ErrorStyle.Render(fmt.Sprintf("Error: %v", a.err))
		sections = append(sections, lipgloss.Place(a.width, panelHeight, lipgloss.Center, lipgloss.Center, msg))
	} else {
		sections = append(sections, a.treemap.View())
	}
	sections = append(sections, HelpBar(a.width))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderOverlay renders an overlay centered on screen
func (a App) renderOverlay(overlay string) string {
	return lipgloss.Place(
		a.width, a.height,
		lipgloss.Center, lipgloss.Center,
		overlay,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(ColorBackground),
	)
}
