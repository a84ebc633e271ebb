package tui

import (
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lumipallolabs/facetmap/internal/render"
)

// Block is a frame item placed on the terminal grid
type Block struct {
	Item          render.Item
	X, Y          int
	Width, Height int
}

// animation moves blocks from their start cells to their laid-out cells
type animation struct {
	start    time.Time
	duration time.Duration
	from     []Block
}

// TreemapPanel draws frames on a cell grid
//
// Frames are laid out in device units; the panel scales them onto its own
// width and height so a resize never needs a new layout.
type TreemapPanel struct {
	frame    render.Frame
	blocks   []Block
	selected string // item ID
	width    int
	height   int
	anim     *animation
	progress float64

	// Render cache
	cachedView     string
	cacheValid     bool
	cachedSelected string
}

// NewTreemapPanel creates a new treemap panel
func NewTreemapPanel() TreemapPanel {
	return TreemapPanel{progress: 1}
}

// SetFrame replaces the displayed frame
// The selection survives if the selected item is still present.
func (t *TreemapPanel) SetFrame(f render.Frame) {
	t.frame = f
	t.anim = nil
	t.progress = 1
	t.layout()
	if _, ok := t.block(t.selected); !ok {
		t.SelectFirst()
	}
}

// Frame returns the displayed frame
func (t TreemapPanel) Frame() render.Frame {
	return t.frame
}

// SetSize sets the panel dimensions
func (t *TreemapPanel) SetSize(w, h int) {
	if t.width != w || t.height != h {
		t.width = w
		t.height = h
		t.layout()
	}
}

// InvalidateCache marks the render cache as invalid
func (t *TreemapPanel) InvalidateCache() {
	t.cacheValid = false
}

// Selected returns the selected item
func (t TreemapPanel) Selected() (render.Item, bool) {
	b, ok := t.block(t.selected)
	return b.Item, ok
}

// Select selects the item with the given ID
func (t *TreemapPanel) Select(id string) bool {
	if _, ok := t.block(id); !ok {
		return false
	}
	t.selected = id
	return true
}

// SelectFirst selects the heaviest block
func (t *TreemapPanel) SelectFirst() {
	t.selected = ""
	var best *Block
	for i := range t.blocks {
		if best == nil || t.blocks[i].Item.Weight > best.Item.Weight {
			best = &t.blocks[i]
		}
	}
	if best != nil {
		t.selected = best.Item.ID
	}
}

// Blocks returns the blocks as currently drawn
func (t TreemapPanel) Blocks() []Block {
	if t.anim == nil {
		return t.blocks
	}
	out := make([]Block, len(t.blocks))
	for i, b := range t.blocks {
		out[i] = lerpBlock(t.anim.from[i], b, t.progress)
	}
	return out
}

// HitCell returns the block under the panel cell (x, y)
func (t TreemapPanel) HitCell(x, y int) (render.Item, bool) {
	for i := len(t.blocks) - 1; i >= 0; i-- {
		b := t.blocks[i]
		if x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height {
			return b.Item, true
		}
	}
	return render.Item{}, false
}

// MoveToBlock moves selection to an adjacent block
func (t *TreemapPanel) MoveToBlock(dx, dy int) {
	if len(t.blocks) == 0 {
		return
	}

	current, ok := t.block(t.selected)
	if !ok {
		t.SelectFirst()
		return
	}

	// Find center of current block
	cx := current.X + current.Width/2
	cy := current.Y + current.Height/2

	var best *Block
	bestDist := -1
	for i := range t.blocks {
		b := &t.blocks[i]
		if b.Item.ID == t.selected {
			continue
		}
		bx := b.X + b.Width/2
		by := b.Y + b.Height/2

		// Check if block is in the right direction
		if dx > 0 && bx <= cx {
			continue
		}
		if dx < 0 && bx >= cx {
			continue
		}
		if dy > 0 && by <= cy {
			continue
		}
		if dy < 0 && by >= cy {
			continue
		}

		dist := abs(bx-cx) + abs(by-cy)
		if bestDist < 0 || dist < bestDist {
			bestDist = dist
			best = b
		}
	}
	if best != nil {
		t.selected = best.Item.ID
	}
}

// StartTransition animates from the frame's transition source
// anchor names the item the zoom passes through: the zoomed item in From
// when zooming in, the item being returned to in To when zooming out.
func (t *TreemapPanel) StartTransition(anchor string, now time.Time) bool {
	tr := t.frame.Transition
	if tr == nil || tr.Duration <= 0 || len(t.blocks) == 0 {
		return false
	}

	full := Block{Width: t.width, Height: t.height}
	var region Block
	var found bool
	switch tr.Direction {
	case render.DirectionIn:
		for _, it := range tr.From {
			if it.Name == anchor && !it.IsRoot {
				region, found = t.place(it), true
				break
			}
		}
	case render.DirectionOut:
		region, found = t.block(blockIDByName(t.blocks, anchor))
	}
	if !found || region.Width <= 0 || region.Height <= 0 {
		return false
	}

	from := make([]Block, len(t.blocks))
	for i, b := range t.blocks {
		if tr.Direction == render.DirectionIn {
			from[i] = embed(b, full, region)
		} else {
			from[i] = embed(b, region, full)
		}
	}
	t.anim = &animation{start: now, duration: tr.Duration, from: from}
	t.progress = 0
	t.cacheValid = false
	return true
}

// Animating reports whether a transition is in progress
func (t TreemapPanel) Animating() bool {
	return t.anim != nil
}

// Advance moves the animation to now; it returns false once the animation is done
func (t *TreemapPanel) Advance(now time.Time) bool {
	if t.anim == nil {
		return false
	}
	p := float64(now.Sub(t.anim.start)) / float64(t.anim.duration)
	t.cacheValid = false
	if p >= 1 {
		t.anim = nil
		t.progress = 1
		return false
	}
	t.progress = easeInOut(p)
	return true
}

// place scales an item's device rect onto the panel grid
func (t TreemapPanel) place(it render.Item) Block {
	dw, dh := t.frame.Transform.Width(), t.frame.Transform.Height()
	if dw <= 0 || dh <= 0 {
		return Block{Item: it}
	}
	x0 := scaleCell(it.Device.X, t.width, dw)
	x1 := scaleCell(it.Device.X+it.Device.W, t.width, dw)
	y0 := scaleCell(it.Device.Y, t.height, dh)
	y1 := scaleCell(it.Device.Y+it.Device.H, t.height, dh)
	return Block{Item: it, X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// layout places every non-header item of the frame
func (t *TreemapPanel) layout() {
	t.blocks = nil
	t.cacheValid = false

	if t.width <= 0 || t.height <= 0 {
		return
	}
	for _, it := range t.frame.Items {
		if it.IsRoot {
			continue
		}
		b := t.place(it)
		if b.Width < 1 || b.Height < 1 {
			continue
		}
		t.blocks = append(t.blocks, b)
	}
}

func (t TreemapPanel) block(id string) (Block, bool) {
	if id == "" {
		return Block{}, false
	}
	for _, b := range t.blocks {
		if b.Item.ID == id {
			return b, true
		}
	}
	return Block{}, false
}

func blockIDByName(blocks []Block, name string) string {
	for _, b := range blocks {
		if b.Item.Name == name {
			return b.Item.ID
		}
	}
	return ""
}

// View renders the treemap
func (t *TreemapPanel) View() string {
	if len(t.frame.Items) == 0 {
		return TreemapPanelStyle.Render("No data")
	}
	if t.cacheValid && t.cachedSelected == t.selected {
		return t.cachedView
	}

	type renderedBlock struct {
		block Block
		lines []string
	}

	var rendered []renderedBlock
	for _, block := range t.Blocks() {
		if block.Width < 1 || block.Height < 1 {
			continue
		}
		lines := strings.Split(t.renderBlock(block), "\n")
		rendered = append(rendered, renderedBlock{block, lines})
	}

	// Composite line by line
	var outputLines []string
	for y := 0; y < t.height; y++ {
		type blockSegment struct {
			x     int
			width int
			line  string
		}
		var segments []blockSegment
		for _, rb := range rendered {
			lineIdx := y - rb.block.Y
			if lineIdx >= 0 && lineIdx < len(rb.lines) && lineIdx < rb.block.Height {
				segments = append(segments, blockSegment{
					x:     rb.block.X,
					width: rb.block.Width,
					line:  rb.lines[lineIdx],
				})
			}
		}
		sort.Slice(segments, func(i, j int) bool {
			return segments[i].x < segments[j].x
		})

		var lineBuilder strings.Builder
		currentX := 0
		for _, seg := range segments {
			if seg.x < currentX {
				// overlapping while animating; later blocks lose
				continue
			}
			if seg.x > currentX {
				lineBuilder.WriteString(strings.Repeat(" ", seg.x-currentX))
			}
			lineBuilder.WriteString(seg.line)
			currentX = seg.x + seg.width
		}
		outputLines = append(outputLines, lineBuilder.String())
	}

	content := strings.Join(outputLines, "\n")
	style := lipgloss.NewStyle().Height(t.height).MaxHeight(t.height)

	view := style.Render(content)
	if t.anim == nil {
		t.cachedView = view
		t.cacheValid = true
		t.cachedSelected = t.selected
	}
	return view
}

// renderBlock renders a complete block using lipgloss and returns the styled string
func (t TreemapPanel) renderBlock(block Block) string {
	bandColor := BandColor(block.Item.Band)
	fgColor := bandColor
	borderColor := bandColor

	isSelected := block.Item.ID == t.selected
	if isSelected {
		fgColor = lipgloss.Color("#FFFFFF")
		borderColor = ColorPrimary
	}
	if !t.frame.Interactive {
		fgColor = ColorMuted
		borderColor = ColorMuted
	}

	// Too small for a border: fill with the band color
	if block.Width < 3 || block.Height < 2 {
		row := strings.Repeat("░", block.Width)
		rows := make([]string, block.Height)
		for i := range rows {
			rows[i] = row
		}
		return lipgloss.NewStyle().Foreground(borderColor).Render(strings.Join(rows, "\n"))
	}

	innerW := block.Width - 2
	innerH := block.Height - 2

	text := strings.Join(fitLines(block.Item, innerW, innerH), "\n")

	blockStyle := lipgloss.NewStyle().
		Width(innerW).
		Height(innerH).
		MaxHeight(block.Height).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Foreground(fgColor)

	if isSelected {
		blockStyle = blockStyle.Border(lipgloss.ThickBorder()).Bold(true)
	}

	return blockStyle.Render(text)
}

// fitLines picks the label lines that fit w x h cells
// The count stays on the last line whenever there is room for two.
func fitLines(it render.Item, w, h int) []string {
	if w <= 0 || h <= 0 {
		return nil
	}
	lines := it.Lines
	if len(lines) == 0 {
		lines = []string{it.Label}
	}
	if len(lines) > h {
		if h == 1 {
			lines = []string{it.Label}
		} else {
			kept := append([]string{}, lines[:h-1]...)
			lines = append(kept, lines[len(lines)-1])
		}
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = render.Truncate(l, w)
	}
	return out
}

// scaleCell maps v out of total device units onto cells, rounding half up
func scaleCell(v, cells, total int) int {
	return (2*v*cells + total) / (2 * total)
}

// embed maps b from the outer area into the inner area
func embed(b, outer, inner Block) Block {
	if outer.Width == 0 || outer.Height == 0 {
		return b
	}
	sx := float64(inner.Width) / float64(outer.Width)
	sy := float64(inner.Height) / float64(outer.Height)
	x0 := inner.X + int(float64(b.X-outer.X)*sx+0.5)
	y0 := inner.Y + int(float64(b.Y-outer.Y)*sy+0.5)
	x1 := inner.X + int(float64(b.X+b.Width-outer.X)*sx+0.5)
	y1 := inner.Y + int(float64(b.Y+b.Height-outer.Y)*sy+0.5)
	return Block{Item: b.Item, X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func lerpBlock(from, to Block, p float64) Block {
	lerp := func(a, b int) int { return a + int(float64(b-a)*p+0.5) }
	return Block{
		Item:   to.Item,
		X:      lerp(from.X, to.X),
		Y:      lerp(from.Y, to.Y),
		Width:  lerp(from.Width, to.Width),
		Height: lerp(from.Height, to.Height),
	}
}

// easeInOut is the cubic in-out curve
func easeInOut(p float64) float64 {
	if p < 0.5 {
		return 4 * p * p * p
	}
	q := 2*p - 2
	return 0.5*q*q*q + 1
}

// abs returns the absolute value of x
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
