package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/lumipallolabs/facetmap/internal/render"
)

const maxJumpResults = 8

// JumpPrompt picks a block by fuzzy name match
type JumpPrompt struct {
	input   textinput.Model
	visible bool
	items   []render.Item
	matches fuzzy.Matches
	cursor  int
	width   int
}

// NewJumpPrompt creates a hidden prompt
func NewJumpPrompt() JumpPrompt {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "name"
	ti.CharLimit = 128
	return JumpPrompt{input: ti}
}

// Open shows the prompt over the given items
func (j *JumpPrompt) Open(items []render.Item) tea.Cmd {
	j.items = nil
	for _, it := range items {
		if !it.IsRoot {
			j.items = append(j.items, it)
		}
	}
	j.visible = true
	j.cursor = 0
	j.input.SetValue("")
	j.refresh()
	return j.input.Focus()
}

// Close hides the prompt
func (j *JumpPrompt) Close() {
	j.visible = false
	j.input.Blur()
}

// IsVisible returns whether the prompt is open
func (j JumpPrompt) IsVisible() bool {
	return j.visible
}

// SetWidth sets the prompt width
func (j *JumpPrompt) SetWidth(w int) {
	j.width = w
	j.input.Width = max(w-4, 1)
}

// Update feeds a message to the text input
func (j JumpPrompt) Update(msg tea.Msg) (JumpPrompt, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "up", "ctrl+p":
			if j.cursor > 0 {
				j.cursor--
			}
			return j, nil
		case "down", "ctrl+n", "tab":
			if j.cursor < len(j.matches)-1 {
				j.cursor++
			}
			return j, nil
		}
	}
	var cmd tea.Cmd
	j.input, cmd = j.input.Update(msg)
	j.refresh()
	return j, cmd
}

// Choice returns the highlighted item
func (j JumpPrompt) Choice() (render.Item, bool) {
	if j.cursor < 0 || j.cursor >= len(j.matches) {
		return render.Item{}, false
	}
	return j.items[j.matches[j.cursor].Index], true
}

func (j *JumpPrompt) refresh() {
	names := make([]string, len(j.items))
	for i, it := range j.items {
		names[i] = it.Name
	}
	if pattern := strings.TrimSpace(j.input.Value()); pattern != "" {
		j.matches = fuzzy.Find(pattern, names)
	} else {
		// empty pattern lists everything by weight order
		j.matches = make(fuzzy.Matches, len(names))
		for i := range names {
			j.matches[i] = fuzzy.Match{Str: names[i], Index: i}
		}
	}
	if j.cursor >= len(j.matches) {
		j.cursor = max(len(j.matches)-1, 0)
	}
}

// View renders the prompt and its best matches
func (j JumpPrompt) View() string {
	if !j.visible {
		return ""
	}
	matchStyle := lipgloss.NewStyle().Foreground(ColorCyan).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(ColorDim)
	cursorStyle := lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)

	lines := []string{j.input.View()}
	for i, m := range j.matches {
		if i >= maxJumpResults {
			lines = append(lines, dimStyle.Render("  …"))
			break
		}
		var b strings.Builder
		hit := make(map[int]bool, len(m.MatchedIndexes))
		for _, idx := range m.MatchedIndexes {
			hit[idx] = true
		}
		for idx, r := range m.Str {
			if hit[idx] {
				b.WriteString(matchStyle.Render(string(r)))
			} else {
				b.WriteRune(r)
			}
		}
		marker := "  "
		if i == j.cursor {
			marker = cursorStyle.Render("› ")
		}
		count := dimStyle.Render(" " + render.FormatCount(j.items[m.Index].Weight))
		lines = append(lines, marker+b.String()+count)
	}
	if len(j.matches) == 0 {
		lines = append(lines, dimStyle.Render("  no match"))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary).
		Padding(0, 1).
		Width(max(j.width-4, 10))
	return box.Render(strings.Join(lines, "\n"))
}
