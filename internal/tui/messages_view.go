package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/hay-kot/ntfyc/internal/core/messaging"
)

// glamourGutter is the margin glamour adds on each side of a document.
const glamourGutter = 2

// messageRenderer turns a message list into the text shown in the viewport.
type messageRenderer struct {
	markdown bool
	width    int
	glamour  *glamour.TermRenderer
}

func newMessageRenderer(markdown bool) *messageRenderer {
	return &messageRenderer{markdown: markdown}
}

// SetWidth rebuilds the markdown renderer when the wrap width changes.
func (r *messageRenderer) SetWidth(width int) {
	if width == r.width {
		return
	}
	r.width = width
	r.glamour = nil

	if !r.markdown || width <= glamourGutter*2 {
		return
	}

	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("tokyo-night"),
		glamour.WithWordWrap(width-glamourGutter*2),
	)
	if err == nil {
		r.glamour = tr
	}
}

// Render lays out msgs oldest first, separated by blank lines.
func (r *messageRenderer) Render(topic string, msgs []messaging.Message) string {
	if len(msgs) == 0 {
		return placeholderStyle.Render("No messages on " + topic + " yet")
	}

	blocks := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		blocks = append(blocks, r.renderOne(msg))
	}
	return strings.Join(blocks, "\n\n")
}

func (r *messageRenderer) renderOne(msg messaging.Message) string {
	header := " " + hostStyle.Render(msg.CreatedAt().Format("15:04:05"))
	if msg.Title != "" {
		header += " " + messageTitleStyle.Render(msg.Title)
	}
	if len(msg.Tags) > 0 {
		header += " " + hostStyle.Render(iconDot+" "+strings.Join(msg.Tags, ", "))
	}

	return header + "\n" + r.body(msg.Message)
}

func (r *messageRenderer) body(text string) string {
	if r.glamour != nil {
		if rendered, err := r.glamour.Render(text); err == nil {
			return trimDecorative(strings.TrimRight(rendered, "\n"))
		}
	}

	style := lipgloss.NewStyle().PaddingLeft(1)
	if r.width > 1 {
		style = style.Width(r.width - 1)
	}
	return style.Render(text)
}

// trimDecorative drops glamour's blank and rule-only lines at both ends.
func trimDecorative(content string) string {
	lines := strings.Split(content, "\n")

	start, end := 0, len(lines)
	for start < end && isDecorativeLine(lines[start]) {
		start++
	}
	for end > start && isDecorativeLine(lines[end-1]) {
		end--
	}

	return strings.Join(lines[start:end], "\n")
}

// isDecorativeLine reports whether line holds only spaces or horizontal
// rule characters once ANSI codes are removed.
func isDecorativeLine(line string) bool {
	stripped := strings.TrimSpace(ansi.Strip(line))
	for _, r := range stripped {
		if r != '─' && r != '━' && r != '-' && r != '=' {
			return false
		}
	}
	return true
}
