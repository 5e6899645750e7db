// Package ui renders conversation content for the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"prana-chat/internal/logger"
	"prana-chat/internal/render"
)

// Styles accepted by NewRenderer.
var Styles = []string{"auto", "dark", "light", "notty", "ascii"}

// ValidStyle reports whether style is one of Styles.
func ValidStyle(style string) bool {
	for _, s := range Styles {
		if s == style {
			return true
		}
	}
	return false
}

// Renderer turns parsed messages into themed terminal text. Generic
// markdown goes through glamour; widgets and quotes become lipgloss cards.
type Renderer struct {
	style    string
	width    int
	markdown *glamour.TermRenderer
	theme    theme
}

// NewRenderer creates a renderer for the given glamour style and width.
func NewRenderer(style string, width int) (*Renderer, error) {
	if width < 20 {
		width = 20
	}
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width - 4)}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}

	md, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	return &Renderer{
		style:    style,
		width:    width,
		markdown: md,
		theme:    newTheme(style),
	}, nil
}

// Width returns the wrap width.
func (r *Renderer) Width() int {
	return r.width
}

// Resize returns a renderer with the same style at a new width.
func (r *Renderer) Resize(width int) (*Renderer, error) {
	if width == r.width {
		return r, nil
	}
	return NewRenderer(r.style, width)
}

// RenderMessage parses and renders assistant markdown.
func (r *Renderer) RenderMessage(content string) string {
	return r.RenderDocument(render.Parse(content))
}

// RenderDocument renders every block in source order.
func (r *Renderer) RenderDocument(doc render.Document) string {
	parts := make([]string, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		if out := r.RenderBlock(b); out != "" {
			parts = append(parts, out)
		}
	}
	return strings.Join(parts, "\n\n")
}

// RenderBlock renders a single block. A glamour failure shows the block's
// markdown source unchanged.
func (r *Renderer) RenderBlock(b render.Block) string {
	switch b.Kind {
	case render.BlockWidget:
		return r.renderWidget(b)
	case render.BlockQuote:
		inner := strings.TrimPrefix(b.Source, ">")
		inner = strings.ReplaceAll(inner, "\n>", "\n")
		return r.theme.insight.Width(r.width - 4).Render(r.glamour(dedent(inner), b.Source))
	case render.BlockHTML:
		return lipgloss.NewStyle().Width(r.width - 4).PaddingLeft(2).Render(b.Text)
	default:
		return r.glamour(b.Source, b.Source)
	}
}

func (r *Renderer) renderWidget(b render.Block) string {
	switch w := b.Widget.(type) {
	case *render.AQIReport:
		return r.AQICard(w)
	default:
		return r.glamour(b.Source, b.Source)
	}
}

func (r *Renderer) glamour(markdown, fallback string) string {
	out, err := r.markdown.Render(markdown)
	if err != nil {
		logger.Debug("markdown block rendered raw", "error", err)
		return fallback
	}
	return strings.Trim(out, "\n")
}

// dedent drops the single space that usually follows a quote marker.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimPrefix(l, " ")
	}
	return strings.Join(lines, "\n")
}
