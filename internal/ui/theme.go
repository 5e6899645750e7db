package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"prana-chat/internal/render"
)

// severityColors follow the EPA AQI palette.
var severityColors = map[render.Severity]lipgloss.Color{
	render.SeverityGood:          lipgloss.Color("#00E400"),
	render.SeverityModerate:      lipgloss.Color("#FFFF00"),
	render.SeveritySensitive:     lipgloss.Color("#FF7E00"),
	render.SeverityUnhealthy:     lipgloss.Color("#FF0000"),
	render.SeverityVeryUnhealthy: lipgloss.Color("#8F3F97"),
	render.SeverityHazardous:     lipgloss.Color("#7E0023"),
}

var weatherGlyphs = map[render.WeatherIcon]string{
	render.IconRain:  "🌧",
	render.IconCloud: "☁",
	render.IconSun:   "☀",
	render.IconWind:  "🌬",
}

var asciiGlyphs = map[render.WeatherIcon]string{
	render.IconRain:  "[rain]",
	render.IconCloud: "[cloud]",
	render.IconSun:   "[sun]",
	render.IconWind:  "[wind]",
}

type theme struct {
	plain   bool
	insight lipgloss.Style
	card    lipgloss.Style
	muted   lipgloss.Style
	accent  lipgloss.Style
	user    lipgloss.Style
	errText lipgloss.Style
}

func newTheme(style string) theme {
	plain := style == "notty" || style == "ascii"
	accent := lipgloss.AdaptiveColor{Light: "#0B7A75", Dark: "#4FD1C5"}
	muted := lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}

	t := theme{
		plain: plain,
		insight: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder(), false, false, false, true).
			BorderForeground(accent).
			PaddingLeft(1),
		card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2),
		muted:   lipgloss.NewStyle().Foreground(muted),
		accent:  lipgloss.NewStyle().Foreground(accent).Bold(true),
		user:    lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#93C5FD"}).Bold(true),
		errText: lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")),
	}
	if plain {
		t.insight = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			PaddingLeft(1)
		t.card = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
		t.muted = lipgloss.NewStyle()
		t.accent = lipgloss.NewStyle()
		t.user = lipgloss.NewStyle()
		t.errText = lipgloss.NewStyle()
	}
	return t
}

// AQICard renders an air-quality report as a bordered card coloured by
// severity.
func (r *Renderer) AQICard(report *render.AQIReport) string {
	sev := report.Severity()
	color := severityColors[sev]

	glyphs := weatherGlyphs
	card := r.theme.card.BorderForeground(color)
	index := lipgloss.NewStyle().Bold(true).Foreground(color)
	if r.theme.plain {
		glyphs = asciiGlyphs
		index = lipgloss.NewStyle()
	}

	lines := []string{
		r.theme.accent.Render(report.City),
		fmt.Sprintf("%s  %s", index.Render(formatNumber(report.AQI)), r.theme.muted.Render("AQI")),
		index.Render(sev.Label()),
		"",
		fmt.Sprintf("%s %s", glyphs[report.WeatherIcon()], report.Weather),
		fmt.Sprintf("%s°C   %s%% humidity", formatNumber(report.Temperature), formatNumber(report.Humidity)),
	}
	return card.Render(strings.Join(lines, "\n"))
}

// formatNumber drops a zero fractional part.
func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}
