// Package export writes a session transcript as a standalone HTML page.
package export

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"prana-chat/internal/conversation"
	"prana-chat/internal/render"
)

// severityClass maps a severity to its CSS class.
var severityClass = map[render.Severity]string{
	render.SeverityGood:          "good",
	render.SeverityModerate:      "moderate",
	render.SeveritySensitive:     "sensitive",
	render.SeverityUnhealthy:     "unhealthy",
	render.SeverityVeryUnhealthy: "very-unhealthy",
	render.SeverityHazardous:     "hazardous",
}

type pageData struct {
	SessionID  string
	Title      string
	ExportedAt string
	Messages   []messageView
}

type messageView struct {
	User   bool
	Failed bool
	Time   string
	Text   string
	Blocks []blockView
}

type blockView struct {
	HTML template.HTML
	Text string
	AQI  *aqiView
}

type aqiView struct {
	City        string
	AQI         string
	Label       string
	Class       string
	Weather     string
	Icon        string
	Temperature string
	Humidity    string
}

// Write renders the session's messages to w.
func Write(w io.Writer, session conversation.Session, msgs []conversation.Message, now time.Time) error {
	data := pageData{
		SessionID:  session.ID,
		Title:      session.DisplayTitle(),
		ExportedAt: now.Format(time.RFC1123),
	}
	for _, m := range msgs {
		data.Messages = append(data.Messages, viewMessage(m))
	}

	if err := page.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render transcript: %w", err)
	}
	return nil
}

// WriteFile writes the transcript to path, replacing it atomically.
func WriteFile(path string, session conversation.Session, msgs []conversation.Message) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".transcript-*.html")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, session, msgs, time.Now()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func viewMessage(m conversation.Message) messageView {
	v := messageView{User: m.Role == conversation.RoleUser}
	if !m.Timestamp.IsZero() {
		v.Time = m.Timestamp.Local().Format("2006-01-02 15:04")
	}
	if v.User {
		v.Text = m.Content
		return v
	}
	if m.Content == conversation.ConnectionErrorText {
		v.Failed = true
		v.Text = m.Content
		return v
	}

	for _, b := range render.Parse(m.Content).Blocks {
		v.Blocks = append(v.Blocks, viewBlock(b))
	}
	return v
}

func viewBlock(b render.Block) blockView {
	switch b.Kind {
	case render.BlockWidget:
		if report, ok := b.Widget.(*render.AQIReport); ok {
			return blockView{AQI: viewAQI(report)}
		}
		return blockView{Text: b.Source}
	case render.BlockHTML:
		return blockView{Text: b.Text}
	default:
		// goldmark escapes raw HTML inside markdown blocks
		return blockView{HTML: template.HTML(b.HTML)}
	}
}

func viewAQI(r *render.AQIReport) *aqiView {
	sev := r.Severity()
	return &aqiView{
		City:        r.City,
		AQI:         trimFloat(r.AQI),
		Label:       sev.Label(),
		Class:       severityClass[sev],
		Weather:     r.Weather,
		Icon:        string(r.WeatherIcon()),
		Temperature: trimFloat(r.Temperature),
		Humidity:    trimFloat(r.Humidity),
	}
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.1f", v)
	return strings.TrimSuffix(s, ".0")
}

var page = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 760px; margin: 2rem auto; color: #1f2937; }
.msg { margin: 1rem 0; padding: .75rem 1rem; border-radius: 10px; }
.user { background: #e0f2fe; margin-left: 20%; white-space: pre-wrap; }
.assistant { background: #f9fafb; border: 1px solid #e5e7eb; }
.failed { color: #b91c1c; }
.meta { font-size: .75rem; color: #6b7280; }
blockquote { border-left: 4px solid #14b8a6; margin: 0; padding-left: 1rem; }
table { border-collapse: collapse; } td, th { border: 1px solid #d1d5db; padding: .25rem .5rem; }
.aqi { border-radius: 12px; padding: 1rem; color: #111827; display: inline-block; min-width: 16rem; }
.aqi .index { font-size: 2rem; font-weight: 700; }
.good { background: #bbf7d0; } .moderate { background: #fef08a; } .sensitive { background: #fed7aa; }
.unhealthy { background: #fecaca; } .very-unhealthy { background: #e9d5ff; } .hazardous { background: #fda4af; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">Session {{.SessionID}} · exported {{.ExportedAt}}</p>
{{range .Messages}}
{{if .User}}<div class="msg user"><div class="meta">You {{.Time}}</div>{{.Text}}</div>
{{else if .Failed}}<div class="msg assistant failed"><div class="meta">Prana {{.Time}}</div>{{.Text}}</div>
{{else}}<div class="msg assistant"><div class="meta">Prana {{.Time}}</div>
{{range .Blocks}}{{if .AQI}}{{with .AQI}}<div class="aqi {{.Class}}" data-icon="{{.Icon}}">
<div><strong>{{.City}}</strong></div>
<div class="index">{{.AQI}}</div><div>{{.Label}}</div>
<div>{{.Weather}} · {{.Temperature}}°C · {{.Humidity}}% humidity</div>
</div>{{end}}{{else if .HTML}}{{.HTML}}{{else}}<p>{{.Text}}</p>{{end}}
{{end}}</div>
{{end}}{{end}}
</body>
</html>
`))
