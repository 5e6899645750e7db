package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"prana-chat/internal/conversation"
	"prana-chat/internal/geo"
)

// Display writes the line-oriented chat view.
type Display struct {
	out      io.Writer
	renderer *Renderer
}

// NewDisplay creates a display writing to out.
func NewDisplay(out io.Writer, renderer *Renderer) *Display {
	return &Display{out: out, renderer: renderer}
}

// Renderer returns the markdown renderer used for assistant messages.
func (d *Display) Renderer() *Renderer {
	return d.renderer
}

// PrintWelcome shows the banner and the command summary.
func (d *Display) PrintWelcome(baseURL, sessionID string) {
	t := d.renderer.theme
	fmt.Fprintln(d.out, t.accent.Render("Prana-Rakshak")+" "+t.muted.Render("air quality and safe travel assistant"))
	fmt.Fprintf(d.out, "%s %s\n", t.muted.Render("Service:"), baseURL)
	fmt.Fprintf(d.out, "%s %s\n", t.muted.Render("Session:"), sessionID)
	fmt.Fprintln(d.out, t.muted.Render("Commands: /new | /sessions | /switch <n|id> | /export <file> | /location | /help | /exit"))
	fmt.Fprintln(d.out)
}

// PrintEmptyHint is shown when the active session has no messages.
func (d *Display) PrintEmptyHint() {
	fmt.Fprintln(d.out, d.renderer.theme.muted.Render(WelcomeText))
}

// PrintPrompt displays the input prompt.
func (d *Display) PrintPrompt() {
	fmt.Fprintf(d.out, "\n%s ", d.renderer.theme.accent.Render("❯"))
}

// PrintMessage writes one conversation message.
func (d *Display) PrintMessage(msg conversation.Message) {
	fmt.Fprintln(d.out, FormatMessage(d.renderer, msg))
}

// PrintMessages writes a whole conversation, or the empty hint.
func (d *Display) PrintMessages(msgs []conversation.Message) {
	if len(msgs) == 0 {
		d.PrintEmptyHint()
		return
	}
	for _, m := range msgs {
		d.PrintMessage(m)
	}
}

// PrintSessions lists the roster with the active session marked.
func (d *Display) PrintSessions(sessions []conversation.Session, activeID string) {
	fmt.Fprint(d.out, FormatSessions(d.renderer, sessions, activeID))
}

// PrintLocation shows the location indicator.
func (d *Display) PrintLocation(loc geo.Location) {
	d.PrintInfo(fmt.Sprintf("%s (%s)", loc.Status(), loc))
}

// PrintInfo displays an info message.
func (d *Display) PrintInfo(msg string) {
	fmt.Fprintln(d.out, d.renderer.theme.muted.Render("ℹ "+msg))
}

// PrintWarning displays a warning message.
func (d *Display) PrintWarning(msg string) {
	fmt.Fprintln(d.out, d.renderer.theme.errText.Render("⚠ "+msg))
}

// PrintError displays an error message.
func (d *Display) PrintError(err error) {
	fmt.Fprintln(d.out, d.renderer.theme.errText.Render(fmt.Sprintf("✗ Error: %v", err)))
}

// PrintSuccess displays a success message.
func (d *Display) PrintSuccess(msg string) {
	fmt.Fprintln(d.out, d.renderer.theme.accent.Render("✓ "+msg))
}

// PrintGoodbye displays the goodbye message.
func (d *Display) PrintGoodbye() {
	fmt.Fprintln(d.out, "\n"+d.renderer.theme.accent.Render("Stay safe out there."))
}

// WelcomeText is shown for an empty conversation.
const WelcomeText = "Ask about air quality, traffic or the safest route for your trip."

// BusyText is shown while a reply is awaited.
const BusyText = "Analyzing environmental factors..."

// FormatMessage renders a message with its header line.
func FormatMessage(r *Renderer, msg conversation.Message) string {
	t := r.theme
	stamp := ""
	if !msg.Timestamp.IsZero() {
		stamp = " · " + msg.Timestamp.Local().Format("15:04:05")
	}

	if msg.Role == conversation.RoleUser {
		header := t.user.Render("You") + t.muted.Render(stamp)
		body := indent(msg.Content, "  ")
		return "\n" + header + "\n" + body
	}

	header := t.accent.Render("Prana") + t.muted.Render(stamp)
	if msg.Content == conversation.ConnectionErrorText {
		return "\n" + header + "\n" + t.errText.Render("  "+msg.Content)
	}
	return "\n" + header + "\n" + r.RenderMessage(msg.Content)
}

// FormatSessions renders the roster, one numbered line per session.
func FormatSessions(r *Renderer, sessions []conversation.Session, activeID string) string {
	t := r.theme
	if len(sessions) == 0 {
		return t.muted.Render("No sessions yet.") + "\n"
	}

	var sb strings.Builder
	for i, s := range sessions {
		marker := "  "
		title := s.DisplayTitle()
		if s.ID == activeID {
			marker = "▸ "
			title = t.accent.Render(title)
		}
		updated := ""
		if !s.UpdatedAt.IsZero() {
			updated = t.muted.Render("  " + humanizeAge(time.Since(s.UpdatedAt)))
		}
		fmt.Fprintf(&sb, "%s%2d. %s%s\n", marker, i+1, title, updated)
	}
	return sb.String()
}

func humanizeAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// TerminalWidth returns the width of stdout, or 80 when it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
