package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"prana-chat/internal/api"
	"prana-chat/internal/config"
	"prana-chat/internal/conversation"
	"prana-chat/internal/export"
	"prana-chat/internal/geo"
	"prana-chat/internal/logger"
	"prana-chat/internal/tui"
	"prana-chat/internal/ui"
)

var (
	configFile string
	version    = "0.1.0" // set at build time
	cfg        *config.Config
)

// rootCmd starts an interactive chat.
var rootCmd = &cobra.Command{
	Use:   "prana-chat",
	Short: "Terminal client for the Prana-Rakshak air quality assistant",
	Long: `prana-chat talks to the Prana-Rakshak assistant about air quality, traffic
and safe travel. Replies are rendered as themed markdown, with AQI cards for
embedded air-quality readings.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
	RunE:              runChat,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List chat sessions",
	RunE:  runSessions,
}

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one message and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var exportCmd = &cobra.Command{
	Use:   "export <file.html>",
	Short: "Save a session transcript as HTML",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("prana-chat v%s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaults := config.NewConfig()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default ~/.prana/config.yaml)")
	flags.String("base-url", defaults.BaseURL, "Assistant service API URL")
	flags.String("user", defaults.UserID, "User id sent with every request")
	flags.String("session", defaults.SessionID, "Session to open")
	flags.Duration("timeout", defaults.Timeout, "Request timeout")
	flags.String("style", defaults.Style, "Markdown style (auto|dark|light|notty|ascii)")
	flags.Bool("plain", false, "Use the line-oriented chat instead of the full-screen UI")
	flags.String("location", defaults.Location.Mode, "Location source (auto|static|ipinfo|off)")
	flags.Float64("lat", 0, "Static latitude")
	flags.Float64("lon", 0, "Static longitude")
	flags.String("log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	flags.String("log-file", "", "Write logs to file instead of stderr")

	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(config.LoadOptions{
		ConfigFile: configFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return err
	}
	cfg = loaded

	// the full-screen UI owns the terminal, so logs go to a file or nowhere
	discard := !cmd.HasParent() && useTUI(cfg)
	if err := logger.Configure(cfg.LogLevel, cfg.LogFile, discard); err != nil {
		return fmt.Errorf("failed to configure logger: %w", err)
	}
	return nil
}

func useTUI(c *config.Config) bool {
	return !c.Plain && ui.IsTerminal(os.Stdout) && ui.IsTerminal(os.Stdin)
}

// app wires the components shared by every command.
type app struct {
	cfg      *config.Config
	client   *api.Client
	ctrl     *conversation.Controller
	locator  geo.Locator
	renderer *ui.Renderer
}

func newApp(c *config.Config, width int) (*app, error) {
	locator, err := geo.NewLocator(c.Location.Mode, c.Location.Static(), c.IPInfoToken, c.Timeout)
	if err != nil {
		return nil, err
	}
	renderer, err := ui.NewRenderer(c.Style, width)
	if err != nil {
		return nil, err
	}

	client := api.NewClient(c.BaseURL, c.Timeout)
	return &app{
		cfg:      c,
		client:   client,
		ctrl:     conversation.NewController(client, c.UserID, c.SessionID),
		locator:  locator,
		renderer: renderer,
	}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runChat(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cfg, ui.TerminalWidth())
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger.Info("starting prana-chat", "version", version, "base_url", cfg.BaseURL, "session", cfg.SessionID)

	if !useTUI(cfg) {
		return runREPL(ctx, a, os.Stdin, cmd.OutOrStdout(), ui.IsTerminal(os.Stdout))
	}

	// Health check (non-fatal)
	if err := a.client.HealthCheck(ctx); err != nil {
		logger.Warn("assistant service check failed", "error", err)
	}

	p := tea.NewProgram(tui.New(ctx, a.ctrl, a.locator, a.renderer, a.client.BaseURL()), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logger.Error("TUI exited", "error", err)
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

func runSessions(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cfg, ui.TerminalWidth())
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	if err := a.ctrl.ListSessions(ctx); err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), ui.FormatSessions(a.renderer, a.ctrl.Store().Sessions(), a.ctrl.Store().ActiveID()))
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, ui.TerminalWidth())
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	locateCtx, cancelLocate := context.WithTimeout(ctx, 5*time.Second)
	a.ctrl.SetLocation(a.locator.Locate(locateCtx))
	cancelLocate()

	res, err := a.ctrl.Send(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	msgs := a.ctrl.Store().Messages()
	fmt.Fprintln(cmd.OutOrStdout(), ui.FormatMessage(a.renderer, msgs[len(msgs)-1]))
	if res.Err != nil {
		return fmt.Errorf("chat request failed: %w", res.Err)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, 80)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	if err := a.ctrl.SelectSession(ctx, cfg.SessionID); err != nil {
		return err
	}
	if err := a.ctrl.ListSessions(ctx); err != nil {
		logger.Warn("failed to list sessions", "error", err)
	}

	snap := a.ctrl.Store().Snapshot()
	path := config.ExpandHome(args[0])
	if err := export.WriteFile(path, snap.ActiveSession(), snap.Messages); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d messages to %s\n", len(snap.Messages), path)
	return nil
}
