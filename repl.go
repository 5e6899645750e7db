package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"prana-chat/internal/config"
	"prana-chat/internal/conversation"
	"prana-chat/internal/export"
	"prana-chat/internal/logger"
	"prana-chat/internal/terminal"
	"prana-chat/internal/ui"
)

// runREPL is the line-oriented chat loop.
func runREPL(ctx context.Context, a *app, in io.Reader, out io.Writer, interactive bool) error {
	display := ui.NewDisplay(out, a.renderer)
	spinner := terminal.NewSpinner(out)
	defer spinner.Stop()

	// Health check (non-fatal)
	if err := a.client.HealthCheck(ctx); err != nil {
		display.PrintWarning(fmt.Sprintf("Assistant service check failed: %v", err))
		display.PrintInfo("Start the Prana-Rakshak backend or point --base-url at it.")
	}

	// the lookup is abandoned when the loop ends
	locateCtx, cancelLocate := context.WithCancel(ctx)
	locateDone := make(chan struct{})
	go func() {
		defer close(locateDone)
		a.ctrl.SetLocation(a.locator.Locate(locateCtx))
	}()

	display.PrintWelcome(a.client.BaseURL(), a.ctrl.Store().ActiveID())
	if err := a.ctrl.ListSessions(ctx); err != nil {
		display.PrintWarning(err.Error())
	}
	openSession(ctx, a, display, a.ctrl.Store().ActiveID())

	reader := terminal.NewInputReader(in)

	// Main conversation loop
	for {
		display.PrintPrompt()
		line, err := reader.ReadUserInput()
		if err != nil {
			break
		}

		cmd := terminal.ParseCommand(line)
		if cmd.Kind == terminal.CmdExit {
			break
		}

		switch cmd.Kind {
		case terminal.CmdNone:
			if interactive {
				spinner.Start(ui.BusyText)
			}
			_, err := a.ctrl.Send(ctx, cmd.Arg)
			spinner.Stop()
			if errors.Is(err, conversation.ErrEmptyMessage) {
				continue
			}
			if err != nil {
				display.PrintError(err)
				continue
			}
			msgs := a.ctrl.Store().Messages()
			if !interactive {
				display.PrintMessage(msgs[len(msgs)-2])
			}
			display.PrintMessage(msgs[len(msgs)-1])

		case terminal.CmdNew:
			session := a.ctrl.CreateSession(ctx)
			display.PrintSuccess("Started " + session.DisplayTitle())

		case terminal.CmdSessions:
			if err := a.ctrl.ListSessions(ctx); err != nil {
				display.PrintWarning(err.Error())
			}
			display.PrintSessions(a.ctrl.Store().Sessions(), a.ctrl.Store().ActiveID())

		case terminal.CmdSwitch:
			id, err := terminal.ResolveSession(cmd.Arg, a.ctrl.Store().Sessions())
			if err != nil {
				display.PrintError(err)
				continue
			}
			openSession(ctx, a, display, id)

		case terminal.CmdExport:
			if cmd.Arg == "" {
				display.PrintError(fmt.Errorf("usage: /export <file>"))
				continue
			}
			snap := a.ctrl.Store().Snapshot()
			path := config.ExpandHome(cmd.Arg)
			if err := export.WriteFile(path, snap.ActiveSession(), snap.Messages); err != nil {
				logger.Error("export failed", "path", path, "error", err)
				display.PrintError(err)
				continue
			}
			display.PrintSuccess("Saved transcript to " + path)

		case terminal.CmdLocation:
			display.PrintLocation(a.ctrl.Location())

		case terminal.CmdHelp:
			fmt.Fprintln(out, terminal.HelpText)

		default:
			display.PrintError(fmt.Errorf("unknown command %s, type /help", cmd.Name))
		}
	}

	display.PrintGoodbye()
	cancelLocate()
	<-locateDone
	return nil
}

// openSession switches to id and prints its history.
func openSession(ctx context.Context, a *app, display *ui.Display, id string) {
	if err := a.ctrl.SelectSession(ctx, id); err != nil {
		display.PrintWarning("Could not load history for this session.")
	}
	display.PrintInfo("Session: " + id)
	display.PrintMessages(a.ctrl.Store().Messages())
}
