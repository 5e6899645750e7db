package terminal

import (
	"fmt"
	"strconv"
	"strings"

	"prana-chat/internal/conversation"
)

// CommandKind identifies a slash command.
type CommandKind int

const (
	// CmdNone means the input is a chat message.
	CmdNone CommandKind = iota
	CmdNew
	CmdSessions
	CmdSwitch
	CmdExport
	CmdLocation
	CmdHelp
	CmdExit
	CmdUnknown
)

// Command is parsed user input.
type Command struct {
	Kind CommandKind
	Name string
	Arg  string
}

var commandNames = map[string]CommandKind{
	"/new":      CmdNew,
	"/sessions": CmdSessions,
	"/switch":   CmdSwitch,
	"/export":   CmdExport,
	"/location": CmdLocation,
	"/help":     CmdHelp,
	"/exit":     CmdExit,
	"/quit":     CmdExit,
}

// HelpText lists the slash commands.
const HelpText = `/new               start a new session
/sessions          list sessions
/switch <n|id>     switch to a session by number or id
/export <file>     save the active session as HTML
/location          show the location status
/help              show this help
/exit              quit`

// ParseCommand classifies a line. Bare "exit" and "quit" also end the chat.
func ParseCommand(line string) Command {
	line = strings.TrimSpace(line)
	switch strings.ToLower(line) {
	case "exit", "quit":
		return Command{Kind: CmdExit, Name: line}
	}
	if !strings.HasPrefix(line, "/") {
		return Command{Kind: CmdNone, Arg: line}
	}

	name, arg, _ := strings.Cut(line, " ")
	name = strings.ToLower(name)
	kind, ok := commandNames[name]
	if !ok {
		kind = CmdUnknown
	}
	return Command{Kind: kind, Name: name, Arg: strings.TrimSpace(arg)}
}

// ResolveSession maps a /switch argument to a session id. A number selects
// from the roster (1-based); anything else is taken as an id.
func ResolveSession(arg string, sessions []conversation.Session) (string, error) {
	if arg == "" {
		return "", fmt.Errorf("usage: /switch <n|id>")
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(sessions) {
			return "", fmt.Errorf("no session numbered %d", n)
		}
		return sessions[n-1].ID, nil
	}
	return arg, nil
}
