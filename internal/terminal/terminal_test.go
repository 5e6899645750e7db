package terminal

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"prana-chat/internal/conversation"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestReadUserInput(t *testing.T) {
	in := NewInputReader(strings.NewReader("  hello  \n/new\nlast"))

	line, err := in.ReadUserInput()
	require.NoError(t, err)
	assert.Equal(t, "hello", line)

	line, err = in.ReadUserInput()
	require.NoError(t, err)
	assert.Equal(t, "/new", line)

	line, err = in.ReadUserInput()
	require.NoError(t, err)
	assert.Equal(t, "last", line)

	_, err = in.ReadUserInput()
	assert.ErrorIs(t, err, io.EOF)
}

func TestParseCommand(t *testing.T) {
	testCases := []struct {
		in   string
		kind CommandKind
		arg  string
	}{
		{"what is the aqi in Delhi?", CmdNone, "what is the aqi in Delhi?"},
		{"/new", CmdNew, ""},
		{"/sessions", CmdSessions, ""},
		{"/switch 2", CmdSwitch, "2"},
		{"/SWITCH   session_abc ", CmdSwitch, "session_abc"},
		{"/export out.html", CmdExport, "out.html"},
		{"/location", CmdLocation, ""},
		{"/help", CmdHelp, ""},
		{"/exit", CmdExit, ""},
		{"/quit", CmdExit, ""},
		{"exit", CmdExit, ""},
		{"QUIT", CmdExit, ""},
		{"/dance", CmdUnknown, ""},
	}
	for _, tc := range testCases {
		cmd := ParseCommand(tc.in)
		assert.Equal(t, tc.kind, cmd.Kind, "input %q", tc.in)
		assert.Equal(t, tc.arg, cmd.Arg, "input %q", tc.in)
	}
}

func TestResolveSession(t *testing.T) {
	sessions := []conversation.Session{{ID: "s2"}, {ID: "s1"}}

	id, err := ResolveSession("2", sessions)
	require.NoError(t, err)
	assert.Equal(t, "s1", id)

	id, err = ResolveSession("session_xyz", sessions)
	require.NoError(t, err)
	assert.Equal(t, "session_xyz", id)

	_, err = ResolveSession("3", sessions)
	assert.Error(t, err)
	_, err = ResolveSession("0", sessions)
	assert.Error(t, err)
	_, err = ResolveSession("", sessions)
	assert.Error(t, err)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinner(t *testing.T) {
	var out syncBuffer
	s := NewSpinner(&out)
	s.interval = time.Millisecond

	s.Start("Analyzing environmental factors...")
	time.Sleep(10 * time.Millisecond)
	s.Start("again")
	s.Stop()
	s.Stop()

	got := out.String()
	assert.Contains(t, got, "Analyzing environmental factors...")
	assert.Contains(t, got, "again")
	assert.True(t, strings.HasSuffix(got, "\r\033[2K\r"))
}
