package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"prana-chat/internal/api"
	"prana-chat/internal/geo"
	"prana-chat/internal/render"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeBackend is an in-memory assistant service.
type fakeBackend struct {
	mu        sync.Mutex
	chats     []api.ChatRequest
	reply     string
	chatErr   error
	sessions  []api.SessionInfo
	listErr   error
	history   map[string][]api.HistoryMessage
	histErr   error
	listCalls int

	// gate, when set, blocks Chat until a value is received.
	gate chan struct{}
}

func (f *fakeBackend) Chat(ctx context.Context, req api.ChatRequest) (string, error) {
	f.mu.Lock()
	f.chats = append(f.chats, req)
	gate := f.gate
	reply, err := f.reply, f.chatErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return reply, err
}

func (f *fakeBackend) ListSessions(ctx context.Context, userID string) ([]api.SessionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.sessions, f.listErr
}

func (f *fakeBackend) History(ctx context.Context, sessionID, userID string) ([]api.HistoryMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.histErr != nil {
		return nil, f.histErr
	}
	return f.history[sessionID], nil
}

func (f *fakeBackend) chatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chats)
}

func newController(b *fakeBackend) *Controller {
	return NewController(b, "user", "")
}

func TestSend_Success(t *testing.T) {
	b := &fakeBackend{reply: "hi **there**"}
	c := newController(b)

	res, err := c.Send(context.Background(), "  hello  ")
	require.NoError(t, err)
	require.NoError(t, res.Err)

	msgs := c.Store().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "hi **there**", msgs[1].Content)

	doc := render.Parse(msgs[1].Content)
	require.Len(t, doc.Blocks, 1)
	assert.Contains(t, doc.Blocks[0].HTML, "<strong>there</strong>")

	require.Len(t, b.chats, 1)
	assert.Equal(t, "hello", b.chats[0].Message)
	assert.Equal(t, DefaultSessionID, b.chats[0].SessionID)
	assert.Equal(t, "user", b.chats[0].UserID)
	assert.Equal(t, 1, b.listCalls, "roster refreshed after reply")
	assert.False(t, c.Store().Busy())
}

func TestSend_TransportFailure(t *testing.T) {
	b := &fakeBackend{chatErr: errors.New("connection refused")}
	c := newController(b)

	res, err := c.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Error(t, res.Err)

	msgs := c.Store().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, Message{Role: RoleUser, Content: "hello", Timestamp: msgs[0].Timestamp}, msgs[0])
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, ConnectionErrorText, msgs[1].Content)
	assert.Equal(t, 1, b.chatCount(), "no retry")
	assert.Zero(t, b.listCalls)
	assert.False(t, c.Store().Busy())
}

func TestSend_Malformed(t *testing.T) {
	b := &fakeBackend{chatErr: fmt.Errorf("%w: missing response field", api.ErrMalformedResponse)}
	c := newController(b)

	_, err := c.Send(context.Background(), "hello")
	require.NoError(t, err)
	msgs := c.Store().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, ConnectionErrorText, msgs[1].Content)
}

func TestSubmit_RejectsEmpty(t *testing.T) {
	b := &fakeBackend{}
	c := newController(b)

	_, err := c.Submit("   \n\t")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, c.Store().Messages())
	assert.False(t, c.Store().Busy())
}

func TestSubmit_RejectsWhileAwaiting(t *testing.T) {
	b := &fakeBackend{reply: "ok"}
	c := newController(b)

	req, err := c.Submit("first")
	require.NoError(t, err)
	assert.True(t, c.Store().Busy())

	_, err = c.Submit("second")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = c.Send(context.Background(), "third")
	assert.ErrorIs(t, err, ErrBusy)

	assert.Zero(t, b.chatCount(), "rejected sends issue no request")
	require.Len(t, c.Store().Messages(), 1)

	assert.True(t, c.Complete(c.Execute(context.Background(), req)))
	assert.Equal(t, 1, b.chatCount())
	assert.False(t, c.Store().Busy())

	_, err = c.Submit("fourth")
	assert.NoError(t, err)
}

func TestExecute_Location(t *testing.T) {
	testCases := []struct {
		name    string
		loc     geo.Location
		wantLat *float64
	}{
		{"pending omitted", geo.Location{}, nil},
		{"failed omitted", geo.Failed(geo.ErrUnsupported), nil},
		{"resolved attached", geo.Resolved(28.61, 77.2), ptr(28.61)},
		{"zero coordinates attached", geo.Resolved(0, 0), ptr(0)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := &fakeBackend{reply: "ok"}
			c := newController(b)
			c.SetLocation(tc.loc)

			_, err := c.Send(context.Background(), "where am i")
			require.NoError(t, err)
			require.Len(t, b.chats, 1)
			if tc.wantLat == nil {
				assert.Nil(t, b.chats[0].Latitude)
				assert.Nil(t, b.chats[0].Longitude)
				return
			}
			require.NotNil(t, b.chats[0].Latitude)
			require.NotNil(t, b.chats[0].Longitude)
			assert.Equal(t, *tc.wantLat, *b.chats[0].Latitude)
		})
	}
}

func ptr(f float64) *float64 { return &f }

func TestComplete_DiscardsAfterSwitch(t *testing.T) {
	b := &fakeBackend{
		reply:   "late reply",
		history: map[string][]api.HistoryMessage{"B": {{Role: "user", Content: "b1"}}},
	}
	c := newController(b)

	req, err := c.Submit("question for default")
	require.NoError(t, err)

	require.NoError(t, c.SelectSession(context.Background(), "B"))
	res := c.Execute(context.Background(), req)
	assert.False(t, c.Complete(res))

	msgs := c.Store().Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "b1", msgs[0].Content)
}

func TestComplete_DiscardsAfterSwitchBack(t *testing.T) {
	b := &fakeBackend{reply: "late reply", history: map[string][]api.HistoryMessage{}}
	c := newController(b)

	req, err := c.Submit("question")
	require.NoError(t, err)

	require.NoError(t, c.SelectSession(context.Background(), "B"))
	require.NoError(t, c.SelectSession(context.Background(), DefaultSessionID))

	assert.False(t, c.Complete(c.Execute(context.Background(), req)))
	assert.Empty(t, c.Store().Messages())
}

func TestSubmit_OneSendPerSessionAcrossSwitches(t *testing.T) {
	b := &fakeBackend{gate: make(chan struct{}), reply: "slow", history: map[string][]api.HistoryMessage{}}
	c := newController(b)

	req, err := c.Submit("first")
	require.NoError(t, err)

	done := make(chan Result)
	go func() {
		done <- c.Execute(context.Background(), req)
	}()

	require.NoError(t, c.SelectSession(context.Background(), "B"))
	require.NoError(t, c.SelectSession(context.Background(), DefaultSessionID))
	assert.True(t, c.Store().Busy(), "earlier send still in flight")

	_, err = c.Submit("second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Empty(t, c.Store().Messages())

	close(b.gate)
	assert.False(t, c.Complete(<-done))
	assert.False(t, c.Store().Busy())
	assert.Equal(t, 1, b.chatCount())

	_, err = c.Send(context.Background(), "second")
	require.NoError(t, err)
	assert.Equal(t, 2, b.chatCount())
	require.Len(t, c.Store().Messages(), 2)
}

func TestComplete_DiscardsAfterCreate(t *testing.T) {
	b := &fakeBackend{gate: make(chan struct{}), reply: "slow"}
	c := newController(b)

	req, err := c.Submit("question")
	require.NoError(t, err)

	done := make(chan Result)
	go func() {
		done <- c.Execute(context.Background(), req)
	}()

	session := c.CreateSession(context.Background())
	close(b.gate)
	assert.False(t, c.Complete(<-done))

	assert.Equal(t, session.ID, c.Store().ActiveID())
	assert.Empty(t, c.Store().Messages())
	assert.False(t, c.Store().Busy())
}

func TestSelectSession_HistoryFailureLeavesEmpty(t *testing.T) {
	b := &fakeBackend{reply: "ok"}
	c := newController(b)

	_, err := c.Send(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, c.Store().Messages(), 2)

	b.histErr = errors.New("boom")
	err = c.SelectSession(context.Background(), "B")
	assert.Error(t, err)
	assert.Equal(t, "B", c.Store().ActiveID())
	assert.Empty(t, c.Store().Messages())
	assert.False(t, c.Store().Busy())
}

func TestSelectSession_StaleHistoryDiscarded(t *testing.T) {
	b := &fakeBackend{history: map[string][]api.HistoryMessage{
		"A": {{Role: "user", Content: "a1"}},
		"B": {{Role: "user", Content: "b1"}, {Role: "assistant", Content: "b2"}},
	}}
	c := newController(b)

	ticketA := c.BeginSelect("A")
	assert.True(t, c.Store().Busy(), "loading blocks sends")
	_, err := c.Submit("too early")
	assert.ErrorIs(t, err, ErrBusy)

	ticketB := c.BeginSelect("B")
	resB := c.LoadHistory(context.Background(), ticketB)
	resA := c.LoadHistory(context.Background(), ticketA)

	assert.True(t, c.ApplyHistory(resB))
	assert.False(t, c.ApplyHistory(resA))

	msgs := c.Store().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "b1", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
}

// Any interleaving of create/select leaves only the last selected session's
// messages visible.
func TestSessionSwitching_NeverMixes(t *testing.T) {
	b := &fakeBackend{history: map[string][]api.HistoryMessage{
		"A": {{Role: "user", Content: "A:1"}, {Role: "assistant", Content: "A:2"}},
		"B": {{Role: "user", Content: "B:1"}},
		"C": {{Role: "user", Content: "C:1"}, {Role: "assistant", Content: "C:2"}, {Role: "user", Content: "C:3"}},
	}}
	ops := []string{"A", "new", "B", "C", "new", "A", "A", "C", "new", "B"}

	c := newController(b)
	var pending []HistoryResult
	for i, op := range ops {
		if op == "new" {
			c.CreateSession(context.Background())
		} else {
			pending = append(pending, c.LoadHistory(context.Background(), c.BeginSelect(op)))
		}
		// apply results in reverse order to model slow earlier loads
		if i%3 == 2 {
			for j := len(pending) - 1; j >= 0; j-- {
				c.ApplyHistory(pending[j])
			}
			pending = nil
		}
		assertSingleSession(t, c)
	}
	for _, r := range pending {
		c.ApplyHistory(r)
	}
	assertSingleSession(t, c)
	assert.Equal(t, "B", c.Store().ActiveID())
	require.Len(t, c.Store().Messages(), 1)
}

func assertSingleSession(t *testing.T, c *Controller) {
	t.Helper()
	snap := c.Store().Snapshot()
	for _, m := range snap.Messages {
		owner, _, _ := strings.Cut(m.Content, ":")
		assert.Equal(t, snap.ActiveID, owner, "message %q visible in session %s", m.Content, snap.ActiveID)
	}
}

func TestCreateSession(t *testing.T) {
	b := &fakeBackend{listErr: errors.New("offline")}
	c := newController(b)

	_, err := c.Send(context.Background(), "hello")
	require.NoError(t, err)

	epoch := c.Store().Epoch()
	session := c.CreateSession(context.Background())
	assert.True(t, strings.HasPrefix(session.ID, "session_"))
	assert.Equal(t, session.ID, c.Store().ActiveID())
	assert.Empty(t, c.Store().Messages())
	assert.Greater(t, c.Store().Epoch(), epoch)

	ids := sessionIDs(c.Store().Sessions())
	assert.Equal(t, []string{DefaultSessionID, session.ID}, ids)

	other := c.CreateSession(context.Background())
	assert.NotEqual(t, session.ID, other.ID)
}

func TestListSessions_FailureKeepsRoster(t *testing.T) {
	b := &fakeBackend{sessions: []api.SessionInfo{{ID: "s2", Title: "Commute"}, {ID: "s1"}}}
	c := newController(b)

	require.NoError(t, c.ListSessions(context.Background()))
	want := []string{"s2", "s1", DefaultSessionID}
	assert.Equal(t, want, sessionIDs(c.Store().Sessions()))

	b.listErr = errors.New("503")
	b.sessions = nil
	assert.Error(t, c.ListSessions(context.Background()))
	assert.Equal(t, want, sessionIDs(c.Store().Sessions()))
}

func TestListSessions_RemoteAdoptsLocal(t *testing.T) {
	b := &fakeBackend{}
	c := newController(b)
	local := c.NewSession()

	b.sessions = []api.SessionInfo{{ID: local.ID, Title: "Air in Pune"}, {ID: DefaultSessionID}}
	require.NoError(t, c.ListSessions(context.Background()))

	sessions := c.Store().Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "Air in Pune", sessions[0].DisplayTitle())
	assert.Equal(t, DefaultSessionID, sessions[1].ID)
}

func TestStore_AppendTouchesSession(t *testing.T) {
	b := &fakeBackend{reply: "ok"}
	c := newController(b)
	before := c.Store().Sessions()[0].UpdatedAt

	_, err := c.Send(context.Background(), "hello")
	require.NoError(t, err)
	after := c.Store().Sessions()[0].UpdatedAt
	assert.False(t, after.Before(before))
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	s := NewStore("A")
	_, err := s.Begin(Message{Role: RoleUser, Content: "one"})
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.Messages[0].Content = "changed"
	assert.Equal(t, "one", s.Messages()[0].Content)
	assert.True(t, snap.Busy)
	assert.NotZero(t, snap.Version)
}

func TestSession_DisplayTitle(t *testing.T) {
	assert.Equal(t, "Commute", Session{ID: "x", Title: "Commute"}.DisplayTitle())
	assert.Equal(t, "Session session_...", Session{ID: "session_0192f"}.DisplayTitle())
	assert.Equal(t, "Session abc...", Session{ID: "abc"}.DisplayTitle())
}

func sessionIDs(sessions []Session) []string {
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.ID)
	}
	return out
}
