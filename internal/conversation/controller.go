package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"prana-chat/internal/api"
	"prana-chat/internal/geo"
	"prana-chat/internal/logger"
)

// Backend is the remote assistant service.
type Backend interface {
	Chat(ctx context.Context, req api.ChatRequest) (string, error)
	ListSessions(ctx context.Context, userID string) ([]api.SessionInfo, error)
	History(ctx context.Context, sessionID, userID string) ([]api.HistoryMessage, error)
}

// Controller drives session creation, selection and listing, and the
// request pipeline. Each network operation comes in a synchronous form and
// in staged form (start, network step, apply) for event-loop callers that
// must not block.
type Controller struct {
	store   *Store
	backend Backend
	userID  string

	mu       sync.RWMutex
	location geo.Location

	now func() time.Time
}

// NewController creates a controller with initialSession active.
func NewController(backend Backend, userID, initialSession string) *Controller {
	if initialSession == "" {
		initialSession = DefaultSessionID
	}
	c := &Controller{
		store:   NewStore(initialSession),
		backend: backend,
		userID:  userID,
		now:     time.Now,
	}
	now := c.now()
	c.store.AddLocal(Session{ID: initialSession, CreatedAt: now, UpdatedAt: now})
	return c
}

// Store returns the conversation store.
func (c *Controller) Store() *Store {
	return c.store
}

// UserID returns the user the controller acts for.
func (c *Controller) UserID() string {
	return c.userID
}

// Location returns the latest location outcome.
func (c *Controller) Location() geo.Location {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.location
}

// SetLocation records a location outcome for subsequent requests.
func (c *Controller) SetLocation(loc geo.Location) {
	c.mu.Lock()
	c.location = loc
	c.mu.Unlock()
	logger.Debug("location updated", "status", loc.Status())
}

// NewSession activates a fresh local session without touching the network.
func (c *Controller) NewSession() Session {
	now := c.now()
	session := Session{ID: NewSessionID(), CreatedAt: now, UpdatedAt: now}
	c.store.Activate(session.ID, false)
	c.store.AddLocal(session)
	logger.Info("session created", "session", session.ID)
	return session
}

// CreateSession activates a fresh session and refreshes the roster. It
// never fails; a roster refresh error is only logged.
func (c *Controller) CreateSession(ctx context.Context) Session {
	session := c.NewSession()
	if err := c.ListSessions(ctx); err != nil {
		logger.Warn("failed to refresh sessions", "error", err)
	}
	return session
}

// HistoryResult is the outcome of LoadHistory.
type HistoryResult struct {
	Ticket   Ticket
	Messages []Message
	Err      error
}

// BeginSelect activates id with an empty list and marks it loading.
func (c *Controller) BeginSelect(id string) Ticket {
	return c.store.Activate(id, true)
}

// LoadHistory fetches the messages of the ticket's session.
func (c *Controller) LoadHistory(ctx context.Context, t Ticket) HistoryResult {
	history, err := c.backend.History(ctx, t.SessionID, c.userID)
	if err != nil {
		return HistoryResult{Ticket: t, Err: fmt.Errorf("failed to load history for %s: %w", t.SessionID, err)}
	}

	msgs := make([]Message, 0, len(history))
	for _, h := range history {
		msgs = append(msgs, Message{Role: Role(h.Role), Content: h.Content, Timestamp: h.Timestamp})
	}
	return HistoryResult{Ticket: t, Messages: msgs}
}

// ApplyHistory installs a history result. A failed load leaves the list
// empty; a result for a view that is no longer active is discarded.
func (c *Controller) ApplyHistory(res HistoryResult) bool {
	msgs := res.Messages
	if res.Err != nil {
		logger.Warn("history unavailable", "session", res.Ticket.SessionID, "error", res.Err)
		msgs = nil
	}
	applied := c.store.ReplaceMessages(res.Ticket, msgs)
	if !applied {
		logger.Debug("discarded stale history", "session", res.Ticket.SessionID, "epoch", res.Ticket.Epoch)
		return false
	}
	logger.Debug("history loaded", "session", res.Ticket.SessionID, "messages", len(msgs))
	return true
}

// SelectSession switches to id and loads its history. The returned error
// reports a failed load; the session is active with an empty list anyway.
func (c *Controller) SelectSession(ctx context.Context, id string) error {
	res := c.LoadHistory(ctx, c.BeginSelect(id))
	c.ApplyHistory(res)
	return res.Err
}

// SessionsResult is the outcome of FetchSessions.
type SessionsResult struct {
	Sessions []Session
	Err      error
}

// FetchSessions retrieves the roster from the service.
func (c *Controller) FetchSessions(ctx context.Context) SessionsResult {
	infos, err := c.backend.ListSessions(ctx, c.userID)
	if err != nil {
		return SessionsResult{Err: fmt.Errorf("failed to list sessions: %w", err)}
	}

	sessions := make([]Session, 0, len(infos))
	for _, info := range infos {
		sessions = append(sessions, Session{
			ID:        info.ID,
			CreatedAt: info.CreateTime.Time,
			UpdatedAt: info.UpdateTime.Time,
			Title:     info.Title,
		})
	}
	return SessionsResult{Sessions: sessions}
}

// ApplySessions installs a fetched roster. A failed fetch keeps the
// current roster.
func (c *Controller) ApplySessions(res SessionsResult) {
	if res.Err != nil {
		logger.Debug("keeping session roster", "error", res.Err)
		return
	}
	c.store.SetSessions(res.Sessions)
}

// ListSessions refreshes the roster from the service.
func (c *Controller) ListSessions(ctx context.Context) error {
	res := c.FetchSessions(ctx)
	c.ApplySessions(res)
	return res.Err
}
