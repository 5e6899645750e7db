package conversation

import (
	"context"
	"strings"

	"prana-chat/internal/api"
	"prana-chat/internal/geo"
	"prana-chat/internal/logger"
)

// Request is a submitted message waiting to be executed.
type Request struct {
	Ticket   Ticket
	Text     string
	UserID   string
	Location geo.Location
}

// Result is the outcome of executing a Request.
type Result struct {
	Request Request
	Reply   string
	Err     error
}

// Submit appends the user's message to the active session and captures
// what Execute needs. Blank text and busy sessions are rejected without
// any state change.
func (c *Controller) Submit(text string) (Request, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Request{}, ErrEmptyMessage
	}

	ticket, err := c.store.Begin(Message{Role: RoleUser, Content: text, Timestamp: c.now()})
	if err != nil {
		return Request{}, err
	}
	return Request{Ticket: ticket, Text: text, UserID: c.userID, Location: c.Location()}, nil
}

// Execute posts the request. It does not touch the store.
func (c *Controller) Execute(ctx context.Context, req Request) Result {
	chatReq := api.ChatRequest{
		Message:   req.Text,
		SessionID: req.Ticket.SessionID,
		UserID:    req.UserID,
	}
	if lat, lon, ok := req.Location.Coordinates(); ok {
		chatReq.Latitude = &lat
		chatReq.Longitude = &lon
	}

	reply, err := c.backend.Chat(ctx, chatReq)
	if err != nil {
		logger.Warn("chat request failed", "session", req.Ticket.SessionID, "error", err)
		return Result{Request: req, Err: err}
	}
	return Result{Request: req, Reply: reply}
}

// Complete applies a result to its session. A failure becomes a single
// assistant message with ConnectionErrorText. Results for a session view
// that is no longer active are dropped. It reports whether the result was
// applied.
func (c *Controller) Complete(res Result) bool {
	msg := Message{Role: RoleAssistant, Content: res.Reply, Timestamp: c.now()}
	if res.Err != nil {
		msg.Content = ConnectionErrorText
	}

	if !c.store.Finish(res.Request.Ticket, msg) {
		logger.Debug("discarded stale reply",
			"session", res.Request.Ticket.SessionID,
			"epoch", res.Request.Ticket.Epoch)
		return false
	}
	return true
}

// Send runs the whole pipeline for text and refreshes the roster after a
// successful reply. The error reports a rejected submission only; a failed
// request is visible in the result and the conversation.
func (c *Controller) Send(ctx context.Context, text string) (Result, error) {
	req, err := c.Submit(text)
	if err != nil {
		return Result{}, err
	}

	res := c.Execute(ctx, req)
	if c.Complete(res) && res.Err == nil {
		if err := c.ListSessions(ctx); err != nil {
			logger.Debug("roster refresh after reply failed", "error", err)
		}
	}
	return res, nil
}
