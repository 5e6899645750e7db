package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedResponse is returned when a 2xx response lacks the expected fields.
var ErrMalformedResponse = errors.New("malformed response")

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned status %d", e.Code)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Body)
}

// ChatRequest is the body of POST /chat. Coordinates are omitted when nil.
type ChatRequest struct {
	Message   string   `json:"message"`
	SessionID string   `json:"session_id"`
	UserID    string   `json:"user_id"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// chatResponse is the body of a successful POST /chat.
type chatResponse struct {
	Response  *string `json:"response"`
	SessionID string  `json:"session_id,omitempty"`
}

// SessionInfo is one entry of GET /sessions/{user}.
type SessionInfo struct {
	ID         string    `json:"id"`
	CreateTime Timestamp `json:"create_time"`
	UpdateTime Timestamp `json:"update_time"`
	Title      string    `json:"title,omitempty"`
}

// HistoryMessage is one decoded entry of GET /history/{session}.
type HistoryMessage struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// Timestamp accepts RFC 3339 strings, naive ISO strings and epoch seconds.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	if data[0] != '"' {
		secs, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid timestamp %s: %w", data, err)
		}
		t.Time = epoch(secs)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		t.Time = epoch(secs)
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

func epoch(secs float64) time.Time {
	whole := int64(secs)
	nanos := int64((secs - float64(whole)) * float64(time.Second))
	return time.Unix(whole, nanos).UTC()
}

// historyItem is the wire shape of a history entry. Content is either a
// string or a {role?, parts: [{text}]} object.
type historyItem struct {
	Role      string          `json:"role"`
	Author    string          `json:"author"`
	Content   json.RawMessage `json:"content"`
	Timestamp Timestamp       `json:"timestamp"`
}

type historyContent struct {
	Role  string `json:"role"`
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

// decodeHistory accepts a bare array or an object with a "messages" array.
// Entries with an unrecognised role are skipped.
func decodeHistory(body []byte) ([]HistoryMessage, error) {
	body = bytes.TrimSpace(body)

	var items []historyItem
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	} else {
		var wrapped struct {
			Messages *[]historyItem `json:"messages"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if wrapped.Messages == nil {
			return nil, fmt.Errorf("%w: missing messages", ErrMalformedResponse)
		}
		items = *wrapped.Messages
	}

	out := make([]HistoryMessage, 0, len(items))
	for _, item := range items {
		role, content, ok := item.decode()
		if !ok {
			continue
		}
		out = append(out, HistoryMessage{Role: role, Content: content, Timestamp: item.Timestamp.Time})
	}
	return out, nil
}

func (h historyItem) decode() (role, content string, ok bool) {
	role = h.Role
	raw := bytes.TrimSpace(h.Content)

	switch {
	case len(raw) == 0 || string(raw) == "null":
		return "", "", false
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &content); err != nil {
			return "", "", false
		}
	default:
		var c historyContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return "", "", false
		}
		texts := make([]string, 0, len(c.Parts))
		for _, p := range c.Parts {
			if p.Text != "" {
				texts = append(texts, p.Text)
			}
		}
		content = strings.Join(texts, "\n")
		if role == "" {
			role = c.Role
		}
	}
	if role == "" && h.Author != "" {
		// agent events name the agent rather than a role
		role = "assistant"
		if strings.EqualFold(h.Author, "user") {
			role = "user"
		}
	}

	switch strings.ToLower(role) {
	case "user":
		return "user", content, true
	case "assistant", "model", "agent":
		return "assistant", content, true
	default:
		return "", "", false
	}
}
