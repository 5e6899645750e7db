package conversation

import (
	"sync"
	"time"
)

// Store is the client-side state of the conversation: the active session,
// its messages, the session roster and the in-flight markers. Every
// mutation happens in one locked step, and the message list only ever
// holds messages of the active session.
type Store struct {
	mu       sync.RWMutex
	activeID string
	messages []Message

	remote []Session
	local  []Session

	// loading maps a session id to the epoch of its outstanding history
	// load; activation replaces it.
	loading map[string]uint64
	// sending holds the ticket of each session's outstanding send. Only
	// Finish releases it, so a session never has two sends in flight.
	sending map[string]Ticket

	epoch   uint64
	version uint64
	now     func() time.Time
}

// Snapshot is a consistent copy of the store.
type Snapshot struct {
	ActiveID string
	Messages []Message
	Sessions []Session
	Busy     bool
	Epoch    uint64
	Version  uint64
}

// ActiveSession returns the roster entry for the active session, or a bare
// Session carrying only the id when the roster does not list it yet.
func (s Snapshot) ActiveSession() Session {
	for _, session := range s.Sessions {
		if session.ID == s.ActiveID {
			return session
		}
	}
	return Session{ID: s.ActiveID}
}

// NewStore creates a store with activeID as the active, empty session.
func NewStore(activeID string) *Store {
	return &Store{
		activeID: activeID,
		loading:  make(map[string]uint64),
		sending:  make(map[string]Ticket),
		epoch:    1,
		now:      time.Now,
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	busy := s.busyLocked(s.activeID)
	return Snapshot{
		ActiveID: s.activeID,
		Messages: append([]Message(nil), s.messages...),
		Sessions: s.rosterLocked(),
		Busy:     busy,
		Epoch:    s.epoch,
		Version:  s.version,
	}
}

// ActiveID returns the id of the active session.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Messages returns a copy of the active session's messages.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.messages...)
}

// Sessions returns the roster: remote sessions in remote order followed by
// local sessions the remote does not list yet.
func (s *Store) Sessions() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rosterLocked()
}

// Busy reports whether the active session has an operation in flight.
func (s *Store) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busyLocked(s.activeID)
}

// Version increments on every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Epoch increments on every activation.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Activate makes id the active session with an empty message list. When
// loading is set the session is marked busy until the returned ticket is
// finished with ReplaceMessages. A send already in flight for id stays in
// flight.
func (s *Store) Activate(id string, loading bool) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeID = id
	s.messages = nil
	s.epoch++
	s.version++
	if loading {
		s.loading[id] = s.epoch
	}
	return Ticket{SessionID: id, Epoch: s.epoch}
}

// AddLocal records a session created by this client.
func (s *Store) AddLocal(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(session.ID) >= 0 {
		return
	}
	s.local = append(s.local, session)
	s.version++
}

// SetSessions replaces the remote part of the roster.
func (s *Store) SetSessions(remote []Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[string]bool, len(remote))
	for _, r := range remote {
		known[r.ID] = true
	}
	local := s.local[:0]
	for _, l := range s.local {
		if !known[l.ID] {
			local = append(local, l)
		}
	}
	s.local = local
	s.remote = append([]Session(nil), remote...)
	s.version++
}

// Begin appends an outgoing user message to the active session and marks
// it busy. It fails with ErrBusy if the session is loading its history or
// still awaits the reply to an earlier send, whatever view that send was
// made from.
func (s *Store) Begin(msg Message) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busyLocked(s.activeID) {
		return Ticket{}, ErrBusy
	}
	s.appendLocked(msg)
	t := Ticket{SessionID: s.activeID, Epoch: s.epoch}
	s.sending[s.activeID] = t
	return t, nil
}

// Finish releases the ticket's send and appends msg if the ticket still
// matches the active view. It reports whether msg was applied.
func (s *Store) Finish(t Ticket, msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sending[t.SessionID] == t {
		delete(s.sending, t.SessionID)
		s.version++
	}
	if !s.currentLocked(t) {
		return false
	}
	s.appendLocked(msg)
	return true
}

// ReplaceMessages releases the ticket's history load and, if the ticket
// still matches the active view, replaces the message list.
func (s *Store) ReplaceMessages(t Ticket, msgs []Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch, ok := s.loading[t.SessionID]; ok && epoch == t.Epoch {
		delete(s.loading, t.SessionID)
		s.version++
	}
	if !s.currentLocked(t) {
		return false
	}
	s.messages = append([]Message(nil), msgs...)
	s.version++
	return true
}

func (s *Store) currentLocked(t Ticket) bool {
	return t.SessionID == s.activeID && t.Epoch == s.epoch
}

func (s *Store) busyLocked(id string) bool {
	if _, ok := s.loading[id]; ok {
		return true
	}
	_, ok := s.sending[id]
	return ok
}

func (s *Store) appendLocked(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	s.messages = append(s.messages, msg)
	s.touchLocked(s.activeID, msg.Timestamp)
	s.version++
}

// touchLocked advances UpdatedAt of the session in the roster.
func (s *Store) touchLocked(id string, at time.Time) {
	for i := range s.remote {
		if s.remote[i].ID == id && at.After(s.remote[i].UpdatedAt) {
			s.remote[i].UpdatedAt = at
			return
		}
	}
	for i := range s.local {
		if s.local[i].ID == id && at.After(s.local[i].UpdatedAt) {
			s.local[i].UpdatedAt = at
			return
		}
	}
}

func (s *Store) indexLocked(id string) int {
	for i, r := range s.remote {
		if r.ID == id {
			return i
		}
	}
	for i, l := range s.local {
		if l.ID == id {
			return len(s.remote) + i
		}
	}
	return -1
}

func (s *Store) rosterLocked() []Session {
	out := make([]Session, 0, len(s.remote)+len(s.local))
	out = append(out, s.remote...)
	return append(out, s.local...)
}
