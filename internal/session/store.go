// ABOUTME: In-memory per-client conversation store with bounded turns and idle expiry.
// ABOUTME: Expired sessions rotate their id lazily; Sweep deletes them outright.

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// NoHistory is the summary of a session without turns.
const NoHistory = "No previous conversation history."

// Turn is one message in a conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Info describes a session without exposing its turns. An expired session
// has no SessionID: its next access issues a new one.
type Info struct {
	ClientID     string    `json:"client_id"`
	SessionID    string    `json:"session_id,omitempty"`
	Turns        int       `json:"turns"`
	LastActivity time.Time `json:"last_activity"`
	Expired      bool      `json:"expired,omitempty"`
}

// Options configures a Store.
type Options struct {
	// MaxTurns is the per-session turn capacity.
	MaxTurns int
	// Timeout is the idle time after which a session expires.
	Timeout time.Duration
	// SummaryTurns is how many recent turns Summary renders.
	SummaryTurns int
	// SummaryChars truncates each rendered turn.
	SummaryChars int
}

// DefaultOptions returns the stock store settings.
func DefaultOptions() Options {
	return Options{
		MaxTurns:     20,
		Timeout:      time.Hour,
		SummaryTurns: 6,
		SummaryChars: 200,
	}
}

type entry struct {
	id           string
	turns        []Turn
	lastActivity time.Time
}

// Store holds every client's session behind one mutex.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	opts     Options
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

// NewStore creates an empty store. Zero option fields take their defaults.
func NewStore(opts Options, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = def.MaxTurns
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.SummaryTurns <= 0 {
		opts.SummaryTurns = def.SummaryTurns
	}
	if opts.SummaryChars <= 0 {
		opts.SummaryChars = def.SummaryChars
	}
	return &Store{
		sessions: make(map[string]*entry),
		opts:     opts,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		logger:   logger.With("component", "sessions"),
	}
}

// Options returns the effective settings.
func (s *Store) Options() Options {
	return s.opts
}

func (s *Store) expired(e *entry, now time.Time) bool {
	return now.Sub(e.lastActivity) > s.opts.Timeout
}

// touch refreshes last activity without letting it move backwards.
func touch(e *entry, now time.Time) {
	if now.After(e.lastActivity) {
		e.lastActivity = now
	}
}

// rotate discards the turns and issues a new session id. Must hold mu.
func (s *Store) rotate(e *entry, now time.Time) {
	e.id = s.newID()
	e.turns = nil
	e.lastActivity = now
}

// acquire returns the live entry for clientID, creating or rotating as
// needed. Must hold mu.
func (s *Store) acquire(clientID string, now time.Time) *entry {
	e, ok := s.sessions[clientID]
	switch {
	case !ok:
		e = &entry{}
		s.rotate(e, now)
		s.sessions[clientID] = e
		s.logger.Debug("session created", "client_id", clientID, "session_id", e.id)
	case s.expired(e, now):
		old := e.id
		s.rotate(e, now)
		s.logger.Info("session expired",
			"client_id", clientID,
			"old_session_id", old,
			"session_id", e.id,
		)
	default:
		touch(e, now)
	}
	return e
}

// GetOrCreate returns the client's current session id, starting a fresh
// session when none exists or the existing one has expired.
func (s *Store) GetOrCreate(clientID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquire(clientID, s.now()).id
}

// Append adds a turn, dropping the oldest when the session is full.
func (s *Store) Append(clientID string, role Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e := s.acquire(clientID, now)
	e.turns = append(e.turns, Turn{Role: role, Text: text, CreatedAt: now})
	if over := len(e.turns) - s.opts.MaxTurns; over > 0 {
		e.turns = append(e.turns[:0:0], e.turns[over:]...)
	}
}

// History returns a copy of the client's turns, oldest first. Unknown and
// expired sessions have no history.
func (s *Store) History(clientID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[clientID]
	if !ok || s.expired(e, s.now()) {
		return []Turn{}
	}
	return append([]Turn{}, e.turns...)
}

// Summary renders the most recent turns as "role: text" lines. Each turn is
// cut to SummaryChars runes with a trailing "...".
func (s *Store) Summary(clientID string) string {
	turns := s.History(clientID)
	if len(turns) == 0 {
		return NoHistory
	}
	if len(turns) > s.opts.SummaryTurns {
		turns = turns[len(turns)-s.opts.SummaryTurns:]
	}

	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", t.Role, truncate(t.Text, s.opts.SummaryChars))
	}
	return b.String()
}

func truncate(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

// Clear empties the client's turns and rotates its session id. Unknown
// clients are left alone.
func (s *Store) Clear(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[clientID]
	if !ok {
		return
	}
	old := e.id
	s.rotate(e, s.now())
	s.logger.Info("session cleared", "client_id", clientID, "old_session_id", old, "session_id", e.id)
}

// Info returns metadata for the client's session.
func (s *Store) Info(clientID string) (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[clientID]
	if !ok {
		return Info{}, false
	}
	info := Info{
		ClientID:     clientID,
		SessionID:    e.id,
		Turns:        len(e.turns),
		LastActivity: e.lastActivity,
	}
	if s.expired(e, s.now()) {
		info.SessionID = ""
		info.Turns = 0
		info.Expired = true
	}
	return info, true
}

// List returns metadata for every stored session, ordered by client id.
func (s *Store) List() []Info {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Strings(ids)
	out := make([]Info, 0, len(ids))
	for _, id := range ids {
		if info, ok := s.Info(id); ok {
			out = append(out, info)
		}
	}
	return out
}

// Len returns the number of stored sessions, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep deletes every session idle for longer than Timeout as of now and
// returns how many were removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for clientID, e := range s.sessions {
		if s.expired(e, now) {
			delete(s.sessions, clientID)
			removed++
		}
	}
	return removed
}

// Run sweeps on every tick of interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Debug("session sweeper started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("session sweeper stopped")
			return
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 {
				s.logger.Info("swept expired sessions", "removed", n, "remaining", s.Len())
			}
		}
	}
}
