package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/preppal/internal/nutrition"
	"github.com/kalambet/preppal/internal/storage"
)

// Archiver persists finished sessions. storage.Store implements it.
type Archiver interface {
	ArchiveSession(rec storage.SessionRecord) error
}

// CriticalContext is the information that must survive every session rollover.
type CriticalContext struct {
	DietaryRestrictions []string
	Allergies           []string
	Goals               *nutrition.NutritionGoals
}

func (c CriticalContext) text() string {
	var lines []string
	if len(c.DietaryRestrictions) > 0 {
		lines = append(lines, "Dietary Restrictions: "+strings.Join(c.DietaryRestrictions, ", "))
	}
	if len(c.Allergies) > 0 {
		lines = append(lines, "Allergies: "+strings.Join(c.Allergies, ", "))
	}
	if c.Goals != nil {
		lines = append(lines, "Goal: "+c.Goals.GoalType.Label())
		lines = append(lines, "Diet: "+c.Goals.DietaryPattern.Label())
	}
	return strings.Join(lines, "\n")
}

// Manager owns the active session of one user plus the sessions archived
// before it. It is not safe for concurrent use; callers serialise access.
type Manager struct {
	userID     string
	maxTokens  int
	archiver   Archiver
	current    *Session
	archived   []Session
	critical   CriticalContext
	criticalID string
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxTokens sets the token budget of every session the manager creates.
func WithMaxTokens(n int) Option {
	return func(m *Manager) { m.maxTokens = n }
}

// WithArchiver persists sessions on rollover.
func WithArchiver(a Archiver) Option {
	return func(m *Manager) { m.archiver = a }
}

// WithArchived seeds the searchable history, oldest first.
func WithArchived(sessions []Session) Option {
	return func(m *Manager) { m.archived = append(m.archived, sessions...) }
}

// NewManager creates a manager with an empty active session.
func NewManager(userID string, opts ...Option) *Manager {
	m := &Manager{userID: userID}
	for _, o := range opts {
		o(m)
	}
	m.current = NewSession(m.maxTokens)
	return m
}

// AddMessage appends msg to the active session, pruning if over budget.
func (m *Manager) AddMessage(msg Message) {
	m.current.AddMessage(msg)
}

// Current returns a copy of the active session.
func (m *Manager) Current() Session {
	return m.current.clone()
}

// ActiveSessionID identifies the active session. It changes on every
// StartNewSession.
func (m *Manager) ActiveSessionID() string {
	return m.current.ID
}

// RecentContents returns the content of the last n messages in order.
func (m *Manager) RecentContents(n int) []string {
	msgs := m.current.Messages
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]string, len(msgs))
	for i, msg := range msgs {
		out[i] = msg.Content
	}
	return out
}

// StartNewSession archives the active session and opens a new one seeded
// with the critical context. If archiving fails the active session is kept.
func (m *Manager) StartNewSession() error {
	old := m.current.clone()
	if m.archiver != nil {
		rec, err := EncodeSession(m.userID, old)
		if err != nil {
			return err
		}
		if err := m.archiver.ArchiveSession(rec); err != nil {
			return fmt.Errorf("archiving session %s: %w", old.ID, err)
		}
	}
	m.archived = append(m.archived, old)

	m.current = NewSession(m.maxTokens)
	m.criticalID = ""
	m.seedCritical()
	return nil
}

// UpdateCriticalContext replaces the critical context and the critical
// system message of the active session.
func (m *Manager) UpdateCriticalContext(restrictions, allergies []string, goals *nutrition.NutritionGoals) {
	m.critical = CriticalContext{
		DietaryRestrictions: append([]string(nil), restrictions...),
		Allergies:           append([]string(nil), allergies...),
	}
	if goals != nil {
		g := *goals
		m.critical.Goals = &g
	}

	if m.criticalID != "" {
		kept := m.current.Messages[:0]
		for _, msg := range m.current.Messages {
			if msg.ID != m.criticalID {
				kept = append(kept, msg)
			}
		}
		m.current.Messages = kept
		m.criticalID = ""
	}
	m.seedCritical()
}

// CriticalContext returns the tracked critical context.
func (m *Manager) CriticalContext() CriticalContext {
	return m.critical
}

// seedCritical puts the critical context message at the head of the active
// session. It is a no-op when there is nothing critical to say.
func (m *Manager) seedCritical() {
	text := m.critical.text()
	if text == "" {
		return
	}
	msg := NewMessage(RoleSystem, text, Critical)
	m.criticalID = msg.ID
	m.current.Messages = append([]Message{msg}, m.current.Messages...)
	if m.current.TokenCount() > m.current.MaxTokens {
		m.current.prune()
	}
}

// SearchPreviousContext returns every archived message whose content
// contains query, case-insensitively, oldest session first.
func (m *Manager) SearchPreviousContext(query string) []Message {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []Message
	for _, s := range m.archived {
		for _, msg := range s.Messages {
			if strings.Contains(strings.ToLower(msg.Content), q) {
				out = append(out, msg)
			}
		}
	}
	return out
}

// ArchivedCount reports how many sessions are searchable.
func (m *Manager) ArchivedCount() int {
	return len(m.archived)
}

// EncodeSession converts a session into its storage form.
func EncodeSession(userID string, s Session) (storage.SessionRecord, error) {
	msgs := s.Messages
	if msgs == nil {
		msgs = []Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("encoding session %s: %w", s.ID, err)
	}
	return storage.SessionRecord{
		ID:           s.ID,
		UserID:       userID,
		StartedAt:    s.StartedAt,
		ArchivedAt:   time.Now().UTC(),
		MessagesJSON: string(data),
	}, nil
}

// DecodeSessions restores archived sessions loaded from storage.
func DecodeSessions(recs []storage.SessionRecord) ([]Session, error) {
	out := make([]Session, 0, len(recs))
	for _, r := range recs {
		var msgs []Message
		if err := json.Unmarshal([]byte(r.MessagesJSON), &msgs); err != nil {
			return nil, fmt.Errorf("decoding session %s: %w", r.ID, err)
		}
		out = append(out, Session{ID: r.ID, StartedAt: r.StartedAt, Messages: msgs})
	}
	return out, nil
}
