package conversation

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxTokens is the token budget of a session.
const DefaultMaxTokens = 4000

// Session is a bounded, relevance-pruned message log.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"maxTokens"`
}

// NewSession creates an empty session. maxTokens <= 0 uses DefaultMaxTokens.
func NewSession(maxTokens int) *Session {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Session{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
		MaxTokens: maxTokens,
	}
}

// TokenCount sums the token estimate of every message.
func (s *Session) TokenCount() int {
	n := 0
	for _, m := range s.Messages {
		n += EstimateTokens(m.Content)
	}
	return n
}

// AddMessage appends m and prunes if the session is over budget.
func (s *Session) AddMessage(m Message) {
	s.Messages = append(s.Messages, m)
	if s.TokenCount() > s.MaxTokens {
		s.prune()
	}
}

// prune evicts messages in ascending relevance order until the session fits
// the budget. Ties are evicted oldest first. Pruning stops at the first
// critical candidate, so a session whose critical messages alone exceed the
// budget stays over budget.
// TODO: decide whether oversized critical messages should be truncated
// instead of leaving the session over budget.
func (s *Session) prune() {
	order := make([]int, len(s.Messages))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return s.Messages[order[a]].Relevance < s.Messages[order[b]].Relevance
	})

	removed := make(map[int]bool)
	tokens := s.TokenCount()
	for _, idx := range order {
		if tokens <= s.MaxTokens {
			break
		}
		m := s.Messages[idx]
		if m.Relevance == Critical {
			break
		}
		removed[idx] = true
		tokens -= EstimateTokens(m.Content)
	}
	if len(removed) == 0 {
		return
	}

	kept := make([]Message, 0, len(s.Messages)-len(removed))
	for i, m := range s.Messages {
		if !removed[i] {
			kept = append(kept, m)
		}
	}
	s.Messages = kept
}

// clone returns a deep copy of s.
func (s *Session) clone() Session {
	cp := *s
	cp.Messages = make([]Message, len(s.Messages))
	copy(cp.Messages, s.Messages)
	return cp
}
