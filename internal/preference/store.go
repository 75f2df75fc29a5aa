package preference

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultWeight is the EMA smoothing factor applied to new observations.
	DefaultWeight = 0.1
	minWeight     = 0.1
	maxWeight     = 1.0

	historyCapacity   = 100
	confidenceSamples = 10
	defaultTopLimit   = 5
	minTopConfidence  = 0.3
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type itemKey struct {
	category Category
	value    string
}

func keyFor(c Category, value string) itemKey {
	return itemKey{category: c, value: strings.ToLower(strings.TrimSpace(value))}
}

// Store learns preference scores from repeated observations.
type Store struct {
	clock    Clock
	triggers Triggers

	mu      sync.Mutex
	items   map[itemKey]*Item
	history []Interaction
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithTriggers overrides the keyword table used by EnhanceContext.
func WithTriggers(t Triggers) Option {
	return func(s *Store) { s.triggers = t }
}

// NewStore creates an empty Store using the built-in trigger table.
func NewStore(opts ...Option) *Store {
	s := &Store{
		clock:   realClock{},
		items:   make(map[itemKey]*Item),
		history: make([]Interaction, 0, historyCapacity),
	}
	for _, o := range opts {
		o(s)
	}
	if s.triggers == nil {
		s.triggers = DefaultTriggers()
	}
	return s
}

// Record folds a new observation into the (category, value) item using the
// default weight.
func (s *Store) Record(c Category, value string, score float64, context string) Item {
	return s.RecordWeighted(c, value, score, DefaultWeight, context)
}

// RecordWeighted folds score into the item with an EMA of the given weight.
// weight is clamped to [0.1, 1.0] and score to [-1, 1].
func (s *Store) RecordWeighted(c Category, value string, score, weight float64, context string) Item {
	score = clamp(score, -1, 1)
	alpha := clamp(weight, minWeight, maxWeight)
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	k := keyFor(c, value)
	it, ok := s.items[k]
	if !ok {
		// New items start from a neutral 0.0 baseline.
		it = &Item{Category: c, Value: strings.TrimSpace(value)}
		s.items[k] = it
	}
	it.Score = it.Score*(1-alpha) + score*alpha
	it.Occurrences++
	it.Confidence = math.Min(float64(it.Occurrences)/confidenceSamples, 1)
	it.LastUpdated = now

	s.appendHistory(Interaction{
		Category:  c,
		Value:     it.Value,
		Score:     score,
		Context:   context,
		Timestamp: now,
	})
	return *it
}

func (s *Store) appendHistory(in Interaction) {
	if len(s.history) == historyCapacity {
		copy(s.history, s.history[1:])
		s.history[len(s.history)-1] = in
		return
	}
	s.history = append(s.history, in)
}

// RecordExplicit records a stated like (+1) or dislike (-1) at full weight.
func (s *Store) RecordExplicit(c Category, value string, liked bool) Item {
	score := -1.0
	if liked {
		score = 1.0
	}
	return s.RecordWeighted(c, value, score, maxWeight, "explicit")
}

// RecordMealInteraction records score against every ingredient of a meal and,
// when known, its cuisine.
func (s *Store) RecordMealInteraction(ingredients []string, cuisine string, score float64) {
	for _, ing := range ingredients {
		if strings.TrimSpace(ing) == "" {
			continue
		}
		s.Record(Ingredients, ing, score, "meal")
	}
	if cuisine != "" {
		s.Record(Cuisines, cuisine, score, "meal")
	}
}

// InferFromMealPlan converts a plan completion rate in [0, 1] to a score in
// [-1, 1] and records it against the plan's ingredients.
func (s *Store) InferFromMealPlan(ingredients []string, completionRate float64) {
	score := (clamp(completionRate, 0, 1) - 0.5) * 2
	for _, ing := range ingredients {
		if strings.TrimSpace(ing) == "" {
			continue
		}
		s.Record(Ingredients, ing, score, "meal_plan")
	}
}

// Get returns the item for (category, value).
func (s *Store) Get(c Category, value string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[keyFor(c, value)]
	if !ok {
		return Item{}, false
	}
	return *it, true
}

// Top returns the highest-scoring confident items in a category.
// limit <= 0 uses the default of 5.
func (s *Store) Top(c Category, limit int) []Item {
	if limit <= 0 {
		limit = defaultTopLimit
	}
	out := s.filter(func(it *Item) bool {
		return it.Category == c && it.Confidence > minTopConfidence
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// RecentNegative returns disliked items updated within the last days,
// most negative first.
func (s *Store) RecentNegative(days int) []Item {
	cutoff := s.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)
	out := s.filter(func(it *Item) bool {
		return it.Score < 0 && it.LastUpdated.After(cutoff)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	return out
}

// History returns a copy of the recent interaction buffer, oldest first.
func (s *Store) History() []Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Interaction, len(s.history))
	copy(out, s.history)
	return out
}

// Items returns every item ordered by category then value.
func (s *Store) Items() []Item {
	out := s.filter(func(*Item) bool { return true })
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// Restore replaces the aggregated items, e.g. after loading from storage.
// The interaction history is not restored.
func (s *Store) Restore(items []Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[itemKey]*Item, len(items))
	for _, it := range items {
		cp := it
		s.items[keyFor(it.Category, it.Value)] = &cp
	}
}

func (s *Store) filter(keep func(*Item) bool) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Item
	for _, it := range s.items {
		if keep(it) {
			out = append(out, *it)
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
