// Package assistant routes chat messages through the goal-setting dialogue,
// the local intent handlers and the LLM, and owns one session of core state
// per user.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/preppal/internal/conversation"
	"github.com/kalambet/preppal/internal/dialogue"
	"github.com/kalambet/preppal/internal/intent"
	"github.com/kalambet/preppal/internal/mealplan"
	"github.com/kalambet/preppal/internal/nutrition"
	"github.com/kalambet/preppal/internal/preference"
	"github.com/kalambet/preppal/internal/profile"
	"github.com/kalambet/preppal/internal/proxy"
	"github.com/kalambet/preppal/internal/storage"
)

var (
	// ErrUpstream wraps a failed LLM or persistence call. The session is
	// left as it was before the message.
	ErrUpstream = errors.New("upstream request failed")
	// ErrStaleResponse is returned when the session rolled over while the
	// LLM was answering; the answer is discarded.
	ErrStaleResponse = errors.New("response arrived for a session that is no longer active")
	// ErrEmptyMessage is returned for blank chat input.
	ErrEmptyMessage = errors.New("message is empty")
)

const (
	archivedSessionsLoaded = 20
	recentPlansInContext   = 3
	contextMessageWindow   = 5
	classifierHistory      = 4
)

// LLM produces assistant replies. proxy.Client implements it.
type LLM interface {
	Complete(ctx context.Context, req proxy.LLMRequest) (proxy.LLMResponse, error)
}

// Profiles is the profile persistence the assistant needs.
// profile.Manager implements it.
type Profiles interface {
	Get(userID string) (profile.UserProfile, error)
	ApplyGoals(userID string, b nutrition.BiometricProfile, goals nutrition.NutritionGoals) error
	SetGoals(userID string, goals nutrition.NutritionGoals) error
	AddAllergy(userID, allergy string) (profile.UserProfile, error)
}

// MealPlans is the meal-plan persistence the assistant needs.
// mealplan.Service implements it.
type MealPlans interface {
	Save(plan mealplan.WeeklyMealPlan) (mealplan.WeeklyMealPlan, error)
	Get(userID, id string) (mealplan.WeeklyMealPlan, error)
	Recent(userID string, limit int) ([]mealplan.WeeklyMealPlan, error)
	SetCompletion(userID, id string, rate float64) error
}

// Store is the rest of the persistence layer. storage.Store implements it.
type Store interface {
	conversation.Archiver
	ListArchivedSessions(userID string, limit int) ([]storage.SessionRecord, error)
	SavePreferences(userID string, recs []storage.PreferenceRecord) error
	ListPreferences(userID string) ([]storage.PreferenceRecord, error)
	EnqueueJob(job storage.Job) error
}

// historyClassifier is implemented by classifiers that use recent messages.
type historyClassifier interface {
	ClassifyWithHistory(ctx context.Context, text string, history []proxy.ChatMessage) intent.Intent
}

// Assistant serves many users. Each user's core state lives in a Session
// guarded by its own mutex; external calls run without holding it.
type Assistant struct {
	llm        LLM
	classifier intent.Classifier
	profiles   Profiles
	plans      MealPlans
	store      Store

	maxTokens       int
	weightThreshold float64
	triggers        *preference.Triggers

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithClassifier replaces the keyword intent classifier.
func WithClassifier(c intent.Classifier) Option {
	return func(a *Assistant) { a.classifier = c }
}

// WithMaxTokens sets the conversation token budget.
func WithMaxTokens(n int) Option {
	return func(a *Assistant) { a.maxTokens = n }
}

// WithWeightUnitThreshold sets the pounds/kilograms cutoff of the dialogue.
func WithWeightUnitThreshold(t float64) Option {
	return func(a *Assistant) { a.weightThreshold = t }
}

// WithTriggers sets the keyword table used to pick relevant preferences.
func WithTriggers(t preference.Triggers) Option {
	return func(a *Assistant) { a.triggers = &t }
}

// New creates an Assistant.
func New(llm LLM, profiles Profiles, plans MealPlans, store Store, opts ...Option) *Assistant {
	a := &Assistant{
		llm:        llm,
		classifier: intent.KeywordClassifier{},
		profiles:   profiles,
		plans:      plans,
		store:      store,
		sessions:   make(map[string]*Session),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Session is the core state of one user: conversation context, learned
// preferences and the goal-setting dialogue.
type Session struct {
	userID string

	mu       sync.Mutex
	conv     *conversation.Manager
	prefs    *preference.Store
	dialogue *dialogue.Machine
}

// session returns the user's session, loading it from storage on first use.
func (a *Assistant) session(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	a.mu.Lock()
	s, ok := a.sessions[userID]
	a.mu.Unlock()
	if ok {
		return s, nil
	}

	s, err := a.loadSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.sessions[userID]; ok {
		return existing, nil
	}
	a.sessions[userID] = s
	return s, nil
}

func (a *Assistant) loadSession(ctx context.Context, userID string) (*Session, error) {
	var (
		archived []conversation.Session
		items    []preference.Item
		p        profile.UserProfile
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := a.store.ListArchivedSessions(userID, archivedSessionsLoaded)
		if err != nil {
			return fmt.Errorf("loading archived sessions: %w", err)
		}
		archived, err = conversation.DecodeSessions(recs)
		return err
	})
	g.Go(func() error {
		recs, err := a.store.ListPreferences(userID)
		if err != nil {
			return fmt.Errorf("loading preferences: %w", err)
		}
		items = fromRecords(recs)
		return nil
	})
	g.Go(func() error {
		var err error
		p, err = a.profiles.Get(userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	prefOpts := []preference.Option{}
	if a.triggers != nil {
		prefOpts = append(prefOpts, preference.WithTriggers(*a.triggers))
	}
	prefs := preference.NewStore(prefOpts...)
	prefs.Restore(items)

	conv := conversation.NewManager(userID,
		conversation.WithMaxTokens(a.maxTokens),
		conversation.WithArchiver(a.store),
		conversation.WithArchived(archived),
	)
	conv.UpdateCriticalContext(p.DietaryRestrictions, p.Allergies, p.NutritionGoals)

	saver := dialogue.SaverFunc(func(b nutrition.BiometricProfile, goals nutrition.NutritionGoals) error {
		return a.profiles.ApplyGoals(userID, b, goals)
	})
	machine := dialogue.New(dialogue.WithSaver(saver), dialogue.WithWeightUnitThreshold(a.weightThreshold))

	return &Session{userID: userID, conv: conv, prefs: prefs, dialogue: machine}, nil
}

// StartNewSession archives the user's active conversation and opens a new
// one seeded with the critical context. It returns the new session ID.
func (a *Assistant) StartNewSession(ctx context.Context, userID string) (string, error) {
	s, err := a.session(ctx, userID)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conv.StartNewSession(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return s.conv.ActiveSessionID(), nil
}

// Conversation returns a copy of the user's active session.
func (a *Assistant) Conversation(ctx context.Context, userID string) (conversation.Session, error) {
	s, err := a.session(ctx, userID)
	if err != nil {
		return conversation.Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Current(), nil
}

// SearchContext searches the user's archived sessions.
func (a *Assistant) SearchContext(ctx context.Context, userID, query string) ([]conversation.Message, error) {
	s, err := a.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.SearchPreviousContext(query), nil
}

// DialogueState reports where the user is in the goal-setting dialogue.
func (a *Assistant) DialogueState(ctx context.Context, userID string) (dialogue.State, error) {
	s, err := a.session(ctx, userID)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialogue.State(), nil
}
