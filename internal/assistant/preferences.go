package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kalambet/preppal/internal/jobs"
	"github.com/kalambet/preppal/internal/preference"
	"github.com/kalambet/preppal/internal/storage"
)

// ErrNoCompletion is returned when inferring from a plan that has no
// completion feedback yet.
var ErrNoCompletion = errors.New("meal plan has no completion rate")

// RecordPreference records an explicit like or dislike. Allergies are also
// added to the profile and the critical context.
func (a *Assistant) RecordPreference(ctx context.Context, userID string, c preference.Category, value string, liked bool) (preference.Item, error) {
	if !c.Valid() {
		return preference.Item{}, fmt.Errorf("unknown preference category %q", c)
	}
	if value == "" {
		return preference.Item{}, errors.New("preference value is required")
	}
	s, err := a.session(ctx, userID)
	if err != nil {
		return preference.Item{}, err
	}
	return a.recordPreference(s, c, value, liked)
}

func (a *Assistant) recordPreference(s *Session, c preference.Category, value string, liked bool) (preference.Item, error) {
	s.mu.Lock()
	item := s.prefs.RecordExplicit(c, value, liked)
	items := s.prefs.Items()
	s.mu.Unlock()

	if c == preference.Allergies && liked {
		p, err := a.profiles.AddAllergy(s.userID, value)
		if err != nil {
			return item, fmt.Errorf("%w: %w", ErrUpstream, err)
		}
		s.mu.Lock()
		crit := s.conv.CriticalContext()
		s.conv.UpdateCriticalContext(p.DietaryRestrictions, p.Allergies, crit.Goals)
		s.mu.Unlock()
	}
	if err := a.persistPreferences(s.userID, items); err != nil {
		return item, err
	}
	return item, nil
}

// TopPreferences returns the strongest confident items of a category.
func (a *Assistant) TopPreferences(ctx context.Context, userID string, c preference.Category, limit int) ([]preference.Item, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("unknown preference category %q", c)
	}
	s, err := a.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.prefs.Top(c, limit), nil
}

// Preferences returns every learned item of the user.
func (a *Assistant) Preferences(ctx context.Context, userID string) ([]preference.Item, error) {
	s, err := a.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.prefs.Items(), nil
}

// RecordFeedback stores how much of a plan the user followed and queues
// preference inference from it.
func (a *Assistant) RecordFeedback(ctx context.Context, userID, planID string, rate float64) error {
	if err := a.plans.SetCompletion(userID, planID, rate); err != nil {
		return err
	}
	job, err := jobs.NewInferPreferencesJob(userID, planID)
	if err != nil {
		return err
	}
	if err := a.store.EnqueueJob(job); err != nil {
		return fmt.Errorf("%w: enqueueing preference inference: %w", ErrUpstream, err)
	}
	slog.Debug("queued preference inference", "user", userID, "plan", planID, "job_id", job.ID)
	return nil
}

// InferFromMealPlan scores the ingredients of a plan by how much of it the
// user followed and persists the result.
func (a *Assistant) InferFromMealPlan(ctx context.Context, userID, planID string) error {
	plan, err := a.plans.Get(userID, planID)
	if err != nil {
		return err
	}
	if plan.CompletionRate == nil {
		return ErrNoCompletion
	}
	s, err := a.session(ctx, userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.prefs.InferFromMealPlan(plan.Ingredients(), *plan.CompletionRate)
	items := s.prefs.Items()
	s.mu.Unlock()

	return a.persistPreferences(userID, items)
}

func (a *Assistant) persistPreferences(userID string, items []preference.Item) error {
	if err := a.store.SavePreferences(userID, toRecords(userID, items)); err != nil {
		return fmt.Errorf("%w: saving preferences: %w", ErrUpstream, err)
	}
	return nil
}

func toRecords(userID string, items []preference.Item) []storage.PreferenceRecord {
	recs := make([]storage.PreferenceRecord, len(items))
	for i, it := range items {
		recs[i] = storage.PreferenceRecord{
			UserID:      userID,
			Category:    string(it.Category),
			Value:       it.Value,
			Score:       it.Score,
			Confidence:  it.Confidence,
			Occurrences: it.Occurrences,
			LastUpdated: it.LastUpdated,
		}
	}
	return recs
}

func fromRecords(recs []storage.PreferenceRecord) []preference.Item {
	items := make([]preference.Item, 0, len(recs))
	for _, r := range recs {
		c, err := preference.ParseCategory(r.Category)
		if err != nil {
			slog.Warn("skipping stored preference", "value", r.Value, "error", err)
			continue
		}
		items = append(items, preference.Item{
			Category:    c,
			Value:       r.Value,
			Score:       r.Score,
			Confidence:  r.Confidence,
			Occurrences: r.Occurrences,
			LastUpdated: r.LastUpdated,
		})
	}
	return items
}
