package assistant

import (
	"context"
	"fmt"

	"github.com/kalambet/preppal/internal/nutrition"
	"github.com/kalambet/preppal/internal/profile"
)

// CustomizeGoals replaces the user's macro targets with explicit grams and
// recomputes calories. The user must already have goals.
func (a *Assistant) CustomizeGoals(ctx context.Context, userID string, protein, carbs, fat float64) (nutrition.NutritionGoals, error) {
	if protein < 0 || carbs < 0 || fat < 0 {
		return nutrition.NutritionGoals{}, fmt.Errorf("%w: macro targets must not be negative", nutrition.ErrInvalidBiometrics)
	}
	p, err := a.profiles.Get(userID)
	if err != nil {
		return nutrition.NutritionGoals{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if p.NutritionGoals == nil {
		return nutrition.NutritionGoals{}, profile.ErrNoGoals
	}
	goals := nutrition.Customize(*p.NutritionGoals, protein, carbs, fat)
	if err := a.profiles.SetGoals(userID, goals); err != nil {
		return nutrition.NutritionGoals{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if err := a.SyncProfile(userID); err != nil {
		return goals, err
	}
	return goals, nil
}

// SyncProfile refreshes the critical context of a loaded session after the
// profile was changed outside the chat. Users without a loaded session pick
// the change up when their session is first loaded.
func (a *Assistant) SyncProfile(userID string) error {
	a.mu.Lock()
	s, ok := a.sessions[userID]
	a.mu.Unlock()
	if !ok {
		return nil
	}
	p, err := a.profiles.Get(userID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv.UpdateCriticalContext(p.DietaryRestrictions, p.Allergies, p.NutritionGoals)
	return nil
}
