package profile

import (
	"time"

	"github.com/kalambet/preppal/internal/nutrition"
)

// MaxProgressEntries caps the weekly progress log; the oldest entry is
// dropped when a new one would exceed it.
const MaxProgressEntries = 12

// Defaults used for a user that has never saved a profile.
const (
	DefaultWeightKg = 70
	DefaultHeightCm = 170
	DefaultAge      = 30
	DefaultGender   = "Unspecified"
)

// UserProfile is everything the assistant knows about the user's body,
// goals and stated restrictions.
type UserProfile struct {
	ID                  string                    `json:"id"`
	Name                string                    `json:"name,omitempty"`
	WeightKg            float64                   `json:"weightKg"`
	HeightCm            float64                   `json:"heightCm"`
	Age                 int                       `json:"age"`
	Gender              string                    `json:"gender"`
	ActivityLevel       nutrition.ActivityLevel   `json:"activityLevel"`
	NutritionGoals      *nutrition.NutritionGoals `json:"nutritionGoals,omitempty"`
	DietaryRestrictions []string                  `json:"dietaryRestrictions,omitempty"`
	Allergies           []string                  `json:"allergies,omitempty"`
	DislikedIngredients []string                  `json:"dislikedIngredients,omitempty"`
	FavoriteIngredients []string                  `json:"favoriteIngredients,omitempty"`
	GoalUpdateDate      time.Time                 `json:"goalUpdateDate,omitzero"`
	WeeklyProgressLog   []WeeklyProgress          `json:"weeklyProgressLog,omitempty"`
}

// WeeklyProgress is one week's averaged intake and outcome.
type WeeklyProgress struct {
	Date           time.Time `json:"date"`
	AvgCalories    float64   `json:"avgCalories"`
	AvgProtein     float64   `json:"avgProtein"`
	AvgCarbs       float64   `json:"avgCarbs"`
	AvgFat         float64   `json:"avgFat"`
	WeightChange   float64   `json:"weightChange"`
	CompletionRate float64   `json:"completionRate"`
	Notes          string    `json:"notes,omitempty"`
}

// Default returns the profile of a user that has never saved one.
func Default(userID string) UserProfile {
	return UserProfile{
		ID:            userID,
		WeightKg:      DefaultWeightKg,
		HeightCm:      DefaultHeightCm,
		Age:           DefaultAge,
		Gender:        DefaultGender,
		ActivityLevel: nutrition.ActivityModerate,
	}
}

// Biometrics returns the calculator input for p.
func (p UserProfile) Biometrics() nutrition.BiometricProfile {
	return nutrition.BiometricProfile{
		WeightKg:      p.WeightKg,
		HeightCm:      p.HeightCm,
		Age:           p.Age,
		Gender:        p.Gender,
		ActivityLevel: p.ActivityLevel,
	}
}

// BiometricsUpdate carries optional changes for UpdateBiometrics. Nil fields
// are left untouched.
type BiometricsUpdate struct {
	WeightKg      *float64                 `json:"weightKg,omitempty"`
	HeightCm      *float64                 `json:"heightCm,omitempty"`
	Age           *int                     `json:"age,omitempty"`
	Gender        *string                  `json:"gender,omitempty"`
	ActivityLevel *nutrition.ActivityLevel `json:"activityLevel,omitempty"`
}

// IsZero reports whether u changes nothing.
func (u BiometricsUpdate) IsZero() bool {
	return u.WeightKg == nil && u.HeightCm == nil && u.Age == nil && u.Gender == nil && u.ActivityLevel == nil
}

// RestrictionsUpdate carries optional list replacements for
// UpdateRestrictions. Nil fields are left untouched.
type RestrictionsUpdate struct {
	DietaryRestrictions []string `json:"dietaryRestrictions,omitempty"`
	Allergies           []string `json:"allergies,omitempty"`
	Disliked            []string `json:"disliked,omitempty"`
	Favorites           []string `json:"favorites,omitempty"`
}
