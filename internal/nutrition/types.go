package nutrition

import (
	"fmt"
	"strings"
	"time"
)

// ActivityLevel describes how physically active the user is.
type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "veryActive"
)

// ActivityLevels lists every level in display order.
var ActivityLevels = []ActivityLevel{
	ActivitySedentary, ActivityLight, ActivityModerate, ActivityActive, ActivityVeryActive,
}

var activityLabels = map[ActivityLevel]string{
	ActivitySedentary:  "Sedentary (little or no exercise)",
	ActivityLight:      "Lightly active (light exercise 1-3 days/week)",
	ActivityModerate:   "Moderately active (moderate exercise 3-5 days/week)",
	ActivityActive:     "Active (hard exercise 6-7 days/week)",
	ActivityVeryActive: "Very active (hard daily exercise & physical job)",
}

// Label returns the user-facing description of the level.
func (a ActivityLevel) Label() string { return activityLabels[a] }

// Valid reports whether a is a known level.
func (a ActivityLevel) Valid() bool {
	_, ok := activityLabels[a]
	return ok
}

// GoalType is the user's primary nutrition objective.
type GoalType string

const (
	GoalWeightLoss  GoalType = "weightLoss"
	GoalMaintenance GoalType = "maintenance"
	GoalMuscleGain  GoalType = "muscleGain"
	GoalAthletic    GoalType = "athletic"
	GoalCustom      GoalType = "custom"
)

// GoalTypes lists every goal type in display order.
var GoalTypes = []GoalType{
	GoalWeightLoss, GoalMaintenance, GoalMuscleGain, GoalAthletic, GoalCustom,
}

var goalLabels = map[GoalType]string{
	GoalWeightLoss:  "Weight Loss",
	GoalMaintenance: "Maintenance",
	GoalMuscleGain:  "Muscle Gain",
	GoalAthletic:    "Athletic Performance",
	GoalCustom:      "Custom",
}

var goalDescriptions = map[GoalType]string{
	GoalWeightLoss:  "Reduce body fat while preserving muscle",
	GoalMaintenance: "Maintain current weight and body composition",
	GoalMuscleGain:  "Build muscle with a slight calorie surplus",
	GoalAthletic:    "Fuel training and recovery for performance",
	GoalCustom:      "Set your own calorie and macro targets",
}

func (g GoalType) Label() string       { return goalLabels[g] }
func (g GoalType) Description() string { return goalDescriptions[g] }

func (g GoalType) Valid() bool {
	_, ok := goalLabels[g]
	return ok
}

// DietaryPattern selects how non-protein calories are split.
type DietaryPattern string

const (
	PatternBalanced      DietaryPattern = "balanced"
	PatternLowCarb       DietaryPattern = "lowCarb"
	PatternKeto          DietaryPattern = "keto"
	PatternHighProtein   DietaryPattern = "highProtein"
	PatternVegetarian    DietaryPattern = "vegetarian"
	PatternVegan         DietaryPattern = "vegan"
	PatternPaleo         DietaryPattern = "paleo"
	PatternMediterranean DietaryPattern = "mediterranean"
)

// DietaryPatterns lists every pattern in display order.
var DietaryPatterns = []DietaryPattern{
	PatternBalanced, PatternLowCarb, PatternKeto, PatternHighProtein,
	PatternVegetarian, PatternVegan, PatternPaleo, PatternMediterranean,
}

var patternLabels = map[DietaryPattern]string{
	PatternBalanced:      "Balanced",
	PatternLowCarb:       "Low Carb",
	PatternKeto:          "Ketogenic",
	PatternHighProtein:   "High Protein",
	PatternVegetarian:    "Vegetarian",
	PatternVegan:         "Vegan",
	PatternPaleo:         "Paleo",
	PatternMediterranean: "Mediterranean",
}

func (p DietaryPattern) Label() string { return patternLabels[p] }

func (p DietaryPattern) Valid() bool {
	_, ok := patternLabels[p]
	return ok
}

// ParseActivityLevel accepts either the identifier ("moderate") or the label.
func ParseActivityLevel(s string) (ActivityLevel, error) {
	for _, a := range ActivityLevels {
		if strings.EqualFold(s, string(a)) || strings.EqualFold(s, a.Label()) {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown activity level %q", s)
}

// ParseGoalType accepts either the identifier ("weightLoss") or the label.
func ParseGoalType(s string) (GoalType, error) {
	for _, g := range GoalTypes {
		if strings.EqualFold(s, string(g)) || strings.EqualFold(s, g.Label()) {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown goal type %q", s)
}

// ParseDietaryPattern accepts either the identifier ("lowCarb") or the label.
func ParseDietaryPattern(s string) (DietaryPattern, error) {
	for _, p := range DietaryPatterns {
		if strings.EqualFold(s, string(p)) || strings.EqualFold(s, p.Label()) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown dietary pattern %q", s)
}

// Macros holds daily gram targets and the calories they add up to.
type Macros struct {
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Calories int     `json:"calories"`
}

// NutritionGoals is the output of the calculator.
type NutritionGoals struct {
	Macros             Macros         `json:"macros"`
	CalorieGoal        int            `json:"calorieGoal"`
	TargetProteinPerKg float64        `json:"targetProteinPerKg"`
	TargetCarbs        float64        `json:"targetCarbs"`
	TargetFat          float64        `json:"targetFat"`
	GoalType           GoalType       `json:"goalType"`
	DietaryPattern     DietaryPattern `json:"dietaryPattern"`
	// Clamped is set when protein alone exceeded the calorie target and
	// carbs/fat were floored at zero.
	Clamped   bool      `json:"clamped,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// BiometricProfile is the calculator input describing the user's body.
type BiometricProfile struct {
	WeightKg      float64       `json:"weightKg"`
	HeightCm      float64       `json:"heightCm"`
	Age           int           `json:"age"`
	Gender        string        `json:"gender"`
	ActivityLevel ActivityLevel `json:"activityLevel"`
}
