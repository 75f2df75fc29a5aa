package nutrition

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	kcalPerGramProtein = 4
	kcalPerGramCarbs   = 4
	kcalPerGramFat     = 9
)

var (
	// ErrIncompleteProfile is returned when a required biometric field is missing.
	ErrIncompleteProfile = errors.New("incomplete biometric profile")
	// ErrInvalidBiometrics is returned when a biometric value is out of range.
	ErrInvalidBiometrics = errors.New("invalid biometric value")
)

var activityMultipliers = map[ActivityLevel]float64{
	ActivitySedentary:  1.2,
	ActivityLight:      1.375,
	ActivityModerate:   1.55,
	ActivityActive:     1.725,
	ActivityVeryActive: 1.9,
}

var goalCalorieFactors = map[GoalType]float64{
	GoalWeightLoss:  0.8,
	GoalMaintenance: 1.0,
	GoalMuscleGain:  1.1,
	GoalAthletic:    1.15,
	GoalCustom:      1.0,
}

var proteinPerKg = map[GoalType]float64{
	GoalWeightLoss:  2.0,
	GoalMaintenance: 1.6,
	GoalMuscleGain:  1.8,
	GoalAthletic:    2.2,
	GoalCustom:      1.6,
}

// Distribution is a (protein, carbs, fat) share of daily calories.
type Distribution struct {
	Protein float64
	Carbs   float64
	Fat     float64
}

// Vegetarian and vegan intentionally share one distribution.
var patternDistributions = map[DietaryPattern]Distribution{
	PatternBalanced:      {0.25, 0.50, 0.25},
	PatternLowCarb:       {0.30, 0.30, 0.40},
	PatternKeto:          {0.25, 0.05, 0.70},
	PatternHighProtein:   {0.40, 0.40, 0.20},
	PatternVegetarian:    {0.20, 0.60, 0.20},
	PatternVegan:         {0.20, 0.60, 0.20},
	PatternPaleo:         {0.30, 0.25, 0.45},
	PatternMediterranean: {0.25, 0.45, 0.30},
}

// ActivityMultiplier returns the TDEE multiplier for a.
func ActivityMultiplier(a ActivityLevel) float64 { return activityMultipliers[a] }

// PatternDistribution returns the calorie distribution for p.
func PatternDistribution(p DietaryPattern) Distribution { return patternDistributions[p] }

// BMR computes basal metabolic rate with the Mifflin-St Jeor equation.
// Only "male" (any case) selects the male branch.
func BMR(weightKg, heightCm float64, age int, gender string) float64 {
	base := 10*weightKg + 6.25*heightCm - 5*float64(age)
	if strings.EqualFold(gender, "male") {
		return base + 5
	}
	return base - 161
}

// ComputeGoals derives calorie and macro targets. It does no validation:
// callers are expected to have checked ranges (see ComputeGoalsFor).
func ComputeGoals(weightKg, heightCm float64, age int, gender string, activity ActivityLevel, goal GoalType, pattern DietaryPattern) NutritionGoals {
	tdee := BMR(weightKg, heightCm, age, gender) * activityMultipliers[activity]
	adjusted := tdee * goalCalorieFactors[goal]

	perKg := proteinPerKg[goal]
	protein := weightKg * perKg

	remaining := adjusted - protein*kcalPerGramProtein
	clamped := false
	if remaining < 0 {
		remaining = 0
		clamped = true
	}

	dist := patternDistributions[pattern]
	carbsShare := 0.5
	if sum := dist.Carbs + dist.Fat; sum > 0 {
		carbsShare = dist.Carbs / sum
	}
	carbs := remaining * carbsShare / kcalPerGramCarbs
	fat := remaining * (1 - carbsShare) / kcalPerGramFat

	calories := caloriesFor(protein, carbs, fat)
	return NutritionGoals{
		Macros: Macros{
			Protein:  protein,
			Carbs:    carbs,
			Fat:      fat,
			Calories: calories,
		},
		CalorieGoal:        calories,
		TargetProteinPerKg: perKg,
		TargetCarbs:        carbs,
		TargetFat:          fat,
		GoalType:           goal,
		DietaryPattern:     pattern,
		Clamped:            clamped,
	}
}

// ComputeGoalsFor validates the profile and then computes goals.
func ComputeGoalsFor(b BiometricProfile, goal GoalType, pattern DietaryPattern) (NutritionGoals, error) {
	if err := Validate(b); err != nil {
		return NutritionGoals{}, err
	}
	if !goal.Valid() {
		return NutritionGoals{}, fmt.Errorf("%w: goal type %q", ErrIncompleteProfile, goal)
	}
	if !pattern.Valid() {
		return NutritionGoals{}, fmt.Errorf("%w: dietary pattern %q", ErrIncompleteProfile, pattern)
	}
	return ComputeGoals(b.WeightKg, b.HeightCm, b.Age, b.Gender, b.ActivityLevel, goal, pattern), nil
}

// Validate checks that every biometric field is present and in range.
func Validate(b BiometricProfile) error {
	switch {
	case b.WeightKg == 0 || b.HeightCm == 0 || b.Age == 0:
		return fmt.Errorf("%w: weight, height and age are required", ErrIncompleteProfile)
	case !b.ActivityLevel.Valid():
		return fmt.Errorf("%w: activity level %q", ErrIncompleteProfile, b.ActivityLevel)
	case b.WeightKg < 0 || math.IsNaN(b.WeightKg):
		return fmt.Errorf("%w: weight %v", ErrInvalidBiometrics, b.WeightKg)
	case b.HeightCm < 0 || math.IsNaN(b.HeightCm):
		return fmt.Errorf("%w: height %v", ErrInvalidBiometrics, b.HeightCm)
	case b.Age < 0 || b.Age >= 120:
		return fmt.Errorf("%w: age %d", ErrInvalidBiometrics, b.Age)
	}
	return nil
}

// Customize applies slider-adjusted macro grams to goals. Calories are always
// recomputed from the new grams.
func Customize(goals NutritionGoals, protein, carbs, fat float64) NutritionGoals {
	calories := caloriesFor(protein, carbs, fat)
	out := goals
	out.Macros = Macros{Protein: protein, Carbs: carbs, Fat: fat, Calories: calories}
	out.CalorieGoal = calories
	out.TargetCarbs = carbs
	out.TargetFat = fat
	out.Clamped = false
	out.UpdatedAt = time.Now().UTC()
	return out
}

// SliderRange returns the allowed customization range around target.
func SliderRange(target float64) (lo, hi float64) {
	return target * 0.7, target * 1.3
}

func caloriesFor(protein, carbs, fat float64) int {
	return int(math.Round(protein*kcalPerGramProtein + carbs*kcalPerGramCarbs + fat*kcalPerGramFat))
}
