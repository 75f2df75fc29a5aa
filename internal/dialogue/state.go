package dialogue

import "github.com/kalambet/preppal/internal/nutrition"

// State is a step of the goal-setting conversation.
type State string

const (
	StateInitial              State = "initial"
	StateAskingHeight         State = "askingHeight"
	StateAskingWeight         State = "askingWeight"
	StateAskingAge            State = "askingAge"
	StateAskingGender         State = "askingGender"
	StateAskingActivityLevel  State = "askingActivityLevel"
	StateAskingGoalType       State = "askingGoalType"
	StateAskingDietaryPattern State = "askingDietaryPattern"
	StateConfirmingGoals      State = "confirmingGoals"
	StateCompleted            State = "completed"
)

// Answers accumulates what the user has told us so far. Zero values mean
// "not answered yet".
type Answers struct {
	HeightCm       float64                  `json:"heightCm,omitempty"`
	WeightKg       float64                  `json:"weightKg,omitempty"`
	Age            int                      `json:"age,omitempty"`
	Gender         string                   `json:"gender,omitempty"`
	ActivityLevel  nutrition.ActivityLevel  `json:"activityLevel,omitempty"`
	GoalType       nutrition.GoalType       `json:"goalType,omitempty"`
	DietaryPattern nutrition.DietaryPattern `json:"dietaryPattern,omitempty"`
}

// Biometrics returns the biometric part of the answers.
func (a Answers) Biometrics() nutrition.BiometricProfile {
	return nutrition.BiometricProfile{
		WeightKg:      a.WeightKg,
		HeightCm:      a.HeightCm,
		Age:           a.Age,
		Gender:        a.Gender,
		ActivityLevel: a.ActivityLevel,
	}
}

// field names a single answer the user can go back and change.
type field string

const (
	fieldHeight   field = "height"
	fieldWeight   field = "weight"
	fieldAge      field = "age"
	fieldGender   field = "gender"
	fieldActivity field = "activity level"
	fieldGoal     field = "goal"
	fieldDiet     field = "dietary pattern"
)

// adjustable lists fields in the order they are offered for adjustment.
var adjustable = []field{fieldHeight, fieldWeight, fieldAge, fieldGender, fieldActivity, fieldGoal, fieldDiet}

var fieldStates = map[field]State{
	fieldHeight:   StateAskingHeight,
	fieldWeight:   StateAskingWeight,
	fieldAge:      StateAskingAge,
	fieldGender:   StateAskingGender,
	fieldActivity: StateAskingActivityLevel,
	fieldGoal:     StateAskingGoalType,
	fieldDiet:     StateAskingDietaryPattern,
}
