package nutrition

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBMR_GenderBranch(t *testing.T) {
	male := 10*70.0 + 6.25*175 - 5*30 + 5
	female := 10*70.0 + 6.25*175 - 5*30 - 161

	for _, g := range []string{"male", "Male", "MALE", "mAlE"} {
		assert.Equal(t, male, BMR(70, 175, 30, g), "gender %q", g)
	}
	for _, g := range []string{"female", "", "Unspecified", "non-binary", " male", "males"} {
		assert.Equal(t, female, BMR(70, 175, 30, g), "gender %q", g)
	}
}

func TestComputeGoals_KnownValues(t *testing.T) {
	g := ComputeGoals(70, 177.8, 28, "female", ActivityModerate, GoalWeightLoss, PatternBalanced)

	// BMR 1510.25, TDEE x1.55, weight loss x0.8.
	assert.Equal(t, 1873, g.CalorieGoal)
	assert.Equal(t, g.CalorieGoal, g.Macros.Calories)
	assert.InDelta(t, 140.0, g.Macros.Protein, 1e-9)
	assert.Equal(t, 2.0, g.TargetProteinPerKg)

	remaining := 1510.25*1.55*0.8 - 140*4
	assert.InDelta(t, remaining*(2.0/3.0)/4, g.Macros.Carbs, 1e-9)
	assert.InDelta(t, remaining*(1.0/3.0)/9, g.Macros.Fat, 1e-9)
	assert.Equal(t, GoalWeightLoss, g.GoalType)
	assert.Equal(t, PatternBalanced, g.DietaryPattern)
	assert.False(t, g.Clamped)
}

func TestComputeGoals_CalorieInvariantAllCombinations(t *testing.T) {
	weights := []float64{45, 70.5, 120}
	heights := []float64{150, 177.8, 201}
	ages := []int{18, 45, 90}
	genders := []string{"male", "female"}

	for _, w := range weights {
		for _, h := range heights {
			for _, a := range ages {
				for _, gender := range genders {
					for _, act := range ActivityLevels {
						for _, goal := range GoalTypes {
							for _, pat := range DietaryPatterns {
								g := ComputeGoals(w, h, a, gender, act, goal, pat)
								sum := g.Macros.Protein*4 + g.Macros.Carbs*4 + g.Macros.Fat*9
								if math.Abs(float64(g.Macros.Calories)-math.Round(sum)) > 1 {
									t.Fatalf("calories %d != round(%v) for %v/%v/%d/%s/%s/%s/%s",
										g.Macros.Calories, sum, w, h, a, gender, act, goal, pat)
								}
								if g.CalorieGoal != g.Macros.Calories {
									t.Fatalf("CalorieGoal %d != Macros.Calories %d", g.CalorieGoal, g.Macros.Calories)
								}
								if g.Macros.Carbs < 0 || g.Macros.Fat < 0 {
									t.Fatalf("negative macros: %+v", g.Macros)
								}
							}
						}
					}
				}
			}
		}
	}
}

func TestComputeGoals_Deterministic(t *testing.T) {
	a := ComputeGoals(82.3, 181, 37, "male", ActivityActive, GoalAthletic, PatternPaleo)
	b := ComputeGoals(82.3, 181, 37, "male", ActivityActive, GoalAthletic, PatternPaleo)
	assert.Equal(t, a, b)
	assert.Equal(t, math.Float64bits(a.Macros.Carbs), math.Float64bits(b.Macros.Carbs))
}

func TestComputeGoals_ProteinIndependentOfPattern(t *testing.T) {
	for _, pat := range DietaryPatterns {
		g := ComputeGoals(80, 180, 30, "male", ActivityModerate, GoalMuscleGain, pat)
		assert.InDelta(t, 80*1.8, g.Macros.Protein, 1e-9, "pattern %s", pat)
	}
}

func TestComputeGoals_ClampsNegativeRemainder(t *testing.T) {
	// Short, old and sedentary with a weight-loss protein target: protein alone exceeds the target.
	g := ComputeGoals(120, 50, 119, "female", ActivitySedentary, GoalWeightLoss, PatternKeto)
	require.True(t, g.Clamped)
	assert.Zero(t, g.Macros.Carbs)
	assert.Zero(t, g.Macros.Fat)
	assert.Equal(t, int(math.Round(120*2.0*4)), g.CalorieGoal)
}

func TestComputeGoals_ZeroCarbFatSumDoesNotDivideByZero(t *testing.T) {
	orig := patternDistributions[PatternBalanced]
	patternDistributions[PatternBalanced] = Distribution{Protein: 1}
	t.Cleanup(func() { patternDistributions[PatternBalanced] = orig })

	g := ComputeGoals(70, 175, 30, "male", ActivityModerate, GoalMaintenance, PatternBalanced)
	assert.False(t, math.IsNaN(g.Macros.Carbs))
	assert.False(t, math.IsNaN(g.Macros.Fat))
	assert.InDelta(t, g.Macros.Carbs*4, g.Macros.Fat*9, 1e-6)
}

func TestPatternDistribution_VegetarianEqualsVegan(t *testing.T) {
	assert.Equal(t, PatternDistribution(PatternVegetarian), PatternDistribution(PatternVegan))
}

func TestTablesCoverEveryEnum(t *testing.T) {
	for _, a := range ActivityLevels {
		assert.NotZero(t, ActivityMultiplier(a), a)
		assert.NotEmpty(t, a.Label(), a)
	}
	for _, g := range GoalTypes {
		assert.NotZero(t, goalCalorieFactors[g], g)
		assert.NotZero(t, proteinPerKg[g], g)
		assert.NotEmpty(t, g.Description(), g)
	}
	for _, p := range DietaryPatterns {
		d := PatternDistribution(p)
		assert.InDelta(t, 1.0, d.Protein+d.Carbs+d.Fat, 1e-9, p)
	}
}

func TestComputeGoalsFor_Validation(t *testing.T) {
	valid := BiometricProfile{WeightKg: 70, HeightCm: 170, Age: 30, Gender: "female", ActivityLevel: ActivityLight}

	_, err := ComputeGoalsFor(valid, GoalMaintenance, PatternBalanced)
	require.NoError(t, err)

	missing := valid
	missing.Age = 0
	_, err = ComputeGoalsFor(missing, GoalMaintenance, PatternBalanced)
	assert.ErrorIs(t, err, ErrIncompleteProfile)

	noActivity := valid
	noActivity.ActivityLevel = ""
	_, err = ComputeGoalsFor(noActivity, GoalMaintenance, PatternBalanced)
	assert.ErrorIs(t, err, ErrIncompleteProfile)

	old := valid
	old.Age = 120
	_, err = ComputeGoalsFor(old, GoalMaintenance, PatternBalanced)
	assert.ErrorIs(t, err, ErrInvalidBiometrics)

	negative := valid
	negative.WeightKg = -1
	_, err = ComputeGoalsFor(negative, GoalMaintenance, PatternBalanced)
	assert.ErrorIs(t, err, ErrInvalidBiometrics)

	_, err = ComputeGoalsFor(valid, "bulk", PatternBalanced)
	assert.ErrorIs(t, err, ErrIncompleteProfile)
}

func TestCustomize_RecomputesCalories(t *testing.T) {
	orig := ComputeGoals(70, 175, 30, "male", ActivityModerate, GoalMaintenance, PatternBalanced)

	cases := []struct{ p, c, f float64 }{
		{150, 200, 60},
		{112.5, 250.25, 70.4},
		{0, 0, 0},
	}
	for _, tc := range cases {
		got := Customize(orig, tc.p, tc.c, tc.f)
		want := int(math.Round(tc.p*4 + tc.c*4 + tc.f*9))
		assert.Equal(t, want, got.CalorieGoal)
		assert.Equal(t, want, got.Macros.Calories)
		assert.Equal(t, tc.p, got.Macros.Protein)
		assert.Equal(t, orig.GoalType, got.GoalType)
		assert.Equal(t, orig.DietaryPattern, got.DietaryPattern)
	}
}

func TestSliderRange(t *testing.T) {
	lo, hi := SliderRange(100)
	assert.InDelta(t, 70, lo, 1e-9)
	assert.InDelta(t, 130, hi, 1e-9)
}

func TestParseEnums(t *testing.T) {
	a, err := ParseActivityLevel("veryActive")
	require.NoError(t, err)
	assert.Equal(t, ActivityVeryActive, a)

	g, err := ParseGoalType("muscle gain")
	require.NoError(t, err)
	assert.Equal(t, GoalMuscleGain, g)

	p, err := ParseDietaryPattern("Ketogenic")
	require.NoError(t, err)
	assert.Equal(t, PatternKeto, p)

	_, err = ParseDietaryPattern("carnivore")
	assert.Error(t, err)
}

func TestProgress_Status(t *testing.T) {
	assert.Equal(t, StatusOnTrack, Progress(95, 100).Status)
	assert.Equal(t, StatusOnTrack, Progress(130, 100).Status)
	assert.Equal(t, StatusReview, Progress(70, 100).Status)
	assert.Equal(t, StatusLow, Progress(69, 100).Status)
	assert.Equal(t, StatusLow, Progress(10, 0).Status)

	goals := ComputeGoals(70, 175, 30, "male", ActivityModerate, GoalMaintenance, PatternBalanced)
	dp := ProgressAgainst(goals.Macros, goals)
	assert.Equal(t, StatusOnTrack, dp.Calories.Status)
	assert.InDelta(t, 1.0, dp.Protein.Ratio, 1e-9)
}
