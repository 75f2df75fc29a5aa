package dialogue

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/preppal/internal/nutrition"
)

func TestParseWeight(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"70kg", 70, true},
		{"70 kg", 70, true},
		{"I weigh 82.5 kilograms", 82.5, true},
		{"154 lbs", 154 * kgPerPound, true},
		{"180 pounds", 180 * kgPerPound, true},
		{"150", 150, true},
		{"199.9", 199.9, true},
		{"200", 200 * kgPerPound, true},
		{"250", 250 * kgPerPound, true},
		{"heavy", 0, false},
		{"0", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseWeight(tt.in, DefaultWeightUnitThreshold)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseWeight_ConfigurableThreshold(t *testing.T) {
	got, ok := ParseWeight("150", 100)
	require.True(t, ok)
	assert.InDelta(t, 150*kgPerPound, got, 1e-9)
}

func TestParseHeight(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"170 cm", 170, true},
		{"I'm 182.5cm tall", 182.5, true},
		{`5'10"`, 177.8, true},
		{"5'10", 177.8, true},
		{"5 feet 10 inches", 177.8, true},
		{"5 ft and 4 in", 5*cmPerFoot + 4*cmPerInch, true},
		{"6 feet", 6 * cmPerFoot, true},
		{"tall", 0, false},
		{"170", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseHeight(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 0.01)
		})
	}
}

func TestParseAge(t *testing.T) {
	age, ok := ParseAge("I'm 28 years old")
	assert.True(t, ok)
	assert.Equal(t, 28, age)

	for _, in := range []string{"0", "120", "old", "150 and 30"} {
		_, ok := ParseAge(in)
		assert.False(t, ok, in)
	}
}

func TestMatchEnums(t *testing.T) {
	a, ok := MatchActivityLevel("moderately active")
	require.True(t, ok)
	assert.Equal(t, nutrition.ActivityModerate, a)

	// Label containment runs in declaration order, so "active" hits light first.
	a, ok = MatchActivityLevel("active")
	require.True(t, ok)
	assert.Equal(t, nutrition.ActivityLight, a)

	for _, text := range []string{"I'm very active", "i am very active these days", "veryActive"} {
		a, ok = MatchActivityLevel(text)
		require.True(t, ok, text)
		assert.Equal(t, nutrition.ActivityVeryActive, a, text)
	}

	g, ok := MatchGoalType("Weight Loss")
	require.True(t, ok)
	assert.Equal(t, nutrition.GoalWeightLoss, g)

	g, ok = MatchGoalType("I want muscle gain please")
	require.True(t, ok)
	assert.Equal(t, nutrition.GoalMuscleGain, g)

	p, ok := MatchDietaryPattern("keto")
	require.True(t, ok)
	assert.Equal(t, nutrition.PatternKeto, p)

	_, ok = MatchDietaryPattern("   ")
	assert.False(t, ok)
	_, ok = MatchGoalType("something else entirely")
	assert.False(t, ok)
}

type saverStub struct {
	bio   nutrition.BiometricProfile
	goals nutrition.NutritionGoals
	calls int
	err   error
}

func (s *saverStub) SaveGoals(b nutrition.BiometricProfile, g nutrition.NutritionGoals) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.bio, s.goals = b, g
	return nil
}

var happyPath = []string{"5 feet 10 inches", "70 kg", "28", "female", "moderately active", "weight loss", "balanced"}

func feed(t *testing.T, m *Machine, inputs ...string) []string {
	t.Helper()
	var out []string
	for _, in := range inputs {
		msgs, err := m.ProcessInput(in)
		require.NoError(t, err, in)
		out = append(out, msgs...)
	}
	return out
}

func TestMachine_HappyPathReachesCompleted(t *testing.T) {
	saver := &saverStub{}
	m := New(WithSaver(saver))
	assert.Equal(t, StateInitial, m.State())

	out := feed(t, m, happyPath...)
	assert.Equal(t, StateConfirmingGoals, m.State())
	assert.Equal(t, msgIntro, out[0])
	assert.Contains(t, out[len(out)-1], "This is optimized for Weight Loss with a Balanced approach.")

	out = feed(t, m, "yes")
	assert.Equal(t, []string{msgCompleted}, out)
	assert.Equal(t, StateCompleted, m.State())

	goals, ok := m.Goals()
	require.True(t, ok)
	assert.Equal(t, nutrition.GoalWeightLoss, goals.GoalType)
	assert.Equal(t, nutrition.PatternBalanced, goals.DietaryPattern)

	require.Equal(t, 1, saver.calls)
	assert.InDelta(t, 177.8, saver.bio.HeightCm, 0.01)
	assert.Equal(t, 70.0, saver.bio.WeightKg)
	assert.Equal(t, 28, saver.bio.Age)
	assert.Equal(t, "female", saver.bio.Gender)
	assert.Equal(t, nutrition.ActivityModerate, saver.bio.ActivityLevel)
	assert.Equal(t, goals, saver.goals)
	assert.Equal(t, Answers{}, m.Answers(), "answers are discarded on completion")
}

func TestMachine_StepByStepPrompts(t *testing.T) {
	m := New()
	assert.Equal(t, []string{msgIntro}, m.Start())
	assert.Nil(t, m.Start(), "Start is a no-op once running")

	assert.Equal(t, []string{msgAskWeight}, feed(t, m, "170 cm"))
	assert.Equal(t, []string{msgAskAge}, feed(t, m, "154 lbs"))
	assert.Equal(t, []string{msgAskGender}, feed(t, m, "40"))

	out := feed(t, m, "male")
	require.Len(t, out, 2)
	assert.Equal(t, msgAskActivity, out[0])
	assert.True(t, strings.HasPrefix(out[1], "• Sedentary (little or no exercise)\n"))

	out = feed(t, m, "sedentary")
	require.Len(t, out, 2)
	assert.Contains(t, out[1], "• Weight Loss: ")

	out = feed(t, m, "maintenance")
	require.Len(t, out, 2)
	assert.Contains(t, out[1], "• Ketogenic")

	out = feed(t, m, "mediterranean")
	require.Len(t, out, 1)
	assert.True(t, strings.HasPrefix(out[0], "Based on your information, here's what I recommend:\n\nDaily Calories: "))
	assert.Equal(t, StateConfirmingGoals, m.State())
}

func TestMachine_ParseFailuresReprompt(t *testing.T) {
	m := New()
	feed(t, m, "hello")
	assert.Equal(t, StateAskingHeight, m.State(), "a greeting opens the dialogue without answering")

	assert.Equal(t, []string{errHeight}, feed(t, m, "pretty tall"))
	assert.Equal(t, StateAskingHeight, m.State())

	feed(t, m, "180cm")
	assert.Equal(t, []string{errWeight}, feed(t, m, "not sure"))
	feed(t, m, "80")
	assert.Equal(t, []string{errAge}, feed(t, m, "130"))
	assert.Equal(t, StateAskingAge, m.State())
	feed(t, m, "30")
	assert.Equal(t, []string{msgAskGender}, feed(t, m, "  "))
	feed(t, m, "nonbinary")

	out := feed(t, m, "couch potato")
	require.Len(t, out, 2)
	assert.Equal(t, errActivity, out[0])
	assert.Equal(t, StateAskingActivityLevel, m.State())

	feed(t, m, "very active")
	out = feed(t, m, "get rich")
	assert.Equal(t, errGoal, out[0])
	feed(t, m, "athletic")
	out = feed(t, m, "carnivore")
	assert.Equal(t, errDiet, out[0])
	assert.Equal(t, StateAskingDietaryPattern, m.State())
}

func TestMachine_ConfirmationRequiresExplicitAnswer(t *testing.T) {
	m := New()
	feed(t, m, happyPath...)

	assert.Equal(t, []string{msgConfirm}, feed(t, m, "hmm"))
	assert.Equal(t, StateConfirmingGoals, m.State())
}

func TestMachine_AdjustmentSubFlow(t *testing.T) {
	m := New()
	feed(t, m, happyPath...)
	before, _ := m.Goals()

	out := feed(t, m, "no")
	require.Len(t, out, 2)
	assert.Equal(t, msgAdjust, out[0])
	assert.Contains(t, out[1], "• dietary pattern")
	assert.Equal(t, StateConfirmingGoals, m.State())

	out = feed(t, m, "dietary pattern")
	assert.Equal(t, msgAskDiet, out[0])
	assert.Equal(t, StateAskingDietaryPattern, m.State())

	out = feed(t, m, "keto")
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "with a Ketogenic approach")
	assert.Equal(t, StateConfirmingGoals, m.State())

	after, _ := m.Goals()
	assert.Equal(t, nutrition.PatternKeto, after.DietaryPattern)
	assert.Equal(t, before.Macros.Protein, after.Macros.Protein)
	assert.NotEqual(t, before.Macros.Carbs, after.Macros.Carbs)

	out = feed(t, m, "change my weight")
	assert.Equal(t, []string{msgAskWeight}, out)
	feed(t, m, "80 kg")
	assert.Equal(t, StateConfirmingGoals, m.State())
	assert.Equal(t, 80.0, m.Answers().WeightKg)
	assert.Equal(t, "female", m.Answers().Gender, "other answers survive an adjustment")
}

func TestMachine_SaveFailureKeepsConfirmation(t *testing.T) {
	saver := &saverStub{err: errors.New("db down")}
	m := New(WithSaver(saver))
	feed(t, m, happyPath...)

	out, err := m.ProcessInput("yes")
	require.Error(t, err)
	assert.ErrorIs(t, err, saver.err)
	assert.Nil(t, out)
	assert.Equal(t, StateConfirmingGoals, m.State())

	saver.err = nil
	_, err = m.ProcessInput("looks good")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, m.State())
}

func TestMachine_RestartFromCompleted(t *testing.T) {
	m := New()
	feed(t, m, happyPath...)
	feed(t, m, "confirm")
	require.Equal(t, StateCompleted, m.State())
	assert.False(t, m.Active())

	assert.Nil(t, feed(t, m, "thanks"))

	out := feed(t, m, "I want new goals")
	assert.Equal(t, []string{msgRestart, msgIntro}, out)
	assert.Equal(t, StateAskingHeight, m.State())
	assert.True(t, m.Active())
}

func TestMachine_WeightThresholdOption(t *testing.T) {
	m := New(WithWeightUnitThreshold(100))
	feed(t, m, "170 cm", "150")
	assert.InDelta(t, 150*kgPerPound, m.Answers().WeightKg, 1e-9)
}
