package mealplan

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/preppal/internal/nutrition"
	"github.com/kalambet/preppal/internal/storage"
)

func openService(t *testing.T) (*Service, *storage.Store) {
	t.Helper()
	st, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewService(st), st
}

func samplePlan(userID string) WeeklyMealPlan {
	return WeeklyMealPlan{
		UserID: userID,
		Days: []DailyMealPlan{
			{Date: "2026-03-02", Meals: []Meal{
				{Name: "Oats", MealType: Breakfast, Calories: 350, Macros: nutrition.Macros{Protein: 12, Carbs: 60, Fat: 7}, Ingredients: []string{"Oats", "Blueberries"}},
				{Name: "Salmon bowl", MealType: Dinner, Calories: 600, Macros: nutrition.Macros{Protein: 40, Carbs: 55, Fat: 22}, Ingredients: []string{"salmon", " rice ", "oats"}},
			}},
			{Date: "2026-03-03", Meals: []Meal{
				{Name: "Tofu stir fry", MealType: Lunch, Calories: 500, Ingredients: []string{"tofu", "Rice"}},
			}},
		},
	}
}

func TestWeeklyMealPlan_Ingredients(t *testing.T) {
	p := samplePlan("u1")
	assert.Equal(t, []string{"oats", "blueberries", "salmon", "rice", "tofu"}, p.Ingredients())
	assert.Equal(t, 3, p.MealCount())
}

func TestDailyMealPlan_Totals(t *testing.T) {
	got := samplePlan("u1").Days[0].Totals()
	assert.Equal(t, nutrition.Macros{Protein: 52, Carbs: 115, Fat: 29, Calories: 950}, got)
}

func TestService_SaveAssignsDefaults(t *testing.T) {
	svc, _ := openService(t)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC) }

	saved, err := svc.Save(samplePlan("u1"))
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "2026-03-02", saved.StartDate)
	assert.Equal(t, svc.now(), saved.CreatedAt)

	got, err := svc.Get("u1", saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Len(t, got.Days, 2)
	assert.Nil(t, got.CompletionRate)

	_, err = svc.Save(WeeklyMealPlan{})
	assert.Error(t, err)
}

func TestService_RecentIsNewestFirstAndCapped(t *testing.T) {
	svc, _ := openService(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 12 {
		p := samplePlan("u1")
		p.ID = fmt.Sprintf("p%02d", i)
		p.CreatedAt = base.Add(time.Duration(i) * 24 * time.Hour)
		_, err := svc.Save(p)
		require.NoError(t, err)
	}

	plans, err := svc.Recent("u1", 0)
	require.NoError(t, err)
	require.Len(t, plans, storage.MaxRecentMealPlans)
	assert.Equal(t, "p11", plans[0].ID)
	assert.Equal(t, "p02", plans[len(plans)-1].ID)
}

func TestService_SetCompletion(t *testing.T) {
	svc, _ := openService(t)
	saved, err := svc.Save(samplePlan("u1"))
	require.NoError(t, err)

	require.NoError(t, svc.SetCompletion("u1", saved.ID, 0.8))
	got, err := svc.Get("u1", saved.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CompletionRate)
	assert.Equal(t, 0.8, *got.CompletionRate)

	assert.ErrorIs(t, svc.SetCompletion("u1", saved.ID, 1.5), ErrInvalidCompletion)
	assert.True(t, errors.Is(svc.SetCompletion("u1", "missing", 0.5), storage.ErrNotFound))
}

func TestSummarize(t *testing.T) {
	rate := 0.85
	plans := []WeeklyMealPlan{
		{StartDate: "2026-03-02", Days: samplePlan("u1").Days, CompletionRate: &rate},
		{StartDate: "2026-02-23"},
	}
	assert.Equal(t, "Recent Meal Plans:\n- week of 2026-03-02: 3 meals, 85% followed\n- week of 2026-02-23: 0 meals", Summarize(plans))
	assert.Empty(t, Summarize(nil))
}

func TestParseModificationType(t *testing.T) {
	m, err := ParseModificationType("Swap Ingredients")
	require.NoError(t, err)
	assert.Equal(t, ModifyIngredients, m)
	assert.Equal(t, "How many servings would you like to make?", ModifyServings.Prompt())

	_, err = ParseModificationType("deep fry")
	assert.Error(t, err)
}
