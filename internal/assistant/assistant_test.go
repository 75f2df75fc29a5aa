package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/preppal/internal/conversation"
	"github.com/kalambet/preppal/internal/dialogue"
	"github.com/kalambet/preppal/internal/intent"
	"github.com/kalambet/preppal/internal/jobs"
	"github.com/kalambet/preppal/internal/mealplan"
	"github.com/kalambet/preppal/internal/nutrition"
	"github.com/kalambet/preppal/internal/preference"
	"github.com/kalambet/preppal/internal/profile"
	"github.com/kalambet/preppal/internal/proxy"
	"github.com/kalambet/preppal/internal/storage"
)

type mockLLM struct {
	mu   sync.Mutex
	reqs []proxy.LLMRequest
	resp proxy.LLMResponse
	err  error
	// hook runs inside Complete, before it returns.
	hook func()
}

func (m *mockLLM) Complete(_ context.Context, req proxy.LLMRequest) (proxy.LLMResponse, error) {
	m.mu.Lock()
	m.reqs = append(m.reqs, req)
	hook := m.hook
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return m.resp, m.err
}

func (m *mockLLM) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reqs)
}

type fixture struct {
	a        *Assistant
	llm      *mockLLM
	store    *storage.Store
	profiles *profile.Manager
	plans    *mealplan.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		llm:      &mockLLM{resp: proxy.LLMResponse{Content: "Sounds tasty!"}},
		store:    store,
		profiles: profile.NewManager(store),
		plans:    mealplan.NewService(store),
	}
	f.a = New(f.llm, f.profiles, f.plans, store)
	return f
}

func (f *fixture) send(t *testing.T, text string) Reply {
	t.Helper()
	r, err := f.a.HandleMessage(context.Background(), "u1", text)
	require.NoError(t, err, "message %q", text)
	return r
}

func (f *fixture) setGoals(t *testing.T) nutrition.NutritionGoals {
	t.Helper()
	b := nutrition.BiometricProfile{WeightKg: 70, HeightCm: 175, Age: 30, Gender: "female", ActivityLevel: nutrition.ActivityModerate}
	goals, err := nutrition.ComputeGoalsFor(b, nutrition.GoalMaintenance, nutrition.PatternBalanced)
	require.NoError(t, err)
	require.NoError(t, f.profiles.ApplyGoals("u1", b, goals))
	return goals
}

func contents(msgs []conversation.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestHandleMessage_Empty(t *testing.T) {
	f := newFixture(t)
	_, err := f.a.HandleMessage(context.Background(), "u1", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestHandleMessage_GoalDialogue(t *testing.T) {
	f := newFixture(t)

	r := f.send(t, "Can you set my nutrition goals?")
	require.Len(t, r.Messages, 1)
	assert.Contains(t, r.Messages[0].Content, "Let's set up your nutrition goals")
	assert.Equal(t, intent.GoalSetNew, r.Intent.GoalAction)

	for _, in := range []string{"5 feet 10 inches", "70 kg", "28", "female", "moderately active", "weight loss", "balanced"} {
		f.send(t, in)
	}
	state, _ := f.a.DialogueState(context.Background(), "u1")
	assert.Equal(t, dialogue.StateConfirmingGoals, state)

	r = f.send(t, "yes")
	require.NotNil(t, r.Goals)
	assert.Equal(t, nutrition.GoalWeightLoss, r.Goals.GoalType)
	assert.Equal(t, conversation.TypeNutritionGoal, r.Messages[0].Type)
	assert.Zero(t, f.llm.calls(), "the dialogue must not call the LLM")

	p, err := f.profiles.Get("u1")
	require.NoError(t, err)
	require.NotNil(t, p.NutritionGoals)
	assert.Equal(t, r.Goals.CalorieGoal, p.NutritionGoals.CalorieGoal)
	assert.InDelta(t, 177.8, p.HeightCm, 0.1)
	assert.Equal(t, 28, p.Age)

	conv, _ := f.a.Conversation(context.Background(), "u1")
	assert.Equal(t, conversation.Critical, conv.Messages[0].Relevance)
	assert.Contains(t, conv.Messages[0].Content, "Goal: Weight Loss")
}

func TestHandleMessage_SendsContextToLLM(t *testing.T) {
	f := newFixture(t)
	f.setGoals(t)
	_, err := f.profiles.UpdateRestrictions("u1", profile.RestrictionsUpdate{Allergies: []string{"shellfish"}})
	require.NoError(t, err)

	r := f.send(t, "hello there")
	assert.Equal(t, intent.KindGeneral, r.Intent.Kind)
	require.Len(t, r.Messages, 1)
	assert.Equal(t, "Sounds tasty!", r.Messages[0].Content)
	assert.Equal(t, conversation.TypeText, r.Messages[0].Type)

	require.Equal(t, 1, f.llm.calls())
	req := f.llm.reqs[0]
	assert.Equal(t, "u1", req.UserID)
	assert.Contains(t, req.EnhancedContext, "User Profile:")
	assert.Contains(t, req.EnhancedContext, "Allergies: shellfish")
	last := req.Messages[len(req.Messages)-1]
	assert.Equal(t, proxy.ChatMessage{Role: "user", Content: "hello there"}, last)
}

func TestHandleMessage_MealPlanReply(t *testing.T) {
	f := newFixture(t)
	f.llm.resp = proxy.LLMResponse{
		Content: "Here's your week.",
		MealPlan: &mealplan.WeeklyMealPlan{
			StartDate: "2026-03-02",
			Days: []mealplan.DailyMealPlan{{
				Date:  "2026-03-02",
				Meals: []mealplan.Meal{{Name: "Oats", MealType: mealplan.Breakfast, Ingredients: []string{"oats"}}},
			}},
		},
		ContextSummary: "Wants quick breakfasts",
	}

	r := f.send(t, "make me a meal plan for the week")
	assert.Equal(t, intent.KindMealPlan, r.Intent.Kind)
	assert.Equal(t, conversation.TypeMealPlan, r.Messages[0].Type)
	require.NotNil(t, r.MealPlan)
	assert.NotEmpty(t, r.MealPlan.ID)

	plans, err := f.plans.Recent("u1", 10)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, r.MealPlan.ID, plans[0].ID)

	conv, _ := f.a.Conversation(context.Background(), "u1")
	assert.Contains(t, contents(conv.Messages), "Context summary: Wants quick breakfasts")

	// The next request carries the stored plan as context.
	f.llm.resp = proxy.LLMResponse{Content: "ok"}
	f.send(t, "thanks")
	assert.Contains(t, f.llm.reqs[1].EnhancedContext, "Recent Meal Plans:\n- week of 2026-03-02: 1 meals")
}

func TestHandleMessage_GoalsFromLLM(t *testing.T) {
	f := newFixture(t)
	goals := nutrition.ComputeGoals(70, 170, 30, "male", nutrition.ActivityLight, nutrition.GoalMuscleGain, nutrition.PatternHighProtein)
	f.llm.resp = proxy.LLMResponse{Content: "Updated.", NutritionGoals: &goals}

	r := f.send(t, "hello there")
	assert.Equal(t, conversation.TypeNutritionGoal, r.Messages[0].Type)

	p, _ := f.profiles.Get("u1")
	require.NotNil(t, p.NutritionGoals)
	assert.Equal(t, nutrition.GoalMuscleGain, p.NutritionGoals.GoalType)
}

func TestHandleMessage_GoalsFromLLMRecomputeCalories(t *testing.T) {
	f := newFixture(t)
	f.llm.resp = proxy.LLMResponse{Content: "Here are your goals.", NutritionGoals: &nutrition.NutritionGoals{
		Macros:         nutrition.Macros{Protein: 150, Carbs: 200, Fat: 60, Calories: 1500},
		CalorieGoal:    1500,
		GoalType:       nutrition.GoalMaintenance,
		DietaryPattern: nutrition.PatternBalanced,
	}}

	r := f.send(t, "hello there")
	require.NotNil(t, r.Goals)
	assert.Equal(t, 1940, r.Goals.CalorieGoal)

	p, _ := f.profiles.Get("u1")
	require.NotNil(t, p.NutritionGoals)
	assert.Equal(t, 1940, p.NutritionGoals.CalorieGoal)
	assert.Equal(t, 1940, p.NutritionGoals.Macros.Calories)
}

func TestHandleMessage_GoalsFromLLMWithUnknownEnumsIgnored(t *testing.T) {
	f := newFixture(t)
	f.llm.resp = proxy.LLMResponse{Content: "Try this.", NutritionGoals: &nutrition.NutritionGoals{
		Macros:         nutrition.Macros{Protein: 150, Carbs: 200, Fat: 60},
		CalorieGoal:    1940,
		GoalType:       "bulk",
		DietaryPattern: nutrition.PatternBalanced,
	}}

	r := f.send(t, "hello there")
	assert.Nil(t, r.Goals)

	p, _ := f.profiles.Get("u1")
	assert.Nil(t, p.NutritionGoals)
}

func TestHandleMessage_UpstreamErrorLeavesSessionUnchanged(t *testing.T) {
	f := newFixture(t)
	f.send(t, "hello there")
	before, _ := f.a.Conversation(context.Background(), "u1")

	f.llm.err = errors.New("502 bad gateway")
	_, err := f.a.HandleMessage(context.Background(), "u1", "what should I eat?")
	assert.ErrorIs(t, err, ErrUpstream)

	after, _ := f.a.Conversation(context.Background(), "u1")
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, contents(before.Messages), contents(after.Messages))
}

func TestHandleMessage_StaleResponseDiscarded(t *testing.T) {
	f := newFixture(t)
	f.llm.hook = func() {
		_, err := f.a.StartNewSession(context.Background(), "u1")
		assert.NoError(t, err)
	}

	_, err := f.a.HandleMessage(context.Background(), "u1", "hello there")
	assert.ErrorIs(t, err, ErrStaleResponse)

	conv, _ := f.a.Conversation(context.Background(), "u1")
	assert.NotContains(t, contents(conv.Messages), "hello there")
	assert.NotContains(t, contents(conv.Messages), "Sounds tasty!")
}

func TestHandleMessage_AdjustMacros(t *testing.T) {
	f := newFixture(t)
	goals := f.setGoals(t)

	r := f.send(t, "I need more protein")
	require.NotNil(t, r.Goals)
	assert.Equal(t, conversation.TypeMacroSuggestion, r.Messages[0].Type)
	assert.InDelta(t, goals.Macros.Protein*1.1, r.Goals.Macros.Protein, 0.1)
	assert.Equal(t, goals.Macros.Carbs, r.Goals.Macros.Carbs)
	assert.Greater(t, r.Goals.CalorieGoal, goals.CalorieGoal)
	assert.Contains(t, r.Messages[0].Content, "raised your protein target")
	assert.Zero(t, f.llm.calls())

	p, _ := f.profiles.Get("u1")
	assert.Equal(t, r.Goals.CalorieGoal, p.NutritionGoals.CalorieGoal)
}

func TestHandleMessage_AdjustMacrosWithoutGoals(t *testing.T) {
	f := newFixture(t)
	r := f.send(t, "fewer carbs please")
	assert.Equal(t, msgNoGoals, r.Messages[0].Content)
	assert.Nil(t, r.Goals)
}

func TestAdjustMacro_Calories(t *testing.T) {
	goals := nutrition.ComputeGoals(70, 170, 30, "female", nutrition.ActivityModerate, nutrition.GoalMaintenance, nutrition.PatternBalanced)
	got, ok := AdjustMacro(goals, intent.GoalDecreaseCalories)
	require.True(t, ok)
	assert.InDelta(t, float64(goals.CalorieGoal)*0.9, float64(got.CalorieGoal), 5)
	assert.InDelta(t, goals.Macros.Fat*0.9, got.Macros.Fat, 0.1)

	_, ok = AdjustMacro(goals, intent.GoalViewProgress)
	assert.False(t, ok)
}

func TestHandleMessage_Progress(t *testing.T) {
	f := newFixture(t)

	r := f.send(t, "how am I doing?")
	assert.Equal(t, msgNoGoals, r.Messages[0].Content)

	goals := f.setGoals(t)
	r = f.send(t, "how am I doing?")
	assert.Equal(t, msgNoProgress, r.Messages[0].Content)

	_, err := f.profiles.AppendProgress("u1", profile.WeeklyProgress{
		AvgCalories: float64(goals.CalorieGoal),
		AvgProtein:  goals.Macros.Protein * 0.5,
		AvgCarbs:    goals.Macros.Carbs,
		AvgFat:      goals.Macros.Fat * 0.8,
	})
	require.NoError(t, err)

	r = f.send(t, "how am I doing?")
	require.NotNil(t, r.Progress)
	assert.Equal(t, conversation.TypeProgressUpdate, r.Messages[0].Type)
	assert.Equal(t, nutrition.StatusOnTrack, r.Progress.Calories.Status)
	assert.Equal(t, nutrition.StatusLow, r.Progress.Protein.Status)
	assert.Equal(t, nutrition.StatusReview, r.Progress.Fat.Status)
	assert.Contains(t, r.Messages[0].Content, "- Protein:")
}

func TestHandleMessage_AllergyStatement(t *testing.T) {
	f := newFixture(t)

	r := f.send(t, "I'm allergic to peanuts")
	assert.True(t, r.Intent.Allergy)
	assert.Equal(t, 1, f.llm.calls(), "statements still get a conversational reply")

	p, _ := f.profiles.Get("u1")
	assert.Equal(t, []string{"peanuts"}, p.Allergies)

	conv, _ := f.a.Conversation(context.Background(), "u1")
	assert.Contains(t, conv.Messages[0].Content, "Allergies: peanuts")

	recs, err := f.store.ListPreferences("u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, string(preference.Allergies), recs[0].Category)
	assert.Contains(t, f.llm.reqs[0].EnhancedContext, "- Allergies: peanuts")
}

func TestRecordPreference_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.a.RecordPreference(ctx, "u1", "colors", "blue", true)
	assert.Error(t, err)
	_, err = f.a.RecordPreference(ctx, "u1", preference.Cuisines, "", true)
	assert.Error(t, err)
	_, err = f.a.RecordPreference(ctx, "", preference.Cuisines, "thai", true)
	assert.Error(t, err)
}

func TestSessionReloadedFromStorage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.a.RecordPreference(ctx, "u1", preference.Cuisines, "Thai", true)
	require.NoError(t, err)
	f.send(t, "I'd love a curry recipe idea")
	_, err = f.a.StartNewSession(ctx, "u1")
	require.NoError(t, err)

	fresh := New(f.llm, profile.NewManager(f.store), f.plans, f.store)
	items, err := fresh.Preferences(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Thai", items[0].Value)

	found, err := fresh.SearchContext(ctx, "u1", "CURRY")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestFeedbackInfersPreferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	plan, err := f.plans.Save(mealplan.WeeklyMealPlan{
		UserID: "u1",
		Days: []mealplan.DailyMealPlan{{
			Date:  "2026-03-02",
			Meals: []mealplan.Meal{{Name: "Salmon bowl", Ingredients: []string{"Salmon", "rice"}}},
		}},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, f.a.InferFromMealPlan(ctx, "u1", plan.ID), ErrNoCompletion)
	assert.ErrorIs(t, f.a.RecordFeedback(ctx, "u1", plan.ID, 1.5), mealplan.ErrInvalidCompletion)
	require.NoError(t, f.a.RecordFeedback(ctx, "u1", plan.ID, 1.0))

	w := jobs.NewWorker(f.store, f.a, 0)
	didWork, err := w.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, didWork)

	items, err := f.a.Preferences(ctx, "u1")
	require.NoError(t, err)
	var values []string
	for _, it := range items {
		assert.Equal(t, preference.Ingredients, it.Category)
		assert.Positive(t, it.Score)
		values = append(values, strings.ToLower(it.Value))
	}
	assert.ElementsMatch(t, []string{"salmon", "rice"}, values)

	recs, err := f.store.ListPreferences("u1")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestClassifierWithHistory(t *testing.T) {
	f := newFixture(t)
	hc := &historyStub{}
	f.a.classifier = hc

	f.send(t, "hello there")
	f.send(t, "and again")
	require.Len(t, hc.histories, 2)
	assert.Empty(t, hc.histories[0])
	assert.NotEmpty(t, hc.histories[1])
}

type historyStub struct {
	histories [][]proxy.ChatMessage
}

func (h *historyStub) Classify(ctx context.Context, text string) intent.Intent {
	return h.ClassifyWithHistory(ctx, text, nil)
}

func (h *historyStub) ClassifyWithHistory(_ context.Context, _ string, history []proxy.ChatMessage) intent.Intent {
	h.histories = append(h.histories, history)
	return intent.Intent{Kind: intent.KindGeneral}
}

func TestCustomizeGoals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.a.CustomizeGoals(ctx, "u1", 150, 200, 60)
	assert.ErrorIs(t, err, profile.ErrNoGoals)

	f.setGoals(t)
	goals, err := f.a.CustomizeGoals(ctx, "u1", 150, 200, 60)
	require.NoError(t, err)
	assert.Equal(t, 150*4+200*4+60*9, goals.CalorieGoal)

	p, _ := f.profiles.Get("u1")
	assert.Equal(t, goals.CalorieGoal, p.NutritionGoals.CalorieGoal)

	_, err = f.a.CustomizeGoals(ctx, "u1", -1, 200, 60)
	assert.ErrorIs(t, err, nutrition.ErrInvalidBiometrics)
}

func TestSyncProfile_RefreshesCriticalContext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.a.SyncProfile("u1"), "no loaded session is not an error")

	f.send(t, "hello")
	_, err := f.profiles.UpdateRestrictions("u1", profile.RestrictionsUpdate{DietaryRestrictions: []string{"halal"}})
	require.NoError(t, err)
	require.NoError(t, f.a.SyncProfile("u1"))

	conv, _ := f.a.Conversation(ctx, "u1")
	require.NotEmpty(t, conv.Messages)
	assert.Equal(t, conversation.Critical, conv.Messages[0].Relevance)
	assert.Contains(t, conv.Messages[0].Content, "Dietary Restrictions: halal")
}
