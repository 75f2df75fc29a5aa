package intent

import (
	"fmt"
	"strings"

	"github.com/kalambet/preppal/internal/mealplan"
	"github.com/kalambet/preppal/internal/proxy"
)

const systemPromptTemplate = `You classify messages sent to a nutrition and meal-planning assistant. Your output must be ONLY a single valid JSON object. Do not include any other text, prose, or markdown.

Fields:
- "kind": one of %s
- "goalAction": for nutritionGoal only, one of %s
- "planScope": for mealPlan only, "daily" or "weekly"
- "modification": for recipeModification only, one of %s
- "subject", "liked", "allergy": for preferenceStatement only; subject is the food or cuisine, liked is true for likes, allergy is true for allergies

Use "general" when nothing else fits.`

var (
	kinds       = []Kind{KindNutritionGoal, KindMealPlan, KindRecipeModification, KindMacroProgress, KindPreferenceStatement, KindGeneral}
	goalActions = []GoalAction{
		GoalSetNew, GoalUpdate,
		GoalIncreaseProtein, GoalDecreaseProtein, GoalIncreaseCarbs, GoalDecreaseCarbs,
		GoalIncreaseFat, GoalDecreaseFat, GoalIncreaseCalories, GoalDecreaseCalories,
		GoalViewProgress, GoalChangeDietType,
	}
)

func quoted[T ~string](vals []T) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%q", string(v))
	}
	return strings.Join(parts, ", ")
}

// BuildPrompt constructs the chat messages for intent classification.
// history is the last few messages of the conversation, oldest first.
func BuildPrompt(text string, history []proxy.ChatMessage) []proxy.ChatMessage {
	system := fmt.Sprintf(systemPromptTemplate, quoted(kinds), quoted(goalActions), quoted(mealplan.ModificationTypes))

	messages := []proxy.ChatMessage{{Role: "system", Content: system}}
	messages = append(messages, history...)
	messages = append(messages, proxy.ChatMessage{Role: "user", Content: text})
	return messages
}
