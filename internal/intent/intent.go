package intent

import (
	"context"
	"regexp"
	"strings"

	"github.com/kalambet/preppal/internal/mealplan"
)

// Kind is the top-level classification of a user message.
type Kind string

const (
	KindNutritionGoal       Kind = "nutritionGoal"
	KindMealPlan            Kind = "mealPlan"
	KindRecipeModification  Kind = "recipeModification"
	KindMacroProgress       Kind = "macroProgress"
	KindPreferenceStatement Kind = "preferenceStatement"
	KindGeneral             Kind = "general"
)

// GoalAction refines KindNutritionGoal.
type GoalAction string

const (
	GoalSetNew           GoalAction = "setNew"
	GoalUpdate           GoalAction = "update"
	GoalIncreaseProtein  GoalAction = "increaseProtein"
	GoalDecreaseProtein  GoalAction = "decreaseProtein"
	GoalIncreaseCarbs    GoalAction = "increaseCarbs"
	GoalDecreaseCarbs    GoalAction = "decreaseCarbs"
	GoalIncreaseFat      GoalAction = "increaseFat"
	GoalDecreaseFat      GoalAction = "decreaseFat"
	GoalIncreaseCalories GoalAction = "increaseCalories"
	GoalDecreaseCalories GoalAction = "decreaseCalories"
	GoalViewProgress     GoalAction = "viewProgress"
	GoalChangeDietType   GoalAction = "changeDietType"
)

// PlanScope refines KindMealPlan.
type PlanScope string

const (
	PlanDaily  PlanScope = "daily"
	PlanWeekly PlanScope = "weekly"
)

// Intent is the result of classifying one message.
type Intent struct {
	Kind         Kind                      `json:"kind"`
	GoalAction   GoalAction                `json:"goalAction,omitempty"`
	PlanScope    PlanScope                 `json:"planScope,omitempty"`
	Modification mealplan.ModificationType `json:"modification,omitempty"`
	// Subject and Liked describe a preference statement such as "I love salmon".
	Subject string `json:"subject,omitempty"`
	Liked   bool   `json:"liked,omitempty"`
	Allergy bool   `json:"allergy,omitempty"`
}

// Classifier maps a user message to an Intent. Implementations never fail;
// an unrecognised message is KindGeneral.
type Classifier interface {
	Classify(ctx context.Context, text string) Intent
}

// KeywordClassifier is a best-effort keyword heuristic.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(_ context.Context, text string) Intent {
	return ClassifyIntent(text)
}

// ClassifyIntent runs the keyword heuristic.
func ClassifyIntent(text string) Intent {
	t := strings.ToLower(text)

	if m, ok := recipeModification(t); ok {
		return Intent{Kind: KindRecipeModification, Modification: m}
	}
	if isMacroProgress(t) {
		return Intent{Kind: KindMacroProgress}
	}
	if has(t, "meal plan") || (has(t, "meal") && has(t, "plan")) {
		scope := PlanDaily
		if has(t, "week") && !has(t, "today") {
			scope = PlanWeekly
		}
		return Intent{Kind: KindMealPlan, PlanScope: scope}
	}
	if a, ok := goalAction(t); ok {
		return Intent{Kind: KindNutritionGoal, GoalAction: a}
	}
	if isNutritionGoalRelated(t) {
		return Intent{Kind: KindNutritionGoal}
	}
	if in, ok := preferenceStatement(t); ok {
		return in
	}
	return Intent{Kind: KindGeneral}
}

func has(t, s string) bool { return strings.Contains(t, s) }

func hasAny(t string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}

var modificationKeywords = []struct {
	mod   mealplan.ModificationType
	words []string
}{
	{mealplan.ModifyServings, []string{"serving", "portion", "people"}},
	{mealplan.ModifyDietary, []string{"gluten", "dairy", "vegan", "vegetarian", "dietary"}},
	{mealplan.ModifyMacros, []string{"protein", "carb", "fat", "macro", "calorie"}},
	{mealplan.ModifyFlavor, []string{"spicy", "spicier", "sweet", "flavor", "flavour", "savory"}},
	{mealplan.ModifyIngredients, []string{"swap", "substitute", "replace", "instead of", "without"}},
}

func recipeModification(t string) (mealplan.ModificationType, bool) {
	if !hasAny(t, "recipe", "this dish") {
		return "", false
	}
	for _, mk := range modificationKeywords {
		if hasAny(t, mk.words...) {
			return mk.mod, true
		}
	}
	if hasAny(t, "modify", "change", "adjust", "make it") {
		return mealplan.ModifyIngredients, true
	}
	return "", false
}

func isMacroProgress(t string) bool {
	return (has(t, "macro") && hasAny(t, "progress", "status")) ||
		(has(t, "how") && has(t, "doing")) ||
		(has(t, "nutrition") && has(t, "progress"))
}

func goalAction(t string) (GoalAction, bool) {
	if has(t, "set") && hasAny(t, "goal", "target") {
		return GoalSetNew, true
	}
	if hasAny(t, "update", "change", "modify") && hasAny(t, "goal", "target", "macros") {
		return GoalUpdate, true
	}
	if hasAny(t, "more", "increase", "higher") {
		if a, ok := macroAction(t, GoalIncreaseProtein, GoalIncreaseCarbs, GoalIncreaseFat, GoalIncreaseCalories); ok {
			return a, true
		}
	}
	if hasAny(t, "less", "decrease", "lower", "fewer") {
		if a, ok := macroAction(t, GoalDecreaseProtein, GoalDecreaseCarbs, GoalDecreaseFat, GoalDecreaseCalories); ok {
			return a, true
		}
	}
	if hasAny(t, "show", "view", "how am i doing") && hasAny(t, "progress", "tracking") {
		return GoalViewProgress, true
	}
	if hasAny(t, "change", "switch") && hasAny(t, "diet", "eating") {
		return GoalChangeDietType, true
	}
	return "", false
}

func macroAction(t string, protein, carbs, fat, calories GoalAction) (GoalAction, bool) {
	switch {
	case has(t, "protein"):
		return protein, true
	case has(t, "carb"):
		return carbs, true
	case has(t, "fat"):
		return fat, true
	case has(t, "calorie"):
		return calories, true
	}
	return "", false
}

var (
	nutritionKeywords = []string{"nutrition", "macros", "calories", "protein", "carbs", "fat", "diet", "weight", "goals", "target", "eating plan"}
	actionVerbs       = []string{"set", "change", "update", "adjust", "modify", "track", "increase", "decrease", "lower"}
	directPhrases     = []string{"need more protein", "want to lose weight", "want to gain muscle", "my diet goals", "how many calories", "set my goals"}
)

func isNutritionGoalRelated(t string) bool {
	return (hasAny(t, nutritionKeywords...) && hasAny(t, actionVerbs...)) || hasAny(t, directPhrases...)
}

var (
	allergyRe  = regexp.MustCompile(`allergic to ([\w\s-]+)`)
	likeRe     = regexp.MustCompile(`\bi (?:really )?(?:love|like|enjoy|adore)\s+([\w\s-]+)`)
	dislikeRe  = regexp.MustCompile(`\bi (?:really )?(?:hate|dislike|can't stand|don't like|do not like)\s+([\w\s-]+)`)
	trailingRe = regexp.MustCompile(`\s+(?:and|but|so|because|though)\b.*$`)
)

func preferenceStatement(t string) (Intent, bool) {
	if m := allergyRe.FindStringSubmatch(t); m != nil {
		if s := subject(m[1]); s != "" {
			return Intent{Kind: KindPreferenceStatement, Subject: s, Allergy: true}, true
		}
	}
	if m := dislikeRe.FindStringSubmatch(t); m != nil {
		if s := subject(m[1]); s != "" {
			return Intent{Kind: KindPreferenceStatement, Subject: s}, true
		}
	}
	if m := likeRe.FindStringSubmatch(t); m != nil {
		if s := subject(m[1]); s != "" {
			return Intent{Kind: KindPreferenceStatement, Subject: s, Liked: true}, true
		}
	}
	return Intent{}, false
}

func subject(s string) string {
	s = trailingRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
