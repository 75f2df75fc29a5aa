package mealplan

import (
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/preppal/internal/nutrition"
)

// MealType is the slot a meal fills during the day.
type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
	Snack     MealType = "snack"
)

type Meal struct {
	ID          string           `json:"id,omitempty"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Calories    int              `json:"calories"`
	Macros      nutrition.Macros `json:"macros"`
	MealType    MealType         `json:"mealType"`
	Cuisine     string           `json:"cuisine,omitempty"`
	Ingredients []string         `json:"ingredients,omitempty"`
	Steps       []string         `json:"steps,omitempty"`
}

type DailyMealPlan struct {
	Date  string `json:"date"`
	Meals []Meal `json:"meals"`
}

// Totals sums the macros of every meal of the day.
func (d DailyMealPlan) Totals() nutrition.Macros {
	var t nutrition.Macros
	for _, m := range d.Meals {
		t.Protein += m.Macros.Protein
		t.Carbs += m.Macros.Carbs
		t.Fat += m.Macros.Fat
		t.Calories += m.Calories
	}
	return t
}

// WeeklyMealPlan is the unit stored per user. CompletionRate is nil until the
// user reports how much of the plan they followed.
type WeeklyMealPlan struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	StartDate      string          `json:"startDate"`
	Days           []DailyMealPlan `json:"days"`
	CreatedAt      time.Time       `json:"createdAt,omitzero"`
	CompletionRate *float64        `json:"completionRate,omitempty"`
}

// Ingredients returns every distinct ingredient of the plan, lowercased, in
// order of first appearance.
func (p WeeklyMealPlan) Ingredients() []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range p.Days {
		for _, m := range d.Meals {
			for _, ing := range m.Ingredients {
				k := strings.ToLower(strings.TrimSpace(ing))
				if k == "" || seen[k] {
					continue
				}
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// MealCount returns the number of meals across all days.
func (p WeeklyMealPlan) MealCount() int {
	n := 0
	for _, d := range p.Days {
		n += len(d.Meals)
	}
	return n
}

// Recipe is a single dish with preparation details.
type Recipe struct {
	Name        string           `json:"name"`
	Ingredients []string         `json:"ingredients"`
	Steps       []string         `json:"steps"`
	PrepMinutes int              `json:"prepMinutes,omitempty"`
	CookMinutes int              `json:"cookMinutes,omitempty"`
	Servings    int              `json:"servings,omitempty"`
	Macros      nutrition.Macros `json:"macros"`
}

// ModificationType is a way the user can ask to change a recipe.
type ModificationType string

const (
	ModifyMacros      ModificationType = "macros"
	ModifyIngredients ModificationType = "ingredients"
	ModifyFlavor      ModificationType = "flavor"
	ModifyDietary     ModificationType = "dietary"
	ModifyServings    ModificationType = "servings"
)

var ModificationTypes = []ModificationType{ModifyMacros, ModifyIngredients, ModifyFlavor, ModifyDietary, ModifyServings}

var modificationInfo = map[ModificationType]struct{ label, prompt string }{
	ModifyMacros:      {"Adjust Macros", "Would you like more protein, fewer carbs, or lower fat?"},
	ModifyIngredients: {"Swap Ingredients", "Which ingredient would you like to swap out?"},
	ModifyFlavor:      {"Change Flavor Profile", "What flavor profile are you looking for? (e.g., spicy, sweet, Mediterranean)"},
	ModifyDietary:     {"Dietary Restrictions", "What dietary restriction should I accommodate? (e.g., gluten-free, vegan)"},
	ModifyServings:    {"Adjust Servings", "How many servings would you like to make?"},
}

func (m ModificationType) Label() string  { return modificationInfo[m].label }
func (m ModificationType) Prompt() string { return modificationInfo[m].prompt }

func (m ModificationType) Valid() bool {
	_, ok := modificationInfo[m]
	return ok
}

// ParseModificationType accepts the identifier or the label.
func ParseModificationType(s string) (ModificationType, error) {
	for _, m := range ModificationTypes {
		if strings.EqualFold(s, string(m)) || strings.EqualFold(s, m.Label()) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown modification type %q", s)
}
