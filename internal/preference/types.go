package preference

import (
	"fmt"
	"time"
)

// Category groups preference items.
type Category string

const (
	Ingredients         Category = "ingredients"
	Cuisines            Category = "cuisines"
	MealTimes           Category = "mealTimes"
	CookingMethods      Category = "cookingMethods"
	PortionSizes        Category = "portionSizes"
	Flavors             Category = "flavors"
	DietaryRestrictions Category = "dietaryRestrictions"
	Allergies           Category = "allergies"
)

// Categories lists every category in context-rendering order.
var Categories = []Category{
	Ingredients, Cuisines, MealTimes, CookingMethods,
	PortionSizes, Flavors, DietaryRestrictions, Allergies,
}

var categoryLabels = map[Category]string{
	Ingredients:         "ingredients",
	Cuisines:            "cuisines",
	MealTimes:           "meal times",
	CookingMethods:      "cooking methods",
	PortionSizes:        "portion sizes",
	Flavors:             "flavors",
	DietaryRestrictions: "dietary restrictions",
	Allergies:           "allergies",
}

// Label returns the human-readable category name.
func (c Category) Label() string { return categoryLabels[c] }

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// ParseCategory maps an identifier or label to a Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if s == string(c) || s == c.Label() {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown preference category %q", s)
}

// Item is the aggregated preference for one (category, value) pair.
type Item struct {
	Category    Category  `json:"category"`
	Value       string    `json:"value"`
	Score       float64   `json:"score"`
	Confidence  float64   `json:"confidence"`
	LastUpdated time.Time `json:"lastUpdated"`
	Occurrences int       `json:"occurrences"`
}

// Interaction is one raw observation kept in the recent-history buffer.
type Interaction struct {
	Category  Category  `json:"category"`
	Value     string    `json:"value"`
	Score     float64   `json:"score"`
	Context   string    `json:"context,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
