package preference

import (
	"fmt"
	"sort"
	"strings"
)

const (
	likeThreshold         = 0.7
	dislikeThreshold      = -0.7
	dislikeMinConfidence  = 0.5
	criticalMinConfidence = 0.8
	recentDislikeDays     = 7
	recentDislikeLimit    = 3
	relevantPerCategory   = 3
	recentMessageWindow   = 5
	generatedPerCategory  = 3
)

// GenerateContext renders strong likes and dislikes for every category as
// labelled lines. Returns "" when nothing is strong enough to mention.
func (s *Store) GenerateContext() string {
	var lines []string
	for _, c := range Categories {
		var liked []string
		for _, it := range s.Top(c, generatedPerCategory) {
			if it.Score > likeThreshold {
				liked = append(liked, it.Value)
			}
		}
		if len(liked) > 0 {
			lines = append(lines, fmt.Sprintf("Preferred %s: %s", c.Label(), strings.Join(liked, ", ")))
		}

		dislikes := s.filter(func(it *Item) bool {
			return it.Category == c && it.Score < dislikeThreshold && it.Confidence > dislikeMinConfidence
		})
		if len(dislikes) > 0 {
			sort.Slice(dislikes, func(i, j int) bool { return dislikes[i].Score < dislikes[j].Score })
			lines = append(lines, fmt.Sprintf("Avoids %s: %s", c.Label(), joinValues(dislikes)))
		}
	}
	return strings.Join(lines, "\n")
}

// EnhanceContext builds the preference block sent with an LLM request. It
// always includes confident restrictions and allergies and recent dislikes,
// and adds per-category preferences when the last few messages mention that
// category.
func (s *Store) EnhanceContext(recentMessages []string) string {
	var sections []string

	var critical []Item
	for _, c := range []Category{DietaryRestrictions, Allergies} {
		critical = append(critical, s.filter(func(it *Item) bool {
			return it.Category == c && it.Confidence > criticalMinConfidence && it.Score > 0
		})...)
	}
	if len(critical) > 0 {
		sort.Slice(critical, func(i, j int) bool { return critical[i].Value < critical[j].Value })
		sections = append(sections, "Critical Preferences:\n"+bulletList(critical, false))
	}

	recent := s.RecentNegative(recentDislikeDays)
	if len(recent) > recentDislikeLimit {
		recent = recent[:recentDislikeLimit]
	}
	if len(recent) > 0 {
		sections = append(sections, "Recent Dislikes:\n"+bulletList(recent, false))
	}

	window := recentMessages
	if len(window) > recentMessageWindow {
		window = window[len(window)-recentMessageWindow:]
	}
	var relevant []Item
	for _, c := range s.triggers.Match(window) {
		relevant = append(relevant, s.Top(c, relevantPerCategory)...)
	}
	if len(relevant) > 0 {
		sections = append(sections, "Relevant Preferences:\n"+bulletList(relevant, true))
	}

	return strings.Join(sections, "\n\n")
}

func bulletList(items []Item, withScore bool) string {
	lines := make([]string, len(items))
	for i, it := range items {
		if withScore {
			lines[i] = fmt.Sprintf("- %s (score: %.2f)", it.Value, it.Score)
		} else {
			lines[i] = "- " + it.Value
		}
	}
	return strings.Join(lines, "\n")
}

func joinValues(items []Item) string {
	vals := make([]string, len(items))
	for i, it := range items {
		vals[i] = it.Value
	}
	return strings.Join(vals, ", ")
}
