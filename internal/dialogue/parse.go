package dialogue

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/kalambet/preppal/internal/nutrition"
)

const (
	cmPerFoot  = 30.48
	cmPerInch  = 2.54
	kgPerPound = 0.45359237

	// DefaultWeightUnitThreshold splits bare weight numbers: below it the
	// value is kilograms, at or above it pounds. A 210 kg person or a 150 lb
	// entry is misread; the heuristic is kept as is.
	DefaultWeightUnitThreshold = 200.0
)

var (
	cmRe         = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*cm`)
	feetInchesRe = regexp.MustCompile(`(?i)(\d+)\s*(?:'|feet|foot|ft)[\s"]*(?:and)?[\s"]*(?:(\d+)\s*(?:inches|inch|in|")?)?`)
	kgRe         = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:kg|kilograms|kilos)`)
	lbsRe        = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:pounds|pound|lbs|lb)`)
	numberRe     = regexp.MustCompile(`\d+(?:\.\d+)?`)
	intRe        = regexp.MustCompile(`\d+`)
)

// ParseHeight extracts a height in centimeters from "170 cm", `5'10"` or
// "5 feet 10 inches". Centimeters win when both forms appear.
func ParseHeight(text string) (float64, bool) {
	if m := cmRe.FindStringSubmatch(text); m != nil {
		if cm, err := strconv.ParseFloat(m[1], 64); err == nil && cm > 0 {
			return cm, true
		}
	}
	if m := feetInchesRe.FindStringSubmatch(text); m != nil {
		feet, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		var inches float64
		if m[2] != "" {
			if inches, err = strconv.ParseFloat(m[2], 64); err != nil {
				return 0, false
			}
		}
		cm := feet*cmPerFoot + inches*cmPerInch
		if cm > 0 {
			return cm, true
		}
	}
	return 0, false
}

// ParseWeight extracts a weight in kilograms. Explicit units are honoured;
// a bare number is kilograms below threshold and pounds otherwise.
func ParseWeight(text string, threshold float64) (float64, bool) {
	if m := kgRe.FindStringSubmatch(text); m != nil {
		if kg, err := strconv.ParseFloat(m[1], 64); err == nil && kg > 0 {
			return kg, true
		}
	}
	if m := lbsRe.FindStringSubmatch(text); m != nil {
		if lbs, err := strconv.ParseFloat(m[1], 64); err == nil && lbs > 0 {
			return lbs * kgPerPound, true
		}
	}
	if s := numberRe.FindString(text); s != "" {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || n <= 0 {
			return 0, false
		}
		if n < threshold {
			return n, true
		}
		return n * kgPerPound, true
	}
	return 0, false
}

// ParseAge takes the first integer in text and accepts it when 0 < age < 120.
func ParseAge(text string) (int, bool) {
	s := intRe.FindString(text)
	if s == "" {
		return 0, false
	}
	age, err := strconv.Atoi(s)
	if err != nil || age <= 0 || age >= 120 {
		return 0, false
	}
	return age, true
}

// matchLabel returns the first option whose display label contains text,
// case-insensitively. If none does, it falls back to the first option whose
// identifier or label appears inside text.
func matchLabel[T ~string](text string, options []T, label func(T) string) (T, bool) {
	var zero T
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return zero, false
	}
	for _, o := range options {
		if strings.Contains(strings.ToLower(label(o)), t) {
			return o, true
		}
	}
	// Otherwise the longest identifier or label found in the text wins, so
	// "very active" beats "active".
	best, bestLen := zero, 0
	for _, o := range options {
		for _, name := range []string{strings.ToLower(string(o)), identifierWords(string(o)), strings.ToLower(label(o))} {
			if len(name) > bestLen && strings.Contains(t, name) {
				best, bestLen = o, len(name)
			}
		}
	}
	return best, bestLen > 0
}

// identifierWords turns a camelCase identifier into lower-case words:
// "veryActive" becomes "very active".
func identifierWords(id string) string {
	var b strings.Builder
	for i, r := range id {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte(' ')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MatchActivityLevel matches free text against the activity level labels.
func MatchActivityLevel(text string) (nutrition.ActivityLevel, bool) {
	return matchLabel(text, nutrition.ActivityLevels, nutrition.ActivityLevel.Label)
}

// MatchGoalType matches free text against the goal type labels.
func MatchGoalType(text string) (nutrition.GoalType, bool) {
	return matchLabel(text, nutrition.GoalTypes, nutrition.GoalType.Label)
}

// MatchDietaryPattern matches free text against the dietary pattern labels.
func MatchDietaryPattern(text string) (nutrition.DietaryPattern, bool) {
	return matchLabel(text, nutrition.DietaryPatterns, nutrition.DietaryPattern.Label)
}

// containsAny reports whether lowercase text contains one of words.
func containsAny(text string, words ...string) bool {
	t := strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}
