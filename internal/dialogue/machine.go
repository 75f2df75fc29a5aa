package dialogue

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kalambet/preppal/internal/nutrition"
)

const (
	msgIntro       = "Let's set up your nutrition goals. This will help me personalize your meal plans. First, what's your height? (You can tell me in feet/inches or centimeters)"
	msgAskHeight   = "What's your height? (You can tell me in feet/inches or centimeters)"
	msgAskWeight   = "Great! And what's your current weight? (You can tell me in pounds or kilograms)"
	msgAskAge      = "Thanks! What's your age?"
	msgAskGender   = "And how would you describe your gender? This helps me calculate your baseline needs more accurately."
	msgAskActivity = "How would you describe your activity level?"
	msgAskGoal     = "What's your main nutrition goal?"
	msgAskDiet     = "Do you follow a specific dietary pattern?"
	msgCompleted   = "Perfect! I've saved your nutrition goals. I'll use these to personalize your meal plans. You can always update them by saying \"update my goals\" any time."
	msgConfirm     = "Do you want to confirm these nutrition goals? Say 'yes' to confirm or tell me what you'd like to adjust."
	msgAdjust      = "What would you like to adjust?"
	msgRestart     = "Let's start over with setting your nutrition goals."
	msgMissing     = "I'm missing some information to calculate your goals."

	errHeight   = "I'm having trouble understanding your height. Please try again using centimeters (e.g., '170 cm') or feet and inches (e.g., '5'10\" or '5 feet 10 inches')."
	errWeight   = "I'm having trouble understanding your weight. Please try again using kilograms (e.g., '70 kg') or pounds (e.g., '154 lbs')."
	errAge      = "I'm having trouble understanding your age. Please provide just the number (e.g., '35')."
	errActivity = "I didn't quite catch that. Please select one of the activity levels from the options."
	errGoal     = "I didn't quite understand that. Please select one of the goal types from the options."
	errDiet     = "I didn't catch that. Please select one of the dietary patterns from the options."
)

// fieldPatterns is checked in order; goal comes before weight so that
// "change my goal to weight loss" selects the goal.
var fieldPatterns = []struct {
	field field
	re    *regexp.Regexp
}{
	{fieldDiet, regexp.MustCompile(`(?i)\b(diet|dietary|pattern)\b`)},
	{fieldActivity, regexp.MustCompile(`(?i)\bactivity\b`)},
	{fieldGoal, regexp.MustCompile(`(?i)\bgoals?\b`)},
	{fieldHeight, regexp.MustCompile(`(?i)\bheight\b`)},
	{fieldWeight, regexp.MustCompile(`(?i)\bweight\b`)},
	{fieldAge, regexp.MustCompile(`(?i)\bage\b`)},
	{fieldGender, regexp.MustCompile(`(?i)\bgender\b`)},
}

// ProfileSaver persists confirmed goals and the biometrics they came from.
type ProfileSaver interface {
	SaveGoals(b nutrition.BiometricProfile, goals nutrition.NutritionGoals) error
}

// SaverFunc adapts a function to ProfileSaver.
type SaverFunc func(b nutrition.BiometricProfile, goals nutrition.NutritionGoals) error

func (f SaverFunc) SaveGoals(b nutrition.BiometricProfile, goals nutrition.NutritionGoals) error {
	return f(b, goals)
}

// Machine walks a user through collecting biometrics, a goal and a dietary
// pattern, then computes and confirms nutrition goals. It is not safe for
// concurrent use.
type Machine struct {
	state     State
	answers   Answers
	goals     *nutrition.NutritionGoals
	saver     ProfileSaver
	threshold float64

	// choosing is set while waiting for the user to name what to adjust.
	choosing bool
	// adjusting is set while re-asking a single field from confirmation.
	adjusting bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithSaver persists goals on confirmation.
func WithSaver(s ProfileSaver) Option {
	return func(m *Machine) { m.saver = s }
}

// WithWeightUnitThreshold overrides DefaultWeightUnitThreshold.
func WithWeightUnitThreshold(t float64) Option {
	return func(m *Machine) {
		if t > 0 {
			m.threshold = t
		}
	}
}

// New returns a machine in StateInitial.
func New(opts ...Option) *Machine {
	m := &Machine{state: StateInitial, threshold: DefaultWeightUnitThreshold}
	for _, o := range opts {
		o(m)
	}
	return m
}

// State returns the current step.
func (m *Machine) State() State { return m.state }

// Answers returns what has been collected so far.
func (m *Machine) Answers() Answers { return m.answers }

// Goals returns the goals computed for confirmation, or the last confirmed
// goals once completed.
func (m *Machine) Goals() (nutrition.NutritionGoals, bool) {
	if m.goals == nil {
		return nutrition.NutritionGoals{}, false
	}
	return *m.goals, true
}

// Active reports whether the conversation is in progress.
func (m *Machine) Active() bool {
	return m.state != StateInitial && m.state != StateCompleted
}

// Start opens the conversation if it has not started yet.
func (m *Machine) Start() []string {
	if m.state != StateInitial {
		return nil
	}
	m.state = StateAskingHeight
	return []string{msgIntro}
}

// Reset discards all answers and returns to StateInitial.
func (m *Machine) Reset() {
	*m = Machine{state: StateInitial, saver: m.saver, threshold: m.threshold}
}

// ProcessInput consumes one user message and returns the assistant replies.
// Unparseable answers keep the state and re-prompt. An error is returned
// only when saving confirmed goals fails, in which case the machine stays in
// StateConfirmingGoals.
func (m *Machine) ProcessInput(text string) ([]string, error) {
	switch m.state {
	case StateInitial:
		out := m.Start()
		if h, ok := ParseHeight(text); ok {
			m.answers.HeightCm = h
			out = append(out, m.advance()...)
		}
		return out, nil

	case StateAskingHeight:
		h, ok := ParseHeight(text)
		if !ok {
			return []string{errHeight}, nil
		}
		m.answers.HeightCm = h
		return m.advance(), nil

	case StateAskingWeight:
		w, ok := ParseWeight(text, m.threshold)
		if !ok {
			return []string{errWeight}, nil
		}
		m.answers.WeightKg = w
		return m.advance(), nil

	case StateAskingAge:
		age, ok := ParseAge(text)
		if !ok {
			return []string{errAge}, nil
		}
		m.answers.Age = age
		return m.advance(), nil

	case StateAskingGender:
		g := strings.TrimSpace(text)
		if g == "" {
			return []string{msgAskGender}, nil
		}
		m.answers.Gender = g
		return m.advance(), nil

	case StateAskingActivityLevel:
		a, ok := MatchActivityLevel(text)
		if !ok {
			return []string{errActivity, activityOptions()}, nil
		}
		m.answers.ActivityLevel = a
		return m.advance(), nil

	case StateAskingGoalType:
		g, ok := MatchGoalType(text)
		if !ok {
			return []string{errGoal, goalOptions()}, nil
		}
		m.answers.GoalType = g
		return m.advance(), nil

	case StateAskingDietaryPattern:
		p, ok := MatchDietaryPattern(text)
		if !ok {
			return []string{errDiet, dietOptions()}, nil
		}
		m.answers.DietaryPattern = p
		return m.advance(), nil

	case StateConfirmingGoals:
		return m.confirm(text)

	case StateCompleted:
		if containsAny(text, "restart", "new goals") {
			m.Reset()
			return append([]string{msgRestart}, m.Start()...), nil
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unknown dialogue state %q", m.state)
}

// advance moves past the state whose answer was just recorded. While
// adjusting, every answer returns straight to confirmation.
func (m *Machine) advance() []string {
	if m.adjusting {
		m.adjusting = false
		return m.summarize()
	}
	switch m.state {
	case StateAskingHeight:
		m.state = StateAskingWeight
		return []string{msgAskWeight}
	case StateAskingWeight:
		m.state = StateAskingAge
		return []string{msgAskAge}
	case StateAskingAge:
		m.state = StateAskingGender
		return []string{msgAskGender}
	case StateAskingGender:
		m.state = StateAskingActivityLevel
		return []string{msgAskActivity, activityOptions()}
	case StateAskingActivityLevel:
		m.state = StateAskingGoalType
		return []string{msgAskGoal, goalOptions()}
	case StateAskingGoalType:
		m.state = StateAskingDietaryPattern
		return []string{msgAskDiet, dietOptions()}
	case StateAskingDietaryPattern:
		return m.summarize()
	}
	return nil
}

// summarize computes goals from the answers and asks for confirmation. On
// missing answers the state is left where it is.
func (m *Machine) summarize() []string {
	a := m.answers
	goals, err := nutrition.ComputeGoalsFor(a.Biometrics(), a.GoalType, a.DietaryPattern)
	if err != nil {
		return []string{msgMissing}
	}
	m.goals = &goals
	m.state = StateConfirmingGoals
	return []string{summary(goals)}
}

func (m *Machine) confirm(text string) ([]string, error) {
	if containsAny(text, "yes", "confirm", "looks good") {
		if m.saver != nil {
			if err := m.saver.SaveGoals(m.answers.Biometrics(), *m.goals); err != nil {
				return nil, fmt.Errorf("saving nutrition goals: %w", err)
			}
		}
		goals := *m.goals
		*m = Machine{state: StateCompleted, saver: m.saver, threshold: m.threshold, goals: &goals}
		return []string{msgCompleted}, nil
	}

	if f, ok := namedField(text); ok && (m.choosing || containsAny(text, "no", "change", "adjust")) {
		m.choosing = false
		m.adjusting = true
		m.state = fieldStates[f]
		return askFor(f), nil
	}
	if containsAny(text, "no", "change", "adjust") {
		m.choosing = true
		return []string{msgAdjust, adjustOptions()}, nil
	}
	if m.choosing {
		return []string{msgAdjust, adjustOptions()}, nil
	}
	return []string{msgConfirm}, nil
}

func namedField(text string) (field, bool) {
	for _, fp := range fieldPatterns {
		if fp.re.MatchString(text) {
			return fp.field, true
		}
	}
	return "", false
}

func askFor(f field) []string {
	switch f {
	case fieldHeight:
		return []string{msgAskHeight}
	case fieldWeight:
		return []string{msgAskWeight}
	case fieldAge:
		return []string{msgAskAge}
	case fieldGender:
		return []string{msgAskGender}
	case fieldActivity:
		return []string{msgAskActivity, activityOptions()}
	case fieldGoal:
		return []string{msgAskGoal, goalOptions()}
	default:
		return []string{msgAskDiet, dietOptions()}
	}
}

func summary(g nutrition.NutritionGoals) string {
	return fmt.Sprintf("Based on your information, here's what I recommend:\n\n"+
		"Daily Calories: %d\nProtein: %dg\nCarbs: %dg\nFat: %dg\n\n"+
		"This is optimized for %s with a %s approach.\n\nDoes this look good to you?",
		g.CalorieGoal, int(g.Macros.Protein), int(g.Macros.Carbs), int(g.Macros.Fat),
		g.GoalType.Label(), g.DietaryPattern.Label())
}

func activityOptions() string {
	var b strings.Builder
	for _, a := range nutrition.ActivityLevels {
		fmt.Fprintf(&b, "• %s\n", a.Label())
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func goalOptions() string {
	var b strings.Builder
	for _, g := range nutrition.GoalTypes {
		fmt.Fprintf(&b, "• %s: %s\n", g.Label(), g.Description())
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func dietOptions() string {
	var b strings.Builder
	for _, p := range nutrition.DietaryPatterns {
		fmt.Fprintf(&b, "• %s\n", p.Label())
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func adjustOptions() string {
	var b strings.Builder
	for _, f := range adjustable {
		fmt.Fprintf(&b, "• %s\n", f)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
