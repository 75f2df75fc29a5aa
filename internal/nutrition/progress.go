package nutrition

// ProgressStatus classifies how close intake is to target.
type ProgressStatus string

const (
	StatusOnTrack ProgressStatus = "onTrack"
	StatusReview  ProgressStatus = "review"
	StatusLow     ProgressStatus = "low"
)

// MacroProgress compares consumed grams (or calories) against a target.
type MacroProgress struct {
	Consumed float64        `json:"consumed"`
	Target   float64        `json:"target"`
	Ratio    float64        `json:"ratio"`
	Status   ProgressStatus `json:"status"`
}

// Progress reports consumed/target with a status bucket.
func Progress(consumed, target float64) MacroProgress {
	p := MacroProgress{Consumed: consumed, Target: target}
	if target > 0 {
		p.Ratio = consumed / target
	}
	switch {
	case p.Ratio >= 0.9:
		p.Status = StatusOnTrack
	case p.Ratio >= 0.7:
		p.Status = StatusReview
	default:
		p.Status = StatusLow
	}
	return p
}

// DailyProgress is the per-macro breakdown for one day.
type DailyProgress struct {
	Calories MacroProgress `json:"calories"`
	Protein  MacroProgress `json:"protein"`
	Carbs    MacroProgress `json:"carbs"`
	Fat      MacroProgress `json:"fat"`
}

// ProgressAgainst compares consumed macros against goals.
func ProgressAgainst(consumed Macros, goals NutritionGoals) DailyProgress {
	return DailyProgress{
		Calories: Progress(float64(consumed.Calories), float64(goals.CalorieGoal)),
		Protein:  Progress(consumed.Protein, goals.Macros.Protein),
		Carbs:    Progress(consumed.Carbs, goals.Macros.Carbs),
		Fat:      Progress(consumed.Fat, goals.Macros.Fat),
	}
}
