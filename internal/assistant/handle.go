package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/preppal/internal/conversation"
	"github.com/kalambet/preppal/internal/dialogue"
	"github.com/kalambet/preppal/internal/intent"
	"github.com/kalambet/preppal/internal/mealplan"
	"github.com/kalambet/preppal/internal/nutrition"
	"github.com/kalambet/preppal/internal/preference"
	"github.com/kalambet/preppal/internal/profile"
	"github.com/kalambet/preppal/internal/proxy"
)

const (
	msgNoGoals    = "You haven't set nutrition goals yet. Say \"set my goals\" and I'll walk you through it."
	msgNoProgress = "I don't have any progress logged for you yet. Log a week of intake and I'll compare it with your goals."

	macroStep = 0.10
)

// Reply is the outcome of one chat message.
type Reply struct {
	SessionID string                 `json:"sessionId"`
	Intent    intent.Intent          `json:"intent"`
	Messages  []conversation.Message `json:"messages"`

	MealPlan *mealplan.WeeklyMealPlan  `json:"mealPlan,omitempty"`
	Recipe   *mealplan.Recipe          `json:"recipe,omitempty"`
	Goals    *nutrition.NutritionGoals `json:"nutritionGoals,omitempty"`
	Progress *nutrition.DailyProgress  `json:"progress,omitempty"`
}

// HandleMessage processes one user message. While the goal-setting
// dialogue is active every message goes to it; otherwise the message is
// classified and handled locally or sent to the LLM.
func (a *Assistant) HandleMessage(ctx context.Context, userID, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyMessage
	}
	s, err := a.session(ctx, userID)
	if err != nil {
		return Reply{}, err
	}

	s.mu.Lock()
	if s.dialogue.Active() {
		defer s.mu.Unlock()
		return a.dialogueTurn(s, text)
	}
	history := s.conv.RecentContents(classifierHistory)
	s.mu.Unlock()

	in := a.classify(ctx, text, history)
	slog.Debug("classified message", "user", userID, "kind", in.Kind, "action", in.GoalAction)

	switch in.Kind {
	case intent.KindNutritionGoal:
		switch in.GoalAction {
		case intent.GoalSetNew, intent.GoalUpdate, intent.GoalChangeDietType:
			return a.startDialogue(s, text, in), nil
		case intent.GoalIncreaseProtein, intent.GoalDecreaseProtein,
			intent.GoalIncreaseCarbs, intent.GoalDecreaseCarbs,
			intent.GoalIncreaseFat, intent.GoalDecreaseFat,
			intent.GoalIncreaseCalories, intent.GoalDecreaseCalories:
			return a.adjustMacros(s, text, in)
		case intent.GoalViewProgress:
			return a.progress(s, text, in)
		}
		s.mu.Lock()
		noGoals := s.conv.CriticalContext().Goals == nil
		s.mu.Unlock()
		if noGoals {
			return a.startDialogue(s, text, in), nil
		}
	case intent.KindMacroProgress:
		return a.progress(s, text, in)
	case intent.KindPreferenceStatement:
		a.recordStatement(s, in)
	}
	return a.complete(ctx, s, text, in)
}

func (a *Assistant) classify(ctx context.Context, text string, history []string) intent.Intent {
	if hc, ok := a.classifier.(historyClassifier); ok {
		msgs := make([]proxy.ChatMessage, len(history))
		for i, h := range history {
			msgs[i] = proxy.ChatMessage{Role: "user", Content: h}
		}
		return hc.ClassifyWithHistory(ctx, text, msgs)
	}
	return a.classifier.Classify(ctx, text)
}

// record appends the user message and the replies to the active session
// and builds the Reply. Caller holds s.mu.
func record(s *Session, text string, in intent.Intent, relevance conversation.Relevance, typ conversation.MessageType, replies ...string) Reply {
	s.conv.AddMessage(conversation.NewMessage(conversation.RoleUser, text, relevance))
	r := Reply{SessionID: s.conv.ActiveSessionID(), Intent: in}
	for _, content := range replies {
		msg := conversation.NewMessage(conversation.RoleAssistant, content, relevance).WithType(typ)
		s.conv.AddMessage(msg)
		r.Messages = append(r.Messages, msg)
	}
	return r
}

func (a *Assistant) startDialogue(s *Session, text string, in intent.Intent) Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dialogue.State() == dialogue.StateCompleted {
		s.dialogue.Reset()
	}
	return record(s, text, in, conversation.High, conversation.TypeText, s.dialogue.Start()...)
}

// dialogueTurn feeds text to the active dialogue. Caller holds s.mu.
func (a *Assistant) dialogueTurn(s *Session, text string) (Reply, error) {
	out, err := s.dialogue.ProcessInput(text)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	in := intent.Intent{Kind: intent.KindNutritionGoal}

	if s.dialogue.State() != dialogue.StateCompleted {
		return record(s, text, in, conversation.High, conversation.TypeText, out...), nil
	}
	goals, _ := s.dialogue.Goals()
	r := record(s, text, in, conversation.High, conversation.TypeNutritionGoal, out...)
	r.Goals = &goals
	crit := s.conv.CriticalContext()
	s.conv.UpdateCriticalContext(crit.DietaryRestrictions, crit.Allergies, &goals)
	return r, nil
}

type macroTarget struct {
	name     string
	increase bool
	calories bool
}

var macroTargets = map[intent.GoalAction]macroTarget{
	intent.GoalIncreaseProtein:  {name: "protein", increase: true},
	intent.GoalDecreaseProtein:  {name: "protein"},
	intent.GoalIncreaseCarbs:    {name: "carbs", increase: true},
	intent.GoalDecreaseCarbs:    {name: "carbs"},
	intent.GoalIncreaseFat:      {name: "fat", increase: true},
	intent.GoalDecreaseFat:      {name: "fat"},
	intent.GoalIncreaseCalories: {name: "calories", increase: true, calories: true},
	intent.GoalDecreaseCalories: {name: "calories", calories: true},
}

// AdjustMacro moves one macro target by 10% (or every macro, for calories)
// and recomputes calories from the new grams.
func AdjustMacro(goals nutrition.NutritionGoals, action intent.GoalAction) (nutrition.NutritionGoals, bool) {
	t, ok := macroTargets[action]
	if !ok {
		return goals, false
	}
	f := 1 - macroStep
	if t.increase {
		f = 1 + macroStep
	}
	p, c, fat := goals.Macros.Protein, goals.Macros.Carbs, goals.Macros.Fat
	switch {
	case t.calories:
		p, c, fat = p*f, c*f, fat*f
	case t.name == "protein":
		p *= f
	case t.name == "carbs":
		c *= f
	case t.name == "fat":
		fat *= f
	}
	return nutrition.Customize(goals, p, c, fat), true
}

func (a *Assistant) adjustMacros(s *Session, text string, in intent.Intent) (Reply, error) {
	p, err := a.profiles.Get(s.userID)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if p.NutritionGoals == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return record(s, text, in, conversation.Medium, conversation.TypeText, msgNoGoals), nil
	}

	goals, _ := AdjustMacro(*p.NutritionGoals, in.GoalAction)
	if err := a.profiles.SetGoals(s.userID, goals); err != nil {
		return Reply{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	t := macroTargets[in.GoalAction]
	verb := "lowered"
	if t.increase {
		verb = "raised"
	}
	var content string
	if t.calories {
		content = fmt.Sprintf("I've %s your daily calories to %d (protein %.0fg, carbs %.0fg, fat %.0fg).",
			verb, goals.CalorieGoal, goals.Macros.Protein, goals.Macros.Carbs, goals.Macros.Fat)
	} else {
		grams := map[string]float64{"protein": goals.Macros.Protein, "carbs": goals.Macros.Carbs, "fat": goals.Macros.Fat}[t.name]
		content = fmt.Sprintf("I've %s your %s target to %.0fg. Your daily calories are now %d.",
			verb, t.name, grams, goals.CalorieGoal)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r := record(s, text, in, conversation.High, conversation.TypeMacroSuggestion, content)
	r.Goals = &goals
	crit := s.conv.CriticalContext()
	s.conv.UpdateCriticalContext(crit.DietaryRestrictions, crit.Allergies, &goals)
	return r, nil
}

func (a *Assistant) progress(s *Session, text string, in intent.Intent) (Reply, error) {
	p, err := a.profiles.Get(s.userID)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p.NutritionGoals == nil {
		return record(s, text, in, conversation.Medium, conversation.TypeText, msgNoGoals), nil
	}
	if len(p.WeeklyProgressLog) == 0 {
		return record(s, text, in, conversation.Medium, conversation.TypeText, msgNoProgress), nil
	}
	dp := LatestProgress(p)
	r := record(s, text, in, conversation.Medium, conversation.TypeProgressUpdate, renderProgress(dp))
	r.Progress = &dp
	return r, nil
}

// LatestProgress compares the most recent logged week with the goals.
// p must have goals and at least one progress entry.
func LatestProgress(p profile.UserProfile) nutrition.DailyProgress {
	last := p.WeeklyProgressLog[len(p.WeeklyProgressLog)-1]
	consumed := nutrition.Macros{
		Protein:  last.AvgProtein,
		Carbs:    last.AvgCarbs,
		Fat:      last.AvgFat,
		Calories: int(last.AvgCalories + 0.5),
	}
	return nutrition.ProgressAgainst(consumed, *p.NutritionGoals)
}

var statusText = map[nutrition.ProgressStatus]string{
	nutrition.StatusOnTrack: "on track",
	nutrition.StatusReview:  "worth a look",
	nutrition.StatusLow:     "low",
}

func renderProgress(dp nutrition.DailyProgress) string {
	line := func(name, unit string, mp nutrition.MacroProgress) string {
		return fmt.Sprintf("- %s: %.0f / %.0f%s (%.0f%%, %s)", name, mp.Consumed, mp.Target, unit, mp.Ratio*100, statusText[mp.Status])
	}
	return strings.Join([]string{
		"Here's how last week compares with your goals:",
		line("Calories", " kcal", dp.Calories),
		line("Protein", "g", dp.Protein),
		line("Carbs", "g", dp.Carbs),
		line("Fat", "g", dp.Fat),
	}, "\n")
}

// recordStatement learns from "I love salmon" or "I'm allergic to peanuts"
// before the message goes on to the LLM. Failures are logged only.
func (a *Assistant) recordStatement(s *Session, in intent.Intent) {
	if in.Subject == "" {
		return
	}
	c, liked := preference.Ingredients, in.Liked
	if in.Allergy {
		c, liked = preference.Allergies, true
	}
	if _, err := a.recordPreference(s, c, in.Subject, liked); err != nil {
		slog.Warn("failed to record preference statement", "user", s.userID, "subject", in.Subject, "error", err)
	}
}

// complete sends the message to the LLM. The session lock is released for
// the duration of the call; if the session rolled over in the meantime the
// answer is discarded with ErrStaleResponse.
func (a *Assistant) complete(ctx context.Context, s *Session, text string, in intent.Intent) (Reply, error) {
	s.mu.Lock()
	sessionID := s.conv.ActiveSessionID()
	current := s.conv.Current()
	recent := append(s.conv.RecentContents(contextMessageWindow-1), text)
	prefContext := s.prefs.EnhanceContext(recent)
	s.mu.Unlock()

	var profileSummary, planSummary string
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := a.profiles.Get(s.userID)
		if err != nil {
			return err
		}
		profileSummary = profile.Summarize(p)
		return nil
	})
	g.Go(func() error {
		plans, err := a.plans.Recent(s.userID, recentPlansInContext)
		if err != nil {
			return err
		}
		planSummary = mealplan.Summarize(plans)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Reply{}, fmt.Errorf("%w: building context: %w", ErrUpstream, err)
	}

	msgs := make([]proxy.ChatMessage, 0, len(current.Messages)+1)
	for _, m := range current.Messages {
		msgs = append(msgs, proxy.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, proxy.ChatMessage{Role: "user", Content: text})

	resp, err := a.llm.Complete(ctx, proxy.LLMRequest{
		Messages:        msgs,
		EnhancedContext: joinSections(prefContext, profileSummary, planSummary),
		UserID:          s.userID,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	resp.NutritionGoals = normalizeGoals(s.userID, resp.NutritionGoals)

	s.mu.Lock()
	if s.conv.ActiveSessionID() != sessionID {
		s.mu.Unlock()
		slog.Info("discarding stale LLM response", "user", s.userID, "session", sessionID)
		return Reply{}, ErrStaleResponse
	}
	relevance := conversation.Medium
	if resp.MealPlan != nil || resp.NutritionGoals != nil {
		relevance = conversation.High
	}
	r := record(s, text, in, relevance, messageType(resp), resp.Content)
	if resp.ContextSummary != "" {
		s.conv.AddMessage(conversation.NewMessage(conversation.RoleSystem, "Context summary: "+resp.ContextSummary, conversation.High))
	}
	if resp.NutritionGoals != nil {
		crit := s.conv.CriticalContext()
		s.conv.UpdateCriticalContext(crit.DietaryRestrictions, crit.Allergies, resp.NutritionGoals)
	}
	s.mu.Unlock()

	r.Recipe = resp.Recipe
	r.Goals = resp.NutritionGoals
	if resp.MealPlan != nil {
		plan := *resp.MealPlan
		plan.UserID = s.userID
		saved, err := a.plans.Save(plan)
		if err != nil {
			slog.Warn("failed to save meal plan", "user", s.userID, "error", err)
			saved = plan
		}
		r.MealPlan = &saved
	}
	if resp.NutritionGoals != nil {
		if err := a.profiles.SetGoals(s.userID, *resp.NutritionGoals); err != nil {
			slog.Warn("failed to save nutrition goals", "user", s.userID, "error", err)
		}
	}
	return r, nil
}

// messageType picks the tag for an LLM reply from its structured payload.
func messageType(resp proxy.LLMResponse) conversation.MessageType {
	switch {
	case resp.MealPlan != nil:
		return conversation.TypeMealPlan
	case resp.Recipe != nil:
		return conversation.TypeRecipe
	case resp.NutritionGoals != nil:
		return conversation.TypeNutritionGoal
	}
	return conversation.TypeText
}

func joinSections(sections ...string) string {
	var out []string
	for _, s := range sections {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n\n")
}

// normalizeGoals makes model-proposed goals consistent before they are
// stored: calories are recomputed from the macro grams. Goals naming an
// unknown goal type or dietary pattern are dropped.
func normalizeGoals(userID string, g *nutrition.NutritionGoals) *nutrition.NutritionGoals {
	if g == nil {
		return nil
	}
	if !g.GoalType.Valid() || !g.DietaryPattern.Valid() {
		slog.Warn("ignoring model goals with unknown enums", "user", userID,
			"goalType", g.GoalType, "dietaryPattern", g.DietaryPattern)
		return nil
	}
	m := g.Macros
	if m.Protein < 0 || m.Carbs < 0 || m.Fat < 0 {
		slog.Warn("ignoring model goals with negative macros", "user", userID)
		return nil
	}
	out := nutrition.Customize(*g, m.Protein, m.Carbs, m.Fat)
	return &out
}
