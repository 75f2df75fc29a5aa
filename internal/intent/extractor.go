package intent

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"time"

	"github.com/kalambet/preppal/internal/mealplan"
	"github.com/kalambet/preppal/internal/proxy"
)

const extractionTimeout = 3 * time.Second

// JSONChatter is a chat completion in JSON mode. proxy.Client implements it.
type JSONChatter interface {
	ChatJSON(ctx context.Context, messages []proxy.ChatMessage) (string, error)
}

// LLMClassifier asks a model for the intent and falls back to the keyword
// heuristic on timeout, transport errors, or unusable output.
type LLMClassifier struct {
	client   JSONChatter
	fallback Classifier
	timeout  time.Duration
}

// NewLLMClassifier creates an LLMClassifier backed by client.
func NewLLMClassifier(client JSONChatter) *LLMClassifier {
	return &LLMClassifier{client: client, fallback: KeywordClassifier{}, timeout: extractionTimeout}
}

func (c *LLMClassifier) Classify(ctx context.Context, text string) Intent {
	return c.ClassifyWithHistory(ctx, text, nil)
}

// ClassifyWithHistory classifies text with recent conversation as context.
func (c *LLMClassifier) ClassifyWithHistory(ctx context.Context, text string, history []proxy.ChatMessage) Intent {
	if text == "" {
		return Intent{Kind: KindGeneral}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.ChatJSON(ctx, BuildPrompt(text, history))
	if err != nil {
		slog.Warn("intent classification chat failed", "error", err)
		return c.fallback.Classify(ctx, text)
	}

	var result Intent
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		slog.Warn("failed to unmarshal intent from LLM response", "error", err, "response", raw)
		return c.fallback.Classify(ctx, text)
	}
	if !result.valid() {
		slog.Warn("LLM returned an unknown intent", "response", raw)
		return c.fallback.Classify(ctx, text)
	}
	return result
}

// valid reports whether every populated field holds a known value.
func (in Intent) valid() bool {
	if !slices.Contains(kinds, in.Kind) {
		return false
	}
	if in.GoalAction != "" && !slices.Contains(goalActions, in.GoalAction) {
		return false
	}
	if in.PlanScope != "" && in.PlanScope != PlanDaily && in.PlanScope != PlanWeekly {
		return false
	}
	if in.Modification != "" && !slices.Contains(mealplan.ModificationTypes, in.Modification) {
		return false
	}
	return true
}
