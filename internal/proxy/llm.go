package proxy

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kalambet/preppal/internal/mealplan"
	"github.com/kalambet/preppal/internal/nutrition"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
)

const assistantPrompt = `You are PrepPal, a friendly nutrition and meal-planning assistant. Answer with ONLY a single JSON object, no prose or markdown around it. Fields:
- "content": your reply to the user (always present)
- "mealPlan": a weekly meal plan {"startDate","days":[{"date","meals":[{"name","description","calories","macros":{"protein","carbs","fat"},"mealType","cuisine","ingredients","steps"}]}]} when the user asked for a plan
- "recipe": {"name","ingredients","steps","prepMinutes","cookMinutes","servings","macros"} when the user asked for a recipe or a change to one
- "nutritionGoals": {"macros":{"protein","carbs","fat","calories"},"calorieGoal","goalType","dietaryPattern"} when the user asked to change their goals
- "contextSummary": one sentence about what you learned about the user, if anything
Respect every dietary restriction and allergy listed below.`

// LLMRequest is what the assistant sends for one reply.
type LLMRequest struct {
	Messages        []ChatMessage
	EnhancedContext string
	UserID          string
	Temperature     float64
	MaxTokens       int
}

// LLMResponse is the structured reply. Only Content is always set.
type LLMResponse struct {
	Content        string                    `json:"content"`
	MealPlan       *mealplan.WeeklyMealPlan  `json:"mealPlan,omitempty"`
	Recipe         *mealplan.Recipe          `json:"recipe,omitempty"`
	NutritionGoals *nutrition.NutritionGoals `json:"nutritionGoals,omitempty"`
	ContextSummary string                    `json:"contextSummary,omitempty"`
}

// Complete sends req as a JSON-mode chat completion. The enhanced context is
// appended to the system prompt and the user ID is forwarded as "user".
func (c *Client) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	temp := req.Temperature
	if temp == 0 {
		temp = DefaultTemperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}

	system := assistantPrompt
	if req.EnhancedContext != "" {
		system += "\n\n" + req.EnhancedContext
	}
	msgs := make([]ChatMessage, 0, len(req.Messages)+1)
	msgs = append(msgs, ChatMessage{Role: "system", Content: system})
	msgs = append(msgs, req.Messages...)

	resp, err := c.Chat(ctx, ChatRequest{
		Messages:       msgs,
		Temperature:    &temp,
		MaxTokens:      maxTokens,
		User:           req.UserID,
		ResponseFormat: jsonObject,
	})
	if err != nil {
		return LLMResponse{}, err
	}
	content, err := firstContent(resp)
	if err != nil {
		return LLMResponse{}, err
	}
	return ParseLLMContent(content), nil
}

// ParseLLMContent decodes a model reply. Replies that are not a JSON object
// (or carry nothing we recognise) become plain content.
func ParseLLMContent(raw string) LLMResponse {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var out LLMResponse
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return LLMResponse{Content: strings.TrimSpace(raw)}
	}
	if out.Content == "" && out.MealPlan == nil && out.Recipe == nil && out.NutritionGoals == nil {
		return LLMResponse{Content: strings.TrimSpace(raw)}
	}
	return out
}
