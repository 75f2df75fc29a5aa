package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/preppal/internal/assistant"
	"github.com/kalambet/preppal/internal/mealplan"
	"github.com/kalambet/preppal/internal/nutrition"
	"github.com/kalambet/preppal/internal/preference"
	"github.com/kalambet/preppal/internal/profile"
	"github.com/kalambet/preppal/internal/storage"
)

// MCPDeps holds dependencies for the MCP server. UserID is the user the
// resources describe and the default for tools called without user_id.
type MCPDeps struct {
	Assistant *assistant.Assistant
	Profiles  *profile.Manager
	Plans     *mealplan.Service
	UserID    string
}

// NewMCPServer creates an MCP server with the PrepPal tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"preppal",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("PrepPal: nutrition goals, food preferences and meal plans for the local user."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("compute_goals",
			mcp.WithDescription("Compute daily calorie and macro targets from biometrics, a goal and a dietary pattern."),
			mcp.WithNumber("weight_kg", mcp.Description("Body weight in kilograms"), mcp.Required()),
			mcp.WithNumber("height_cm", mcp.Description("Height in centimeters"), mcp.Required()),
			mcp.WithNumber("age", mcp.Description("Age in years"), mcp.Required()),
			mcp.WithString("gender", mcp.Description("Gender; \"male\" selects the male BMR formula")),
			mcp.WithString("activity_level", mcp.Description("sedentary, light, moderate, active or veryActive"), mcp.Required()),
			mcp.WithString("goal", mcp.Description("weightLoss, maintenance, muscleGain, athletic or custom"), mcp.Required()),
			mcp.WithString("diet", mcp.Description("Dietary pattern, e.g. balanced, highProtein, keto (default balanced)")),
			mcp.WithBoolean("save", mcp.Description("Save the goals and biometrics to the user's profile")),
			mcp.WithString("user_id", mcp.Description("User to save for (defaults to the local user)")),
		),
		mcpComputeGoals(deps),
	)

	s.AddTool(
		mcp.NewTool("record_preference",
			mcp.WithDescription("Record an explicit food preference, dislike or allergy."),
			mcp.WithString("category", mcp.Description("ingredients, cuisines, mealTimes, cookingMethods, portionSizes, flavors, dietaryRestrictions or allergies"), mcp.Required()),
			mcp.WithString("value", mcp.Description("The item, e.g. salmon"), mcp.Required()),
			mcp.WithBoolean("liked", mcp.Description("true for a like (or a present allergy), false for a dislike")),
			mcp.WithString("user_id", mcp.Description("User to record for (defaults to the local user)")),
		),
		mcpRecordPreference(deps),
	)

	s.AddTool(
		mcp.NewTool("top_preferences",
			mcp.WithDescription("List the user's strongest confident preferences in a category."),
			mcp.WithString("category", mcp.Description("Preference category"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
			mcp.WithString("user_id", mcp.Description("User to query (defaults to the local user)")),
		),
		mcpTopPreferences(deps),
	)

	s.AddTool(
		mcp.NewTool("search_context",
			mcp.WithDescription("Search the user's archived conversation sessions for a phrase."),
			mcp.WithString("query", mcp.Description("Text to search for, case-insensitive"), mcp.Required()),
			mcp.WithString("user_id", mcp.Description("User to search (defaults to the local user)")),
		),
		mcpSearchContext(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"user://profile",
			"User Profile",
			mcp.WithResourceDescription("The local user's profile and nutrition goals as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"user://mealplans",
			"Recent Meal Plans",
			mcp.WithResourceDescription("The local user's most recent weekly meal plans, newest first"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceMealPlans(deps),
	)

	return s
}

func mcpUser(deps MCPDeps, req mcp.CallToolRequest) string {
	return req.GetString("user_id", deps.UserID)
}

func mcpComputeGoals(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		activity, err := nutrition.ParseActivityLevel(req.GetString("activity_level", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}
		goal, err := nutrition.ParseGoalType(req.GetString("goal", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}
		diet, err := nutrition.ParseDietaryPattern(req.GetString("diet", string(nutrition.PatternBalanced)))
		if err != nil {
			return mcpError(err.Error()), nil
		}

		b := nutrition.BiometricProfile{
			WeightKg:      req.GetFloat("weight_kg", 0),
			HeightCm:      req.GetFloat("height_cm", 0),
			Age:           req.GetInt("age", 0),
			Gender:        req.GetString("gender", profile.DefaultGender),
			ActivityLevel: activity,
		}
		goals, err := nutrition.ComputeGoalsFor(b, goal, diet)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		if req.GetBool("save", false) {
			userID := mcpUser(deps, req)
			if err := deps.Profiles.ApplyGoals(userID, b, goals); err != nil {
				return mcpError(fmt.Sprintf("failed to save goals: %v", err)), nil
			}
			syncProfile(deps.Assistant, userID)
		}

		return mcpJSON(goals)
	}
}

func mcpRecordPreference(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cat, err := req.RequireString("category")
		if err != nil {
			return mcpError("category is required"), nil
		}
		c, err := preference.ParseCategory(cat)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		value, err := req.RequireString("value")
		if err != nil || value == "" {
			return mcpError("value is required"), nil
		}

		item, err := deps.Assistant.RecordPreference(ctx, mcpUser(deps, req), c, value, req.GetBool("liked", true))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to record preference: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Recorded %s %q (score %.2f, confidence %.2f)", c.Label(), item.Value, item.Score, item.Confidence)), nil
	}
}

func mcpTopPreferences(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cat, err := req.RequireString("category")
		if err != nil {
			return mcpError("category is required"), nil
		}
		c, err := preference.ParseCategory(cat)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		items, err := deps.Assistant.TopPreferences(ctx, mcpUser(deps, req), c, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load preferences: %v", err)), nil
		}
		if len(items) == 0 {
			return mcpText("[]"), nil
		}
		return mcpJSON(items)
	}
}

func mcpSearchContext(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil || query == "" {
			return mcpError("query is required"), nil
		}

		msgs, err := deps.Assistant.SearchContext(ctx, mcpUser(deps, req), query)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(msgs) == 0 {
			return mcpText("[]"), nil
		}

		type hit struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Type    string `json:"type"`
			At      string `json:"timestamp"`
		}
		hits := make([]hit, len(msgs))
		for i, m := range msgs {
			hits[i] = hit{
				Role:    string(m.Role),
				Content: m.Content,
				Type:    string(m.Type),
				At:      m.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
			}
		}
		return mcpJSON(hits)
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		p, err := deps.Profiles.Get(deps.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}
		return jsonResource(req.Params.URI, p)
	}
}

func mcpResourceMealPlans(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		plans, err := deps.Plans.Recent(deps.UserID, storage.MaxRecentMealPlans)
		if err != nil {
			return nil, fmt.Errorf("failed to get meal plans: %w", err)
		}
		if plans == nil {
			plans = []mealplan.WeeklyMealPlan{}
		}
		return jsonResource(req.Params.URI, plans)
	}
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
