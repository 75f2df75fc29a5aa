package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/preppal/internal/config"
	"github.com/kalambet/preppal/internal/conversation"
	"github.com/kalambet/preppal/internal/dialogue"
	"github.com/kalambet/preppal/internal/mealplan"
	"github.com/kalambet/preppal/internal/nutrition"
	"github.com/kalambet/preppal/internal/preference"
	"github.com/kalambet/preppal/internal/profile"
	"github.com/kalambet/preppal/internal/proxy"
	"github.com/kalambet/preppal/internal/storage"
)

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printGoals(w io.Writer, g nutrition.NutritionGoals) {
	fmt.Fprintf(w, "%s %d kcal/day\n", colorize(colorBold, "Calories:"), g.CalorieGoal)
	fmt.Fprintf(w, "  Protein: %.0f g\n", g.Macros.Protein)
	fmt.Fprintf(w, "  Carbs:   %.0f g\n", g.Macros.Carbs)
	fmt.Fprintf(w, "  Fat:     %.0f g\n", g.Macros.Fat)
	if g.GoalType != "" {
		fmt.Fprintf(w, "  Goal:    %s, %s\n", g.GoalType.Label(), g.DietaryPattern.Label())
	}
	if g.Clamped {
		fmt.Fprintln(w, colorize(colorYellow, "  protein alone exceeds the calorie target; carbs and fat are zero"))
	}
}

// --- goals ---

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Nutrition goal tools",
}

var goalsComputeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute daily calorie and macro goals locally",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		weight, _ := f.GetFloat64("weight")
		height, _ := f.GetFloat64("height")
		age, _ := f.GetInt("age")
		gender, _ := f.GetString("gender")
		activityArg, _ := f.GetString("activity")
		goalArg, _ := f.GetString("goal")
		dietArg, _ := f.GetString("diet")
		asJSON, _ := f.GetBool("json")

		activity, err := nutrition.ParseActivityLevel(activityArg)
		if err != nil {
			return err
		}
		goal, err := nutrition.ParseGoalType(goalArg)
		if err != nil {
			return err
		}
		diet, err := nutrition.ParseDietaryPattern(dietArg)
		if err != nil {
			return err
		}

		goals, err := nutrition.ComputeGoalsFor(nutrition.BiometricProfile{
			WeightKg:      weight,
			HeightCm:      height,
			Age:           age,
			Gender:        gender,
			ActivityLevel: activity,
		}, goal, diet)
		if err != nil {
			return err
		}

		if asJSON {
			return writeIndented(cmd.OutOrStdout(), goals)
		}
		printGoals(cmd.OutOrStdout(), goals)
		return nil
	},
}

func init() {
	f := goalsComputeCmd.Flags()
	f.Float64("weight", 0, "weight in kilograms")
	f.Float64("height", 0, "height in centimeters")
	f.Int("age", 0, "age in years")
	f.String("gender", "", "gender (male or female; anything else uses the female formula)")
	f.String("activity", string(nutrition.ActivityModerate), "activity level")
	f.String("goal", string(nutrition.GoalMaintenance), "goal type")
	f.String("diet", string(nutrition.PatternBalanced), "dietary pattern")
	f.Bool("json", false, "print goals as JSON")
	for _, name := range []string{"weight", "height", "age", "gender"} {
		goalsComputeCmd.MarkFlagRequired(name)
	}
	goalsCmd.AddCommand(goalsComputeCmd)
}

// --- dialogue ---

var dialogueCmd = &cobra.Command{
	Use:   "dialogue",
	Short: "Set nutrition goals interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		noSave, _ := cmd.Flags().GetBool("no-save")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		opts := []dialogue.Option{dialogue.WithWeightUnitThreshold(cfg.Dialogue.WeightUnitThreshold)}
		if !noSave {
			store, err := storage.Open(cfg.Storage.DataDir)
			if err != nil {
				return fmt.Errorf("opening storage: %w", err)
			}
			defer store.Close()

			profiles := profile.NewManager(store)
			userID := currentUser(cfg)
			opts = append(opts, dialogue.WithSaver(dialogue.SaverFunc(
				func(b nutrition.BiometricProfile, goals nutrition.NutritionGoals) error {
					return profiles.ApplyGoals(userID, b, goals)
				})))
		}

		return runDialogue(cmd.InOrStdin(), cmd.OutOrStdout(), dialogue.New(opts...))
	},
}

func init() {
	dialogueCmd.Flags().Bool("no-save", false, "do not save confirmed goals to the local profile")
}

// runDialogue drives m line by line until the goals are confirmed or input
// ends.
func runDialogue(in io.Reader, out io.Writer, m *dialogue.Machine) error {
	say := func(lines []string) {
		for _, l := range lines {
			fmt.Fprintln(out, assistantLine(l))
		}
	}

	say(m.Start())
	scanner := bufio.NewScanner(in)
	for m.Active() {
		fmt.Fprint(out, colorize(colorBold, "you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		replies, err := m.ProcessInput(scanner.Text())
		if err != nil {
			printWarning("saving goals: %v", err)
			continue
		}
		say(replies)
	}

	if goals, ok := m.Goals(); ok {
		printGoals(out, goals)
	}
	return nil
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a message to the assistant",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/chat", map[string]string{
			"userId":  client.user,
			"message": strings.Join(args, " "),
		})
		if err != nil {
			return err
		}

		var reply struct {
			Messages []conversation.Message `json:"messages"`
		}
		if err := decodeJSON(resp, &reply); err != nil {
			return err
		}
		for _, m := range reply.Messages {
			if m.Role == conversation.RoleAssistant {
				fmt.Fprintln(cmd.OutOrStdout(), assistantLine(m.Content))
			}
		}
		return nil
	},
}

// --- sessions ---

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage chat sessions",
}

var sessionsNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Archive the current session and start a new one",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/v1/sessions", map[string]string{"userId": client.user})
		if err != nil {
			return err
		}
		var out struct {
			SessionID string `json:"sessionId"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		printSuccess("Started session %s", out.SessionID)
		return nil
	},
}

var sessionsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search previous sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/v1/sessions/search?userId=%s&q=%s",
			url.QueryEscape(client.user), url.QueryEscape(strings.Join(args, " ")))
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var hits []conversation.Message
		if err := decodeJSON(resp, &hits); err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(hits) == 0 {
			fmt.Fprintln(w, "No matches found.")
			return nil
		}
		for _, m := range hits {
			fmt.Fprintf(w, "%s  %-9s %s\n",
				colorize(colorCyan, m.Timestamp.Format(time.DateOnly)), m.Role, m.Content)
		}
		return nil
	},
}

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete archived sessions older than a cutoff",
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		if olderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		n, err := store.DeleteArchivedSessionsBefore(currentUser(cfg), time.Now().Add(-olderThan))
		if err != nil {
			return err
		}
		printSuccess("Deleted %d archived session(s)", n)
		return nil
	},
}

func init() {
	sessionsPruneCmd.Flags().Duration("older-than", 90*24*time.Hour, "delete sessions archived before now minus this duration")
	sessionsCmd.AddCommand(sessionsNewCmd, sessionsSearchCmd, sessionsPruneCmd)
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "View the user profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/v1/profile/"+url.PathEscape(client.user))
		if err != nil {
			return err
		}
		var p profile.UserProfile
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		return writeIndented(cmd.OutOrStdout(), p)
	},
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
}

// --- mealplans ---

var mealplansCmd = &cobra.Command{
	Use:   "mealplans",
	Short: "Browse meal plans",
}

var mealplansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent meal plans",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		path := fmt.Sprintf("/v1/mealplans/%s?limit=%d", url.PathEscape(client.user), limit)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var plans []mealplan.WeeklyMealPlan
		if err := decodeJSON(resp, &plans); err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(plans) == 0 {
			fmt.Fprintln(w, "No meal plans found.")
			return nil
		}
		for _, p := range plans {
			completion := "-"
			if p.CompletionRate != nil {
				completion = fmt.Sprintf("%.0f%%", *p.CompletionRate*100)
			}
			fmt.Fprintf(w, "%s  week of %s  %d meals  completed %s\n",
				colorize(colorCyan, shortID(p.ID)), p.StartDate, p.MealCount(), completion)
		}
		return nil
	},
}

var mealplansFeedbackCmd = &cobra.Command{
	Use:   "feedback <plan-id> <completion-rate>",
	Short: "Report how much of a meal plan was eaten (0 to 1)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rate, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid completion rate %q: %w", args[1], err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		path := fmt.Sprintf("/v1/mealplans/%s/%s/feedback", url.PathEscape(client.user), url.PathEscape(args[0]))
		resp, err := client.post(cmd.Context(), path, map[string]float64{"completionRate": rate})
		if err != nil {
			return err
		}
		var out map[string]string
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		printSuccess("Feedback %s", out["status"])
		return nil
	},
}

func init() {
	mealplansListCmd.Flags().Int("limit", storage.MaxRecentMealPlans, "maximum number of plans")
	mealplansCmd.AddCommand(mealplansListCmd, mealplansFeedbackCmd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// --- prefs ---

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "View and record food preferences",
}

var prefsTopCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the strongest preferences in a category",
	RunE: func(cmd *cobra.Command, args []string) error {
		categoryArg, _ := cmd.Flags().GetString("category")
		limit, _ := cmd.Flags().GetInt("limit")
		category, err := preference.ParseCategory(categoryArg)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		path := fmt.Sprintf("/v1/preferences/%s?category=%s&limit=%d",
			url.PathEscape(client.user), url.QueryEscape(string(category)), limit)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var items []preference.Item
		if err := decodeJSON(resp, &items); err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(items) == 0 {
			fmt.Fprintf(w, "No confident %s yet.\n", category.Label())
			return nil
		}
		for _, it := range items {
			fmt.Fprintf(w, "%-24s score %+.2f  confidence %.2f\n", it.Value, it.Score, it.Confidence)
		}
		return nil
	},
}

var prefsAddCmd = &cobra.Command{
	Use:   "add <category> <value>",
	Short: "Record an explicit like, or a dislike with --dislike",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dislike, _ := cmd.Flags().GetBool("dislike")
		category, err := preference.ParseCategory(args[0])
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/v1/preferences/"+url.PathEscape(client.user), map[string]any{
			"category": category,
			"value":    args[1],
			"liked":    !dislike,
		})
		if err != nil {
			return err
		}
		var item preference.Item
		if err := decodeJSON(resp, &item); err != nil {
			return err
		}
		printSuccess("Recorded %s: %s (score %+.2f)", category.Label(), item.Value, item.Score)
		return nil
	},
}

func init() {
	prefsTopCmd.Flags().String("category", string(preference.Flavors), "preference category")
	prefsTopCmd.Flags().Int("limit", 5, "maximum number of items")
	prefsAddCmd.Flags().Bool("dislike", false, "record a dislike instead of a like")
	prefsCmd.AddCommand(prefsTopCmd, prefsAddCmd)
}

// --- models ---

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models available through OpenRouter",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.RequireAPIKey(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()
		client := proxy.NewClientWithBaseURL(cfg.Proxy.OpenRouterAPIKey, cfg.Proxy.Model, cfg.Proxy.BaseURL)
		models, err := client.ListModels(ctx)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, m := range models {
			marker := "  "
			if m.ID == cfg.Proxy.Model {
				marker = colorize(colorGreen, "* ")
			}
			fmt.Fprintf(w, "%s%s\n", marker, m.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w\nvalid keys: %s", err, strings.Join(config.ValidKeys(), ", "))
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Reset a configuration value to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configUnsetCmd)
}
