package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kalambet/preppal/internal/config"
)

var version = "dev"

var (
	noColor  bool
	userFlag string
)

var rootCmd = &cobra.Command{
	Use:           "preppal",
	Short:         "PrepPal nutrition and meal-planning assistant",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "user ID (defaults to user.id from config)")

	rootCmd.AddCommand(serveCmd, stopCmd, statusCmd)
	rootCmd.AddCommand(goalsCmd, dialogueCmd, chatCmd)
	rootCmd.AddCommand(profileCmd, mealplansCmd, prefsCmd, sessionsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	// A missing .env is normal; only a malformed one is worth reporting.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: reading .env: %v\n", err)
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		noColor = true
	}

	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

// currentUser resolves --user, falling back to the configured user.
func currentUser(cfg config.Config) string {
	if userFlag != "" {
		return userFlag
	}
	return cfg.User.ID
}
