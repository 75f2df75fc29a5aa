package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// MaxRecentMealPlans caps how many plans RecentMealPlans returns.
const MaxRecentMealPlans = 10

// SessionRecord is an archived conversation session.
type SessionRecord struct {
	ID           string
	UserID       string
	StartedAt    time.Time
	ArchivedAt   time.Time
	MessagesJSON string // JSON array of messages
}

// MealPlanRecord is one stored weekly plan. Plans are append-only; only the
// completion rate is updated after insert.
type MealPlanRecord struct {
	ID             string
	UserID         string
	StartDate      string
	PlanJSON       string
	CompletionRate *float64
	CreatedAt      time.Time
}

// PreferenceRecord is the persisted form of one learned preference.
type PreferenceRecord struct {
	UserID      string
	Category    string
	Value       string
	Score       float64
	Confidence  float64
	Occurrences int
	LastUpdated time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
