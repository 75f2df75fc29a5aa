package mealplan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/preppal/internal/storage"
)

// ErrInvalidCompletion is returned for a completion rate outside [0, 1].
var ErrInvalidCompletion = errors.New("completion rate must be between 0 and 1")

// Store is the persistence the service needs. storage.Store implements it.
type Store interface {
	SaveMealPlan(rec storage.MealPlanRecord) error
	GetMealPlan(userID, id string) (storage.MealPlanRecord, error)
	RecentMealPlans(userID string, limit int) ([]storage.MealPlanRecord, error)
	UpdateMealPlanCompletion(userID, id string, rate float64) error
}

// Service stores weekly plans append-only, one collection per user.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Save appends plan for plan.UserID, assigning an ID and creation time when
// missing, and returns the stored plan.
func (s *Service) Save(plan WeeklyMealPlan) (WeeklyMealPlan, error) {
	if plan.UserID == "" {
		return WeeklyMealPlan{}, errors.New("meal plan has no user")
	}
	if plan.CompletionRate != nil && (*plan.CompletionRate < 0 || *plan.CompletionRate > 1) {
		return WeeklyMealPlan{}, ErrInvalidCompletion
	}
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = s.now().UTC()
	}
	if plan.StartDate == "" && len(plan.Days) > 0 {
		plan.StartDate = plan.Days[0].Date
	}

	data, err := json.Marshal(plan)
	if err != nil {
		return WeeklyMealPlan{}, fmt.Errorf("encoding meal plan: %w", err)
	}
	rec := storage.MealPlanRecord{
		ID:             plan.ID,
		UserID:         plan.UserID,
		StartDate:      plan.StartDate,
		PlanJSON:       string(data),
		CompletionRate: plan.CompletionRate,
		CreatedAt:      plan.CreatedAt,
	}
	if err := s.store.SaveMealPlan(rec); err != nil {
		return WeeklyMealPlan{}, err
	}
	return plan, nil
}

// Get returns one plan. storage.ErrNotFound is passed through.
func (s *Service) Get(userID, id string) (WeeklyMealPlan, error) {
	rec, err := s.store.GetMealPlan(userID, id)
	if err != nil {
		return WeeklyMealPlan{}, err
	}
	return decode(rec)
}

// Recent returns up to limit plans, newest first, never more than
// storage.MaxRecentMealPlans.
func (s *Service) Recent(userID string, limit int) ([]WeeklyMealPlan, error) {
	recs, err := s.store.RecentMealPlans(userID, limit)
	if err != nil {
		return nil, err
	}
	plans := make([]WeeklyMealPlan, 0, len(recs))
	for _, r := range recs {
		p, err := decode(r)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// SetCompletion records how much of a plan was followed.
func (s *Service) SetCompletion(userID, id string, rate float64) error {
	if rate < 0 || rate > 1 {
		return ErrInvalidCompletion
	}
	return s.store.UpdateMealPlanCompletion(userID, id, rate)
}

// decode prefers the row's columns over the JSON copy, since the completion
// rate is only ever updated in its column.
func decode(rec storage.MealPlanRecord) (WeeklyMealPlan, error) {
	var p WeeklyMealPlan
	if err := json.Unmarshal([]byte(rec.PlanJSON), &p); err != nil {
		return WeeklyMealPlan{}, fmt.Errorf("decoding meal plan %s: %w", rec.ID, err)
	}
	p.ID = rec.ID
	p.UserID = rec.UserID
	p.StartDate = rec.StartDate
	p.CreatedAt = rec.CreatedAt
	p.CompletionRate = rec.CompletionRate
	return p, nil
}

// Summarize renders recent plans as a short context block for the model.
func Summarize(plans []WeeklyMealPlan) string {
	if len(plans) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Recent Meal Plans:")
	for _, p := range plans {
		fmt.Fprintf(&b, "\n- week of %s: %d meals", p.StartDate, p.MealCount())
		if p.CompletionRate != nil {
			fmt.Fprintf(&b, ", %.0f%% followed", *p.CompletionRate*100)
		}
	}
	return b.String()
}
