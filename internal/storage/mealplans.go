package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// SaveMealPlan appends a plan. CreatedAt defaults to now.
func (s *Store) SaveMealPlan(rec MealPlanRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	var completion sql.NullFloat64
	if rec.CompletionRate != nil {
		completion = sql.NullFloat64{Float64: *rec.CompletionRate, Valid: true}
	}
	_, err := s.db.Exec(`
		INSERT INTO meal_plans (id, user_id, start_date, plan_json, completion_rate, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.StartDate, rec.PlanJSON, completion, formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving meal plan %s: %w", rec.ID, err)
	}
	return nil
}

// GetMealPlan returns one of a user's plans, or ErrNotFound.
func (s *Store) GetMealPlan(userID, id string) (MealPlanRecord, error) {
	row := s.db.QueryRow(`SELECT id, user_id, start_date, plan_json, completion_rate, created_at
		FROM meal_plans WHERE user_id = ? AND id = ?`, userID, id)
	rec, err := scanMealPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return MealPlanRecord{}, ErrNotFound
	}
	return rec, err
}

// RecentMealPlans returns a user's plans newest first. limit is capped at
// MaxRecentMealPlans; limit <= 0 means the cap.
func (s *Store) RecentMealPlans(userID string, limit int) ([]MealPlanRecord, error) {
	if limit <= 0 || limit > MaxRecentMealPlans {
		limit = MaxRecentMealPlans
	}
	rows, err := s.db.Query(`SELECT id, user_id, start_date, plan_json, completion_rate, created_at
		FROM meal_plans WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MealPlanRecord
	for rows.Next() {
		rec, err := scanMealPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateMealPlanCompletion records how much of a plan the user followed.
func (s *Store) UpdateMealPlanCompletion(userID, id string, rate float64) error {
	res, err := s.db.Exec(`UPDATE meal_plans SET completion_rate = ? WHERE user_id = ? AND id = ?`, rate, userID, id)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMealPlan(r rowScanner) (MealPlanRecord, error) {
	var rec MealPlanRecord
	var completion sql.NullFloat64
	var created string
	if err := r.Scan(&rec.ID, &rec.UserID, &rec.StartDate, &rec.PlanJSON, &completion, &created); err != nil {
		return MealPlanRecord{}, err
	}
	if completion.Valid {
		v := completion.Float64
		rec.CompletionRate = &v
	}
	var err error
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return MealPlanRecord{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return rec, nil
}
