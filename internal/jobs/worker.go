package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/preppal/internal/storage"
)

// TypeInferPreferences learns ingredient preferences from meal-plan feedback.
const TypeInferPreferences = "infer_preferences"

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
}

// Inferrer updates a user's preferences from the completion rate of one of
// their meal plans. assistant.Assistant implements it.
type Inferrer interface {
	InferFromMealPlan(ctx context.Context, userID, planID string) error
}

// InferPreferencesPayload is the payload of a TypeInferPreferences job.
type InferPreferencesPayload struct {
	UserID string `json:"user_id"`
	PlanID string `json:"plan_id"`
}

// NewInferPreferencesJob builds a job that is ready to enqueue.
func NewInferPreferencesJob(userID, planID string) (storage.Job, error) {
	if userID == "" || planID == "" {
		return storage.Job{}, errors.New("infer_preferences job needs a user and a plan")
	}
	b, err := json.Marshal(InferPreferencesPayload{UserID: userID, PlanID: planID})
	if err != nil {
		return storage.Job{}, fmt.Errorf("marshalling payload: %w", err)
	}
	return storage.Job{
		ID:          uuid.New().String(),
		Type:        TypeInferPreferences,
		PayloadJSON: string(b),
	}, nil
}

// Worker processes infer_preferences jobs from the SQLite job queue.
type Worker struct {
	store    JobStore
	inferrer Inferrer
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, inferrer Inferrer, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:    store,
		inferrer: inferrer,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{TypeInferPreferences})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	w.logger.Debug("job completed", "job_id", job.ID, "type", job.Type)
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload InferPreferencesPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if payload.UserID == "" || payload.PlanID == "" {
		return errors.New("payload is missing user_id or plan_id")
	}
	if err := w.inferrer.InferFromMealPlan(ctx, payload.UserID, payload.PlanID); err != nil {
		return fmt.Errorf("inferring preferences from plan %s: %w", payload.PlanID, err)
	}
	return nil
}
