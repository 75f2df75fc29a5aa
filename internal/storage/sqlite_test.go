package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fixedClock pins s.now so ordering by timestamp is deterministic.
func fixedClock(s *Store, start time.Time) func(time.Duration) {
	cur := start
	s.now = func() time.Time { return cur }
	return func(d time.Duration) { cur = cur.Add(d) }
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	for _, idx := range []string{"idx_archived_sessions_user", "idx_meal_plans_user_created", "idx_jobs_status_run_after"} {
		var count int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count); err != nil {
			t.Fatalf("checking index %s: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %s not found", idx)
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("001_initial.sql")
	if err != nil || v != 1 {
		t.Errorf("parseMigrationVersion = %d, %v; want 1, nil", v, err)
	}
	if _, err := parseMigrationVersion("initial.sql"); err == nil {
		t.Error("expected error for filename without version prefix")
	}
}

func TestProfileKeyRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetProfileKey("profile.u1", `{"name":"A"}`); err != nil {
		t.Fatalf("SetProfileKey: %v", err)
	}
	if err := s.SetProfileKey("profile.u1", `{"name":"B"}`); err != nil {
		t.Fatalf("SetProfileKey overwrite: %v", err)
	}

	got, err := s.GetProfileKey("profile.u1")
	if err != nil {
		t.Fatalf("GetProfileKey: %v", err)
	}
	if got != `{"name":"B"}` {
		t.Errorf("GetProfileKey = %q, want overwritten value", got)
	}

	if _, err := s.GetProfileKey("profile.missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing key error = %v, want ErrNotFound", err)
	}
}

func TestListProfileKeys(t *testing.T) {
	s := openTestStore(t)

	for _, k := range []string{"profile.b", "profile.a", "other.x"} {
		if err := s.SetProfileKey(k, "{}"); err != nil {
			t.Fatalf("SetProfileKey(%s): %v", k, err)
		}
	}
	keys, err := s.ListProfileKeys("profile.")
	if err != nil {
		t.Fatalf("ListProfileKeys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "profile.a" || keys[1] != "profile.b" {
		t.Errorf("ListProfileKeys = %v, want [profile.a profile.b]", keys)
	}
}

func TestArchiveAndListSessions(t *testing.T) {
	s := openTestStore(t)
	advance := fixedClock(s, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	for i := range 3 {
		rec := SessionRecord{
			ID:           fmt.Sprintf("sess-%d", i),
			UserID:       "u1",
			StartedAt:    s.now().Add(-time.Hour),
			MessagesJSON: fmt.Sprintf(`[{"content":"msg %d"}]`, i),
		}
		if err := s.ArchiveSession(rec); err != nil {
			t.Fatalf("ArchiveSession: %v", err)
		}
		advance(time.Minute)
	}
	if err := s.ArchiveSession(SessionRecord{ID: "other", UserID: "u2", StartedAt: s.now()}); err != nil {
		t.Fatalf("ArchiveSession: %v", err)
	}

	all, err := s.ListArchivedSessions("u1", 0)
	if err != nil {
		t.Fatalf("ListArchivedSessions: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d sessions, want 3", len(all))
	}
	if all[0].ID != "sess-0" || all[2].ID != "sess-2" {
		t.Errorf("sessions not oldest first: %s..%s", all[0].ID, all[2].ID)
	}

	latest, err := s.ListArchivedSessions("u1", 2)
	if err != nil {
		t.Fatalf("ListArchivedSessions(limit): %v", err)
	}
	if len(latest) != 2 || latest[0].ID != "sess-1" || latest[1].ID != "sess-2" {
		t.Errorf("limited list = %+v, want the two newest in chronological order", latest)
	}

	other, err := s.ListArchivedSessions("u2", 0)
	if err != nil {
		t.Fatalf("ListArchivedSessions(u2): %v", err)
	}
	if len(other) != 1 || other[0].MessagesJSON != "[]" {
		t.Errorf("u2 sessions = %+v, want one with empty message list", other)
	}
}

func TestDeleteArchivedSessionsBefore(t *testing.T) {
	s := openTestStore(t)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	advance := fixedClock(s, start)

	for i := range 3 {
		if err := s.ArchiveSession(SessionRecord{ID: fmt.Sprintf("s%d", i), UserID: "u1", StartedAt: start}); err != nil {
			t.Fatalf("ArchiveSession: %v", err)
		}
		advance(24 * time.Hour)
	}

	n, err := s.DeleteArchivedSessionsBefore("u1", start.Add(36*time.Hour))
	if err != nil {
		t.Fatalf("DeleteArchivedSessionsBefore: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d sessions, want 2", n)
	}
}

func TestRecentMealPlans_NewestFirstAndCapped(t *testing.T) {
	s := openTestStore(t)
	advance := fixedClock(s, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	for i := range 12 {
		rec := MealPlanRecord{ID: fmt.Sprintf("plan-%02d", i), UserID: "u1", StartDate: "2026-03-01", PlanJSON: "{}"}
		if err := s.SaveMealPlan(rec); err != nil {
			t.Fatalf("SaveMealPlan: %v", err)
		}
		advance(time.Hour)
	}

	plans, err := s.RecentMealPlans("u1", 50)
	if err != nil {
		t.Fatalf("RecentMealPlans: %v", err)
	}
	if len(plans) != MaxRecentMealPlans {
		t.Fatalf("got %d plans, want %d", len(plans), MaxRecentMealPlans)
	}
	if plans[0].ID != "plan-11" || plans[9].ID != "plan-02" {
		t.Errorf("plans not newest first: first=%s last=%s", plans[0].ID, plans[9].ID)
	}

	few, err := s.RecentMealPlans("u1", 3)
	if err != nil {
		t.Fatalf("RecentMealPlans(3): %v", err)
	}
	if len(few) != 3 {
		t.Errorf("got %d plans, want 3", len(few))
	}
}

func TestRecentMealPlans_SameTimestampUsesInsertOrder(t *testing.T) {
	s := openTestStore(t)
	fixedClock(s, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	for _, id := range []string{"a", "b"} {
		if err := s.SaveMealPlan(MealPlanRecord{ID: id, UserID: "u1", PlanJSON: "{}"}); err != nil {
			t.Fatalf("SaveMealPlan: %v", err)
		}
	}
	plans, err := s.RecentMealPlans("u1", 0)
	if err != nil {
		t.Fatalf("RecentMealPlans: %v", err)
	}
	if len(plans) != 2 || plans[0].ID != "b" {
		t.Errorf("plans = %+v, want b before a", plans)
	}
}

func TestMealPlanCompletion(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveMealPlan(MealPlanRecord{ID: "p1", UserID: "u1", PlanJSON: `{"days":[]}`}); err != nil {
		t.Fatalf("SaveMealPlan: %v", err)
	}
	got, err := s.GetMealPlan("u1", "p1")
	if err != nil {
		t.Fatalf("GetMealPlan: %v", err)
	}
	if got.CompletionRate != nil {
		t.Errorf("CompletionRate = %v, want nil before feedback", *got.CompletionRate)
	}

	if err := s.UpdateMealPlanCompletion("u1", "p1", 0.75); err != nil {
		t.Fatalf("UpdateMealPlanCompletion: %v", err)
	}
	got, err = s.GetMealPlan("u1", "p1")
	if err != nil {
		t.Fatalf("GetMealPlan: %v", err)
	}
	if got.CompletionRate == nil || *got.CompletionRate != 0.75 {
		t.Errorf("CompletionRate = %v, want 0.75", got.CompletionRate)
	}

	if err := s.UpdateMealPlanCompletion("u1", "nope", 0.5); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing plan error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetMealPlan("u2", "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other user's plan error = %v, want ErrNotFound", err)
	}
}

func TestSaveAndListPreferences(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	recs := []PreferenceRecord{
		{Category: "ingredients", Value: "salmon", Score: 0.1, Confidence: 0.1, Occurrences: 1, LastUpdated: now},
		{Category: "cuisines", Value: "thai", Score: -0.2, Confidence: 0.2, Occurrences: 2, LastUpdated: now},
	}
	if err := s.SavePreferences("u1", recs); err != nil {
		t.Fatalf("SavePreferences: %v", err)
	}

	recs[0].Score = 0.19
	recs[0].Occurrences = 2
	if err := s.SavePreferences("u1", recs[:1]); err != nil {
		t.Fatalf("SavePreferences upsert: %v", err)
	}

	got, err := s.ListPreferences("u1")
	if err != nil {
		t.Fatalf("ListPreferences: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d preferences, want 2", len(got))
	}
	if got[0].Category != "cuisines" || got[1].Value != "salmon" {
		t.Errorf("unexpected order: %+v", got)
	}
	if got[1].Score != 0.19 || got[1].Occurrences != 2 {
		t.Errorf("upsert not applied: %+v", got[1])
	}
	if !got[1].LastUpdated.Equal(now) {
		t.Errorf("LastUpdated = %v, want %v", got[1].LastUpdated, now)
	}

	if err := s.SavePreferences("u1", nil); err != nil {
		t.Errorf("SavePreferences(nil) = %v, want nil", err)
	}
}

func TestEnqueueAndClaimJob(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j1", Type: "infer_preferences", PayloadJSON: `{"planId":"p1"}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	job, err := s.ClaimNextJob([]string{"infer_preferences"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job == nil {
		t.Fatal("expected a job")
	}
	if job.ID != "j1" || job.Status != "running" || job.MaxAttempts != 3 {
		t.Errorf("claimed job = %+v", job)
	}

	again, err := s.ClaimNextJob([]string{"infer_preferences"})
	if err != nil {
		t.Fatalf("second ClaimNextJob: %v", err)
	}
	if again != nil {
		t.Errorf("running job claimed twice: %+v", again)
	}
}

func TestClaimNextJob_Filters(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	fixedClock(s, now)

	if err := s.EnqueueJob(Job{ID: "later", Type: "infer_preferences", PayloadJSON: "{}", RunAfter: now.Add(time.Hour)}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if err := s.EnqueueJob(Job{ID: "other", Type: "something_else", PayloadJSON: "{}"}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	job, err := s.ClaimNextJob([]string{"infer_preferences"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job != nil {
		t.Errorf("claimed %s, want nothing runnable", job.ID)
	}

	if job, err := s.ClaimNextJob(nil); job != nil || err != nil {
		t.Errorf("ClaimNextJob(nil) = %v, %v", job, err)
	}
}

func TestCompleteJob(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j1", Type: "t", PayloadJSON: "{}"}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if err := s.CompleteJob("j1"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	job, err := s.GetJob("j1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != "completed" {
		t.Errorf("status = %q, want completed", job.Status)
	}
	if err := s.CompleteJob("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("CompleteJob(missing) = %v, want ErrNotFound", err)
	}
}

func TestFailJob_BackoffThenFailed(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	fixedClock(s, now)

	if err := s.EnqueueJob(Job{ID: "j1", Type: "t", PayloadJSON: "{}", MaxAttempts: 2}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	if err := s.FailJob("j1", "boom"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	job, err := s.GetJob("j1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != "pending" || job.Attempts != 1 || job.LastError != "boom" {
		t.Errorf("after first failure: %+v", job)
	}
	if want := now.Add(2 * time.Second); !job.RunAfter.Equal(want) {
		t.Errorf("RunAfter = %v, want %v", job.RunAfter, want)
	}

	if err := s.FailJob("j1", "boom again"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	job, err = s.GetJob("j1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != "failed" || job.Attempts != 2 {
		t.Errorf("after max attempts: %+v", job)
	}

	if err := s.FailJob("missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FailJob(missing) = %v, want ErrNotFound", err)
	}
}
