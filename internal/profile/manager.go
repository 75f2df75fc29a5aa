package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/kalambet/preppal/internal/nutrition"
	"github.com/kalambet/preppal/internal/storage"
)

// ErrNoGoals is returned when an operation needs goals the user has not set.
var ErrNoGoals = errors.New("nutrition goals not set")

// keyPrefix namespaces profile documents in the profile key-value table.
const keyPrefix = "profile."

// ProfileStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type ProfileStore interface {
	SetProfileKey(key, value string) error
	GetProfileKey(key string) (string, error)
	ListProfileKeys(prefix string) ([]string, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type entry struct {
	profile  UserProfile
	cachedAt time.Time
}

// Manager provides cached access to user profiles stored as one JSON
// document per user.
type Manager struct {
	store ProfileStore
	clock Clock
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[string]entry
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store ProfileStore) *Manager {
	return NewManagerWithClock(store, realClock{}, 60*time.Second)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store ProfileStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
		cache: make(map[string]entry),
	}
}

func storageKey(userID string) string { return keyPrefix + userID }

// Get returns the user's profile, or the default profile if none was saved.
func (m *Manager) Get(userID string) (UserProfile, error) {
	m.mu.RLock()
	if e, ok := m.cache[userID]; ok && m.fresh(e) {
		p := deepCopyProfile(e.profile)
		m.mu.RUnlock()
		return p, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if e, ok := m.cache[userID]; ok && m.fresh(e) {
		return deepCopyProfile(e.profile), nil
	}
	p, err := m.load(userID)
	if err != nil {
		return UserProfile{}, err
	}
	m.cache[userID] = entry{profile: p, cachedAt: m.clock.Now()}
	return deepCopyProfile(p), nil
}

func (m *Manager) fresh(e entry) bool {
	return m.clock.Now().Before(e.cachedAt.Add(m.ttl))
}

// load reads the profile from the store. Caller holds m.mu for writing.
func (m *Manager) load(userID string) (UserProfile, error) {
	raw, err := m.store.GetProfileKey(storageKey(userID))
	if errors.Is(err, storage.ErrNotFound) || (err == nil && raw == "") {
		return Default(userID), nil
	}
	if err != nil {
		return UserProfile{}, fmt.Errorf("loading profile for %q: %w", userID, err)
	}
	p := Default(userID)
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		slog.Warn("malformed profile, using defaults", "user", userID, "error", err)
		return Default(userID), nil
	}
	p.ID = userID
	return p, nil
}

// Save persists p and refreshes the cache.
func (m *Manager) Save(p UserProfile) error {
	if p.ID == "" {
		return errors.New("profile has no user id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(p)
}

func (m *Manager) saveLocked(p UserProfile) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshalling profile for %q: %w", p.ID, err)
	}
	if err := m.store.SetProfileKey(storageKey(p.ID), string(b)); err != nil {
		delete(m.cache, p.ID)
		return fmt.Errorf("saving profile for %q: %w", p.ID, err)
	}
	m.cache[p.ID] = entry{profile: deepCopyProfile(p), cachedAt: m.clock.Now()}
	return nil
}

// update applies fn to the stored profile and persists the result. The
// write lock is held throughout so concurrent updates are not lost.
func (m *Manager) update(userID string, fn func(*UserProfile) error) (UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.load(userID)
	if err != nil {
		return UserProfile{}, err
	}
	if err := fn(&p); err != nil {
		return UserProfile{}, err
	}
	if err := m.saveLocked(p); err != nil {
		return UserProfile{}, err
	}
	return deepCopyProfile(p), nil
}

// ApplyGoals stores the biometrics the goals were computed from together
// with the goals themselves.
func (m *Manager) ApplyGoals(userID string, b nutrition.BiometricProfile, goals nutrition.NutritionGoals) error {
	_, err := m.update(userID, func(p *UserProfile) error {
		p.WeightKg = b.WeightKg
		p.HeightCm = b.HeightCm
		p.Age = b.Age
		p.Gender = b.Gender
		p.ActivityLevel = b.ActivityLevel
		m.setGoals(p, goals)
		return nil
	})
	return err
}

// SetGoals replaces the user's goals, e.g. after a manual macro adjustment.
func (m *Manager) SetGoals(userID string, goals nutrition.NutritionGoals) error {
	_, err := m.update(userID, func(p *UserProfile) error {
		m.setGoals(p, goals)
		return nil
	})
	return err
}

func (m *Manager) setGoals(p *UserProfile, goals nutrition.NutritionGoals) {
	now := m.clock.Now().UTC()
	if goals.UpdatedAt.IsZero() {
		goals.UpdatedAt = now
	}
	p.NutritionGoals = &goals
	p.GoalUpdateDate = now
}

// GenerateGoals computes goals from the stored biometrics and saves them.
func (m *Manager) GenerateGoals(userID string, goal nutrition.GoalType, pattern nutrition.DietaryPattern) (nutrition.NutritionGoals, error) {
	var out nutrition.NutritionGoals
	_, err := m.update(userID, func(p *UserProfile) error {
		g, err := nutrition.ComputeGoalsFor(p.Biometrics(), goal, pattern)
		if err != nil {
			return err
		}
		m.setGoals(p, g)
		out = *p.NutritionGoals
		return nil
	})
	return out, err
}

// UpdateBiometrics applies the non-nil fields of u. The resulting
// biometrics must still be valid calculator input.
func (m *Manager) UpdateBiometrics(userID string, u BiometricsUpdate) (UserProfile, error) {
	return m.update(userID, func(p *UserProfile) error {
		next := *p
		if u.WeightKg != nil {
			next.WeightKg = *u.WeightKg
		}
		if u.HeightCm != nil {
			next.HeightCm = *u.HeightCm
		}
		if u.Age != nil {
			next.Age = *u.Age
		}
		if u.Gender != nil {
			next.Gender = *u.Gender
		}
		if u.ActivityLevel != nil {
			next.ActivityLevel = *u.ActivityLevel
		}
		if err := nutrition.Validate(next.Biometrics()); err != nil {
			return err
		}
		*p = next
		return nil
	})
}

// UpdateRestrictions replaces the non-nil lists of u.
func (m *Manager) UpdateRestrictions(userID string, u RestrictionsUpdate) (UserProfile, error) {
	return m.update(userID, func(p *UserProfile) error {
		if u.DietaryRestrictions != nil {
			p.DietaryRestrictions = normalize(u.DietaryRestrictions)
		}
		if u.Allergies != nil {
			p.Allergies = normalize(u.Allergies)
		}
		if u.Disliked != nil {
			p.DislikedIngredients = normalize(u.Disliked)
		}
		if u.Favorites != nil {
			p.FavoriteIngredients = normalize(u.Favorites)
		}
		return nil
	})
}

// AddAllergy appends an allergy if it is not already listed.
func (m *Manager) AddAllergy(userID, allergy string) (UserProfile, error) {
	return m.update(userID, func(p *UserProfile) error {
		p.Allergies = normalize(append(p.Allergies, allergy))
		return nil
	})
}

// AppendProgress logs a week of progress, dropping the oldest entry once
// the log holds MaxProgressEntries.
func (m *Manager) AppendProgress(userID string, wp WeeklyProgress) (UserProfile, error) {
	return m.update(userID, func(p *UserProfile) error {
		if wp.Date.IsZero() {
			wp.Date = m.clock.Now().UTC()
		}
		p.WeeklyProgressLog = append(p.WeeklyProgressLog, wp)
		if n := len(p.WeeklyProgressLog); n > MaxProgressEntries {
			p.WeeklyProgressLog = slices.Clone(p.WeeklyProgressLog[n-MaxProgressEntries:])
		}
		return nil
	})
}

// Users lists every user with a saved profile.
func (m *Manager) Users() ([]string, error) {
	keys, err := m.store.ListProfileKeys(keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	users := make([]string, 0, len(keys))
	for _, k := range keys {
		users = append(users, strings.TrimPrefix(k, keyPrefix))
	}
	return users, nil
}

// Summary returns a compact description of the profile suitable for
// injection into a system prompt.
func (m *Manager) Summary(userID string) (string, error) {
	p, err := m.Get(userID)
	if err != nil {
		return "", fmt.Errorf("getting profile for summary: %w", err)
	}
	return Summarize(p), nil
}

// maxSummaryChars caps the summary to stay under ~500 tokens (4 chars/token).
const maxSummaryChars = 2000

// Summarize renders p as the "User Profile:" context block.
func Summarize(p UserProfile) string {
	lines := []string{
		"User Profile:",
		fmt.Sprintf("- Weight: %.1f kg, Height: %.0f cm, Age: %d, Gender: %s", p.WeightKg, p.HeightCm, p.Age, p.Gender),
	}
	if label := p.ActivityLevel.Label(); label != "" {
		lines = append(lines, "- Activity: "+label)
	}
	if g := p.NutritionGoals; g != nil {
		lines = append(lines, fmt.Sprintf("- Goals: %d kcal (protein %.0fg, carbs %.0fg, fat %.0fg), %s, %s",
			g.CalorieGoal, g.Macros.Protein, g.Macros.Carbs, g.Macros.Fat, g.GoalType.Label(), g.DietaryPattern.Label()))
	}
	appendList := func(label string, vals []string) {
		if len(vals) > 0 {
			lines = append(lines, fmt.Sprintf("- %s: %s", label, strings.Join(vals, ", ")))
		}
	}
	appendList("Dietary Restrictions", p.DietaryRestrictions)
	appendList("Allergies", p.Allergies)
	appendList("Dislikes", p.DislikedIngredients)
	appendList("Favorites", p.FavoriteIngredients)

	if n := len(p.WeeklyProgressLog); n > 0 {
		last := p.WeeklyProgressLog[n-1]
		lines = append(lines, fmt.Sprintf("- Last week: avg %.0f kcal, weight change %+.1f kg, %.0f%% of plan followed",
			last.AvgCalories, last.WeightChange, last.CompletionRate*100))
	}

	summary := strings.Join(lines, "\n")
	if len(summary) > maxSummaryChars {
		// Ensure we don't split a multi-byte UTF-8 character.
		end := maxSummaryChars
		for end > 0 && !utf8.RuneStart(summary[end]) {
			end--
		}
		if idx := strings.LastIndex(summary[:end], "\n"); idx > 0 {
			summary = summary[:idx]
		} else {
			summary = summary[:end]
		}
	}
	return summary
}

// normalize trims, drops empties and removes case-insensitive duplicates,
// keeping first-seen order.
func normalize(vals []string) []string {
	out := make([]string, 0, len(vals))
	seen := make(map[string]bool, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		k := strings.ToLower(v)
		if v == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

func deepCopyProfile(p UserProfile) UserProfile {
	cp := p
	if p.NutritionGoals != nil {
		g := *p.NutritionGoals
		cp.NutritionGoals = &g
	}
	cp.DietaryRestrictions = slices.Clone(p.DietaryRestrictions)
	cp.Allergies = slices.Clone(p.Allergies)
	cp.DislikedIngredients = slices.Clone(p.DislikedIngredients)
	cp.FavoriteIngredients = slices.Clone(p.FavoriteIngredients)
	cp.WeeklyProgressLog = slices.Clone(p.WeeklyProgressLog)
	return cp
}
