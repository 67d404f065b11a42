package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"habits/internal/domain"

	"github.com/google/uuid"
)

// Tracker owns the habit registry and the check ledger. Every mutation of a
// user's state runs under that user's lock, so a toggle's
// lookup-insert-recompute-save sequence is atomic with respect to other
// requests for the same user.
type Tracker struct {
	habits domain.HabitRepository
	checks domain.CheckRepository
	clock  Clock
	logger *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex

	notifier
}

// NewTracker creates a Tracker backed by the given repositories.
func NewTracker(habits domain.HabitRepository, checks domain.CheckRepository, clock Clock, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		habits: habits,
		checks: checks,
		clock:  clock,
		logger: logger,
		locks:  make(map[int64]*sync.Mutex),
	}
}

// ToggleResult is the outcome of ToggleCheck.
type ToggleResult struct {
	Checked bool           `json:"checked"`
	Badges  []domain.Badge `json:"badges"`
}

func (t *Tracker) lock(userID int64) func() {
	t.mu.Lock()
	l, ok := t.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[userID] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Today returns the tracker's current calendar day.
func (t *Tracker) Today() domain.Day {
	return t.clock.Today()
}

// CreateHabit validates in and registers a new habit with zero streaks.
func (t *Tracker) CreateHabit(ctx context.Context, userID int64, in domain.HabitInput) (domain.Habit, error) {
	if err := in.Validate(); err != nil {
		return domain.Habit{}, err
	}
	h := domain.Habit{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      strings.TrimSpace(in.Name),
		Emoji:     in.Emoji,
		Goal:      in.Goal,
		Color:     in.Color,
		Badges:    []domain.Badge{},
		CreatedAt: t.clock.now(),
	}

	unlock := t.lock(userID)
	err := t.habits.CreateHabit(ctx, h)
	unlock()
	if err != nil {
		return domain.Habit{}, fmt.Errorf("create habit: %w", err)
	}

	t.publish(Event{Type: EventHabitCreated, UserID: userID, HabitID: h.ID, Habit: &h})
	return h, nil
}

// GetHabit returns a single habit.
func (t *Tracker) GetHabit(ctx context.Context, userID int64, id string) (domain.Habit, error) {
	h, err := t.habits.GetHabit(ctx, userID, id)
	if err != nil {
		return domain.Habit{}, fmt.Errorf("get habit: %w", err)
	}
	if h == nil {
		return domain.Habit{}, &domain.NotFoundError{Kind: "habit", ID: id}
	}
	return *h, nil
}

// ListHabits returns the user's habits in creation order.
func (t *Tracker) ListHabits(ctx context.Context, userID int64) ([]domain.Habit, error) {
	hs, err := t.habits.ListHabits(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	if hs == nil {
		hs = []domain.Habit{}
	}
	return hs, nil
}

// UpdateHabit merges patch into the habit. Streaks and badges are not
// editable this way. Nothing is written when validation fails.
func (t *Tracker) UpdateHabit(ctx context.Context, userID int64, id string, patch domain.HabitPatch) (domain.Habit, error) {
	unlock := t.lock(userID)
	h, err := t.updateHabit(ctx, userID, id, patch)
	unlock()
	if err != nil {
		return domain.Habit{}, err
	}

	t.publish(Event{Type: EventHabitUpdated, UserID: userID, HabitID: id, Habit: &h})
	return h, nil
}

func (t *Tracker) updateHabit(ctx context.Context, userID int64, id string, patch domain.HabitPatch) (domain.Habit, error) {
	cur, err := t.habits.GetHabit(ctx, userID, id)
	if err != nil {
		return domain.Habit{}, fmt.Errorf("get habit: %w", err)
	}
	if cur == nil {
		return domain.Habit{}, &domain.NotFoundError{Kind: "habit", ID: id}
	}

	merged := patch.Apply(*cur)
	in := domain.HabitInput{Name: merged.Name, Emoji: merged.Emoji, Goal: merged.Goal, Color: merged.Color}
	if err := in.Validate(); err != nil {
		return domain.Habit{}, err
	}
	if err := t.habits.SaveHabit(ctx, merged); err != nil {
		return domain.Habit{}, fmt.Errorf("save habit: %w", err)
	}
	return merged, nil
}

// DeleteHabit removes the habit and all of its checks. Deleting an unknown
// habit is not an error.
func (t *Tracker) DeleteHabit(ctx context.Context, userID int64, id string) error {
	unlock := t.lock(userID)
	existed, err := t.deleteHabit(ctx, userID, id)
	unlock()
	if err != nil {
		return err
	}

	if existed {
		t.publish(Event{Type: EventHabitDeleted, UserID: userID, HabitID: id})
	}
	return nil
}

func (t *Tracker) deleteHabit(ctx context.Context, userID int64, id string) (bool, error) {
	h, err := t.habits.GetHabit(ctx, userID, id)
	if err != nil {
		return false, fmt.Errorf("get habit: %w", err)
	}
	if h == nil {
		return false, nil
	}
	if err := t.habits.DeleteHabit(ctx, userID, id); err != nil {
		return false, fmt.Errorf("delete habit: %w", err)
	}
	return true, nil
}

// ToggleCheck flips the check for (habitID, day). Removing a check leaves
// the habit's streak and badge fields untouched. Adding one recomputes the
// current streak, raises the longest streak if needed, and unlocks any
// badges the streak has reached. The newly unlocked badges are returned in
// ascending milestone order.
func (t *Tracker) ToggleCheck(ctx context.Context, userID int64, habitID string, day domain.Day) (ToggleResult, error) {
	unlock := t.lock(userID)
	res, h, err := t.toggleCheck(ctx, userID, habitID, day)
	unlock()
	if err != nil {
		return ToggleResult{}, err
	}

	t.publish(Event{Type: EventCheckToggled, UserID: userID, HabitID: habitID, Day: day.String(), Checked: res.Checked, Habit: h})
	if len(res.Badges) > 0 {
		t.publish(Event{Type: EventBadgesUnlocked, UserID: userID, HabitID: habitID, Badges: res.Badges})
	}
	return res, nil
}

func (t *Tracker) toggleCheck(ctx context.Context, userID int64, habitID string, day domain.Day) (ToggleResult, *domain.Habit, error) {
	h, err := t.habits.GetHabit(ctx, userID, habitID)
	if err != nil {
		return ToggleResult{}, nil, fmt.Errorf("get habit: %w", err)
	}
	if h == nil {
		return ToggleResult{}, nil, &domain.NotFoundError{Kind: "habit", ID: habitID}
	}

	existing, err := t.checks.GetCheck(ctx, userID, habitID, day)
	if err != nil {
		return ToggleResult{}, nil, fmt.Errorf("get check: %w", err)
	}
	if existing != nil {
		if err := t.checks.DeleteCheck(ctx, userID, habitID, day); err != nil {
			return ToggleResult{}, nil, fmt.Errorf("delete check: %w", err)
		}
		return ToggleResult{Checked: false, Badges: []domain.Badge{}}, h, nil
	}

	now := t.clock.now()
	check := domain.CheckRecord{
		ID:          uuid.NewString(),
		HabitID:     habitID,
		Day:         day,
		Completed:   true,
		CompletedAt: now,
	}
	if err := t.checks.AddCheck(ctx, userID, check); err != nil {
		return ToggleResult{}, nil, fmt.Errorf("add check: %w", err)
	}

	all, err := t.checks.ListChecks(ctx, userID, habitID)
	if err != nil {
		t.rollbackCheck(ctx, userID, habitID, day)
		return ToggleResult{}, nil, fmt.Errorf("list checks: %w", err)
	}
	streak := domain.CurrentStreak(domain.CompletedDays(all), t.clock.Today())
	badges := domain.AwardBadges(*h, streak, now, uuid.NewString)

	h.CurrentStreak = streak
	h.LongestStreak = max(h.LongestStreak, streak)
	h.Badges = append(h.Badges, badges...)
	if err := t.habits.SaveHabit(ctx, *h); err != nil {
		t.rollbackCheck(ctx, userID, habitID, day)
		return ToggleResult{}, nil, fmt.Errorf("save habit: %w", err)
	}

	if badges == nil {
		badges = []domain.Badge{}
	}
	for _, b := range badges {
		t.logger.Info("badge unlocked", "user_id", userID, "habit_id", habitID, "badge", b.Name, "milestone", b.Milestone)
	}
	return ToggleResult{Checked: true, Badges: badges}, h, nil
}

func (t *Tracker) rollbackCheck(ctx context.Context, userID int64, habitID string, day domain.Day) {
	if err := t.checks.DeleteCheck(ctx, userID, habitID, day); err != nil {
		t.logger.Error("rollback check failed", "user_id", userID, "habit_id", habitID, "day", day.String(), "error", err)
	}
}

// ListChecks returns the habit's checks ordered by day.
func (t *Tracker) ListChecks(ctx context.Context, userID int64, habitID string) ([]domain.CheckRecord, error) {
	if _, err := t.GetHabit(ctx, userID, habitID); err != nil {
		return nil, err
	}
	cs, err := t.checks.ListChecks(ctx, userID, habitID)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	if cs == nil {
		cs = []domain.CheckRecord{}
	}
	return cs, nil
}

// IsChecked reports whether the habit has a completed check on day.
func (t *Tracker) IsChecked(ctx context.Context, userID int64, habitID string, day domain.Day) (bool, error) {
	c, err := t.checks.GetCheck(ctx, userID, habitID, day)
	if err != nil {
		return false, fmt.Errorf("get check: %w", err)
	}
	return c != nil && c.Completed, nil
}

// Streaks recomputes both streak values from the ledger without storing
// them.
func (t *Tracker) Streaks(ctx context.Context, userID int64, habitID string) (domain.Streaks, error) {
	cs, err := t.ListChecks(ctx, userID, habitID)
	if err != nil {
		return domain.Streaks{}, err
	}
	return domain.ComputeStreaks(cs, t.clock.Today()), nil
}
