package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"habits/internal/domain"

	"github.com/google/uuid"
)

const (
	demoHistoryDays    = 30
	demoCompletionRate = 0.7
)

var demoHabits = []struct {
	input   domain.HabitInput
	ageDays int
}{
	{domain.HabitInput{Name: "Morning Exercise", Emoji: "🏃‍♂️", Goal: 5, Color: "gradient-success"}, 30},
	{domain.HabitInput{Name: "Read 30 minutes", Emoji: "📚", Goal: 7, Color: "gradient-primary"}, 20},
	{domain.HabitInput{Name: "Meditation", Emoji: "🧘‍♀️", Goal: 4, Color: "gradient-warning"}, 10},
}

// NewRand returns a PRNG for LoadDemoData. A zero seed draws one from the
// wall clock.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// LoadDemoData replaces the user's habits with a fixed set of sample habits
// and 30 days of random history, each day checked with probability 0.7.
// Streaks are derived from the generated history and every milestone the
// longest run reached is unlocked.
func (t *Tracker) LoadDemoData(ctx context.Context, userID int64, rng *rand.Rand) ([]domain.Habit, error) {
	if rng == nil {
		rng = NewRand(0)
	}

	unlock := t.lock(userID)
	hs, err := t.loadDemoData(ctx, userID, rng)
	unlock()
	if err != nil {
		return nil, err
	}

	t.logger.Info("demo data loaded", "user_id", userID, "habits", len(hs))
	t.publish(Event{Type: EventDemoLoaded, UserID: userID})
	return hs, nil
}

func (t *Tracker) loadDemoData(ctx context.Context, userID int64, rng *rand.Rand) ([]domain.Habit, error) {
	existing, err := t.habits.ListHabits(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	for _, h := range existing {
		if err := t.habits.DeleteHabit(ctx, userID, h.ID); err != nil {
			return nil, fmt.Errorf("delete habit: %w", err)
		}
	}

	now := t.clock.now()
	today := t.clock.Today()

	hs := make([]domain.Habit, len(demoHabits))
	for i, d := range demoHabits {
		hs[i] = domain.Habit{
			ID:        uuid.NewString(),
			UserID:    userID,
			Name:      d.input.Name,
			Emoji:     d.input.Emoji,
			Goal:      d.input.Goal,
			Color:     d.input.Color,
			Badges:    []domain.Badge{},
			CreatedAt: now.AddDate(0, 0, -d.ageDays),
		}
		if err := t.habits.CreateHabit(ctx, hs[i]); err != nil {
			return nil, fmt.Errorf("create habit: %w", err)
		}
	}

	history := make([][]domain.CheckRecord, len(hs))
	for i := 0; i < demoHistoryDays; i++ {
		day := today.AddDays(-i)
		for j, h := range hs {
			if rng.Float64() >= demoCompletionRate {
				continue
			}
			c := domain.CheckRecord{
				ID:          uuid.NewString(),
				HabitID:     h.ID,
				Day:         day,
				Completed:   true,
				CompletedAt: day.Time(),
			}
			if err := t.checks.AddCheck(ctx, userID, c); err != nil {
				return nil, fmt.Errorf("add check: %w", err)
			}
			history[j] = append(history[j], c)
		}
	}

	for i := range hs {
		st := domain.ComputeStreaks(history[i], today)
		hs[i].CurrentStreak = st.Current
		hs[i].LongestStreak = st.Longest
		hs[i].Badges = append(hs[i].Badges, domain.AwardBadges(hs[i], st.Longest, now, uuid.NewString)...)
		if err := t.habits.SaveHabit(ctx, hs[i]); err != nil {
			return nil, fmt.Errorf("save habit: %w", err)
		}
	}
	return hs, nil
}
