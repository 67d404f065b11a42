package app

import (
	"context"
	"fmt"
	"math"

	"habits/internal/domain"
)

// Week-count bounds for completion series.
const (
	DefaultWeekCount = 8
	MaxWeekCount     = 52
)

var weekdayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// AnalyticsService computes read-only progress views over the ledger.
type AnalyticsService struct {
	habits domain.HabitRepository
	checks domain.CheckRepository
	clock  Clock
}

// NewAnalyticsService creates an AnalyticsService backed by the given
// repositories.
func NewAnalyticsService(habits domain.HabitRepository, checks domain.CheckRepository, clock Clock) *AnalyticsService {
	return &AnalyticsService{habits: habits, checks: checks, clock: clock}
}

// WeekRate is the completion rate of one Monday-to-Sunday week.
type WeekRate struct {
	Week  string     `json:"week"`
	Start domain.Day `json:"start"`
	Rate  int        `json:"rate"`
}

// HabitSeries is a habit's completion-rate history.
type HabitSeries struct {
	HabitID   string     `json:"habitId"`
	HabitName string     `json:"habitName"`
	Data      []WeekRate `json:"data"`
}

// WeekdayCount is the number of completions that fell on a weekday.
type WeekdayCount struct {
	Day       string `json:"day"`
	Completed int    `json:"completed"`
}

// Snapshot bundles every analytics view for a user.
type Snapshot struct {
	CompletionRates []HabitSeries  `json:"completionRates"`
	WeeklyStats     []WeekdayCount `json:"weeklyStats"`
}

// WeeklyCompletionSeries returns the habit's completion rate for each of the
// last weeks weeks, oldest first. Rates are percentages of the weekly goal,
// capped at 100.
func (s *AnalyticsService) WeeklyCompletionSeries(ctx context.Context, userID int64, habitID string, weeks int) ([]WeekRate, error) {
	h, err := s.habits.GetHabit(ctx, userID, habitID)
	if err != nil {
		return nil, fmt.Errorf("get habit: %w", err)
	}
	if h == nil {
		return nil, &domain.NotFoundError{Kind: "habit", ID: habitID}
	}
	checks, err := s.checks.ListChecks(ctx, userID, habitID)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	return weeklySeries(*h, checks, s.clock.Today(), weeks), nil
}

// WeekdayHistogram counts completed checks across all of the user's habits
// per weekday, Monday first.
func (s *AnalyticsService) WeekdayHistogram(ctx context.Context, userID int64) ([]WeekdayCount, error) {
	checks, err := s.checks.ListAllChecks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	return weekdayHistogram(checks), nil
}

// Snapshot computes the completion series of every habit and the weekday
// histogram in one pass over the ledger.
func (s *AnalyticsService) Snapshot(ctx context.Context, userID int64) (Snapshot, error) {
	hs, err := s.habits.ListHabits(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list habits: %w", err)
	}
	checks, err := s.checks.ListAllChecks(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list checks: %w", err)
	}

	byHabit := make(map[string][]domain.CheckRecord, len(hs))
	for _, c := range checks {
		byHabit[c.HabitID] = append(byHabit[c.HabitID], c)
	}

	today := s.clock.Today()
	snap := Snapshot{
		CompletionRates: make([]HabitSeries, 0, len(hs)),
		WeeklyStats:     weekdayHistogram(checks),
	}
	for _, h := range hs {
		snap.CompletionRates = append(snap.CompletionRates, HabitSeries{
			HabitID:   h.ID,
			HabitName: h.Name,
			Data:      weeklySeries(h, byHabit[h.ID], today, DefaultWeekCount),
		})
	}
	return snap, nil
}

func weeklySeries(h domain.Habit, checks []domain.CheckRecord, today domain.Day, weeks int) []WeekRate {
	if weeks <= 0 {
		weeks = DefaultWeekCount
	}
	weeks = min(weeks, MaxWeekCount)

	out := make([]WeekRate, 0, weeks)
	for i := weeks - 1; i >= 0; i-- {
		start := today.AddDays(-7 * i).StartOfWeek()
		end := start.AddDays(6)

		n := 0
		for _, c := range checks {
			if c.HabitID == h.ID && c.Completed && !c.Day.Before(start) && !c.Day.After(end) {
				n++
			}
		}
		out = append(out, WeekRate{
			Week:  start.Time().Format("Jan 02"),
			Start: start,
			Rate:  completionRate(n, h.Goal),
		})
	}
	return out
}

func completionRate(completed, goal int) int {
	if goal <= 0 {
		return 0
	}
	rate := int(math.Round(float64(completed) / float64(goal) * 100))
	return min(max(rate, 0), 100)
}

func weekdayHistogram(checks []domain.CheckRecord) []WeekdayCount {
	var counts [7]int
	for _, c := range checks {
		if !c.Completed {
			continue
		}
		counts[(int(c.Day.Weekday())+6)%7]++
	}
	out := make([]WeekdayCount, 7)
	for i, label := range weekdayLabels {
		out[i] = WeekdayCount{Day: label, Completed: counts[i]}
	}
	return out
}
