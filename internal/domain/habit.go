package domain

import (
	"context"
	"strings"
	"time"
)

// Goal bounds, in days per week.
const (
	MinGoal = 1
	MaxGoal = 7
)

// Habit is a recurring practice the user tracks.
type Habit struct {
	ID            string    `json:"id"`
	UserID        int64     `json:"userId"`
	Name          string    `json:"name"`
	Emoji         string    `json:"emoji"`
	Goal          int       `json:"goal"`
	Color         string    `json:"color"`
	CurrentStreak int       `json:"currentStreak"`
	LongestStreak int       `json:"longestStreak"`
	Badges        []Badge   `json:"badges"`
	CreatedAt     time.Time `json:"createdAt"`
}

// HasMilestone reports whether h already unlocked the badge for milestone.
func (h *Habit) HasMilestone(milestone int) bool {
	for _, b := range h.Badges {
		if b.Milestone == milestone {
			return true
		}
	}
	return false
}

// HabitInput carries the user-editable fields of a new habit.
type HabitInput struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
	Goal  int    `json:"goal"`
	Color string `json:"color"`
}

// Validate checks the name and goal.
func (in HabitInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if in.Goal < MinGoal || in.Goal > MaxGoal {
		return &ValidationError{Field: "goal", Message: "must be between 1 and 7 days per week"}
	}
	return nil
}

// HabitPatch is a partial update; nil fields are left untouched.
type HabitPatch struct {
	Name  *string `json:"name"`
	Emoji *string `json:"emoji"`
	Goal  *int    `json:"goal"`
	Color *string `json:"color"`
}

// Apply returns h with the patch merged in. Streak and badge fields are
// never touched.
func (p HabitPatch) Apply(h Habit) Habit {
	if p.Name != nil {
		h.Name = strings.TrimSpace(*p.Name)
	}
	if p.Emoji != nil {
		h.Emoji = *p.Emoji
	}
	if p.Goal != nil {
		h.Goal = *p.Goal
	}
	if p.Color != nil {
		h.Color = *p.Color
	}
	return h
}

// CheckRecord marks a habit as done on a calendar day.
type CheckRecord struct {
	ID          string    `json:"id"`
	HabitID     string    `json:"habitId"`
	Day         Day       `json:"date"`
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completedAt"`
}

// HabitRepository is the port for habit persistence. Lookups of missing
// habits return nil, nil.
type HabitRepository interface {
	CreateHabit(ctx context.Context, h Habit) error
	GetHabit(ctx context.Context, userID int64, id string) (*Habit, error)
	ListHabits(ctx context.Context, userID int64) ([]Habit, error)
	// SaveHabit updates the habit row and inserts any badges not yet stored.
	SaveHabit(ctx context.Context, h Habit) error
	// DeleteHabit removes the habit together with its checks and badges.
	DeleteHabit(ctx context.Context, userID int64, id string) error
}

// CheckRepository is the port for the check ledger.
type CheckRepository interface {
	GetCheck(ctx context.Context, userID int64, habitID string, day Day) (*CheckRecord, error)
	AddCheck(ctx context.Context, userID int64, c CheckRecord) error
	DeleteCheck(ctx context.Context, userID int64, habitID string, day Day) error
	// ListChecks returns the habit's checks ordered by day.
	ListChecks(ctx context.Context, userID int64, habitID string) ([]CheckRecord, error)
	// ListAllChecks returns every check belonging to the user.
	ListAllChecks(ctx context.Context, userID int64) ([]CheckRecord, error)
}
