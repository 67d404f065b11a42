package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"habits/internal/domain"
)

var (
	_ domain.HabitRepository   = (*DB)(nil)
	_ domain.CheckRepository   = (*DB)(nil)
	_ domain.UserRepository    = (*DB)(nil)
	_ domain.SessionRepository = (*SessionRepo)(nil)
)

const habitColumns = "id, user_id, name, emoji, goal, color, current_streak, longest_streak, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(row rowScanner) (domain.Habit, error) {
	var h domain.Habit
	err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.Emoji, &h.Goal, &h.Color, &h.CurrentStreak, &h.LongestStreak, &h.CreatedAt)
	h.Badges = []domain.Badge{}
	return h, err
}

// CreateHabit inserts a habit and any badges it already carries.
func (d *DB) CreateHabit(ctx context.Context, h domain.Habit) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO habits("+habitColumns+") VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9);",
			h.ID, h.UserID, h.Name, h.Emoji, h.Goal, h.Color, h.CurrentStreak, h.LongestStreak, h.CreatedAt.UTC(),
		)
		if err != nil {
			return err
		}
		return insertBadges(ctx, tx, h.ID, h.Badges)
	})
}

// GetHabit returns the habit with its badges, or nil if it does not exist.
func (d *DB) GetHabit(ctx context.Context, userID int64, id string) (*domain.Habit, error) {
	h, err := scanHabit(d.sql.QueryRowContext(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE id = $1 AND user_id = $2;", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := d.sql.QueryContext(ctx,
		"SELECT habit_id, id, name, description, emoji, milestone, unlocked_at FROM habit_badges WHERE habit_id = $1 ORDER BY milestone;", id)
	if err != nil {
		return nil, err
	}
	byHabit, err := scanBadges(rows)
	if err != nil {
		return nil, err
	}
	if bs, ok := byHabit[id]; ok {
		h.Badges = bs
	}
	return &h, nil
}

// ListHabits returns the user's habits in creation order.
func (d *DB) ListHabits(ctx context.Context, userID int64) ([]domain.Habit, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE user_id = $1 ORDER BY seq;", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	badgeRows, err := d.sql.QueryContext(ctx,
		`SELECT b.habit_id, b.id, b.name, b.description, b.emoji, b.milestone, b.unlocked_at
		FROM habit_badges b JOIN habits h ON h.id = b.habit_id
		WHERE h.user_id = $1 ORDER BY b.milestone;`, userID)
	if err != nil {
		return nil, err
	}
	byHabit, err := scanBadges(badgeRows)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if bs, ok := byHabit[out[i].ID]; ok {
			out[i].Badges = bs
		}
	}
	return out, nil
}

// SaveHabit updates the habit row and inserts badges not stored yet.
func (d *DB) SaveHabit(ctx context.Context, h domain.Habit) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE habits SET name = $1, emoji = $2, goal = $3, color = $4, current_streak = $5, longest_streak = $6
			WHERE id = $7 AND user_id = $8;`,
			h.Name, h.Emoji, h.Goal, h.Color, h.CurrentStreak, h.LongestStreak, h.ID, h.UserID,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("habit %q not found", h.ID)
		}
		return insertBadges(ctx, tx, h.ID, h.Badges)
	})
}

// DeleteHabit removes the habit. Checks and badges go with it through
// ON DELETE CASCADE.
func (d *DB) DeleteHabit(ctx context.Context, userID int64, id string) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM habits WHERE id = $1 AND user_id = $2;", id, userID)
	return err
}

func insertBadges(ctx context.Context, tx *sql.Tx, habitID string, badges []domain.Badge) error {
	for _, b := range badges {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO habit_badges(id, habit_id, name, description, emoji, milestone, unlocked_at)
			VALUES($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (habit_id, milestone) DO NOTHING;`,
			b.ID, habitID, b.Name, b.Description, b.Emoji, b.Milestone, b.UnlockedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert badge %d: %w", b.Milestone, err)
		}
	}
	return nil
}

func scanBadges(rows *sql.Rows) (map[string][]domain.Badge, error) {
	defer rows.Close()

	out := map[string][]domain.Badge{}
	for rows.Next() {
		var habitID string
		var b domain.Badge
		if err := rows.Scan(&habitID, &b.ID, &b.Name, &b.Description, &b.Emoji, &b.Milestone, &b.UnlockedAt); err != nil {
			return nil, err
		}
		out[habitID] = append(out[habitID], b)
	}
	return out, rows.Err()
}
