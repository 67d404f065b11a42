package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"habits/internal/domain"
)

// Every query joins habits so a user can only reach checks of their own
// habits.

// GetCheck returns the check for (habitID, day), or nil.
func (d *DB) GetCheck(ctx context.Context, userID int64, habitID string, day domain.Day) (*domain.CheckRecord, error) {
	var c domain.CheckRecord
	err := d.sql.QueryRowContext(ctx,
		`SELECT c.id, c.habit_id, c.day, c.completed, c.completed_at
		FROM checks c JOIN habits h ON h.id = c.habit_id
		WHERE h.user_id = $1 AND c.habit_id = $2 AND c.day = $3;`,
		userID, habitID, day,
	).Scan(&c.ID, &c.HabitID, &c.Day, &c.Completed, &c.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AddCheck inserts a check. It fails when the habit is not the user's or
// when the day is already checked.
func (d *DB) AddCheck(ctx context.Context, userID int64, c domain.CheckRecord) error {
	res, err := d.sql.ExecContext(ctx,
		`INSERT INTO checks(id, habit_id, day, completed, completed_at)
		SELECT $1::text, $2::text, $3::date, $4::boolean, $5::timestamptz WHERE EXISTS (SELECT 1 FROM habits WHERE id = $2 AND user_id = $6);`,
		c.ID, c.HabitID, c.Day, c.Completed, c.CompletedAt.UTC(), userID,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateCheck
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("habit %q not found", c.HabitID)
	}
	return nil
}

// DeleteCheck removes the check for (habitID, day) if present.
func (d *DB) DeleteCheck(ctx context.Context, userID int64, habitID string, day domain.Day) error {
	_, err := d.sql.ExecContext(ctx,
		"DELETE FROM checks c USING habits h WHERE h.id = c.habit_id AND h.user_id = $1 AND c.habit_id = $2 AND c.day = $3;",
		userID, habitID, day,
	)
	return err
}

// ListChecks returns the habit's checks ordered by day.
func (d *DB) ListChecks(ctx context.Context, userID int64, habitID string) ([]domain.CheckRecord, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT c.id, c.habit_id, c.day, c.completed, c.completed_at
		FROM checks c JOIN habits h ON h.id = c.habit_id
		WHERE h.user_id = $1 AND c.habit_id = $2 ORDER BY c.day;`,
		userID, habitID,
	)
	if err != nil {
		return nil, err
	}
	return scanChecks(rows)
}

// ListAllChecks returns every check of the user's habits.
func (d *DB) ListAllChecks(ctx context.Context, userID int64) ([]domain.CheckRecord, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT c.id, c.habit_id, c.day, c.completed, c.completed_at
		FROM checks c JOIN habits h ON h.id = c.habit_id
		WHERE h.user_id = $1 ORDER BY c.day, h.seq;`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	return scanChecks(rows)
}

func scanChecks(rows *sql.Rows) ([]domain.CheckRecord, error) {
	defer rows.Close()

	out := []domain.CheckRecord{}
	for rows.Next() {
		var c domain.CheckRecord
		if err := rows.Scan(&c.ID, &c.HabitID, &c.Day, &c.Completed, &c.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
