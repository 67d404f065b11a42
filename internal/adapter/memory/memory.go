// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"habits/internal/domain"
)

// DB implements an in-memory database storage.
type DB struct {
	mu       sync.Mutex
	habits   []domain.Habit
	checks   []domain.CheckRecord
	owners   map[string]int64
	users    []*domain.User
	sessions map[string]*domain.Session

	userIDCounter int64
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		owners:   make(map[string]int64),
		sessions: make(map[string]*domain.Session),
	}
}

// Ensure interfaces are met.
var _ domain.HabitRepository = (*DB)(nil)
var _ domain.CheckRepository = (*DB)(nil)
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

func cloneHabit(h domain.Habit) domain.Habit {
	badges := make([]domain.Badge, len(h.Badges))
	copy(badges, h.Badges)
	h.Badges = badges
	return h
}

func (db *DB) habitIndex(userID int64, id string) int {
	for i := range db.habits {
		if db.habits[i].ID == id && db.habits[i].UserID == userID {
			return i
		}
	}
	return -1
}

// --- HabitRepository ---

// CreateHabit appends a habit.
func (db *DB) CreateHabit(ctx context.Context, h domain.Habit) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.habits {
		if existing.ID == h.ID {
			return errors.New("habit already exists")
		}
	}
	db.habits = append(db.habits, cloneHabit(h))
	db.owners[h.ID] = h.UserID
	return nil
}

// GetHabit returns a copy of the habit, or nil if it does not exist.
func (db *DB) GetHabit(ctx context.Context, userID int64, id string) (*domain.Habit, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	i := db.habitIndex(userID, id)
	if i < 0 {
		return nil, nil
	}
	h := cloneHabit(db.habits[i])
	return &h, nil
}

// ListHabits returns the user's habits in insertion order.
func (db *DB) ListHabits(ctx context.Context, userID int64) ([]domain.Habit, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := make([]domain.Habit, 0, len(db.habits))
	for _, h := range db.habits {
		if h.UserID == userID {
			result = append(result, cloneHabit(h))
		}
	}
	return result, nil
}

// SaveHabit replaces the stored habit.
func (db *DB) SaveHabit(ctx context.Context, h domain.Habit) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	i := db.habitIndex(h.UserID, h.ID)
	if i < 0 {
		return errors.New("habit not found")
	}
	db.habits[i] = cloneHabit(h)
	return nil
}

// DeleteHabit removes the habit and its checks.
func (db *DB) DeleteHabit(ctx context.Context, userID int64, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	i := db.habitIndex(userID, id)
	if i < 0 {
		return nil
	}
	db.habits = append(db.habits[:i], db.habits[i+1:]...)
	delete(db.owners, id)

	kept := db.checks[:0]
	for _, c := range db.checks {
		if c.HabitID != id {
			kept = append(kept, c)
		}
	}
	db.checks = kept
	return nil
}

// --- CheckRepository ---

func (db *DB) ownedBy(userID int64, habitID string) bool {
	owner, ok := db.owners[habitID]
	return ok && owner == userID
}

// GetCheck returns the check for (habitID, day), or nil.
func (db *DB) GetCheck(ctx context.Context, userID int64, habitID string, day domain.Day) (*domain.CheckRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if !db.ownedBy(userID, habitID) {
		return nil, nil
	}
	for _, c := range db.checks {
		if c.HabitID == habitID && c.Day == day {
			ret := c
			return &ret, nil
		}
	}
	return nil, nil
}

// AddCheck stores a check. The habit must exist and the day must be free.
func (db *DB) AddCheck(ctx context.Context, userID int64, c domain.CheckRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if !db.ownedBy(userID, c.HabitID) {
		return errors.New("habit not found")
	}
	for _, existing := range db.checks {
		if existing.HabitID == c.HabitID && existing.Day == c.Day {
			return domain.ErrDuplicateCheck
		}
	}
	c.CompletedAt = c.CompletedAt.UTC()
	db.checks = append(db.checks, c)
	return nil
}

// DeleteCheck removes the check for (habitID, day) if present.
func (db *DB) DeleteCheck(ctx context.Context, userID int64, habitID string, day domain.Day) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if !db.ownedBy(userID, habitID) {
		return nil
	}
	for i, c := range db.checks {
		if c.HabitID == habitID && c.Day == day {
			db.checks = append(db.checks[:i], db.checks[i+1:]...)
			return nil
		}
	}
	return nil
}

// ListChecks returns the habit's checks sorted by day.
func (db *DB) ListChecks(ctx context.Context, userID int64, habitID string) ([]domain.CheckRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := []domain.CheckRecord{}
	if !db.ownedBy(userID, habitID) {
		return result, nil
	}
	for _, c := range db.checks {
		if c.HabitID == habitID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Day < result[j].Day
	})
	return result, nil
}

// ListAllChecks returns every check of the user's habits.
func (db *DB) ListAllChecks(ctx context.Context, userID int64) ([]domain.CheckRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := []domain.CheckRecord{}
	for _, c := range db.checks {
		if db.ownedBy(userID, c.HabitID) {
			result = append(result, c)
		}
	}
	return result, nil
}

// --- UserRepository ---

// GetByUsername retrieves a user by username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			ret := *u
			return &ret, nil
		}
	}
	// Return nil if not found
	return nil, nil
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			ret := *u
			return &ret, nil
		}
	}
	return nil, nil
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			return nil, errors.New("user already exists")
		}
	}

	db.userIDCounter++
	u := &domain.User{
		ID:           db.userIDCounter,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	db.users = append(db.users, u)
	ret := *u
	return &ret, nil
}

// Count returns the total number of users.
func (db *DB) Count(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.users), nil
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.sessions[token] = &domain.Session{
		Token:     token,
		UserID:    userID,
		UserAgent: userAgent,
		IP:        ip,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s, ok := r.db.sessions[token]; ok {
		if time.Now().After(s.ExpiresAt) {
			delete(r.db.sessions, token)
			return nil, nil
		}
		ret := *s
		return &ret, nil
	}
	return nil, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, token)
	return nil
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
		}
	}
	return nil
}
