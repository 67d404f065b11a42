package app

import (
	"sync"

	"habits/internal/domain"
)

// EventType names a state change published by the Tracker.
type EventType string

const (
	EventHabitCreated   EventType = "habit_created"
	EventHabitUpdated   EventType = "habit_updated"
	EventHabitDeleted   EventType = "habit_deleted"
	EventCheckToggled   EventType = "check_toggled"
	EventBadgesUnlocked EventType = "badges_unlocked"
	EventDemoLoaded     EventType = "demo_loaded"
)

// Event describes a committed mutation of one user's habit state.
type Event struct {
	Type    EventType      `json:"type"`
	UserID  int64          `json:"-"`
	HabitID string         `json:"habitId,omitempty"`
	Day     string         `json:"date,omitempty"`
	Checked bool           `json:"checked,omitempty"`
	Habit   *domain.Habit  `json:"habit,omitempty"`
	Badges  []domain.Badge `json:"badges,omitempty"`
}

// notifier fans events out to subscribers synchronously.
type notifier struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

// Subscribe registers fn for every future event and returns a function that
// removes the subscription. fn runs on the mutating goroutine after the
// mutation is committed, so it must not block.
func (n *notifier) Subscribe(fn func(Event)) (cancel func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]func(Event))
	}
	id := n.next
	n.next++
	n.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

func (n *notifier) publish(ev Event) {
	n.mu.RLock()
	fns := make([]func(Event), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
