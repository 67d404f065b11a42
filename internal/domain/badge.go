package domain

import "time"

// Badge is a milestone reward. Catalog entries carry no ID or UnlockedAt.
type Badge struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Emoji       string    `json:"emoji"`
	Milestone   int       `json:"milestone"`
	UnlockedAt  time.Time `json:"unlockedAt,omitzero"`
}

var catalog = []Badge{
	{Name: "First Steps", Description: "Complete your first day", Emoji: "🌱", Milestone: 1},
	{Name: "Week Warrior", Description: "7 day streak", Emoji: "🔥", Milestone: 7},
	{Name: "Monthly Master", Description: "30 day streak", Emoji: "💎", Milestone: 30},
	{Name: "Century Club", Description: "100 day streak", Emoji: "👑", Milestone: 100},
	{Name: "Legendary", Description: "365 day streak", Emoji: "🌟", Milestone: 365},
}

// Catalog returns a copy of the badge definitions in ascending milestone
// order.
func Catalog() []Badge {
	out := make([]Badge, len(catalog))
	copy(out, catalog)
	return out
}

// AwardBadges returns the catalog badges reached by streak that h has not
// unlocked yet, ascending by milestone, each stamped with a fresh ID and now.
func AwardBadges(h Habit, streak int, now time.Time, newID func() string) []Badge {
	var out []Badge
	for _, def := range catalog {
		if def.Milestone > streak {
			break
		}
		if h.HasMilestone(def.Milestone) {
			continue
		}
		b := def
		b.ID = newID()
		b.UnlockedAt = now
		out = append(out, b)
	}
	return out
}
