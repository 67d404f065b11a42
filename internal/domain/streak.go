package domain

import "sort"

// Streaks holds the derived streak values for a habit.
type Streaks struct {
	Current int `json:"currentStreak"`
	Longest int `json:"longestStreak"`
}

// CompletedDays returns the sorted unique days of the completed checks.
func CompletedDays(checks []CheckRecord) []Day {
	seen := make(map[Day]struct{}, len(checks))
	days := make([]Day, 0, len(checks))
	for _, c := range checks {
		if !c.Completed {
			continue
		}
		if _, ok := seen[c.Day]; ok {
			continue
		}
		seen[c.Day] = struct{}{}
		days = append(days, c.Day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

// CurrentStreak counts consecutive completed days ending today. When today
// is not done but yesterday is, the run ending yesterday still counts.
func CurrentStreak(days []Day, today Day) int {
	done := make(map[Day]bool, len(days))
	for _, d := range days {
		done[d] = true
	}

	start := today
	if !done[today] {
		start = today.AddDays(-1)
	}
	n := 0
	for done[start.AddDays(-n)] {
		n++
	}
	return n
}

// LongestStreak returns the longest run of consecutive days in the sorted,
// de-duplicated slice days.
func LongestStreak(days []Day) int {
	if len(days) == 0 {
		return 0
	}
	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i] == days[i-1].AddDays(1) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// ComputeStreaks derives both streak values from a habit's checks.
func ComputeStreaks(checks []CheckRecord, today Day) Streaks {
	days := CompletedDays(checks)
	return Streaks{
		Current: CurrentStreak(days, today),
		Longest: LongestStreak(days),
	}
}
