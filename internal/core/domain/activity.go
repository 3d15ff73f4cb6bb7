package domain

import "time"

// UserActivity keeps the per-account admission counters. It is mutated only by
// the registry when a new request is admitted and counters are never
// decremented.
type UserActivity struct {
	Requester     string
	Chain         Chain
	LastRequestAt time.Time
	DailyCounts   map[int64]int
	TotalRequests int64
}

// CountForDay returns the request count for a day index
func (a *UserActivity) CountForDay(dayIndex int64) int {
	if a == nil || a.DailyCounts == nil {
		return 0
	}
	return a.DailyCounts[dayIndex]
}

// Record registers one admitted request at ts in the dayIndex bucket
func (a *UserActivity) Record(ts time.Time, dayIndex int64) {
	if a.DailyCounts == nil {
		a.DailyCounts = make(map[int64]int)
	}
	a.LastRequestAt = ts
	a.DailyCounts[dayIndex]++
	a.TotalRequests++
}
