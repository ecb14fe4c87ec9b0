// Package stats derives dashboard metrics from a task snapshot. Every
// function is pure: the reference time is always passed in.
package stats

import (
	"time"

	"github.com/sadopc/taskdeck/internal/model"
)

// Window is the number of calendar days in the trend series.
const Window = 7

type Stats struct {
	Total          int
	Completed      int
	Pending        int
	CompletionRate int

	// Days, CompletedPerDay and CompletionRatePerDay are indexed oldest
	// first; index Window-1 is the day of the reference time.
	Days                 [Window]time.Time
	CompletedPerDay      [Window]int
	CompletionRatePerDay [Window]int
}

// Compute derives Stats from tasks. Calendar days are taken in now's
// location.
func Compute(tasks []model.Task, now time.Time) Stats {
	var s Stats
	s.Total = len(tasks)
	for _, t := range tasks {
		if t.IsCompleted {
			s.Completed++
		} else if !t.IsDeleted {
			s.Pending++
		}
	}
	s.CompletionRate = Percent(s.Completed, s.Total)

	loc := now.Location()
	today := startOfDay(now, loc)
	for i := 0; i < Window; i++ {
		s.Days[i] = today.AddDate(0, 0, i-(Window-1))
	}

	var dayTotal, dayDone [Window]int
	for _, t := range tasks {
		updated := dayIndex(s.Days, t.UpdatedAt, loc)
		if t.IsCompleted && updated >= 0 {
			s.CompletedPerDay[updated]++
		}

		created := dayIndex(s.Days, t.CreatedAt, loc)
		for i := 0; i < Window; i++ {
			if i != created && i != updated {
				continue
			}
			dayTotal[i]++
			if t.IsCompleted {
				dayDone[i]++
			}
		}
	}
	for i := 0; i < Window; i++ {
		s.CompletionRatePerDay[i] = Percent(dayDone[i], dayTotal[i])
	}
	return s
}

// Percent is round(100*part/whole) with halves rounded up, or 0 when whole
// is 0.
func Percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return (200*part + whole) / (2 * whole)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// dayIndex returns which of days ts falls on, or -1. An unset timestamp
// matches no day.
func dayIndex(days [Window]time.Time, ts model.Timestamp, loc *time.Location) int {
	if ts.IsZero() {
		return -1
	}
	d := startOfDay(ts.Time, loc)
	for i, day := range days {
		if d.Equal(day) {
			return i
		}
	}
	return -1
}

// Productivity labels a completion rate the way the dashboard shows it.
func Productivity(rate int) string {
	switch {
	case rate > 70:
		return "Excellent!"
	case rate > 40:
		return "Good progress"
	default:
		return "Keep going!"
	}
}

// Priority returns up to n incomplete, non-deleted tasks in order.
func Priority(tasks []model.Task, n int) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if len(out) == n {
			break
		}
		if !t.IsCompleted && !t.IsDeleted {
			out = append(out, t)
		}
	}
	return out
}

// RecentlyCompleted returns up to n completed tasks in order.
func RecentlyCompleted(tasks []model.Task, n int) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if len(out) == n {
			break
		}
		if t.IsCompleted {
			out = append(out, t)
		}
	}
	return out
}
