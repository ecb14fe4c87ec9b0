package tasks

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sadopc/taskdeck/internal/model"
)

type SortField string

const (
	SortTitle     SortField = "title"
	SortCreated   SortField = "created_at"
	SortUpdated   SortField = "updated_at"
	SortCompleted SortField = "is_completed"
)

var SortFields = []SortField{SortCreated, SortUpdated, SortTitle, SortCompleted}

func ParseSortField(s string) (SortField, error) {
	for _, f := range SortFields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown sort field %q", s)
}

// Filter keeps tasks whose title or description contains query, ignoring
// case. An empty query keeps everything.
func Filter(tasks []model.Task, query string) []model.Task {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if q == "" ||
			strings.Contains(strings.ToLower(t.Title), q) ||
			strings.Contains(strings.ToLower(t.Description), q) {
			out = append(out, t)
		}
	}
	return out
}

// Sort returns a sorted copy. Ties keep their snapshot order.
func Sort(tasks []model.Task, field SortField, desc bool) []model.Task {
	out := make([]model.Task, len(tasks))
	copy(out, tasks)

	compare := func(a, b model.Task) int {
		switch field {
		case SortTitle:
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		case SortUpdated:
			return a.UpdatedAt.Compare(b.UpdatedAt.Time)
		case SortCompleted:
			return boolInt(a.IsCompleted) - boolInt(b.IsCompleted)
		default:
			return a.CreatedAt.Compare(b.CreatedAt.Time)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		c := compare(out[i], out[j])
		if desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Age renders a timestamp relative to now: Today, Yesterday, N days ago
// within a week, and a short date after that. Days are calendar days in
// now's location.
func Age(ts model.Timestamp, now time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	loc := now.Location()
	t := ts.In(loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	days := int(today.Sub(day).Hours() / 24)
	switch {
	case days <= 0:
		return "Today"
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	}
	return t.Format("Jan 2")
}
