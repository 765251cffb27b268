package stats

import (
	"time"

	"github.com/ash-bergs/localtask/internal/model"
)

// Stats summarizes a user's tasks. It is computed from a snapshot passed
// in by the caller; this package never reaches into shared state.
type Stats struct {
	Total          int         `json:"total"`
	Completed      int         `json:"completed"`
	Open           int         `json:"open"`
	CompletionRate float64     `json:"completionRate"`
	DueToday       int         `json:"dueToday"`
	Overdue        int         `json:"overdue"`
	ByPriority     map[int]int `json:"byPriority"`
	Unsynced       int         `json:"unsynced"`
}

// Compute derives statistics from a task snapshot. Tasks tagged for
// deletion are ignored; now anchors the due-date buckets.
func Compute(tasks []model.Task, now time.Time) Stats {
	s := Stats{ByPriority: make(map[int]int)}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	for _, t := range tasks {
		if t.SyncState == model.SyncStateDeleted {
			continue
		}
		s.Total++
		if t.Completed {
			s.Completed++
		} else {
			s.Open++
		}
		if t.SyncState != model.SyncStateSynced {
			s.Unsynced++
		}
		if t.Priority != nil {
			s.ByPriority[*t.Priority]++
		}
		if t.DueDate != nil && !t.Completed {
			due := t.DueDate.In(now.Location())
			switch {
			case due.Before(dayStart):
				s.Overdue++
			case due.Before(dayEnd):
				s.DueToday++
			}
		}
	}

	if s.Total > 0 {
		s.CompletionRate = float64(s.Completed) / float64(s.Total)
	}
	return s
}
