package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sadopc/taskdeck/internal/model"
	"github.com/sadopc/taskdeck/internal/stats"
)

type jsonExport struct {
	ExportedAt string      `json:"exported_at"`
	Count      int         `json:"count"`
	Summary    jsonSummary `json:"summary"`
	Tasks      []jsonTask  `json:"tasks"`
}

type jsonSummary struct {
	Total          int `json:"total"`
	Completed      int `json:"completed"`
	Pending        int `json:"pending"`
	CompletionRate int `json:"completion_rate"`
}

type jsonTask struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// ToJSON writes tasks and their summary stats, computed at now.
func ToJSON(tasks []model.Task, now time.Time, path string) error {
	st := stats.Compute(tasks, now)
	export := jsonExport{
		ExportedAt: now.UTC().Format(time.RFC3339),
		Count:      len(tasks),
		Summary: jsonSummary{
			Total:          st.Total,
			Completed:      st.Completed,
			Pending:        st.Pending,
			CompletionRate: st.CompletionRate,
		},
	}

	for _, t := range tasks {
		export.Tasks = append(export.Tasks, jsonTask{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Status:      status(t),
			CreatedAt:   formatTime(t.CreatedAt),
			UpdatedAt:   formatTime(t.UpdatedAt),
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
