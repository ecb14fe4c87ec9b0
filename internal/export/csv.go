package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/sadopc/taskdeck/internal/model"
)

func ToCSV(tasks []model.Task, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	// Header
	if err := w.Write([]string{"ID", "Title", "Description", "Status", "Created", "Updated"}); err != nil {
		return err
	}

	for _, t := range tasks {
		row := []string{
			t.ID,
			t.Title,
			t.Description,
			status(t),
			formatTime(t.CreatedAt),
			formatTime(t.UpdatedAt),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func status(t model.Task) string {
	switch {
	case t.IsDeleted:
		return "deleted"
	case t.IsCompleted:
		return "completed"
	default:
		return "pending"
	}
}

// formatTime renders a timestamp in local time, or "" when unset.
func formatTime(ts model.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Local().Format(time.RFC3339)
}
