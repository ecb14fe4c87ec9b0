package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/sadopc/taskdeck/internal/export"
	"github.com/sadopc/taskdeck/internal/stats"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show completion stats and the seven day trend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(env); err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return showStats(cmd.Context(), env, cmd.OutOrStdout(), time.Now(), asJSON)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write all tasks to a CSV or JSON file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(env); err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		return exportTasks(cmd.Context(), env, cmd.OutOrStdout(), format, output, time.Now())
	},
}

func init() {
	statsCmd.Flags().Bool("json", false, "Print JSON")

	exportCmd.Flags().String("format", "csv", "csv or json")
	exportCmd.Flags().StringP("output", "o", "", "Output file (default ~/taskdeck-export-DATE.<format>)")
}

type statsDay struct {
	Date           string `json:"date"`
	Completed      int    `json:"completed"`
	CompletionRate int    `json:"completion_rate"`
}

type statsReport struct {
	Total          int        `json:"total"`
	Completed      int        `json:"completed"`
	Pending        int        `json:"pending"`
	CompletionRate int        `json:"completion_rate"`
	Days           []statsDay `json:"days"`
}

func showStats(ctx context.Context, e *environment, w io.Writer, now time.Time, asJSON bool) error {
	if err := e.tasks.Fetch(ctx); err != nil {
		return sessionHint(fmt.Errorf("load tasks: %w", err))
	}
	st := stats.Compute(e.tasks.Snapshot().Tasks, now)

	if asJSON {
		rep := statsReport{
			Total:          st.Total,
			Completed:      st.Completed,
			Pending:        st.Pending,
			CompletionRate: st.CompletionRate,
		}
		for i, day := range st.Days {
			rep.Days = append(rep.Days, statsDay{
				Date:           day.Format("2006-01-02"),
				Completed:      st.CompletedPerDay[i],
				CompletionRate: st.CompletionRatePerDay[i],
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	fmt.Fprintf(w, "Total %d  Completed %d  Pending %d  Productivity %d%% (%s)\n\n",
		st.Total, st.Completed, st.Pending, st.CompletionRate, stats.Productivity(st.CompletionRate))

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Day", "Completed", "Rate")
	for i, day := range st.Days {
		tbl.Row(day.Format("Mon Jan 02"), strconv.Itoa(st.CompletedPerDay[i]), fmt.Sprintf("%d%%", st.CompletionRatePerDay[i]))
	}
	fmt.Fprintln(w, tbl.Render())
	return nil
}

// exportPath is where an export goes when no output file is given.
func exportPath(format string, now time.Time) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fmt.Sprintf("taskdeck-export-%s.%s", now.Format("2006-01-02"), format)), nil
}

func exportTasks(ctx context.Context, e *environment, w io.Writer, format, output string, now time.Time) error {
	if format != "csv" && format != "json" {
		return fmt.Errorf("unknown format %q (want csv or json)", format)
	}
	if err := e.tasks.Fetch(ctx); err != nil {
		return sessionHint(fmt.Errorf("load tasks: %w", err))
	}
	if output == "" {
		p, err := exportPath(format, now)
		if err != nil {
			return err
		}
		output = p
	}

	list := e.tasks.Snapshot().Tasks
	var err error
	if format == "csv" {
		err = export.ToCSV(list, output)
	} else {
		err = export.ToJSON(list, now, output)
	}
	if err != nil {
		return err
	}
	e.log.Info().Str("path", output).Int("tasks", len(list)).Msg("exported")
	fmt.Fprintf(w, "Exported %d tasks to %s\n", len(list), output)
	return nil
}
