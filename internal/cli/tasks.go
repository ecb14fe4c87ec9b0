package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/sadopc/taskdeck/internal/model"
	"github.com/sadopc/taskdeck/internal/tasks"
	"github.com/spf13/cobra"
)

// shortIDLen is how much of a task id list output shows. Any unique prefix
// is accepted back.
const shortIDLen = 8

var tasksCmd = &cobra.Command{
	Use:     "tasks",
	Aliases: []string{"task", "t"},
	Short:   "List and change tasks",
}

var tasksListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Args:    cobra.NoArgs,
	RunE:    runTasksList,
}

var tasksAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTasksAdd,
}

var tasksEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change a task's title or description",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksEdit,
}

var tasksToggleCmd = &cobra.Command{
	Use:     "toggle <id>",
	Aliases: []string{"done"},
	Short:   "Mark a task completed, or back to pending",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(env); err != nil {
			return err
		}
		return toggleTask(cmd.Context(), env, args[0])
	},
}

var tasksRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE:    runTasksRm,
}

func init() {
	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksAddCmd)
	tasksCmd.AddCommand(tasksEditCmd)
	tasksCmd.AddCommand(tasksToggleCmd)
	tasksCmd.AddCommand(tasksRmCmd)

	tasksListCmd.Flags().StringP("filter", "f", "", "Only tasks whose title or description contains this")
	tasksListCmd.Flags().String("sort", "", "Sort by title, created_at, updated_at or is_completed (default from settings)")
	tasksListCmd.Flags().Bool("asc", false, "Sort ascending")
	tasksListCmd.Flags().String("status", "all", "all, pending or done")
	tasksListCmd.Flags().Bool("json", false, "Print JSON")

	tasksAddCmd.Flags().StringP("description", "d", "", "Task description")

	tasksEditCmd.Flags().String("title", "", "New title")
	tasksEditCmd.Flags().StringP("description", "d", "", "New description")

	tasksRmCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}

type listOptions struct {
	filter string
	sort   tasks.SortField
	asc    bool
	status string
	json   bool
}

func runTasksList(cmd *cobra.Command, args []string) error {
	if err := requireSession(env); err != nil {
		return err
	}

	opts := listOptions{}
	opts.filter, _ = cmd.Flags().GetString("filter")
	opts.status, _ = cmd.Flags().GetString("status")
	opts.json, _ = cmd.Flags().GetBool("json")

	sortName, _ := cmd.Flags().GetString("sort")
	if sortName == "" {
		sortName = env.store.GetSettingOr("sort_field", string(tasks.SortCreated))
	}
	field, err := tasks.ParseSortField(sortName)
	if err != nil {
		return err
	}
	opts.sort = field

	if cmd.Flags().Changed("asc") {
		opts.asc, _ = cmd.Flags().GetBool("asc")
	} else {
		opts.asc = env.store.GetSettingOr("sort_direction", "desc") == "asc"
	}

	return listTasks(cmd.Context(), env, cmd.OutOrStdout(), opts, time.Now())
}

func listTasks(ctx context.Context, e *environment, w io.Writer, opts listOptions, now time.Time) error {
	if err := e.tasks.Fetch(ctx); err != nil {
		return sessionHint(fmt.Errorf("load tasks: %w", err))
	}

	list := tasks.Filter(e.tasks.Snapshot().Tasks, opts.filter)
	switch opts.status {
	case "", "all":
	case "pending":
		list = keep(list, func(t model.Task) bool { return !t.IsCompleted && !t.IsDeleted })
	case "done", "completed":
		list = keep(list, func(t model.Task) bool { return t.IsCompleted })
	default:
		return fmt.Errorf("unknown status %q (want all, pending or done)", opts.status)
	}
	list = tasks.Sort(list, opts.sort, !opts.asc)

	if opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if list == nil {
			list = []model.Task{}
		}
		return enc.Encode(list)
	}

	if len(list) == 0 {
		fmt.Fprintln(w, "No tasks found.")
		return nil
	}

	rows := make([][]string, 0, len(list))
	for _, t := range list {
		check := "[ ]"
		if t.IsCompleted {
			check = "[x]"
		}
		rows = append(rows, []string{shortID(t.ID), check, t.Title, tasks.Age(t.CreatedAt, now)})
	}
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "Done", "Title", "Created").
		Rows(rows...)
	fmt.Fprintln(w, tbl.Render())
	return nil
}

func keep(list []model.Task, pred func(model.Task) bool) []model.Task {
	var out []model.Task
	for _, t := range list {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func runTasksAdd(cmd *cobra.Command, args []string) error {
	if err := requireSession(env); err != nil {
		return err
	}
	desc, _ := cmd.Flags().GetString("description")
	return addTask(cmd.Context(), env, cmd.OutOrStdout(), strings.Join(args, " "), desc)
}

func addTask(ctx context.Context, e *environment, w io.Writer, title, desc string) error {
	t, err := e.tasks.Create(ctx, model.Draft{Title: title, Description: desc})
	if err != nil {
		return sessionHint(err)
	}
	fmt.Fprintf(w, "%s  %s\n", shortID(t.ID), t.Title)
	return nil
}

func runTasksEdit(cmd *cobra.Command, args []string) error {
	if err := requireSession(env); err != nil {
		return err
	}
	var p model.Patch
	if cmd.Flags().Changed("title") {
		v, _ := cmd.Flags().GetString("title")
		p.Title = &v
	}
	if cmd.Flags().Changed("description") {
		v, _ := cmd.Flags().GetString("description")
		p.Description = &v
	}
	return editTask(cmd.Context(), env, args[0], p)
}

func editTask(ctx context.Context, e *environment, idOrPrefix string, p model.Patch) error {
	if p.Empty() {
		return tasks.ErrEmptyPatch
	}
	t, err := resolveTask(ctx, e, idOrPrefix)
	if err != nil {
		return err
	}
	_, err = e.tasks.Update(ctx, t.ID, p)
	return sessionHint(err)
}

func toggleTask(ctx context.Context, e *environment, idOrPrefix string) error {
	t, err := resolveTask(ctx, e, idOrPrefix)
	if err != nil {
		return err
	}
	_, err = e.tasks.ToggleCompletion(ctx, t.ID, !t.IsCompleted)
	return sessionHint(err)
}

func runTasksRm(cmd *cobra.Command, args []string) error {
	if err := requireSession(env); err != nil {
		return err
	}
	ctx := cmd.Context()
	t, err := resolveTask(ctx, env, args[0])
	if err != nil {
		return err
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes && env.store.ConfirmDelete() {
		confirmed := false
		err := huh.NewConfirm().
			Title(fmt.Sprintf("Delete %q?", t.Title)).
			Value(&confirmed).
			Run()
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
			return nil
		}
	}
	return deleteTask(ctx, env, t.ID)
}

func deleteTask(ctx context.Context, e *environment, id string) error {
	return sessionHint(e.tasks.Delete(ctx, id))
}

// resolveTask loads the list and finds the one task whose id is, or starts
// with, idOrPrefix.
func resolveTask(ctx context.Context, e *environment, idOrPrefix string) (model.Task, error) {
	if err := e.tasks.Fetch(ctx); err != nil {
		return model.Task{}, sessionHint(fmt.Errorf("load tasks: %w", err))
	}
	if t, err := e.tasks.Task(idOrPrefix); err == nil {
		return t, nil
	}

	var matches []model.Task
	for _, t := range e.tasks.Snapshot().Tasks {
		if strings.HasPrefix(t.ID, idOrPrefix) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return model.Task{}, fmt.Errorf("%w: %s", tasks.ErrUnknownTask, idOrPrefix)
	case 1:
		return matches[0], nil
	}
	return model.Task{}, fmt.Errorf("id prefix %q matches %d tasks", idOrPrefix, len(matches))
}
