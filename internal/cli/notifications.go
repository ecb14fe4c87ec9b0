package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/sadopc/taskdeck/internal/store"
	"github.com/spf13/cobra"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notices"},
	Short:   "Show recent confirmations and errors",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		clearAll, _ := cmd.Flags().GetBool("clear")
		if clearAll {
			if err := env.store.ClearNotifications(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Notifications cleared")
			return nil
		}
		limit, _ := cmd.Flags().GetInt("limit")
		return listNotifications(env.store, cmd.OutOrStdout(), limit, time.Now())
	},
}

func init() {
	notificationsCmd.Flags().IntP("limit", "n", 20, "How many to show (0 for all)")
	notificationsCmd.Flags().Bool("clear", false, "Delete all notifications")
}

// listNotifications prints newest first and marks everything read.
func listNotifications(s *store.Store, w io.Writer, limit int, now time.Time) error {
	items, err := s.ListNotifications(limit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(w, "You're all caught up.")
		return nil
	}
	for _, n := range items {
		mark := "✓"
		if n.Level == "error" {
			mark = "✗"
		}
		unread := " "
		if !n.Read {
			unread = "*"
		}
		fmt.Fprintf(w, "%s %s %-12s %s\n", unread, mark, n.Ago(now), n.Message)
	}
	return s.MarkAllRead()
}
