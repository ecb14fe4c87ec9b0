package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sadopc/taskdeck/internal/config"
	"github.com/sadopc/taskdeck/internal/tui"
	"github.com/spf13/cobra"
)

const skipSetup = "skip-setup"

var (
	verbose    bool
	configPath string
	rootCmd    *cobra.Command

	// env is opened by the root pre-run hook and closed by Execute.
	env *environment
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "taskdeck",
		Short: "taskdeck - a terminal dashboard for your task list",
		Long: `taskdeck signs in to a task API and lets you create, edit, complete
and delete tasks, with completion stats and a seven day trend.

Run without a subcommand to open the dashboard.`,
		RunE:              runTUI, // Default action is the dashboard
		PersistentPreRunE: setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr as well as the log file")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/taskdeck/config.yaml)")
}

// Execute runs the root command
func Execute(version string) error {
	// Add subcommands here to ensure proper initialization order
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	// Post-run hooks are skipped when RunE fails, so close here.
	if cerr := teardown(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func setup(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipSetup] == "true" || env != nil {
		return nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	e, err := openEnvironment(cfg, verbose, cmd == rootCmd, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	env = e
	env.log.Debug().Str("command", cmd.CommandPath()).Str("api_url", cfg.APIURL).Msg("starting")
	return nil
}

func teardown() error {
	if env == nil {
		return nil
	}
	err := env.Close()
	env = nil
	return err
}

func runTUI(cmd *cobra.Command, args []string) error {
	return tui.Run(cmd.Context(), tui.Deps{
		Client:  env.client,
		Tasks:   env.tasks,
		Store:   env.store,
		Notices: env.notices,
		Log:     env.log,
	})
}
