package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/sadopc/taskdeck/internal/config"
	"github.com/sadopc/taskdeck/internal/store"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration and saved preferences",
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Show the effective configuration",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipSetup: "true"},
	RunE:        runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Show configuration file paths",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipSetup: "true"},
	RunE:        runConfigPath,
}

var configSettingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "List preferences saved from the settings screen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printSettings(env.store, cmd.OutOrStdout())
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSettingsCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return writeConfig(cmd.OutOrStdout(), cfg)
}

func writeConfig(w io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprintln(w, "# Effective configuration (defaults, file, .env, environment)")
	fmt.Fprint(w, string(data))
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		dir, err := config.Dir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Config:   %s\n", path)
	fmt.Fprintf(w, "Database: %s\n", cfg.DBPath)
	fmt.Fprintf(w, "Log:      %s\n", cfg.LogFile)
	return nil
}

func printSettings(s *store.Store, w io.Writer) error {
	settings, err := s.GetAllSettings()
	if err != nil {
		return err
	}
	for _, st := range settings {
		fmt.Fprintf(w, "%-18s %s\n", st.Key, st.Value)
	}
	return nil
}
