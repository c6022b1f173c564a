package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/naka-gawa/pr-stats/internal/config"
	"github.com/naka-gawa/pr-stats/internal/settings"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Shows or updates the remembered source, filters and credentials",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Prints the saved settings with the app password masked",
	Run: func(cmd *cobra.Command, args []string) {
		store := mustSettingsStore()
		saved, err := store.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := writeSettings(os.Stdout, saved.Masked()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Updates the saved settings with the given flags",
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger(cmd)
		store := mustSettingsStore()
		saved, err := store.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := store.Save(mergeSettings(cmd.Flags(), saved)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		logger.Printf("Settings written to %s", store.Path())
	},
}

func mustSettingsStore() *settings.FileRepository {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return settings.NewFileRepository(cfg.SettingsPath)
}

// mergeSettings applies only the flags the user actually passed.
func mergeSettings(flags *pflag.FlagSet, s settings.Settings) settings.Settings {
	if flags.Changed("source") {
		s.Source, _ = flags.GetString("source")
	}
	if flags.Changed("workspace") {
		s.Workspace, _ = flags.GetString("workspace")
	}
	if flags.Changed("repo") {
		s.Repos, _ = flags.GetStringSlice("repo")
	}
	if flags.Changed("state") {
		s.States, _ = flags.GetStringSlice("state")
	}
	if flags.Changed("nickname") {
		s.Nickname, _ = flags.GetString("nickname")
	}
	if flags.Changed("max-days-open") {
		s.MaxDaysOpen, _ = flags.GetInt("max-days-open")
	}
	if flags.Changed("exclude-weekends") {
		s.ExcludeWeekends, _ = flags.GetBool("exclude-weekends")
	}
	if flags.Changed("username") {
		s.Username, _ = flags.GetString("username")
	}
	if flags.Changed("app-password") {
		s.AppPassword, _ = flags.GetString("app-password")
	}
	return s
}

func writeSettings(w io.Writer, s settings.Settings) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return enc.Close()
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)

	registerSettingsFlags(settingsSetCmd.Flags())
}

func registerSettingsFlags(f *pflag.FlagSet) {
	f.String("source", sourceBackend, "Stats source: backend or github")
	f.StringP("workspace", "w", "", "Workspace (backend) or owner (github)")
	f.StringSliceP("repo", "r", nil, "Repository name, repeatable")
	f.StringSlice("state", nil, "Pull request state filter, repeatable")
	f.String("nickname", "", "Author nickname")
	f.Int("max-days-open", 0, "Default max days open filter")
	f.Bool("exclude-weekends", false, "Exclude weekends by default")
	f.String("username", "", "Backend username")
	f.String("app-password", "", "Backend app password")
}
