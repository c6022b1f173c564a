package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/naka-gawa/pr-stats/internal/config"
	"github.com/naka-gawa/pr-stats/internal/domain"
	"github.com/naka-gawa/pr-stats/internal/export"
	"github.com/naka-gawa/pr-stats/internal/gateway"
	"github.com/naka-gawa/pr-stats/internal/period"
	"github.com/naka-gawa/pr-stats/internal/settings"
	"github.com/naka-gawa/pr-stats/internal/usecase"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	sourceBackend = "backend"
	sourceGitHub  = "github"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Reports pull request and review stats as JSON or CSV",
	Long: `Fetches authored pull request and review statistics for a date range, optionally
drops pull requests open longer than --max-days-open and excludes weekends from open
durations, and outputs the result. With --preset or --compare-from the same report is
built for a previous period and both are compared.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		logger := newLogger(cmd)

		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		store := settings.NewFileRepository(cfg.SettingsPath)
		saved, err := store.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		opts, err := resolveOptions(cmd.Flags(), saved, time.Now())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if save, _ := cmd.Flags().GetBool("save"); save {
			if err := store.Save(opts.remember(saved)); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			logger.Printf("Saved filter selections to %s", store.Path())
		}

		// Inject dependencies and run the main business logic.
		var fetcher gateway.Fetcher
		switch opts.source {
		case sourceGitHub:
			if cfg.GitHubToken == "" {
				fmt.Fprintln(os.Stderr, "Error: GITHUB_TOKEN environment variable is not set.")
				os.Exit(1)
			}
			fetcher, err = gateway.NewGitHubGateway(cfg.GitHubToken, logger)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to create GitHub gateway: %v\n", err)
				os.Exit(1)
			}
		default:
			creds := gateway.Credentials{Username: saved.Username, AppPassword: saved.AppPassword}
			if cfg.Username != "" {
				creds = gateway.Credentials{Username: cfg.Username, AppPassword: cfg.AppPassword}
			}
			fetcher = gateway.NewBackendGateway(cfg.BackendURL, creds, cfg.RequestsPerSecond, logger)
		}
		cache := gateway.NewCachingFetcher(fetcher, cfg.CacheDir, cfg.CacheTTL)
		if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
			if err := cache.Clear(); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to clear cache: %v\n", err)
				os.Exit(1)
			}
			logger.Printf("Cleared cached payloads in %s", cfg.CacheDir)
		}
		aggregator := usecase.NewAggregator(cache, logger)

		report, err := aggregator.Run(ctx, opts.request)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to build stats report: %v\n", err)
			os.Exit(1)
		}

		if notice := export.Notice(report.Current.PRStats, opts.request.MaxDaysOpen); notice != "" {
			fmt.Fprintln(os.Stderr, notice)
		}

		switch opts.format {
		case "csv":
			err = export.WriteCSV(os.Stdout, report)
		default:
			err = export.WriteJSON(os.Stdout, report)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write report: %v\n", err)
			os.Exit(1)
		}
	},
}

// statsOptions is the fully resolved input of one stats run.
type statsOptions struct {
	source  string
	format  string
	request usecase.Request
}

// resolveOptions merges flags over saved settings. A flag wins only when set explicitly.
func resolveOptions(flags *pflag.FlagSet, saved settings.Settings, now time.Time) (statsOptions, error) {
	opts := statsOptions{source: saved.Source, format: "json"}
	if opts.source == "" {
		opts.source = sourceBackend
	}

	q := domain.Query{
		Workspace: saved.Workspace,
		Repos:     saved.Repos,
		States:    saved.States,
		Nickname:  saved.Nickname,
	}
	req := usecase.Request{
		MaxDaysOpen:     saved.MaxDaysOpen,
		ExcludeWeekends: saved.ExcludeWeekends,
		IncludeReviews:  true,
	}

	if flags.Changed("source") {
		opts.source, _ = flags.GetString("source")
	}
	if opts.source != sourceBackend && opts.source != sourceGitHub {
		return opts, fmt.Errorf("unknown source %q (want %s or %s)", opts.source, sourceBackend, sourceGitHub)
	}
	opts.format, _ = flags.GetString("format")
	if opts.format != "json" && opts.format != "csv" {
		return opts, fmt.Errorf("unknown format %q (want json or csv)", opts.format)
	}
	if flags.Changed("workspace") {
		q.Workspace, _ = flags.GetString("workspace")
	}
	if flags.Changed("repo") {
		q.Repos, _ = flags.GetStringSlice("repo")
	}
	if flags.Changed("state") {
		q.States, _ = flags.GetStringSlice("state")
	}
	if flags.Changed("nickname") {
		q.Nickname, _ = flags.GetString("nickname")
	}
	if flags.Changed("max-days-open") {
		req.MaxDaysOpen, _ = flags.GetInt("max-days-open")
	}
	if flags.Changed("exclude-weekends") {
		req.ExcludeWeekends, _ = flags.GetBool("exclude-weekends")
	}
	req.IncludeReviews, _ = flags.GetBool("reviews")
	q.IncludePullRequestDetails, _ = flags.GetBool("details")
	if req.MaxDaysOpen < 0 {
		return opts, fmt.Errorf("--max-days-open must not be negative")
	}

	presetName, _ := flags.GetString("preset")
	if presetName != "" {
		preset, err := period.Lookup(presetName, now)
		if err != nil {
			return opts, err
		}
		q.Since, q.Until = preset.Current.Since, preset.Current.Until
		previous := q
		previous.Since, previous.Until = preset.Previous.Since, preset.Previous.Until
		req.Previous = &previous
	}

	var err error
	if q, err = applyDates(flags, "from", "to", q); err != nil {
		return opts, err
	}
	if flags.Changed("compare-to") && !flags.Changed("compare-from") {
		return opts, fmt.Errorf("--compare-to requires --compare-from")
	}
	if flags.Changed("compare-from") {
		previous := q
		// The comparison period ends the day before the current one starts unless told otherwise.
		previous.Until = q.Since.AddDate(0, 0, -1)
		if !flags.Changed("compare-to") && q.Since.IsZero() {
			return opts, fmt.Errorf("--compare-from needs --compare-to or --from")
		}
		if previous, err = applyDates(flags, "compare-from", "compare-to", previous); err != nil {
			return opts, err
		}
		req.Previous = &previous
	}

	req.Current = q
	opts.request = req
	return opts, nil
}

// applyDates overrides q's range with any of the two date flags that were set.
func applyDates(flags *pflag.FlagSet, fromFlag, toFlag string, q domain.Query) (domain.Query, error) {
	for _, f := range []struct {
		name   string
		target *time.Time
	}{{fromFlag, &q.Since}, {toFlag, &q.Until}} {
		if !flags.Changed(f.name) {
			continue
		}
		raw, _ := flags.GetString(f.name)
		parsed, err := time.ParseInLocation(domain.DateLayout, raw, time.Local)
		if err != nil {
			return q, fmt.Errorf("invalid --%s date format, please use YYYY-MM-DD: %w", f.name, err)
		}
		*f.target = parsed
	}
	return q, nil
}

// remember returns saved updated with the selections of this run.
func (o statsOptions) remember(saved settings.Settings) settings.Settings {
	q := o.request.Current
	saved.Source = o.source
	saved.Workspace = q.Workspace
	saved.Repos = q.Repos
	saved.States = q.States
	saved.Nickname = q.Nickname
	saved.MaxDaysOpen = o.request.MaxDaysOpen
	saved.ExcludeWeekends = o.request.ExcludeWeekends
	return saved
}

func init() {
	rootCmd.AddCommand(statsCmd)
	registerStatsFlags(statsCmd.Flags())
}

func registerStatsFlags(f *pflag.FlagSet) {
	f.String("source", sourceBackend, "Stats source: backend or github")
	f.StringP("workspace", "w", "", "Workspace (backend) or owner (github)")
	f.StringSliceP("repo", "r", nil, "Repository name, repeatable")
	f.StringSlice("state", nil, "Pull request state filter, repeatable (e.g. MERGED, OPEN)")
	f.String("nickname", "", "Author nickname; defaults to the authenticated user")
	f.String("from", "", "Start date (YYYY-MM-DD)")
	f.String("to", "", "End date (YYYY-MM-DD), defaults to today")
	f.String("compare-from", "", "Start date of the comparison period (YYYY-MM-DD)")
	f.String("compare-to", "", "End date of the comparison period (YYYY-MM-DD)")
	f.String("preset", "", "Period preset: last30, month, quarter, half or ytd")
	f.Int("max-days-open", 0, "Drop pull requests open longer than this many days (0 keeps all)")
	f.Bool("exclude-weekends", false, "Exclude weekend days from open durations")
	f.Bool("reviews", true, "Include review activity")
	f.Bool("details", false, "Include per pull request details")
	f.StringP("format", "f", "json", "Output format: json or csv")
	f.Bool("save", false, "Remember source, repositories and filters for later runs")
	f.Bool("refresh", false, "Drop cached payloads and fetch everything again")
}
