package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/naka-gawa/pr-stats/internal/period"
	"github.com/spf13/cobra"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Lists the --preset periods with their date ranges as of today",
	Run: func(cmd *cobra.Command, args []string) {
		if err := writePresets(os.Stdout, time.Now()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func writePresets(w io.Writer, now time.Time) error {
	for _, p := range period.Presets(now) {
		if _, err := fmt.Fprintf(w, "%-8s %-22s %s vs %s\n", p.Slug, p.Label, p.Current, p.Previous); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}
