package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skedtool/sked/internal/core"
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Check a time slot for conflicts",
	Long: `Check whether a candidate time slot overlaps anything on your
calendars: committed events and events visible on connected providers.

Touching intervals (one ends exactly when the other starts) do not
conflict.

Example:
  sked conflicts --start 2026-09-01T14:00 --end 2026-09-01T15:00`,
	RunE: runConflicts,
}

func init() {
	rootCmd.AddCommand(conflictsCmd)

	conflictsCmd.Flags().String("title", "candidate", "candidate title (for context only)")
	conflictsCmd.Flags().String("start", "", "start time, RFC3339 or YYYY-MM-DDTHH:MM (required)")
	conflictsCmd.Flags().String("end", "", "end time (required)")
	conflictsCmd.Flags().String("location", "", "candidate location")
	conflictsCmd.Flags().String("description", "", "candidate description")
	conflictsCmd.Flags().StringSlice("attendees", nil, "candidate attendees")
}

func runConflicts(cmd *cobra.Command, args []string) error {
	draft, err := draftFromFlags(cmd)
	if err != nil {
		return err
	}

	conflicts, err := app.Detector.DetectConflicts(cmd.Context(), app.User, draft)
	if err != nil {
		return fmt.Errorf("detect conflicts: %w", err)
	}

	if len(conflicts) == 0 {
		fmt.Printf("✓ %s - %s is clear\n", draft.Start.Local().Format("Mon, Jan 2 3:04 PM"), draft.End.Local().Format("3:04 PM"))
		return nil
	}

	printConflicts(conflicts)
	return nil
}

func printConflicts(conflicts []core.Conflict) {
	fmt.Printf("⚠ %d conflicts:\n", len(conflicts))
	fmt.Println("─────────────────────────────────────────────────")
	for _, c := range conflicts {
		when := fmt.Sprintf("%s - %s", c.Start.Local().Format("Mon, Jan 2 3:04 PM"), c.End.Local().Format("3:04 PM"))
		switch c.Source {
		case core.SourceInternal:
			fmt.Printf("  • [committed] %s  %s\n", c.Title, when)
			fmt.Printf("    event id: %s\n", c.EventID)
		case core.SourceExternal:
			fmt.Printf("  • [%s] %s  %s\n", c.Provider, c.Title, when)
		}
	}
	fmt.Println("─────────────────────────────────────────────────")
	fmt.Println("Try: sked reschedule with the same slot for alternatives")
}
