package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skedtool/sked/internal/core"
)

var rescheduleCmd = &cobra.Command{
	Use:   "reschedule",
	Short: "Suggest conflict-free alternatives for a time slot",
	Long: `Suggest alternative slots for a candidate event, preserving its
duration: +30 minutes, +1 hour, +2 hours, then same time next day.

Candidates outside working hours or overlapping anything visible to
conflict detection are dropped. The order of the output is the
ranking; an empty result means no in-window alternative exists.

Example:
  sked reschedule --start 2026-09-01T14:00 --end 2026-09-01T15:00 --work-start 9 --work-end 17`,
	RunE: runReschedule,
}

func init() {
	rootCmd.AddCommand(rescheduleCmd)

	rescheduleCmd.Flags().String("title", "candidate", "candidate title (for context only)")
	rescheduleCmd.Flags().String("start", "", "start time, RFC3339 or YYYY-MM-DDTHH:MM (required)")
	rescheduleCmd.Flags().String("end", "", "end time (required)")
	rescheduleCmd.Flags().String("location", "", "candidate location")
	rescheduleCmd.Flags().String("description", "", "candidate description")
	rescheduleCmd.Flags().StringSlice("attendees", nil, "candidate attendees")
	rescheduleCmd.Flags().Int("work-start", 0, "working hours start (0-23, default from config)")
	rescheduleCmd.Flags().Int("work-end", 0, "working hours end (0-23, default from config)")
}

func runReschedule(cmd *cobra.Command, args []string) error {
	draft, err := draftFromFlags(cmd)
	if err != nil {
		return err
	}

	constraints := core.Constraints{
		WorkingHoursStart: viper.GetInt("work_start"),
		WorkingHoursEnd:   viper.GetInt("work_end"),
	}
	if v, _ := cmd.Flags().GetInt("work-start"); cmd.Flags().Changed("work-start") {
		constraints.WorkingHoursStart = v
	}
	if v, _ := cmd.Flags().GetInt("work-end"); cmd.Flags().Changed("work-end") {
		constraints.WorkingHoursEnd = v
	}

	suggestions, err := app.Advisor.SuggestReschedules(cmd.Context(), app.User, draft, constraints)
	if err != nil {
		return fmt.Errorf("suggest reschedules: %w", err)
	}

	if len(suggestions) == 0 {
		fmt.Println("No conflict-free slot found within working hours.")
		fmt.Println("Try another day or widen --work-start/--work-end.")
		return nil
	}

	fmt.Printf("Suggested slots for %q (%s):\n", draft.Title, formatDurationCompact(draft.Duration()))
	fmt.Println("─────────────────────────────────────────────────")
	for i, span := range suggestions {
		fmt.Printf("  %d. %s - %s\n", i+1,
			span.Start.Local().Format("Mon, Jan 2 3:04 PM"),
			span.End.Local().Format("3:04 PM"))
	}
	fmt.Println("─────────────────────────────────────────────────")
	return nil
}
