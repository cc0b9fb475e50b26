package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skedtool/sked/internal/core"
)

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Commit an event to one or more accounts",
	Long: `Commit an event to every named account in one move.

All named accounts must be connected before any provider is touched.
If a provider write fails mid-commit, the event is still recorded
under the providers that accepted it and the failures are reported.

Example:
  sked commit --title "Design review" \
      --start 2026-09-01T14:00 --end 2026-09-01T15:00 \
      --accounts <id1> --accounts <id2>`,
	RunE: runCommit,
}

func init() {
	rootCmd.AddCommand(commitCmd)

	commitCmd.Flags().String("title", "", "event title (required)")
	commitCmd.Flags().String("start", "", "start time, RFC3339 or YYYY-MM-DDTHH:MM (required)")
	commitCmd.Flags().String("end", "", "end time (required)")
	commitCmd.Flags().String("location", "", "event location")
	commitCmd.Flags().String("description", "", "event description")
	commitCmd.Flags().StringSlice("attendees", nil, "attendee emails")
	commitCmd.Flags().StringSlice("accounts", nil, "account ids to commit to (required)")
	commitCmd.Flags().Bool("check", false, "run conflict detection first and abort on conflicts")
}

func runCommit(cmd *cobra.Command, args []string) error {
	draft, err := draftFromFlags(cmd)
	if err != nil {
		return err
	}
	accountIDs, _ := cmd.Flags().GetStringSlice("accounts")

	if check, _ := cmd.Flags().GetBool("check"); check {
		conflicts, err := app.Detector.DetectConflicts(cmd.Context(), app.User, draft)
		if err != nil {
			return fmt.Errorf("detect conflicts: %w", err)
		}
		if len(conflicts) > 0 {
			printConflicts(conflicts)
			return fmt.Errorf("found %d conflicts; resolve them or commit without --check", len(conflicts))
		}
	}

	event, err := app.Propagator.Commit(cmd.Context(), app.User, draft, accountIDs)

	var partial *core.PartialError
	switch {
	case err == nil:
		fmt.Printf("✓ Committed %q to all %d accounts\n", event.Title, len(event.AccountIDs))
		fmt.Printf("  id: %s\n", event.ID)
	case errors.As(err, &partial):
		fmt.Printf("⚠ Committed %q, but some providers failed:\n", event.Title)
		for _, kind := range partial.Providers() {
			fmt.Printf("  ✗ %s: %v\n", kind, partial.Failed[kind])
		}
		fmt.Printf("  id: %s\n", event.ID)
	default:
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// draftFromFlags parses the shared draft flags used by commit, conflicts,
// and reschedule.
func draftFromFlags(cmd *cobra.Command) (core.Draft, error) {
	title, _ := cmd.Flags().GetString("title")
	startStr, _ := cmd.Flags().GetString("start")
	endStr, _ := cmd.Flags().GetString("end")
	location, _ := cmd.Flags().GetString("location")
	description, _ := cmd.Flags().GetString("description")
	attendees, _ := cmd.Flags().GetStringSlice("attendees")

	if startStr == "" || endStr == "" {
		return core.Draft{}, fmt.Errorf("--start and --end are required")
	}
	start, err := core.ParseChangeTime(startStr)
	if err != nil {
		return core.Draft{}, fmt.Errorf("parse --start: %w", err)
	}
	end, err := core.ParseChangeTime(endStr)
	if err != nil {
		return core.Draft{}, fmt.Errorf("parse --end: %w", err)
	}

	draft := core.Draft{
		Title:       title,
		Start:       start,
		End:         end,
		Location:    location,
		Description: description,
		Attendees:   attendees,
	}
	return draft, draft.Validate()
}
