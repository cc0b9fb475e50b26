package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skedtool/sked/internal/core"
)

var updateCmd = &cobra.Command{
	Use:   "update <event-id>",
	Short: "Update a committed event everywhere",
	Long: `Update fields of a committed event and push the change to every
connected account holding it.

Fields are given as --set key=value pairs; recognized keys are title,
location, description, start, and end. Unknown keys are ignored with a
warning. Accounts that are disconnected are skipped.

Example:
  sked update 3f2a... --set title="Design review (moved)" --set start=2026-09-01T16:00 --set end=2026-09-01T17:00`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <event-id>",
	Short: "Cancel a committed event everywhere",
	Long: `Delete a committed event from every reachable provider and drop the
internal record.

If no provider deletion can even be attempted, or every attempt fails,
the record is kept so you are not shown a false "removed" state.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

var showCmd = &cobra.Command{
	Use:   "show <event-id>",
	Short: "Show a committed event in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(showCmd)

	updateCmd.Flags().StringArray("set", nil, "field=value pair to change (repeatable)")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	pairs, _ := cmd.Flags().GetStringArray("set")
	if len(pairs) == 0 {
		return fmt.Errorf("nothing to update; use --set field=value")
	}

	changes, ignored, err := core.ParseChanges(pairs)
	if err != nil {
		return err
	}
	for _, key := range ignored {
		fmt.Printf("⚠ Ignoring unknown field %q\n", key)
	}

	err = app.Propagator.Update(cmd.Context(), app.User, args[0], changes)

	var partial *core.PartialError
	switch {
	case err == nil:
		fmt.Printf("✓ Event %s updated everywhere\n", args[0])
	case errors.As(err, &partial):
		fmt.Printf("⚠ Event %s updated locally, but some providers failed:\n", args[0])
		for _, kind := range partial.Providers() {
			fmt.Printf("  ✗ %s: %v\n", kind, partial.Failed[kind])
		}
	default:
		return fmt.Errorf("update: %w", err)
	}
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	err := app.Propagator.Cancel(cmd.Context(), app.User, args[0])

	var partial *core.PartialError
	switch {
	case err == nil:
		fmt.Printf("✓ Event %s cancelled everywhere\n", args[0])
	case errors.As(err, &partial):
		fmt.Printf("⚠ Event %s removed, but some providers failed to delete it:\n", args[0])
		for _, kind := range partial.Providers() {
			fmt.Printf("  ✗ %s: %v\n", kind, partial.Failed[kind])
		}
	case errors.Is(err, core.ErrAllProvidersFailed):
		return fmt.Errorf("cancel failed against every account; the event is kept: %w", err)
	default:
		return fmt.Errorf("cancel: %w", err)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	event, err := app.Propagator.GetEvent(cmd.Context(), app.User, args[0])
	if err != nil {
		return fmt.Errorf("show event: %w", err)
	}

	fmt.Println("─────────────────────────────────────────────────")
	displayEvent(event, true)
	fmt.Println("─────────────────────────────────────────────────")
	return nil
}
