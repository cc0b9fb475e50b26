package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skedtool/sked/internal/core"
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next committed event",
	Long: `Show detailed information about the next upcoming committed event,
with a countdown. Events already in progress count as next.`,
	RunE: runNext,
}

func init() {
	rootCmd.AddCommand(nextCmd)
}

func runNext(cmd *cobra.Command, args []string) error {
	now := time.Now()
	days := viper.GetInt("days")
	horizon := now.Add(time.Duration(days) * 24 * time.Hour)

	events, err := app.Store.ListEvents(cmd.Context(), app.User)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	// Store listing is start-ordered; keep upcoming and in-progress only
	var eligible []*core.SyncedEvent
	for _, e := range events {
		if e.Start.After(horizon) {
			break
		}
		if e.Start.After(now) || e.InProgress(now) {
			eligible = append(eligible, e)
		}
	}

	if len(eligible) == 0 {
		fmt.Println("No upcoming committed events.")
		return nil
	}

	// Everything sharing the first start time is shown together
	nextStart := eligible[0].Start
	var concurrent []*core.SyncedEvent
	for _, e := range eligible {
		if e.Start.Equal(nextStart) {
			concurrent = append(concurrent, e)
		} else {
			break
		}
	}

	if len(concurrent) > 1 {
		printConcurrentEvents(concurrent, now)
	} else {
		printNextEvent(concurrent[0], now)
	}

	return nil
}

func printConcurrentEvents(events []*core.SyncedEvent, now time.Time) {
	first := events[0]

	fmt.Println("─────────────────────────────────────────────────")
	fmt.Printf("  ⚠️  CONFLICT: %d EVENTS AT THE SAME TIME\n", len(events))
	fmt.Println("─────────────────────────────────────────────────")

	fmt.Println()
	if first.InProgress(now) {
		remaining := first.End.Sub(now)
		fmt.Printf("  🟢 IN PROGRESS - %s remaining\n", formatDurationCompact(remaining))
	} else {
		until := first.Start.Sub(now)
		fmt.Printf("  ⏳ STARTS IN: %s\n", formatCountdown(until))
	}

	for i, event := range events {
		fmt.Printf("\n  EVENT %d of %d\n", i+1, len(events))
		fmt.Println("  ─────────────────────────────────────────────")
		displayEvent(event, false)
	}

	fmt.Println()
	fmt.Println("─────────────────────────────────────────────────")
}

func printNextEvent(event *core.SyncedEvent, now time.Time) {
	fmt.Println("─────────────────────────────────────────────────")
	fmt.Println("  NEXT EVENT")
	fmt.Println("─────────────────────────────────────────────────")

	fmt.Println()
	if event.InProgress(now) {
		remaining := event.End.Sub(now)
		fmt.Printf("  🟢 IN PROGRESS - %s remaining\n", formatDurationCompact(remaining))
	} else {
		until := event.Start.Sub(now)
		fmt.Printf("  ⏳ STARTS IN: %s\n", formatCountdown(until))
	}
	fmt.Println()

	displayEvent(event, true)

	fmt.Println()
	fmt.Println("─────────────────────────────────────────────────")
}

func formatCountdown(d time.Duration) string {
	if d < 0 {
		return "NOW"
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	plural := func(n int, unit string) string {
		if n == 1 {
			return fmt.Sprintf("%d %s", n, unit)
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}

	if len(parts) == 0 {
		return "less than a minute"
	}
	return strings.Join(parts, ", ")
}
