package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skedtool/sked/internal/adapter/caldav"
	"github.com/skedtool/sked/internal/adapter/google"
	"github.com/skedtool/sked/internal/adapter/local"
	"github.com/skedtool/sked/internal/adapter/outlook"
	"github.com/skedtool/sked/internal/core"
	"github.com/skedtool/sked/internal/registry"
	"github.com/skedtool/sked/internal/schedule"
	"github.com/skedtool/sked/internal/state"
	"github.com/skedtool/sked/internal/syncer"
)

// App bundles the wired engine components behind the command tree.
type App struct {
	Logger     *slog.Logger
	Store      *state.FileStore
	Adapters   map[core.ProviderKind]core.ProviderAdapter
	Registry   *registry.Registry
	Propagator *syncer.Propagator
	Detector   *schedule.Detector
	Advisor    *schedule.Advisor
	User       string
}

var (
	cfgFile string
	profile string
	verbose bool
	app     *App
)

var rootCmd = &cobra.Command{
	Use:   "sked",
	Short: "Commit events to every calendar you live in, in one move",
	Long: `sked keeps one set of events consistent across multiple calendar
accounts (Google, Outlook, CalDAV, or a local .ics directory).

Commit an event once and sked writes it to every connected account,
detects conflicts before you commit, and suggests alternative slots
when a time is taken.`,
	PersistentPreRunE: initApp,
	RunE:              listCommitted,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (inherited by all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/sked/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "config profile to use (e.g., work, personal)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.PersistentFlags().String("user", "", "user the accounts and events belong to")
	rootCmd.PersistentFlags().IntP("days", "d", 7, "number of days to list (root/next commands)")
	rootCmd.PersistentFlags().String("from", "", "start date (YYYY-MM-DD, 'today', 'tomorrow', weekday names)")

	viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	viper.BindPFlag("days", rootCmd.PersistentFlags().Lookup("days"))
	viper.BindPFlag("from", rootCmd.PersistentFlags().Lookup("from"))
}

func initConfig() {
	// A .env in the working directory can carry client ids and passwords
	godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		configDir := filepath.Join(home, ".config", "sked")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("SKED")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("user", "me")
	viper.SetDefault("state_file", "~/.config/sked/state.json")
	viper.SetDefault("days", 7)
	viper.SetDefault("work_start", 9)
	viper.SetDefault("work_end", 17)

	// Read config file if it exists
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	// Apply profile settings if specified
	applyProfile()
}

// applyProfile merges profile-specific settings over defaults
func applyProfile() {
	activeProfile := profile
	if activeProfile == "" {
		activeProfile = viper.GetString("default_profile")
	}
	if activeProfile == "" {
		return
	}

	profileKey := "profiles." + activeProfile
	if !viper.IsSet(profileKey) {
		fmt.Fprintf(os.Stderr, "Warning: profile '%s' not found in config\n", activeProfile)
		return
	}

	fmt.Fprintf(os.Stderr, "Using profile: %s\n", activeProfile)

	// Settings a profile may override, unless the user set the matching
	// flag explicitly on the command line.
	settings := []string{
		"user",
		"state_file",
		"days",
		"work_start",
		"work_end",
		"provider",
		"credentials_file",
		"token_file",
		"client_id",
		"tenant_id",
		"server_url",
		"username",
		"password",
		"calendar",
		"path",
	}

	for _, key := range settings {
		profileSettingKey := profileKey + "." + key
		if viper.IsSet(profileSettingKey) && !isFlagExplicitlySet(key) {
			viper.Set(key, viper.Get(profileSettingKey))
		}
	}
}

func isFlagExplicitlySet(viperKey string) bool {
	flagName := strings.ReplaceAll(viperKey, "_", "-")
	f := rootCmd.PersistentFlags().Lookup(flagName)

	return f != nil && f.Changed
}

// initApp wires the store, adapters, and engine components. Commands that
// only touch config skip it.
func initApp(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "profile" || cmd.Name() == "auth" ||
		cmd.Parent() != nil && cmd.Parent().Name() == "profile" {
		return nil
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	statePath := expandPath(viper.GetString("state_file"))
	store, err := state.Open(statePath)
	if err != nil {
		return fmt.Errorf("open state file %s: %w", statePath, err)
	}

	adapters := map[core.ProviderKind]core.ProviderAdapter{
		core.ProviderGoogle:  google.New(),
		core.ProviderOutlook: outlook.New(),
		core.ProviderCalDAV:  caldav.New(),
		core.ProviderLocal:   local.New(),
	}

	app = &App{
		Logger:     logger,
		Store:      store,
		Adapters:   adapters,
		Registry:   registry.New(store, adapters, logger),
		Propagator: syncer.New(store, adapters, logger),
		Detector:   schedule.NewDetector(store, adapters, logger),
		User:       viper.GetString("user"),
	}
	app.Advisor = schedule.NewAdvisor(app.Detector)
	return nil
}

// listCommitted is the bare `sked` invocation: committed events in the
// upcoming window, soonest first.
func listCommitted(cmd *cobra.Command, args []string) error {
	now := time.Now()

	start := now
	if fromStr := viper.GetString("from"); fromStr != "" {
		var err error
		start, err = parseDate(fromStr, now)
		if err != nil {
			return err
		}
	}
	days := viper.GetInt("days")
	end := start.Add(time.Duration(days) * 24 * time.Hour)

	events, err := app.Store.ListEvents(cmd.Context(), app.User)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	var visible []*core.SyncedEvent
	for _, event := range events {
		if core.Overlaps(start, end, event.Start, event.End) {
			visible = append(visible, event)
		}
	}

	fmt.Printf("📅 Committed events from %s to %s:\n", start.Format("Jan 2"), end.Format("Jan 2"))
	fmt.Println("─────────────────────────────────────────────────")

	if len(visible) == 0 {
		fmt.Println("No committed events in this window.")
		return nil
	}

	for _, event := range visible {
		fmt.Println()
		displayEvent(event, false)
	}

	fmt.Println("─────────────────────────────────────────────────")
	fmt.Printf("Total: %d events\n", len(visible))

	return nil
}

// displayEvent prints a committed event; detailed adds provider ids and the
// internal id.
func displayEvent(event *core.SyncedEvent, detailed bool) {
	indent := "  "

	fmt.Printf("%s%s\n", indent, event.Title)
	fmt.Printf("%s🕐 When:      %s\n", indent, formatEventTime(event.Start, event.End))
	fmt.Printf("%s⏱️  Duration:  %s\n", indent, formatDurationCompact(event.Duration()))

	if event.Location != "" {
		fmt.Printf("%s📍 Location:  %s\n", indent, event.Location)
	}
	if len(event.Attendees) > 0 {
		fmt.Printf("%s👥 Attendees: %s\n", indent, strings.Join(event.Attendees, ", "))
	}

	var kinds []string
	for kind := range event.ProviderIDs {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	fmt.Printf("%s🔗 Synced to: %s\n", indent, strings.Join(kinds, ", "))

	if detailed {
		for _, kind := range kinds {
			fmt.Printf("%s   %s: %s\n", indent, kind, event.ProviderIDs[core.ProviderKind(kind)])
		}
		fmt.Printf("%s👤 Accounts:  %s\n", indent, strings.Join(event.AccountIDs, ", "))
		if event.Description != "" {
			fmt.Printf("%s📝 Description:\n", indent)
			for _, line := range wrapText(event.Description, 60) {
				fmt.Printf("%s   %s\n", indent, line)
			}
		}
		fmt.Printf("%s🆔 ID:        %s\n", indent, event.ID)
	}

	fmt.Printf("%s🕓 Last sync: %s\n", indent, event.LastSynced.Local().Format("Jan 2 3:04 PM"))

	if event.InProgress(time.Now()) {
		remaining := time.Until(event.End)
		fmt.Printf("%s🟢 IN PROGRESS (%s remaining)\n", indent, formatDurationCompact(remaining))
	}
}

// wrapText wraps text to the given width
func wrapText(s string, width int) []string {
	var lines []string
	for _, paragraph := range strings.Split(s, "\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		words := strings.Fields(paragraph)
		if len(words) == 0 {
			continue
		}

		line := words[0]
		for _, word := range words[1:] {
			if len(line)+1+len(word) > width {
				lines = append(lines, line)
				line = word
			} else {
				line += " " + word
			}
		}
		lines = append(lines, line)
	}
	return lines
}

// formatDurationCompact formats a duration in a compact way
func formatDurationCompact(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		if hours > 0 {
			return fmt.Sprintf("%dd %dh", days, hours)
		}
		return fmt.Sprintf("%dd", days)
	}
	if hours > 0 {
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dm", minutes)
}

func formatEventTime(start, end time.Time) string {
	// Convert to local timezone for display
	localStart := start.Local()
	localEnd := end.Local()

	if localStart.Day() == localEnd.Day() {
		return fmt.Sprintf("%s, %s - %s", localStart.Format("Mon, Jan 2"), localStart.Format("3:04 PM"), localEnd.Format("3:04 PM"))
	}
	return fmt.Sprintf("%s - %s", localStart.Format("Mon, Jan 2 3:04 PM"), localEnd.Format("Mon, Jan 2 3:04 PM"))
}

// parseDate parses a date string in various formats
// Supports: YYYY-MM-DD, "today", "tomorrow", "yesterday", weekday names
func parseDate(s string, defaultTime time.Time) (time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch s {
	case "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}

	// Weekday names (e.g., "monday", "next tuesday")
	weekdays := map[string]time.Weekday{
		"sunday": time.Sunday, "sun": time.Sunday,
		"monday": time.Monday, "mon": time.Monday,
		"tuesday": time.Tuesday, "tue": time.Tuesday,
		"wednesday": time.Wednesday, "wed": time.Wednesday,
		"thursday": time.Thursday, "thu": time.Thursday,
		"friday": time.Friday, "fri": time.Friday,
		"saturday": time.Saturday, "sat": time.Saturday,
	}

	dayName := strings.TrimPrefix(s, "next ")
	if wd, ok := weekdays[dayName]; ok {
		daysUntil := int(wd - today.Weekday())
		if daysUntil <= 0 {
			daysUntil += 7
		}
		return today.AddDate(0, 0, daysUntil), nil
	}

	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("01-02", s, now.Location()); err == nil {
		return t.AddDate(now.Year(), 0, 0), nil
	}
	if t, err := time.ParseInLocation("01/02", s, now.Location()); err == nil {
		return t.AddDate(now.Year(), 0, 0), nil
	}
	if t, err := time.ParseInLocation("01/02/2006", s, now.Location()); err == nil {
		return t, nil
	}

	return defaultTime, fmt.Errorf("unable to parse date: %s (use YYYY-MM-DD, 'today', 'tomorrow', or weekday names)", s)
}

// expandPath expands ~ to the user's home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
