// Package tui renders an interactive day view over the user's committed
// events, loaded from local state.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/skedtool/sked/internal/core"
	"github.com/skedtool/sked/internal/util"
)

// KeyMap defines the keybindings for the TUI
type KeyMap struct {
	Up         key.Binding
	Down       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Refresh    key.Binding
	NextDay    key.Binding
	PrevDay    key.Binding
	Today      key.Binding
	Tab        key.Binding
	Quit       key.Binding
	Help       key.Binding
}

var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓", "down"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("ctrl+u", "pgup"),
		key.WithHelp("ctrl+u", "scroll up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("ctrl+d", "pgdown"),
		key.WithHelp("ctrl+d", "scroll down"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reload"),
	),
	NextDay: key.NewBinding(
		key.WithKeys("right"),
		key.WithHelp("→", "next day"),
	),
	PrevDay: key.NewBinding(
		key.WithKeys("left"),
		key.WithHelp("←", "prev day"),
	),
	Today: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "today"),
	),
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "switch panel"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
}

// Panel focus for compact mode
type PanelFocus int

const (
	FocusList PanelFocus = iota
	FocusDetail
)

// Model is the Bubble Tea model for the day view.
type Model struct {
	store         core.Store
	user          string
	events        []*core.SyncedEvent
	selectedIdx   int
	currentDate   time.Time
	width         int
	height        int
	listWidth     int
	detailWidth   int
	contentHeight int
	keys          KeyMap
	loading       bool
	err           error
	listView      viewport.Model
	detailView    viewport.Model
	viewportReady bool
	compactMode   bool       // True when terminal is too narrow for side-by-side
	focusedPanel  PanelFocus // Which panel is shown in compact mode
	showHelp      bool
}

// NewModel creates a TUI model reading the given user's events from store.
func NewModel(store core.Store, user string) Model {
	return Model{
		store:       store,
		user:        user,
		events:      []*core.SyncedEvent{},
		currentDate: time.Now(),
		keys:        DefaultKeyMap,
		loading:     true,
	}
}

// Messages
type eventsLoadedMsg struct {
	events []*core.SyncedEvent
	err    error
}

type tickMsg time.Time

// loadEvents fetches the user's events that intersect the viewed day.
func (m Model) loadEvents() tea.Cmd {
	return func() tea.Msg {
		dayStart := time.Date(m.currentDate.Year(), m.currentDate.Month(), m.currentDate.Day(), 0, 0, 0, 0, m.currentDate.Location())
		dayEnd := dayStart.Add(24 * time.Hour)

		all, err := m.store.ListEvents(context.Background(), m.user)
		if err != nil {
			return eventsLoadedMsg{err: err}
		}

		var events []*core.SyncedEvent
		for _, event := range all {
			if core.Overlaps(dayStart, dayEnd, event.Start, event.End) {
				events = append(events, event)
			}
		}
		sort.Slice(events, func(i, j int) bool {
			return events[i].Start.Before(events[j].Start)
		})
		return eventsLoadedMsg{events: events}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Minute, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadEvents(), tickCmd())
}

func (m Model) isToday() bool {
	now := time.Now()
	return m.currentDate.Year() == now.Year() &&
		m.currentDate.Month() == now.Month() &&
		m.currentDate.Day() == now.Day()
}

// findNowEventIdx returns the index of the first upcoming event on today's
// view, or 0 for other days.
func (m *Model) findNowEventIdx() int {
	if len(m.events) == 0 || !m.isToday() {
		return 0
	}
	now := time.Now()
	for i, event := range m.events {
		if event.Start.After(now) {
			return i
		}
	}
	return len(m.events) - 1
}

// calculateLayout calculates responsive layout dimensions
func (m *Model) calculateLayout() {
	minHeight := 10

	width := m.width
	height := m.height
	if height < minHeight {
		height = minHeight
	}

	// Header: ~2 lines, Help: ~2 lines, Padding: ~2 lines
	m.contentHeight = height - 6
	if m.contentHeight < 5 {
		m.contentHeight = 5
	}

	compactThreshold := 70
	m.compactMode = width < compactThreshold

	if m.compactMode {
		m.listWidth = width - 4
		m.detailWidth = width - 4
		if m.listWidth < 20 {
			m.listWidth = 20
		}
		if m.detailWidth < 20 {
			m.detailWidth = 20
		}
	} else {
		if width < 100 {
			m.listWidth = width * 40 / 100
		} else {
			m.listWidth = width * 35 / 100
			if m.listWidth > 55 {
				m.listWidth = 55
			}
		}
		if m.listWidth < 30 {
			m.listWidth = 30
		}
		m.detailWidth = width - m.listWidth - 5
		if m.detailWidth < 35 {
			m.detailWidth = 35
		}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.calculateLayout()

		listViewportHeight := m.contentHeight - 4
		if listViewportHeight < 1 {
			listViewportHeight = 1
		}
		listViewportWidth := m.listWidth - 4
		if listViewportWidth < 10 {
			listViewportWidth = 10
		}
		detailViewportHeight := m.contentHeight - 4
		if detailViewportHeight < 1 {
			detailViewportHeight = 1
		}
		detailViewportWidth := m.detailWidth - 4
		if detailViewportWidth < 10 {
			detailViewportWidth = 10
		}

		if !m.viewportReady {
			m.listView = viewport.New(listViewportWidth, listViewportHeight)
			m.listView.Style = lipgloss.NewStyle()
			m.detailView = viewport.New(detailViewportWidth, detailViewportHeight)
			m.detailView.Style = lipgloss.NewStyle()
			m.viewportReady = true
		} else {
			m.listView.Width = listViewportWidth
			m.listView.Height = listViewportHeight
			m.detailView.Width = detailViewportWidth
			m.detailView.Height = detailViewportHeight
		}
		m.updateListContent()
		m.updateDetailContent()
		return m, nil

	case eventsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.events = msg.events
			m.selectedIdx = m.findNowEventIdx()
			m.updateListContent()
			m.updateDetailContent()
			m.listView.GotoTop()
		}
		return m, nil

	case tickMsg:
		// Refresh every minute so countdowns stay current
		m.updateListContent()
		m.updateDetailContent()
		return m, tickCmd()

	case tea.KeyMsg:
		// When help overlay is shown, any key dismisses it
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = true
			return m, nil

		case key.Matches(msg, m.keys.Up):
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateListContent()
				m.scrollListToSelection()
				m.updateDetailContent()
				m.detailView.GotoTop()
			}
			return m, nil

		case key.Matches(msg, m.keys.Down):
			if m.selectedIdx < len(m.events)-1 {
				m.selectedIdx++
				m.updateListContent()
				m.scrollListToSelection()
				m.updateDetailContent()
				m.detailView.GotoTop()
			}
			return m, nil

		case key.Matches(msg, m.keys.ScrollUp):
			if m.compactMode && m.focusedPanel == FocusList {
				m.listView.ViewUp()
			} else {
				m.detailView.ViewUp()
			}
			return m, nil

		case key.Matches(msg, m.keys.ScrollDown):
			if m.compactMode && m.focusedPanel == FocusList {
				m.listView.ViewDown()
			} else {
				m.detailView.ViewDown()
			}
			return m, nil

		case key.Matches(msg, m.keys.NextDay):
			m.currentDate = m.currentDate.AddDate(0, 0, 1)
			m.loading = true
			return m, m.loadEvents()

		case key.Matches(msg, m.keys.PrevDay):
			m.currentDate = m.currentDate.AddDate(0, 0, -1)
			m.loading = true
			return m, m.loadEvents()

		case key.Matches(msg, m.keys.Today):
			if m.isToday() {
				m.selectedIdx = m.findNowEventIdx()
				m.updateListContent()
				m.scrollListToSelection()
				m.updateDetailContent()
				return m, nil
			}
			m.currentDate = time.Now()
			m.loading = true
			return m, m.loadEvents()

		case key.Matches(msg, m.keys.Tab):
			if m.focusedPanel == FocusList {
				m.focusedPanel = FocusDetail
			} else {
				m.focusedPanel = FocusList
			}
			return m, nil

		case key.Matches(msg, m.keys.Refresh):
			m.loading = true
			return m, m.loadEvents()
		}
	}
	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := m.renderHeader()

	var content string
	if m.loading {
		content = lipgloss.NewStyle().
			Width(m.width-4).
			Height(m.contentHeight).
			Align(lipgloss.Center, lipgloss.Center).
			Render("Loading events...")
	} else if m.err != nil {
		content = lipgloss.NewStyle().
			Width(m.width - 4).
			Height(m.contentHeight).
			Foreground(errorColor).
			Render(fmt.Sprintf("Error: %v", m.err))
	} else if m.compactMode {
		if m.showHelp {
			content = m.renderHelpPanel()
		} else if m.focusedPanel == FocusList {
			content = m.renderListPanel()
		} else {
			content = m.renderDetailPanel()
		}
	} else {
		listPanel := m.renderListPanel()
		var rightPanel string
		if m.showHelp {
			rightPanel = m.renderHelpPanel()
		} else {
			rightPanel = m.renderDetailPanel()
		}
		content = lipgloss.JoinHorizontal(lipgloss.Top, listPanel, " ", rightPanel)
	}

	help := m.renderHelp()

	return AppStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left, header, content, help),
	)
}

func (m Model) renderHeader() string {
	dateStr := m.currentDate.Format("Monday, January 2, 2006")
	if m.isToday() {
		dateStr = "Today • " + dateStr
	}

	title := HeaderStyle.Render("sked")
	date := lipgloss.NewStyle().Foreground(mutedColor).Render(dateStr)

	panelIndicator := ""
	if m.compactMode {
		label := " [Events]"
		if m.focusedPanel == FocusDetail {
			label = " [Details]"
		}
		panelIndicator = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true).
			Render(label)
	}

	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", date, panelIndicator)
}

// updateListContent updates the list viewport with current events
func (m *Model) updateListContent() {
	if !m.viewportReady {
		return
	}

	var items []string
	if len(m.events) == 0 {
		items = append(items, NormalItemStyle.Render("No committed events"))
	} else {
		for i, event := range m.events {
			items = append(items, m.renderListItem(event, i == m.selectedIdx, m.listView.Width))
		}
	}
	m.listView.SetContent(strings.Join(items, "\n"))
}

// scrollListToSelection keeps the selected item inside the viewport.
func (m *Model) scrollListToSelection() {
	if !m.viewportReady || len(m.events) == 0 {
		return
	}

	selectedTop := m.selectedIdx
	selectedBottom := selectedTop + 1

	viewTop := m.listView.YOffset
	viewBottom := viewTop + m.listView.Height

	if selectedTop < viewTop {
		m.listView.SetYOffset(selectedTop)
	}
	if selectedBottom > viewBottom {
		m.listView.SetYOffset(selectedBottom - m.listView.Height)
	}
}

func (m Model) renderListPanel() string {
	if len(m.events) == 0 {
		return ListPanelStyle.Width(m.listWidth).Height(m.contentHeight).Render(
			lipgloss.NewStyle().
				Foreground(mutedColor).
				Render("No committed events"),
		)
	}

	scrollInfo := ""
	if m.viewportReady && m.listView.TotalLineCount() > m.listView.Height {
		scrollInfo = lipgloss.NewStyle().
			Foreground(mutedColor).
			Render(fmt.Sprintf(" (%d/%d)", m.selectedIdx+1, len(m.events)))
	}

	header := lipgloss.NewStyle().
		Foreground(primaryColor).
		Bold(true).
		Render("Events") + scrollInfo

	return ListPanelStyle.Width(m.listWidth).Height(m.contentHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, header, m.listView.View()),
	)
}

func (m Model) renderListItem(event *core.SyncedEvent, selected bool, maxWidth int) string {
	now := time.Now()
	isPast := event.End.Before(now)
	isInProgress := event.InProgress(now)

	localStart := event.Start.Local()
	timeStr := localStart.Format("3:04 PM")
	if isPast {
		timeStr = "✓ " + timeStr
	}

	var timeStyled string
	if isPast {
		timeStyled = PastTimeStyle.Render(timeStr)
	} else {
		timeStyled = TimeStyle.Render(timeStr)
	}

	duration := DurationStyle.Render(formatDuration(event.Duration()))

	// Time (12) + Duration (6) + spaces and indicators
	titleWidth := maxWidth - 24
	if titleWidth < 10 {
		titleWidth = 10
	}
	title := util.TruncateText(event.Title, titleWidth)

	statusIcon := ""
	if isInProgress {
		statusIcon = " ●"
	}

	line := fmt.Sprintf("%s %s %s%s", timeStyled, duration, title, statusIcon)

	if selected {
		if isPast {
			return SelectedPastStyle.Render(line)
		}
		return SelectedItemStyle.Render(line)
	}
	if isPast {
		return PastItemStyle.Render(line)
	}
	return NormalItemStyle.Render(line)
}

// updateDetailContent updates the viewport with the current event details
func (m *Model) updateDetailContent() {
	if len(m.events) == 0 || !m.viewportReady {
		return
	}

	event := m.events[m.selectedIdx]
	width := m.detailView.Width
	var lines []string

	lines = append(lines, TitleStyle.Render(ansi.Wordwrap(event.Title, width, "")))
	lines = append(lines, "")

	lines = append(lines, renderField("When", formatEventTime(event.Start, event.End)))
	lines = append(lines, renderField("Duration", formatDuration(event.Duration())))

	now := time.Now()
	if event.End.Before(now) {
		ago := now.Sub(event.End)
		lines = append(lines, "")
		lines = append(lines, lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true).
			Render(fmt.Sprintf("✓ Ended %s ago", formatDuration(ago))))
	} else if event.InProgress(now) {
		remaining := event.End.Sub(now)
		lines = append(lines, "")
		lines = append(lines, InProgressStyle.Render(fmt.Sprintf("IN PROGRESS • %s remaining", formatDuration(remaining))))
	} else if event.Start.After(now) {
		until := event.Start.Sub(now)
		lines = append(lines, "")
		lines = append(lines, lipgloss.NewStyle().Foreground(accentColor).Render(fmt.Sprintf("Starts in %s", formatDuration(until))))
	}

	lines = append(lines, "")

	if event.Location != "" {
		lines = append(lines, renderWrappedField("Location", event.Location, width))
	}

	// Provider sync state
	lines = append(lines, LabelStyle.Render("Synced to"))
	var kinds []string
	for kind := range event.ProviderIDs {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		id := util.TruncateText(event.ProviderIDs[core.ProviderKind(kind)], width-len(kind)-6)
		lines = append(lines, fmt.Sprintf("   %s %s", ProviderStyle.Render(kind), lipgloss.NewStyle().Foreground(mutedColor).Render(id)))
	}
	lines = append(lines, renderField("Last sync", event.LastSynced.Local().Format("Jan 2 3:04 PM")))

	if len(event.Attendees) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderWrappedField("Attendees", strings.Join(event.Attendees, ", "), width))
	}

	if event.Description != "" {
		lines = append(lines, "")
		lines = append(lines, LabelStyle.Render("Description"))
		lines = append(lines, ValueStyle.Render(ansi.Wordwrap(event.Description, width, "")))
	}

	m.detailView.SetContent(strings.Join(lines, "\n"))
}

func (m Model) renderDetailPanel() string {
	if len(m.events) == 0 {
		return DetailPanelStyle.Width(m.detailWidth).Height(m.contentHeight).Render(
			lipgloss.NewStyle().
				Foreground(mutedColor).
				Render("No event selected"),
		)
	}

	scrollInfo := ""
	if m.viewportReady && m.detailView.TotalLineCount() > m.detailView.Height {
		scrollPct := int(m.detailView.ScrollPercent() * 100)
		scrollInfo = lipgloss.NewStyle().
			Foreground(mutedColor).
			Render(fmt.Sprintf(" (%d%%)", scrollPct))
	}

	header := lipgloss.NewStyle().
		Foreground(primaryColor).
		Bold(true).
		Render("Event Details") + scrollInfo

	return DetailPanelStyle.Width(m.detailWidth).Height(m.contentHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, header, "", m.detailView.View()),
	)
}

func (m Model) renderHelp() string {
	keys := []string{
		HelpKeyStyle.Render("↑/↓") + " nav",
		HelpKeyStyle.Render("←/→") + " day",
		HelpKeyStyle.Render("tab") + " panel",
		HelpKeyStyle.Render("t") + " today",
		HelpKeyStyle.Render("r") + " reload",
		HelpKeyStyle.Render("q") + " quit",
	}

	fullLine := strings.Join(keys, "  •  ")

	maxWidth := m.width - 4
	if lipgloss.Width(fullLine) > maxWidth {
		return HelpStyle.Render(HelpKeyStyle.Render("?") + " help")
	}
	return HelpStyle.Render(fullLine)
}

func (m Model) renderHelpPanel() string {
	header := lipgloss.NewStyle().
		Foreground(primaryColor).
		Bold(true).
		Render("Keyboard Shortcuts")

	lines := []string{
		"",
		HelpKeyStyle.Render("  ↑/k        ") + " Move up",
		HelpKeyStyle.Render("  ↓/j        ") + " Move down",
		HelpKeyStyle.Render("  ctrl+u/d   ") + " Scroll detail panel",
		HelpKeyStyle.Render("  →          ") + " Next day",
		HelpKeyStyle.Render("  ←          ") + " Previous day",
		HelpKeyStyle.Render("  t          ") + " Jump to today",
		HelpKeyStyle.Render("  tab        ") + " Switch panel",
		HelpKeyStyle.Render("  r          ") + " Reload events",
		HelpKeyStyle.Render("  q / ctrl+c ") + " Quit",
		"",
		lipgloss.NewStyle().Foreground(mutedColor).Italic(true).Render("  Press any key to close"),
	}

	panelWidth := m.detailWidth
	if m.compactMode {
		panelWidth = m.listWidth
	}

	return DetailPanelStyle.Width(panelWidth).Height(m.contentHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, header, strings.Join(lines, "\n")),
	)
}

// Helper functions
func renderField(label, value string) string {
	return LabelStyle.Render(label) + " " + ValueStyle.Render(value)
}

// renderWrappedField renders a label-value field, word-wrapping the value
// to fit within maxWidth. Continuation lines align with the value.
func renderWrappedField(label, value string, maxWidth int) string {
	labelRendered := LabelStyle.Render(label)
	labelWidth := lipgloss.Width(labelRendered) + 1
	valueWidth := maxWidth - labelWidth
	if valueWidth < 10 {
		valueWidth = 10
	}
	wrapped := ansi.Wordwrap(value, valueWidth, "")
	wrapLines := strings.Split(wrapped, "\n")
	indent := strings.Repeat(" ", labelWidth)
	for i := 1; i < len(wrapLines); i++ {
		wrapLines[i] = indent + wrapLines[i]
	}
	return labelRendered + " " + ValueStyle.Render(strings.Join(wrapLines, "\n"))
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours()) / 24
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
	localStart := start.Local()
	localEnd := end.Local()

	if localStart.Day() == localEnd.Day() {
		return fmt.Sprintf("%s, %s - %s",
			localStart.Format("Mon, Jan 2"),
			localStart.Format("3:04 PM"),
			localEnd.Format("3:04 PM"))
	}
	return fmt.Sprintf("%s - %s",
		localStart.Format("Mon, Jan 2 3:04 PM"),
		localEnd.Format("Mon, Jan 2 3:04 PM"))
}
