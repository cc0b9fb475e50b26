package core

import (
	"fmt"
	"time"
)

// Draft is a not-yet-committed event description handed to us by the
// upstream draft workflow. It carries exactly the fields a provider needs
// to materialize the event; nothing richer is accepted.
type Draft struct {
	Title       string
	Start       time.Time
	End         time.Time
	Location    string
	Description string
	Attendees   []string
}

// Validate checks the draft's preconditions before any provider is contacted.
func (d Draft) Validate() error {
	if d.Title == "" {
		return fmt.Errorf("%w: draft title is empty", ErrInvalidInput)
	}
	if d.Start.IsZero() || d.End.IsZero() {
		return fmt.Errorf("%w: draft start/end not set", ErrInvalidInput)
	}
	if !d.Start.Before(d.End) {
		return ErrInvalidInterval
	}
	return nil
}

// Duration returns the length of the drafted event.
func (d Draft) Duration() time.Duration {
	return d.End.Sub(d.Start)
}

// SyncedEvent is our internal record of an event already committed to at
// least one provider. ProviderIDs maps a provider kind to that provider's
// own identifier for the event; AccountIDs lists the accounts it was
// committed under. The ProviderIDs key set is always a subset of the
// provider kinds of those accounts.
type SyncedEvent struct {
	ID          string                  `json:"id"`
	User        string                  `json:"user"`
	Title       string                  `json:"title"`
	Start       time.Time               `json:"start"`
	End         time.Time               `json:"end"`
	Location    string                  `json:"location,omitempty"`
	Description string                  `json:"description,omitempty"`
	Attendees   []string                `json:"attendees,omitempty"`
	ProviderIDs map[ProviderKind]string `json:"provider_ids"`
	AccountIDs  []string                `json:"account_ids"`
	LastSynced  time.Time               `json:"last_synced"`
}

// Duration returns the length of the event.
func (e *SyncedEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// InProgress checks if the event is happening right now.
func (e *SyncedEvent) InProgress(now time.Time) bool {
	return now.After(e.Start) && now.Before(e.End)
}

// Clone returns a deep copy, so callers can mutate without aliasing stored
// state.
func (e *SyncedEvent) Clone() *SyncedEvent {
	cp := *e
	cp.Attendees = append([]string(nil), e.Attendees...)
	cp.AccountIDs = append([]string(nil), e.AccountIDs...)
	cp.ProviderIDs = make(map[ProviderKind]string, len(e.ProviderIDs))
	for k, v := range e.ProviderIDs {
		cp.ProviderIDs[k] = v
	}
	return &cp
}

// Timespan is a candidate start/end pair proposed by the reschedule advisor.
// It is transient and never persisted.
type Timespan struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [s1,e1) and [s2,e2) intersect. Intervals are
// half-open: touching endpoints do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && e1.After(s2)
}

// ConflictSource tells where the colliding event was seen.
type ConflictSource string

const (
	// Tracked by us in the event store
	SourceInternal ConflictSource = "internal"
	// Only visible through a provider's calendar
	SourceExternal ConflictSource = "external"
)

// ReasonTimeOverlap is the only conflict reason this engine produces today.
const ReasonTimeOverlap = "time_overlap"

// Conflict is one detected overlap between a candidate draft and an
// existing event. It is recomputed fresh on every detection call and never
// consulted as authoritative state afterward.
type Conflict struct {
	User   string
	Source ConflictSource
	Reason string
	// Identity of the tracked event; empty for external-only events.
	EventID string
	// Provider that reported the event; set for external conflicts.
	Provider ProviderKind
	// Human-readable descriptor of the colliding event.
	Title string
	Start time.Time
	End   time.Time
}

// Constraints bounds reschedule suggestions to a working-hours window,
// compared on local hour-of-day for both endpoints.
type Constraints struct {
	WorkingHoursStart int
	WorkingHoursEnd   int
}

// DefaultConstraints is the 9–17 window used when the caller supplies none.
func DefaultConstraints() Constraints {
	return Constraints{WorkingHoursStart: 9, WorkingHoursEnd: 17}
}

// Validate rejects nonsensical windows before any candidate is generated.
func (c Constraints) Validate() error {
	if c.WorkingHoursStart < 0 || c.WorkingHoursEnd > 24 || c.WorkingHoursStart >= c.WorkingHoursEnd {
		return fmt.Errorf("%w: working hours %d-%d", ErrInvalidInput, c.WorkingHoursStart, c.WorkingHoursEnd)
	}
	return nil
}

// Allows reports whether the candidate lies inside the working-hours window.
// The end hour is inclusive only on the exact hour boundary, so a 16:00–17:00
// candidate fits a 9–17 window while 16:30–17:30 does not.
func (c Constraints) Allows(span Timespan) bool {
	start := span.Start.Local()
	end := span.End.Local()
	if start.Hour() < c.WorkingHoursStart {
		return false
	}
	if end.Hour() > c.WorkingHoursEnd {
		return false
	}
	if end.Hour() == c.WorkingHoursEnd && (end.Minute() != 0 || end.Second() != 0) {
		return false
	}
	return true
}
