package core

import (
	"fmt"
	"strings"
	"time"
)

// EventChanges is the closed set of fields an update may touch. Nil means
// "leave as is". Unknown field names never reach this struct; ParseChanges
// reports them so the caller can warn instead of failing.
type EventChanges struct {
	Title       *string
	Location    *string
	Description *string
	Start       *time.Time
	End         *time.Time
}

// Empty reports whether no field is set.
func (c EventChanges) Empty() bool {
	return c.Title == nil && c.Location == nil && c.Description == nil &&
		c.Start == nil && c.End == nil
}

// Apply mutates the event in place with the set fields.
func (c EventChanges) Apply(e *SyncedEvent) {
	if c.Title != nil {
		e.Title = *c.Title
	}
	if c.Location != nil {
		e.Location = *c.Location
	}
	if c.Description != nil {
		e.Description = *c.Description
	}
	if c.Start != nil {
		e.Start = *c.Start
	}
	if c.End != nil {
		e.End = *c.End
	}
}

// ValidateAgainst checks that applying the changes to the event keeps its
// interval well-formed. Runs before any provider is contacted.
func (c EventChanges) ValidateAgainst(e *SyncedEvent) error {
	start := e.Start
	end := e.End
	if c.Start != nil {
		start = *c.Start
	}
	if c.End != nil {
		end = *c.End
	}
	if !start.Before(end) {
		return ErrInvalidInterval
	}
	return nil
}

// timeLayouts accepted for start/end values in change pairs.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseChangeTime parses a timestamp in any of the accepted layouts, in the
// local timezone unless an offset is given.
func ParseChangeTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unable to parse time %q (use RFC3339 or \"2006-01-02 15:04\")", ErrInvalidInput, s)
}

// ParseChanges turns "field=value" pairs into EventChanges. Unrecognized
// field names are not an error: they are returned in ignored, and the caller
// logs a warning for each. A malformed pair or unparsable time is an error.
func ParseChanges(pairs []string) (EventChanges, []string, error) {
	var changes EventChanges
	var ignored []string

	for _, pair := range pairs {
		field, value, found := strings.Cut(pair, "=")
		if !found {
			return EventChanges{}, nil, fmt.Errorf("%w: expected field=value, got %q", ErrInvalidInput, pair)
		}

		switch strings.ToLower(strings.TrimSpace(field)) {
		case "title":
			v := value
			changes.Title = &v
		case "location":
			v := value
			changes.Location = &v
		case "description":
			v := value
			changes.Description = &v
		case "start":
			t, err := ParseChangeTime(value)
			if err != nil {
				return EventChanges{}, nil, err
			}
			changes.Start = &t
		case "end":
			t, err := ParseChangeTime(value)
			if err != nil {
				return EventChanges{}, nil, err
			}
			changes.End = &t
		default:
			ignored = append(ignored, field)
		}
	}

	return changes, ignored, nil
}
