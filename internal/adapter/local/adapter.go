// Package local implements a provider adapter backed by a directory of .ics
// files on disk. It needs no network or OAuth setup, which makes it the
// default target for trying the tool out and the workhorse of the test
// environment.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/skedtool/sked/internal/core"
)

// Adapter stores one VEVENT per .ics file under the account's configured
// directory. The file name (minus extension) is the provider event id.
type Adapter struct{}

// New creates the adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Kind() core.ProviderKind { return core.ProviderLocal }

func dir(creds core.Credentials) (string, error) {
	if creds.Path == "" {
		return "", fmt.Errorf("%w: path missing for local account", core.ErrInvalidCredentials)
	}
	return creds.Path, nil
}

// ValidateCredentials ensures the calendar directory exists and is writable.
func (a *Adapter) ValidateCredentials(_ context.Context, creds core.Credentials) error {
	d, err := dir(creds)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d, 0o755); err != nil {
		return fmt.Errorf("create calendar directory: %w", err)
	}
	return nil
}

// CreateEvent writes the draft as a new .ics file and returns its id.
func (a *Adapter) CreateEvent(_ context.Context, creds core.Credentials, draft core.Draft) (string, error) {
	d, err := dir(creds)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(d, 0o755); err != nil {
		return "", fmt.Errorf("create calendar directory: %w", err)
	}

	uid := uuid.New().String()
	cal := wrapCalendar(buildVEvent(uid, draft))
	if err := writeCalendar(filepath.Join(d, uid+".ics"), cal); err != nil {
		return "", err
	}
	return uid, nil
}

// UpdateEvent patches the changed properties on the stored VEVENT.
func (a *Adapter) UpdateEvent(_ context.Context, creds core.Credentials, providerEventID string, changes core.EventChanges) error {
	d, err := dir(creds)
	if err != nil {
		return err
	}

	path := filepath.Join(d, providerEventID+".ics")
	cal, err := readCalendar(path)
	if err != nil {
		return err
	}
	vevent := findVEvent(cal)
	if vevent == nil {
		return fmt.Errorf("file %s has no VEVENT", path)
	}

	if changes.Title != nil {
		vevent.Props.SetText(ical.PropSummary, *changes.Title)
	}
	if changes.Description != nil {
		vevent.Props.SetText(ical.PropDescription, *changes.Description)
	}
	if changes.Location != nil {
		vevent.Props.SetText(ical.PropLocation, *changes.Location)
	}
	if changes.Start != nil {
		vevent.Props.SetDateTime(ical.PropDateTimeStart, changes.Start.UTC())
	}
	if changes.End != nil {
		vevent.Props.SetDateTime(ical.PropDateTimeEnd, changes.End.UTC())
	}
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())

	return writeCalendar(path, cal)
}

// DeleteEvent removes the event's .ics file.
func (a *Adapter) DeleteEvent(_ context.Context, creds core.Credentials, providerEventID string) error {
	d, err := dir(creds)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(d, providerEventID+".ics")); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("event %s: %w", providerEventID, core.ErrNotFound)
		}
		return fmt.Errorf("remove event file: %w", err)
	}
	return nil
}

// ListEvents scans the directory and returns every timed event intersecting
// [from, to). Unreadable or malformed files are skipped.
func (a *Adapter) ListEvents(_ context.Context, creds core.Credentials, from, to time.Time) ([]core.RemoteEvent, error) {
	d, err := dir(creds)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(d)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read calendar directory: %w", err)
	}

	var results []core.RemoteEvent
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".ics") {
			continue
		}
		cal, err := readCalendar(filepath.Join(d, entry.Name()))
		if err != nil {
			continue
		}
		vevent := findVEvent(cal)
		if vevent == nil {
			continue
		}
		remote, ok := parseVEvent(vevent)
		if !ok {
			continue
		}
		if remote.ProviderEventID == "" {
			remote.ProviderEventID = strings.TrimSuffix(entry.Name(), ".ics")
		}
		if !core.Overlaps(from, to, remote.Start, remote.End) {
			continue
		}
		results = append(results, remote)
	}
	return results, nil
}

func writeCalendar(path string, cal *ical.Calendar) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create event file: %w", err)
	}
	defer f.Close()

	if err := ical.NewEncoder(f).Encode(cal); err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return nil
}

func readCalendar(path string) (*ical.Calendar, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("event file %s: %w", path, core.ErrNotFound)
		}
		return nil, fmt.Errorf("open event file: %w", err)
	}
	defer f.Close()

	cal, err := ical.NewDecoder(f).Decode()
	if err != nil {
		return nil, fmt.Errorf("decode event file: %w", err)
	}
	return cal, nil
}

// buildVEvent converts a draft into an iCalendar VEVENT component.
func buildVEvent(uid string, draft core.Draft) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, draft.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, draft.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, draft.End.UTC())

	if draft.Description != "" {
		ve.Props.SetText(ical.PropDescription, draft.Description)
	}
	if draft.Location != "" {
		ve.Props.SetText(ical.PropLocation, draft.Location)
	}
	for _, attendee := range draft.Attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.SetText(fmt.Sprintf("mailto:%s", attendee))
		ve.Props.Add(p)
	}
	return ve
}

// wrapCalendar puts a VEVENT inside a minimal VCALENDAR envelope.
func wrapCalendar(vevent *ical.Component) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//sked//EN")
	cal.Children = append(cal.Children, vevent)
	return cal
}

// findVEvent returns the first VEVENT component of a calendar, or nil.
func findVEvent(cal *ical.Calendar) *ical.Component {
	if cal == nil {
		return nil
	}
	for _, child := range cal.Children {
		if child.Name == ical.CompEvent {
			return child
		}
	}
	return nil
}

// parseVEvent extracts id, title, and the timed interval from a VEVENT.
func parseVEvent(vevent *ical.Component) (core.RemoteEvent, bool) {
	startProp := vevent.Props.Get(ical.PropDateTimeStart)
	endProp := vevent.Props.Get(ical.PropDateTimeEnd)
	if startProp == nil || endProp == nil {
		return core.RemoteEvent{}, false
	}
	start, err := startProp.DateTime(time.UTC)
	if err != nil {
		return core.RemoteEvent{}, false
	}
	end, err := endProp.DateTime(time.UTC)
	if err != nil {
		return core.RemoteEvent{}, false
	}

	title := ""
	if p := vevent.Props.Get(ical.PropSummary); p != nil {
		title, _ = p.Text()
	}
	uid := ""
	if p := vevent.Props.Get(ical.PropUID); p != nil {
		uid, _ = p.Text()
	}

	return core.RemoteEvent{
		ProviderEventID: uid,
		Title:           title,
		Start:           start,
		End:             end,
	}, true
}
