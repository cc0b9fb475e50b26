// Package caldav implements the provider adapter for generic CalDAV servers
// (iCloud, Fastmail, Nextcloud, Radicale) using basic-auth app passwords.
package caldav

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"github.com/skedtool/sked/internal/core"
)

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "sked/1.0")
	return t.Transport.RoundTrip(req)
}

// Adapter talks to a CalDAV server. It is stateless: every call builds a
// client from the supplied credentials, so one instance serves all caldav
// accounts regardless of which server they point at.
type Adapter struct{}

// New creates the adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Kind() core.ProviderKind { return core.ProviderCalDAV }

func (a *Adapter) client(creds core.Credentials) (*caldav.Client, error) {
	if creds.ServerURL == "" {
		return nil, fmt.Errorf("%w: server_url missing for caldav account", core.ErrInvalidCredentials)
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: username/password missing for caldav account", core.ErrInvalidCredentials)
	}

	transport := &customTransport{
		Username:  creds.Username,
		Password:  creds.Password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport, Timeout: 30 * time.Second}

	client, err := caldav.NewClient(httpClient, creds.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("create caldav client: %w", err)
	}
	return client, nil
}

// findCalendar discovers the user's calendars and returns the server-relative
// path of the one matching creds.CalendarName, or the first calendar when no
// name is configured.
func (a *Adapter) findCalendar(ctx context.Context, client *caldav.Client, creds core.Credentials) (string, error) {
	principalPath, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("find principal path: %w", err)
	}

	homeSetPath, err := client.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("find calendar home set: %w", err)
	}

	calendars, err := client.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("find calendars: %w", err)
	}
	if len(calendars) == 0 {
		return "", fmt.Errorf("no calendars on server")
	}

	if creds.CalendarName == "" {
		return calendars[0].Path, nil
	}
	for _, cal := range calendars {
		if cal.Name == creds.CalendarName {
			return cal.Path, nil
		}
	}
	return "", fmt.Errorf("no calendar found with name %q", creds.CalendarName)
}

// ValidateCredentials performs principal discovery, which exercises the
// basic-auth credentials and confirms the named calendar exists.
func (a *Adapter) ValidateCredentials(ctx context.Context, creds core.Credentials) error {
	client, err := a.client(creds)
	if err != nil {
		return err
	}
	if _, err := a.findCalendar(ctx, client, creds); err != nil {
		return err
	}
	return nil
}

// CreateEvent writes a single-VEVENT calendar object named after a fresh
// UID, which doubles as the provider event id.
func (a *Adapter) CreateEvent(ctx context.Context, creds core.Credentials, draft core.Draft) (string, error) {
	client, err := a.client(creds)
	if err != nil {
		return "", err
	}
	calendarPath, err := a.findCalendar(ctx, client, creds)
	if err != nil {
		return "", err
	}

	uid := uuid.New().String()
	cal := wrapCalendar(buildVEvent(uid, draft))

	objectPath := path.Join(calendarPath, uid+".ics")
	if _, err := client.PutCalendarObject(ctx, objectPath, cal); err != nil {
		return "", fmt.Errorf("put calendar object: %w", err)
	}
	return uid, nil
}

// UpdateEvent fetches the stored object, patches the changed properties on
// its VEVENT, and writes it back to the same path.
func (a *Adapter) UpdateEvent(ctx context.Context, creds core.Credentials, providerEventID string, changes core.EventChanges) error {
	client, err := a.client(creds)
	if err != nil {
		return err
	}
	calendarPath, err := a.findCalendar(ctx, client, creds)
	if err != nil {
		return err
	}

	objectPath := path.Join(calendarPath, providerEventID+".ics")
	obj, err := client.GetCalendarObject(ctx, objectPath)
	if err != nil {
		return fmt.Errorf("get calendar object: %w", err)
	}

	vevent := findVEvent(obj.Data)
	if vevent == nil {
		return fmt.Errorf("object %s has no VEVENT", providerEventID)
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

	if _, err := client.PutCalendarObject(ctx, objectPath, obj.Data); err != nil {
		return fmt.Errorf("put calendar object: %w", err)
	}
	return nil
}

// DeleteEvent removes the calendar object from the server.
func (a *Adapter) DeleteEvent(ctx context.Context, creds core.Credentials, providerEventID string) error {
	client, err := a.client(creds)
	if err != nil {
		return err
	}
	calendarPath, err := a.findCalendar(ctx, client, creds)
	if err != nil {
		return err
	}
	if err := client.RemoveAll(ctx, path.Join(calendarPath, providerEventID+".ics")); err != nil {
		return fmt.Errorf("remove calendar object: %w", err)
	}
	return nil
}

// ListEvents runs a time-range calendar query and flattens the returned
// objects into remote events. Date-only (all-day) entries are skipped.
func (a *Adapter) ListEvents(ctx context.Context, creds core.Credentials, from, to time.Time) ([]core.RemoteEvent, error) {
	client, err := a.client(creds)
	if err != nil {
		return nil, err
	}
	calendarPath, err := a.findCalendar(ctx, client, creds)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:  ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{Name: ical.CompEvent, AllProps: true}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: from.UTC(),
				End:   to.UTC(),
			}},
		},
	}

	objects, err := client.QueryCalendar(ctx, calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}

	var results []core.RemoteEvent
	for _, obj := range objects {
		vevent := findVEvent(obj.Data)
		if vevent == nil {
			continue
		}
		remote, ok := parseVEvent(vevent)
		if !ok {
			continue
		}
		results = append(results, remote)
	}
	return results, nil
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
// Returns ok=false for components without both clock times.
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
