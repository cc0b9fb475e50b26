package outlook

import (
	"context"
	"fmt"
	"time"

	abstractions "github.com/microsoft/kiota-abstractions-go"
	msgraphcore "github.com/microsoftgraph/msgraph-sdk-go-core"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/users"

	"github.com/skedtool/sked/internal/core"
)

// graphTimeLayout is what Graph expects in DateTimeTimeZone bodies when the
// zone is carried separately.
const graphTimeLayout = "2006-01-02T15:04:05"

// CreateEvent posts the draft to the user's default calendar and returns
// Graph's event id.
func (a *Adapter) CreateEvent(ctx context.Context, creds core.Credentials, draft core.Draft) (string, error) {
	client, err := a.client(creds)
	if err != nil {
		return "", err
	}

	event := models.NewEvent()
	event.SetSubject(&draft.Title)
	event.SetStart(graphDateTime(draft.Start))
	event.SetEnd(graphDateTime(draft.End))
	if draft.Description != "" {
		body := models.NewItemBody()
		contentType := models.TEXT_BODYTYPE
		body.SetContentType(&contentType)
		body.SetContent(&draft.Description)
		event.SetBody(body)
	}
	if draft.Location != "" {
		loc := models.NewLocation()
		loc.SetDisplayName(&draft.Location)
		event.SetLocation(loc)
	}
	if len(draft.Attendees) > 0 {
		var attendees []models.Attendeeable
		for _, email := range draft.Attendees {
			addr := models.NewEmailAddress()
			e := email
			addr.SetAddress(&e)
			attendee := models.NewAttendee()
			attendee.SetEmailAddress(addr)
			attendees = append(attendees, attendee)
		}
		event.SetAttendees(attendees)
	}

	created, err := client.Me().Events().Post(ctx, event, nil)
	if err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}
	id := created.GetId()
	if id == nil {
		return "", fmt.Errorf("create event: graph returned no id")
	}
	return *id, nil
}

// UpdateEvent patches only the changed fields on the provider event.
func (a *Adapter) UpdateEvent(ctx context.Context, creds core.Credentials, providerEventID string, changes core.EventChanges) error {
	client, err := a.client(creds)
	if err != nil {
		return err
	}

	patch := models.NewEvent()
	if changes.Title != nil {
		patch.SetSubject(changes.Title)
	}
	if changes.Description != nil {
		body := models.NewItemBody()
		contentType := models.TEXT_BODYTYPE
		body.SetContentType(&contentType)
		body.SetContent(changes.Description)
		patch.SetBody(body)
	}
	if changes.Location != nil {
		loc := models.NewLocation()
		loc.SetDisplayName(changes.Location)
		patch.SetLocation(loc)
	}
	if changes.Start != nil {
		patch.SetStart(graphDateTime(*changes.Start))
	}
	if changes.End != nil {
		patch.SetEnd(graphDateTime(*changes.End))
	}

	if _, err := client.Me().Events().ByEventId(providerEventID).Patch(ctx, patch, nil); err != nil {
		return fmt.Errorf("patch event: %w", err)
	}
	return nil
}

// DeleteEvent removes the provider event.
func (a *Adapter) DeleteEvent(ctx context.Context, creds core.Credentials, providerEventID string) error {
	client, err := a.client(creds)
	if err != nil {
		return err
	}
	if err := client.Me().Events().ByEventId(providerEventID).Delete(ctx, nil); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// ListEvents returns timed events intersecting [from, to) from the default
// calendar view. Times come back in UTC via the Prefer header; cancelled and
// all-day entries are skipped.
func (a *Adapter) ListEvents(ctx context.Context, creds core.Credentials, from, to time.Time) ([]core.RemoteEvent, error) {
	client, err := a.client(creds)
	if err != nil {
		return nil, err
	}

	startStr := from.UTC().Format(time.RFC3339)
	endStr := to.UTC().Format(time.RFC3339)
	selectFields := []string{"id", "subject", "start", "end", "isAllDay", "isCancelled"}
	orderBy := []string{"start/dateTime"}
	top := int32(100)

	headers := abstractions.NewRequestHeaders()
	headers.Add("Prefer", `outlook.timezone="UTC"`)

	config := &users.ItemCalendarViewRequestBuilderGetRequestConfiguration{
		QueryParameters: &users.ItemCalendarViewRequestBuilderGetQueryParameters{
			StartDateTime: &startStr,
			EndDateTime:   &endStr,
			Select:        selectFields,
			Orderby:       orderBy,
			Top:           &top,
		},
		Headers: headers,
	}
	result, err := client.Me().CalendarView().Get(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("fetch calendar view: %w", err)
	}

	pageIterator, err := msgraphcore.NewPageIterator[models.Eventable](
		result,
		client.GetAdapter(),
		models.CreateEventCollectionResponseFromDiscriminatorValue,
	)
	if err != nil {
		return nil, fmt.Errorf("create page iterator: %w", err)
	}

	var results []core.RemoteEvent
	err = pageIterator.Iterate(ctx, func(item models.Eventable) bool {
		if derefBool(item.GetIsCancelled()) || derefBool(item.GetIsAllDay()) {
			return true
		}
		start := parseSDKDateTime(item.GetStart())
		end := parseSDKDateTime(item.GetEnd())
		if start.IsZero() || end.IsZero() {
			return true
		}
		results = append(results, core.RemoteEvent{
			ProviderEventID: derefStr(item.GetId()),
			Title:           derefStr(item.GetSubject()),
			Start:           start,
			End:             end,
		})
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return results, nil
}

// graphDateTime wraps a time as a Graph DateTimeTimeZone in UTC.
func graphDateTime(t time.Time) models.DateTimeTimeZoneable {
	dt := models.NewDateTimeTimeZone()
	dateStr := t.UTC().Format(graphTimeLayout)
	zone := "UTC"
	dt.SetDateTime(&dateStr)
	dt.SetTimeZone(&zone)
	return dt
}
