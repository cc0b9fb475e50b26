// Package google implements the provider adapter for Google Calendar.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/skedtool/sked/internal/core"
)

// Adapter talks to Google Calendar. It is stateless: one instance serves
// every google account, with credentials supplied per call.
type Adapter struct{}

// New creates the adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Kind() core.ProviderKind { return core.ProviderGoogle }

// service builds an authenticated Calendar service from the credential
// bundle (OAuth client config file + saved token file).
func (a *Adapter) service(ctx context.Context, creds core.Credentials) (*calendar.Service, error) {
	b, err := os.ReadFile(creds.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	tok, err := tokenFromFile(creds.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("read token file (run 'sked auth' first): %w", err)
	}

	client := config.Client(ctx, tok)
	service, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return service, nil
}

// calendarID returns the target calendar, defaulting to the user's primary.
func calendarID(creds core.Credentials) string {
	if creds.CalendarName != "" {
		return creds.CalendarName
	}
	return "primary"
}

// ValidateCredentials builds a service and lists the calendar list, which
// exercises the token (refreshing it if expired) without touching events.
func (a *Adapter) ValidateCredentials(ctx context.Context, creds core.Credentials) error {
	service, err := a.service(ctx, creds)
	if err != nil {
		return err
	}
	if _, err := service.CalendarList.List().MaxResults(1).Context(ctx).Do(); err != nil {
		return fmt.Errorf("list calendars: %w", err)
	}
	return nil
}

// CreateEvent inserts the draft and returns Google's event id.
func (a *Adapter) CreateEvent(ctx context.Context, creds core.Credentials, draft core.Draft) (string, error) {
	service, err := a.service(ctx, creds)
	if err != nil {
		return "", err
	}

	event := &calendar.Event{
		Summary:     draft.Title,
		Description: draft.Description,
		Location:    draft.Location,
		Start:       &calendar.EventDateTime{DateTime: draft.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: draft.End.Format(time.RFC3339)},
	}
	for _, attendee := range draft.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: attendee})
	}

	created, err := service.Events.Insert(calendarID(creds), event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return created.Id, nil
}

// UpdateEvent patches only the changed fields on the provider event.
func (a *Adapter) UpdateEvent(ctx context.Context, creds core.Credentials, providerEventID string, changes core.EventChanges) error {
	service, err := a.service(ctx, creds)
	if err != nil {
		return err
	}

	patch := &calendar.Event{}
	if changes.Title != nil {
		patch.Summary = *changes.Title
	}
	if changes.Description != nil {
		patch.Description = *changes.Description
	}
	if changes.Location != nil {
		patch.Location = *changes.Location
	}
	if changes.Start != nil {
		patch.Start = &calendar.EventDateTime{DateTime: changes.Start.Format(time.RFC3339)}
	}
	if changes.End != nil {
		patch.End = &calendar.EventDateTime{DateTime: changes.End.Format(time.RFC3339)}
	}

	if _, err := service.Events.Patch(calendarID(creds), providerEventID, patch).Context(ctx).Do(); err != nil {
		return fmt.Errorf("patch event: %w", err)
	}
	return nil
}

// DeleteEvent removes the provider event.
func (a *Adapter) DeleteEvent(ctx context.Context, creds core.Credentials, providerEventID string) error {
	service, err := a.service(ctx, creds)
	if err != nil {
		return err
	}
	if err := service.Events.Delete(calendarID(creds), providerEventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// ListEvents returns timed events intersecting [from, to), paging through
// the full result set. All-day entries carry no clock time and are skipped;
// the conflict engine reasons about timed intervals only.
func (a *Adapter) ListEvents(ctx context.Context, creds core.Credentials, from, to time.Time) ([]core.RemoteEvent, error) {
	service, err := a.service(ctx, creds)
	if err != nil {
		return nil, err
	}

	var results []core.RemoteEvent
	pageToken := ""

	for {
		req := service.Events.List(calendarID(creds)).
			ShowDeleted(false).
			SingleEvents(true).
			TimeMin(from.Format(time.RFC3339)).
			TimeMax(to.Format(time.RFC3339)).
			OrderBy("startTime").
			Context(ctx)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		page, err := req.Do()
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}

		for _, item := range page.Items {
			if item.Start == nil || item.Start.DateTime == "" {
				continue
			}
			start, err := time.Parse(time.RFC3339, item.Start.DateTime)
			if err != nil {
				continue
			}
			end, err := time.Parse(time.RFC3339, item.End.DateTime)
			if err != nil {
				continue
			}
			results = append(results, core.RemoteEvent{
				ProviderEventID: item.Id,
				Title:           item.Summary,
				Start:           start,
				End:             end,
			})
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return results, nil
}

// tokenFromFile reads an OAuth token from a JSON file.
func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}
