package core

import (
	"context"
	"fmt"
	"time"
)

// ProviderKind identifies one of the calendar services we can commit to.
// The set is closed; ParseProviderKind is the only way in from user input.
type ProviderKind string

const (
	ProviderGoogle  ProviderKind = "google"
	ProviderOutlook ProviderKind = "outlook"
	ProviderCalDAV  ProviderKind = "caldav"
	ProviderLocal   ProviderKind = "local"
)

// ParseProviderKind maps user input to a known provider kind.
func ParseProviderKind(s string) (ProviderKind, error) {
	switch ProviderKind(s) {
	case ProviderGoogle, ProviderOutlook, ProviderCalDAV, ProviderLocal:
		return ProviderKind(s), nil
	}
	return "", fmt.Errorf("%w: unknown provider %q (supported: google, outlook, caldav, local)", ErrInvalidInput, s)
}

// Credentials is the opaque bundle stored per account. Which fields matter
// depends on the provider kind; the registry and propagator never look
// inside beyond Empty().
type Credentials struct {
	// OAuth providers (google, outlook)
	CredentialsFile string `json:"credentials_file,omitempty"`
	TokenFile       string `json:"token_file,omitempty"`
	ClientID        string `json:"client_id,omitempty"`
	TenantID        string `json:"tenant_id,omitempty"`

	// Basic-auth CalDAV servers
	ServerURL    string `json:"server_url,omitempty"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	CalendarName string `json:"calendar_name,omitempty"`

	// Local .ics directory
	Path string `json:"path,omitempty"`
}

// Empty reports whether the bundle carries nothing usable.
func (c Credentials) Empty() bool {
	return c == Credentials{}
}

// RemoteEvent is a provider-visible event as returned by ListEvents. Only
// the fields conflict detection needs are carried.
type RemoteEvent struct {
	ProviderEventID string
	Title           string
	Start           time.Time
	End             time.Time
}

// ProviderAdapter is the per-provider-kind capability this engine depends
// on. One instance exists per kind, constructed once at startup and passed
// in explicitly; credentials arrive per call so a single adapter serves any
// number of accounts.
type ProviderAdapter interface {
	// Kind returns the provider kind this adapter serves.
	Kind() ProviderKind
	// ValidateCredentials checks (and, where the provider supports it,
	// refreshes) a credential bundle. This should block until done or the
	// context is cancelled.
	ValidateCredentials(ctx context.Context, creds Credentials) error
	// CreateEvent materializes the draft and returns the provider's own
	// event identifier.
	CreateEvent(ctx context.Context, creds Credentials, draft Draft) (string, error)
	// UpdateEvent applies the changed fields to an existing provider event.
	UpdateEvent(ctx context.Context, creds Credentials, providerEventID string, changes EventChanges) error
	// DeleteEvent removes the provider event.
	DeleteEvent(ctx context.Context, creds Credentials, providerEventID string) error
	// ListEvents returns the provider-visible events intersecting [from, to).
	ListEvents(ctx context.Context, creds Credentials, from, to time.Time) ([]RemoteEvent, error)
}

// CredentialRevoker is an optional adapter capability. Disconnect calls it
// best-effort when the adapter supports revocation; failures are logged,
// never surfaced.
type CredentialRevoker interface {
	RevokeCredentials(ctx context.Context, creds Credentials) error
}
