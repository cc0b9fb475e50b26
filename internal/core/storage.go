package core

import (
	"context"
)

// Store handles persistence of accounts and synced events. Implementations
// must return ErrNotFound for missing ids and must not alias stored values
// into returned ones.
type Store interface {
	// SaveAccount inserts or replaces an account record.
	SaveAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, id string) (*Account, error)
	// ListAccounts returns every account owned by user, oldest first.
	ListAccounts(ctx context.Context, user string) ([]*Account, error)

	// SaveEvent inserts or replaces a synced event record.
	SaveEvent(ctx context.Context, e *SyncedEvent) error
	GetEvent(ctx context.Context, id string) (*SyncedEvent, error)
	// ListEvents returns every synced event owned by user, sorted by start.
	ListEvents(ctx context.Context, user string) ([]*SyncedEvent, error)
	// DeleteEvent removes a synced event; missing ids are ErrNotFound.
	DeleteEvent(ctx context.Context, id string) error
}
