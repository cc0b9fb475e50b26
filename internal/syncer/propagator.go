// Package syncer fans commit, update, and cancel operations out across
// every account attached to an event. Per-provider failures during fan-out
// are tolerated and reported; the internal record is written once, after
// fan-out completes.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skedtool/sked/internal/core"
)

// Propagator orchestrates provider fan-out for one store. Providers are
// contacted sequentially; outcomes are independent, so the result is the
// same as any concurrent ordering.
type Propagator struct {
	store    core.Store
	adapters map[core.ProviderKind]core.ProviderAdapter
	logger   *slog.Logger

	// Overridable for tests
	now func() time.Time
}

// New creates a Propagator.
func New(store core.Store, adapters map[core.ProviderKind]core.ProviderAdapter, logger *slog.Logger) *Propagator {
	return &Propagator{
		store:    store,
		adapters: adapters,
		logger:   logger,
		now:      time.Now,
	}
}

// Commit writes the draft to every named account and records the result.
//
// The account list is checked up front: every id must name a connected
// account owned by user, backed by an adapter, with no provider kind
// repeated. Any bad id fails the whole call before a single provider is
// contacted. During fan-out, individual provider failures are tolerated —
// the event is recorded with whichever providers succeeded and a
// PartialError names the rest. Only when no provider accepts the event does
// Commit fail outright, leaving no internal record.
func (p *Propagator) Commit(ctx context.Context, user string, draft core.Draft, accountIDs []string) (*core.SyncedEvent, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	if len(accountIDs) == 0 {
		return nil, fmt.Errorf("%w: no accounts given", core.ErrInvalidInput)
	}

	accounts, err := p.checkAccounts(ctx, user, accountIDs)
	if err != nil {
		return nil, err
	}

	providerIDs := make(map[core.ProviderKind]string)
	var committedAccounts []string
	failed := make(map[core.ProviderKind]error)

	for _, account := range accounts {
		adapter := p.adapters[account.Provider]
		providerEventID, err := adapter.CreateEvent(ctx, account.Credentials, draft)
		if err != nil {
			p.logger.Warn("provider create failed", "provider", account.Provider, "account", account.ID, "error", err)
			failed[account.Provider] = err
			continue
		}
		providerIDs[account.Provider] = providerEventID
		committedAccounts = append(committedAccounts, account.ID)
	}

	if len(providerIDs) == 0 {
		return nil, fmt.Errorf("commit %q: %w", draft.Title, core.ErrAllProvidersFailed)
	}

	event := &core.SyncedEvent{
		ID:          uuid.New().String(),
		User:        user,
		Title:       draft.Title,
		Start:       draft.Start,
		End:         draft.End,
		Location:    draft.Location,
		Description: draft.Description,
		Attendees:   append([]string(nil), draft.Attendees...),
		ProviderIDs: providerIDs,
		AccountIDs:  committedAccounts,
		LastSynced:  p.now(),
	}
	if err := p.store.SaveEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("save event: %w", err)
	}

	p.logger.Info("event committed", "event", event.ID, "title", event.Title, "providers", len(providerIDs), "failed", len(failed))
	if len(failed) > 0 {
		return event, &core.PartialError{Op: "commit", Failed: failed}
	}
	return event, nil
}

// Update applies the changes locally and pushes them to every connected
// account holding a provider id for the event. Accounts that are missing,
// disconnected, or have no stored id are skipped without retry. Local state
// is updated and the sync timestamp refreshed regardless of provider
// outcomes; provider failures come back as a PartialError.
func (p *Propagator) Update(ctx context.Context, user, eventID string, changes core.EventChanges) error {
	event, err := p.ownedEvent(ctx, user, eventID)
	if err != nil {
		return err
	}
	if changes.Empty() {
		return fmt.Errorf("%w: no recognized fields to update", core.ErrInvalidInput)
	}
	if err := changes.ValidateAgainst(event); err != nil {
		return err
	}

	failed := make(map[core.ProviderKind]error)
	for _, account := range p.reachableAccounts(ctx, event) {
		providerEventID := event.ProviderIDs[account.Provider]
		adapter := p.adapters[account.Provider]
		if err := adapter.UpdateEvent(ctx, account.Credentials, providerEventID, changes); err != nil {
			p.logger.Warn("provider update failed", "provider", account.Provider, "event", eventID, "error", err)
			failed[account.Provider] = err
		}
	}

	changes.Apply(event)
	event.LastSynced = p.now()
	if err := p.store.SaveEvent(ctx, event); err != nil {
		return fmt.Errorf("save event: %w", err)
	}

	if len(failed) > 0 {
		return &core.PartialError{Op: "update", Failed: failed}
	}
	return nil
}

// Cancel deletes the event from every reachable provider and removes the
// internal record when fewer deletions failed than the event has accounts.
// If no deletion could even be attempted, or every attempted deletion
// failed, the record is kept — the event is still live externally, and
// pretending otherwise would show the user a false "removed" state.
func (p *Propagator) Cancel(ctx context.Context, user, eventID string) error {
	event, err := p.ownedEvent(ctx, user, eventID)
	if err != nil {
		return err
	}

	attempted := 0
	failed := make(map[core.ProviderKind]error)
	for _, account := range p.reachableAccounts(ctx, event) {
		providerEventID := event.ProviderIDs[account.Provider]
		adapter := p.adapters[account.Provider]
		attempted++
		if err := adapter.DeleteEvent(ctx, account.Credentials, providerEventID); err != nil {
			p.logger.Warn("provider delete failed", "provider", account.Provider, "event", eventID, "error", err)
			failed[account.Provider] = err
		}
	}

	totalAccounts := len(event.AccountIDs)
	if attempted == 0 || len(failed) >= totalAccounts {
		return fmt.Errorf("cancel event %s: %w", eventID, core.ErrAllProvidersFailed)
	}

	if err := p.store.DeleteEvent(ctx, eventID); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	p.logger.Info("event cancelled", "event", eventID, "attempted", attempted, "failed", len(failed))

	if len(failed) > 0 {
		return &core.PartialError{Op: "cancel", Failed: failed}
	}
	return nil
}

// GetEvent is the read-only lookup behind `show`; it never mutates state.
func (p *Propagator) GetEvent(ctx context.Context, user, eventID string) (*core.SyncedEvent, error) {
	return p.ownedEvent(ctx, user, eventID)
}

// checkAccounts resolves the id list and enforces commit preconditions.
// The returned error names every offending id, not just the first.
func (p *Propagator) checkAccounts(ctx context.Context, user string, accountIDs []string) ([]*core.Account, error) {
	var accounts []*core.Account
	var bad []string
	seenKinds := make(map[core.ProviderKind]bool)

	for _, id := range accountIDs {
		account, err := p.store.GetAccount(ctx, id)
		switch {
		case err != nil:
			bad = append(bad, id+" (not found)")
		case account.User != user:
			bad = append(bad, id+" (not owned)")
		case !account.Usable():
			bad = append(bad, id+" ("+account.Status.String()+")")
		case p.adapters[account.Provider] == nil:
			bad = append(bad, id+" (no adapter for "+string(account.Provider)+")")
		case seenKinds[account.Provider]:
			bad = append(bad, id+" (duplicate provider "+string(account.Provider)+")")
		default:
			seenKinds[account.Provider] = true
			accounts = append(accounts, account)
		}
	}

	if len(bad) > 0 {
		sort.Strings(bad)
		return nil, fmt.Errorf("%w: unusable accounts: %s", core.ErrNotConnected, strings.Join(bad, ", "))
	}
	return accounts, nil
}

// reachableAccounts returns the event's accounts that are connected, backed
// by an adapter, and hold a stored provider id. Everything else is expected
// steady-state (disconnected, removed adapter) and skipped silently.
func (p *Propagator) reachableAccounts(ctx context.Context, event *core.SyncedEvent) []*core.Account {
	var out []*core.Account
	for _, id := range event.AccountIDs {
		account, err := p.store.GetAccount(ctx, id)
		if err != nil {
			p.logger.Debug("skipping missing account", "account", id, "event", event.ID)
			continue
		}
		if !account.Usable() {
			p.logger.Debug("skipping account", "account", id, "status", account.Status.String())
			continue
		}
		if _, ok := event.ProviderIDs[account.Provider]; !ok {
			continue
		}
		if p.adapters[account.Provider] == nil {
			continue
		}
		out = append(out, account)
	}
	return out
}

func (p *Propagator) ownedEvent(ctx context.Context, user, eventID string) (*core.SyncedEvent, error) {
	event, err := p.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.User != user {
		return nil, fmt.Errorf("event %s: %w", eventID, core.ErrNotOwned)
	}
	return event, nil
}
