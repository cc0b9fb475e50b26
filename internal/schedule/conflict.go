// Package schedule answers "does this draft collide with anything?" and
// "where else could it go?". Both questions are recomputed from current
// account, event, and provider state on every call.
package schedule

import (
	"context"
	"log/slog"

	"github.com/skedtool/sked/internal/core"
)

// Detector finds every existing event whose interval overlaps a candidate
// draft, across both internally tracked events and provider-visible ones.
type Detector struct {
	store    core.Store
	adapters map[core.ProviderKind]core.ProviderAdapter
	logger   *slog.Logger
}

// NewDetector creates a Detector.
func NewDetector(store core.Store, adapters map[core.ProviderKind]core.ProviderAdapter, logger *slog.Logger) *Detector {
	return &Detector{store: store, adapters: adapters, logger: logger}
}

// DetectConflicts reports each overlap between the draft's interval and an
// existing event. Overlap is half-open: touching endpoints do not conflict.
// Provider events already represented by a tracked event are not reported a
// second time as external. A clear interval yields an empty list, never an
// error; an unreachable provider is logged and skipped, so detection still
// answers from everything reachable.
func (d *Detector) DetectConflicts(ctx context.Context, user string, draft core.Draft) ([]core.Conflict, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	var conflicts []core.Conflict

	events, err := d.store.ListEvents(ctx, user)
	if err != nil {
		return nil, err
	}
	// Provider-side ids of everything we already track, so external listing
	// does not double-report the same underlying event.
	tracked := make(map[core.ProviderKind]map[string]bool)
	for _, event := range events {
		for kind, providerEventID := range event.ProviderIDs {
			if tracked[kind] == nil {
				tracked[kind] = make(map[string]bool)
			}
			tracked[kind][providerEventID] = true
		}
		if core.Overlaps(draft.Start, draft.End, event.Start, event.End) {
			conflicts = append(conflicts, core.Conflict{
				User:    user,
				Source:  core.SourceInternal,
				Reason:  core.ReasonTimeOverlap,
				EventID: event.ID,
				Title:   event.Title,
				Start:   event.Start,
				End:     event.End,
			})
		}
	}

	accounts, err := d.store.ListAccounts(ctx, user)
	if err != nil {
		return nil, err
	}
	for _, account := range accounts {
		if !account.Usable() {
			continue
		}
		adapter, ok := d.adapters[account.Provider]
		if !ok {
			continue
		}
		remote, err := adapter.ListEvents(ctx, account.Credentials, draft.Start, draft.End)
		if err != nil {
			d.logger.Warn("provider listing failed, skipping", "provider", account.Provider, "account", account.ID, "error", err)
			continue
		}
		for _, re := range remote {
			if tracked[account.Provider][re.ProviderEventID] {
				continue
			}
			if !core.Overlaps(draft.Start, draft.End, re.Start, re.End) {
				continue
			}
			conflicts = append(conflicts, core.Conflict{
				User:     user,
				Source:   core.SourceExternal,
				Reason:   core.ReasonTimeOverlap,
				Provider: account.Provider,
				Title:    re.Title,
				Start:    re.Start,
				End:      re.End,
			})
		}
	}

	return conflicts, nil
}
