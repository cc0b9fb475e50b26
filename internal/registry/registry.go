// Package registry owns connected-account records and their status
// lifecycle. All transitions go through the explicit operations here;
// nothing else mutates account status.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skedtool/sked/internal/core"
)

// transition names a status change requested by a registry operation.
type transition int

const (
	transitionDisconnect transition = iota
	transitionRefreshSuccess
	transitionRefreshFailure
)

// validTransitions is the full lifecycle table. Connect is absent because
// it creates accounts rather than transitioning one; anything not listed
// here is illegal and rejected before side effects.
var validTransitions = map[transition]map[core.AccountStatus]core.AccountStatus{
	transitionDisconnect: {
		core.StatusConnected: core.StatusDisconnected,
		core.StatusError:     core.StatusDisconnected,
	},
	transitionRefreshSuccess: {
		core.StatusConnected: core.StatusConnected,
		core.StatusError:     core.StatusConnected,
	},
	transitionRefreshFailure: {
		core.StatusConnected: core.StatusError,
		core.StatusError:     core.StatusError,
	},
}

// Registry manages account connect/disconnect/refresh for one store.
type Registry struct {
	store    core.Store
	adapters map[core.ProviderKind]core.ProviderAdapter
	logger   *slog.Logger

	// Overridable for tests
	now func() time.Time
}

// New creates a Registry. The adapter map is the closed set of providers
// this process can talk to.
func New(store core.Store, adapters map[core.ProviderKind]core.ProviderAdapter, logger *slog.Logger) *Registry {
	return &Registry{
		store:    store,
		adapters: adapters,
		logger:   logger,
		now:      time.Now,
	}
}

// Connect validates the credential bundle with the provider and stores a
// new connected account. The bundle must be non-empty; adapter rejection
// surfaces as ErrInvalidCredentials.
func (r *Registry) Connect(ctx context.Context, user string, kind core.ProviderKind, creds core.Credentials) (string, error) {
	if user == "" {
		return "", fmt.Errorf("%w: user is empty", core.ErrInvalidInput)
	}
	if creds.Empty() {
		return "", fmt.Errorf("%w: empty credential bundle", core.ErrInvalidCredentials)
	}
	adapter, ok := r.adapters[kind]
	if !ok {
		return "", fmt.Errorf("%w: no adapter for provider %s", core.ErrInvalidInput, kind)
	}

	if err := adapter.ValidateCredentials(ctx, creds); err != nil {
		return "", fmt.Errorf("%w: provider %s rejected credentials: %v", core.ErrInvalidCredentials, kind, err)
	}

	account := &core.Account{
		ID:          uuid.New().String(),
		User:        user,
		Provider:    kind,
		Credentials: creds,
		Status:      core.StatusConnected,
		LastSync:    r.now(),
	}
	if err := r.store.SaveAccount(ctx, account); err != nil {
		return "", fmt.Errorf("save account: %w", err)
	}

	r.logger.Info("account connected", "account", account.ID, "provider", kind, "user", user)
	return account.ID, nil
}

// Disconnect marks the account disconnected. Revocation is best-effort:
// a revocation failure is logged and swallowed because the user-visible
// outcome is "disconnected" either way. Events already committed through
// the account are left on the provider.
func (r *Registry) Disconnect(ctx context.Context, user, accountID string) error {
	account, err := r.ownedAccount(ctx, user, accountID)
	if err != nil {
		return err
	}

	next, err := r.nextStatus(transitionDisconnect, account.Status)
	if err != nil {
		return err
	}

	if adapter, ok := r.adapters[account.Provider]; ok {
		if revoker, ok := adapter.(core.CredentialRevoker); ok {
			if err := revoker.RevokeCredentials(ctx, account.Credentials); err != nil {
				r.logger.Warn("credential revocation failed", "account", accountID, "provider", account.Provider, "error", err)
			}
		}
	}

	account.Status = next
	if err := r.store.SaveAccount(ctx, account); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	r.logger.Info("account disconnected", "account", accountID, "provider", account.Provider)
	return nil
}

// RefreshSync re-validates credentials and bumps the last-sync timestamp.
// Refreshing a disconnected account is a precondition error, not a no-op;
// an adapter failure flips the account to error status and surfaces.
func (r *Registry) RefreshSync(ctx context.Context, user, accountID string) error {
	account, err := r.ownedAccount(ctx, user, accountID)
	if err != nil {
		return err
	}
	if account.Status == core.StatusDisconnected {
		return fmt.Errorf("refresh account %s: %w (status %s)", accountID, core.ErrNotConnected, account.Status)
	}

	adapter, ok := r.adapters[account.Provider]
	if !ok {
		return fmt.Errorf("%w: no adapter for provider %s", core.ErrInvalidInput, account.Provider)
	}

	if err := adapter.ValidateCredentials(ctx, account.Credentials); err != nil {
		account.Status, _ = r.nextStatus(transitionRefreshFailure, account.Status)
		if saveErr := r.store.SaveAccount(ctx, account); saveErr != nil {
			r.logger.Error("failed to persist error status", "account", accountID, "error", saveErr)
		}
		return fmt.Errorf("refresh account %s: %w", accountID, err)
	}

	account.Status, _ = r.nextStatus(transitionRefreshSuccess, account.Status)
	account.LastSync = r.now()
	if err := r.store.SaveAccount(ctx, account); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	r.logger.Info("account refreshed", "account", accountID, "provider", account.Provider)
	return nil
}

// Status returns the read-only projection of every account the user owns.
// Credentials never appear in the output.
func (r *Registry) Status(ctx context.Context, user string) ([]core.AccountInfo, error) {
	accounts, err := r.store.ListAccounts(ctx, user)
	if err != nil {
		return nil, err
	}
	infos := make([]core.AccountInfo, 0, len(accounts))
	for _, a := range accounts {
		infos = append(infos, core.AccountInfo{
			ID:       a.ID,
			Provider: a.Provider,
			Status:   a.Status,
			LastSync: a.LastSync,
		})
	}
	return infos, nil
}

func (r *Registry) ownedAccount(ctx context.Context, user, accountID string) (*core.Account, error) {
	account, err := r.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.User != user {
		return nil, fmt.Errorf("account %s: %w", accountID, core.ErrNotOwned)
	}
	return account, nil
}

func (r *Registry) nextStatus(t transition, from core.AccountStatus) (core.AccountStatus, error) {
	next, ok := validTransitions[t][from]
	if !ok {
		return from, fmt.Errorf("%w: illegal transition from %s", core.ErrInvalidInput, from)
	}
	return next, nil
}
