package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skedtool/sked/internal/core"
	"github.com/skedtool/sked/internal/state"
)

// fakeAdapter is a configurable in-memory provider.
type fakeAdapter struct {
	kind        core.ProviderKind
	validateErr error
	revokeErr   error
	revoked     int
}

func (f *fakeAdapter) Kind() core.ProviderKind { return f.kind }

func (f *fakeAdapter) ValidateCredentials(ctx context.Context, creds core.Credentials) error {
	return f.validateErr
}

func (f *fakeAdapter) CreateEvent(ctx context.Context, creds core.Credentials, draft core.Draft) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeAdapter) UpdateEvent(ctx context.Context, creds core.Credentials, providerEventID string, changes core.EventChanges) error {
	return errors.New("not implemented")
}

func (f *fakeAdapter) DeleteEvent(ctx context.Context, creds core.Credentials, providerEventID string) error {
	return errors.New("not implemented")
}

func (f *fakeAdapter) ListEvents(ctx context.Context, creds core.Credentials, from, to time.Time) ([]core.RemoteEvent, error) {
	return nil, nil
}

func (f *fakeAdapter) RevokeCredentials(ctx context.Context, creds core.Credentials) error {
	f.revoked++
	return f.revokeErr
}

var _ core.ProviderAdapter = (*fakeAdapter)(nil)
var _ core.CredentialRevoker = (*fakeAdapter)(nil)

var testCreds = core.Credentials{Path: "/tmp/calendar"}

func newRegistry(t *testing.T, fakes ...*fakeAdapter) (*Registry, *state.FileStore) {
	t.Helper()
	store, err := state.Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	adapters := make(map[core.ProviderKind]core.ProviderAdapter)
	for _, f := range fakes {
		adapters[f.kind] = f
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, adapters, logger), store
}

func TestConnect(t *testing.T) {
	ctx := context.Background()
	r, store := newRegistry(t, &fakeAdapter{kind: core.ProviderLocal})

	id, err := r.Connect(ctx, "me", core.ProviderLocal, testCreds)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	account, err := store.GetAccount(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "me", account.User)
	require.Equal(t, core.ProviderLocal, account.Provider)
	require.Equal(t, core.StatusConnected, account.Status)
	require.Equal(t, testCreds, account.Credentials)
}

func TestConnectRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t, &fakeAdapter{kind: core.ProviderLocal})

	_, err := r.Connect(ctx, "", core.ProviderLocal, testCreds)
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = r.Connect(ctx, "me", core.ProviderLocal, core.Credentials{})
	require.ErrorIs(t, err, core.ErrInvalidCredentials)

	_, err = r.Connect(ctx, "me", core.ProviderGoogle, testCreds)
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestConnectAdapterRejection(t *testing.T) {
	ctx := context.Background()
	r, store := newRegistry(t, &fakeAdapter{kind: core.ProviderLocal, validateErr: errors.New("bad token")})

	_, err := r.Connect(ctx, "me", core.ProviderLocal, testCreds)
	require.ErrorIs(t, err, core.ErrInvalidCredentials)

	accounts, err := store.ListAccounts(ctx, "me")
	require.NoError(t, err)
	require.Empty(t, accounts)
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAdapter{kind: core.ProviderLocal}
	r, store := newRegistry(t, fake)

	id, err := r.Connect(ctx, "me", core.ProviderLocal, testCreds)
	require.NoError(t, err)

	require.NoError(t, r.Disconnect(ctx, "me", id))
	require.Equal(t, 1, fake.revoked)

	account, err := store.GetAccount(ctx, id)
	require.NoError(t, err)
	require.Equal(t, core.StatusDisconnected, account.Status)
}

func TestDisconnectRevocationFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAdapter{kind: core.ProviderLocal, revokeErr: errors.New("remote down")}
	r, store := newRegistry(t, fake)

	id, err := r.Connect(ctx, "me", core.ProviderLocal, testCreds)
	require.NoError(t, err)

	require.NoError(t, r.Disconnect(ctx, "me", id))

	account, err := store.GetAccount(ctx, id)
	require.NoError(t, err)
	require.Equal(t, core.StatusDisconnected, account.Status)
}

func TestDisconnectOwnership(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t, &fakeAdapter{kind: core.ProviderLocal})

	id, err := r.Connect(ctx, "me", core.ProviderLocal, testCreds)
	require.NoError(t, err)

	require.ErrorIs(t, r.Disconnect(ctx, "someone-else", id), core.ErrNotOwned)
	require.ErrorIs(t, r.Disconnect(ctx, "me", "missing"), core.ErrNotFound)
}

func TestDisconnectTwiceIsRejected(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t, &fakeAdapter{kind: core.ProviderLocal})

	id, err := r.Connect(ctx, "me", core.ProviderLocal, testCreds)
	require.NoError(t, err)

	require.NoError(t, r.Disconnect(ctx, "me", id))
	require.ErrorIs(t, r.Disconnect(ctx, "me", id), core.ErrInvalidInput)
}

func TestRefreshSync(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAdapter{kind: core.ProviderLocal}
	r, store := newRegistry(t, fake)

	connected := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return connected }
	id, err := r.Connect(ctx, "me", core.ProviderLocal, testCreds)
	require.NoError(t, err)

	refreshed := connected.Add(time.Hour)
	r.now = func() time.Time { return refreshed }
	require.NoError(t, r.RefreshSync(ctx, "me", id))

	account, err := store.GetAccount(ctx, id)
	require.NoError(t, err)
	require.Equal(t, core.StatusConnected, account.Status)
	require.True(t, account.LastSync.Equal(refreshed))
}

func TestRefreshSyncDisconnected(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t, &fakeAdapter{kind: core.ProviderLocal})

	id, err := r.Connect(ctx, "me", core.ProviderLocal, testCreds)
	require.NoError(t, err)
	require.NoError(t, r.Disconnect(ctx, "me", id))

	require.ErrorIs(t, r.RefreshSync(ctx, "me", id), core.ErrNotConnected)
}

func TestRefreshSyncFailureFlipsToError(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAdapter{kind: core.ProviderLocal}
	r, store := newRegistry(t, fake)

	id, err := r.Connect(ctx, "me", core.ProviderLocal, testCreds)
	require.NoError(t, err)
	before, err := store.GetAccount(ctx, id)
	require.NoError(t, err)

	fake.validateErr = errors.New("token expired")
	require.Error(t, r.RefreshSync(ctx, "me", id))

	account, err := store.GetAccount(ctx, id)
	require.NoError(t, err)
	require.Equal(t, core.StatusError, account.Status)
	require.True(t, account.LastSync.Equal(before.LastSync))

	// A later successful refresh recovers the account
	fake.validateErr = nil
	require.NoError(t, r.RefreshSync(ctx, "me", id))
	account, err = store.GetAccount(ctx, id)
	require.NoError(t, err)
	require.Equal(t, core.StatusConnected, account.Status)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t,
		&fakeAdapter{kind: core.ProviderLocal},
		&fakeAdapter{kind: core.ProviderCalDAV},
	)

	localID, err := r.Connect(ctx, "me", core.ProviderLocal, testCreds)
	require.NoError(t, err)
	davID, err := r.Connect(ctx, "me", core.ProviderCalDAV, core.Credentials{
		ServerURL: "https://dav.example.com",
		Username:  "me",
		Password:  "secret",
	})
	require.NoError(t, err)
	require.NoError(t, r.Disconnect(ctx, "me", davID))

	infos, err := r.Status(ctx, "me")
	require.NoError(t, err)
	require.Len(t, infos, 2)

	byID := make(map[string]core.AccountInfo)
	for _, info := range infos {
		byID[info.ID] = info
	}
	require.Equal(t, core.StatusConnected, byID[localID].Status)
	require.Equal(t, core.StatusDisconnected, byID[davID].Status)
	require.Equal(t, core.ProviderCalDAV, byID[davID].Provider)

	other, err := r.Status(ctx, "someone-else")
	require.NoError(t, err)
	require.Empty(t, other)
}
