package syncer

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

// fakeAdapter records provider calls and fails on demand.
type fakeAdapter struct {
	kind      core.ProviderKind
	createErr error
	updateErr error
	deleteErr error

	created int
	updated []string
	deleted []string
}

func (f *fakeAdapter) Kind() core.ProviderKind { return f.kind }

func (f *fakeAdapter) ValidateCredentials(ctx context.Context, creds core.Credentials) error {
	return nil
}

func (f *fakeAdapter) CreateEvent(ctx context.Context, creds core.Credentials, draft core.Draft) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created++
	return string(f.kind) + "-evt", nil
}

func (f *fakeAdapter) UpdateEvent(ctx context.Context, creds core.Credentials, providerEventID string, changes core.EventChanges) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, providerEventID)
	return nil
}

func (f *fakeAdapter) DeleteEvent(ctx context.Context, creds core.Credentials, providerEventID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, providerEventID)
	return nil
}

func (f *fakeAdapter) ListEvents(ctx context.Context, creds core.Credentials, from, to time.Time) ([]core.RemoteEvent, error) {
	return nil, nil
}

var _ core.ProviderAdapter = (*fakeAdapter)(nil)

type fixture struct {
	propagator *Propagator
	store      *state.FileStore
	google     *fakeAdapter
	local      *fakeAdapter
	googleID   string
	localID    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := state.Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	f := &fixture{
		store:    store,
		google:   &fakeAdapter{kind: core.ProviderGoogle},
		local:    &fakeAdapter{kind: core.ProviderLocal},
		googleID: "acct-google",
		localID:  "acct-local",
	}

	for _, account := range []*core.Account{
		{ID: f.googleID, User: "me", Provider: core.ProviderGoogle, Status: core.StatusConnected},
		{ID: f.localID, User: "me", Provider: core.ProviderLocal, Status: core.StatusConnected},
	} {
		require.NoError(t, store.SaveAccount(ctx, account))
	}

	adapters := map[core.ProviderKind]core.ProviderAdapter{
		core.ProviderGoogle: f.google,
		core.ProviderLocal:  f.local,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.propagator = New(store, adapters, logger)
	return f
}

func testDraft() core.Draft {
	return core.Draft{
		Title: "Design review",
		Start: time.Date(2026, 9, 1, 14, 0, 0, 0, time.Local),
		End:   time.Date(2026, 9, 1, 15, 0, 0, 0, time.Local),
	}
}

func (f *fixture) setStatus(t *testing.T, accountID string, status core.AccountStatus) {
	t.Helper()
	ctx := context.Background()
	account, err := f.store.GetAccount(ctx, accountID)
	require.NoError(t, err)
	account.Status = status
	require.NoError(t, f.store.SaveAccount(ctx, account))
}

func TestCommit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	committed := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	f.propagator.now = func() time.Time { return committed }

	event, err := f.propagator.Commit(ctx, "me", testDraft(), []string{f.googleID, f.localID})
	require.NoError(t, err)
	require.NotEmpty(t, event.ID)
	require.Equal(t, "Design review", event.Title)
	require.Equal(t, map[core.ProviderKind]string{
		core.ProviderGoogle: "google-evt",
		core.ProviderLocal:  "local-evt",
	}, event.ProviderIDs)
	require.ElementsMatch(t, []string{f.googleID, f.localID}, event.AccountIDs)
	require.True(t, event.LastSynced.Equal(committed))

	stored, err := f.store.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	require.Equal(t, event.ProviderIDs, stored.ProviderIDs)
}

func TestCommitRejectsInvalidDraft(t *testing.T) {
	f := newFixture(t)

	_, err := f.propagator.Commit(context.Background(), "me", core.Draft{}, []string{f.googleID})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = f.propagator.Commit(context.Background(), "me", testDraft(), nil)
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestCommitPreconditionsBlockFanOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setStatus(t, f.localID, core.StatusDisconnected)

	// One bad account fails the whole call. The error names every
	// offending id and no provider is contacted.
	_, err := f.propagator.Commit(ctx, "me", testDraft(), []string{f.googleID, f.localID, "ghost"})
	require.ErrorIs(t, err, core.ErrNotConnected)
	require.Contains(t, err.Error(), f.localID)
	require.Contains(t, err.Error(), "ghost")
	require.Zero(t, f.google.created)
	require.Zero(t, f.local.created)

	events, listErr := f.store.ListEvents(ctx, "me")
	require.NoError(t, listErr)
	require.Empty(t, events)
}

func TestCommitRejectsDuplicateProviderKind(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	second := &core.Account{ID: "acct-google-2", User: "me", Provider: core.ProviderGoogle, Status: core.StatusConnected}
	require.NoError(t, f.store.SaveAccount(ctx, second))

	_, err := f.propagator.Commit(ctx, "me", testDraft(), []string{f.googleID, second.ID})
	require.ErrorIs(t, err, core.ErrNotConnected)
	require.Contains(t, err.Error(), "duplicate provider")
	require.Zero(t, f.google.created)
}

func TestCommitRejectsForeignAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	foreign := &core.Account{ID: "acct-foreign", User: "someone-else", Provider: core.ProviderCalDAV, Status: core.StatusConnected}
	require.NoError(t, f.store.SaveAccount(ctx, foreign))

	_, err := f.propagator.Commit(ctx, "me", testDraft(), []string{foreign.ID})
	require.ErrorIs(t, err, core.ErrNotConnected)
	require.Contains(t, err.Error(), "not owned")
}

func TestCommitPartialFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.google.createErr = errors.New("rate limited")

	event, err := f.propagator.Commit(ctx, "me", testDraft(), []string{f.googleID, f.localID})

	var partial *core.PartialError
	require.ErrorAs(t, err, &partial)
	require.Equal(t, "commit", partial.Op)
	require.Equal(t, []core.ProviderKind{core.ProviderGoogle}, partial.Providers())

	require.NotNil(t, event)
	require.Equal(t, map[core.ProviderKind]string{core.ProviderLocal: "local-evt"}, event.ProviderIDs)
	require.Equal(t, []string{f.localID}, event.AccountIDs)

	_, getErr := f.store.GetEvent(ctx, event.ID)
	require.NoError(t, getErr)
}

func TestCommitAllProvidersFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.google.createErr = errors.New("down")
	f.local.createErr = errors.New("disk full")

	event, err := f.propagator.Commit(ctx, "me", testDraft(), []string{f.googleID, f.localID})
	require.ErrorIs(t, err, core.ErrAllProvidersFailed)
	require.Nil(t, event)

	events, listErr := f.store.ListEvents(ctx, "me")
	require.NoError(t, listErr)
	require.Empty(t, events)
}

func commitEvent(t *testing.T, f *fixture) *core.SyncedEvent {
	t.Helper()
	event, err := f.propagator.Commit(context.Background(), "me", testDraft(), []string{f.googleID, f.localID})
	require.NoError(t, err)
	return event
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := commitEvent(t, f)

	updated := time.Date(2026, 8, 28, 13, 0, 0, 0, time.UTC)
	f.propagator.now = func() time.Time { return updated }

	title := "Design review (moved)"
	start := testDraft().Start.Add(time.Hour)
	end := testDraft().End.Add(time.Hour)
	changes := core.EventChanges{Title: &title, Start: &start, End: &end}

	require.NoError(t, f.propagator.Update(ctx, "me", event.ID, changes))
	require.Equal(t, []string{"google-evt"}, f.google.updated)
	require.Equal(t, []string{"local-evt"}, f.local.updated)

	stored, err := f.store.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	require.Equal(t, title, stored.Title)
	require.True(t, stored.Start.Equal(start))
	require.True(t, stored.LastSynced.Equal(updated))
}

func TestUpdateRejectsBadChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := commitEvent(t, f)

	require.ErrorIs(t, f.propagator.Update(ctx, "me", event.ID, core.EventChanges{}), core.ErrInvalidInput)

	badEnd := event.Start.Add(-time.Hour)
	require.ErrorIs(t, f.propagator.Update(ctx, "me", event.ID, core.EventChanges{End: &badEnd}), core.ErrInvalidInterval)
}

func TestUpdatePartialFailureStillAppliesLocally(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := commitEvent(t, f)

	updated := time.Date(2026, 8, 28, 13, 0, 0, 0, time.UTC)
	f.propagator.now = func() time.Time { return updated }
	f.google.updateErr = errors.New("conflict")

	title := "Renamed"
	err := f.propagator.Update(ctx, "me", event.ID, core.EventChanges{Title: &title})

	var partial *core.PartialError
	require.ErrorAs(t, err, &partial)
	require.Equal(t, "update", partial.Op)
	require.Equal(t, []core.ProviderKind{core.ProviderGoogle}, partial.Providers())

	// The divergence is resolved locally and the sync time still moves
	stored, getErr := f.store.GetEvent(ctx, event.ID)
	require.NoError(t, getErr)
	require.Equal(t, "Renamed", stored.Title)
	require.True(t, stored.LastSynced.Equal(updated))
}

func TestUpdateSkipsDisconnectedAccounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := commitEvent(t, f)
	f.setStatus(t, f.googleID, core.StatusDisconnected)

	title := "Renamed"
	require.NoError(t, f.propagator.Update(ctx, "me", event.ID, core.EventChanges{Title: &title}))
	require.Empty(t, f.google.updated)
	require.Equal(t, []string{"local-evt"}, f.local.updated)
}

func TestUpdateOwnership(t *testing.T) {
	f := newFixture(t)
	event := commitEvent(t, f)

	title := "Renamed"
	err := f.propagator.Update(context.Background(), "someone-else", event.ID, core.EventChanges{Title: &title})
	require.ErrorIs(t, err, core.ErrNotOwned)

	err = f.propagator.Update(context.Background(), "me", "missing", core.EventChanges{Title: &title})
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := commitEvent(t, f)

	require.NoError(t, f.propagator.Cancel(ctx, "me", event.ID))
	require.Equal(t, []string{"google-evt"}, f.google.deleted)
	require.Equal(t, []string{"local-evt"}, f.local.deleted)

	_, err := f.store.GetEvent(ctx, event.ID)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestCancelPartialFailureStillRemovesRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := commitEvent(t, f)
	f.google.deleteErr = errors.New("gone stale")

	err := f.propagator.Cancel(ctx, "me", event.ID)

	var partial *core.PartialError
	require.ErrorAs(t, err, &partial)
	require.Equal(t, "cancel", partial.Op)
	require.Equal(t, []core.ProviderKind{core.ProviderGoogle}, partial.Providers())

	_, getErr := f.store.GetEvent(ctx, event.ID)
	require.ErrorIs(t, getErr, core.ErrNotFound)
}

func TestCancelAllDeletionsFailedKeepsRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := commitEvent(t, f)
	f.google.deleteErr = errors.New("down")
	f.local.deleteErr = errors.New("down")

	require.ErrorIs(t, f.propagator.Cancel(ctx, "me", event.ID), core.ErrAllProvidersFailed)

	_, err := f.store.GetEvent(ctx, event.ID)
	require.NoError(t, err)
}

func TestCancelNothingReachableKeepsRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := commitEvent(t, f)

	// Every backing account goes away before cancellation
	f.setStatus(t, f.googleID, core.StatusDisconnected)
	f.setStatus(t, f.localID, core.StatusDisconnected)

	require.ErrorIs(t, f.propagator.Cancel(ctx, "me", event.ID), core.ErrAllProvidersFailed)
	require.Empty(t, f.google.deleted)
	require.Empty(t, f.local.deleted)

	_, err := f.store.GetEvent(ctx, event.ID)
	require.NoError(t, err)
}

func TestGetEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := commitEvent(t, f)

	got, err := f.propagator.GetEvent(ctx, "me", event.ID)
	require.NoError(t, err)
	require.Equal(t, event.ID, got.ID)

	_, err = f.propagator.GetEvent(ctx, "someone-else", event.ID)
	require.ErrorIs(t, err, core.ErrNotOwned)
}
