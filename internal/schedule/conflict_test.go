package schedule

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

// fakeAdapter serves a fixed remote event list.
type fakeAdapter struct {
	kind    core.ProviderKind
	remote  []core.RemoteEvent
	listErr error
}

func (f *fakeAdapter) Kind() core.ProviderKind { return f.kind }

func (f *fakeAdapter) ValidateCredentials(ctx context.Context, creds core.Credentials) error {
	return nil
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
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []core.RemoteEvent
	for _, re := range f.remote {
		if core.Overlaps(from, to, re.Start, re.End) {
			out = append(out, re)
		}
	}
	return out, nil
}

var _ core.ProviderAdapter = (*fakeAdapter)(nil)

func at(hour, min int) time.Time {
	return time.Date(2026, 9, 1, hour, min, 0, 0, time.Local)
}

func newDetector(t *testing.T, fakes ...*fakeAdapter) (*Detector, *state.FileStore) {
	t.Helper()
	store, err := state.Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	adapters := make(map[core.ProviderKind]core.ProviderAdapter)
	for i, f := range fakes {
		adapters[f.kind] = f
		account := &core.Account{
			ID:       "acct-" + string(f.kind),
			User:     "me",
			Provider: f.kind,
			Status:   core.StatusConnected,
			LastSync: at(0, i),
		}
		require.NoError(t, store.SaveAccount(context.Background(), account))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDetector(store, adapters, logger), store
}

func seedEvent(t *testing.T, store *state.FileStore, id, title string, start, end time.Time, providerIDs map[core.ProviderKind]string) {
	t.Helper()
	event := &core.SyncedEvent{
		ID:          id,
		User:        "me",
		Title:       title,
		Start:       start,
		End:         end,
		ProviderIDs: providerIDs,
		AccountIDs:  []string{"acct-local"},
	}
	require.NoError(t, store.SaveEvent(context.Background(), event))
}

func TestDetectInternalConflict(t *testing.T) {
	ctx := context.Background()
	detector, store := newDetector(t, &fakeAdapter{kind: core.ProviderLocal})
	seedEvent(t, store, "e1", "Standup", at(9, 0), at(9, 30), map[core.ProviderKind]string{core.ProviderLocal: "l1"})

	draft := core.Draft{Title: "1:1", Start: at(9, 15), End: at(9, 45)}
	conflicts, err := detector.DetectConflicts(ctx, "me", draft)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, core.SourceInternal, conflicts[0].Source)
	require.Equal(t, core.ReasonTimeOverlap, conflicts[0].Reason)
	require.Equal(t, "e1", conflicts[0].EventID)
	require.Equal(t, "Standup", conflicts[0].Title)
}

func TestDetectTouchingEndpointsDoNotConflict(t *testing.T) {
	ctx := context.Background()
	detector, store := newDetector(t, &fakeAdapter{kind: core.ProviderLocal})
	seedEvent(t, store, "e1", "Standup", at(9, 0), at(9, 30), map[core.ProviderKind]string{core.ProviderLocal: "l1"})

	draft := core.Draft{Title: "Follow-up", Start: at(9, 30), End: at(10, 0)}
	conflicts, err := detector.DetectConflicts(ctx, "me", draft)
	require.NoError(t, err)
	require.Empty(t, conflicts)
}

func TestDetectExternalConflict(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAdapter{
		kind: core.ProviderGoogle,
		remote: []core.RemoteEvent{
			{ProviderEventID: "ext1", Title: "Dentist", Start: at(11, 0), End: at(12, 0)},
		},
	}
	detector, _ := newDetector(t, fake)

	draft := core.Draft{Title: "Lunch", Start: at(11, 30), End: at(12, 30)}
	conflicts, err := detector.DetectConflicts(ctx, "me", draft)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, core.SourceExternal, conflicts[0].Source)
	require.Equal(t, core.ProviderGoogle, conflicts[0].Provider)
	require.Equal(t, "Dentist", conflicts[0].Title)
	require.Empty(t, conflicts[0].EventID)
}

func TestDetectTrackedRemoteEventNotDoubleReported(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAdapter{
		kind: core.ProviderGoogle,
		remote: []core.RemoteEvent{
			{ProviderEventID: "g1", Title: "Standup", Start: at(9, 0), End: at(9, 30)},
		},
	}
	detector, store := newDetector(t, fake)
	// The same underlying event is tracked internally under provider id g1
	seedEvent(t, store, "e1", "Standup", at(9, 0), at(9, 30), map[core.ProviderKind]string{core.ProviderGoogle: "g1"})

	draft := core.Draft{Title: "1:1", Start: at(9, 15), End: at(9, 45)}
	conflicts, err := detector.DetectConflicts(ctx, "me", draft)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, core.SourceInternal, conflicts[0].Source)
}

func TestDetectSkipsUnreachableProvider(t *testing.T) {
	ctx := context.Background()
	broken := &fakeAdapter{kind: core.ProviderCalDAV, listErr: errors.New("dav server down")}
	working := &fakeAdapter{
		kind: core.ProviderGoogle,
		remote: []core.RemoteEvent{
			{ProviderEventID: "g1", Title: "Review", Start: at(14, 0), End: at(15, 0)},
		},
	}
	detector, _ := newDetector(t, broken, working)

	draft := core.Draft{Title: "Sync", Start: at(14, 30), End: at(15, 30)}
	conflicts, err := detector.DetectConflicts(ctx, "me", draft)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, core.ProviderGoogle, conflicts[0].Provider)
}

func TestDetectSkipsDisconnectedAccounts(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAdapter{
		kind: core.ProviderGoogle,
		remote: []core.RemoteEvent{
			{ProviderEventID: "g1", Title: "Hidden", Start: at(9, 0), End: at(10, 0)},
		},
	}
	detector, store := newDetector(t, fake)

	account, err := store.GetAccount(ctx, "acct-google")
	require.NoError(t, err)
	account.Status = core.StatusDisconnected
	require.NoError(t, store.SaveAccount(ctx, account))

	draft := core.Draft{Title: "Sync", Start: at(9, 0), End: at(10, 0)}
	conflicts, err := detector.DetectConflicts(ctx, "me", draft)
	require.NoError(t, err)
	require.Empty(t, conflicts)
}

func TestDetectClearInterval(t *testing.T) {
	ctx := context.Background()
	detector, store := newDetector(t, &fakeAdapter{kind: core.ProviderLocal})
	seedEvent(t, store, "e1", "Standup", at(9, 0), at(9, 30), map[core.ProviderKind]string{core.ProviderLocal: "l1"})

	draft := core.Draft{Title: "Deep work", Start: at(13, 0), End: at(15, 0)}
	conflicts, err := detector.DetectConflicts(ctx, "me", draft)
	require.NoError(t, err)
	require.Empty(t, conflicts)
}

func TestDetectRejectsInvalidDraft(t *testing.T) {
	detector, _ := newDetector(t, &fakeAdapter{kind: core.ProviderLocal})
	_, err := detector.DetectConflicts(context.Background(), "me", core.Draft{})
	require.ErrorIs(t, err, core.ErrInvalidInput)
}
