package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 9, 1, hour, min, 0, 0, time.Local)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name           string
		s1, e1, s2, e2 time.Time
		want           bool
	}{
		{"partial overlap", at(9, 0), at(9, 30), at(9, 15), at(9, 45), true},
		{"contained", at(9, 0), at(10, 0), at(9, 15), at(9, 45), true},
		{"identical", at(9, 0), at(10, 0), at(9, 0), at(10, 0), true},
		{"touching end-to-start", at(9, 0), at(10, 0), at(10, 0), at(11, 0), false},
		{"touching start-to-end", at(10, 0), at(11, 0), at(9, 0), at(10, 0), false},
		{"disjoint", at(9, 0), at(10, 0), at(11, 0), at(12, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Overlaps(tt.s1, tt.e1, tt.s2, tt.e2))
			// Overlap is symmetric
			require.Equal(t, tt.want, Overlaps(tt.s2, tt.e2, tt.s1, tt.e1))
		})
	}
}

func TestDraftValidate(t *testing.T) {
	valid := Draft{Title: "Standup", Start: at(9, 0), End: at(9, 30)}
	require.NoError(t, valid.Validate())

	noTitle := valid
	noTitle.Title = ""
	require.ErrorIs(t, noTitle.Validate(), ErrInvalidInput)

	noTimes := Draft{Title: "Standup"}
	require.ErrorIs(t, noTimes.Validate(), ErrInvalidInput)

	inverted := Draft{Title: "Standup", Start: at(10, 0), End: at(9, 0)}
	require.ErrorIs(t, inverted.Validate(), ErrInvalidInterval)

	zeroLength := Draft{Title: "Standup", Start: at(9, 0), End: at(9, 0)}
	require.ErrorIs(t, zeroLength.Validate(), ErrInvalidInterval)
}

func TestConstraintsAllows(t *testing.T) {
	c := DefaultConstraints()

	tests := []struct {
		name string
		span Timespan
		want bool
	}{
		{"inside window", Timespan{at(10, 0), at(11, 0)}, true},
		{"ends exactly at close", Timespan{at(16, 0), at(17, 0)}, true},
		{"spills past close", Timespan{at(16, 30), at(17, 30)}, false},
		{"ends minutes past close hour", Timespan{at(16, 30), at(17, 15)}, false},
		{"starts before open", Timespan{at(8, 30), at(9, 30)}, false},
		{"starts at open", Timespan{at(9, 0), at(10, 0)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, c.Allows(tt.span))
		})
	}
}

func TestConstraintsValidate(t *testing.T) {
	require.NoError(t, DefaultConstraints().Validate())
	require.ErrorIs(t, Constraints{WorkingHoursStart: -1, WorkingHoursEnd: 17}.Validate(), ErrInvalidInput)
	require.ErrorIs(t, Constraints{WorkingHoursStart: 9, WorkingHoursEnd: 25}.Validate(), ErrInvalidInput)
	require.ErrorIs(t, Constraints{WorkingHoursStart: 17, WorkingHoursEnd: 9}.Validate(), ErrInvalidInput)
}

func TestParseChanges(t *testing.T) {
	changes, ignored, err := ParseChanges([]string{
		"title=Design review",
		"start=2026-09-01T14:00",
		"end=2026-09-01 15:00",
		"color=red",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"color"}, ignored)
	require.NotNil(t, changes.Title)
	require.Equal(t, "Design review", *changes.Title)
	require.NotNil(t, changes.Start)
	require.Equal(t, at(14, 0), *changes.Start)
	require.NotNil(t, changes.End)
	require.Equal(t, at(15, 0), *changes.End)
	require.Nil(t, changes.Location)
	require.False(t, changes.Empty())
}

func TestParseChangesErrors(t *testing.T) {
	_, _, err := ParseChanges([]string{"title"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = ParseChanges([]string{"start=not-a-time"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestChangesApplyAndValidate(t *testing.T) {
	event := &SyncedEvent{
		Title: "Standup",
		Start: at(9, 0),
		End:   at(9, 30),
	}

	newEnd := at(8, 0)
	bad := EventChanges{End: &newEnd}
	require.ErrorIs(t, bad.ValidateAgainst(event), ErrInvalidInterval)

	title := "Standup (moved)"
	start := at(10, 0)
	end := at(10, 30)
	good := EventChanges{Title: &title, Start: &start, End: &end}
	require.NoError(t, good.ValidateAgainst(event))

	good.Apply(event)
	require.Equal(t, "Standup (moved)", event.Title)
	require.Equal(t, at(10, 0), event.Start)
	require.Equal(t, at(10, 30), event.End)
}

func TestSyncedEventClone(t *testing.T) {
	event := &SyncedEvent{
		ID:          "e1",
		ProviderIDs: map[ProviderKind]string{ProviderGoogle: "g1"},
		AccountIDs:  []string{"a1"},
		Attendees:   []string{"x@example.com"},
	}
	cp := event.Clone()
	cp.ProviderIDs[ProviderLocal] = "l1"
	cp.AccountIDs[0] = "changed"
	cp.Attendees[0] = "changed"

	require.Equal(t, map[ProviderKind]string{ProviderGoogle: "g1"}, event.ProviderIDs)
	require.Equal(t, []string{"a1"}, event.AccountIDs)
	require.Equal(t, []string{"x@example.com"}, event.Attendees)
}

func TestParseProviderKind(t *testing.T) {
	kind, err := ParseProviderKind("google")
	require.NoError(t, err)
	require.Equal(t, ProviderGoogle, kind)

	_, err = ParseProviderKind("fax")
	require.ErrorIs(t, err, ErrInvalidInput)
}
