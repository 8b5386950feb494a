package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestObservationRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	require.NoError(t, s.UpsertObservation(ctx, Observation{
		ObsID: "HD1", Collection: "BRITE-Constellation", TargetName: "HD37202", Telescope: "BAb", UpdatedAt: now,
	}))
	// a later file without .orig metadata must not erase the target
	require.NoError(t, s.UpsertObservation(ctx, Observation{ObsID: "HD1", Collection: "BRITE-Constellation", UpdatedAt: now}))

	start, end := 56600.0, 56601.0
	require.NoError(t, s.UpsertArtifact(ctx, Artifact{
		URI: "cadc:BRITE-Constellation/HD1.orig", ObsID: "HD1", ProductID: "un-decorrelated",
		ProductType: "science", ContentType: "text/plain", Size: 10, MD5: "abc",
		TimeStart: &start, TimeEnd: &end, UpdatedAt: now,
	}))
	require.NoError(t, s.UpsertArtifact(ctx, Artifact{
		URI: "cadc:BRITE-Constellation/HD1.rlogdb", ObsID: "HD1", ProductID: "un-decorrelated",
		ProductType: "info", ContentType: "text/plain", Size: 3, MD5: "def", UpdatedAt: now,
	}))
	// re-ingest replaces the row
	require.NoError(t, s.UpsertArtifact(ctx, Artifact{
		URI: "cadc:BRITE-Constellation/HD1.rlogdb", ObsID: "HD1", ProductID: "un-decorrelated",
		ProductType: "info", ContentType: "text/plain", Size: 4, MD5: "xyz", UpdatedAt: now,
	}))

	o, err := s.GetObservation(ctx, "HD1")
	require.NoError(t, err)
	require.Equal(t, "HD37202", o.TargetName)
	require.Equal(t, "BAb", o.Telescope)
	require.Len(t, o.Artifacts, 2)
	require.NotNil(t, o.Artifacts[0].TimeStart)
	require.InDelta(t, 56600.0, *o.Artifacts[0].TimeStart, 1e-9)
	require.Nil(t, o.Artifacts[1].TimeStart)
	require.Equal(t, "xyz", o.Artifacts[1].MD5)
}

func TestGetObservationNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetObservation(context.Background(), "nope")
	require.ErrorIs(t, err, ErrObservationNotFound)
}
