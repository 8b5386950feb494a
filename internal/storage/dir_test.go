package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewDir(filepath.Join(t.TempDir(), "archive"))
	require.NoError(t, err)

	_, err = store.Info(ctx, "HD1.orig")
	require.ErrorIs(t, err, ErrObjectNotFound)

	src := filepath.Join(t.TempDir(), "HD1.orig")
	require.NoError(t, os.WriteFile(src, []byte("# SatfulID = BAb / sat\n"), 0o600))
	require.NoError(t, store.Put(ctx, src, "HD1.orig"))

	info, err := store.Info(ctx, "HD1.orig")
	require.NoError(t, err)
	require.Equal(t, int64(23), info.Size)
	require.Len(t, info.MD5, 32)

	var buf bytes.Buffer
	require.NoError(t, store.Get(ctx, "HD1.orig", &buf))
	require.Equal(t, "# SatfulID = BAb / sat\n", buf.String())

	listed, err := store.List(ctx, "HD1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, info.MD5, listed[0].MD5)

	err = store.Get(ctx, "HD9.orig", &buf)
	require.ErrorIs(t, err, ErrObjectNotFound)
}
