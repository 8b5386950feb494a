package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"britearchive/internal/observation"
	"britearchive/internal/report"
	"britearchive/internal/storage"
)

var extensions = []string{".avedb", ".freq0db", ".lst", ".md5", ".ndatdb", ".orig", ".rlogdb"}

type fakeLister struct{ entries []Entry }

func (f fakeLister) List(context.Context, string) ([]Entry, error) { return f.entries, nil }

type move struct{ src, dest string }

type recordingMover struct{ calls []move }

func (m *recordingMover) Move(src, dest string) error {
	m.calls = append(m.calls, move{src, dest})
	return nil
}

func dirListing(prefix string, exts []string) []Entry {
	out := make([]Entry, 0, len(exts))
	for _, ext := range exts {
		name := prefix + ext
		out = append(out, Entry{Name: name, Path: "/test_files/" + name, ModTime: time.Unix(1579740835, 0)})
	}
	return out
}

func newTestSource(t *testing.T, entries []Entry, cleanup bool) (*Source, *report.Reporter, *recordingMover) {
	t.Helper()
	rep := report.NewReporter()
	src := New(Options{
		Roots:                   []string{"/test_files"},
		Manifest:                observation.NewManifest(extensions, observation.CheckExtensions),
		CleanupFilesWhenStoring: cleanup,
		SuccessDestination:      "/test_files/success",
		FailureDestination:      "/test_files/failure",
	}, fakeLister{entries: entries}, nil, rep)
	mover := &recordingMover{}
	src.UseMover(mover)
	return src, rep, mover
}

func runPasses(t *testing.T, src *Source) {
	t.Helper()
	require.NoError(t, src.GetWork(context.Background()))
	require.NoError(t, src.GroupWorkByObs())
	require.NoError(t, src.RemoveUnarchived())
}

func TestNominalObservation(t *testing.T) {
	src, rep, mover := newTestSource(t, dirListing("A", extensions), true)
	runPasses(t, src)

	require.Len(t, src.Work(), 5)
	s := rep.Summary()
	require.Equal(t, 7, s.Inputs)
	require.Equal(t, 2, s.Successes)
	require.Equal(t, 0, s.Failures)
	require.Equal(t, 0, s.Skipped)
	require.Equal(t, []move{
		{"/test_files/A.lst", "/test_files/success"},
		{"/test_files/A.md5", "/test_files/success"},
	}, mover.calls)
	for _, e := range rep.Entries() {
		require.Equal(t, "A", e.SubjectID)
		require.False(t, e.Timestamp.IsZero())
	}
}

func TestMissingFileObservation(t *testing.T) {
	src, rep, mover := newTestSource(t, dirListing("A", extensions[:6]), true)
	runPasses(t, src)

	require.Empty(t, src.Work())
	s := rep.Summary()
	require.Equal(t, 6, s.Inputs)
	require.Equal(t, 0, s.Successes)
	require.Equal(t, 6, s.Failures)
	require.Equal(t, []move{
		{"/test_files/A.avedb", "/test_files/failure"},
		{"/test_files/A.freq0db", "/test_files/failure"},
		{"/test_files/A.lst", "/test_files/failure"},
		{"/test_files/A.md5", "/test_files/failure"},
		{"/test_files/A.ndatdb", "/test_files/failure"},
		{"/test_files/A.orig", "/test_files/failure"},
	}, mover.calls)
	for _, e := range rep.Entries() {
		require.Equal(t, report.ReasonManifestErrors, e.Reason)
	}
	require.NoError(t, rep.Reconcile())
}

func TestMixedBagWithoutCleanup(t *testing.T) {
	entries := append(dirListing("A", extensions[:6]), dirListing("B", extensions)...)
	src, rep, mover := newTestSource(t, entries, false)
	runPasses(t, src)

	work := src.Work()
	require.Len(t, work, 5)
	for _, r := range work {
		require.Equal(t, "B", r.GroupID)
		require.True(t, r.Archived())
	}
	require.Empty(t, mover.calls)
	s := rep.Summary()
	require.Equal(t, 13, s.Inputs)
	require.Equal(t, 2, s.Successes)
	require.Equal(t, 6, s.Failures)
	require.Equal(t, 0, s.Skipped)
}

func TestSameGroupInTwoSubdirectories(t *testing.T) {
	var entries []Entry
	for _, night := range []string{"night1", "night2"} {
		for _, e := range dirListing("HD1", extensions) {
			e.Path = "/test_files/" + night + "/" + e.Name
			entries = append(entries, e)
		}
	}
	src, rep, mover := newTestSource(t, entries, true)
	runPasses(t, src)

	require.Empty(t, src.Work())
	require.Equal(t, report.Summary{Inputs: 14, Failures: 14}, rep.Summary())
	require.NoError(t, rep.Reconcile())
	require.Len(t, mover.calls, 14)
	for _, c := range mover.calls {
		night := filepath.Base(filepath.Dir(c.src))
		require.Equal(t, "/test_files/failure/"+night, c.dest)
	}
}

func TestDirectoriesAndForeignExtensionsNeverCount(t *testing.T) {
	entries := append(dirListing("A", extensions),
		Entry{Name: "nested", Path: "/test_files/nested", IsDir: true},
		Entry{Name: "notes.txt", Path: "/test_files/notes.txt"},
	)
	src, rep, _ := newTestSource(t, entries, false)
	runPasses(t, src)
	require.Equal(t, 7, rep.Summary().Inputs)
}

func TestCleanUpRouting(t *testing.T) {
	src, _, mover := newTestSource(t, nil, true)
	ctx := context.Background()
	orig := observation.NewFileRecord("/test_files/A.orig", time.Time{})
	lst := observation.NewFileRecord("/test_files/A.lst", time.Time{})

	require.NoError(t, src.CleanUp(ctx, orig, true))
	require.NoError(t, src.CleanUp(ctx, orig, false))
	require.NoError(t, src.CleanUp(ctx, lst, false))
	require.Equal(t, []move{
		{"/test_files/A.orig", "/test_files/success"},
		{"/test_files/A.orig", "/test_files/failure"},
		{"/test_files/A.lst", "/test_files/success"},
	}, mover.calls)
}

func TestUnchangedArchivableFilesAreSkipped(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	for _, ext := range extensions {
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, "HD1"+ext), []byte("content "+ext), 0o600))
	}
	store, err := storage.NewDir(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, filepath.Join(dataDir, "HD1.orig"), "HD1.orig"))

	rep := report.NewReporter()
	src := New(Options{
		Roots:                  []string{dataDir},
		Manifest:               observation.NewManifest(extensions, ""),
		StoreModifiedFilesOnly: true,
	}, DirLister{}, store, rep)
	require.NoError(t, src.GetWork(ctx))

	require.Len(t, src.Work(), 6)
	s := rep.Summary()
	require.Equal(t, 7, s.Inputs)
	require.Equal(t, 1, s.Skipped)
}

func TestDirListerRecursion(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "night1")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "HD1.orig"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "HD2.orig"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".tmp-1"), []byte("x"), 0o600))

	flat, err := DirLister{}.List(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, flat, 2)

	deep, err := DirLister{Recursive: true}.List(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, deep, 3)
	require.Equal(t, filepath.Join(nested, "HD2.orig"), deep[2].Path)
}

func TestBucketListerAndRemoteSource(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	store, err := storage.NewDir(t.TempDir())
	require.NoError(t, err)
	for _, ext := range extensions {
		p := filepath.Join(dataDir, "HD5"+ext)
		require.NoError(t, os.WriteFile(p, []byte(ext), 0o600))
		require.NoError(t, store.Put(ctx, p, "HD5"+ext))
	}

	rep := report.NewReporter()
	src := New(Options{
		Roots:                   []string{""},
		Manifest:                observation.NewManifest(extensions, ""),
		StoreModifiedFilesOnly:  true,
		CleanupFilesWhenStoring: true,
		Remote:                  true,
	}, BucketLister{Store: store}, store, rep)
	mover := &recordingMover{}
	src.UseMover(mover)
	runPasses(t, src)

	require.Len(t, src.Work(), 5)
	require.Equal(t, 0, rep.Summary().Skipped)
	require.Empty(t, mover.calls)
}
