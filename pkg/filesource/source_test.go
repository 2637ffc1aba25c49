package filesource_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/filechanges/pkg/changes"
	"github.com/Sumatoshi-tech/filechanges/pkg/filesource"
	"github.com/Sumatoshi-tech/filechanges/pkg/runner"
)

var errScan = errors.New("scan failed")

// scriptLister returns a fixed listing, or err when set.
type scriptLister struct {
	mu    sync.Mutex
	paths []string
	err   error
	calls int
}

func (l *scriptLister) set(paths ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.paths = paths
	l.err = nil
}

func (l *scriptLister) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.err = err
}

func (l *scriptLister) List(_ context.Context, _ string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++

	if l.err != nil {
		return nil, l.err
	}

	return append([]string(nil), l.paths...), nil
}

func openScripted(t *testing.T, paths ...string) (*filesource.Source, *scriptLister) {
	t.Helper()

	lister := &scriptLister{paths: paths}

	src, err := filesource.Open(t.TempDir(), filesource.WithLister(lister))
	require.NoError(t, err)

	return src, lister
}

func TestOpen_ResolvesRoot(t *testing.T) {
	t.Parallel()

	src, err := filesource.Open(".", filesource.WithLister(&scriptLister{}))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(src.Root()))
	assert.Empty(t, src.Snapshot())
}

func TestSource_FirstQueryReportsEverythingActive(t *testing.T) {
	t.Parallel()

	src, _ := openScripted(t, "a.txt", "dir/b.txt")

	got, err := src.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, changes.Map{"a.txt": true, "dir/b.txt": true}, got)
}

func TestSource_UnchangedScansAreIdempotent(t *testing.T) {
	t.Parallel()

	src, _ := openScripted(t, "a.txt", "b.txt")

	first, err := src.Query(context.Background())
	require.NoError(t, err)

	for range 3 {
		again, againErr := src.Query(context.Background())
		require.NoError(t, againErr)
		assert.Equal(t, first, again)
	}
}

func TestSource_DeletionReportedOnceThenForgotten(t *testing.T) {
	t.Parallel()

	src, lister := openScripted(t, "keep.txt", "gone.txt")

	_, err := src.Query(context.Background())
	require.NoError(t, err)

	lister.set("keep.txt")

	got, err := src.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, changes.Map{"keep.txt": true, "gone.txt": false}, got)

	got, err = src.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, changes.Map{"keep.txt": true}, got)
}

func TestSource_AdditionStaysActive(t *testing.T) {
	t.Parallel()

	src, lister := openScripted(t, "a.txt")

	_, err := src.Query(context.Background())
	require.NoError(t, err)

	lister.set("a.txt", "new.txt")

	for range 2 {
		got, queryErr := src.Query(context.Background())
		require.NoError(t, queryErr)
		assert.Equal(t, changes.Map{"a.txt": true, "new.txt": true}, got)
	}
}

func TestSource_ReappearingFileIsFreshDiscovery(t *testing.T) {
	t.Parallel()

	src, lister := openScripted(t, "a.txt")

	_, err := src.Query(context.Background())
	require.NoError(t, err)

	lister.set()

	got, err := src.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, changes.Map{"a.txt": false}, got)

	lister.set("a.txt")

	got, err = src.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, changes.Map{"a.txt": true}, got)
}

func TestSource_FailureLeavesTrackedUntouched(t *testing.T) {
	t.Parallel()

	src, lister := openScripted(t, "a.txt", "b.txt")

	_, err := src.Query(context.Background())
	require.NoError(t, err)

	lister.set("a.txt")

	_, err = src.Query(context.Background())
	require.NoError(t, err)

	before := src.Snapshot()
	require.Equal(t, changes.Map{"a.txt": true, "b.txt": false}, before)

	lister.fail(errScan)

	got, err := src.Query(context.Background())
	require.ErrorIs(t, err, errScan)
	assert.Nil(t, got)
	assert.Equal(t, before, src.Snapshot())

	lister.set("a.txt")

	got, err = src.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, changes.Map{"a.txt": true}, got)
}

func TestSource_ResultIsCallerOwned(t *testing.T) {
	t.Parallel()

	src, _ := openScripted(t, "a.txt")

	got, err := src.Query(context.Background())
	require.NoError(t, err)

	got["a.txt"] = false
	got["injected.txt"] = true

	again, err := src.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, changes.Map{"a.txt": true}, again)
}

func TestSource_ConcurrentQueriesAreSerialized(t *testing.T) {
	t.Parallel()

	src, lister := openScripted(t, "a.txt", "b.txt")

	const workers = 8

	var wg sync.WaitGroup

	results := make([]changes.Map, workers)

	for i := range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			got, err := src.Query(context.Background())
			assert.NoError(t, err)

			results[i] = got
		}()
	}

	wg.Wait()

	assert.Equal(t, workers, lister.calls)

	for _, got := range results {
		assert.Equal(t, changes.Map{"a.txt": true, "b.txt": true}, got)
	}
}

func TestSource_RestoreKeepsPendingDeletions(t *testing.T) {
	t.Parallel()

	src, _ := openScripted(t, "a.txt")

	require.NoError(t, src.Restore(changes.Map{"a.txt": true, "old.txt": true, "dead.txt": false}))

	got, err := src.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, changes.Map{"a.txt": true, "old.txt": false}, got)
}

func TestSource_RestoreRejectsEscapingKeys(t *testing.T) {
	t.Parallel()

	for _, key := range []string{"", "/etc/passwd", "../up.txt", "a/../b", "a//b", "./a"} {
		src, _ := openScripted(t)

		err := src.Restore(changes.Map{key: true})
		require.ErrorIs(t, err, filesource.ErrOutsideRoot, key)
		assert.Empty(t, src.Snapshot(), key)
	}
}

func TestSource_RecordsAndTraces(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	rec := &countRecorder{}
	lister := &scriptLister{paths: []string{"a.txt"}}

	src, err := filesource.Open(t.TempDir(),
		filesource.WithLister(lister),
		filesource.WithTracer(tp.Tracer("test")),
		filesource.WithRecorder(rec))
	require.NoError(t, err)

	_, err = src.Query(context.Background())
	require.NoError(t, err)

	lister.fail(errScan)

	_, err = src.Query(context.Background())
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "filechanges.files.query", spans[0].Name)
	assert.Equal(t, 1, rec.ok)
	assert.Equal(t, 1, rec.failed)
}

func TestSource_WalkListerOnRealTree(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "a.txt")
	writeFile(t, root, "nested/deep/b.txt")

	src, err := filesource.Open(root, filesource.WithLister(filesource.WalkLister{}))
	require.NoError(t, err)

	got, err := src.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, changes.Map{"a.txt": true, "nested/deep/b.txt": true}, got)

	require.NoError(t, os.Remove(filepath.Join(root, "a.txt")))
	writeFile(t, root, "c.txt")

	got, err = src.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, changes.Map{"a.txt": false, "c.txt": true, "nested/deep/b.txt": true}, got)
}

func TestSource_SymlinkedRoot(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	target := filepath.Join(base, "target")
	writeFile(t, target, "a.txt")
	writeFile(t, target, "dir/b.txt")

	link := filepath.Join(base, "link")
	require.NoError(t, os.Symlink(target, link))

	want, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)

	listers := map[string]filesource.Lister{"walk": filesource.WalkLister{}}
	if _, lookErr := exec.LookPath(filesource.DefaultFindBinary); lookErr == nil {
		listers["command"] = filesource.NewCommandLister(runner.NewExec(nil), "")
	}

	for name, lister := range listers {
		src, openErr := filesource.Open(link, filesource.WithLister(lister))
		require.NoError(t, openErr, name)
		assert.Equal(t, want, src.Root(), name)

		got, queryErr := src.Query(context.Background())
		require.NoError(t, queryErr, name)
		assert.Equal(t, changes.Map{"a.txt": true, "dir/b.txt": true}, got, name)
	}
}

func TestOpen_MissingRootKept(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "absent")

	src, err := filesource.Open(missing, filesource.WithLister(&scriptLister{}))
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(missing), filepath.Base(src.Root()))
}

type countRecorder struct {
	mu     sync.Mutex
	ok     int
	failed int
}

func (c *countRecorder) RecordQuery(_ context.Context, kind string, _ changes.Map, _ time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if kind != changes.KindFiles {
		return
	}

	if err != nil {
		c.failed++

		return
	}

	c.ok++
}

func writeFile(t *testing.T, root, rel string) {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(rel), 0o600))
}
