package gitsource_test

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/filechanges/pkg/changes"
	"github.com/Sumatoshi-tech/filechanges/pkg/gitlib"
	"github.com/Sumatoshi-tech/filechanges/pkg/gitsource"
	"github.com/Sumatoshi-tech/filechanges/pkg/runner"
)

func TestCommandProvider_Diff(t *testing.T) {
	t.Parallel()

	fake := runner.NewFake().On("git diff --name-status abc123 main", runner.Response{
		Lines: []string{"M\tREADME.md", "R100\told.txt\tnew.txt", ""},
	})
	p := gitsource.NewCommandProvider(fake, "", "/repo")

	entries, err := p.Diff(context.Background(), "abc123", "main")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "README.md", entries[0].From)
	assert.Equal(t, "new.txt", entries[1].To)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/repo", calls[0].Dir)
}

func TestCommandProvider_ListUnquotes(t *testing.T) {
	t.Parallel()

	fake := runner.NewFake().On("git ls-tree -r --name-only --full-tree main", runner.Response{
		Lines: []string{"a.txt", "", `"caf\303\251.txt"`, "dir/b.txt"},
	})
	p := gitsource.NewCommandProvider(fake, "git", "/repo")

	paths, err := p.List(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "café.txt", "dir/b.txt"}, paths)
}

func TestCommandProvider_TrimsCRLF(t *testing.T) {
	t.Parallel()

	fake := runner.NewFake().
		On("git diff --name-status v1 main", runner.Response{Lines: []string{"D\told.txt\r"}}).
		On("git ls-tree -r --name-only --full-tree main", runner.Response{Lines: []string{"a.txt\r", "\r"}})
	p := gitsource.NewCommandProvider(fake, "", "/repo")

	entries, err := p.Diff(context.Background(), "v1", "main")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "old.txt", entries[0].From)

	paths, err := p.List(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, paths)
}

func TestCommandProvider_CustomBinary(t *testing.T) {
	t.Parallel()

	fake := runner.NewFake().On("/opt/git/bin/git rev-parse --verify main", runner.Response{
		Lines: []string{"0123456789abcdef0123456789abcdef01234567"},
	})
	p := gitsource.NewCommandProvider(fake, "/opt/git/bin/git", "/repo")

	rev, err := p.Resolve(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", rev)
}

func TestCommandProvider_ResolveEmpty(t *testing.T) {
	t.Parallel()

	fake := runner.NewFake().On("git rev-parse --verify main", runner.Response{})
	p := gitsource.NewCommandProvider(fake, "", "/repo")

	_, err := p.Resolve(context.Background(), "main")
	require.ErrorIs(t, err, gitsource.ErrEmptyOutput)
}

func TestCommandProvider_StderrFails(t *testing.T) {
	t.Parallel()

	fake := runner.NewFake().On("git diff --name-status nope main", runner.Response{
		Stderr: "fatal: bad revision 'nope'\n",
	})
	p := gitsource.NewCommandProvider(fake, "", "/repo")

	entries, err := p.Diff(context.Background(), "nope", "main")
	require.ErrorIs(t, err, runner.ErrCommandFailed)
	assert.Nil(t, entries)

	var cmdErr *runner.CommandError

	require.True(t, errors.As(err, &cmdErr))
	assert.Contains(t, cmdErr.Stderr, "bad revision")
}

// TestCommandProvider_RealGit runs the git binary against a libgit2-built
// repository, covering quotePath output end to end.
func TestCommandProvider_RealGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	tr, err := gitlib.InitTestRepo(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(tr.Free)

	require.NoError(t, tr.WriteFile("keep.txt", "keep\n"))
	require.NoError(t, tr.WriteFile("gone.txt", "gone\n"))
	first, err := tr.Commit("first")
	require.NoError(t, err)

	require.NoError(t, tr.Remove("gone.txt"))
	require.NoError(t, tr.WriteFile("café.txt", "new\n"))
	_, err = tr.Commit("second")
	require.NoError(t, err)

	src, err := gitsource.Open(tr.Path, "HEAD")
	require.NoError(t, err)

	diff, err := src.Query(context.Background(), first.String())
	require.NoError(t, err)
	assert.Equal(t, changes.Map{"gone.txt": false, "café.txt": true}, diff)

	listing, err := src.Query(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, changes.Map{"keep.txt": true, "café.txt": true}, listing)
}
