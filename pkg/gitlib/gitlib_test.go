package gitlib_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/filechanges/pkg/gitlib"
)

// newTestRepo creates a scratch repository freed at test cleanup.
func newTestRepo(t *testing.T) *gitlib.TestRepo {
	t.Helper()

	tr, err := gitlib.InitTestRepo(t.TempDir())
	require.NoError(t, err)

	t.Cleanup(tr.Free)

	return tr
}

func openRepo(t *testing.T, path string) *gitlib.Repository {
	t.Helper()

	repo, err := gitlib.OpenRepository(path)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return repo
}

func resolveTree(t *testing.T, repo *gitlib.Repository, spec string) *gitlib.Tree {
	t.Helper()

	tree, err := repo.ResolveTree(spec)
	require.NoError(t, err)

	t.Cleanup(tree.Free)

	return tree
}

func TestOpenRepository(t *testing.T) {
	tr := newTestRepo(t)

	require.NoError(t, tr.WriteFile("test.txt", "content"))
	_, err := tr.Commit("initial")
	require.NoError(t, err)

	repo := openRepo(t, tr.Path)

	head, err := repo.ResolveCommit("HEAD")
	require.NoError(t, err)
	assert.Len(t, head.String(), gitlib.HashHexSize)
}

func TestOpenRepositoryNotFound(t *testing.T) {
	repo, err := gitlib.OpenRepository("/nonexistent/path/to/repo")
	require.Error(t, err)
	assert.Nil(t, repo)
}

func TestRepositoryFree(t *testing.T) {
	tr := newTestRepo(t)

	repo, err := gitlib.OpenRepository(tr.Path)
	require.NoError(t, err)

	repo.Free()

	// Second free is a no-op.
	repo.Free()
}

func TestResolveCommit(t *testing.T) {
	tr := newTestRepo(t)

	require.NoError(t, tr.WriteFile("a.txt", "a"))
	first, err := tr.Commit("first")
	require.NoError(t, err)

	require.NoError(t, tr.WriteFile("a.txt", "b"))
	second, err := tr.Commit("second")
	require.NoError(t, err)

	repo := openRepo(t, tr.Path)

	head, err := repo.ResolveCommit("HEAD")
	require.NoError(t, err)
	assert.Equal(t, second, head)

	parent, err := repo.ResolveCommit("HEAD~1")
	require.NoError(t, err)
	assert.Equal(t, first, parent)

	bySha, err := repo.ResolveCommit(first.String())
	require.NoError(t, err)
	assert.Equal(t, first, bySha)
	assert.Len(t, first.String(), gitlib.HashHexSize)
	assert.NotEqual(t, gitlib.Hash{}, first)
}

func TestResolveErrors(t *testing.T) {
	tr := newTestRepo(t)

	require.NoError(t, tr.WriteFile("a.txt", "a"))
	_, err := tr.Commit("first")
	require.NoError(t, err)

	repo := openRepo(t, tr.Path)

	_, err = repo.ResolveCommit("")
	require.ErrorIs(t, err, gitlib.ErrEmptyRevision)

	_, err = repo.ResolveTree("no-such-branch")
	require.Error(t, err)
}

func TestTreeFiles(t *testing.T) {
	tr := newTestRepo(t)

	require.NoError(t, tr.WriteFile("root.txt", "r"))
	require.NoError(t, tr.WriteFile("dir/nested.txt", "n"))
	require.NoError(t, tr.WriteFile("dir/deeper/leaf.md", "l"))
	_, err := tr.Commit("tree")
	require.NoError(t, err)

	repo := openRepo(t, tr.Path)
	tree := resolveTree(t, repo, "HEAD")

	files, err := gitlib.TreeFiles(repo, tree)
	require.NoError(t, err)

	sort.Strings(files)
	assert.Equal(t, []string{"dir/deeper/leaf.md", "dir/nested.txt", "root.txt"}, files)
}

func TestTreeFilesNilTree(t *testing.T) {
	files, err := gitlib.TreeFiles(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestTreeDiff(t *testing.T) {
	tr := newTestRepo(t)

	require.NoError(t, tr.WriteFile("keep.txt", "keep\n"))
	require.NoError(t, tr.WriteFile("edit.txt", "v1\n"))
	require.NoError(t, tr.WriteFile("gone.txt", "bye\n"))
	_, err := tr.Commit("first")
	require.NoError(t, err)

	require.NoError(t, tr.WriteFile("edit.txt", "v2\n"))
	require.NoError(t, tr.Remove("gone.txt"))
	require.NoError(t, tr.WriteFile("new.txt", "hello\n"))
	_, err = tr.Commit("second")
	require.NoError(t, err)

	repo := openRepo(t, tr.Path)
	oldTree := resolveTree(t, repo, "HEAD~1")
	newTree := resolveTree(t, repo, "HEAD")

	changes, err := gitlib.TreeDiff(repo, oldTree, newTree)
	require.NoError(t, err)

	byAction := map[gitlib.ChangeAction][]string{}
	for _, change := range changes {
		name := change.To
		if change.Action == gitlib.Delete {
			name = change.From
		}

		byAction[change.Action] = append(byAction[change.Action], name)
	}

	assert.Equal(t, []string{"edit.txt"}, byAction[gitlib.Modify])
	assert.Equal(t, []string{"gone.txt"}, byAction[gitlib.Delete])
	assert.Equal(t, []string{"new.txt"}, byAction[gitlib.Insert])
}

func TestTreeDiffRename(t *testing.T) {
	tr := newTestRepo(t)

	content := "line one\nline two\nline three\nline four\n"
	require.NoError(t, tr.WriteFile("old/name.txt", content))
	_, err := tr.Commit("first")
	require.NoError(t, err)

	require.NoError(t, tr.Rename("old/name.txt", "new/name.txt"))
	_, err = tr.Commit("move")
	require.NoError(t, err)

	repo := openRepo(t, tr.Path)
	oldTree := resolveTree(t, repo, "HEAD~1")
	newTree := resolveTree(t, repo, "HEAD")

	changes, err := gitlib.TreeDiff(repo, oldTree, newTree)
	require.NoError(t, err)
	require.Len(t, changes, 1)

	assert.Equal(t, gitlib.Rename, changes[0].Action)
	assert.Equal(t, "old/name.txt", changes[0].From)
	assert.Equal(t, "new/name.txt", changes[0].To)
	assert.Equal(t, 100, changes[0].Similarity)
}

func TestTreeDiffSameTree(t *testing.T) {
	tr := newTestRepo(t)

	require.NoError(t, tr.WriteFile("a.txt", "a"))
	_, err := tr.Commit("first")
	require.NoError(t, err)

	repo := openRepo(t, tr.Path)
	tree := resolveTree(t, repo, "HEAD")

	changes, err := gitlib.TreeDiff(repo, tree, tree)
	require.NoError(t, err)
	assert.Empty(t, changes)
}
