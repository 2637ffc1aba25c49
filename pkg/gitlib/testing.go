package gitlib

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	git2go "github.com/libgit2/git2go/v34"
)

// Test fixture permissions.
const (
	testDirPerm  = 0o755
	testFilePerm = 0o644
)

// TestRepo is a scratch repository for tests of git-backed code.
// Files are written to the working directory and committed with AddAll,
// so removals and renames are picked up as in `git add -A`.
type TestRepo struct {
	Path   string
	native *git2go.Repository
}

// InitTestRepo initializes a non-bare repository in dir.
func InitTestRepo(dir string) (*TestRepo, error) {
	repo, err := git2go.InitRepository(dir, false)
	if err != nil {
		return nil, fmt.Errorf("init repository: %w", err)
	}

	return &TestRepo{Path: dir, native: repo}, nil
}

// WriteFile creates or overwrites a file relative to the work tree.
func (tr *TestRepo) WriteFile(name, content string) error {
	path := filepath.Join(tr.Path, name)

	err := os.MkdirAll(filepath.Dir(path), testDirPerm)
	if err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	err = os.WriteFile(path, []byte(content), testFilePerm)
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	return nil
}

// Remove deletes a file from the work tree.
func (tr *TestRepo) Remove(name string) error {
	err := os.Remove(filepath.Join(tr.Path, name))
	if err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}

	return nil
}

// Rename moves a file inside the work tree.
func (tr *TestRepo) Rename(from, to string) error {
	dst := filepath.Join(tr.Path, to)

	err := os.MkdirAll(filepath.Dir(dst), testDirPerm)
	if err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	err = os.Rename(filepath.Join(tr.Path, from), dst)
	if err != nil {
		return fmt.Errorf("rename %s: %w", from, err)
	}

	return nil
}

// Commit stages the whole work tree and commits it on HEAD.
func (tr *TestRepo) Commit(message string) (Hash, error) {
	index, err := tr.native.Index()
	if err != nil {
		return Hash{}, fmt.Errorf("open index: %w", err)
	}
	defer index.Free()

	err = index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil)
	if err != nil {
		return Hash{}, fmt.Errorf("add all: %w", err)
	}

	err = index.UpdateAll([]string{"*"}, nil)
	if err != nil {
		return Hash{}, fmt.Errorf("update all: %w", err)
	}

	err = index.Write()
	if err != nil {
		return Hash{}, fmt.Errorf("write index: %w", err)
	}

	treeID, err := index.WriteTree()
	if err != nil {
		return Hash{}, fmt.Errorf("write tree: %w", err)
	}

	tree, err := tr.native.LookupTree(treeID)
	if err != nil {
		return Hash{}, fmt.Errorf("lookup tree: %w", err)
	}
	defer tree.Free()

	sig := &git2go.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()}

	var parents []*git2go.Commit

	head, headErr := tr.native.Head()
	if headErr == nil {
		headCommit, lookupErr := tr.native.LookupCommit(head.Target())

		head.Free()

		if lookupErr != nil {
			return Hash{}, fmt.Errorf("lookup head: %w", lookupErr)
		}

		parents = append(parents, headCommit)
	}

	oid, err := tr.native.CreateCommit("HEAD", sig, sig, message, tree, parents...)

	for _, parent := range parents {
		parent.Free()
	}

	if err != nil {
		return Hash{}, fmt.Errorf("create commit: %w", err)
	}

	return HashFromOid(oid), nil
}

// Free releases the repository handle.
func (tr *TestRepo) Free() {
	if tr.native != nil {
		tr.native.Free()
		tr.native = nil
	}
}
