package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// ChangeAction represents the type of change in a diff.
type ChangeAction int

const (
	// Insert indicates a new file was added.
	Insert ChangeAction = iota
	// Delete indicates a file was removed.
	Delete
	// Modify indicates a file's content or mode changed in place.
	Modify
	// Rename indicates a file moved from one path to another.
	Rename
	// Copy indicates a new file duplicated from an existing one.
	Copy
)

// Change is one file-level difference between two trees.
// From is empty for inserts, To is empty for deletes.
type Change struct {
	Action     ChangeAction
	From       string
	To         string
	Similarity int
}

// Changes is a collection of Change objects.
type Changes []Change

// TreeDiff computes the file changes between two trees.
// Skips diff when both tree OIDs are equal.
func TreeDiff(repo *Repository, oldTree, newTree *Tree) (Changes, error) {
	if oldTree != nil && newTree != nil && oldTree.Hash() == newTree.Hash() {
		return make(Changes, 0), nil
	}

	diff, err := repo.DiffTreeToTree(oldTree, newTree)
	if err != nil {
		return nil, err
	}
	defer diff.Free()

	numDeltas, err := diff.NumDeltas()
	if err != nil {
		return nil, err
	}

	changes := make(Changes, 0, numDeltas)

	for i := range numDeltas {
		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			return nil, deltaErr
		}

		change, ok := changeFromDelta(delta)
		if !ok {
			continue
		}

		changes = append(changes, change)
	}

	return changes, nil
}

func changeFromDelta(delta git2go.DiffDelta) (Change, bool) {
	switch delta.Status {
	case git2go.DeltaAdded:
		return Change{Action: Insert, To: delta.NewFile.Path}, true
	case git2go.DeltaDeleted:
		return Change{Action: Delete, From: delta.OldFile.Path}, true
	case git2go.DeltaModified, git2go.DeltaTypeChange, git2go.DeltaConflicted:
		return Change{Action: Modify, From: delta.OldFile.Path, To: delta.NewFile.Path}, true
	case git2go.DeltaRenamed:
		return Change{
			Action: Rename, From: delta.OldFile.Path, To: delta.NewFile.Path,
			Similarity: int(delta.Similarity),
		}, true
	case git2go.DeltaCopied:
		return Change{
			Action: Copy, From: delta.OldFile.Path, To: delta.NewFile.Path,
			Similarity: int(delta.Similarity),
		}, true
	case git2go.DeltaUnmodified, git2go.DeltaIgnored, git2go.DeltaUntracked, git2go.DeltaUnreadable:
		return Change{}, false
	}

	return Change{}, false
}

// TreeFiles returns the path of every leaf in a tree, recursing into
// subtrees. Blobs and submodule gitlinks are leaves, as in `git ls-tree -r`.
func TreeFiles(repo *Repository, tree *Tree) ([]string, error) {
	if tree == nil {
		return nil, nil
	}

	var files []string

	err := walkTree(repo, tree, "", func(path string) {
		files = append(files, path)
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// walkTree recursively walks a tree and calls the callback for each leaf.
func walkTree(repo *Repository, tree *Tree, prefix string, cb func(path string)) error {
	count := tree.EntryCount()

	for i := range count {
		entry := tree.EntryByIndex(i)
		if entry == nil {
			continue
		}

		walkErr := processTreeEntry(repo, entry, prefix, cb)
		if walkErr != nil {
			return walkErr
		}
	}

	return nil
}

// processTreeEntry reports a leaf or recurses into a subtree.
func processTreeEntry(repo *Repository, entry *TreeEntry, prefix string, cb func(path string)) error {
	path := entry.Name()
	if prefix != "" {
		path = prefix + "/" + path
	}

	if entry.IsBlob() || entry.IsSubmodule() {
		cb(path)

		return nil
	}

	if !entry.IsTree() {
		return nil
	}

	subtree, err := repo.LookupTree(entry.Hash())
	if err != nil {
		return fmt.Errorf("walk %s: %w", path, err)
	}
	defer subtree.Free()

	return walkTree(repo, subtree, path, cb)
}
