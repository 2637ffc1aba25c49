package gitlib

import (
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrEmptyRevision is returned when a revision spec is blank.
var ErrEmptyRevision = errors.New("empty revision")

// Repository wraps a libgit2 repository.
type Repository struct {
	repo *git2go.Repository
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo}, nil
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// ResolveCommit resolves a revision spec (branch, tag, sha, HEAD~2) to the
// hash of the commit it names.
func (r *Repository) ResolveCommit(spec string) (Hash, error) {
	obj, err := r.peel(spec, git2go.ObjectCommit)
	if err != nil {
		return Hash{}, err
	}
	defer obj.Free()

	return HashFromOid(obj.Id()), nil
}

// ResolveTree resolves a revision spec to the root tree of the commit it names.
func (r *Repository) ResolveTree(spec string) (*Tree, error) {
	obj, err := r.peel(spec, git2go.ObjectTree)
	if err != nil {
		return nil, err
	}
	defer obj.Free()

	tree, err := obj.AsTree()
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", spec, err)
	}

	return &Tree{tree: tree}, nil
}

func (r *Repository) peel(spec string, kind git2go.ObjectType) (*git2go.Object, error) {
	if spec == "" {
		return nil, ErrEmptyRevision
	}

	obj, err := r.repo.RevparseSingle(spec)
	if err != nil {
		return nil, fmt.Errorf("revparse %s: %w", spec, err)
	}
	defer obj.Free()

	peeled, err := obj.Peel(kind)
	if err != nil {
		return nil, fmt.Errorf("peel %s: %w", spec, err)
	}

	return peeled, nil
}

// LookupTree returns the tree with the given hash.
func (r *Repository) LookupTree(hash Hash) (*Tree, error) {
	tree, err := r.repo.LookupTree(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup tree: %w", err)
	}

	return &Tree{tree: tree}, nil
}

// DiffTreeToTree computes the diff between two trees with rename and copy
// detection applied, matching `git diff --find-renames --find-copies`.
func (r *Repository) DiffTreeToTree(oldTree, newTree *Tree) (*Diff, error) {
	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	var oldT, newT *git2go.Tree
	if oldTree != nil {
		oldT = oldTree.tree
	}

	if newTree != nil {
		newT = newTree.tree
	}

	diff, err := r.repo.DiffTreeToTree(oldT, newT, &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	findOpts, err := git2go.DefaultDiffFindOptions()
	if err != nil {
		freeDiff(diff)

		return nil, fmt.Errorf("get find options: %w", err)
	}

	findOpts.Flags |= git2go.DiffFindRenames | git2go.DiffFindCopies

	err = diff.FindSimilar(&findOpts)
	if err != nil {
		freeDiff(diff)

		return nil, fmt.Errorf("find similar: %w", err)
	}

	return &Diff{diff: diff}, nil
}

// Diff wraps a libgit2 diff.
type Diff struct {
	diff *git2go.Diff
}

// NumDeltas returns the number of deltas in the diff.
func (d *Diff) NumDeltas() (int, error) {
	numDeltas, err := d.diff.NumDeltas()
	if err != nil {
		return 0, fmt.Errorf("get num deltas: %w", err)
	}

	return numDeltas, nil
}

// Delta returns the delta at the given index.
func (d *Diff) Delta(index int) (git2go.DiffDelta, error) {
	delta, err := d.diff.Delta(index)
	if err != nil {
		return git2go.DiffDelta{}, fmt.Errorf("get delta: %w", err)
	}

	return delta, nil
}

// Free releases the diff resources.
func (d *Diff) Free() {
	if d.diff == nil {
		return
	}

	freeDiff(d.diff)
	d.diff = nil
}

func freeDiff(diff *git2go.Diff) {
	// Free errors are not actionable during cleanup.
	_ = diff.Free()
}
