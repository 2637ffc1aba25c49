package gitsource

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sumatoshi-tech/filechanges/pkg/gitlib"
)

// LibgitProvider answers Provider queries in-process through libgit2.
// Paths come from the object database verbatim and need no unquoting.
type LibgitProvider struct {
	mu   sync.Mutex
	repo *gitlib.Repository
}

// OpenLibgitProvider opens the repository at path.
func OpenLibgitProvider(path string) (*LibgitProvider, error) {
	repo, err := gitlib.OpenRepository(path)
	if err != nil {
		return nil, err
	}

	return &LibgitProvider{repo: repo}, nil
}

// Close releases the repository.
func (p *LibgitProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.repo.Free()

	return nil
}

// Diff diffs the trees of since and branch with rename detection.
func (p *LibgitProvider) Diff(_ context.Context, since, branch string) ([]DiffEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	oldTree, err := p.repo.ResolveTree(since)
	if err != nil {
		return nil, err
	}
	defer oldTree.Free()

	newTree, err := p.repo.ResolveTree(branch)
	if err != nil {
		return nil, err
	}
	defer newTree.Free()

	diff, err := gitlib.TreeDiff(p.repo, oldTree, newTree)
	if err != nil {
		return nil, err
	}

	entries := make([]DiffEntry, 0, len(diff))
	for _, change := range diff {
		entries = append(entries, entryFromChange(change))
	}

	return entries, nil
}

func entryFromChange(change gitlib.Change) DiffEntry {
	switch change.Action {
	case gitlib.Insert:
		return DiffEntry{Code: StatusAdded.String(), Status: StatusAdded, From: change.To}
	case gitlib.Delete:
		return DiffEntry{Code: StatusDeleted.String(), Status: StatusDeleted, From: change.From}
	case gitlib.Rename:
		return scoredEntry(StatusRenamed, change)
	case gitlib.Copy:
		return scoredEntry(StatusCopied, change)
	case gitlib.Modify:
	}

	return DiffEntry{Code: StatusModified.String(), Status: StatusModified, From: change.To}
}

func scoredEntry(status Status, change gitlib.Change) DiffEntry {
	return DiffEntry{
		Code:   fmt.Sprintf("%s%03d", status, change.Similarity),
		Status: status,
		Score:  change.Similarity,
		From:   change.From,
		To:     change.To,
	}
}

// List walks branch's tree.
func (p *LibgitProvider) List(_ context.Context, branch string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tree, err := p.repo.ResolveTree(branch)
	if err != nil {
		return nil, err
	}
	defer tree.Free()

	return gitlib.TreeFiles(p.repo, tree)
}

// Resolve peels ref to a commit id.
func (p *LibgitProvider) Resolve(_ context.Context, ref string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	hash, err := p.repo.ResolveCommit(ref)
	if err != nil {
		return "", err
	}

	return hash.String(), nil
}
