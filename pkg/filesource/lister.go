package filesource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/filechanges/pkg/runner"
)

// DefaultFindBinary is the program CommandLister runs when none is given.
const DefaultFindBinary = "find"

// Lister errors.
var (
	// ErrNotDirectory is returned when the root is not a directory.
	ErrNotDirectory = errors.New("root is not a directory")
	// ErrOutsideRoot is returned for an enumerated path that does not live under the root.
	ErrOutsideRoot = errors.New("path outside root")
)

// Lister enumerates the regular files below root. Returned paths are
// relative to root and slash separated.
type Lister interface {
	List(ctx context.Context, root string) ([]string, error)
}

// CommandLister enumerates files with `find <root> -type f`.
type CommandLister struct {
	runner runner.Runner
	binary string
}

// NewCommandLister creates a lister running binary through r. An empty
// binary means DefaultFindBinary.
func NewCommandLister(r runner.Runner, binary string) *CommandLister {
	if binary == "" {
		binary = DefaultFindBinary
	}

	return &CommandLister{runner: r, binary: binary}
}

// List implements Lister.
func (l *CommandLister) List(ctx context.Context, root string) ([]string, error) {
	lines, err := l.runner.Run(ctx, runner.Command{
		Program: l.binary,
		Args:    []string{root, "-type", "f"},
	})
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", l.binary, err)
	}

	paths := make([]string, 0, len(lines))

	for _, line := range lines {
		if line == "" {
			continue
		}

		rel, relErr := relativize(root, line)
		if relErr != nil {
			return nil, relErr
		}

		paths = append(paths, rel)
	}

	return paths, nil
}

// WalkLister enumerates files in process with filepath.WalkDir. Symbolic
// links are not followed, matching `find -type f`.
type WalkLister struct{}

// List implements Lister.
func (WalkLister) List(ctx context.Context, root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	var paths []string

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		ctxErr := ctx.Err()
		if ctxErr != nil {
			return ctxErr
		}

		if !d.Type().IsRegular() {
			return nil
		}

		rel, relErr := relativize(root, path)
		if relErr != nil {
			return relErr
		}

		paths = append(paths, rel)

		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", root, walkErr)
	}

	return paths, nil
}

func relativize(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	return rel, nil
}
