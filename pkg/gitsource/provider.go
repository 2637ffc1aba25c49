package gitsource

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/filechanges/pkg/gitlib"
	"github.com/Sumatoshi-tech/filechanges/pkg/runner"
)

// ErrEmptyOutput is returned when a command that must print a value printed nothing.
var ErrEmptyOutput = errors.New("empty command output")

// DefaultBinary is the git executable looked up on PATH.
const DefaultBinary = "git"

// Provider is the narrow view of a git repository the Source needs.
type Provider interface {
	// Diff returns the name-status entries between since and branch.
	Diff(ctx context.Context, since, branch string) ([]DiffEntry, error)
	// List returns every file path in branch's tree.
	List(ctx context.Context, branch string) ([]string, error)
	// Resolve returns the commit id a ref points at.
	Resolve(ctx context.Context, ref string) (string, error)
}

// CommandProvider drives the git command-line tool through a runner.
type CommandProvider struct {
	runner runner.Runner
	binary string
	dir    string
}

// NewCommandProvider creates a provider running binary with cwd = dir.
// An empty binary means DefaultBinary.
func NewCommandProvider(r runner.Runner, binary, dir string) *CommandProvider {
	if binary == "" {
		binary = DefaultBinary
	}

	return &CommandProvider{runner: r, binary: binary, dir: dir}
}

// Diff runs `git diff --name-status <since> <branch>`.
func (p *CommandProvider) Diff(ctx context.Context, since, branch string) ([]DiffEntry, error) {
	lines, err := p.git(ctx, "diff", "--name-status", since, branch)
	if err != nil {
		return nil, fmt.Errorf("git diff: %w", err)
	}

	return ParseNameStatus(lines)
}

// List runs `git ls-tree -r --name-only --full-tree <branch>`.
func (p *CommandProvider) List(ctx context.Context, branch string) ([]string, error) {
	lines, err := p.git(ctx, "ls-tree", "-r", "--name-only", "--full-tree", branch)
	if err != nil {
		return nil, fmt.Errorf("git ls-tree: %w", err)
	}

	paths := make([]string, 0, len(lines))

	for _, line := range lines {
		if line == "" {
			continue
		}

		paths = append(paths, gitlib.Unquote(line))
	}

	return paths, nil
}

// Resolve runs `git rev-parse --verify <ref>`.
func (p *CommandProvider) Resolve(ctx context.Context, ref string) (string, error) {
	lines, err := p.git(ctx, "rev-parse", "--verify", ref)
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}

	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return "", fmt.Errorf("git rev-parse %s: %w", ref, ErrEmptyOutput)
	}

	return strings.TrimSpace(lines[0]), nil
}

// git runs one git subcommand. Git quotes any path holding a control
// character, so a trailing "\r" can only come from CRLF output and is trimmed.
func (p *CommandProvider) git(ctx context.Context, args ...string) ([]string, error) {
	lines, err := p.runner.Run(ctx, runner.Command{Program: p.binary, Args: args, Dir: p.dir})
	if err != nil {
		return nil, err
	}

	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	return lines, nil
}
