package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Sumatoshi-tech/filechanges/internal/config"
	"github.com/Sumatoshi-tech/filechanges/pkg/changes"
	"github.com/Sumatoshi-tech/filechanges/pkg/gitsource"
	"github.com/Sumatoshi-tech/filechanges/pkg/observability"
	"github.com/Sumatoshi-tech/filechanges/pkg/persist"
	"github.com/Sumatoshi-tech/filechanges/pkg/runner"
)

const (
	spanGitCommand  = "filechanges.git"
	cursorExtension = ".json"
)

// gitCursor is the last commit a cursor file has seen on a branch.
type gitCursor struct {
	Branch string `json:"branch"`
	Commit string `json:"commit"`
}

// GitCommand holds flags for the git command.
type GitCommand struct {
	deps   deps
	global *globalOptions

	branch  string
	since   string
	cursor  string
	backend string
	binary  string
}

func newGitCommand(d deps, global *globalOptions) *cobra.Command {
	gc := &GitCommand{deps: d, global: global}

	cmd := &cobra.Command{
		Use:   "git [path]",
		Short: "Report changes recorded in a git repository",
		Long: `Report the files of a git repository as a change set.

Without --since every file in the branch's tree is reported active. With
--since the name-status diff between the two refs is reported: renames
mark the old path deleted and the new one active, deletions mark the path
deleted, everything else marks it active.

--cursor remembers the branch head in a file so the next run reports only
what was committed in between.`,
		Args: cobra.MaximumNArgs(1),
		RunE: gc.run,
	}

	cmd.Flags().StringVar(&gc.branch, "branch", config.DefaultGitBranch, "Branch or ref to report")
	cmd.Flags().StringVar(&gc.since, "since", "", "Ref to diff from (empty = list the whole tree)")
	cmd.Flags().StringVar(&gc.cursor, "cursor", "", "Cursor file storing the last reported commit")
	cmd.Flags().StringVar(&gc.backend, "backend", config.DefaultGitBackend, "Git backend: cli, libgit2")
	cmd.Flags().StringVar(&gc.binary, "git-binary", config.DefaultGitBinary, "Git executable for the cli backend")

	return cmd
}

func (gc *GitCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("branch") {
		cfg.Git.Branch = gc.branch
	}

	if cmd.Flags().Changed("backend") {
		cfg.Git.Backend = gc.backend
	}

	if cmd.Flags().Changed("git-binary") {
		cfg.Git.Binary = gc.binary
	}

	return cfg.Validate()
}

func (gc *GitCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := gc.global.resolveConfig(cmd, gc.deps)
	if err != nil {
		return err
	}

	err = gc.applyFlags(cmd, cfg)
	if err != nil {
		return err
	}

	out, err := newOutput(cfg)
	if err != nil {
		return err
	}

	providers, err := startObservability(gc.deps, cfg, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer shutdownObservability(providers)

	path := resolvePath(args)

	ctx, span := providers.Tracer.Start(cmd.Context(), spanGitCommand)
	defer span.End()

	span.SetAttributes(
		attribute.String("git.path", path),
		attribute.String("git.backend", cfg.Git.Backend),
	)

	result, err := gc.query(ctx, cfg, providers, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return err
	}

	providers.Logger.InfoContext(ctx, "git changes", "path", path, "branch", cfg.Git.Branch,
		"active", result.Summary().Active, "deleted", result.Summary().Deleted)

	return out.write(cmd.OutOrStdout(), result)
}

func (gc *GitCommand) query(
	ctx context.Context, cfg *config.Config, providers observability.Providers, path string,
) (changes.Map, error) {
	provider, closeProvider, err := openProvider(cfg, providers, path)
	if err != nil {
		return nil, err
	}
	defer closeProvider()

	metrics, err := observability.NewQueryMetrics(providers.Meter)
	if err != nil {
		return nil, err
	}

	src, err := gitsource.Open(path, cfg.Git.Branch,
		gitsource.WithProvider(provider),
		gitsource.WithLogger(providers.Logger),
		gitsource.WithTracer(providers.Tracer),
		gitsource.WithRecorder(metrics),
	)
	if err != nil {
		return nil, err
	}

	if gc.cursor == "" {
		return src.Query(ctx, gc.since)
	}

	return queryWithCursor(ctx, src, gc.cursor, gc.since)
}

// queryWithCursor diffs from since, or from the commit stored in file when
// since is empty, up to the commit the branch resolves to now. That same
// commit is saved as the next cursor.
func queryWithCursor(ctx context.Context, src *gitsource.Source, file, since string) (changes.Map, error) {
	if since == "" {
		stored, err := loadCursor(file, src.Branch())
		if err != nil {
			return nil, err
		}

		since = stored
	}

	head, err := src.Head(ctx)
	if err != nil {
		return nil, err
	}

	result, err := src.QueryAt(ctx, since, head)
	if err != nil {
		return nil, err
	}

	err = saveCursor(file, gitCursor{Branch: src.Branch(), Commit: head})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func openProvider(
	cfg *config.Config, providers observability.Providers, path string,
) (gitsource.Provider, func(), error) {
	if cfg.Git.Backend == config.BackendLibgit2 {
		lp, err := gitsource.OpenLibgitProvider(path)
		if err != nil {
			return nil, nil, err
		}

		return lp, func() { _ = lp.Close() }, nil
	}

	r := runner.NewExec(providers.Logger)

	return gitsource.NewCommandProvider(r, cfg.Git.Binary, path), func() {}, nil
}

func cursorPersister(file string) *persist.Persister[gitCursor] {
	dir, base := filepath.Dir(file), strings.TrimSuffix(filepath.Base(file), cursorExtension)

	return persist.NewPersister[gitCursor](dir, base, persist.NewJSONCodec())
}

// loadCursor returns the commit stored for branch, or "" when the file does
// not exist yet or tracks another branch.
func loadCursor(file, branch string) (string, error) {
	cur, found, err := cursorPersister(file).Load()
	if err != nil {
		return "", fmt.Errorf("load cursor: %w", err)
	}

	if !found || cur.Branch != branch {
		return "", nil
	}

	return cur.Commit, nil
}

func saveCursor(file string, cur gitCursor) error {
	err := cursorPersister(file).Save(cur)
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}

	return nil
}
