// Package gitsource reports file changes recorded in a git repository, either
// as a full tree listing or as the diff between two refs.
package gitsource

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/filechanges/pkg/changes"
	"github.com/Sumatoshi-tech/filechanges/pkg/runner"
)

const (
	tracerName = "github.com/Sumatoshi-tech/filechanges/pkg/gitsource"
	spanQuery  = "filechanges.git.query"

	modeList = "list"
	modeDiff = "diff"
)

// ErrEmptyBranch is returned by Open when no branch is given.
var ErrEmptyBranch = errors.New("branch must not be empty")

// Source is a change source bound to one repository and one branch.
// It keeps no state between queries and is safe for concurrent use.
type Source struct {
	path     string
	branch   string
	provider Provider
	logger   *slog.Logger
	tracer   trace.Tracer
	recorder changes.Recorder
}

// Option configures a Source.
type Option func(*Source)

// WithProvider replaces the default command-line provider.
func WithProvider(p Provider) Option {
	return func(s *Source) { s.provider = p }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) { s.logger = logger }
}

// WithTracer sets the tracer used for query spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Source) { s.tracer = tracer }
}

// WithRecorder sets the query recorder.
func WithRecorder(rec changes.Recorder) Option {
	return func(s *Source) { s.recorder = rec }
}

// Open binds a source to the repository at path and to branch. Without
// WithProvider, queries run the git binary found on PATH.
func Open(path, branch string, opts ...Option) (*Source, error) {
	if branch == "" {
		return nil, ErrEmptyBranch
	}

	src := &Source{
		path:     path,
		branch:   branch,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		recorder: changes.NopRecorder{},
	}

	for _, opt := range opts {
		opt(src)
	}

	if src.provider == nil {
		src.provider = NewCommandProvider(runner.NewExec(src.logger), DefaultBinary, path)
	}

	return src, nil
}

// Path returns the repository root.
func (s *Source) Path() string { return s.path }

// Branch returns the branch queries are computed against.
func (s *Source) Branch() string { return s.branch }

// Query returns the changes between since and the branch. With since empty
// every file in the branch's tree is reported active. The result is owned by
// the caller. A provider failure fails the whole query.
func (s *Source) Query(ctx context.Context, since string) (changes.Map, error) {
	return s.QueryAt(ctx, since, s.branch)
}

// QueryAt is Query against rev instead of the branch. Callers pin rev to a
// commit returned by Head so the reported range ends exactly where a cursor
// will resume. An empty rev means the branch.
func (s *Source) QueryAt(ctx context.Context, since, rev string) (changes.Map, error) {
	if rev == "" {
		rev = s.branch
	}

	mode := modeDiff
	if since == "" {
		mode = modeList
	}

	ctx, span := s.tracer.Start(ctx, spanQuery, trace.WithAttributes(
		attribute.String("git.branch", s.branch),
		attribute.String("git.rev", rev),
		attribute.String("git.since", since),
		attribute.String("query.mode", mode),
	))
	defer span.End()

	start := time.Now()

	result, err := s.query(ctx, since, rev)

	elapsed := time.Since(start)
	s.recorder.RecordQuery(ctx, changes.KindGit, result, elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.WarnContext(ctx, "git query failed",
			"path", s.path, "branch", s.branch, "rev", rev, "since", since, "error", err)

		return nil, err
	}

	summary := result.Summary()
	span.SetAttributes(
		attribute.Int("changes.active", summary.Active),
		attribute.Int("changes.deleted", summary.Deleted),
	)

	s.logger.DebugContext(ctx, "git query",
		"path", s.path, "branch", s.branch, "rev", rev, "since", since, "mode", mode,
		"active", summary.Active, "deleted", summary.Deleted, "elapsed", elapsed)

	return result, nil
}

func (s *Source) query(ctx context.Context, since, rev string) (changes.Map, error) {
	if since == "" {
		paths, err := s.provider.List(ctx, rev)
		if err != nil {
			return nil, err
		}

		result := make(changes.Map, len(paths))
		for _, path := range paths {
			if path != "" {
				result[path] = true
			}
		}

		return result, nil
	}

	entries, err := s.provider.Diff(ctx, since, rev)
	if err != nil {
		return nil, err
	}

	return Apply(entries), nil
}

// Head resolves the branch to the commit it currently points at.
func (s *Source) Head(ctx context.Context) (string, error) {
	return s.provider.Resolve(ctx, s.branch)
}
