// Package filesource infers file changes from successive scans of a plain
// directory. A scan that no longer sees a file reports it deleted once and
// then forgets it.
package filesource

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/filechanges/pkg/changes"
	"github.com/Sumatoshi-tech/filechanges/pkg/runner"
)

const (
	tracerName = "github.com/Sumatoshi-tech/filechanges/pkg/filesource"
	spanQuery  = "filechanges.files.query"
)

// Source is a stateful change source bound to one directory.
// Queries on one Source are serialized.
type Source struct {
	root     string
	lister   Lister
	logger   *slog.Logger
	tracer   trace.Tracer
	recorder changes.Recorder

	mu      sync.Mutex
	tracked changes.Map
}

// Option configures a Source.
type Option func(*Source)

// WithLister replaces the default find-based lister.
func WithLister(l Lister) Option {
	return func(s *Source) { s.lister = l }
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

// Open binds a source to the directory at path. A symlinked root is resolved
// to its target, since neither lister descends into a link given as the root.
// A root that does not exist yet is kept as is. Nothing is scanned until the
// first Query.
func Open(path string, opts ...Option) (*Source, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	resolved, linkErr := filepath.EvalSymlinks(root)
	if linkErr == nil {
		root = resolved
	}

	src := &Source{
		root:     root,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		recorder: changes.NopRecorder{},
		tracked:  make(changes.Map),
	}

	for _, opt := range opts {
		opt(src)
	}

	if src.lister == nil {
		src.lister = NewCommandLister(runner.NewExec(src.logger), DefaultFindBinary)
	}

	return src, nil
}

// Root returns the absolute directory the source scans.
func (s *Source) Root() string { return s.root }

// Query rescans the directory and returns every file found as active and
// every file seen by the previous query but not by this one as deleted.
// On error the tracked state is left untouched.
func (s *Source) Query(ctx context.Context) (changes.Map, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, spanQuery, trace.WithAttributes(
		attribute.String("files.root", s.root),
		attribute.Int("files.tracked", len(s.tracked)),
	))
	defer span.End()

	start := time.Now()

	next, err := s.scan(ctx)

	elapsed := time.Since(start)
	s.recorder.RecordQuery(ctx, changes.KindFiles, next, elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.WarnContext(ctx, "files query failed", "root", s.root, "error", err)

		return nil, err
	}

	s.tracked = next

	summary := next.Summary()
	span.SetAttributes(
		attribute.Int("changes.active", summary.Active),
		attribute.Int("changes.deleted", summary.Deleted),
	)

	s.logger.DebugContext(ctx, "files query",
		"root", s.root, "active", summary.Active, "deleted", summary.Deleted, "elapsed", elapsed)

	return next.Clone(), nil
}

// scan builds the next tracked state without touching the current one.
func (s *Source) scan(ctx context.Context) (changes.Map, error) {
	paths, err := s.lister.List(ctx, s.root)
	if err != nil {
		return nil, err
	}

	next := make(changes.Map, len(s.tracked)+len(paths))

	for path, active := range s.tracked {
		if active {
			next[path] = false
		}
	}

	for _, path := range paths {
		if path != "" {
			next[path] = true
		}
	}

	return next, nil
}

// Snapshot returns a copy of the tracked state.
func (s *Source) Snapshot() changes.Map {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tracked.Clone()
}

// Restore replaces the tracked state with a copy of m. Deleted entries are
// kept, so a deletion pending when m was taken is forgotten by the next query.
// Keys must be relative, slash separated paths under the root.
func (s *Source) Restore(m changes.Map) error {
	for path := range m {
		if !validKey(path) {
			return fmt.Errorf("restore %q: %w", path, ErrOutsideRoot)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracked = m.Clone()

	return nil
}

func validKey(path string) bool {
	if path == "" || strings.HasPrefix(path, "/") {
		return false
	}

	for part := range strings.SplitSeq(path, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}

	return true
}
