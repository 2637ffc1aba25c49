package changes

import (
	"context"
	"time"
)

// Source kinds reported to a Recorder.
const (
	KindGit   = "git"
	KindFiles = "files"
)

// Recorder receives the outcome of every query a source runs.
// result is nil when err is non-nil.
type Recorder interface {
	RecordQuery(ctx context.Context, kind string, result Map, elapsed time.Duration, err error)
}

// NopRecorder discards every record.
type NopRecorder struct{}

// RecordQuery implements Recorder.
func (NopRecorder) RecordQuery(context.Context, string, Map, time.Duration, error) {}
