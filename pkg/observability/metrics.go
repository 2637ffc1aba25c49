package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/filechanges/pkg/changes"
)

const (
	metricQueriesTotal  = "filechanges.queries.total"
	metricQueryDuration = "filechanges.query.duration.seconds"
	metricErrorsTotal   = "filechanges.errors.total"
	metricChangesTotal  = "filechanges.changes.total"

	attrKind   = "kind"
	attrStatus = "status"
	attrState  = "state"

	statusOK     = "ok"
	statusError  = "error"
	stateActive  = "active"
	stateDeleted = "deleted"
)

// durationBucketBoundaries covers 1ms to 5min, from tiny trees to
// repositories with hundreds of thousands of files.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300}

// QueryMetrics records change source queries as OTel instruments. It
// implements changes.Recorder.
type QueryMetrics struct {
	queriesTotal  metric.Int64Counter
	queryDuration metric.Float64Histogram
	errorsTotal   metric.Int64Counter
	changesTotal  metric.Int64Counter
}

// NewQueryMetrics creates the query instruments from the given meter.
func NewQueryMetrics(mt metric.Meter) (*QueryMetrics, error) {
	queries, err := mt.Int64Counter(metricQueriesTotal,
		metric.WithDescription("Total number of change source queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricQueriesTotal, err)
	}

	duration, err := mt.Float64Histogram(metricQueryDuration,
		metric.WithDescription("Change source query duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricQueryDuration, err)
	}

	errTotal, err := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Total number of failed queries"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	changesTotal, err := mt.Int64Counter(metricChangesTotal,
		metric.WithDescription("Total number of changes reported"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricChangesTotal, err)
	}

	return &QueryMetrics{
		queriesTotal:  queries,
		queryDuration: duration,
		errorsTotal:   errTotal,
		changesTotal:  changesTotal,
	}, nil
}

// RecordQuery implements changes.Recorder.
func (qm *QueryMetrics) RecordQuery(ctx context.Context, kind string, result changes.Map, elapsed time.Duration, err error) {
	status := statusOK
	if err != nil {
		status = statusError
	}

	attrs := metric.WithAttributes(
		attribute.String(attrKind, kind),
		attribute.String(attrStatus, status),
	)

	qm.queriesTotal.Add(ctx, 1, attrs)
	qm.queryDuration.Record(ctx, elapsed.Seconds(), attrs)

	if err != nil {
		qm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrKind, kind)))

		return
	}

	summary := result.Summary()
	qm.changesTotal.Add(ctx, int64(summary.Active), metric.WithAttributes(
		attribute.String(attrKind, kind), attribute.String(attrState, stateActive)))
	qm.changesTotal.Add(ctx, int64(summary.Deleted), metric.WithAttributes(
		attribute.String(attrKind, kind), attribute.String(attrState, stateDeleted)))
}
