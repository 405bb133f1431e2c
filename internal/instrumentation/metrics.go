package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrMethod    = "method"
	attrRoute     = "route"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrOutcome   = "outcome"
)

// Bulk item results.
const (
	ItemSucceeded = "succeeded"
	ItemFailed    = "failed"
)

// Metrics provides methods for recording observability metrics.
// The zero value is a valid no-op recorder.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	gmailOperationsTotal   metric.Int64Counter
	gmailOperationDuration metric.Float64Histogram

	credentialLoadsTotal metric.Int64Counter

	bulkRunsTotal      metric.Int64Counter
	bulkItemsTotal     metric.Int64Counter
	bulkChunkDuration  metric.Float64Histogram
	bulkQueryPageTotal metric.Int64Counter
}

// NewMetrics creates all instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 60.0, 300.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.gmailOperationsTotal, err = meter.Int64Counter(
		"gmail_api_operations_total",
		metric.WithDescription("Total number of Gmail API calls"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_api_operations_total counter: %w", err)
	}

	m.gmailOperationDuration, err = meter.Float64Histogram(
		"gmail_api_operation_duration_seconds",
		metric.WithDescription("Gmail API call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_api_operation_duration_seconds histogram: %w", err)
	}

	m.credentialLoadsTotal, err = meter.Int64Counter(
		"credential_loads_total",
		metric.WithDescription("Total number of credential load attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential_loads_total counter: %w", err)
	}

	m.bulkRunsTotal, err = meter.Int64Counter(
		"bulk_operations_total",
		metric.WithDescription("Total number of bulk operations by outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk_operations_total counter: %w", err)
	}

	m.bulkItemsTotal, err = meter.Int64Counter(
		"bulk_items_total",
		metric.WithDescription("Total number of message ids processed by bulk operations"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk_items_total counter: %w", err)
	}

	m.bulkChunkDuration, err = meter.Float64Histogram(
		"bulk_chunk_duration_seconds",
		metric.WithDescription("Duration of a single bulk chunk in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk_chunk_duration_seconds histogram: %w", err)
	}

	m.bulkQueryPageTotal, err = meter.Int64Counter(
		"bulk_query_pages_total",
		metric.WithDescription("Total number of search pages fetched by query-driven deletion"),
		metric.WithUnit("{page}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk_query_pages_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, route, status code and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrRoute, route),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordGmailOperation records one Gmail API call.
func (m *Metrics) RecordGmailOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil || m.gmailOperationsTotal == nil || m.gmailOperationDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrService, ServiceGmail),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.gmailOperationsTotal.Add(ctx, 1, attrs)
	m.gmailOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordCredentialLoad records a credential load attempt ("success" or "error").
func (m *Metrics) RecordCredentialLoad(ctx context.Context, result string) {
	if m == nil || m.credentialLoadsTotal == nil {
		return
	}
	m.credentialLoadsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordBulkChunk records the outcome of one chunk: how many ids it carried
// and whether the provider accepted them.
func (m *Metrics) RecordBulkChunk(ctx context.Context, operation string, succeeded, failed int, duration time.Duration) {
	if m == nil || m.bulkItemsTotal == nil || m.bulkChunkDuration == nil {
		return
	}

	op := attribute.String(attrOperation, operation)
	if succeeded > 0 {
		m.bulkItemsTotal.Add(ctx, int64(succeeded), metric.WithAttributes(op, attribute.String(attrResult, ItemSucceeded)))
	}
	if failed > 0 {
		m.bulkItemsTotal.Add(ctx, int64(failed), metric.WithAttributes(op, attribute.String(attrResult, ItemFailed)))
	}

	status := StatusSuccess
	if failed > 0 {
		status = StatusError
	}
	m.bulkChunkDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(op, attribute.String(attrStatus, status)))
}

// RecordBulkQueryPage records one search page fetched by query-driven deletion.
func (m *Metrics) RecordBulkQueryPage(ctx context.Context) {
	if m == nil || m.bulkQueryPageTotal == nil {
		return
	}
	m.bulkQueryPageTotal.Add(ctx, 1)
}

// RecordBulkRun records a finished bulk operation. Outcome is "complete" or
// the reason the run stopped early.
func (m *Metrics) RecordBulkRun(ctx context.Context, operation, outcome string) {
	if m == nil || m.bulkRunsTotal == nil {
		return
	}
	m.bulkRunsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrOutcome, outcome),
	))
}
