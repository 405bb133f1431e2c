package instrumentation

import (
	"context"
	"testing"
	"time"
)

func TestMetrics_RecordAll(t *testing.T) {
	provider := newTestProvider(t, ExporterPrometheus, ExporterNone)
	metrics := provider.Metrics()
	ctx := context.Background()

	// None of these should panic.
	metrics.RecordHTTPRequest(ctx, "POST", "/api/messages/batch-delete", 200, 100*time.Millisecond)
	metrics.RecordHTTPRequest(ctx, "POST", "/api/labels/list", 401, time.Millisecond)
	metrics.RecordGmailOperation(ctx, OperationBatchDelete, StatusSuccess, 200*time.Millisecond)
	metrics.RecordGmailOperation(ctx, OperationTrash, StatusError, 50*time.Millisecond)
	metrics.RecordCredentialLoad(ctx, StatusSuccess)
	metrics.RecordBulkChunk(ctx, "delete", 100, 0, time.Second)
	metrics.RecordBulkChunk(ctx, "trash", 98, 2, time.Second)
	metrics.RecordBulkQueryPage(ctx)
	metrics.RecordBulkRun(ctx, "delete_by_query", "complete")
}

func TestMetrics_ZeroValueIsNoop(t *testing.T) {
	ctx := context.Background()

	var zero Metrics
	zero.RecordHTTPRequest(ctx, "GET", "/", 200, time.Millisecond)
	zero.RecordGmailOperation(ctx, OperationGet, StatusSuccess, time.Millisecond)
	zero.RecordCredentialLoad(ctx, StatusError)
	zero.RecordBulkChunk(ctx, "delete", 1, 1, time.Millisecond)
	zero.RecordBulkQueryPage(ctx)
	zero.RecordBulkRun(ctx, "delete", "complete")

	var nilMetrics *Metrics
	nilMetrics.RecordBulkChunk(ctx, "delete", 1, 0, time.Millisecond)
	nilMetrics.RecordHTTPRequest(ctx, "GET", "/", 200, time.Millisecond)
}
