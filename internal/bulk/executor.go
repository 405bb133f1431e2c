package bulk

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/gmailgate/internal/gmail"
	"github.com/teemow/gmailgate/internal/instrumentation"
	"github.com/teemow/gmailgate/internal/logging"
)

// Mailbox is the subset of the Gmail client the executor drives.
type Mailbox interface {
	BatchDeleteMessages(ctx context.Context, messageIDs []string) error
	TrashMessage(ctx context.Context, messageID string) error
	SearchMessageIDs(ctx context.Context, query string, maxResults int64) ([]string, error)
}

// Executor runs bulk operations against a Mailbox, one chunk at a time.
type Executor struct {
	mailbox Mailbox
	config  Config
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	now     func() time.Time
}

// NewExecutor creates an executor. A nil logger discards output and nil
// metrics record nothing.
func NewExecutor(mailbox Mailbox, config Config, logger *slog.Logger, metrics *instrumentation.Metrics) *Executor {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Executor{
		mailbox: mailbox,
		config:  config.normalized(),
		logger:  logger.With(slog.String("component", "bulk")),
		metrics: metrics,
		now:     time.Now,
	}
}

// Config returns the effective configuration after defaults and clamping.
func (e *Executor) Config() Config {
	return e.config
}

// Execute validates req and dispatches it to the matching operation.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	switch req.Operation {
	case OperationDelete:
		return e.DeleteByID(ctx, req.IDs)
	case OperationTrash:
		return e.TrashByID(ctx, req.IDs)
	default:
		return e.DeleteByQuery(ctx, req.Query)
	}
}

// DeleteByID permanently deletes ids using one native batch call per chunk.
// A rejected chunk counts every id in it as failed; processing continues
// with the next chunk. Succeeded + Failed always equals len(ids).
func (e *Executor) DeleteByID(ctx context.Context, ids []string) (*Result, error) {
	return e.executeByID(ctx, OperationDelete, ids), nil
}

// TrashByID moves ids to the trash, one call per id, chunk by chunk.
// Each failed id counts once. Succeeded + Failed always equals len(ids).
func (e *Executor) TrashByID(ctx context.Context, ids []string) (*Result, error) {
	return e.executeByID(ctx, OperationTrash, ids), nil
}

func (e *Executor) executeByID(ctx context.Context, op Operation, ids []string) *Result {
	ctx, span := instrumentation.StartBulkSpan(ctx, string(op),
		attribute.Int(instrumentation.SpanAttrMessageCount, len(ids)))
	defer span.End()

	res := &Result{Operation: op, Total: len(ids), Complete: true}
	chunks := Chunk(ids, e.config.ChunkSize)

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			// Ids never attempted are reported as failed.
			for _, rest := range chunks[i:] {
				res.Failed += len(rest)
			}
			res.stop(StopCanceled)
			res.Errors = multierror.Append(res.Errors, err)
			break
		}
		res.add(e.processChunk(ctx, op, op, i, chunk))
	}

	e.finish(ctx, span, res)
	return res
}

// DeleteByQuery repeatedly searches for up to PageSize messages matching
// query and deletes them in chunks until a search comes back empty.
//
// Deleted messages no longer match, so every search returns the next set.
// Failed chunks are not retried directly; their ids simply show up again in
// the next search. The loop also stops when the query still matches after
// MaxIterations pages, after MaxDuration, or after MaxFailureStreak
// consecutive pages in which every chunk failed. In those cases the result
// is marked incomplete.
//
// An empty query matches every message in the mailbox.
// A search error is returned only when nothing has been deleted yet.
func (e *Executor) DeleteByQuery(ctx context.Context, query string) (*Result, error) {
	ctx, span := instrumentation.StartBulkSpan(ctx, string(OperationDeleteByQuery))
	defer span.End()

	res := &Result{Operation: OperationDeleteByQuery, Query: query}
	breaker := e.newBreaker()
	start := e.now()

	for {
		switch {
		case ctx.Err() != nil:
			res.stop(StopCanceled)
			res.Errors = multierror.Append(res.Errors, ctx.Err())
		case e.config.MaxDuration > 0 && e.now().Sub(start) >= e.config.MaxDuration:
			res.stop(StopTimeLimit)
		}
		if res.StopReason != "" {
			break
		}

		ids, err := e.mailbox.SearchMessageIDs(ctx, query, e.config.PageSize)
		if err != nil {
			res.stop(StopSearchFailed)
			res.Errors = multierror.Append(res.Errors, err)
			if res.Succeeded == 0 {
				e.finish(ctx, span, res)
				return nil, err
			}
			break
		}
		if len(ids) == 0 {
			res.Complete = true
			break
		}
		// Checked after the search: a run whose last allowed page emptied
		// the query is complete.
		if res.Pages >= e.config.MaxIterations {
			res.stop(StopIterationLimit)
			break
		}

		res.Pages++
		e.metrics.RecordBulkQueryPage(ctx)

		_, _ = breaker.Execute(func() (interface{}, error) {
			return nil, e.deletePage(ctx, ids, res)
		})
		if breaker.State() == gobreaker.StateOpen {
			res.stop(StopFailureStreak)
			break
		}
	}

	// Matches the historical contract: total reports deleted messages only.
	res.Total = res.Succeeded

	e.finish(ctx, span, res)
	return res, nil
}

// errPageFailed marks a page in which no chunk succeeded.
var errPageFailed = errors.New("every chunk of the page failed")

func (e *Executor) deletePage(ctx context.Context, ids []string, res *Result) error {
	succeeded := 0
	for _, chunk := range Chunk(ids, e.config.ChunkSize) {
		if ctx.Err() != nil {
			// Not a page failure; the loop records the cancellation.
			return nil
		}
		cr := e.processChunk(ctx, OperationDeleteByQuery, OperationDelete, res.Chunks, chunk)
		res.add(cr)
		succeeded += cr.Succeeded
	}
	if succeeded == 0 {
		return errPageFailed
	}
	return nil
}

func (e *Executor) newBreaker() *gobreaker.CircuitBreaker {
	streak := uint32(e.config.MaxFailureStreak)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: string(OperationDeleteByQuery),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= streak
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
}

// processChunk applies action to one chunk and records it under label.
func (e *Executor) processChunk(ctx context.Context, label, action Operation, index int, chunk []string) ChunkResult {
	start := e.now()
	cr := ChunkResult{Index: index, Attempted: len(chunk)}

	switch action {
	case OperationTrash:
		var errs *multierror.Error
		for _, id := range chunk {
			if err := e.mailbox.TrashMessage(ctx, id); err != nil {
				cr.Failed++
				errs = multierror.Append(errs, err)
				continue
			}
			cr.Succeeded++
		}
		cr.Err = errs.ErrorOrNil()
	default:
		if err := e.mailbox.BatchDeleteMessages(ctx, chunk); err != nil {
			cr.Failed = len(chunk)
			cr.Err = err
		} else {
			cr.Succeeded = len(chunk)
		}
	}

	e.metrics.RecordBulkChunk(ctx, string(label), cr.Succeeded, cr.Failed, e.now().Sub(start))

	if cr.Err != nil {
		e.logger.Warn("bulk chunk failed",
			logging.Operation(string(label)),
			slog.Int("chunk", index),
			slog.Int("attempted", cr.Attempted),
			slog.Int("failed", cr.Failed),
			slog.Int("status_code", gmail.StatusCode(cr.Err)),
			logging.Err(cr.Err))
	}
	return cr
}

func (e *Executor) finish(ctx context.Context, span trace.Span, res *Result) {
	outcome := OutcomeComplete
	if !res.Complete {
		outcome = res.StopReason
	}
	e.metrics.RecordBulkRun(ctx, string(res.Operation), outcome)

	span.SetAttributes(
		attribute.Int("bulk.succeeded", res.Succeeded),
		attribute.Int("bulk.failed", res.Failed),
		attribute.Int("bulk.chunks", res.Chunks),
		attribute.String("bulk.outcome", outcome),
	)
	if err := res.Err(); err != nil && res.Succeeded == 0 && res.Failed > 0 {
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}

	level := slog.LevelInfo
	if !res.Complete {
		level = slog.LevelWarn
	}
	e.logger.Log(ctx, level, "bulk operation finished",
		logging.Operation(string(res.Operation)),
		slog.Int("succeeded", res.Succeeded),
		slog.Int("failed", res.Failed),
		slog.Int("total", res.Total),
		slog.Int("chunks", res.Chunks),
		slog.Int("pages", res.Pages),
		slog.String("outcome", outcome))
}
