package bulk

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/teemow/gmailgate/internal/gmail"
)

// Operation identifies a bulk operation.
type Operation string

const (
	OperationDelete        Operation = "delete"
	OperationTrash         Operation = "trash"
	OperationDeleteByQuery Operation = "delete_by_query"
)

// Reasons a run stopped before it was complete.
const (
	StopCanceled       = "canceled"
	StopIterationLimit = "iteration_limit"
	StopTimeLimit      = "time_limit"
	StopFailureStreak  = "failure_streak"
	StopSearchFailed   = "search_failed"
)

// OutcomeComplete is the metric outcome of a run that finished normally.
const OutcomeComplete = "complete"

// ErrInvalidRequest marks a Request that does not fit its operation.
var ErrInvalidRequest = errors.New("invalid bulk request")

// Request describes one bulk operation. IDs is used by delete and trash,
// Query by delete_by_query. An empty Query matches all messages.
type Request struct {
	Operation Operation
	IDs       []string
	Query     string
}

// Validate checks that the request carries the input its operation needs.
func (r Request) Validate() error {
	switch r.Operation {
	case OperationDelete, OperationTrash:
		if r.Query != "" {
			return fmt.Errorf("%w: %s takes message ids, not a query", ErrInvalidRequest, r.Operation)
		}
	case OperationDeleteByQuery:
		if len(r.IDs) > 0 {
			return fmt.Errorf("%w: %s takes a query, not message ids", ErrInvalidRequest, r.Operation)
		}
	default:
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidRequest, r.Operation)
	}
	return nil
}

// ChunkResult is the outcome of one provider-facing chunk. For delete the
// chunk succeeds or fails as a whole; for trash each id counts separately.
type ChunkResult struct {
	Index     int
	Attempted int
	Succeeded int
	Failed    int
	Err       error
}

// Result aggregates the chunks of one bulk operation.
//
// For id-based operations Succeeded + Failed == Total == len(ids). For
// delete_by_query Total equals Succeeded; Failed is informational.
type Result struct {
	Operation  Operation
	Query      string
	Succeeded  int
	Failed     int
	Total      int
	Chunks     int
	Pages      int
	Complete   bool
	StopReason string
	Errors     *multierror.Error
}

func (r *Result) add(cr ChunkResult) {
	r.Chunks++
	r.Succeeded += cr.Succeeded
	r.Failed += cr.Failed
	if cr.Err != nil {
		r.Errors = multierror.Append(r.Errors, fmt.Errorf("chunk %d: %w", cr.Index, cr.Err))
	}
}

func (r *Result) stop(reason string) {
	r.Complete = false
	r.StopReason = reason
}

// Err returns the accumulated chunk errors, or nil.
func (r *Result) Err() error {
	return r.Errors.ErrorOrNil()
}

// Config tunes the executor. Zero values select the defaults.
type Config struct {
	// ChunkSize is the number of ids per provider call group (default 100,
	// at most gmail.MaxBatchSize).
	ChunkSize int

	// PageSize is the number of ids fetched per search in delete_by_query
	// (default and maximum 500).
	PageSize int64

	// MaxIterations caps the number of search pages of one delete_by_query run.
	MaxIterations int

	// MaxDuration caps the wall time of one delete_by_query run. A negative
	// value disables the budget.
	MaxDuration time.Duration

	// MaxFailureStreak stops delete_by_query after this many consecutive
	// pages in which every chunk failed.
	MaxFailureStreak int
}

const (
	DefaultChunkSize        = 100
	DefaultPageSize         = 500
	DefaultMaxIterations    = 1000
	DefaultMaxDuration      = 10 * time.Minute
	DefaultMaxFailureStreak = 3
)

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:        DefaultChunkSize,
		PageSize:         DefaultPageSize,
		MaxIterations:    DefaultMaxIterations,
		MaxDuration:      DefaultMaxDuration,
		MaxFailureStreak: DefaultMaxFailureStreak,
	}
}

func (c Config) normalized() Config {
	switch {
	case c.ChunkSize <= 0:
		c.ChunkSize = DefaultChunkSize
	case c.ChunkSize > gmail.MaxBatchSize:
		c.ChunkSize = gmail.MaxBatchSize
	}
	if c.PageSize <= 0 || c.PageSize > DefaultPageSize {
		c.PageSize = DefaultPageSize
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.MaxDuration == 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.MaxFailureStreak <= 0 {
		c.MaxFailureStreak = DefaultMaxFailureStreak
	}
	return c
}

// Chunk splits ids into consecutive groups of at most size elements,
// preserving order. It never deduplicates. A non-positive size yields a
// single chunk.
func Chunk(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(ids)
	}

	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for i := 0; i < len(ids); i += size {
		j := i + size
		if j > len(ids) {
			j = len(ids)
		}
		chunks = append(chunks, ids[i:j])
	}
	return chunks
}
