// Package bulk applies delete and trash operations to many Gmail messages.
//
// Id lists are split into chunks (100 ids by default) and processed strictly
// in order. A failing chunk never aborts the run: its ids are counted as
// failed and the next chunk is attempted. Nothing is retried.
//
// DeleteByQuery deletes everything matching a search query by searching and
// deleting page after page until the search is empty. Unlike the id-based
// operations it is bounded: an iteration cap, a time budget and a circuit
// breaker on consecutive fully-failed pages stop runaway loops, and the
// result then reports Complete=false together with a StopReason.
package bulk
