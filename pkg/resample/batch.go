package resample

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tickfold/tickfold/pkg/segment"
)

// BatchItem is one entry of a batched evaluation: a segment source and the
// request to run against it.
type BatchItem struct {
	Source  segment.Source
	Request Request
}

// BatchResult is the outcome of one batch entry. Exactly one of Table and
// Err is set.
type BatchResult struct {
	Table *Table
	Err   error
}

// ResampleBatch evaluates independent requests concurrently under a
// bounded group. Entries share no plan, accumulator or dtype-fold state;
// an entry's failure is captured in its slot without aborting the rest.
// concurrency <= 0 means unbounded.
func (e *Engine) ResampleBatch(ctx context.Context, items []BatchItem, concurrency int) []BatchResult {
	results := make([]BatchResult, len(items))

	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, item := range items {
		g.Go(func() error {
			table, err := e.Resample(ctx, item.Source, item.Request)
			results[i] = BatchResult{Table: table, Err: err}
			return nil
		})
	}
	// Workers never return errors; Wait only fences completion.
	_ = g.Wait()
	return results
}
