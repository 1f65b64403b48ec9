// Package workpool runs a function over a slice with a cap on how many calls
// are in flight at once.
package workpool

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Map calls fn for every item with at most limit calls running concurrently
// and returns the results in input order. Items beyond the window wait for a
// free slot. Every item runs even after a failure; the returned error is the
// first one to occur. A limit below 1 means one at a time.
func Map[T, R any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, i int, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	if limit < 1 {
		limit = 1
	}

	var (
		g        errgroup.Group
		mu       sync.Mutex
		firstErr error
	)
	g.SetLimit(limit)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			r, err := fn(ctx, i, item)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return err
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return results, firstErr
}
