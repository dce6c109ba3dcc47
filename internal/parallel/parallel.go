// Package parallel runs independent, order-insensitive tasks on a bounded
// worker pool.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers returns the worker count to use for n.
// Values <= 0 select GOMAXPROCS.
func Workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}

// FilterMap applies fn to every item using at most workers goroutines and
// returns the results for which fn reported ok, in input order.
//
// fn must not share mutable state between calls without its own locking.
// A task that fails reports ok=false; the failure never stops sibling tasks.
// The only error returned is the context's, when it is cancelled before all
// items were dispatched.
func FilterMap[T, R any](ctx context.Context, items []T, workers int, fn func(ctx context.Context, item T) (R, bool)) ([]R, error) {
	if len(items) == 0 {
		return nil, ctx.Err()
	}

	type slot struct {
		value R
		ok    bool
	}
	slots := make([]slot, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(Workers(workers), len(items)))
	for i := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, ok := fn(gctx, items[i])
			slots[i] = slot{value: v, ok: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]R, 0, len(items))
	for _, s := range slots {
		if s.ok {
			out = append(out, s.value)
		}
	}
	return out, nil
}

// ForEach applies fn to every item using at most workers goroutines.
// It has the same failure semantics as FilterMap.
func ForEach[T any](ctx context.Context, items []T, workers int, fn func(ctx context.Context, item T)) error {
	_, err := FilterMap(ctx, items, workers, func(ctx context.Context, item T) (struct{}, bool) {
		fn(ctx, item)
		return struct{}{}, false
	})
	return err
}
