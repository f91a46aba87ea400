// Package sched provides the bounded-concurrency mapper used by the
// export pipeline for media decryption and voice transcription fan-out.
package sched

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// MaxConcurrency caps worker counts regardless of caller input; the
// underlying media and transcription services degrade past this point.
const MaxConcurrency = 6

// Clamp normalizes a caller-supplied concurrency limit: non-positive
// values fall back to fallback, and the result never exceeds max.
func Clamp(n, fallback, max int) int {
	if n <= 0 {
		n = fallback
	}
	if n > max {
		n = max
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Map applies fn to every item with at most limit concurrent workers
// and returns results in input order regardless of completion order.
//
// Workers share an atomic cursor: each claims the next unclaimed index
// and writes its result directly into the pre-sized output slot, so no
// two workers ever process the same item. The first error cancels the
// remaining work and is returned; callers wanting per-item tolerance
// absorb failures inside fn.
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T, index int) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}
	if limit < 1 {
		limit = 1
	}
	if limit > len(items) {
		limit = len(items)
	}

	var cursor atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < limit; w++ {
		g.Go(func() error {
			for {
				idx := int(cursor.Add(1)) - 1
				if idx >= len(items) {
					return nil
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				r, err := fn(ctx, items[idx], idx)
				if err != nil {
					return err
				}
				results[idx] = r
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
