// Package async holds the two concurrency combinators shared by the
// external-API clients: an order-preserving bounded parallel map and a
// retry-with-backoff wrapper.
package async

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// MapWithLimit runs worker over items with at most limit workers in flight
// and returns the results in input order: out[i] is worker(ctx, items[i], i).
// The limit is clamped to [1, len(items)]. A worker error fails the whole
// call; workers doing fallible per-item work that must not sink the batch
// should catch internally and return a sentinel value instead.
func MapWithLimit[T, R any](ctx context.Context, items []T, limit int, worker func(ctx context.Context, item T, i int) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	if len(items) == 0 {
		return out, nil
	}

	if limit < 1 {
		limit = 1
	}
	if limit > len(items) {
		limit = len(items)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, item := range items {
		g.Go(func() error {
			r, err := worker(gCtx, item, i)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Retry runs op up to retries+1 times, sleeping backoff·2^attempt between
// attempts. The last error is returned once attempts are exhausted. A
// canceled context cuts the wait short and returns the context error.
func Retry[T any](ctx context.Context, retries int, backoff time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == retries {
			break
		}

		wait := backoff * (1 << attempt)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}
