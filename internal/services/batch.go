package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Chunks partitions items into consecutive groups of at most width.
func Chunks[T any](items []T, width int) [][]T {
	if width < 1 {
		width = 1
	}
	var out [][]T
	for start := 0; start < len(items); start += width {
		end := start + width
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

// RunChunk executes one chunk with full fan-out and a completion barrier:
// every item is launched concurrently and RunChunk returns only when all of
// them have produced a result. Results are index-aligned with items. fn
// must capture its own failures inside R; a single item's failure never
// becomes a chunk-level fault.
func RunChunk[T, R any](ctx context.Context, items []T, fn func(ctx context.Context, item T) R) []R {
	results := make([]R, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			results[i] = fn(gctx, item)
			return nil
		})
	}
	// Workers never return errors, so Wait is purely the chunk barrier.
	_ = g.Wait()
	return results
}

// RunChunked executes items in consecutive chunks of width, one barrier per
// chunk, with exactly one result per processed item. delay, when positive,
// is inserted between chunks to respect downstream rate limits. stop is
// consulted between chunks only, so a requested stop lets the in-flight
// chunk finish instead of abandoning it mid-flight.
func RunChunked[T, R any](
	ctx context.Context,
	items []T,
	width int,
	delay time.Duration,
	stop func() bool,
	fn func(ctx context.Context, item T) R,
) []R {
	results := make([]R, 0, len(items))
	for chunkIdx, chunk := range Chunks(items, width) {
		if ctx.Err() != nil {
			break
		}
		if stop != nil && stop() {
			break
		}
		if delay > 0 && chunkIdx > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		results = append(results, RunChunk(ctx, chunk, fn)...)
	}
	return results
}
