package batch

import (
	"context"
	"fmt"
)

// DefaultMaxSize is the per-commit mutation ceiling most document stores enforce.
const DefaultMaxSize = 500

// Result summarises a chunked run. Chunks are independent: a failed chunk
// does not roll back or block the others.
type Result struct {
	Committed    int
	FailedChunks int
	FirstErr     error
}

// Err wraps the first chunk error with the failure count, or returns nil.
func (r Result) Err() error {
	if r.FirstErr == nil {
		return nil
	}
	return fmt.Errorf("%d chunk(s) failed: %w", r.FailedChunks, r.FirstErr)
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultMaxSize
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// ForEachChunk commits items in chunks of at most size via commit. Every
// chunk is attempted even if an earlier one failed, unless ctx is done.
func ForEachChunk[T any](ctx context.Context, items []T, size int, commit func(ctx context.Context, chunk []T) error) Result {
	var res Result
	for _, chunk := range Chunk(items, size) {
		if err := ctx.Err(); err != nil {
			res.FailedChunks++
			if res.FirstErr == nil {
				res.FirstErr = err
			}
			continue
		}
		if err := commit(ctx, chunk); err != nil {
			res.FailedChunks++
			if res.FirstErr == nil {
				res.FirstErr = err
			}
			continue
		}
		res.Committed += len(chunk)
	}
	return res
}
