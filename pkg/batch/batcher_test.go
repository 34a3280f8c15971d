package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name  string
		items int
		size  int
		want  []int
	}{
		{"empty", 0, 500, []int{}},
		{"exact", 500, 500, []int{500}},
		{"remainder", 750, 500, []int{500, 250}},
		{"small chunks", 7, 3, []int{3, 3, 1}},
		{"default size", 501, 0, []int{500, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]int, tt.items)
			got := make([]int, 0)
			for _, c := range Chunk(items, tt.size) {
				got = append(got, len(c))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestForEachChunk_FailedChunkDoesNotBlockOthers(t *testing.T) {
	items := make([]int, 1200)
	for i := range items {
		items[i] = i
	}

	errBoom := errors.New("boom")
	calls := 0
	res := ForEachChunk(context.Background(), items, 500, func(_ context.Context, chunk []int) error {
		calls++
		if chunk[0] == 500 {
			return errBoom
		}
		return nil
	})

	assert.Equal(t, 3, calls)
	assert.Equal(t, 700, res.Committed)
	assert.Equal(t, 1, res.FailedChunks)
	assert.ErrorIs(t, res.Err(), errBoom)
}

func TestForEachChunk_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := ForEachChunk(ctx, []int{1, 2, 3}, 2, func(context.Context, []int) error {
		t.Fatal("commit must not run")
		return nil
	})
	assert.Equal(t, 0, res.Committed)
	assert.Equal(t, 2, res.FailedChunks)
	assert.ErrorIs(t, res.Err(), context.Canceled)
}
