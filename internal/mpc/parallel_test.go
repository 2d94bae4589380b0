package mpc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func writeChunks(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, n)
	for i := range n {
		content := fmt.Sprintf("chrom\tpos\tref\talt\tPolyPhen\tMPC\n1\t%d\tA\tC\tbenign(0)\t%d.5\n", i+1, i)
		paths[i] = writeMPC(t, dir, fmt.Sprintf("chunk_%d.tsv", i+1), content)
	}
	return paths
}

func TestParallelRead_Ordered(t *testing.T) {
	defer goleak.VerifyNone(t)

	paths := writeChunks(t, 12)
	var seqs []int
	var positions []int64
	err := OrderedCollect(ParallelRead(context.Background(), paths, 4), func(r ChunkResult) error {
		require.NoError(t, r.Err)
		seqs = append(seqs, r.Seq)
		for _, row := range r.Rows {
			positions = append(positions, row.Pos)
		}
		return nil
	})
	require.NoError(t, err)

	require.Len(t, seqs, 12)
	for i := range seqs {
		assert.Equal(t, i, seqs[i])
		assert.Equal(t, int64(i+1), positions[i])
	}
}

func TestParallelRead_DefaultWorkers(t *testing.T) {
	defer goleak.VerifyNone(t)

	paths := writeChunks(t, 3)
	count := 0
	err := OrderedCollect(ParallelRead(context.Background(), paths, 0), func(r ChunkResult) error {
		count += len(r.Rows)
		return r.Err
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestOrderedCollect_StopsOnError(t *testing.T) {
	defer goleak.VerifyNone(t)

	paths := writeChunks(t, 8)
	stop := errors.New("stop")
	calls := 0
	err := OrderedCollect(ParallelRead(context.Background(), paths, 2), func(r ChunkResult) error {
		calls++
		if r.Seq == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 3, calls)
}

func TestParallelRead_MissingFile(t *testing.T) {
	defer goleak.VerifyNone(t)

	paths := append(writeChunks(t, 2), "/nonexistent/chunk_3.tsv")
	err := OrderedCollect(ParallelRead(context.Background(), paths, 2), func(r ChunkResult) error {
		return r.Err
	})
	assert.Error(t, err)
}

func TestParallelRead_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	paths := writeChunks(t, 20)
	n := 0
	err := OrderedCollect(ParallelRead(ctx, paths, 2), func(r ChunkResult) error {
		n++
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 20)
}

func TestParallelRead_CancelSkipsRemainingChunks(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paths := writeChunks(t, 30)
	parsed, cancelled := 0, 0
	err := OrderedCollect(ParallelRead(ctx, paths, 1), func(r ChunkResult) error {
		switch {
		case errors.Is(r.Err, context.Canceled):
			cancelled++
		case r.Err == nil:
			parsed++
		default:
			return r.Err
		}
		if r.Seq == 0 {
			cancel()
		}
		return nil
	})
	require.NoError(t, err)

	// Only chunks handed out before the cancel are parsed: the first one and
	// at most 2*workers read ahead.
	assert.LessOrEqual(t, parsed, 3)
	assert.Less(t, parsed+cancelled, 30)
}
