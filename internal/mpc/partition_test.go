package mpc

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	src := writeMPC(t, t.TempDir(), "fordist_constraint_official_mpc_values.txt", testMPC)
	out := filepath.Join(t.TempDir(), "chunks")

	p, err := NewPartitioner(out, 2)
	require.NoError(t, err)
	chunks, err := p.Partition(src)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, filepath.Join(out, "chunk_1.tsv"), chunks[0])
	assert.Equal(t, filepath.Join(out, "chunk_3.tsv"), chunks[2])

	data, err := os.ReadFile(chunks[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "chrom\tpos\tref\talt\tPolyPhen\tMPC\tgene_name\tHGVSp", lines[0])
	assert.Equal(t, "12\t25245350\tC\tA\tprobably_damaging(0.999)\t3.12\tKRAS\tENSP00000256078:p.Gly12Cys", lines[1])

	data, err = os.ReadFile(chunks[2])
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"), "last chunk holds header plus one row")
}

func TestPartition_RoundTripThroughStore(t *testing.T) {
	src := writeMPC(t, t.TempDir(), "mpc.txt", testMPC)
	out := t.TempDir()

	p, err := NewPartitioner(out, 3)
	require.NoError(t, err)
	_, err = p.Partition(src)
	require.NoError(t, err)

	whole, err := ReadSourceRows(src)
	require.NoError(t, err)

	sources, err := ListSources(out)
	require.NoError(t, err)
	var chunked []Row
	for _, s := range sources {
		rows, err := ReadSourceRows(s)
		require.NoError(t, err)
		chunked = append(chunked, rows...)
	}
	assert.Equal(t, whole, chunked)
}

func TestPartition_HeaderOnly(t *testing.T) {
	src := writeMPC(t, t.TempDir(), "mpc.txt", "chrom\tpos\tref\talt\tPolyPhen\tMPC\n")
	p, err := NewPartitioner(t.TempDir(), 10)
	require.NoError(t, err)

	chunks, err := p.Partition(src)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestNewPartitioner_InvalidChunkSize(t *testing.T) {
	_, err := NewPartitioner(t.TempDir(), 0)
	assert.Error(t, err)
}

func TestPartition_ReplacesEarlierChunks(t *testing.T) {
	srcDir := t.TempDir()
	out := t.TempDir()
	notes := writeMPC(t, out, "notes.txt.bak", "kept")

	p, err := NewPartitioner(out, 1)
	require.NoError(t, err)
	chunks, err := p.Partition(writeMPC(t, srcDir, "old.txt", testMPC))
	require.NoError(t, err)
	require.Len(t, chunks, 5)

	p, err = NewPartitioner(out, 1)
	require.NoError(t, err)
	chunks, err = p.Partition(writeMPC(t, srcDir, "new.txt",
		"chrom\tpos\tref\talt\tPolyPhen\tMPC\n1\t100\tA\tG\tbenign(0.1)\t0.5\n"))
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(out, "chunk_1.tsv")}, chunks)

	sources, err := ListSources(out)
	require.NoError(t, err)
	assert.Equal(t, chunks, sources)
	assert.FileExists(t, notes)

	store := openInMemory(t)
	stats, err := store.Load(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sources)
	assert.Equal(t, int64(1), stats.Rows)
}
