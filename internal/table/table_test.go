package table

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestOpen_TSV(t *testing.T) {
	path := writeFile(t, "in.tsv", []byte("chrom\tpos\tref\talt\n1\t100\tA\tG\n2\t200\tC\tT\n"))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, '\t', f.Comma())
	assert.Equal(t, path, f.Path())

	rows, err := f.CSV().ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"1", "100", "A", "G"}, rows[1])
}

func TestOpen_GzipCSV(t *testing.T) {
	path := writeFile(t, "chunk_1.csv.gz", gzipBytes(t, "chrom,pos,ref,alt,PolyPhen,MPC\n1,100,A,G,benign(0.01),0.5\n"))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, ',', f.Comma())
	rows, err := f.CSV().ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "benign(0.01)", rows[1][4])
}

func TestOpen_QuotedCompoundConsequence(t *testing.T) {
	path := writeFile(t, "in.csv", []byte("child_id,consequence\nP1,\"missense_variant,splice_region_variant\"\n"))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.CSV().ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "missense_variant,splice_region_variant", rows[1][1])
}

func TestOpen_NotFound(t *testing.T) {
	_, err := Open("/nonexistent/table.tsv")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDetectDelimiter_SingleColumn(t *testing.T) {
	assert.Equal(t, '\t', DetectDelimiter([]byte("R-HSA-69620\nR-HSA-1640170\n")))
	assert.Equal(t, '\t', DetectDelimiter(nil))
}

func TestIsNull(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"NA", true},
		{"na", true},
		{" NaN ", true},
		{"null", true},
		{".", true},
		{"-", true},
		{"NAA10", false},
		{"KRAS", false},
		{"0", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNull(tt.in))
		})
	}
}

func TestHeader_Index(t *testing.T) {
	h := NewHeader([]string{"\uFEFF#CHROM", "Position", "hgnc_symbol", "HGNC_symbol"})

	assert.Equal(t, "CHROM", h[0])
	assert.Equal(t, 0, h.Index("Chr", "chrom"))
	assert.Equal(t, 1, h.Index("Position", "pos"))
	assert.Equal(t, 3, h.Index("HGNC_symbol"), "exact match preferred")
	assert.Equal(t, -1, h.Index("Ref", "Reference_Allele"))
}

func TestField(t *testing.T) {
	fields := []string{" a ", "b"}
	assert.Equal(t, "a", Field(fields, 0))
	assert.Equal(t, "", Field(fields, 2))
	assert.Equal(t, "", Field(fields, -1))
}

func TestParseError(t *testing.T) {
	err := &ParseError{File: "mutations.tsv", Line: 42, Message: "invalid position: abc"}
	assert.Equal(t, "parse error at mutations.tsv:42: invalid position: abc", err.Error())

	err = &ParseError{Line: 3, Message: "no header line found"}
	assert.Equal(t, "parse error at line 3: no header line found", err.Error())
}
