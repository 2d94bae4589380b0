package mutation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-mpc/internal/table"
)

// Patient table layout as exported by the upstream mutation calling step.
const testMutations = `child_id	Chr	Position	Ref	Alt	consequence	HGNC_symbol
Patient_1	12	25245350	C	A	missense_variant	KRAS
Patient_1	chr17	7674220	C	T	stop_gained	TP53
Patient_2	1	69094	G	A	missense_variant	NA
Patient_3	10	116734973	G	A	synonymous_variant	NAA10
NA	11	4148284	T	C	missense_variant	RRM1

Patient_4	X	100	A	-	frameshift_variant	DMD
`

func writeMutations(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mutations.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParser_ParseRecords(t *testing.T) {
	parser, err := NewParser(writeMutations(t, testMutations))
	require.NoError(t, err)
	defer parser.Close()

	cols := parser.Columns()
	assert.Equal(t, 0, cols.Patient)
	assert.Equal(t, 1, cols.Chromosome)
	assert.Equal(t, 2, cols.Position)
	assert.Equal(t, 5, cols.Consequence)
	assert.Equal(t, 6, cols.Gene)
	assert.Equal(t, -1, cols.ProteinChange)
	assert.True(t, cols.HasCoordinates())

	// KRAS G12C
	rec, err := parser.Next()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Patient_1", rec.PatientID)
	assert.Equal(t, "12", rec.Chrom)
	assert.Equal(t, int64(25245350), rec.Pos)
	assert.Equal(t, "C", rec.Ref)
	assert.Equal(t, "A", rec.Alt)
	assert.Equal(t, "KRAS", rec.Gene)
	assert.Equal(t, "missense_variant", rec.Consequence)
	assert.Equal(t, 2, rec.Line)

	rec, err = parser.Next()
	require.NoError(t, err)
	assert.Equal(t, "TP53", rec.Gene)
	assert.Equal(t, "17|7674220|C|T", rec.Key())

	// NAA10 is a gene, not a null token
	rec, err = parser.Next()
	require.NoError(t, err)
	assert.Equal(t, "NAA10", rec.Gene)

	rec, err = parser.Next()
	require.NoError(t, err)
	assert.Equal(t, "DMD", rec.Gene)
	assert.Equal(t, "-", rec.Alt)

	rec, err = parser.Next()
	require.NoError(t, err)
	assert.Nil(t, rec)

	// NA gene and NA patient rows
	assert.Equal(t, 2, parser.Dropped())
}

func TestParser_MAFColumnsWithProteinChange(t *testing.T) {
	content := `#version 2.4
Hugo_Symbol	Chromosome	Start_Position	Reference_Allele	Tumor_Seq_Allele2	Tumor_Sample_Barcode	Consequence	HGVSp_Short
KRAS	12	25398285	G	T	TCGA-01	missense_variant	p.G12C
BRAF	7	NA	NA	NA	TCGA-02	missense_variant	p.V600E
`
	records, dropped, err := ReadAll(writeMutations(t, content))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Zero(t, dropped)

	assert.Equal(t, "TCGA-01", records[0].PatientID)
	assert.Equal(t, "p.G12C", records[0].ProteinChange)

	// No coordinates: key falls back to protein notation
	braf := records[1]
	_, ok := braf.CoordKey()
	assert.False(t, ok)
	pk, ok := braf.ProteinKey()
	require.True(t, ok)
	assert.Equal(t, ProteinKey{Gene: "BRAF", Change: "V600E"}, pk)
	assert.Equal(t, "BRAF|V600E", braf.Key())
}

func TestParser_HashPrefixedHeader(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "hash header",
			content: "#child_id\tChr\tPosition\tRef\tAlt\tHGNC_symbol\tconsequence\nP1\t1\t100\tA\tC\tKRAS\tmissense_variant\n",
		},
		{
			name: "vcf style header after meta lines",
			content: "##fileformat=VCFv4.2\n##source=caller\n" +
				"#CHROM\tPOS\tREF\tALT\tpatient_id\tSYMBOL\tConsequence\n" +
				"1\t100\tA\tC\tP1\tKRAS\tmissense_variant\n" +
				"# trailing note\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser, err := NewParserFromReader(strings.NewReader(tt.content))
			require.NoError(t, err)
			defer parser.Close()

			rec, err := parser.Next()
			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, "P1", rec.PatientID)
			assert.Equal(t, "1", rec.Chrom)
			assert.Equal(t, int64(100), rec.Pos)
			assert.Equal(t, "KRAS", rec.Gene)

			rec, err = parser.Next()
			require.NoError(t, err)
			assert.Nil(t, rec)
		})
	}
}

func TestParser_CommaDelimited(t *testing.T) {
	content := "child_id,Chr,Position,Ref,Alt,consequence,HGNC_symbol\n" +
		"P1,1,100,A,G,\"missense_variant,splice_region_variant\",GENE1\n"
	records, _, err := ReadAll(writeMutations(t, content))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "missense_variant,splice_region_variant", records[0].Consequence)
	assert.True(t, records[0].HasConsequence(ConsequenceMissenseVariant))
}

func TestParser_FloatPosition(t *testing.T) {
	content := "child_id\tChr\tPosition\tRef\tAlt\tconsequence\tHGNC_symbol\nP1\t1\t100.0\tA\tG\tmissense_variant\tG1\n"
	records, _, err := ReadAll(writeMutations(t, content))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(100), records[0].Pos)
}

func TestParser_InvalidPosition(t *testing.T) {
	content := "child_id\tChr\tPosition\tRef\tAlt\tconsequence\tHGNC_symbol\nP1\t1\tabc\tA\tG\tmissense_variant\tG1\n"
	_, _, err := ReadAll(writeMutations(t, content))
	require.Error(t, err)

	var pe *table.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Line)
	assert.Contains(t, pe.Message, "invalid position")
}

func TestParser_MissingColumns(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"no patient", "Chr\tPosition\tRef\tAlt\tconsequence\tHGNC_symbol", "patient"},
		{"no gene", "child_id\tChr\tPosition\tRef\tAlt\tconsequence", "gene"},
		{"no consequence", "child_id\tChr\tPosition\tRef\tAlt\tHGNC_symbol", "consequence"},
		{"no key columns", "child_id\tChr\tconsequence\tHGNC_symbol", "protein change"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(writeMutations(t, tt.header+"\n"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestParser_EmptyFile(t *testing.T) {
	_, err := NewParser(writeMutations(t, ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header line found")
}

func TestParser_FromReader(t *testing.T) {
	parser, err := NewParserFromReader(strings.NewReader(testMutations))
	require.NoError(t, err)
	defer parser.Close()

	rec, err := parser.Next()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "KRAS", rec.Gene)
}
