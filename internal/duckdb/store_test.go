package duckdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/inodb/vibe-mpc/internal/annotate"
	"github.com/inodb/vibe-mpc/internal/mpc"
	"github.com/inodb/vibe-mpc/internal/mutation"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testAnnotations() []*annotate.Annotation {
	return []*annotate.Annotation{
		{
			ID: 1,
			Record: &mutation.Record{
				PatientID: "P1", Chrom: "12", Pos: 25245350, Ref: "C", Alt: "A",
				Gene: "KRAS", Consequence: "missense_variant", ProteinChange: "p.G12C",
			},
			Key:                 "12|25245350|C|A",
			Pathways:            []string{"hsa04010", "hsa05200"},
			MPC:                 null.FloatFrom(3.12),
			PolyPhen:            "probably_damaging(0.999)",
			Prediction:          "probably_damaging",
			PPH2Value:           null.FloatFrom(0.999),
			AdjustedConsequence: annotate.AdjustedMissense3,
			Match:               mpc.MatchCoordinate,
		},
		{
			ID:                  2,
			Record:              &mutation.Record{PatientID: "P1", Gene: "APC", Consequence: "stop_gained"},
			Prediction:          annotate.PredictionNA,
			AdjustedConsequence: annotate.AdjustedPTV,
			Match:               mpc.MatchNone,
		},
		{
			ID: 3,
			Record: &mutation.Record{
				PatientID: "P2", Chrom: "17", Pos: 7674220, Ref: "C", Alt: "T",
				Gene: "TP53", Consequence: "missense_variant",
			},
			Key:                 "17|7674220|C|T",
			Pathways:            []string{},
			MPC:                 null.FloatFrom(1.2),
			Prediction:          "benign",
			PPH2Value:           null.FloatFrom(0.1),
			AdjustedConsequence: annotate.AdjustedMissense,
			Match:               mpc.MatchCoordinate,
		},
	}
}

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())
	assert.Empty(t, s.Path())
}

func TestWriteAndLookupPatient(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteAnnotations("run-1", testAnnotations()))

	results, err := s.LookupPatient("P1")
	require.NoError(t, err)
	require.Len(t, results, 2)

	kras := results[0]
	assert.Equal(t, "run-1", kras.RunID)
	assert.Equal(t, 1, kras.ID)
	assert.Equal(t, "12|25245350|C|A", kras.Key)
	assert.Equal(t, int64(25245350), kras.Pos)
	assert.Equal(t, []string{"hsa04010", "hsa05200"}, kras.Pathways)
	assert.Equal(t, null.FloatFrom(3.12), kras.MPC)
	assert.Equal(t, null.FloatFrom(0.999), kras.PPH2Value)
	assert.Equal(t, "coordinate", kras.Match)

	apc := results[1]
	assert.Nil(t, apc.Pathways)
	assert.False(t, apc.MPC.Valid)
	assert.False(t, apc.PPH2Value.Valid)
	assert.Equal(t, "PTV", apc.AdjustedConsequence)

	results, err = s.LookupPatient("P2")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{}, results[0].Pathways)

	results, err = s.LookupPatient("P9")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCountByAdjustedConsequence(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteAnnotations("run-1", testAnnotations()))
	require.NoError(t, s.WriteAnnotations("run-2", testAnnotations()[:1]))

	counts, err := s.CountByAdjustedConsequence("run-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Missense3": 1, "PTV": 1, "Missense": 1}, counts)

	counts, err = s.CountByAdjustedConsequence("run-2")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Missense3": 1}, counts)
}

func TestRunsAndClearRun(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteAnnotations("run-b", testAnnotations()))
	require.NoError(t, s.WriteAnnotations("run-a", testAnnotations()))
	require.NoError(t, s.WriteAnnotations("run-c", nil))

	runs, err := s.Runs()
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a", "run-b"}, runs)

	require.NoError(t, s.ClearRun("run-a"))
	runs, err = s.Runs()
	require.NoError(t, err)
	assert.Equal(t, []string{"run-b"}, runs)
}

func TestPersistentStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "runs.duckdb")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.WriteAnnotations("run-1", testAnnotations()))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, path, s.Path())

	results, err := s.LookupPatient("P2")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "TP53", results[0].Gene)
}
