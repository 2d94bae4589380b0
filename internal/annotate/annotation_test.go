package annotate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/guregu/null.v3"
)

func TestParsePolyPhen(t *testing.T) {
	tests := []struct {
		label string
		pred  string
		value null.Float
	}{
		{"probably_damaging(0.999)", "probably_damaging", null.FloatFrom(0.999)},
		{"benign(0.01)", "benign", null.FloatFrom(0.01)},
		{"unknown(0)", "unknown", null.FloatFrom(0)},
		{" possibly_damaging(0.5) ", "possibly_damaging", null.FloatFrom(0.5)},
		{"benign", "benign", null.Float{}},
		{"benign(x)", "benign", null.Float{}},
		{"", PredictionNA, null.Float{}},
		{"NA", PredictionNA, null.Float{}},
		{"NA(NA)", PredictionNA, null.Float{}},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			pred, value := ParsePolyPhen(tt.label)
			assert.Equal(t, tt.pred, pred)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestAdjustConsequence(t *testing.T) {
	tests := []struct {
		name        string
		consequence string
		prediction  string
		score       null.Float
		want        string
	}{
		{"frameshift", "frameshift_variant", PredictionNA, null.Float{}, AdjustedPTV},
		{"stop gained", "stop_gained", "benign", null.FloatFrom(0.1), AdjustedPTV},
		{"splice donor compound", "splice_donor_variant&intron_variant", PredictionNA, null.Float{}, AdjustedPTV},
		{"splice acceptor", "splice_acceptor_variant", PredictionNA, null.Float{}, AdjustedPTV},
		{"PTV wins over missense", "missense_variant,stop_gained", "benign", null.FloatFrom(0.5), AdjustedPTV},
		{"missense damaging", "missense_variant", "probably_damaging", null.FloatFrom(0.5), AdjustedMissense3},
		{"missense damaging with space", "missense_variant", "probably damaging", null.Float{}, AdjustedMissense3},
		{"missense high MPC", "missense_variant", "benign", null.FloatFrom(2.0), AdjustedMissense3},
		{"missense low MPC", "missense_variant", "possibly_damaging", null.FloatFrom(1.99), AdjustedMissense},
		{"missense no score", "missense_variant", PredictionNA, null.Float{}, AdjustedMissense},
		{"missense compound", "missense_variant,splice_region_variant", "benign", null.FloatFrom(3), AdjustedMissense3},
		{"synonymous unchanged", "synonymous_variant", PredictionNA, null.Float{}, "synonymous_variant"},
		{"empty unchanged", "", PredictionNA, null.Float{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AdjustConsequence(tt.consequence, tt.prediction, tt.score))
		})
	}
}
