// Package annotate joins mutation records to MPC and PolyPhen-2 scores and
// derives the adjusted consequence of every mutation.
package annotate

import (
	"strconv"
	"strings"

	"gopkg.in/guregu/null.v3"

	"github.com/inodb/vibe-mpc/internal/mpc"
	"github.com/inodb/vibe-mpc/internal/mutation"
	"github.com/inodb/vibe-mpc/internal/table"
)

// PolyPhen-2 predictions with special handling.
const (
	PredictionProbablyDamaging = "probably_damaging"
	PredictionUnknown          = "unknown"
	PredictionNA               = "NA"
)

// Adjusted consequence classes.
const (
	AdjustedPTV       = "PTV"
	AdjustedMissense3 = "Missense3"
	AdjustedMissense  = "Missense"
)

// Missense3MPC is the MPC score from which a missense mutation is Missense3.
const Missense3MPC = 2.0

// ptvTerms are the protein-truncating consequence terms.
var ptvTerms = []string{
	mutation.ConsequenceFrameshiftVariant,
	mutation.ConsequenceSpliceAcceptor,
	mutation.ConsequenceSpliceDonor,
	mutation.ConsequenceStopGained,
}

// Annotation is a mutation record with its scores.
type Annotation struct {
	ID                  int              // 1-based, assigned by Finalize
	Record              *mutation.Record // Source record
	Key                 string           // Mutation identity ("chrom|pos|ref|alt" or "gene|change")
	Pathways            []string         // Pathways containing the gene, nil without a pathway index
	MPC                 null.Float       // MPC score, invalid when unmatched or missing
	PolyPhen            string           // Raw PolyPhen-2 label, e.g. "probably_damaging(0.999)"
	Prediction          string           // PolyPhen-2 prediction, "NA" when missing
	PPH2Value           null.Float       // PolyPhen-2 probability
	AdjustedConsequence string           // PTV, Missense3, Missense or the consequence itself
	Match               mpc.Match        // How the record was linked to the reference
}

// ParsePolyPhen splits a PolyPhen-2 label such as "probably_damaging(0.999)"
// into prediction and value. A missing label yields "NA" and a null value.
func ParsePolyPhen(label string) (string, null.Float) {
	label = strings.TrimSpace(label)
	if table.IsNull(label) || strings.HasPrefix(label, "NA(") {
		return PredictionNA, null.Float{}
	}

	open := strings.IndexByte(label, '(')
	if open < 0 {
		return label, null.Float{}
	}
	pred := strings.TrimSpace(label[:open])
	inner := strings.TrimSuffix(label[open+1:], ")")
	v, err := strconv.ParseFloat(strings.TrimSpace(inner), 64)
	if err != nil {
		return pred, null.Float{}
	}
	return pred, null.FloatFrom(v)
}

// AdjustConsequence classifies a mutation: any protein-truncating term gives
// PTV; a missense term gives Missense3 when the prediction is probably
// damaging or MPC is at least 2, Missense otherwise. Any other consequence is
// returned unchanged.
func AdjustConsequence(consequence, prediction string, score null.Float) string {
	for _, term := range ptvTerms {
		if mutation.HasTerm(consequence, term) {
			return AdjustedPTV
		}
	}
	if mutation.HasTerm(consequence, mutation.ConsequenceMissenseVariant) {
		if isProbablyDamaging(prediction) || (score.Valid && score.Float64 >= Missense3MPC) {
			return AdjustedMissense3
		}
		return AdjustedMissense
	}
	return consequence
}

func isProbablyDamaging(prediction string) bool {
	p := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(prediction)), " ", "_")
	return p == PredictionProbablyDamaging
}
