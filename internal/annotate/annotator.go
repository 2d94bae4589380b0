package annotate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/vibe-mpc/internal/mpc"
	"github.com/inodb/vibe-mpc/internal/mutation"
)

// DefaultBatchSize is the number of records looked up per reference query.
const DefaultBatchSize = 50_000

// Annotator joins mutation records to the MPC reference.
type Annotator struct {
	lookup    Lookup
	pathways  PathwayLookup
	batchSize int
	logger    *zap.Logger
}

// NewAnnotator creates a new annotator backed by the given lookup.
func NewAnnotator(l Lookup) *Annotator {
	return &Annotator{
		lookup:    l,
		batchSize: DefaultBatchSize,
		logger:    zap.NewNop(),
	}
}

// SetPathways enables pathway enrichment. Records whose gene is in none of
// the pathways are dropped by Annotate.
func (a *Annotator) SetPathways(p PathwayLookup) {
	a.pathways = p
}

// SetBatchSize sets the number of records per reference query.
func (a *Annotator) SetBatchSize(n int) {
	if n > 0 {
		a.batchSize = n
	}
}

// SetLogger sets the logger for progress messages.
func (a *Annotator) SetLogger(l *zap.Logger) {
	a.logger = l
}

// Annotate left-joins records to the reference and returns one annotation
// per record, in input order. With pathways set, records outside every
// pathway are skipped.
func (a *Annotator) Annotate(ctx context.Context, records []*mutation.Record) ([]*Annotation, error) {
	start := time.Now()
	anns := make([]*Annotation, 0, len(records))
	for _, r := range records {
		ann := &Annotation{
			Record: r,
			Key:    r.Key(),
			Match:  mpc.MatchNone,
		}
		if a.pathways != nil {
			ann.Pathways = a.pathways.Lookup(r.Gene)
			if len(ann.Pathways) == 0 {
				continue
			}
		}
		anns = append(anns, ann)
	}
	if dropped := len(records) - len(anns); dropped > 0 {
		a.logger.Info("dropped mutations outside selected pathways", zap.Int("count", dropped))
	}

	for lo := 0; lo < len(anns); lo += a.batchSize {
		hi := min(lo+a.batchSize, len(anns))
		if err := a.annotateBatch(ctx, anns[lo:hi]); err != nil {
			return nil, err
		}
	}

	for _, ann := range anns {
		ann.Prediction, ann.PPH2Value = ParsePolyPhen(ann.PolyPhen)
		ann.AdjustedConsequence = AdjustConsequence(ann.Record.Consequence, ann.Prediction, ann.MPC)
	}

	m := CountMatches(anns)
	a.logger.Info("annotated mutations",
		zap.Int("records", len(anns)),
		zap.Int("coordinate", m.Coordinate),
		zap.Int("protein", m.Protein),
		zap.Int("unmatched", m.None),
		zap.Duration("elapsed", time.Since(start)))
	return anns, nil
}

func (a *Annotator) annotateBatch(ctx context.Context, anns []*Annotation) error {
	probes := make([]mpc.Probe, 0, len(anns))
	for i, ann := range anns {
		p := mpc.Probe{ID: i}
		p.Coord, p.HasCoord = ann.Record.CoordKey()
		p.Protein, p.HasProtein = ann.Record.ProteinKey()
		if p.HasCoord || p.HasProtein {
			probes = append(probes, p)
		}
	}

	hits, err := a.lookup.BatchLookup(ctx, probes)
	if err != nil {
		return fmt.Errorf("look up MPC scores: %w", err)
	}
	for id, h := range hits {
		ann := anns[id]
		ann.MPC = h.MPC
		ann.PolyPhen = h.PolyPhen
		ann.Match = h.Match
	}
	return nil
}

// MatchStats counts annotations by how they were linked to the reference.
type MatchStats struct {
	Coordinate int
	Protein    int
	None       int
}

// CountMatches tallies the match kinds of anns.
func CountMatches(anns []*Annotation) MatchStats {
	var m MatchStats
	for _, ann := range anns {
		switch ann.Match {
		case mpc.MatchCoordinate:
			m.Coordinate++
		case mpc.MatchProtein:
			m.Protein++
		default:
			m.None++
		}
	}
	return m
}

// Finalize removes repeated (patient, mutation) annotations, keeping the
// first, and numbers the remaining annotations from 1.
func Finalize(anns []*Annotation) []*Annotation {
	type patientKey struct{ patient, key string }

	seen := make(map[patientKey]bool, len(anns))
	out := make([]*Annotation, 0, len(anns))
	for _, ann := range anns {
		if ann.Key != "" {
			k := patientKey{ann.Record.PatientID, ann.Key}
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		ann.ID = len(out) + 1
		out = append(out, ann)
	}
	return out
}
