// Package filter restricts mutation records and annotations by patient, gene,
// consequence, PolyPhen-2 prediction, MPC score and adjusted consequence.
package filter

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gopkg.in/guregu/null.v3"

	"github.com/inodb/vibe-mpc/internal/annotate"
	"github.com/inodb/vibe-mpc/internal/mutation"
)

// Stage reports how many rows one filter kept.
type Stage struct {
	Name   string
	Before int
	After  int
}

// Dropped returns the number of rows removed by the stage.
func (s Stage) Dropped() int {
	return s.Before - s.After
}

// Criteria holds the active filters. Empty lists and an invalid
// MPCGreaterThan disable the corresponding filter.
type Criteria struct {
	Patients             []string
	Genes                []string
	Consequences         []string
	Pathways             []string
	PolyPhen             []string
	AdjustedConsequences []string
	MPCGreaterThan       null.Float
	KeepUnscored         bool
}

// ParseList parses a filter argument: a path to a list file (first
// tab-separated column of every non-blank line) or a comma-separated list.
func ParseList(arg string) ([]string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, nil
	}
	if info, err := os.Stat(arg); err == nil && info.Mode().IsRegular() {
		return readListFile(arg)
	}

	var values []string
	for _, v := range strings.Split(arg, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values, nil
}

func readListFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open list file: %w", err)
	}
	defer f.Close()

	var values []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if i := strings.IndexByte(line, '\t'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line != "" {
			values = append(values, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading list file %s: %w", path, err)
	}
	return values, nil
}

// set is a lookup set over normalized values.
type set map[string]struct{}

func newSet(values []string, norm func(string) string) set {
	if len(values) == 0 {
		return nil
	}
	s := make(set, len(values))
	for _, v := range values {
		s[norm(v)] = struct{}{}
	}
	return s
}

func (s set) has(v string) bool {
	_, ok := s[v]
	return ok
}

func identity(s string) string { return strings.TrimSpace(s) }

// NormalizePrediction folds case and treats spaces as underscores, so
// "Probably damaging" equals "probably_damaging".
func NormalizePrediction(p string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(p)), " ", "_")
}

// FilterRecords applies the patient, gene and consequence filters, in that
// order. A stage is reported for every active filter.
func (c *Criteria) FilterRecords(records []*mutation.Record) ([]*mutation.Record, []Stage) {
	var stages []Stage

	if patients := newSet(c.Patients, identity); patients != nil {
		var stage Stage
		records, stage = keepRecords("patient", records, func(r *mutation.Record) bool {
			return patients.has(r.PatientID)
		})
		stages = append(stages, stage)
	}

	if genes := newSet(c.Genes, mutation.NormalizeGene); genes != nil {
		var stage Stage
		records, stage = keepRecords("gene", records, func(r *mutation.Record) bool {
			return genes.has(mutation.NormalizeGene(r.Gene))
		})
		stages = append(stages, stage)
	}

	if csqs := newSet(c.Consequences, identity); csqs != nil {
		var stage Stage
		records, stage = keepRecords("mutation", records, func(r *mutation.Record) bool {
			return matchConsequence(csqs, r.Consequence)
		})
		stages = append(stages, stage)
	}

	return records, stages
}

// matchConsequence matches the whole consequence string or any of its terms.
func matchConsequence(csqs set, consequence string) bool {
	if csqs.has(strings.TrimSpace(consequence)) {
		return true
	}
	for _, term := range mutation.ConsequenceTerms(consequence) {
		if csqs.has(term) {
			return true
		}
	}
	return false
}

// FilterAnnotations drops unscored missense annotations (unless KeepUnscored)
// and applies the PolyPhen, MPC and adjusted consequence filters.
func (c *Criteria) FilterAnnotations(anns []*annotate.Annotation) ([]*annotate.Annotation, []Stage) {
	var stages []Stage

	if !c.KeepUnscored {
		var stage Stage
		anns, stage = keepAnnotations("unscored_missense", anns, func(a *annotate.Annotation) bool {
			return !Unscored(a)
		})
		stages = append(stages, stage)
	}

	if preds := newSet(c.PolyPhen, NormalizePrediction); preds != nil {
		var stage Stage
		anns, stage = keepAnnotations("pph2", anns, func(a *annotate.Annotation) bool {
			return preds.has(NormalizePrediction(a.Prediction))
		})
		stages = append(stages, stage)
	}

	if c.MPCGreaterThan.Valid {
		threshold := c.MPCGreaterThan.Float64
		var stage Stage
		anns, stage = keepAnnotations("mpc", anns, func(a *annotate.Annotation) bool {
			return a.MPC.Valid && a.MPC.Float64 > threshold
		})
		stages = append(stages, stage)
	}

	if adj := newSet(c.AdjustedConsequences, identity); adj != nil {
		var stage Stage
		anns, stage = keepAnnotations("adj_consequence", anns, func(a *annotate.Annotation) bool {
			return adj.has(a.AdjustedConsequence)
		})
		stages = append(stages, stage)
	}

	return anns, stages
}

// Unscored reports whether a missense annotation lacks usable scores: no MPC,
// or an "unknown" PolyPhen-2 prediction with value 0.
func Unscored(a *annotate.Annotation) bool {
	if !a.Record.HasConsequence(mutation.ConsequenceMissenseVariant) {
		return false
	}
	if !a.MPC.Valid {
		return true
	}
	return NormalizePrediction(a.Prediction) == annotate.PredictionUnknown &&
		a.PPH2Value.Valid && a.PPH2Value.Float64 == 0
}

func keepRecords(name string, in []*mutation.Record, keep func(*mutation.Record) bool) ([]*mutation.Record, Stage) {
	out := make([]*mutation.Record, 0, len(in))
	for _, r := range in {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, Stage{Name: name, Before: len(in), After: len(out)}
}

func keepAnnotations(name string, in []*annotate.Annotation, keep func(*annotate.Annotation) bool) ([]*annotate.Annotation, Stage) {
	out := make([]*annotate.Annotation, 0, len(in))
	for _, a := range in {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out, Stage{Name: name, Before: len(in), After: len(out)}
}
