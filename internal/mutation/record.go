package mutation

import "strings"

// Consequence types (Sequence Ontology terms) the annotator distinguishes.
const (
	ConsequenceMissenseVariant   = "missense_variant"
	ConsequenceFrameshiftVariant = "frameshift_variant"
	ConsequenceSpliceAcceptor    = "splice_acceptor_variant"
	ConsequenceSpliceDonor       = "splice_donor_variant"
	ConsequenceStopGained        = "stop_gained"
)

// Record is a single patient mutation.
type Record struct {
	PatientID     string // Patient / child identifier
	Chrom         string // Chromosome as written in the input
	Pos           int64  // 1-based position, 0 if the row has no coordinates
	Ref           string // Reference allele
	Alt           string // Alternate allele
	Gene          string // HGNC gene symbol
	Consequence   string // SO consequence term(s), possibly compound
	ProteinChange string // Protein change as written, e.g. "p.G12C"
	Line          int    // Input line number
}

// CoordKey returns the coordinate join key. ok is false when the record
// lacks any of chromosome, position, reference or alternate allele.
func (r *Record) CoordKey() (CoordKey, bool) {
	if r.Chrom == "" || r.Pos <= 0 || r.Ref == "" || r.Alt == "" {
		return CoordKey{}, false
	}
	return NewCoordKey(r.Chrom, r.Pos, r.Ref, r.Alt), true
}

// ProteinKey returns the gene / protein change join key.
func (r *Record) ProteinKey() (ProteinKey, bool) {
	return NewProteinKey(r.Gene, r.ProteinChange)
}

// Key returns the identity string of the mutation: the coordinate key when
// available, otherwise the protein key, otherwise "".
func (r *Record) Key() string {
	if k, ok := r.CoordKey(); ok {
		return k.String()
	}
	if k, ok := r.ProteinKey(); ok {
		return k.String()
	}
	return ""
}

// HasConsequence reports whether term is one of the record's consequence terms.
func (r *Record) HasConsequence(term string) bool {
	return HasTerm(r.Consequence, term)
}

// ConsequenceTerms splits a compound consequence ("a,b" or VEP's "a&b") into terms.
func ConsequenceTerms(consequence string) []string {
	f := func(c rune) bool { return c == ',' || c == '&' }
	parts := strings.FieldsFunc(consequence, f)
	terms := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			terms = append(terms, p)
		}
	}
	return terms
}

// HasTerm reports whether term appears in a possibly compound consequence.
func HasTerm(consequence, term string) bool {
	for rest := consequence; rest != ""; {
		t := rest
		if i := strings.IndexAny(rest, ",&"); i >= 0 {
			t = rest[:i]
			rest = rest[i+1:]
		} else {
			rest = ""
		}
		if strings.TrimSpace(t) == term {
			return true
		}
	}
	return false
}
