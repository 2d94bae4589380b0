package mutation

import (
	"strconv"
	"strings"
)

// CoordKey identifies a variant by normalized genomic coordinates.
type CoordKey struct {
	Chrom string
	Pos   int64
	Ref   string
	Alt   string
}

// NewCoordKey builds a normalized CoordKey.
func NewCoordKey(chrom string, pos int64, ref, alt string) CoordKey {
	return CoordKey{
		Chrom: NormalizeChrom(chrom),
		Pos:   pos,
		Ref:   NormalizeAllele(ref),
		Alt:   NormalizeAllele(alt),
	}
}

// String renders the key as chrom|pos|ref|alt.
func (k CoordKey) String() string {
	var sb strings.Builder
	sb.Grow(len(k.Chrom) + len(k.Ref) + len(k.Alt) + 14)
	sb.WriteString(k.Chrom)
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatInt(k.Pos, 10))
	sb.WriteByte('|')
	sb.WriteString(k.Ref)
	sb.WriteByte('|')
	sb.WriteString(k.Alt)
	return sb.String()
}

// ProteinKey identifies a variant by gene and normalized amino acid change.
type ProteinKey struct {
	Gene   string
	Change string
}

// NewProteinKey builds a normalized ProteinKey. ok is false when either part
// is empty after normalization.
func NewProteinKey(gene, change string) (ProteinKey, bool) {
	k := ProteinKey{
		Gene:   NormalizeGene(gene),
		Change: NormalizeProteinChange(change),
	}
	return k, k.Gene != "" && k.Change != ""
}

// String renders the key as gene|change.
func (k ProteinKey) String() string {
	return k.Gene + "|" + k.Change
}

// NormalizeChrom returns the chromosome name without "chr" prefix, upper-cased,
// with the mitochondrial chromosome spelled "MT".
func NormalizeChrom(chrom string) string {
	c := strings.TrimSpace(chrom)
	if len(c) > 3 && strings.EqualFold(c[:3], "chr") {
		c = c[3:]
	}
	c = strings.ToUpper(c)
	if c == "M" {
		return "MT"
	}
	return c
}

// NormalizeAllele upper-cases an allele.
func NormalizeAllele(a string) string {
	return strings.ToUpper(strings.TrimSpace(a))
}

// NormalizeGene upper-cases a gene symbol.
func NormalizeGene(g string) string {
	return strings.ToUpper(strings.TrimSpace(g))
}
