package mutation

import (
	"regexp"
	"strings"
)

// AminoAcidSingleToThree converts single letter amino acid to three letter code.
var AminoAcidSingleToThree = map[byte]string{
	'A': "Ala", 'C': "Cys", 'D': "Asp", 'E': "Glu",
	'F': "Phe", 'G': "Gly", 'H': "His", 'I': "Ile",
	'K': "Lys", 'L': "Leu", 'M': "Met", 'N': "Asn",
	'P': "Pro", 'Q': "Gln", 'R': "Arg", 'S': "Ser",
	'T': "Thr", 'V': "Val", 'W': "Trp", 'Y': "Tyr",
	'*': "Ter", 'X': "Xaa",
}

// aminoAcidThreeToSingle is keyed by upper-cased three letter code.
var aminoAcidThreeToSingle = func() map[string]byte {
	m := make(map[string]byte, len(AminoAcidSingleToThree)+2)
	for single, three := range AminoAcidSingleToThree {
		m[strings.ToUpper(three)] = single
	}
	m["SEC"] = 'U'
	m["PYL"] = 'O'
	return m
}()

// substitutionRe matches a simple substitution or synonymous change such as
// G12C, Gly12Cys, W295* or Leu12=, in any letter case.
var substitutionRe = regexp.MustCompile(`^(?i:([a-z]{3}|[a-z*])(\d+)([a-z]{3}|[a-z*]|=))$`)

// NormalizeProteinChange converts protein change notations to a one-letter
// form without the "p." prefix, e.g. "ENSP00000256078:p.Gly12Cys" -> "G12C".
// Notations that are not simple substitutions are returned upper-cased with
// prefixes removed.
func NormalizeProteinChange(change string) string {
	s := strings.TrimSpace(change)
	if s == "" {
		return ""
	}
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimPrefix(s, "p.")
	s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	s = strings.ReplaceAll(s, "%3D", "=")
	if s == "" {
		return ""
	}

	m := substitutionRe.FindStringSubmatch(s)
	if m == nil {
		return strings.ToUpper(s)
	}

	ref, ok := aminoAcidCode(m[1])
	if !ok {
		return strings.ToUpper(s)
	}
	if m[3] == "=" {
		return string(ref) + m[2] + "="
	}
	alt, ok := aminoAcidCode(m[3])
	if !ok {
		return strings.ToUpper(s)
	}
	return string(ref) + m[2] + string(alt)
}

// aminoAcidCode returns the single letter code for a one or three letter
// amino acid. X and Ter both denote a stop and map to '*'.
func aminoAcidCode(aa string) (byte, bool) {
	if len(aa) == 1 {
		aa = strings.ToUpper(aa)
		if aa[0] == 'X' {
			return '*', true
		}
		return aa[0], true
	}
	single, ok := aminoAcidThreeToSingle[strings.ToUpper(aa)]
	return single, ok
}
