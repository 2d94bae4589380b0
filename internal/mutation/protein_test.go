package mutation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeProteinChange(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "p.G12C", "G12C"},
		{"bare short", "G12C", "G12C"},
		{"three letter", "p.Gly12Cys", "G12C"},
		{"predicted", "p.(Gly12Cys)", "G12C"},
		{"protein id prefix", "ENSP00000256078.4:p.Gly12Cys", "G12C"},
		{"stop three letter", "p.Trp295Ter", "W295*"},
		{"stop short", "p.W295*", "W295*"},
		{"stop as X", "p.W295X", "W295*"},
		{"synonymous", "p.Leu12=", "L12="},
		{"url encoded synonymous", "ENSP1:p.Leu12%3D", "L12="},
		{"frameshift kept", "p.G12fs", "G12FS"},
		{"empty", "", ""},
		{"unknown three letter", "p.Foo12Bar", "FOO12BAR"},
		{"upper-case three letter", "p.GLY12CYS", "G12C"},
		{"lower-case three letter", "p.gly12cys", "G12C"},
		{"upper-case stop", "p.TRP295TER", "W295*"},
		{"lower-case short", "p.g12c", "G12C"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeProteinChange(tt.in))
		})
	}
}

func TestAminoAcidTables(t *testing.T) {
	for single, three := range AminoAcidSingleToThree {
		if single == 'X' {
			continue
		}
		got, ok := aminoAcidCode(three)
		assert.True(t, ok, three)
		assert.Equal(t, single, got, three)
	}
}
