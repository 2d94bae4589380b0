package annotate

import (
	"context"

	"github.com/inodb/vibe-mpc/internal/mpc"
)

// Lookup resolves probes against the MPC reference.
type Lookup interface {
	BatchLookup(ctx context.Context, probes []mpc.Probe) (map[int]mpc.Hit, error)
}

// PathwayLookup maps a gene symbol to the pathways containing it.
type PathwayLookup interface {
	Lookup(gene string) []string
}
