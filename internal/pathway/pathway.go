// Package pathway loads pathway gene annotation files and indexes genes by
// the pathways they belong to.
package pathway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/inodb/vibe-mpc/internal/mutation"
	"github.com/inodb/vibe-mpc/internal/table"
)

// FileSuffix is appended to a pathway ID to form its annotation file name.
const FileSuffix = "_with_gene_annotations.txt"

// colsGene are the accepted gene symbol column names.
var colsGene = []string{"HGNC_symbol", "Hugo_Symbol", "gene"}

// Index maps gene symbols to the pathways containing them.
type Index struct {
	genes    map[string][]string
	pathways []string
}

// Pathways returns the IDs of all loaded pathways in load order.
func (ix *Index) Pathways() []string {
	return ix.pathways
}

// Lookup returns the sorted pathway IDs containing gene, or nil.
func (ix *Index) Lookup(gene string) []string {
	return ix.genes[mutation.NormalizeGene(gene)]
}

// Contains returns true if gene belongs to at least one loaded pathway.
func (ix *Index) Contains(gene string) bool {
	_, ok := ix.genes[mutation.NormalizeGene(gene)]
	return ok
}

// Genes returns the number of distinct genes in the index.
func (ix *Index) Genes() int {
	return len(ix.genes)
}

// ID returns the pathway ID of an annotation file path.
func ID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), FileSuffix)
}

// Resolve returns the annotation files for the given pathway IDs in dir.
// With no IDs, every annotation file in dir is returned in sorted order.
func Resolve(dir string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		matches, err := filepath.Glob(filepath.Join(dir, "*"+FileSuffix))
		if err != nil {
			return nil, fmt.Errorf("list pathway files: %w", err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no pathway files (*%s) found in %s", FileSuffix, dir)
		}
		sort.Strings(matches)
		return matches, nil
	}

	paths := make([]string, 0, len(ids))
	for _, id := range ids {
		p := filepath.Join(dir, id+FileSuffix)
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("pathway %s: %w", id, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// Load reads the annotation files concurrently and builds an Index.
func Load(ctx context.Context, paths []string) (*Index, error) {
	genes := make([][]string, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			list, err := ReadGenes(p)
			if err != nil {
				return err
			}
			genes[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ix := &Index{genes: make(map[string][]string)}
	seen := make(map[string]bool, len(paths))
	for i, p := range paths {
		id := ID(p)
		if !seen[id] {
			seen[id] = true
			ix.pathways = append(ix.pathways, id)
		}
		for _, gene := range genes[i] {
			ix.genes[gene] = append(ix.genes[gene], id)
		}
	}
	for gene, ids := range ix.genes {
		ix.genes[gene] = dedupeSorted(ids)
	}
	return ix, nil
}

// ReadGenes reads the normalized gene symbols of one annotation file. The
// gene column is HGNC_symbol, or the second column when that is absent.
func ReadGenes(path string) ([]string, error) {
	t, err := table.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pathway file: %w", err)
	}
	defer t.Close()

	cr := t.CSV()
	fields, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &table.ParseError{File: path, Line: 0, Message: "empty pathway file"}
		}
		return nil, fmt.Errorf("read pathway header: %w", err)
	}

	header := table.NewHeader(fields)
	geneIdx := header.Index(colsGene...)
	if geneIdx < 0 {
		if len(header) < 2 {
			return nil, &table.ParseError{File: path, Line: 1, Message: "missing 'HGNC_symbol' column"}
		}
		geneIdx = 1
	}

	var genes []string
	for {
		fields, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading pathway file %s: %w", path, err)
		}
		gene := table.Field(fields, geneIdx)
		if table.IsNull(gene) {
			continue
		}
		genes = append(genes, mutation.NormalizeGene(gene))
	}
	return genes, nil
}

func dedupeSorted(ids []string) []string {
	sort.Strings(ids)
	out := ids[:0]
	for _, id := range ids {
		if len(out) == 0 || out[len(out)-1] != id {
			out = append(out, id)
		}
	}
	return out
}
