package mpc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/inodb/vibe-mpc/internal/table"
)

// DefaultChunkSize is the default number of data rows per chunk file.
const DefaultChunkSize = 1_000_000

// Partitioner splits a large MPC reference file into chunk files holding only
// the columns needed for annotation.
type Partitioner struct {
	outDir    string
	chunkSize int

	w      *bufio.Writer
	file   *os.File
	header string
	chunks []string
	inRow  int
}

// NewPartitioner creates a partitioner writing chunk_<n>.tsv files to outDir.
func NewPartitioner(outDir string, chunkSize int) (*Partitioner, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create chunk directory: %w", err)
	}
	return &Partitioner{outDir: outDir, chunkSize: chunkSize}, nil
}

// Partition reads src and writes its rows to chunk files, replacing any
// chunk files already in the output directory. It returns the paths of the
// chunk files written, in order.
func (p *Partitioner) Partition(src string) ([]string, error) {
	t, err := table.Open(src)
	if err != nil {
		return nil, fmt.Errorf("open MPC file: %w", err)
	}
	defer t.Close()

	cr := t.CSV()
	fields, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &table.ParseError{File: src, Line: 0, Message: "no header line found"}
		}
		return nil, fmt.Errorf("read MPC header: %w", err)
	}
	header := table.NewHeader(fields)
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, &table.ParseError{File: src, Line: 1, Message: err.Error()}
	}

	keep := []int{cols.chrom, cols.pos, cols.ref, cols.alt, cols.polyphen, cols.mpc}
	names := []string{"chrom", "pos", "ref", "alt", "PolyPhen", "MPC"}
	if cols.gene >= 0 {
		keep = append(keep, cols.gene)
		names = append(names, "gene_name")
	}
	if cols.protein >= 0 {
		keep = append(keep, cols.protein)
		names = append(names, "HGVSp")
	}
	p.header = strings.Join(names, "\t") + "\n"

	if err := p.removeStaleChunks(); err != nil {
		return nil, err
	}

	values := make([]string, len(keep))
	for {
		fields, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			p.closeChunk()
			return p.chunks, fmt.Errorf("read MPC row in %s: %w", src, err)
		}
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			continue
		}

		for i, idx := range keep {
			values[i] = table.Field(fields, idx)
		}
		if err := p.writeRow(values); err != nil {
			p.closeChunk()
			return p.chunks, err
		}
	}

	if err := p.closeChunk(); err != nil {
		return p.chunks, err
	}
	return p.chunks, nil
}

// removeStaleChunks deletes chunk files left in outDir by an earlier run, so
// the directory holds exactly the chunks of this partition.
func (p *Partitioner) removeStaleChunks() error {
	stale, err := filepath.Glob(filepath.Join(p.outDir, "chunk_*.tsv"))
	if err != nil {
		return fmt.Errorf("list existing chunks: %w", err)
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove stale chunk: %w", err)
		}
	}
	return nil
}

func (p *Partitioner) writeRow(values []string) error {
	if p.w == nil || p.inRow == p.chunkSize {
		if err := p.closeChunk(); err != nil {
			return err
		}
		if err := p.openChunk(); err != nil {
			return err
		}
	}
	if _, err := p.w.WriteString(strings.Join(values, "\t") + "\n"); err != nil {
		return fmt.Errorf("write chunk row: %w", err)
	}
	p.inRow++
	return nil
}

func (p *Partitioner) openChunk() error {
	path := filepath.Join(p.outDir, fmt.Sprintf("chunk_%d.tsv", len(p.chunks)+1))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chunk file: %w", err)
	}
	p.file = f
	p.w = bufio.NewWriter(f)
	p.inRow = 0
	p.chunks = append(p.chunks, path)
	if _, err := p.w.WriteString(p.header); err != nil {
		return fmt.Errorf("write chunk header: %w", err)
	}
	return nil
}

func (p *Partitioner) closeChunk() error {
	if p.file == nil {
		return nil
	}
	err := p.w.Flush()
	if cerr := p.file.Close(); err == nil {
		err = cerr
	}
	p.file, p.w = nil, nil
	if err != nil {
		return fmt.Errorf("close chunk file: %w", err)
	}
	return nil
}
