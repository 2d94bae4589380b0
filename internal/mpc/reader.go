package mpc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/guregu/null.v3"

	"github.com/inodb/vibe-mpc/internal/mutation"
	"github.com/inodb/vibe-mpc/internal/table"
)

// Reference table column names (matched case-insensitively).
var (
	colsChrom    = []string{"chrom", "chr", "Chromosome"}
	colsPos      = []string{"pos", "position"}
	colsRef      = []string{"ref"}
	colsAlt      = []string{"alt"}
	colsPolyPhen = []string{"PolyPhen"}
	colsMPC      = []string{"MPC"}
	colsGene     = []string{"gene_name", "gene", "SYMBOL"}
	colsProtein  = []string{"HGVSp", "protein_change", "HGVSp_Short"}
)

// Row is a normalized MPC reference row.
type Row struct {
	Chrom    string
	Pos      int64
	Ref      string
	Alt      string
	Gene     string     // normalized gene symbol, "" if not provided
	Protein  string     // normalized protein change, "" if not provided
	PolyPhen string     // raw PolyPhen label, e.g. "probably_damaging(0.999)"
	MPC      null.Float // MPC score, invalid when missing
}

// sourceColumns holds the column indices of a reference file, -1 if absent.
type sourceColumns struct {
	chrom, pos, ref, alt, polyphen, mpc, gene, protein int
}

func resolveColumns(h table.Header) (sourceColumns, error) {
	c := sourceColumns{
		chrom:    h.Index(colsChrom...),
		pos:      h.Index(colsPos...),
		ref:      h.Index(colsRef...),
		alt:      h.Index(colsAlt...),
		polyphen: h.Index(colsPolyPhen...),
		mpc:      h.Index(colsMPC...),
		gene:     h.Index(colsGene...),
		protein:  h.Index(colsProtein...),
	}
	var missing []string
	for _, req := range []struct {
		name string
		idx  int
	}{
		{"chrom", c.chrom}, {"pos", c.pos}, {"ref", c.ref}, {"alt", c.alt},
		{"PolyPhen", c.polyphen}, {"MPC", c.mpc},
	} {
		if req.idx < 0 {
			missing = append(missing, req.name)
		}
	}
	if len(missing) > 0 {
		return c, fmt.Errorf("required column(s) %s not found in header", strings.Join(missing, ", "))
	}
	return c, nil
}

// ReadSource streams every row of a reference file to fn.
func ReadSource(path string, fn func(Row) error) error {
	t, err := table.Open(path)
	if err != nil {
		return fmt.Errorf("open MPC file: %w", err)
	}
	defer t.Close()

	cr := t.CSV()
	fields, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &table.ParseError{File: path, Line: 0, Message: "no header line found"}
		}
		return fmt.Errorf("read MPC header: %w", err)
	}
	cols, err := resolveColumns(table.NewHeader(fields))
	if err != nil {
		return &table.ParseError{File: path, Line: 1, Message: err.Error()}
	}

	for {
		fields, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read MPC row in %s: %w", path, err)
		}
		line, _ := cr.FieldPos(0)
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			continue
		}

		row, err := parseRow(fields, cols)
		if err != nil {
			return &table.ParseError{File: path, Line: line, Message: err.Error()}
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

// ReadSourceRows reads a whole reference file into memory.
func ReadSourceRows(path string) ([]Row, error) {
	var rows []Row
	err := ReadSource(path, func(r Row) error {
		rows = append(rows, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func parseRow(fields []string, c sourceColumns) (Row, error) {
	posStr := table.Field(fields, c.pos)
	pos, err := strconv.ParseInt(posStr, 10, 64)
	if err != nil {
		return Row{}, fmt.Errorf("invalid position: %s", posStr)
	}

	key := mutation.NewCoordKey(
		table.Field(fields, c.chrom), pos,
		table.Field(fields, c.ref), table.Field(fields, c.alt),
	)
	row := Row{
		Chrom: key.Chrom,
		Pos:   key.Pos,
		Ref:   key.Ref,
		Alt:   key.Alt,
	}

	if gene := table.Field(fields, c.gene); !table.IsNull(gene) {
		row.Gene = mutation.NormalizeGene(gene)
	}
	if pc := table.Field(fields, c.protein); !table.IsNull(pc) {
		row.Protein = mutation.NormalizeProteinChange(pc)
	}
	if pp := table.Field(fields, c.polyphen); !table.IsNull(pp) {
		row.PolyPhen = pp
	}

	if s := table.Field(fields, c.mpc); !table.IsNull(s) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Row{}, fmt.Errorf("invalid MPC value: %s", s)
		}
		row.MPC = null.FloatFrom(v)
	}
	return row, nil
}

// sourceExts are the file extensions accepted as reference chunks.
var sourceExts = []string{".tsv", ".txt", ".csv"}

// ListSources returns the reference files behind path: the file itself, or
// every chunk file in a directory in natural order (chunk_2 before chunk_10).
func ListSources(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat MPC path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read MPC chunk directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		name := strings.TrimSuffix(strings.ToLower(e.Name()), ".gz")
		for _, ext := range sourceExts {
			if strings.HasSuffix(name, ext) {
				names = append(names, e.Name())
				break
			}
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no MPC chunk files (.tsv, .txt, .csv) found in %s", path)
	}

	sort.Slice(names, func(i, j int) bool { return naturalLess(names[i], names[j]) })
	sources := make([]string, len(names))
	for i, n := range names {
		sources[i] = filepath.Join(path, n)
	}
	return sources, nil
}

// naturalLess compares strings treating runs of digits as numbers.
func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		ra, rb := leadingRun(a), leadingRun(b)
		if isDigit(ra[0]) && isDigit(rb[0]) {
			na := strings.TrimLeft(ra, "0")
			nb := strings.TrimLeft(rb, "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
		} else if ra != rb {
			return ra < rb
		}
		a, b = a[len(ra):], b[len(rb):]
	}
	return len(a) < len(b)
}

// leadingRun returns the leading run of digits or non-digits of a non-empty s.
func leadingRun(s string) string {
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
