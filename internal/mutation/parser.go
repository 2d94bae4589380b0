// Package mutation provides patient mutation table parsing and join key
// normalization.
package mutation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-mpc/internal/table"
)

// Column aliases, in order of preference. The first set of names is the
// patient/pathway table layout, followed by MAF and VCF-style names.
var (
	AliasesPatient       = []string{"child_id", "Child_id", "patient_id", "Patient", "Tumor_Sample_Barcode"}
	AliasesChromosome    = []string{"Chr", "Chromosome", "chrom", "CHROM"}
	AliasesPosition      = []string{"Position", "Pos", "Start_Position", "pos", "POS"}
	AliasesReference     = []string{"Ref", "Reference_Allele", "ref", "REF"}
	AliasesAlternate     = []string{"Alt", "Tumor_Seq_Allele2", "alt", "ALT"}
	AliasesGene          = []string{"HGNC_symbol", "HGNC_Symbol", "Hugo_Symbol", "gene", "SYMBOL"}
	AliasesConsequence   = []string{"consequence", "Consequence"}
	AliasesProteinChange = []string{"HGVSp_Short", "HGVSp", "protein_change", "Protein_Change"}
)

// ColumnIndices holds the indices of the mutation table columns, -1 if absent.
type ColumnIndices struct {
	Patient       int
	Chromosome    int
	Position      int
	Reference     int
	Alternate     int
	Gene          int
	Consequence   int
	ProteinChange int
}

// HasCoordinates reports whether all coordinate columns are present.
func (c ColumnIndices) HasCoordinates() bool {
	return c.Chromosome >= 0 && c.Position >= 0 && c.Reference >= 0 && c.Alternate >= 0
}

// Parser reads mutation records from a delimited table.
type Parser struct {
	table      *table.File
	reader     *csv.Reader
	path       string
	lineNumber int
	header     table.Header
	columns    ColumnIndices
	dropped    int
}

// NewParser creates a new mutation parser for the given file.
// Supports tab or comma delimited files, plain or gzipped.
func NewParser(path string) (*Parser, error) {
	t, err := table.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mutations file: %w", err)
	}

	p := newParser(t)
	p.path = path
	if err := p.parseHeader(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin).
func NewParserFromReader(r io.Reader) (*Parser, error) {
	t, err := table.NewReader(r)
	if err != nil {
		return nil, err
	}

	p := newParser(t)
	if err := p.parseHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

func newParser(t *table.File) *Parser {
	return &Parser{table: t, reader: t.CSV()}
}

// read returns the next non-empty, non-comment row. Before the header,
// "##" lines and single-field "#" lines (such as "#version 2.4") are
// comments, so a header written as "#CHROM\t..." is still found. After the
// header every "#" line is a comment.
func (p *Parser) read() ([]string, error) {
	for {
		fields, err := p.reader.Read()
		if err != nil {
			return nil, err
		}
		p.lineNumber, _ = p.reader.FieldPos(0)
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			continue
		}
		if p.isComment(fields) {
			continue
		}
		return fields, nil
	}
}

func (p *Parser) isComment(fields []string) bool {
	first := strings.TrimPrefix(strings.TrimSpace(fields[0]), "\uFEFF")
	if !strings.HasPrefix(first, "#") {
		return false
	}
	if p.header != nil {
		return true
	}
	return strings.HasPrefix(first, "##") || len(fields) == 1
}

// parseHeader reads the header line and resolves column indices.
func (p *Parser) parseHeader() error {
	fields, err := p.read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return p.errorf("no header line found")
		}
		return fmt.Errorf("read header: %w", err)
	}

	p.header = table.NewHeader(fields)
	p.columns = ColumnIndices{
		Patient:       p.header.Index(AliasesPatient...),
		Chromosome:    p.header.Index(AliasesChromosome...),
		Position:      p.header.Index(AliasesPosition...),
		Reference:     p.header.Index(AliasesReference...),
		Alternate:     p.header.Index(AliasesAlternate...),
		Gene:          p.header.Index(AliasesGene...),
		Consequence:   p.header.Index(AliasesConsequence...),
		ProteinChange: p.header.Index(AliasesProteinChange...),
	}

	// Validate required columns
	if p.columns.Patient == -1 {
		return p.errorf("required patient column (child_id) not found in header")
	}
	if p.columns.Gene == -1 {
		return p.errorf("required gene column (HGNC_symbol) not found in header")
	}
	if p.columns.Consequence == -1 {
		return p.errorf("required column 'consequence' not found in header")
	}
	if !p.columns.HasCoordinates() && p.columns.ProteinChange == -1 {
		return p.errorf("header needs Chr, Position, Ref and Alt columns or a protein change column")
	}

	return nil
}

// Next reads the next mutation record. Rows with a missing gene or patient
// are skipped and counted (see Dropped).
// Returns nil, nil when there are no more records.
func (p *Parser) Next() (*Record, error) {
	for {
		fields, err := p.read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, fmt.Errorf("read mutation line: %w", err)
		}

		rec, err := p.parseFields(fields)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			p.dropped++
			continue
		}
		return rec, nil
	}
}

// parseFields parses a single data row. Returns nil, nil for dropped rows.
func (p *Parser) parseFields(fields []string) (*Record, error) {
	gene := table.Field(fields, p.columns.Gene)
	patient := table.Field(fields, p.columns.Patient)
	if table.IsNull(gene) || table.IsNull(patient) {
		return nil, nil
	}

	rec := &Record{
		PatientID:   patient,
		Gene:        gene,
		Consequence: table.Field(fields, p.columns.Consequence),
		Line:        p.lineNumber,
	}

	if pc := table.Field(fields, p.columns.ProteinChange); !table.IsNull(pc) {
		rec.ProteinChange = pc
	}

	if p.columns.HasCoordinates() {
		posStr := table.Field(fields, p.columns.Position)
		if !table.IsNull(posStr) {
			pos, err := strconv.ParseInt(posStr, 10, 64)
			if err != nil {
				// Some exports write integer positions as floats (e.g. "12345.0").
				f, ferr := strconv.ParseFloat(posStr, 64)
				if ferr != nil || f != float64(int64(f)) {
					return nil, p.errorf("invalid position: %s", posStr)
				}
				pos = int64(f)
			}
			rec.Chrom = table.Field(fields, p.columns.Chromosome)
			rec.Pos = pos
			rec.Ref = allele(table.Field(fields, p.columns.Reference))
			rec.Alt = allele(table.Field(fields, p.columns.Alternate))
		}
	}

	return rec, nil
}

// allele returns the allele, or "" for a missing value. MAF indel alleles
// ("-") are kept as written.
func allele(s string) string {
	if s == "" || strings.EqualFold(s, "NA") {
		return ""
	}
	return s
}

func (p *Parser) errorf(format string, args ...any) error {
	return &table.ParseError{
		File:    p.path,
		Line:    p.lineNumber,
		Message: fmt.Sprintf(format, args...),
	}
}

// Header returns the parsed header.
func (p *Parser) Header() table.Header {
	return p.header
}

// Columns returns the parsed column indices.
func (p *Parser) Columns() ColumnIndices {
	return p.columns
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Dropped returns the number of rows skipped for a missing gene or patient.
func (p *Parser) Dropped() int {
	return p.dropped
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	return p.table.Close()
}

// ReadAll reads every record from path. It returns the records and the
// number of dropped rows.
func ReadAll(path string) ([]*Record, int, error) {
	p, err := NewParser(path)
	if err != nil {
		return nil, 0, err
	}
	defer p.Close()

	var records []*Record
	for {
		rec, err := p.Next()
		if err != nil {
			return nil, 0, err
		}
		if rec == nil {
			break
		}
		records = append(records, rec)
	}
	return records, p.Dropped(), nil
}
