// Package table opens delimited text tables (TSV or CSV, optionally gzipped)
// and provides the value conventions shared by every input file.
package table

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/csimplestring/go-csv/detector"
)

// sampleSize is how many bytes are inspected for delimiter detection.
const sampleSize = 16 * 1024

// File is an open delimited table.
type File struct {
	path       string
	file       *os.File
	gzipReader *gzip.Reader
	reader     *bufio.Reader
	comma      rune
}

// Open opens a table file for reading. Gzipped files are detected by their
// magic bytes. Use "-" for stdin.
func Open(path string) (*File, error) {
	if path == "-" {
		return NewReader(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}

	f, err := newFile(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	f.path = path
	f.file = file
	return f, nil
}

// NewReader wraps an io.Reader (e.g., stdin) as a table.
func NewReader(r io.Reader) (*File, error) {
	return newFile(r)
}

func newFile(r io.Reader) (*File, error) {
	f := &File{}
	br := bufio.NewReaderSize(r, 64*1024)

	// Check for gzip magic number (0x1f, 0x8b)
	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		f.gzipReader, err = gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		br = bufio.NewReaderSize(f.gzipReader, 64*1024)
	}
	f.reader = br

	sample, err := br.Peek(sampleSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		f.Close()
		return nil, fmt.Errorf("read table sample: %w", err)
	}
	f.comma = DetectDelimiter(sample)
	return f, nil
}

// Path returns the path the table was opened from, or "" for readers.
func (f *File) Path() string {
	return f.path
}

// Comma returns the detected field delimiter.
func (f *File) Comma() rune {
	return f.comma
}

// CSV returns a csv.Reader over the table using the detected delimiter.
// Quotes are parsed leniently and rows may have varying field counts.
func (f *File) CSV() *csv.Reader {
	cr := csv.NewReader(f.reader)
	cr.Comma = f.comma
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return cr
}

// Close closes the table and the underlying file.
func (f *File) Close() error {
	if f.gzipReader != nil {
		f.gzipReader.Close()
	}
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}

// DetectDelimiter returns the field delimiter of a table sample. Only tab and
// comma are considered; tab wins when the detector is undecided and the
// first line contains one.
func DetectDelimiter(sample []byte) rune {
	if len(sample) == 0 {
		return '\t'
	}

	var tab, comma bool
	d := detector.New()
	for _, c := range d.DetectDelimiter(bytes.NewReader(sample), '"') {
		switch c {
		case "\t":
			tab = true
		case ",":
			comma = true
		}
	}
	if tab {
		return '\t'
	}
	if comma {
		return ','
	}

	first := sample
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		first = sample[:i]
	}
	if bytes.IndexByte(first, '\t') >= 0 || bytes.IndexByte(first, ',') < 0 {
		return '\t'
	}
	return ','
}

// nullTokens are values treated as missing in any input table.
var nullTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"NAN":  true,
	"NULL": true,
	"NONE": true,
	".":    true,
	"-":    true,
}

// IsNull reports whether a field value is a missing-value token. Only whole
// tokens count: "NAA10" is a gene, "NA" is not.
func IsNull(s string) bool {
	return nullTokens[strings.ToUpper(strings.TrimSpace(s))]
}

// ParseError represents an error during table parsing with file and line context.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error at %s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Message)
}

// Header holds the column names of a table.
type Header []string

// NewHeader builds a Header from a raw header row. Surrounding whitespace, a
// UTF-8 BOM and a leading '#' on the first column are removed.
func NewHeader(fields []string) Header {
	h := make(Header, len(fields))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if i == 0 {
			f = strings.TrimPrefix(f, "\uFEFF")
			f = strings.TrimPrefix(f, "#")
		}
		h[i] = f
	}
	return h
}

// Index returns the position of the first alias present in the header, or -1.
// Exact matches are preferred over case-insensitive ones.
func (h Header) Index(aliases ...string) int {
	for _, a := range aliases {
		for i, col := range h {
			if col == a {
				return i
			}
		}
	}
	for _, a := range aliases {
		for i, col := range h {
			if strings.EqualFold(col, a) {
				return i
			}
		}
	}
	return -1
}

// Field returns the trimmed value at idx, or "" when idx is out of range.
func Field(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}
