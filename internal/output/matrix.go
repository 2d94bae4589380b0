package output

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/inodb/vibe-mpc/internal/annotate"
)

// MatrixWriter writes annotations followed by one 0/1 indicator column per
// pathway.
type MatrixWriter struct {
	w        *csv.Writer
	pathways []string
}

// NewMatrixWriter creates a pathway indicator matrix writer.
func NewMatrixWriter(w io.Writer, pathways []string) *MatrixWriter {
	return &MatrixWriter{
		w:        csv.NewWriter(w),
		pathways: pathways,
	}
}

// WriteHeader writes the header line.
func (mw *MatrixWriter) WriteHeader() error {
	header := make([]string, 0, len(Columns)+len(mw.pathways))
	header = append(header, Columns...)
	header = append(header, mw.pathways...)
	return mw.w.Write(header)
}

// Write writes a single annotation.
func (mw *MatrixWriter) Write(a *annotate.Annotation) error {
	member := make(map[string]bool, len(a.Pathways))
	for _, p := range a.Pathways {
		member[p] = true
	}

	values := NewRow(a).Values()
	for _, p := range mw.pathways {
		if member[p] {
			values = append(values, "1")
		} else {
			values = append(values, "0")
		}
	}
	if err := mw.w.Write(values); err != nil {
		return fmt.Errorf("write matrix row: %w", err)
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (mw *MatrixWriter) Flush() error {
	mw.w.Flush()
	return mw.w.Error()
}

// WriteMatrix writes the full pathway indicator matrix for anns.
func WriteMatrix(w io.Writer, anns []*annotate.Annotation, pathways []string) error {
	mw := NewMatrixWriter(w, pathways)
	if err := mw.WriteHeader(); err != nil {
		return err
	}
	for _, a := range anns {
		if err := mw.Write(a); err != nil {
			return err
		}
	}
	return mw.Flush()
}
