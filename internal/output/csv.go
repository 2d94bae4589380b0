// Package output writes annotated mutation tables and run logs.
package output

import (
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"gopkg.in/guregu/null.v3"

	"github.com/inodb/vibe-mpc/internal/annotate"
)

// NA is written for missing values.
const NA = "NA"

// Columns are the annotated table columns, in output order.
var Columns = []string{
	"id", "Child_id", "Key", "Chr", "Pos", "Ref", "Alt", "Consequence",
	"Protein_Change", "HGNC_Symbol", "Pathway", "Num_Affected_Pathways",
	"MPC", "pph2_Prediction", "pph2_Value", "Adj_Consequence",
}

// Row is one line of the annotated table.
type Row struct {
	ID                  string `csv:"id"`
	ChildID             string `csv:"Child_id"`
	Key                 string `csv:"Key"`
	Chr                 string `csv:"Chr"`
	Pos                 string `csv:"Pos"`
	Ref                 string `csv:"Ref"`
	Alt                 string `csv:"Alt"`
	Consequence         string `csv:"Consequence"`
	ProteinChange       string `csv:"Protein_Change"`
	HGNCSymbol          string `csv:"HGNC_Symbol"`
	Pathway             string `csv:"Pathway"`
	NumAffectedPathways string `csv:"Num_Affected_Pathways"`
	MPC                 string `csv:"MPC"`
	PPH2Prediction      string `csv:"pph2_Prediction"`
	PPH2Value           string `csv:"pph2_Value"`
	AdjConsequence      string `csv:"Adj_Consequence"`
}

// NewRow formats an annotation as a table row.
func NewRow(a *annotate.Annotation) *Row {
	r := a.Record
	row := &Row{
		ID:             strconv.Itoa(a.ID),
		ChildID:        orNA(r.PatientID),
		Key:            orNA(a.Key),
		Chr:            orNA(r.Chrom),
		Pos:            NA,
		Ref:            orNA(r.Ref),
		Alt:            orNA(r.Alt),
		Consequence:    orNA(r.Consequence),
		ProteinChange:  orNA(r.ProteinChange),
		HGNCSymbol:     orNA(r.Gene),
		Pathway:        NA,
		MPC:            formatFloat(a.MPC),
		PPH2Prediction: orNA(a.Prediction),
		PPH2Value:      formatFloat(a.PPH2Value),
		AdjConsequence: orNA(a.AdjustedConsequence),
	}
	if r.Pos > 0 {
		row.Pos = strconv.FormatInt(r.Pos, 10)
	}
	if a.Pathways != nil {
		row.NumAffectedPathways = strconv.Itoa(len(a.Pathways))
		if len(a.Pathways) > 0 {
			row.Pathway = strings.Join(a.Pathways, ";")
		}
	} else {
		row.NumAffectedPathways = NA
	}
	return row
}

// Values returns the row's fields in Columns order.
func (r *Row) Values() []string {
	return []string{
		r.ID, r.ChildID, r.Key, r.Chr, r.Pos, r.Ref, r.Alt, r.Consequence,
		r.ProteinChange, r.HGNCSymbol, r.Pathway, r.NumAffectedPathways,
		r.MPC, r.PPH2Prediction, r.PPH2Value, r.AdjConsequence,
	}
}

// WriteAnnotations writes anns as a comma-separated table with a header.
func WriteAnnotations(w io.Writer, anns []*annotate.Annotation) error {
	rows := make([]*Row, len(anns))
	for i, a := range anns {
		rows[i] = NewRow(a)
	}
	return gocsv.Marshal(&rows, w)
}

func orNA(s string) string {
	if s == "" {
		return NA
	}
	return s
}

func formatFloat(f null.Float) string {
	if !f.Valid {
		return NA
	}
	return strconv.FormatFloat(f.Float64, 'g', -1, 64)
}
