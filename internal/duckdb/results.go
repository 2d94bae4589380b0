package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"
	"gopkg.in/guregu/null.v3"

	"github.com/inodb/vibe-mpc/internal/annotate"
)

// Result is a stored annotation row.
type Result struct {
	RunID               string
	ID                  int
	PatientID           string
	Key                 string
	Chrom               string
	Pos                 int64
	Ref                 string
	Alt                 string
	Gene                string
	Consequence         string
	ProteinChange       string
	Pathways            []string
	MPC                 null.Float
	Prediction          string
	PPH2Value           null.Float
	AdjustedConsequence string
	Match               string
}

// WriteAnnotations batch-inserts the annotations of a run using the Appender API.
func (s *Store) WriteAnnotations(runID string, anns []*annotate.Annotation) error {
	if len(anns) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "annotations")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, a := range anns {
		r := a.Record
		var pathways driver.Value
		if a.Pathways != nil {
			pathways = strings.Join(a.Pathways, ";")
		}
		if err := appender.AppendRow(
			runID, int32(a.ID), r.PatientID, a.Key,
			r.Chrom, r.Pos, r.Ref, r.Alt, r.Gene, r.Consequence, r.ProteinChange,
			pathways, int32(len(a.Pathways)),
			floatValue(a.MPC), a.Prediction, floatValue(a.PPH2Value),
			a.AdjustedConsequence, string(a.Match),
		); err != nil {
			return fmt.Errorf("append annotation: %w", err)
		}
	}

	return appender.Flush()
}

// ClearRun removes all rows of a run.
func (s *Store) ClearRun(runID string) error {
	_, err := s.db.Exec("DELETE FROM annotations WHERE run_id = ?", runID)
	return err
}

// Runs returns the stored run IDs.
func (s *Store) Runs() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT run_id FROM annotations ORDER BY run_id")
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, id)
	}
	return runs, rows.Err()
}

// CountByAdjustedConsequence counts the rows of a run per adjusted consequence.
func (s *Store) CountByAdjustedConsequence(runID string) (map[string]int, error) {
	rows, err := s.db.Query(`SELECT adj_consequence, COUNT(*)
		FROM annotations WHERE run_id = ?
		GROUP BY adj_consequence`, runID)
	if err != nil {
		return nil, fmt.Errorf("count by adjusted consequence: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var adj string
		var n int64
		if err := rows.Scan(&adj, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[adj] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

// LookupPatient returns every stored annotation of a patient, across runs,
// ordered by run and row ID.
func (s *Store) LookupPatient(patientID string) ([]Result, error) {
	rows, err := s.db.Query(`SELECT
		run_id, id, patient_id, mutation_key, chrom, pos, ref, alt, gene,
		consequence, protein_change, pathways, mpc, pph2_prediction,
		pph2_value, adj_consequence, match_kind
		FROM annotations
		WHERE patient_id = ?
		ORDER BY run_id, id`, patientID)
	if err != nil {
		return nil, fmt.Errorf("query patient: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

func scanResults(rows *sql.Rows) ([]Result, error) {
	var results []Result
	for rows.Next() {
		var r Result
		var id int32
		var pathways sql.NullString
		if err := rows.Scan(
			&r.RunID, &id, &r.PatientID, &r.Key, &r.Chrom, &r.Pos, &r.Ref, &r.Alt, &r.Gene,
			&r.Consequence, &r.ProteinChange, &pathways, &r.MPC, &r.Prediction,
			&r.PPH2Value, &r.AdjustedConsequence, &r.Match,
		); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		r.ID = int(id)
		if pathways.Valid {
			r.Pathways = []string{}
			if pathways.String != "" {
				r.Pathways = strings.Split(pathways.String, ";")
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate annotations: %w", err)
	}
	return results, nil
}

func floatValue(f null.Float) driver.Value {
	if !f.Valid {
		return nil
	}
	return f.Float64
}
