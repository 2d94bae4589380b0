// Package mpc provides MPC (Missense badness, PolyPhen-2, Constraint) and
// PolyPhen-2 score lookups backed by DuckDB. The reference is loaded from the
// official MPC values file or from a directory of chunk files cut from it.
package mpc

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
	"gopkg.in/guregu/null.v3"

	"github.com/inodb/vibe-mpc/internal/mutation"
)

// Match describes how a mutation was linked to the reference.
type Match string

// Match kinds.
const (
	MatchCoordinate Match = "coordinate"
	MatchProtein    Match = "protein"
	MatchNone       Match = "none"
)

// Store provides MPC score lookups backed by DuckDB.
type Store struct {
	db      *sql.DB
	path    string
	workers int
	logger  *zap.Logger
}

// Open opens or creates a DuckDB database for MPC data at the given path.
// Use an empty string for an in-memory database.
func Open(dbPath string) (*Store, error) {
	if dbPath != "" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: dbPath, logger: zap.NewNop()}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// SetLogger sets the logger for progress messages.
func (s *Store) SetLogger(l *zap.Logger) {
	s.logger = l
}

// SetWorkers sets the number of chunk files parsed concurrently (0 = NumCPU).
func (s *Store) SetWorkers(n int) {
	s.workers = n
}

func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS mpc (
		row_num BIGINT,
		chrom VARCHAR,
		pos BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		gene VARCHAR,
		protein VARCHAR,
		polyphen VARCHAR,
		mpc DOUBLE
	)`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS mpc_sources (
		path VARCHAR,
		size BIGINT,
		mod_time BIGINT
	)`); err != nil {
		return err
	}
	return nil
}

// Loaded returns true if the MPC table has data.
func (s *Store) Loaded() bool {
	n, err := s.Count()
	return err == nil && n > 0
}

// Count returns the number of rows in the MPC table.
func (s *Store) Count() (int64, error) {
	var count int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM mpc").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count mpc rows: %w", err)
	}
	return count, nil
}

// LoadStats summarizes a Load call.
type LoadStats struct {
	Sources int   // number of reference files
	Rows    int64 // rows in the store after loading
	Reused  bool  // true if a persistent store already held these sources
}

// Load loads the reference at path (a file or a directory of chunk files)
// into the store, replacing previous contents. A persistent store that was
// already loaded from identical files (same paths, sizes and modification
// times) is reused as-is.
func (s *Store) Load(ctx context.Context, path string) (LoadStats, error) {
	sources, err := ListSources(path)
	if err != nil {
		return LoadStats{}, err
	}

	fps := make([]FileFingerprint, len(sources))
	for i, src := range sources {
		if fps[i], err = StatFile(src); err != nil {
			return LoadStats{}, fmt.Errorf("stat MPC source: %w", err)
		}
	}

	stats := LoadStats{Sources: len(sources)}

	if s.path != "" && s.Loaded() {
		recorded, err := s.recordedSources()
		if err != nil {
			return stats, err
		}
		if sameSources(recorded, fps) {
			stats.Rows, err = s.Count()
			stats.Reused = true
			s.logger.Info("reusing loaded MPC reference",
				zap.String("db", s.path), zap.Int64("rows", stats.Rows))
			return stats, err
		}
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM mpc"); err != nil {
		return stats, fmt.Errorf("clear mpc table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM mpc_sources"); err != nil {
		return stats, fmt.Errorf("clear mpc sources: %w", err)
	}

	start := time.Now()
	if err := s.withAppender(ctx, "mpc", func(app *goduckdb.Appender) error {
		var rowNum int64
		appendRow := func(r Row) error {
			rowNum++
			return app.AppendRow(rowNum, r.Chrom, r.Pos, r.Ref, r.Alt,
				nullString(r.Gene), nullString(r.Protein), nullString(r.PolyPhen), nullFloat(r.MPC))
		}

		// A single file may be the full multi-gigabyte reference: stream it.
		if len(sources) == 1 {
			return ReadSource(sources[0], appendRow)
		}

		appendChunk := func(cr ChunkResult) error {
			if cr.Err != nil {
				return cr.Err
			}
			for _, r := range cr.Rows {
				if err := appendRow(r); err != nil {
					return fmt.Errorf("append MPC row: %w", err)
				}
			}
			s.logger.Debug("loaded MPC chunk", zap.String("path", cr.Path), zap.Int("rows", len(cr.Rows)))
			return nil
		}

		// Cancel the readers on the first failure so later chunks are not parsed.
		readCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := OrderedCollect(ParallelRead(readCtx, sources, s.workers), func(cr ChunkResult) error {
			err := appendChunk(cr)
			if err != nil {
				cancel()
			}
			return err
		}); err != nil {
			return err
		}
		// A cancelled producer stops handing out chunks without an error result.
		return ctx.Err()
	}); err != nil {
		return stats, err
	}

	if _, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_mpc_coord ON mpc (chrom, pos, ref, alt)`); err != nil {
		return stats, fmt.Errorf("index mpc table: %w", err)
	}
	if err := s.recordSources(ctx, fps); err != nil {
		return stats, err
	}

	stats.Rows, err = s.Count()
	s.logger.Info("loaded MPC reference",
		zap.String("path", path),
		zap.Int("sources", stats.Sources),
		zap.Int64("rows", stats.Rows),
		zap.Duration("elapsed", time.Since(start)))
	return stats, err
}

// withAppender runs fn with a DuckDB Appender on table and flushes it.
func (s *Store) withAppender(ctx context.Context, tableName string, fn func(*goduckdb.Appender) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", tableName)
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	if err := fn(appender); err != nil {
		return err
	}
	return appender.Flush()
}

func (s *Store) recordedSources() ([]FileFingerprint, error) {
	rows, err := s.db.Query("SELECT path, size, mod_time FROM mpc_sources ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("query mpc sources: %w", err)
	}
	defer rows.Close()

	var fps []FileFingerprint
	for rows.Next() {
		var fp FileFingerprint
		var modTime int64
		if err := rows.Scan(&fp.Path, &fp.Size, &modTime); err != nil {
			return nil, fmt.Errorf("scan mpc source: %w", err)
		}
		fp.ModTime = time.Unix(0, modTime)
		fps = append(fps, fp)
	}
	return fps, rows.Err()
}

func (s *Store) recordSources(ctx context.Context, fps []FileFingerprint) error {
	for _, fp := range fps {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO mpc_sources VALUES (?, ?, ?)",
			fp.Path, fp.Size, fp.ModTime.UnixNano()); err != nil {
			return fmt.Errorf("record mpc source: %w", err)
		}
	}
	return nil
}

// Probe is a mutation to look up. ID is chosen by the caller and keys the result.
type Probe struct {
	ID         int
	Coord      mutation.CoordKey
	HasCoord   bool
	Protein    mutation.ProteinKey
	HasProtein bool
}

// Hit holds a single lookup result.
type Hit struct {
	MPC      null.Float
	PolyPhen string
	Match    Match
	rowNum   int64
}

// better reports whether h should replace cur as the selected hit: the
// highest MPC wins, a missing MPC ranks lowest, ties go to the earlier row.
func (h Hit) better(cur Hit) bool {
	switch {
	case h.MPC.Valid && !cur.MPC.Valid:
		return true
	case !h.MPC.Valid && cur.MPC.Valid:
		return false
	case h.MPC.Valid && h.MPC.Float64 != cur.MPC.Float64:
		return h.MPC.Float64 > cur.MPC.Float64
	}
	return h.rowNum < cur.rowNum
}

// BatchLookup joins probes against the reference. Each probe is matched by
// coordinates first; probes without a coordinate hit are matched by gene and
// protein change. Probes without any hit are absent from the result.
func (s *Store) BatchLookup(ctx context.Context, probes []Probe) (map[int]Hit, error) {
	if len(probes) == 0 {
		return nil, nil
	}

	if _, err := s.db.ExecContext(ctx, `CREATE OR REPLACE TABLE mpc_probes (
		id BIGINT, chrom VARCHAR, pos BIGINT, ref VARCHAR, alt VARCHAR,
		gene VARCHAR, protein VARCHAR
	)`); err != nil {
		return nil, fmt.Errorf("create probe table: %w", err)
	}
	defer s.db.Exec(`DROP TABLE IF EXISTS mpc_probes`)

	if err := s.withAppender(ctx, "mpc_probes", func(app *goduckdb.Appender) error {
		for _, p := range probes {
			var chrom, ref, alt, gene, protein driver.Value
			var pos driver.Value
			if p.HasCoord {
				chrom, pos, ref, alt = p.Coord.Chrom, p.Coord.Pos, p.Coord.Ref, p.Coord.Alt
			}
			if p.HasProtein {
				gene, protein = p.Protein.Gene, p.Protein.Change
			}
			if err := app.AppendRow(int64(p.ID), chrom, pos, ref, alt, gene, protein); err != nil {
				return fmt.Errorf("append probe: %w", err)
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	hits := make(map[int]Hit, len(probes))
	if err := s.collectHits(ctx, hits, MatchCoordinate, `
		SELECT p.id, m.mpc, m.polyphen, m.row_num
		FROM mpc_probes p
		JOIN mpc m ON m.chrom = p.chrom AND m.pos = p.pos AND m.ref = p.ref AND m.alt = p.alt`); err != nil {
		return nil, err
	}

	protein := make(map[int]Hit)
	if err := s.collectHits(ctx, protein, MatchProtein, `
		SELECT p.id, m.mpc, m.polyphen, m.row_num
		FROM mpc_probes p
		JOIN mpc m ON m.gene = p.gene AND m.protein = p.protein`); err != nil {
		return nil, err
	}
	for id, h := range protein {
		if _, ok := hits[id]; !ok {
			hits[id] = h
		}
	}

	return hits, nil
}

func (s *Store) collectHits(ctx context.Context, hits map[int]Hit, match Match, query string) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%s lookup query: %w", match, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var score sql.NullFloat64
		var polyphen sql.NullString
		var h Hit
		if err := rows.Scan(&id, &score, &polyphen, &h.rowNum); err != nil {
			return fmt.Errorf("scan %s lookup: %w", match, err)
		}
		h.MPC = null.NewFloat(score.Float64, score.Valid)
		h.PolyPhen = polyphen.String
		h.Match = match

		if cur, ok := hits[int(id)]; !ok || h.better(cur) {
			hits[int(id)] = h
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%s lookup rows: %w", match, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullString(s string) driver.Value {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f null.Float) driver.Value {
	if !f.Valid {
		return nil
	}
	return f.Float64
}
