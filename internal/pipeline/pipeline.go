// Package pipeline runs an annotation from input files to written outputs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/vibe-mpc/internal/annotate"
	"github.com/inodb/vibe-mpc/internal/duckdb"
	"github.com/inodb/vibe-mpc/internal/filter"
	"github.com/inodb/vibe-mpc/internal/mpc"
	"github.com/inodb/vibe-mpc/internal/mutation"
	"github.com/inodb/vibe-mpc/internal/output"
	"github.com/inodb/vibe-mpc/internal/pathway"
)

// Options configures a run.
type Options struct {
	MutationsPath string // patient mutation table
	MPCPath       string // MPC reference file or chunk directory
	MPCDB         string // persistent reference database, "" for in-memory
	Workers       int    // chunk files parsed concurrently, 0 = NumCPU
	PathwaysDir   string // directory of pathway annotation files, "" to skip pathways

	Criteria filter.Criteria

	OutputDir     string    // directory for generated file names and the run log
	Output        string    // explicit annotated table path, "-" for Stdout
	PathwayMatrix bool      // also write the pathway indicator matrix
	DuckDBOut     string    // optional results database
	Stdout        io.Writer // used when Output is "-"

	Now func() time.Time // run clock, time.Now when nil
}

// Result summarizes a finished run.
type Result struct {
	RunID           string
	AnnotationsPath string // "-" when written to Stdout
	MatrixPath      string
	LogPath         string
	Records         int // records read from the mutation table
	DroppedRows     int // rows without patient or gene
	Written         int // annotated rows written
	Stages          []filter.Stage
	Matches         annotate.MatchStats
	Scores          output.ScoreSummary
}

// Validate checks the options for combinations that cannot run.
func (o *Options) Validate() error {
	if o.MutationsPath == "" {
		return errors.New("mutations file is required")
	}
	if o.MPCPath == "" {
		return errors.New("MPC reference path is required (argument or mpc.path)")
	}
	if o.PathwaysDir == "" && len(o.Criteria.Pathways) > 0 {
		return errors.New("pathway filter requires a pathways directory")
	}
	if o.PathwayMatrix && o.PathwaysDir == "" {
		return errors.New("pathway matrix requires a pathways directory")
	}
	if o.Output == "-" && o.Stdout == nil {
		return errors.New("stdout output requested without a writer")
	}
	return nil
}

// Params lists every run parameter for the run log. Unset values are empty.
func (o *Options) Params() []output.Param {
	c := o.Criteria
	mpcGT := ""
	if c.MPCGreaterThan.Valid {
		mpcGT = strconv.FormatFloat(c.MPCGreaterThan.Float64, 'g', -1, 64)
	}
	return []output.Param{
		{Name: "mutations", Value: o.MutationsPath},
		{Name: "mpc", Value: o.MPCPath},
		{Name: "mpc_db", Value: o.MPCDB},
		{Name: "pathways_dir", Value: o.PathwaysDir},
		{Name: "pathway", Value: strings.Join(c.Pathways, ",")},
		{Name: "gene", Value: strings.Join(c.Genes, ",")},
		{Name: "patient", Value: strings.Join(c.Patients, ",")},
		{Name: "mutation", Value: strings.Join(c.Consequences, ",")},
		{Name: "pph2", Value: strings.Join(c.PolyPhen, ",")},
		{Name: "mpc_gt", Value: mpcGT},
		{Name: "adj_csq", Value: strings.Join(c.AdjustedConsequences, ",")},
		{Name: "keep_unscored", Value: strconv.FormatBool(c.KeepUnscored)},
		{Name: "output_dir", Value: o.OutputDir},
		{Name: "output", Value: o.Output},
		{Name: "pathway_matrix", Value: strconv.FormatBool(o.PathwayMatrix)},
		{Name: "duckdb_out", Value: o.DuckDBOut},
	}
}

// Run executes the pipeline: load mutations, filter records, restrict to
// pathways, load the reference, join, filter annotations, finalize, write
// outputs and the run log.
func Run(ctx context.Context, opts Options, logger *zap.Logger) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	start := now()

	outDir := opts.OutputDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	runLog, err := output.NewRunLog(output.LogPath(outDir, start), start)
	if err != nil {
		return nil, err
	}
	runLog.Params(opts.Params())

	res := &Result{RunID: runLog.ID, LogPath: runLog.Path()}
	if err := run(ctx, opts, outDir, start, runLog, res, logger); err != nil {
		runLog.Error(err)
		runLog.Close(time.Since(start))
		return res, err
	}
	if err := runLog.Close(time.Since(start)); err != nil {
		return res, fmt.Errorf("close run log: %w", err)
	}
	return res, nil
}

func run(ctx context.Context, opts Options, outDir string, start time.Time, runLog *output.RunLog, res *Result, logger *zap.Logger) error {
	records, dropped, err := mutation.ReadAll(opts.MutationsPath)
	if err != nil {
		return fmt.Errorf("read mutations: %w", err)
	}
	res.Records, res.DroppedRows = len(records), dropped
	logger.Info("read mutations",
		zap.String("path", opts.MutationsPath),
		zap.Int("records", len(records)),
		zap.Int("dropped", dropped))
	res.Stages = append(res.Stages, filter.Stage{Name: "missing_values", Before: len(records) + dropped, After: len(records)})

	records, stages := opts.Criteria.FilterRecords(records)
	res.Stages = append(res.Stages, stages...)

	var index *pathway.Index
	if opts.PathwaysDir != "" {
		paths, err := pathway.Resolve(opts.PathwaysDir, opts.Criteria.Pathways)
		if err != nil {
			return err
		}
		index, err = pathway.Load(ctx, paths)
		if err != nil {
			return fmt.Errorf("load pathways: %w", err)
		}
		logger.Info("loaded pathways",
			zap.Int("pathways", len(index.Pathways())),
			zap.Int("genes", index.Genes()))
	}

	store, err := mpc.Open(opts.MPCDB)
	if err != nil {
		return fmt.Errorf("open MPC store: %w", err)
	}
	defer store.Close()
	store.SetLogger(logger)
	store.SetWorkers(opts.Workers)
	if _, err := store.Load(ctx, opts.MPCPath); err != nil {
		return fmt.Errorf("load MPC reference: %w", err)
	}

	annotator := annotate.NewAnnotator(store)
	annotator.SetLogger(logger)
	if index != nil {
		annotator.SetPathways(index)
	}
	anns, err := annotator.Annotate(ctx, records)
	if err != nil {
		return err
	}
	if index != nil {
		res.Stages = append(res.Stages, filter.Stage{Name: "pathway", Before: len(records), After: len(anns)})
	}
	res.Matches = annotate.CountMatches(anns)

	anns, stages = opts.Criteria.FilterAnnotations(anns)
	res.Stages = append(res.Stages, stages...)

	before := len(anns)
	anns = annotate.Finalize(anns)
	res.Stages = append(res.Stages, filter.Stage{Name: "duplicates", Before: before, After: len(anns)})
	res.Written = len(anns)

	runLog.Stages(res.Stages)
	runLog.Matches(res.Matches)

	if res.Scores, err = output.SummarizeMPC(anns); err != nil {
		return err
	}
	runLog.Scores(res.Scores)

	if res.AnnotationsPath, err = writeAnnotations(opts, outDir, start, anns); err != nil {
		return err
	}
	runLog.Output("annotations", res.AnnotationsPath, len(anns))

	if opts.PathwayMatrix {
		res.MatrixPath = output.MatrixPath(outDir, start)
		if err := writeFile(res.MatrixPath, func(w io.Writer) error {
			return output.WriteMatrix(w, anns, index.Pathways())
		}); err != nil {
			return fmt.Errorf("write pathway matrix: %w", err)
		}
		runLog.Output("pathway_matrix", res.MatrixPath, len(anns))
	}

	if opts.DuckDBOut != "" {
		rs, err := duckdb.Open(opts.DuckDBOut)
		if err != nil {
			return fmt.Errorf("open results database: %w", err)
		}
		defer rs.Close()
		if err := rs.WriteAnnotations(res.RunID, anns); err != nil {
			return fmt.Errorf("write results database: %w", err)
		}
		runLog.Output("duckdb", opts.DuckDBOut, len(anns))
	}

	logger.Info("run complete",
		zap.String("run_id", res.RunID),
		zap.Int("written", res.Written),
		zap.String("output", res.AnnotationsPath),
		zap.String("log", res.LogPath))
	return nil
}

func writeAnnotations(opts Options, outDir string, start time.Time, anns []*annotate.Annotation) (string, error) {
	path := opts.Output
	switch path {
	case "-":
		if err := output.WriteAnnotations(opts.Stdout, anns); err != nil {
			return "", fmt.Errorf("write annotations: %w", err)
		}
		return path, nil
	case "":
		path = output.AnnotationsPath(outDir, start)
	}
	if err := writeFile(path, func(w io.Writer) error {
		return output.WriteAnnotations(w, anns)
	}); err != nil {
		return "", fmt.Errorf("write annotations: %w", err)
	}
	return path, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
