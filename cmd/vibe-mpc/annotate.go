package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/guregu/null.v3"

	"github.com/inodb/vibe-mpc/internal/filter"
	"github.com/inodb/vibe-mpc/internal/pipeline"
)

// annotateFlags holds the raw filter arguments of the annotate command.
type annotateFlags struct {
	pathway      string
	gene         string
	patient      string
	mutation     string
	pph2         string
	mpcGT        string
	adjCsq       string
	keepUnscored bool
	output       string
	matrix       bool
}

func newAnnotateCmd() *cobra.Command {
	var f annotateFlags

	cmd := &cobra.Command{
		Use:   "annotate <mutations-file> [<mpc-path>]",
		Short: "Annotate patient mutations with MPC and PolyPhen-2 scores",
		Long: `Annotate patient mutations with MPC and PolyPhen-2 scores.

The MPC reference is the official MPC values file or a directory of chunk
files created by "vibe-mpc partition". It can also be set with --mpc or the
mpc.path config key.

Every filter accepts a single value, a comma-separated list or the path of a
file listing one value per line.`,
		Example: `  vibe-mpc annotate mutations.tsv fordist_constraint_official_mpc_values.txt.gz
  vibe-mpc annotate mutations.tsv chunks/ --pathways-dir pathways/ --pathway R-HSA-69620
  vibe-mpc annotate mutations.tsv --gene KRAS,TP53 --mutation missense_variant --mpc-gt 2
  vibe-mpc annotate mutations.tsv --patient patients.txt --output -`,
		Args: usageArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := buildOptions(args, f, cmd.OutOrStdout())
			if err != nil {
				return &usageError{err}
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			res, err := pipeline.Run(ctx, opts, logger)
			if err != nil {
				return err
			}
			logger.Info("annotations written",
				zap.String("path", res.AnnotationsPath),
				zap.Int("rows", res.Written),
				zap.String("log", res.LogPath))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("mpc", "", "MPC reference file or chunk directory")
	flags.String("mpc-db", "", "Persistent DuckDB file for the loaded reference (default: in-memory)")
	flags.Int("workers", 0, "Chunk files parsed concurrently (0 = all CPUs)")
	flags.String("pathways-dir", "", "Directory of <pathway>_with_gene_annotations.txt files")
	flags.StringP("output-dir", "d", ".", "Directory for output files and the run log")
	flags.String("duckdb-out", "", "Also append the annotated rows to this DuckDB file")

	flags.StringVar(&f.pathway, "pathway", "", "Pathway(s) to restrict to (requires --pathways-dir)")
	flags.StringVar(&f.gene, "gene", "", "Gene(s) to keep")
	flags.StringVar(&f.patient, "patient", "", "Patient id(s) to keep")
	flags.StringVar(&f.mutation, "mutation", "", "Mutation consequence(s) to keep, e.g. missense_variant")
	flags.StringVar(&f.mutation, "csq", "", "Alias for --mutation")
	flags.StringVar(&f.pph2, "pph2", "", "PolyPhen-2 prediction(s) to keep, e.g. probably_damaging")
	flags.StringVar(&f.mpcGT, "mpc-gt", "", "Keep rows with MPC strictly greater than this value")
	flags.StringVar(&f.adjCsq, "adj-csq", "", "Adjusted consequence(s) to keep: PTV, Missense3, Missense")
	flags.BoolVar(&f.keepUnscored, "keep-unscored", false, "Keep missense rows without MPC or PolyPhen-2 scores")
	flags.StringVarP(&f.output, "output", "o", "", "Annotated table path ('-' for stdout; default: generated name in --output-dir)")
	flags.BoolVar(&f.matrix, "pathway-matrix", false, "Also write the pathway indicator matrix")

	for key, name := range map[string]string{
		"mpc.path":      "mpc",
		"mpc.db":        "mpc-db",
		"mpc.workers":   "workers",
		"pathways.dir":  "pathways-dir",
		"output.dir":    "output-dir",
		"output.duckdb": "duckdb-out",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}

	return cmd
}

// buildOptions resolves arguments, flags and config into pipeline options.
func buildOptions(args []string, f annotateFlags, stdout io.Writer) (pipeline.Options, error) {
	opts := pipeline.Options{
		MutationsPath: args[0],
		MPCPath:       viper.GetString("mpc.path"),
		MPCDB:         viper.GetString("mpc.db"),
		Workers:       viper.GetInt("mpc.workers"),
		PathwaysDir:   viper.GetString("pathways.dir"),
		OutputDir:     viper.GetString("output.dir"),
		DuckDBOut:     viper.GetString("output.duckdb"),
		Output:        f.output,
		PathwayMatrix: f.matrix,
		Stdout:        stdout,
	}
	if len(args) > 1 {
		opts.MPCPath = args[1]
	}

	c := &opts.Criteria
	c.KeepUnscored = f.keepUnscored
	for _, l := range []struct {
		flag string
		arg  string
		dst  *[]string
	}{
		{"pathway", f.pathway, &c.Pathways},
		{"gene", f.gene, &c.Genes},
		{"patient", f.patient, &c.Patients},
		{"mutation", f.mutation, &c.Consequences},
		{"pph2", f.pph2, &c.PolyPhen},
		{"adj-csq", f.adjCsq, &c.AdjustedConsequences},
	} {
		values, err := filter.ParseList(l.arg)
		if err != nil {
			return opts, fmt.Errorf("--%s: %w", l.flag, err)
		}
		*l.dst = values
	}

	if s := strings.TrimSpace(f.mpcGT); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return opts, fmt.Errorf("--mpc-gt: invalid number %q", f.mpcGT)
		}
		c.MPCGreaterThan = null.FloatFrom(v)
	}

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}
