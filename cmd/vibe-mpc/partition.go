package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-mpc/internal/mpc"
)

func newPartitionCmd() *cobra.Command {
	var (
		outDir    string
		chunkSize int
		dbPath    string
	)

	cmd := &cobra.Command{
		Use:   "partition <mpc-file>",
		Short: "Split the MPC values file into chunk files",
		Long: `Split the official MPC values file into chunk files holding only the
columns used for annotation. The chunk directory can be passed to annotate in
place of the full file.`,
		Example: `  vibe-mpc partition fordist_constraint_official_mpc_values.txt.gz --out-dir chunks/
  vibe-mpc partition mpc.txt --out-dir chunks/ --chunk-size 500000 --db mpc.duckdb`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				return &usageError{fmt.Errorf("--out-dir is required")}
			}
			if chunkSize <= 0 {
				return &usageError{fmt.Errorf("--chunk-size must be positive, got %d", chunkSize)}
			}

			start := time.Now()
			p, err := mpc.NewPartitioner(outDir, chunkSize)
			if err != nil {
				return err
			}
			chunks, err := p.Partition(args[0])
			if err != nil {
				return fmt.Errorf("partition %s: %w", args[0], err)
			}
			logger.Info("partitioned MPC reference",
				zap.String("input", args[0]),
				zap.String("out_dir", outDir),
				zap.Int("chunks", len(chunks)),
				zap.Duration("elapsed", time.Since(start)))

			if dbPath == "" {
				return nil
			}
			if _, err := os.Stat(dbPath); err == nil {
				if err := os.Remove(dbPath); err != nil {
					return fmt.Errorf("remove existing database: %w", err)
				}
			}
			store, err := mpc.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			store.SetLogger(logger)

			if _, err := store.Load(context.Background(), outDir); err != nil {
				return fmt.Errorf("load chunks into %s: %w", dbPath, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory for chunk_<n>.tsv files, replacing existing ones (required)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", mpc.DefaultChunkSize, "Data rows per chunk file")
	cmd.Flags().StringVar(&dbPath, "db", "", "Also load the chunks into this DuckDB file for annotate --mpc-db")

	return cmd
}
