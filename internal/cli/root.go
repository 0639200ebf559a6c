// Package cli provides the command-line interface for the harvester.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pncp-data/harvester/internal/config"
	"github.com/pncp-data/harvester/internal/dataset"
	"github.com/pncp-data/harvester/internal/filter"
	"github.com/pncp-data/harvester/internal/harvest"
	"github.com/pncp-data/harvester/internal/oracle"
	"github.com/pncp-data/harvester/internal/pipeline"
	"github.com/pncp-data/harvester/internal/state"
	"github.com/pncp-data/harvester/internal/storage"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	flagHistorical   bool
	flagDate         string
	flagProduction   bool
	flagConsolidate  bool
	flagConsolDays   int
	flagGenHistorico bool
)

var rootCmd = &cobra.Command{
	Use:   "pncp-harvester",
	Short: "PNCP procurement data extractor",
	Long: `Extracts contratações from the PNCP consulta API, filters them through
a keyword stage and an optional LLM stage, and persists the survivors as
parquet partitions with incremental checkpointing.

Without flags, runs an incremental extraction from the last checkpoint.`,
	Version:      Version,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().BoolVar(&flagHistorical, "historical", false, "backfill every date from the configured start")
	rootCmd.Flags().StringVar(&flagDate, "date", "", "extract a single date (YYYY-MM-DD)")
	rootCmd.Flags().BoolVar(&flagProduction, "production", false, "production mode: incremental runs extract at most yesterday")
	rootCmd.Flags().BoolVar(&flagConsolidate, "consolidate", false, "merge aged daily partitions into monthly files instead of extracting")
	rootCmd.Flags().IntVar(&flagConsolDays, "consolidate-days", 0, "age threshold in days for --consolidate (default from config)")
	rootCmd.Flags().BoolVar(&flagGenHistorico, "generate-consolidated", false, "write the full historical export instead of extracting")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func run(ctx context.Context) error {
	cfg := config.Load()
	if flagProduction {
		cfg.ProductionMode = true
	}

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if flagConsolidate || flagGenHistorico {
		return runConsolidation(ctx, cfg, store, logger)
	}
	return runExtraction(ctx, cfg, store, logger)
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.UseS3() {
		logger.Info("using S3 storage", "bucket", cfg.S3Bucket)
		return storage.NewS3(ctx, cfg.S3Bucket)
	}
	logger.Info("using local storage", "dir", cfg.LocalDataDir)
	return storage.NewLocal(cfg.LocalDataDir)
}

func runExtraction(ctx context.Context, cfg config.Config, store storage.Store, logger *slog.Logger) error {
	fp, extra, err := buildFilter(cfg, logger)
	if err != nil {
		return err
	}

	client := harvest.NewClient(cfg, logger)
	fetcher := harvest.NewHarvester(client, cfg.MaxWorkers, logger)
	writer := dataset.NewWriter(store, cfg.DatasetName, logger)
	st := state.NewManager(store, cfg.StateKey, cfg.StateLocalPath, logger)
	meta := pipeline.NewMetadataLog(store)

	orch := pipeline.New(cfg, fetcher, fp, writer, st, meta, logger, extra...)
	return orch.Run(ctx, state.Plan{
		ExplicitDate:  flagDate,
		Historical:    flagHistorical,
		Production:    cfg.ProductionMode,
		BackfillStart: cfg.BackfillStart,
	})
}

// buildFilter assembles the two-stage filter. Stage 2 failures at setup
// degrade to keyword-only filtering rather than blocking extraction.
func buildFilter(cfg config.Config, logger *slog.Logger) (*filter.Pipeline, []pipeline.Summarizer, error) {
	if !cfg.FilterEnabled {
		return filter.NewPipeline(false, nil, nil, logger), nil, nil
	}

	groups, err := config.LoadGroups(cfg.GroupsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading filter groups: %w", err)
	}
	keyword := filter.NewKeywordFilter(groups)

	if !cfg.OracleEnabled {
		return filter.NewPipeline(true, keyword, nil, logger), nil, nil
	}

	orc, err := oracle.New(cfg, groups, logger)
	if err != nil {
		logger.Warn("oracle unavailable, using keyword filter only", "error", err)
		return filter.NewPipeline(true, keyword, nil, logger), nil, nil
	}
	return filter.NewPipeline(true, keyword, orc, logger), []pipeline.Summarizer{orc}, nil
}

func runConsolidation(ctx context.Context, cfg config.Config, store storage.Store, logger *slog.Logger) error {
	c := dataset.NewConsolidator(store, cfg.DatasetName, logger)

	if flagGenHistorico {
		key, count, err := c.GenerateHistorical(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "historical export: %s (%d records)\n", key, count)
		return nil
	}

	days := cfg.ConsolidationAge
	if flagConsolDays > 0 {
		days = flagConsolDays
	}
	return c.Consolidate(ctx, days)
}
