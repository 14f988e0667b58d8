package main

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/crm-enrich/internal/model"
	"github.com/sells-group/crm-enrich/internal/pipeline"
)

var (
	batchCriteria string
	batchRefresh  bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <leads|deals> [id...]",
	Short: "Enrich many records concurrently",
	Long:  "Enriches the given record ids, or every record matching --criteria, honoring the configured concurrency limit. Individual record failures are logged and skipped.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var kind model.RecordKind
		switch args[0] {
		case "leads":
			kind = model.KindLead
		case "deals":
			kind = model.KindDeal
		default:
			return eris.Errorf("unknown record type %q, want leads or deals", args[0])
		}

		ids := args[1:]
		if len(ids) == 0 && batchCriteria == "" {
			return eris.New("provide record ids or --criteria")
		}

		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if batchCriteria != "" {
			records, err := env.CRM.SearchRecords(cmd.Context(), kind.ModuleName(), batchCriteria)
			if err != nil {
				return eris.Wrap(err, "search records")
			}
			for _, rec := range records {
				if id, ok := rec["id"].(string); ok && id != "" {
					ids = append(ids, id)
				}
			}
			zap.L().Info("search matched records",
				zap.String("criteria", batchCriteria), zap.Int("count", len(records)))
		}
		if len(ids) == 0 {
			zap.L().Info("nothing to enrich")
			return nil
		}

		runID := uuid.NewString()
		zap.L().Info("starting batch run",
			zap.String("run_id", runID), zap.String("module", kind.ModuleName()), zap.Int("records", len(ids)))

		opts := pipeline.Options{Refresh: batchRefresh}
		var done, failed atomic.Int64

		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(cfg.Batch.MaxConcurrentRecords)
		for _, id := range ids {
			g.Go(func() error {
				var err error
				if kind == model.KindDeal {
					_, err = env.Coordinator.EnrichDeal(ctx, id, opts)
				} else {
					_, err = env.Coordinator.EnrichLead(ctx, id, opts)
				}
				if err != nil {
					failed.Add(1)
					zap.L().Error("record enrichment failed", zap.String("id", id), zap.Error(err))
					return nil
				}
				done.Add(1)
				zap.L().Info("record enriched", zap.String("id", id))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		zap.L().Info("batch complete",
			zap.String("run_id", runID),
			zap.Int64("enriched", done.Load()), zap.Int64("failed", failed.Load()))
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchCriteria, "criteria", "", "Zoho search criteria, e.g. (Lead_Status:equals:New)")
	batchCmd.Flags().BoolVar(&batchRefresh, "refresh", false, "rerun analysis even when a cached result exists")
	rootCmd.AddCommand(batchCmd)
}
