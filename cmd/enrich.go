package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/crm-enrich/internal/pipeline"
)

var (
	enrichSkipAnalysis bool
	enrichRefresh      bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich a single record and print the result as JSON",
}

var enrichLeadCmd = &cobra.Command{
	Use:   "lead <id>",
	Short: "Enrich a lead by Zoho record id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Coordinator.EnrichLead(cmd.Context(), args[0], enrichOptions())
		if err != nil {
			return err
		}
		return printJSON(rec)
	},
}

var enrichDealCmd = &cobra.Command{
	Use:   "deal <id>",
	Short: "Enrich a deal by Zoho record id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Coordinator.EnrichDeal(cmd.Context(), args[0], enrichOptions())
		if err != nil {
			return err
		}
		return printJSON(rec)
	},
}

var enrichWebCmd = &cobra.Command{
	Use:   "web <url>",
	Short: "Enrich a company from its website alone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Coordinator.EnrichWebsite(cmd.Context(), args[0], enrichOptions())
		if err != nil {
			return err
		}
		return printJSON(rec)
	},
}

func enrichOptions() pipeline.Options {
	return pipeline.Options{
		SkipAnalysis: enrichSkipAnalysis,
		Refresh:      enrichRefresh,
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	enrichCmd.PersistentFlags().BoolVar(&enrichSkipAnalysis, "skip-analysis", false, "return the record without running analysis")
	enrichCmd.PersistentFlags().BoolVar(&enrichRefresh, "refresh", false, "rerun analysis even when a cached result exists")
	enrichCmd.AddCommand(enrichLeadCmd, enrichDealCmd, enrichWebCmd)
	rootCmd.AddCommand(enrichCmd)
}
