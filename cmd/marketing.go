package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crm-enrich/internal/vector"
	"github.com/sells-group/crm-enrich/pkg/embeddings"
)

var marketingTopK int

var marketingCmd = &cobra.Command{
	Use:   "marketing",
	Short: "Manage the marketing materials index",
}

// openMaterialIndex builds the vector index without the rest of the
// pipeline; marketing commands only need the embeddings provider.
func openMaterialIndex() (*vector.Index, error) {
	if cfg.Embeddings.Key == "" {
		return nil, eris.New("embeddings key is required for marketing commands")
	}
	embedder := embeddings.NewClient(cfg.Embeddings.Key,
		embeddings.WithBaseURL(cfg.Embeddings.BaseURL),
		embeddings.WithModel(cfg.Embeddings.Model),
	)
	return vector.New(embedder, cfg.Marketing.IndexPath), nil
}

var marketingIndexCmd = &cobra.Command{
	Use:   "index [workbook.xlsx]",
	Short: "Rebuild the index from the materials workbook",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Marketing.CatalogPath
		if len(args) == 1 {
			path = args[0]
		}
		materials, err := vector.ReadCatalog(path)
		if err != nil {
			return err
		}

		index, err := openMaterialIndex()
		if err != nil {
			return err
		}
		n, err := index.IndexMaterials(cmd.Context(), materials)
		if err != nil {
			return err
		}
		zap.L().Info("marketing index rebuilt",
			zap.String("workbook", path), zap.Int("indexed", n))
		return nil
	},
}

var marketingSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed materials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := openMaterialIndex()
		if err != nil {
			return err
		}
		results, err := index.Search(cmd.Context(), args[0], marketingTopK)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("no matches")
			return nil
		}
		for _, m := range results {
			fmt.Printf("%.3f  %s", m.Score, m.Title)
			if m.Industry != "" {
				fmt.Printf("  [%s]", m.Industry)
			}
			fmt.Println()
		}
		return nil
	},
}

var marketingStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index size",
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := openMaterialIndex()
		if err != nil {
			return err
		}
		fmt.Printf("indexed materials: %d\n", index.Count())
		return nil
	},
}

func init() {
	marketingSearchCmd.Flags().IntVar(&marketingTopK, "top-k", 5, "number of results")
	marketingCmd.AddCommand(marketingIndexCmd, marketingSearchCmd, marketingStatsCmd)
	rootCmd.AddCommand(marketingCmd)
}
