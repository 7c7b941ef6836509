package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var embeddingsCmd = &cobra.Command{
	Use:         "embeddings",
	Short:       "Report on and generate embeddings",
	Annotations: servicesAnnotation(),
}

var embeddingsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show embedding coverage",
	Args:  cobra.NoArgs,
	RunE:  runEmbeddingsStats,
}

var embeddingsEmbedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Embed ready documents",
	Long: `Embeds every ready document, or those in --project. Vectors already
cached or stored are reused unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runEmbeddingsEmbed,
}

var (
	embedProject     string
	embedForce       bool
	embedPerDocument bool
	embedJSON        bool
)

func init() {
	embeddingsStatsCmd.Flags().BoolVar(&embedPerDocument, "per-document", false, "list counts per document")
	embeddingsStatsCmd.Flags().BoolVar(&embedJSON, "json", false, "output statistics as JSON")
	embeddingsEmbedCmd.Flags().StringVarP(&embedProject, "project", "p", "", "only embed documents in this project")
	embeddingsEmbedCmd.Flags().BoolVar(&embedForce, "force", false, "recompute every vector")

	embeddingsCmd.AddCommand(embeddingsStatsCmd)
	embeddingsCmd.AddCommand(embeddingsEmbedCmd)
	rootCmd.AddCommand(embeddingsCmd)
}

func runEmbeddingsStats(cmd *cobra.Command, _ []string) error {
	if embeddingAdmin == nil {
		return notConfigured("embedding")
	}

	stats, err := embeddingAdmin.Stats(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to get embedding stats: %w", err)
	}
	if embedJSON {
		return printJSON(cmd, stats)
	}

	cmd.Printf("Model:           %s (%d dimensions)\n", stats.Model, stats.Dimension)
	cmd.Printf("Ready documents: %d\n", stats.ReadyDocuments)
	cmd.Printf("Chunks:          %d\n", stats.TotalChunks)
	cmd.Printf("Embeddings:      %d\n", stats.TotalEmbeddings)
	cmd.Printf("Coverage:        %.1f%%\n", stats.Coverage)

	if embedPerDocument && len(stats.PerDocument) > 0 {
		ids := make([]string, 0, len(stats.PerDocument))
		for id := range stats.PerDocument {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		cmd.Println()
		for _, id := range ids {
			cmd.Printf("  %s  %d\n", id, stats.PerDocument[id])
		}
	}
	return nil
}

func runEmbeddingsEmbed(cmd *cobra.Command, _ []string) error {
	if embeddingAdmin == nil {
		return notConfigured("embedding")
	}

	n, err := embeddingAdmin.EmbedAll(commandContext(cmd), embedProject, embedForce)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}

	cmd.Printf("Embedded %d documents.\n", n)
	return nil
}
