package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var (
	searchLimit   int
	searchProject string
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed chunks",
	Long: `Returns the chunks that would form the context for a question,
ranked by similarity and keyword overlap, without generating an answer.`,
	Args:        cobra.ExactArgs(1),
	Annotations: servicesAnnotation(),
	RunE:        runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().StringVarP(&searchProject, "project", "p", "", "restrict the search to a project")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return notConfigured("query")
	}

	req := domain.NewQueryRequest(args[0])
	req.TopK = searchLimit
	req.ProjectID = searchProject

	results, err := queryService.Retrieve(commandContext(cmd), req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return printJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

func outputSearchTable(cmd *cobra.Command, results []domain.RankedChunk) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	st := newStyler(cmd.OutOrStdout())
	cmd.Println(st.title("Results:"))
	cmd.Println()
	for i := range results {
		r := &results[i]
		title := r.DocumentTitle
		if title == "" {
			title = r.Chunk.DocumentID
		}
		cmd.Printf("[%d] %s (score %.3f, similarity %.3f)\n", i+1, title, r.Score, r.Similarity)
		if r.Chunk.HeadingPath != "" {
			cmd.Printf("    %s\n", st.label(r.Chunk.HeadingPath))
		}
		cmd.Printf("    %s\n\n", snippet(r.Chunk.Text, 160))
	}
	return nil
}

func snippet(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
