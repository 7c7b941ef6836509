package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var (
	queryProject      string
	queryConversation string
	queryTopK         int
	queryTemperature  float64
	queryMaxTokens    int
	queryNoSources    bool
	queryJSON         bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question about ingested documents",
	Long: `Retrieves the chunks most similar to the question, reranks them and
generates an answer that cites them as [1], [2], ...

Questions scoped to a project are recorded in a conversation. Pass
--conversation to continue an earlier one.`,
	Args:        cobra.MinimumNArgs(1),
	Annotations: servicesAnnotation(),
	RunE:        runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryProject, "project", "p", "", "restrict retrieval to a project")
	queryCmd.Flags().StringVarP(&queryConversation, "conversation", "c", "", "continue a conversation")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", domain.DefaultTopK, "number of chunks in the context")
	queryCmd.Flags().Float64VarP(&queryTemperature, "temperature", "t", domain.DefaultTemperature, "sampling temperature [0, 2]")
	queryCmd.Flags().IntVar(&queryMaxTokens, "max-tokens", domain.DefaultMaxTokens, "maximum answer length in tokens")
	queryCmd.Flags().BoolVar(&queryNoSources, "no-sources", false, "omit the source list")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the response as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return notConfigured("query")
	}

	req := domain.NewQueryRequest(strings.Join(args, " "))
	req.ProjectID = queryProject
	req.ConversationID = queryConversation
	req.TopK = queryTopK
	req.Temperature = queryTemperature
	req.MaxTokens = queryMaxTokens
	req.IncludeSources = !queryNoSources

	resp, err := queryService.Query(commandContext(cmd), req)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return printJSON(cmd, resp)
	}
	printAnswer(cmd, resp)
	return nil
}

func printAnswer(cmd *cobra.Command, resp *domain.QueryResponse) {
	st := newStyler(cmd.OutOrStdout())

	cmd.Println(st.answer(resp.Answer))
	cmd.Println()

	if len(resp.Sources) > 0 {
		cmd.Println(st.title("Sources"))
		for _, src := range resp.Sources {
			cmd.Printf("  [%d] %s%s (%.2f)\n", src.ID, src.DocumentTitle, sourceLocation(src), src.Score)
			cmd.Printf("      %s\n", st.label(src.TextPreview))
		}
		cmd.Println()
	}

	footer := fmt.Sprintf("%s · %d chunks · %d tokens", resp.ModelUsed, resp.ChunksUsed, resp.Usage.TotalTokens)
	if resp.Cached {
		footer += " · cached"
	}
	if resp.ConversationID != "" {
		footer += " · conversation " + resp.ConversationID
	}
	cmd.Println(st.label(footer))
}

func sourceLocation(src domain.Source) string {
	switch {
	case src.PageNum != nil:
		return fmt.Sprintf(", page %d", *src.PageNum)
	case src.Timestamp != nil:
		return fmt.Sprintf(", %s", formatTimestamp(*src.Timestamp))
	case src.Section != "":
		return ", " + src.Section
	default:
		return ""
	}
}

func formatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
