package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

var (
	queryTopK         int
	queryThreshold    float64
	queryJSON         bool
	queryWithContext  bool
	queryContextSize  int
	queryFullDocument bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search the indexed corpus",
	Long: `Embeds the query text and returns the most similar chunks from the
indexed corpus, ranked by cosine similarity.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", domain.DefaultTopK, "maximum number of results")
	queryCmd.Flags().Float64Var(&queryThreshold, "threshold", 0, "minimum similarity score")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	queryCmd.Flags().BoolVar(&queryWithContext, "context", false, "include neighbouring chunks in each result")
	queryCmd.Flags().IntVar(&queryContextSize, "context-size", 1, "chunks of context on each side")
	queryCmd.Flags().BoolVar(&queryFullDocument, "full-document", false, "include the full parent document")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	text := args[0]

	if retrieverService == nil {
		return errors.New("retriever not configured")
	}

	opts := domain.QueryOptions{
		TopK:         queryTopK,
		WithContext:  queryWithContext,
		ContextSize:  queryContextSize,
		FullDocument: queryFullDocument,
	}
	// A zero threshold still filters (it drops negative scores), so only
	// pass it through when the flag was given.
	if cmd.Flags().Changed("threshold") {
		opts.Threshold = &queryThreshold
	}

	results, err := retrieverService.Query(cmd.Context(), text, opts)
	if err != nil {
		if errors.Is(err, domain.ErrIndexEmpty) {
			cmd.Println("The index is empty. Run 'quarry index' first.")
			return nil
		}
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return outputQueryJSON(cmd, results)
	}

	return outputQueryTable(cmd, results)
}

func outputQueryJSON(cmd *cobra.Command, results []domain.RetrievalResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputQueryTable(cmd *cobra.Command, results []domain.RetrievalResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		title := results[i].Document.Title
		if title == "" {
			title = results[i].Document.ID
		}

		cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, results[i].Score)
		cmd.Printf("      %s#%d\n", results[i].Chunk.DocumentID, results[i].Chunk.Position)

		text := results[i].Chunk.Content
		if results[i].Context != "" {
			text = results[i].Context
		}
		if results[i].Document.Content != "" {
			text = results[i].Document.Content
		}
		if text != "" {
			cmd.Printf("      %s\n", snippet(text, 200))
		}
		cmd.Println()
	}

	return nil
}

// snippet flattens text to a single line and truncates it on a rune
// boundary.
func snippet(text string, maxLen int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= maxLen {
		return flat
	}
	return string(runes[:maxLen]) + "..."
}
