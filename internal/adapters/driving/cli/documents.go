package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage indexed documents",
	Long:  `List, inspect, remove, or count indexed documents.`,
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsList,
}

var documentsShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsShow,
}

var documentsRemoveCmd = &cobra.Command{
	Use:   "remove [doc-id]",
	Short: "Remove a document and its chunks from the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsRemove,
}

var documentsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show corpus totals",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsCount,
}

var (
	documentsListLimit  int
	documentsListOffset int
	documentsShowText   bool
)

func init() {
	documentsListCmd.Flags().IntVarP(&documentsListLimit, "limit", "n", 0, "maximum documents to list (0 = all)")
	documentsListCmd.Flags().IntVar(&documentsListOffset, "offset", 0, "documents to skip")
	documentsShowCmd.Flags().BoolVar(&documentsShowText, "content", false, "print the document's normalised content")

	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsShowCmd)
	documentsCmd.AddCommand(documentsRemoveCmd)
	documentsCmd.AddCommand(documentsCountCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runDocumentsList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docs, err := documentService.List(cmd.Context(), documentsListLimit, documentsListOffset)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents indexed.")
		return nil
	}

	cmd.Println("Indexed documents:")
	cmd.Println()
	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		if docs[i].Title != "" {
			cmd.Printf("    Title:  %s\n", docs[i].Title)
		}
		cmd.Printf("    Status: %s\n", docs[i].Status)
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentsShow(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docID := args[0]

	doc, err := documentService.Get(cmd.Context(), docID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			cmd.Printf("Document not found: %s\n", docID)
			return nil
		}
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Title:    %s\n", doc.Title)
	cmd.Printf("  Status:   %s\n", doc.Status)
	cmd.Printf("  Hash:     %s\n", doc.ContentHash)
	cmd.Printf("  Created:  %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Indexed:  %s\n", doc.IndexedAt.Format("2006-01-02 15:04:05"))

	if len(doc.Metadata) > 0 {
		cmd.Println("\n  Metadata:")
		for k, v := range doc.Metadata {
			cmd.Printf("    %s: %v\n", k, v)
		}
	}

	if documentsShowText {
		cmd.Println()
		cmd.Println(doc.Content)
	}

	return nil
}

func runDocumentsRemove(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docID := args[0]

	if err := documentService.Remove(cmd.Context(), docID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			cmd.Printf("Document not found: %s\n", docID)
			return nil
		}
		return fmt.Errorf("failed to remove document: %w", err)
	}

	cmd.Printf("Document %s removed from index.\n", docID)
	return nil
}

func runDocumentsCount(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	stats, err := documentService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get corpus stats: %w", err)
	}

	cmd.Printf("Documents: %d\n", stats.Documents)
	cmd.Printf("Chunks:    %d\n", stats.Chunks)
	return nil
}
