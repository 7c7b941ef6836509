package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

var documentCmd = &cobra.Command{
	Use:         "document",
	Aliases:     []string{"doc"},
	Short:       "Manage ingested documents",
	Long:        `List, inspect, delete or reprocess ingested documents.`,
	Annotations: servicesAnnotation(),
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [doc-id]",
	Short: "Print document content",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentChunksCmd = &cobra.Command{
	Use:   "chunks [doc-id]",
	Short: "Show a document's chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentChunks,
}

var documentStatusCmd = &cobra.Command{
	Use:   "status [doc-id]",
	Short: "Show ingestion status",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentStatus,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document",
	Long:  `Removes a document with its chunks and embeddings and drops affected cached answers.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

var documentReprocessCmd = &cobra.Command{
	Use:   "reprocess [doc-id]",
	Short: "Re-chunk and re-embed a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentReprocess,
}

var documentChunksFull bool

func init() {
	documentChunksCmd.Flags().BoolVar(&documentChunksFull, "full", false, "print full chunk text")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentChunksCmd)
	documentCmd.AddCommand(documentStatusCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	documentCmd.AddCommand(documentReprocessCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return notConfigured("document")
	}

	docs, err := documentService.List(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	cmd.Println("Documents:")
	cmd.Println()
	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    Title: %s\n", docs[i].Title)
		cmd.Printf("    Status: %s\n", docs[i].Status)
		if docs[i].URI != "" {
			cmd.Printf("    URI: %s\n", docs[i].URI)
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return notConfigured("document")
	}

	doc, err := documentService.Get(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Title:    %s\n", doc.Title)
	cmd.Printf("  Type:     %s\n", doc.SourceType)
	cmd.Printf("  Status:   %s\n", doc.Status)
	if doc.URI != "" {
		cmd.Printf("  URI:      %s\n", doc.URI)
	}
	cmd.Printf("  Length:   %d characters\n", len([]rune(doc.Content)))
	cmd.Printf("  Created:  %s\n", doc.CreatedAt.Format(timeLayout))
	cmd.Printf("  Updated:  %s\n", doc.UpdatedAt.Format(timeLayout))

	src := doc.Source
	if len(src.Pages) > 0 {
		cmd.Printf("  Pages:    %d\n", len(src.Pages))
	}
	if len(src.Segments) > 0 {
		cmd.Printf("  Segments: %d\n", len(src.Segments))
	}
	if src.Duration != nil {
		cmd.Printf("  Duration: %s\n", formatTimestamp(*src.Duration))
	}
	if len(src.Headings) > 0 {
		cmd.Println("\n  Headings:")
		for _, h := range src.Headings {
			cmd.Printf("    %s\n", h)
		}
	}
	if doc.Error != "" {
		cmd.Printf("\n  Error: %s\n", doc.Error)
	}
	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return notConfigured("document")
	}

	doc, err := documentService.Get(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document content: %w", err)
	}

	cmd.Println(doc.Content)
	return nil
}

func runDocumentChunks(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return notConfigured("document")
	}

	chunks, err := documentService.GetChunks(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to get chunks: %w", err)
	}

	if len(chunks) == 0 {
		cmd.Println("No chunks.")
		return nil
	}

	for i := range chunks {
		c := &chunks[i]
		cmd.Printf("#%d [%d:%d]", c.Index, c.StartChar, c.EndChar)
		switch {
		case c.PageNum != nil:
			cmd.Printf(" page %d", *c.PageNum)
		case c.TimestampStart != nil:
			cmd.Printf(" %s", formatTimestamp(*c.TimestampStart))
		}
		if c.HeadingPath != "" {
			cmd.Printf(" %s", c.HeadingPath)
		}
		cmd.Println()

		text := c.Text
		if !documentChunksFull {
			text = snippet(text, 120)
		}
		cmd.Printf("  %s\n\n", text)
	}
	cmd.Printf("Total: %d chunks\n", len(chunks))
	return nil
}

func runDocumentStatus(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return notConfigured("ingest")
	}

	doc, err := ingestService.Status(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	cmd.Printf("%s: %s\n", doc.ID, doc.Status)
	if doc.Error != "" {
		cmd.Printf("  Error: %s\n", doc.Error)
	}
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return notConfigured("document")
	}

	if err := documentService.Delete(commandContext(cmd), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Document %s deleted.\n", args[0])
	return nil
}

func runDocumentReprocess(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return notConfigured("ingest")
	}

	cmd.Printf("Reprocessing document %s...\n", args[0])

	if err := ingestService.Reprocess(commandContext(cmd), args[0]); err != nil {
		return fmt.Errorf("failed to reprocess document: %w", err)
	}

	cmd.Printf("Document %s queued for reprocessing.\n", args[0])
	return nil
}
