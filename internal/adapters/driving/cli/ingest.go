package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/loader"
	"github.com/custodia-labs/docqa/internal/logger"
)

var (
	ingestProject string
	ingestTitle   string
	ingestText    string
	ingestWait    bool
	ingestWatch   bool
)

// watchDebounce collapses bursts of writes to the same file.
const watchDebounce = 500 * time.Millisecond

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Ingest files or directories",
	Long: `Loads each file, extracts its text and queues it for chunking and
embedding. Directories are walked recursively; paths matched by .gitignore
or .docqaignore, dotfiles and vendored files are skipped.

Use --text to ingest a string directly, --wait to block until every
document is ready and --watch to keep a directory in sync.`,
	Example: `  docqa ingest notes/ --project research --wait
  docqa ingest --title "Meeting" --text "We agreed to ship on Friday."
  docqa ingest docs/ --watch`,
	Annotations: servicesAnnotation(),
	RunE:        runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestProject, "project", "p", "", "link ingested documents to a project")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "title for --text or a single file")
	ingestCmd.Flags().StringVar(&ingestText, "text", "", "ingest this text instead of files")
	ingestCmd.Flags().BoolVarP(&ingestWait, "wait", "w", false, "wait until documents are processed")
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "watch directories and re-ingest changed files")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return notConfigured("ingest")
	}
	if ingestText == "" && len(args) == 0 {
		return errors.New("nothing to ingest: pass paths or --text")
	}
	ctx := commandContext(cmd)

	var submitted []*domain.Document
	if ingestText != "" {
		doc, err := ingestService.Submit(ctx, driving.IngestRequest{
			Title:     ingestTitle,
			Content:   ingestText,
			ProjectID: ingestProject,
		})
		if err != nil {
			return fmt.Errorf("failed to ingest text: %w", err)
		}
		cmd.Printf("Queued %s (%s)\n", doc.ID, doc.Title)
		submitted = append(submitted, doc)
	}

	if len(args) > 0 {
		if newLoader == nil {
			return notConfigured("loader")
		}
		l := newLoader(ingestProject)
		for _, path := range args {
			docs, err := ingestPath(ctx, cmd, l, path)
			submitted = append(submitted, docs...)
			if err != nil {
				return err
			}
		}
	}

	if ingestWait {
		if err := waitForDocuments(ctx, cmd, submitted); err != nil {
			return err
		}
	}

	if ingestWatch {
		return watchPaths(cmd, args)
	}
	return nil
}

func ingestPath(ctx context.Context, cmd *cobra.Command, l *loader.Loader, path string) ([]*domain.Document, error) {
	var docs []*domain.Document
	skipped := 0

	err := l.Walk(ctx, path, func(p string, req *driving.IngestRequest, err error) error {
		if errors.Is(err, loader.ErrSkipped) {
			logger.Debug("skip %s: %v", p, err)
			skipped++
			return nil
		}
		if err != nil {
			cmd.PrintErrf("  %s: %v\n", p, err)
			return nil
		}
		if ingestTitle != "" {
			req.Title = ingestTitle
		}
		doc, err := ingestService.Submit(ctx, *req)
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", p, err)
		}
		cmd.Printf("Queued %s (%s)\n", doc.ID, p)
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return docs, err
	}

	if skipped > 0 {
		cmd.Printf("Skipped %d files in %s\n", skipped, path)
	}
	return docs, nil
}

func waitForDocuments(ctx context.Context, cmd *cobra.Command, docs []*domain.Document) error {
	var failed int
	for _, doc := range docs {
		done, err := ingestService.Wait(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("failed waiting for %s: %w", doc.ID, err)
		}
		if done.Status == domain.DocumentStatusError {
			failed++
			cmd.Printf("  %s %s: %s\n", done.ID, done.Status, done.Error)
			continue
		}
		cmd.Printf("  %s %s\n", done.ID, done.Status)
	}
	cmd.Printf("%d ready, %d failed\n", len(docs)-failed, failed)
	return nil
}

func watchPaths(cmd *cobra.Command, paths []string) error {
	if documentService == nil {
		return notConfigured("document")
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncer, err := newWatchSync(ctx, documentService, ingestService, newLoader(ingestProject))
	if err != nil {
		return err
	}

	changes := make(chan loader.Change)
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}
		w, err := loader.NewWatcher(path)
		if err != nil {
			return err
		}
		defer w.Close()
		go func() {
			for c := range w.Changes(ctx) {
				select {
				case changes <- c:
				case <-ctx.Done():
					return
				}
			}
		}()
		cmd.Printf("Watching %s\n", path)
	}

	pending := make(map[string]loader.ChangeType)
	ticker := time.NewTicker(watchDebounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cmd.Println("Stopped watching.")
			return nil
		case c := <-changes:
			pending[c.Path] = mergeChange(pending[c.Path], c.Type)
		case <-ticker.C:
			for path, kind := range pending {
				msg, err := syncer.apply(ctx, loader.Change{Type: kind, Path: path})
				if err != nil {
					cmd.PrintErrf("  %s: %v\n", path, err)
				} else if msg != "" {
					cmd.Println(msg)
				}
			}
			clear(pending)
		}
	}
}

// mergeChange folds a new event into a pending one. A file created and
// then written within the window is still a creation.
func mergeChange(prev, next loader.ChangeType) loader.ChangeType {
	if prev == loader.ChangeCreated && next == loader.ChangeUpdated {
		return prev
	}
	return next
}

// watchSync keeps documents in step with files on disk. Documents are keyed
// by the absolute path the loader records as their URI.
type watchSync struct {
	docs   driving.DocumentService
	ingest driving.IngestService
	loader *loader.Loader
	byPath map[string]string
}

func newWatchSync(ctx context.Context, docs driving.DocumentService, ingest driving.IngestService, l *loader.Loader) (*watchSync, error) {
	existing, err := docs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	s := &watchSync{docs: docs, ingest: ingest, loader: l, byPath: make(map[string]string)}
	for i := range existing {
		if existing[i].URI != "" {
			s.byPath[filepath.Clean(existing[i].URI)] = existing[i].ID
		}
	}
	return s, nil
}

// apply handles one change and returns a line describing what happened.
func (s *watchSync) apply(ctx context.Context, c loader.Change) (string, error) {
	path := filepath.Clean(c.Path)
	oldID, known := s.byPath[path]

	if known {
		if err := s.docs.Delete(ctx, oldID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("failed to remove previous version: %w", err)
		}
		delete(s.byPath, path)
	}

	if c.Type == loader.ChangeDeleted {
		if !known {
			return "", nil
		}
		return fmt.Sprintf("Removed %s (%s)", oldID, path), nil
	}

	req, err := s.loader.LoadFile(ctx, path)
	if errors.Is(err, loader.ErrSkipped) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	doc, err := s.ingest.Submit(ctx, *req)
	if err != nil {
		return "", err
	}
	s.byPath[path] = doc.ID
	return fmt.Sprintf("Queued %s (%s %s)", doc.ID, c.Type, path), nil
}
