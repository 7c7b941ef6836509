package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui"
)

// runProgram runs the bubbletea program for an app.
var runProgram = func(app *tui.App) error {
	return app.Run()
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal user interface.

Ask questions and follow up within a conversation, open the cited
documents and browse the ingested library with its chunks.

Controls:
  ↑/k, ↓/j - Navigate
  Enter    - Ask / Select
  n        - Follow-up question
  r        - New conversation
  o        - Open the selected source
  Esc      - Back
  q        - Quit`,
	Annotations: servicesAnnotation(),
	RunE:        runTUI,
}

func init() {
	tuiCmd.Flags().StringP("project", "p", "", "scope questions to a project")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			err = fmt.Errorf("panic in TUI: %v", r)
		}
	}()

	if queryService == nil {
		return notConfigured("query")
	}
	if documentService == nil {
		return notConfigured("document")
	}

	projectID, _ := cmd.Flags().GetString("project")
	if projectID != "" && projectService != nil {
		if _, err := projectService.Get(commandContext(cmd), projectID); err != nil {
			return fmt.Errorf("failed to get project: %w", err)
		}
	}

	app, err := tui.NewApp(&tui.Ports{
		Query:     queryService,
		Documents: documentService,
		ProjectID: projectID,
	})
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(commandContext(cmd))

	if err := runProgram(app); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
