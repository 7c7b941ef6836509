package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:         "project",
	Short:       "Manage projects",
	Long:        `Projects group documents so questions can be scoped to them.`,
	Annotations: servicesAnnotation(),
}

var projectCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectCreate,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE:  runProjectList,
}

var projectGetCmd = &cobra.Command{
	Use:   "get [project-id]",
	Short: "Show a project and its documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectGet,
}

var projectUpdateCmd = &cobra.Command{
	Use:   "update [project-id]",
	Short: "Rename or redescribe a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectUpdate,
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete [project-id]",
	Short: "Delete a project",
	Long:  `Deletes a project and its conversations. Documents are kept.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectDelete,
}

var projectAddCmd = &cobra.Command{
	Use:   "add [project-id] [doc-id...]",
	Short: "Add documents to a project",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runProjectAdd,
}

var projectRemoveCmd = &cobra.Command{
	Use:   "remove [project-id] [doc-id...]",
	Short: "Remove documents from a project",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runProjectRemove,
}

var (
	projectName        string
	projectDescription string
)

func init() {
	projectCreateCmd.Flags().StringVarP(&projectDescription, "description", "d", "", "project description")
	projectUpdateCmd.Flags().StringVar(&projectName, "name", "", "new name")
	projectUpdateCmd.Flags().StringVarP(&projectDescription, "description", "d", "", "new description")

	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectGetCmd)
	projectCmd.AddCommand(projectUpdateCmd)
	projectCmd.AddCommand(projectDeleteCmd)
	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectRemoveCmd)
	rootCmd.AddCommand(projectCmd)
}

func runProjectCreate(cmd *cobra.Command, args []string) error {
	if projectService == nil {
		return notConfigured("project")
	}

	p, err := projectService.Create(commandContext(cmd), args[0], projectDescription)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	cmd.Printf("Project created: %s (%s)\n", p.ID, p.Name)
	return nil
}

func runProjectList(cmd *cobra.Command, _ []string) error {
	if projectService == nil {
		return notConfigured("project")
	}

	projects, err := projectService.List(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	if len(projects) == 0 {
		cmd.Println("No projects.")
		return nil
	}

	for i := range projects {
		cmd.Printf("  %s  %s\n", projects[i].ID, projects[i].Name)
		if projects[i].Description != "" {
			cmd.Printf("    %s\n", projects[i].Description)
		}
	}
	return nil
}

func runProjectGet(cmd *cobra.Command, args []string) error {
	if projectService == nil {
		return notConfigured("project")
	}
	ctx := commandContext(cmd)

	p, err := projectService.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}
	docs, err := projectService.Documents(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("failed to list project documents: %w", err)
	}

	cmd.Printf("Project: %s\n\n", p.ID)
	cmd.Printf("  Name:        %s\n", p.Name)
	if p.Description != "" {
		cmd.Printf("  Description: %s\n", p.Description)
	}
	cmd.Printf("  Created:     %s\n", p.CreatedAt.Format(timeLayout))
	cmd.Printf("\n  Documents (%d):\n", len(docs))
	for i := range docs {
		cmd.Printf("    %s  %s [%s]\n", docs[i].ID, docs[i].Title, docs[i].Status)
	}
	return nil
}

func runProjectUpdate(cmd *cobra.Command, args []string) error {
	if projectService == nil {
		return notConfigured("project")
	}

	p, err := projectService.Update(commandContext(cmd), args[0], projectName, projectDescription)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	cmd.Printf("Project %s updated.\n", p.ID)
	return nil
}

func runProjectDelete(cmd *cobra.Command, args []string) error {
	if projectService == nil {
		return notConfigured("project")
	}

	if err := projectService.Delete(commandContext(cmd), args[0]); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	cmd.Printf("Project %s deleted.\n", args[0])
	return nil
}

func runProjectAdd(cmd *cobra.Command, args []string) error {
	if projectService == nil {
		return notConfigured("project")
	}
	ctx := commandContext(cmd)

	for _, docID := range args[1:] {
		if err := projectService.AddDocument(ctx, args[0], docID); err != nil {
			return fmt.Errorf("failed to add %s: %w", docID, err)
		}
	}

	cmd.Printf("Added %d documents to %s.\n", len(args)-1, args[0])
	return nil
}

func runProjectRemove(cmd *cobra.Command, args []string) error {
	if projectService == nil {
		return notConfigured("project")
	}
	ctx := commandContext(cmd)

	for _, docID := range args[1:] {
		if err := projectService.RemoveDocument(ctx, args[0], docID); err != nil {
			return fmt.Errorf("failed to remove %s: %w", docID, err)
		}
	}

	cmd.Printf("Removed %d documents from %s.\n", len(args)-1, args[0])
	return nil
}
