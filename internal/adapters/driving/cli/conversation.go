package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var conversationCmd = &cobra.Command{
	Use:         "conversation",
	Aliases:     []string{"conv"},
	Short:       "Inspect conversation history",
	Annotations: servicesAnnotation(),
}

var conversationListCmd = &cobra.Command{
	Use:   "list [project-id]",
	Short: "List a project's conversations",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationList,
}

var conversationShowCmd = &cobra.Command{
	Use:   "show [conversation-id]",
	Short: "Print a conversation's messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationShow,
}

var conversationLimit int

func init() {
	conversationShowCmd.Flags().IntVarP(&conversationLimit, "limit", "n", 50, "show at most this many recent messages")

	conversationCmd.AddCommand(conversationListCmd)
	conversationCmd.AddCommand(conversationShowCmd)
	rootCmd.AddCommand(conversationCmd)
}

func runConversationList(cmd *cobra.Command, args []string) error {
	if conversationService == nil {
		return notConfigured("conversation")
	}

	convs, err := conversationService.List(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	if len(convs) == 0 {
		cmd.Println("No conversations.")
		return nil
	}

	for i := range convs {
		cmd.Printf("  %s  %s  (%s)\n", convs[i].ID, convs[i].Title, convs[i].UpdatedAt.Format(timeLayout))
	}
	return nil
}

func runConversationShow(cmd *cobra.Command, args []string) error {
	if conversationService == nil {
		return notConfigured("conversation")
	}
	ctx := commandContext(cmd)

	conv, err := conversationService.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get conversation: %w", err)
	}
	messages, err := conversationService.History(ctx, conv.ID, conversationLimit)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}

	st := newStyler(cmd.OutOrStdout())
	cmd.Println(st.title(conv.Title))
	cmd.Println()
	for i := range messages {
		m := &messages[i]
		cmd.Printf("%s %s\n", st.label(m.CreatedAt.Format(timeLayout)), m.Role.Label())
		cmd.Println(st.answer(m.Content))
		if m.Role == domain.RoleAssistant {
			for _, c := range m.Citations {
				cmd.Printf("    [%d] %s\n", c.ID, c.DocumentTitle)
			}
			if m.Model != "" {
				cmd.Printf("    %s\n", st.label(fmt.Sprintf("%s · %d tokens", m.Model, m.TokensUsed)))
			}
		}
		cmd.Println()
	}
	return nil
}
