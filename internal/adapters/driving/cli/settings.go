package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:     "config",
	Aliases: []string{"settings"},
	Short:   "Manage configuration",
	Long: `View and change docqa configuration.

Settings are read from ~/.docqa/config.toml and may be overridden by
DOCQA_* environment variables, for example DOCQA_RETRIEVAL_TOP_K=8.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:     "set [key] [value]",
	Short:   "Set a configuration value",
	Example: "  docqa config set retrieval.top_k 8\n  docqa config set cache.query_ttl 30m",
	Args:    cobra.ExactArgs(2),
	RunE:    runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List configuration keys",
	Args:  cobra.NoArgs,
	RunE:  runSettingsKeys,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure the embedding provider",
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure the generation provider",
	RunE:  runSettingsLLM,
}

// settingsInput is read by the interactive commands.
var settingsInput io.Reader = os.Stdin

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Showing defaults. Run 'docqa config set' to fix configuration issues.")
		cmd.Println()
		d := settingsService.GetDefaults()
		settings = &d
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Chunking]")
	cmd.Printf("  Chunk size: %d\n", settings.Chunking.ChunkSize)
	cmd.Printf("  Overlap: %d\n", settings.Chunking.Overlap)
	cmd.Printf("  Max chunks per document: %d\n", settings.Chunking.MaxChunksPerDoc)
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	cmd.Printf("  Dimension: %d\n", settings.Embedding.Dimension)
	if settings.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	printAPIKey(cmd, settings.Embedding.Provider, settings.Embedding.APIKey)
	cmd.Printf("  Status: %s\n", configuredLabel(settings.Embedding.IsConfigured()))
	cmd.Println()

	cmd.Println("[LLM]")
	if settings.LLM.Provider == "" {
		cmd.Println("  Provider: (none, answers are extracted from context)")
	} else {
		cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
		cmd.Printf("  Model: %s\n", settings.LLM.Model)
		if settings.LLM.BaseURL != "" {
			cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
		}
		printAPIKey(cmd, settings.LLM.Provider, settings.LLM.APIKey)
		cmd.Printf("  Timeout: %s\n", settings.LLM.Timeout)
		cmd.Printf("  Status: %s\n", configuredLabel(settings.LLM.IsConfigured()))
	}
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  Top K: %d\n", settings.Retrieval.TopK)
	cmd.Printf("  Similarity threshold: %.2f\n", settings.Retrieval.SimilarityThreshold)
	cmd.Printf("  History turns: %d\n", settings.Retrieval.HistoryTurns)
	if settings.Rerank.Enabled {
		cmd.Printf("  Rerank: alpha %.2f, beta %.2f, gamma %.2f\n",
			settings.Rerank.Alpha, settings.Rerank.Beta, settings.Rerank.Gamma)
	} else {
		cmd.Println("  Rerank: disabled")
	}
	cmd.Println()

	cmd.Println("[Cache]")
	cmd.Printf("  Backend: %s\n", settings.Cache.Backend)
	if settings.Cache.RedisURL != "" {
		cmd.Printf("  Redis URL: %s\n", settings.Cache.RedisURL)
	}
	cmd.Printf("  Query TTL: %s\n", settings.Cache.QueryTTL)
	cmd.Printf("  Embedding TTL: %s\n", settings.Cache.EmbeddingTTL)
	cmd.Println()

	cmd.Println("[Workers]")
	cmd.Printf("  Pool size: %d\n", settings.Workers.PoolSize)
	cmd.Printf("  Queue size: %d\n", settings.Workers.QueueSize)

	if settings.DataDir != "" {
		cmd.Println()
		cmd.Printf("Data directory: %s\n", settings.DataDir)
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	if err := settingsService.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}

	cmd.Printf("%s = %s\n", args[0], displayValue(args[0], args[1]))
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	for _, key := range settingsService.Keys() {
		cmd.Println(key)
	}
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return configureProvider(cmd, bufio.NewReader(settingsInput), "embedding",
		domain.AllEmbeddingProviders(), domain.DefaultEmbeddingModels())
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return configureProvider(cmd, bufio.NewReader(settingsInput), "llm",
		domain.AllLLMProviders(), domain.DefaultLLMModels())
}

// configureProvider prompts for provider, model and API key and writes them
// under section.
func configureProvider(
	cmd *cobra.Command,
	reader *bufio.Reader,
	section string,
	providers []domain.AIProvider,
	defaults map[domain.AIProvider]string,
) error {
	cmd.Printf("Select %s provider\n", section)
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selected := providers[idx-1]

	defaultModel := defaults[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selected.RequiresAPIKey() {
		cmd.Print("Enter API key (blank to use the environment): ")
		apiKey = readPassword(reader)
		cmd.Println()
	}

	if err := settingsService.Set(section+".provider", selected.String()); err != nil {
		return fmt.Errorf("failed to set provider: %w", err)
	}
	if err := settingsService.Set(section+".model", model); err != nil {
		return fmt.Errorf("failed to set model: %w", err)
	}
	if apiKey != "" {
		if err := settingsService.Set(section+".api_key", apiKey); err != nil {
			return fmt.Errorf("failed to set API key: %w", err)
		}
	}

	cmd.Printf("%s provider configured: %s (%s)\n", section, selected.Description(), model)
	return nil
}

func printAPIKey(cmd *cobra.Command, provider domain.AIProvider, key string) {
	if !provider.RequiresAPIKey() {
		return
	}
	if key == "" {
		cmd.Println("  API Key: (not set)")
		return
	}
	cmd.Printf("  API Key: %s\n", maskAPIKey(key))
}

func configuredLabel(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func displayValue(key, value string) string {
	if strings.HasSuffix(key, "api_key") {
		return maskAPIKey(value)
	}
	return value
}

// Helper functions.

func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n') //nolint:errcheck // empty input selects the default
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

func readPassword(reader *bufio.Reader) string {
	if f, ok := settingsInput.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
