package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:         "cache",
	Short:       "Inspect and clear the cache",
	Annotations: servicesAnnotation(),
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the cache backend",
	Args:  cobra.NoArgs,
	RunE:  runCacheHealth,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached entries",
	Long: `Removes cached entries. Without --pattern every entry is removed.

Patterns use glob syntax against keys of the form namespace:scope:hash,
for example "query:*" or "embedding:doc-123:*".`,
	Args: cobra.NoArgs,
	RunE: runCacheClear,
}

var (
	cachePattern string
	cacheJSON    bool
)

func init() {
	cacheStatsCmd.Flags().BoolVar(&cacheJSON, "json", false, "output statistics as JSON")
	cacheClearCmd.Flags().StringVar(&cachePattern, "pattern", "", "only remove keys matching this glob")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheHealthCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	if cacheAdmin == nil {
		return notConfigured("cache")
	}

	stats := cacheAdmin.Stats(commandContext(cmd))
	if cacheJSON {
		return printJSON(cmd, stats)
	}

	cmd.Printf("Backend:  %s\n", stats.Backend)
	if stats.Degraded {
		cmd.Println("Degraded: yes (serving from memory)")
	}
	cmd.Printf("Keys:     %d\n", stats.Keys)
	cmd.Printf("Hits:     %d\n", stats.Hits)
	cmd.Printf("Misses:   %d\n", stats.Misses)
	cmd.Printf("Hit rate: %s\n", stats.HitRate())
	cmd.Printf("Sets:     %d\n", stats.Sets)
	cmd.Printf("Deletes:  %d\n", stats.Deletes)
	return nil
}

func runCacheHealth(cmd *cobra.Command, _ []string) error {
	if cacheAdmin == nil {
		return notConfigured("cache")
	}

	h := cacheAdmin.Health(commandContext(cmd))
	st := newStyler(cmd.OutOrStdout())

	state := "healthy"
	switch {
	case h.Degraded:
		state = "degraded"
	case !h.Healthy:
		state = "unhealthy"
	}
	cmd.Printf("%s: %s\n", h.Backend, st.status(state, h.Healthy, h.Degraded))
	if h.Message != "" {
		cmd.Printf("  %s\n", h.Message)
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	if cacheAdmin == nil {
		return notConfigured("cache")
	}

	n, err := cacheAdmin.Clear(commandContext(cmd), cachePattern)
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	cmd.Printf("Removed %d entries.\n", n)
	return nil
}
