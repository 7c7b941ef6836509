// Package cli provides the docqa command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/loader"
	"github.com/custodia-labs/docqa/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services holds the driving ports the commands use. Any field may be nil;
// a command whose service is missing fails with "x service not configured".
type Services struct {
	Query         driving.QueryService
	Ingest        driving.IngestService
	Embeddings    driving.EmbeddingAdmin
	Documents     driving.DocumentService
	Projects      driving.ProjectService
	Conversations driving.ConversationService
	Cache         driving.CacheAdmin
	Settings      driving.SettingsService

	// NewLoader returns a file loader linking documents to a project.
	NewLoader func(projectID string) *loader.Loader
}

// BootstrapFunc builds the services and returns a function releasing them.
type BootstrapFunc func(ctx context.Context) (*Services, func() error, error)

var (
	queryService        driving.QueryService
	ingestService       driving.IngestService
	embeddingAdmin      driving.EmbeddingAdmin
	documentService     driving.DocumentService
	projectService      driving.ProjectService
	conversationService driving.ConversationService
	cacheAdmin          driving.CacheAdmin
	settingsService     driving.SettingsService
	newLoader           func(projectID string) *loader.Loader

	bootstrap    BootstrapFunc
	release      func() error
	bootstrapErr error
	verbose      bool
)

// needsServices marks commands that require the full application.
const needsServices = "needs-services"

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about your documents",
	Long: `docqa ingests documents, splits them into chunks, embeds them and
answers questions grounded in the retrieved chunks, with citations.`,
	SilenceUsage:      true,
	PersistentPreRunE: preRun,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print pipeline diagnostics to stderr")
}

// SetServices installs services directly. The bootstrap is not run for
// services installed this way.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	queryService = s.Query
	ingestService = s.Ingest
	embeddingAdmin = s.Embeddings
	documentService = s.Documents
	projectService = s.Projects
	conversationService = s.Conversations
	cacheAdmin = s.Cache
	newLoader = s.NewLoader
	if s.Settings != nil {
		settingsService = s.Settings
	}
}

// SetSettingsService installs the settings service, which needs no
// bootstrap.
func SetSettingsService(s driving.SettingsService) {
	settingsService = s
}

// SetBootstrap registers the function that builds services on first use.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// Execute runs the root command and releases bootstrapped services.
func Execute() error {
	err := rootCmd.Execute()
	if release != nil {
		if cerr := release(); cerr != nil {
			logger.Warn("shutdown: %v", cerr)
		}
		release = nil
	}
	return err
}

func preRun(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if !requiresServices(cmd) || bootstrap == nil || queryService != nil {
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	services, closeFn, err := bootstrap(ctx)
	if err != nil {
		bootstrapErr = err
		return fmt.Errorf("failed to start: %w", err)
	}
	SetServices(services)
	release = closeFn
	return nil
}

func requiresServices(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if _, ok := c.Annotations[needsServices]; ok {
			return true
		}
	}
	return false
}

func servicesAnnotation() map[string]string {
	return map[string]string{needsServices: "true"}
}

// notConfigured reports a missing service, with the startup failure when
// there was one.
func notConfigured(name string) error {
	err := errors.New(name + " service not configured")
	if bootstrapErr != nil {
		return fmt.Errorf("%w: %w", err, bootstrapErr)
	}
	return err
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
