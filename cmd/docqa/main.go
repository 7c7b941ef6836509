package main

import (
	"context"
	"os"

	"github.com/custodia-labs/docqa/internal/adapters/driving/cli"
	"github.com/custodia-labs/docqa/internal/app"
	"github.com/custodia-labs/docqa/internal/logger"
)

func main() {
	opts := app.Options{DotEnv: app.DefaultDotEnv()}

	settings, err := app.NewSettingsService(opts)
	if err != nil {
		logger.Warn("config: %v", err)
	} else {
		cli.SetSettingsService(settings)
	}

	cli.SetBootstrap(func(ctx context.Context) (*cli.Services, func() error, error) {
		a, err := app.New(ctx, opts)
		if err != nil {
			return nil, nil, err
		}
		for _, w := range a.Warnings {
			logger.Warn("%s", w)
		}

		return &cli.Services{
			Query:         a.Query,
			Ingest:        a.Ingest,
			Embeddings:    a.Embeddings,
			Documents:     a.Documents,
			Projects:      a.Projects,
			Conversations: a.Conversations,
			Cache:         a.Cache,
			Settings:      a.SettingsService,
			NewLoader:     a.Loader,
		}, a.Close, nil
	})

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
