package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/atelierhq/easelflow/pkg/flow"
	"github.com/atelierhq/easelflow/pkg/flow/config"
	"github.com/atelierhq/easelflow/pkg/flow/observability"
	"github.com/atelierhq/easelflow/pkg/flow/project"
	"github.com/atelierhq/easelflow/pkg/flow/provider"
	"github.com/atelierhq/easelflow/pkg/flow/storage"
)

// openBackend selects the project store from the configured driver.
func openBackend(ctx context.Context, settings config.Settings) (project.Store, error) {
	switch settings.DataDriver {
	case "", "memory":
		return project.NewMemoryStore(), nil
	case "sqlite":
		path := settings.DataPath
		if path == "" {
			path = "easelflow.db"
		}
		return project.NewSQLiteStore(path)
	case "postgres":
		if settings.DataDSN == "" {
			return nil, fmt.Errorf("postgres driver requires data.dsn")
		}
		return project.NewPostgresStore(ctx, settings.DataDSN)
	default:
		return nil, fmt.Errorf("unknown data driver %q", settings.DataDriver)
	}
}

// engineOptions builds the shared engine options from provider settings.
// Providers without configuration are left unset; runs that need them
// fail with ErrNoProvider instead of failing at startup.
func engineOptions(settings config.Settings, logger *slog.Logger) ([]flow.EngineOption, error) {
	opts := []flow.EngineOption{
		flow.WithLogger(logger),
		flow.WithMetrics(observability.NewRecorder()),
		flow.WithTracing(observability.NewSpanManager()),
	}

	if settings.ImageBaseURL != "" {
		var copts []provider.ClientOption
		if settings.ImageAPIKey != "" {
			copts = append(copts, provider.WithAPIKey(settings.ImageAPIKey))
		}
		if settings.ImageModel != "" {
			copts = append(copts, provider.WithModel(settings.ImageModel))
		}
		opts = append(opts, flow.WithImageGenerator(provider.NewHTTPImageClient(settings.ImageBaseURL, copts...)))
	}

	if settings.VideoBaseURL != "" {
		var copts []provider.ClientOption
		if settings.VideoAPIKey != "" {
			copts = append(copts, provider.WithAPIKey(settings.VideoAPIKey))
		}
		if settings.VideoModel != "" {
			copts = append(copts, provider.WithModel(settings.VideoModel))
		}
		opts = append(opts, flow.WithVideoGenerator(provider.NewHTTPVideoClient(settings.VideoBaseURL, copts...)))
	}

	if settings.TextAPIKey != "" {
		oopts := []openai.Option{openai.WithToken(settings.TextAPIKey)}
		if settings.TextModel != "" {
			oopts = append(oopts, openai.WithModel(settings.TextModel))
		}
		if settings.TextBaseURL != "" {
			oopts = append(oopts, openai.WithBaseURL(settings.TextBaseURL))
		}
		model, err := openai.New(oopts...)
		if err != nil {
			return nil, fmt.Errorf("text provider: %w", err)
		}
		opts = append(opts, flow.WithTextGenerator(provider.NewLLMTextGenerator(model)))
	}

	if settings.StorageEndpoint != "" {
		var uopts []storage.UploaderOption
		if settings.StoragePublicBase != "" {
			uopts = append(uopts, storage.WithPublicBaseURL(settings.StoragePublicBase))
		}
		opts = append(opts, flow.WithUploader(storage.NewHTTPUploader(settings.StorageEndpoint, uopts...)))
	}

	if settings.BatchConcurrency > 0 {
		opts = append(opts, flow.WithBatchConcurrency(settings.BatchConcurrency))
	}
	return opts, nil
}
