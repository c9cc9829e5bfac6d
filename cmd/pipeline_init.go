package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/profile-enrich/internal/classify"
	"github.com/sells-group/profile-enrich/internal/extract"
	"github.com/sells-group/profile-enrich/internal/pipeline"
	"github.com/sells-group/profile-enrich/internal/store"
	anthropicpkg "github.com/sells-group/profile-enrich/pkg/anthropic"
	"github.com/sells-group/profile-enrich/pkg/jina"
)

// pipelineEnv holds the initialized store, clients, and pipeline needed by
// the run/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the configured run-record store.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initPipeline sets up the store and API clients and builds the Pipeline.
// Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	classifier, err := classify.New(
		classify.WithRestrictedDomains(cfg.Policy.RestrictedDomains),
		classify.WithFirstPartyDomains(cfg.Policy.FirstPartyDomains),
	)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	jinaOpts := []jina.Option{}
	if cfg.Jina.SearchBaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	jinaClient := jina.NewClient(cfg.Jina.Key, jinaOpts...)

	fetcher := extract.NewFetcher(cfg.Fetch)

	p := pipeline.New(pipeline.Options{
		Store:         st,
		Classifier:    classifier,
		Registry:      extract.NewRegistry(fetcher),
		Discoverer:    pipeline.NewDiscoverer(jinaClient, cfg.Jina.MaxResults, cfg.Pipeline.MaxSources),
		Claims:        pipeline.NewClaimExtractor(anthropicClient, cfg.Anthropic),
		Verifier:      pipeline.NewVerifier(anthropicClient, cfg.Anthropic),
		Reader:        jinaClient,
		Config:        cfg.Pipeline,
		MaxConcurrent: cfg.Fetch.MaxConcurrent,
	})

	zap.L().Info("pipeline initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("extract_model", cfg.Anthropic.ExtractModel),
		zap.String("verify_model", cfg.Anthropic.VerifyModel),
	)

	return &pipelineEnv{Store: st, Pipeline: p}, nil
}
