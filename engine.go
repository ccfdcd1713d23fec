// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package machinerag wires configuration, AI services, the vector store and
// the live data resolvers into an Engine that ingests documents and answers
// questions about industrial machines.
package machinerag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/machinerag/ai"
	"github.com/poiesic/machinerag/ai/mock"
	"github.com/poiesic/machinerag/ai/openai"
	"github.com/poiesic/machinerag/alerts"
	"github.com/poiesic/machinerag/chunker"
	"github.com/poiesic/machinerag/config"
	"github.com/poiesic/machinerag/core"
	"github.com/poiesic/machinerag/ingestion"
	"github.com/poiesic/machinerag/query"
	"github.com/poiesic/machinerag/search"
	"github.com/poiesic/machinerag/storage"
	"github.com/poiesic/machinerag/storage/badger"
	"github.com/poiesic/machinerag/storage/chromem"
	"github.com/poiesic/machinerag/timeseries"
)

// Engine owns the long lived resources of one machinerag instance.
type Engine struct {
	cfg      *config.Config
	store    storage.VectorStore
	provider ai.AIProvider
	series   *timeseries.SQLStore
	alerts   alerts.Resolver
	metric   storage.Metric
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	provider ai.AIProvider
	store    storage.VectorStore
	logger   *slog.Logger
}

// WithProvider uses provider instead of building one from the ai section.
// The Engine closes it on Close.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithVectorStore uses store instead of opening the configured backend.
// The Engine closes it on Close.
func WithVectorStore(store storage.VectorStore) EngineOption {
	return func(o *engineOptions) {
		o.store = store
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// NewEngine validates cfg, opens every configured resource and ensures the
// vector collection exists.
func NewEngine(cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	options := &engineOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	metric, err := storage.ParseMetric(cfg.Storage.Metric)
	if err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, metric: metric, logger: options.logger}

	e.provider = options.provider
	if e.provider == nil {
		if e.provider, err = newProvider(cfg); err != nil {
			return nil, err
		}
	}

	e.store = options.store
	if e.store == nil {
		if e.store, err = openStore(cfg.Storage); err != nil {
			e.Close()
			return nil, err
		}
	}

	dim := e.provider.Embedder().Dimension()
	if err := e.store.EnsureCollection(context.Background(), cfg.Storage.Collection, dim, metric); err != nil {
		e.Close()
		return nil, err
	}

	if cfg.TimeSeries.Path != "" {
		if e.series, err = timeseries.OpenSQLStore(cfg.TimeSeries.Path); err != nil {
			e.Close()
			return nil, err
		}
	}

	if cfg.Alerts.BaseURL != "" {
		client, err := alerts.NewClient(cfg.Alerts.BaseURL,
			alerts.WithAPIKey(cfg.Alerts.APIKey),
			alerts.WithTimeout(cfg.Alerts.Timeout))
		if err != nil {
			e.Close()
			return nil, err
		}
		e.alerts = client
	}

	return e, nil
}

func newProvider(cfg *config.Config) (ai.AIProvider, error) {
	aiCfg := cfg.AIConfig()
	if cfg.AI.Provider != config.ProviderMock {
		return openai.NewProvider(aiCfg)
	}
	aiCfg.Normalize()
	loc, err := aiCfg.Location()
	if err != nil {
		return nil, err
	}
	return mock.NewMockProviderWithServices(
		mock.NewMockEmbedderWithDimension(aiCfg.Dimension),
		mock.NewSystemEchoCompleter(),
		mock.NewRuleClassifier(loc),
	), nil
}

func openStore(cfg config.StorageConfig) (storage.VectorStore, error) {
	switch cfg.Backend {
	case config.BackendChromem:
		path := cfg.Path
		if cfg.InMemory {
			path = ""
		}
		return chromem.Open(path, cfg.Compress)
	default:
		return badger.Open(cfg.Path, cfg.InMemory)
	}
}

// Close releases every resource. It is safe to call on a partially
// constructed Engine.
func (e *Engine) Close() error {
	var errs []error
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if e.series != nil {
		if err := e.series.Close(); err != nil {
			e.logger.Error("error closing time-series store", "err", err)
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.Error("error closing vector store", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Provider returns the AI provider.
func (e *Engine) Provider() ai.AIProvider {
	return e.provider
}

// VectorStore returns the vector store.
func (e *Engine) VectorStore() storage.VectorStore {
	return e.store
}

// SeriesStore returns the time-series store, or nil when none is configured.
func (e *Engine) SeriesStore() *timeseries.SQLStore {
	return e.series
}

// AlertResolver returns the raw alert client, or nil when none is configured.
// Errors are returned as is; the orchestrator wraps it to degrade.
func (e *Engine) AlertResolver() alerts.Resolver {
	return e.alerts
}

// NewIngestionPipeline creates a pipeline configured from the ingestion
// section. opts are applied after the configured ones.
func (e *Engine) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	in := e.cfg.Ingestion
	ch, err := chunker.New(chunker.WithWindow(in.MinTokens, in.MaxTokens, in.OverlapTokens))
	if err != nil {
		return nil, err
	}

	base := []ingestion.Option{
		ingestion.WithLogger(e.logger.With("component", "ingestion")),
		ingestion.WithChunker(ch),
		ingestion.WithPoolSize(in.PoolSize),
		ingestion.WithParentChars(in.ParentChars),
		ingestion.WithBatchSize(in.BatchSize),
		ingestion.WithMetric(e.metric),
		ingestion.WithFetchTimeout(in.FetchTimeout),
	}
	if len(in.ReferenceExtensions) > 0 {
		base = append(base, ingestion.WithReferenceExtensions(in.ReferenceExtensions...))
	}
	return ingestion.NewPipeline(e.provider.Embedder(), e.store, e.cfg.Storage.Collection, append(base, opts...)...)
}

// Ingest runs one ingestion pass over sources.
func (e *Engine) Ingest(ctx context.Context, sources ...string) (ingestion.Result, error) {
	p, err := e.NewIngestionPipeline()
	if err != nil {
		return ingestion.Result{}, err
	}
	defer p.Release()
	return p.Ingest(ctx, sources...)
}

// NewRetriever creates a retriever over the configured collection.
func (e *Engine) NewRetriever(opts ...search.Option) (*search.Retriever, error) {
	base := []search.Option{
		search.WithLogger(e.logger.With("component", "retriever")),
		search.WithTopK(e.cfg.Query.TopK),
	}
	return search.NewRetriever(e.store, e.provider.Embedder(), e.cfg.Storage.Collection, append(base, opts...)...)
}

// NewOrchestrator creates an orchestrator using the configured resolvers.
// Resolver failures are logged and reported as no data.
func (e *Engine) NewOrchestrator(retrieverOpts []search.Option, opts ...query.Option) (*query.Orchestrator, error) {
	retriever, err := e.NewRetriever(retrieverOpts...)
	if err != nil {
		return nil, err
	}

	q := e.cfg.Query
	base := []query.Option{
		query.WithLogger(e.logger.With("component", "orchestrator")),
		query.WithHistoryLimit(q.HistoryLimit),
		query.WithPreviewLimit(q.PreviewLimit),
		query.WithSampling(e.cfg.AI.Temperature, e.cfg.AI.MaxTokens),
	}
	if q.SystemPrompt != "" {
		base = append(base, query.WithSystemPrompt(q.SystemPrompt))
	}
	if e.series != nil {
		series, err := timeseries.NewDegrading(e.series, e.logger.With("component", "timeseries"))
		if err != nil {
			return nil, err
		}
		base = append(base, query.WithSeriesResolver(series))
	}
	if e.alerts != nil {
		a, err := alerts.NewDegrading(e.alerts, e.logger.With("component", "alerts"))
		if err != nil {
			return nil, err
		}
		base = append(base, query.WithAlertResolver(a))
	}

	return query.NewOrchestrator(e.provider.IntentClassifier(), retriever, e.provider.Completer(), append(base, opts...)...)
}

// Ask answers one request for the conversation turns, oldest first.
func (e *Engine) Ask(ctx context.Context, turns []core.ChatTurn) (core.QueryResult, error) {
	for _, t := range turns {
		if err := core.ValidateChatTurn(t); err != nil {
			return core.QueryResult{}, err
		}
	}
	o, err := e.NewOrchestrator(nil)
	if err != nil {
		return core.QueryResult{}, err
	}
	return o.Answer(ctx, turns)
}

// Stats summarizes the stored data.
type Stats struct {
	Collection string
	Records    int
	Samples    int // -1 when no time-series store is configured
}

// Stats counts the records in the collection and the stored readings.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	n, err := e.store.Count(ctx, e.cfg.Storage.Collection)
	if err != nil {
		return Stats{}, fmt.Errorf("counting records: %w", err)
	}
	st := Stats{Collection: e.cfg.Storage.Collection, Records: n, Samples: -1}
	if e.series != nil {
		if st.Samples, err = e.series.Count(ctx); err != nil {
			return Stats{}, fmt.Errorf("counting samples: %w", err)
		}
	}
	return st, nil
}
