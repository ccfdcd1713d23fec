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


// Package config loads machinerag settings from a YAML file with
// environment overrides.
//
// Environment variables use the MACHINERAG_ prefix; a double underscore
// separates section and key:
//
//	MACHINERAG_AI__EMBEDDING_MODEL=nomic-embed-text
//	MACHINERAG_STORAGE__BACKEND=chromem
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/poiesic/machinerag/ai"
	"github.com/poiesic/machinerag/storage"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "MACHINERAG_"

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		AI: AIConfig{
			Provider:        ProviderOpenAI,
			EmbeddingHost:   aiDefaults.EmbeddingHost,
			CompletionHost:  aiDefaults.CompletionHost,
			EmbeddingModel:  aiDefaults.EmbeddingModel,
			CompletionModel: aiDefaults.CompletionModel,
			Dimension:       aiDefaults.Dimension,
			Timezone:        aiDefaults.Timezone,
			Temperature:     aiDefaults.Temperature,
			MaxTokens:       aiDefaults.MaxTokens,
			MaxRetries:      aiDefaults.MaxRetries,
		},
		Storage: StorageConfig{
			Backend:    BackendBadger,
			Path:       "./data/vectors",
			Collection: "machines",
			Metric:     string(storage.MetricCosine),
		},
		Ingestion: IngestionConfig{
			MinTokens:           100,
			MaxTokens:           400,
			OverlapTokens:       50,
			PoolSize:            1,
			ParentChars:         4000,
			BatchSize:           64,
			ReferenceExtensions: []string{".pdf"},
			FetchTimeout:        30 * time.Second,
		},
		Query: QueryConfig{
			HistoryLimit: 10,
			PreviewLimit: 500,
			TopK:         5,
		},
		Alerts: AlertsConfig{
			Timeout: 10 * time.Second,
		},
	}
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (MACHINERAG_*). A missing file is not an
// error; an empty path skips the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	// MACHINERAG_AI__EMBEDDING_MODEL -> ai.embedding_model
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	var errs []error

	switch c.AI.Provider {
	case ProviderOpenAI:
		if err := c.AIConfig().Validate(); err != nil {
			errs = append(errs, err)
		}
	case ProviderMock:
		if c.AI.Dimension <= 0 {
			errs = append(errs, fmt.Errorf("ai.dimension must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid ai.provider %q: must be one of openai, mock", c.AI.Provider))
	}

	switch c.Storage.Backend {
	case BackendBadger:
		if c.Storage.Path == "" && !c.Storage.InMemory {
			errs = append(errs, fmt.Errorf("storage.path is required unless storage.in_memory is set"))
		}
	case BackendChromem:
		if m, err := storage.ParseMetric(c.Storage.Metric); err == nil && m != storage.MetricCosine {
			errs = append(errs, fmt.Errorf("storage.metric %q is not supported by the chromem backend", m))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid storage.backend %q: must be one of badger, chromem", c.Storage.Backend))
	}
	if c.Storage.Collection == "" {
		errs = append(errs, fmt.Errorf("storage.collection is required"))
	}
	if _, err := storage.ParseMetric(c.Storage.Metric); err != nil {
		errs = append(errs, fmt.Errorf("storage.metric: %w", err))
	}

	in := c.Ingestion
	if in.MaxTokens <= 0 || in.MinTokens < 0 || in.MinTokens > in.MaxTokens || in.OverlapTokens < 0 || in.OverlapTokens >= in.MaxTokens {
		errs = append(errs, fmt.Errorf("ingestion token window %d/%d/%d is invalid", in.MinTokens, in.MaxTokens, in.OverlapTokens))
	}
	if in.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("ingestion.pool_size must be at least 1"))
	}
	if in.ParentChars < 1 || in.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("ingestion.parent_chars and ingestion.batch_size must be positive"))
	}

	q := c.Query
	if q.HistoryLimit < 1 || q.PreviewLimit < 1 || q.TopK < 1 {
		errs = append(errs, fmt.Errorf("query.history_limit, query.preview_limit and query.top_k must be positive"))
	}

	if c.Alerts.BaseURL != "" && c.Alerts.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("alerts.timeout must be positive"))
	}

	return errors.Join(errs...)
}

// AIConfig converts the ai section into an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	a := c.AI
	return ai.NewConfig(
		ai.WithEmbeddingHost(a.EmbeddingHost),
		ai.WithCompletionHost(a.CompletionHost),
		ai.WithAPIKey(a.APIKey),
		ai.WithEmbeddingModel(a.EmbeddingModel),
		ai.WithCompletionModel(a.CompletionModel),
		ai.WithClassifierModel(a.ClassifierModel),
		ai.WithDimension(a.Dimension),
		ai.WithTimezone(a.Timezone),
		ai.WithTemperature(a.Temperature),
		ai.WithMaxTokens(a.MaxTokens),
		ai.WithRequestsPerSecond(a.RequestsPerSecond),
		ai.WithMaxRetries(a.MaxRetries),
	)
}
