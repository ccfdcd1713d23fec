package config

import "time"

// Config is the top-level machinerag configuration, corresponding to machinerag.yml.
type Config struct {
	AI         AIConfig         `yaml:"ai" koanf:"ai"`
	Storage    StorageConfig    `yaml:"storage" koanf:"storage"`
	Ingestion  IngestionConfig  `yaml:"ingestion" koanf:"ingestion"`
	Query      QueryConfig      `yaml:"query" koanf:"query"`
	TimeSeries TimeSeriesConfig `yaml:"timeseries" koanf:"timeseries"`
	Alerts     AlertsConfig     `yaml:"alerts" koanf:"alerts"`
}

// ProviderType identifies an AI provider implementation.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderMock   ProviderType = "mock"
)

// AIConfig holds the AI service settings.
type AIConfig struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	EmbeddingHost     string       `yaml:"embedding_host" koanf:"embedding_host"`
	CompletionHost    string       `yaml:"completion_host" koanf:"completion_host"`
	APIKey            string       `yaml:"api_key" koanf:"api_key"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`
	CompletionModel   string       `yaml:"completion_model" koanf:"completion_model"`
	ClassifierModel   string       `yaml:"classifier_model" koanf:"classifier_model"`
	Dimension         int          `yaml:"dimension" koanf:"dimension"`
	Timezone          string       `yaml:"timezone" koanf:"timezone"`
	Temperature       float64      `yaml:"temperature" koanf:"temperature"`
	MaxTokens         int          `yaml:"max_tokens" koanf:"max_tokens"`
	RequestsPerSecond float64      `yaml:"requests_per_second" koanf:"requests_per_second"`
	MaxRetries        int          `yaml:"max_retries" koanf:"max_retries"`
}

// BackendType identifies a vector store implementation.
type BackendType string

const (
	BackendBadger  BackendType = "badger"
	BackendChromem BackendType = "chromem"
)

// StorageConfig selects and locates the vector store.
type StorageConfig struct {
	Backend    BackendType `yaml:"backend" koanf:"backend"`
	Path       string      `yaml:"path" koanf:"path"`
	InMemory   bool        `yaml:"in_memory" koanf:"in_memory"`
	Compress   bool        `yaml:"compress" koanf:"compress"`
	Collection string      `yaml:"collection" koanf:"collection"`
	Metric     string      `yaml:"metric" koanf:"metric"`
}

// IngestionConfig holds chunking and pipeline settings.
type IngestionConfig struct {
	MinTokens           int           `yaml:"min_tokens" koanf:"min_tokens"`
	MaxTokens           int           `yaml:"max_tokens" koanf:"max_tokens"`
	OverlapTokens       int           `yaml:"overlap_tokens" koanf:"overlap_tokens"`
	PoolSize            int           `yaml:"pool_size" koanf:"pool_size"`
	ParentChars         int           `yaml:"parent_chars" koanf:"parent_chars"`
	BatchSize           int           `yaml:"batch_size" koanf:"batch_size"`
	ReferenceExtensions []string      `yaml:"reference_extensions" koanf:"reference_extensions"`
	FetchTimeout        time.Duration `yaml:"fetch_timeout" koanf:"fetch_timeout"`
}

// QueryConfig holds orchestrator and retrieval settings.
type QueryConfig struct {
	HistoryLimit int    `yaml:"history_limit" koanf:"history_limit"`
	PreviewLimit int    `yaml:"preview_limit" koanf:"preview_limit"`
	TopK         int    `yaml:"top_k" koanf:"top_k"`
	SystemPrompt string `yaml:"system_prompt" koanf:"system_prompt"`
}

// TimeSeriesConfig locates the readings database. An empty path disables
// the chart path.
type TimeSeriesConfig struct {
	Path string `yaml:"path" koanf:"path"`
}

// AlertsConfig locates the alert service. An empty base URL disables the
// alert path.
type AlertsConfig struct {
	BaseURL string        `yaml:"base_url" koanf:"base_url"`
	APIKey  string        `yaml:"api_key" koanf:"api_key"`
	Timeout time.Duration `yaml:"timeout" koanf:"timeout"`
}
