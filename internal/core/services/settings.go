package services

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyChunkSize       = "chunking.chunk_size"
	keyOverlap         = "chunking.overlap"
	keyMaxChunks       = "chunking.max_chunks_per_doc"
	keyMaxSegmentGap   = "chunking.max_segment_gap"
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedDimension  = "embedding.dimension"
	keyEmbedBatchSize  = "embedding.batch_size"
	keyLLMProvider     = "llm.provider"
	keyLLMModel        = "llm.model"
	keyLLMBaseURL      = "llm.base_url"
	keyLLMAPIKey       = "llm.api_key"
	keyLLMTimeout      = "llm.timeout"
	keyLLMRate         = "llm.requests_per_second"
	keyTopK            = "retrieval.top_k"
	keyThreshold       = "retrieval.similarity_threshold"
	keyHistoryTurns    = "retrieval.history_turns"
	keyRerankEnabled   = "rerank.enabled"
	keyRerankAlpha     = "rerank.alpha"
	keyRerankBeta      = "rerank.beta"
	keyRerankGamma     = "rerank.gamma"
	keyCacheBackend    = "cache.backend"
	keyRedisURL        = "cache.redis_url"
	keyQueryTTL        = "cache.query_ttl"
	keyEmbeddingTTL    = "cache.embedding_ttl"
	keyCacheMaxEntries = "cache.max_entries"
	keySweepInterval   = "cache.sweep_interval"
	keyReprobe         = "cache.reprobe_interval"
	keyPoolSize        = "workers.pool_size"
	keyQueueSize       = "workers.queue_size"
	keyDataDir         = "data_dir"
)

type keyKind int

const (
	kindString keyKind = iota
	kindInt
	kindFloat
	kindBool
	kindDuration
)

var keyKinds = map[string]keyKind{
	keyChunkSize: kindInt, keyOverlap: kindInt, keyMaxChunks: kindInt, keyMaxSegmentGap: kindFloat,
	keyEmbedProvider: kindString, keyEmbedModel: kindString, keyEmbedBaseURL: kindString,
	keyEmbedAPIKey: kindString, keyEmbedDimension: kindInt, keyEmbedBatchSize: kindInt,
	keyLLMProvider: kindString, keyLLMModel: kindString, keyLLMBaseURL: kindString,
	keyLLMAPIKey: kindString, keyLLMTimeout: kindDuration, keyLLMRate: kindFloat,
	keyTopK: kindInt, keyThreshold: kindFloat, keyHistoryTurns: kindInt,
	keyRerankEnabled: kindBool, keyRerankAlpha: kindFloat, keyRerankBeta: kindFloat, keyRerankGamma: kindFloat,
	keyCacheBackend: kindString, keyRedisURL: kindString, keyQueryTTL: kindDuration,
	keyEmbeddingTTL: kindDuration, keyCacheMaxEntries: kindInt, keySweepInterval: kindDuration,
	keyReprobe: kindDuration, keyPoolSize: kindInt, keyQueueSize: kindInt, keyDataDir: kindString,
}

// Provider API keys read from the environment when the config has none.
//
//nolint:gosec // G101: environment variable names, not credentials.
var providerKeyEnv = map[domain.AIProvider]string{
	domain.AIProviderOpenAI:    "OPENAI_API_KEY",
	domain.AIProviderAnthropic: "ANTHROPIC_API_KEY",
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		lookupEnv:   os.LookupEnv,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Chunking: domain.ChunkingSettings{
			ChunkSize:       s.getInt(keyChunkSize, d.Chunking.ChunkSize),
			Overlap:         s.getInt(keyOverlap, d.Chunking.Overlap),
			MaxChunksPerDoc: s.getInt(keyMaxChunks, d.Chunking.MaxChunksPerDoc),
			MaxSegmentGap:   s.getFloat(keyMaxSegmentGap, d.Chunking.MaxSegmentGap),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:  s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			BaseURL:   s.configStore.GetString(keyEmbedBaseURL),
			APIKey:    s.configStore.GetString(keyEmbedAPIKey),
			Dimension: s.getInt(keyEmbedDimension, 0),
			BatchSize: s.getInt(keyEmbedBatchSize, d.Embedding.BatchSize),
		},
		LLM: domain.LLMSettings{
			Provider:          s.getProvider(keyLLMProvider, d.LLM.Provider),
			BaseURL:           s.configStore.GetString(keyLLMBaseURL),
			APIKey:            s.configStore.GetString(keyLLMAPIKey),
			Timeout:           s.getDuration(keyLLMTimeout, d.LLM.Timeout),
			RequestsPerSecond: s.getFloat(keyLLMRate, d.LLM.RequestsPerSecond),
		},
		Retrieval: domain.RetrievalSettings{
			TopK:                s.getInt(keyTopK, d.Retrieval.TopK),
			SimilarityThreshold: s.getFloat(keyThreshold, d.Retrieval.SimilarityThreshold),
			HistoryTurns:        s.getInt(keyHistoryTurns, d.Retrieval.HistoryTurns),
		},
		Rerank: domain.RerankSettings{
			Enabled: s.getBool(keyRerankEnabled, d.Rerank.Enabled),
			Alpha:   s.getFloat(keyRerankAlpha, d.Rerank.Alpha),
			Beta:    s.getFloat(keyRerankBeta, d.Rerank.Beta),
			Gamma:   s.getFloat(keyRerankGamma, d.Rerank.Gamma),
		},
		Cache: domain.CacheSettings{
			RedisURL:        s.configStore.GetString(keyRedisURL),
			QueryTTL:        s.getDuration(keyQueryTTL, d.Cache.QueryTTL),
			EmbeddingTTL:    s.getDuration(keyEmbeddingTTL, d.Cache.EmbeddingTTL),
			MaxEntries:      s.getInt(keyCacheMaxEntries, d.Cache.MaxEntries),
			SweepInterval:   s.getDuration(keySweepInterval, d.Cache.SweepInterval),
			ReprobeInterval: s.getDuration(keyReprobe, d.Cache.ReprobeInterval),
		},
		Workers: domain.WorkerSettings{
			PoolSize:  s.getInt(keyPoolSize, d.Workers.PoolSize),
			QueueSize: s.getInt(keyQueueSize, d.Workers.QueueSize),
		},
		DataDir: s.configStore.GetString(keyDataDir),
	}

	// Models default per provider so switching provider alone is enough.
	settings.Embedding.Model = s.getString(keyEmbedModel, domain.DefaultEmbeddingModels()[settings.Embedding.Provider])
	settings.LLM.Model = s.getString(keyLLMModel, domain.DefaultLLMModels()[settings.LLM.Provider])

	if settings.Embedding.Dimension == 0 {
		settings.Embedding.Dimension = domain.EmbeddingDimensions()[settings.Embedding.Model]
		if settings.Embedding.Dimension == 0 {
			settings.Embedding.Dimension = d.Embedding.Dimension
		}
	}

	if settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = s.providerKey(settings.Embedding.Provider)
	}
	if settings.LLM.APIKey == "" {
		settings.LLM.APIKey = s.providerKey(settings.LLM.Provider)
	}

	// A Redis URL without an explicit backend selects Redis.
	settings.Cache.Backend = domain.CacheBackend(s.getString(keyCacheBackend, ""))
	if settings.Cache.Backend == "" {
		settings.Cache.Backend = d.Cache.Backend
		if settings.Cache.RedisURL != "" {
			settings.Cache.Backend = domain.CacheBackendRedis
		}
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Set parses value according to the key's type and persists it.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := keyKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown config key %q", domain.ErrInvalidInput, key)
	}

	var typed any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s expects an integer", domain.ErrInvalidInput, key)
		}
		typed = int64(n)
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s expects a number", domain.ErrInvalidInput, key)
		}
		typed = f
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s expects true or false", domain.ErrInvalidInput, key)
		}
		typed = b
	case kindDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%w: %s expects a duration such as 30s", domain.ErrInvalidInput, key)
		}
		typed = value
	default:
		if strings.HasSuffix(key, ".provider") && value != "" && !domain.AIProvider(value).IsValid() {
			return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, value)
		}
		typed = value
	}

	return s.configStore.Set(key, typed)
}

// Keys lists every recognised configuration key, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(keyKinds))
	for k := range keyKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (s *SettingsService) providerKey(p domain.AIProvider) string {
	name, ok := providerKeyEnv[p]
	if !ok || s.lookupEnv == nil {
		return ""
	}
	v, _ := s.lookupEnv(name)
	return v
}

func (s *SettingsService) getString(key, def string) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	return def
}

func (s *SettingsService) getProvider(key string, def domain.AIProvider) domain.AIProvider {
	return domain.AIProvider(s.getString(key, string(def)))
}

func (s *SettingsService) getInt(key string, def int) int {
	if _, ok := s.configStore.Get(key); !ok {
		return def
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, def float64) float64 {
	if _, ok := s.configStore.Get(key); !ok {
		return def
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, def bool) bool {
	if _, ok := s.configStore.Get(key); !ok {
		return def
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, def time.Duration) time.Duration {
	if d, ok := s.configStore.GetDuration(key); ok {
		return d
	}
	return def
}
