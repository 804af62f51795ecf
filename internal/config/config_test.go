package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "EMBEDDINGS_PROVIDER", "DUPLICATE_SCAN_LIMIT", "DUPLICATE_SCAN_TIMEOUT",
		"INGEST_LOCK_TTL", "VECTOR_DIM", "VALIDATION_PROVIDER", "VALIDATION_MODEL",
		"CORS_ORIGINS", "CV_VALIDATION_ENABLED")
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "google", cfg.EmbeddingsProvider)
	assert.Equal(t, 1000, cfg.DuplicateScanLimit)
	assert.Equal(t, 5*time.Second, cfg.DuplicateScanTimeout)
	assert.Equal(t, time.Minute, cfg.IngestLockTTL)
	assert.Equal(t, 768, cfg.VectorDimensions)
	assert.Equal(t, "gemini-2.0-flash", cfg.ValidationModel)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:8080"}, cfg.CORSOrigins)
	assert.False(t, cfg.CVValidationEnabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("EMBEDDINGS_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DUPLICATE_SCAN_LIMIT", "250")
	t.Setenv("DUPLICATE_SCAN_TIMEOUT", "2")
	t.Setenv("VALIDATION_PROVIDER", "openai")
	t.Setenv("CV_VALIDATION_ENABLED", "true")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("RECONCILE_INTERVAL", "3")
	t.Setenv("VECTOR_DIM", "not-a-number")
	clearEnv(t, "VALIDATION_MODEL")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.EmbeddingsProvider)
	assert.Equal(t, 250, cfg.DuplicateScanLimit)
	assert.Equal(t, 2*time.Second, cfg.DuplicateScanTimeout)
	assert.Equal(t, "gpt-4o-mini", cfg.ValidationModel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 3*time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, 768, cfg.VectorDimensions, "unparsable values fall back to the default")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			EmbeddingsProvider: "google",
			GeminiAPIKey:       "k",
			ValidationProvider: "google",
			VectorDimensions:   768,
			DuplicateScanLimit: 1000,
		}
	}

	assert.NoError(t, base().Validate())

	cfg := base()
	cfg.GeminiAPIKey = ""
	assert.ErrorContains(t, cfg.Validate(), "GEMINI_API_KEY")

	cfg = base()
	cfg.EmbeddingsProvider = "openai"
	assert.ErrorContains(t, cfg.Validate(), "OPENAI_API_KEY")

	cfg = base()
	cfg.EmbeddingsProvider = "cohere"
	assert.ErrorContains(t, cfg.Validate(), "unsupported EMBEDDINGS_PROVIDER")

	cfg = base()
	cfg.CVValidationEnabled = true
	cfg.ValidationProvider = "openai"
	assert.ErrorContains(t, cfg.Validate(), "VALIDATION_PROVIDER=openai")

	cfg = base()
	cfg.VectorDimensions = 0
	assert.Error(t, cfg.Validate())
}

func TestIndexModelsEnforceUniqueness(t *testing.T) {
	models := IndexModels()
	unique := map[string]bool{}
	for _, m := range models[CVCollection] {
		if m.Options != nil && m.Options.Unique != nil && *m.Options.Unique {
			unique[*m.Options.Name] = true
		}
	}
	assert.True(t, unique["uniq_content_hash"])
	assert.True(t, unique["uniq_display_name"])
	require.Len(t, models[ChunkCollection], 1)
	assert.True(t, *models[ChunkCollection][0].Options.Unique)
}

func TestAsynqRedisOpt(t *testing.T) {
	opt, err := AsynqRedisOpt(&Config{RedisURL: "localhost:6379", RedisDB: 2})
	require.NoError(t, err)
	assert.NotNil(t, opt)

	opt, err = AsynqRedisOpt(&Config{RedisURL: "redis://:secret@cache.internal:6380/1"})
	require.NoError(t, err)
	assert.NotNil(t, opt)
}
