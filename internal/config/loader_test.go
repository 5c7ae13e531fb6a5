package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"STORE_PATH", "LLM_PROVIDER", "ANTHROPIC_API_KEY", "VECTOR_BACKEND", "BRAVE_API_KEY",
	} {
		t.Setenv(k, "")
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "freshness.db", cfg.Store.Path)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "none", cfg.Vector.Backend)
	assert.True(t, cfg.Analytics.Enabled)
	assert.Equal(t, 8, cfg.Retrieval.DocSemanticTopK)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("STORE_PATH", "/tmp/custom.db")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("ANALYTICS_DISABLED", "true")
	t.Setenv("RETRIEVAL_DOC_SEMANTIC_TOPK", "3")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom.db", cfg.Store.Path)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.False(t, cfg.Analytics.Enabled)
	assert.Equal(t, 3, cfg.Retrieval.DocSemanticTopK)
}

func TestLoadIgnoresMissingEnvFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/.env")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestHolderReplaceIsObservedByGet(t *testing.T) {
	h := NewHolder(&Config{LogLevel: "info"})
	assert.Equal(t, "info", h.Get().LogLevel)

	h.Replace(&Config{LogLevel: "debug"})
	assert.Equal(t, "debug", h.Get().LogLevel)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}

func TestParseInt(t *testing.T) {
	assert.Equal(t, 42, parseInt("42", 7))
	assert.Equal(t, 7, parseInt("", 7))
	assert.Equal(t, 7, parseInt("not-a-number", 7))
}
