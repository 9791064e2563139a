package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "sessions", cfg.Storage.SessionFolder)
	assert.Equal(t, ".byaldi", cfg.Storage.IndexFolder)
	assert.Equal(t, "uploaded_documents", cfg.Storage.UploadFolder)
	assert.Equal(t, "vidore/colpali", cfg.Retrieval.IndexerModel)
	assert.Equal(t, 280, cfg.Generation.DefaultResizedDim)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("INDEX_TIMEOUT", "90s")
	t.Setenv("INDEX_WORKERS", "6")
	t.Setenv("WARM_ON_STARTUP", "false")
	t.Setenv("GENERATION_MODEL_OVERRIDES", "llama-vision=llava:13b, gpt4=gpt-4o-mini")

	cfg := Load()

	assert.Equal(t, 90*time.Second, cfg.Retrieval.IndexTimeout)
	assert.Equal(t, 6, cfg.Retrieval.IndexWorkers)
	assert.False(t, cfg.Retrieval.WarmOnStartup)
	assert.Equal(t, map[string]string{"llama-vision": "llava:13b", "gpt4": "gpt-4o-mini"}, cfg.Generation.ModelOverrides)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("LOAD_TIMEOUT", "soon")
	t.Setenv("RETRIEVAL_TOP_K", "many")

	cfg := Load()

	assert.Equal(t, 5*time.Minute, cfg.Retrieval.LoadTimeout)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
}
