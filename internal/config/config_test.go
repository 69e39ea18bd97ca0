package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VECTOR_BACKEND", "")
	t.Setenv("EMBEDDING_DIMENSION", "")
	t.Setenv("CHUNK_MAX_TOKENS", "")
	t.Setenv("CHUNK_OVERLAP_TOKENS", "")
	t.Setenv("INDEX_WORKERS", "")

	cfg := Load()
	if cfg.VectorBackend != "pgvector" {
		t.Fatalf("expected default vector backend pgvector, got %q", cfg.VectorBackend)
	}
	if cfg.EmbeddingDimension != 1536 {
		t.Fatalf("expected default embedding dimension 1536, got %d", cfg.EmbeddingDimension)
	}
	if cfg.ChunkMaxTokens != 500 || cfg.ChunkOverlapTokens != 50 {
		t.Fatalf("unexpected default chunking config: %d/%d", cfg.ChunkMaxTokens, cfg.ChunkOverlapTokens)
	}
	if cfg.IndexWorkers != 4 {
		t.Fatalf("expected default index workers 4, got %d", cfg.IndexWorkers)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("VECTOR_BACKEND", "MEMORY")
	t.Setenv("INDEX_WORKERS", "8")
	t.Setenv("EMBED_RATE_PER_SECOND", "2.5")
	t.Setenv("OPENAI_CHAT_MODEL", "gpt-4o")

	cfg := Load()
	if cfg.VectorBackend != "memory" {
		t.Fatalf("expected lowercased backend override, got %q", cfg.VectorBackend)
	}
	if cfg.IndexWorkers != 8 {
		t.Fatalf("expected index workers 8, got %d", cfg.IndexWorkers)
	}
	if cfg.EmbedRatePerSecond != 2.5 {
		t.Fatalf("expected embed rate 2.5, got %f", cfg.EmbedRatePerSecond)
	}
	if cfg.OpenAIChatModel != "gpt-4o" {
		t.Fatalf("expected chat model override, got %q", cfg.OpenAIChatModel)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("INDEX_WORKERS", "plenty")
	t.Setenv("EMBED_RATE_PER_SECOND", "fast")

	cfg := Load()
	if cfg.IndexWorkers != 4 {
		t.Fatalf("malformed int must fall back, got %d", cfg.IndexWorkers)
	}
	if cfg.EmbedRatePerSecond != 10 {
		t.Fatalf("malformed float must fall back, got %f", cfg.EmbedRatePerSecond)
	}
}
