// Package embedding generates vector embeddings for memory search.
// Two backends are supported: a local Ollama server and Google's Gemini
// API. An empty provider means embeddings are disabled and memory search
// falls back to keyword matching.
package embedding

import (
	"context"
	"fmt"

	"pactd/internal/config"
	"pactd/internal/logging"
)

// EmbeddingEngine generates vector embeddings for text.
type EmbeddingEngine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings.
	Dimensions() int

	// Name returns the engine name.
	Name() string
}

// HealthChecker is implemented by engines that can verify their backing
// service is reachable before batch work starts.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewEngine creates an embedding engine from configuration. A nil engine
// with a nil error means embeddings are disabled.
func NewEngine(cfg config.EmbeddingConfig) (EmbeddingEngine, error) {
	if cfg.Provider == "" {
		logging.EmbeddingDebug("no embedding provider configured, semantic search disabled")
		return nil, nil
	}

	timer := logging.StartTimer(logging.CategoryEmbedding, "NewEngine")
	defer timer.Stop()

	var engine EmbeddingEngine
	var err error
	switch cfg.Provider {
	case "ollama":
		logging.Embedding("initializing ollama engine: endpoint=%s model=%s", cfg.OllamaEndpoint, cfg.OllamaModel)
		engine, err = NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel, cfg.Dimensions)
	case "genai":
		logging.Embedding("initializing genai engine: model=%s", cfg.GenAIModel)
		engine, err = NewGenAIEngine(cfg.GenAIAPIKey, cfg.GenAIModel, cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'ollama' or 'genai')", cfg.Provider)
	}
	if err != nil {
		logging.Get(logging.CategoryEmbedding).Error("failed to create embedding engine: %v", err)
		return nil, err
	}

	logging.Embedding("embedding engine ready: name=%s dimensions=%d", engine.Name(), engine.Dimensions())
	return engine, nil
}
