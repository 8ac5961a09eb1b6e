package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// EmbeddingClient talks to the sentence-embedding sidecar (all-MiniLM-L6-v2
// in the reference deployment, 384 dimensions). Embedding sits on the hot
// path of every chat and dashboard request, so the client never returns an
// error: any failure yields the all-zero vector of the configured
// dimension and downstream callers treat that as the degraded sentinel.
type EmbeddingClient struct {
	baseURL    string
	dimension  int
	httpClient *http.Client
	log        *zap.SugaredLogger
}

func NewEmbeddingClient(baseURL string, dimension int, log *zap.SugaredLogger) *EmbeddingClient {
	return &EmbeddingClient{
		baseURL:    baseURL,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

func (c *EmbeddingClient) Dimension() int {
	return c.dimension
}

// Embed converts text to its embedding vector. The returned slice always
// has exactly Dimension() elements.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) []float32 {
	embedding, err := c.embed(ctx, text)
	if err != nil {
		c.log.Warnw("embedding service unavailable, returning zero vector", "error", err)
		return make([]float32, c.dimension)
	}
	return embedding
}

func (c *EmbeddingClient) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned status %d", resp.StatusCode)
	}

	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if len(result.Embedding) != c.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(result.Embedding), c.dimension)
	}
	return result.Embedding, nil
}

// IsZeroVector reports whether the embedding is the degraded-provider
// sentinel (every component zero).
func IsZeroVector(embedding []float32) bool {
	for _, v := range embedding {
		if v != 0 {
			return false
		}
	}
	return true
}
