package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTopK = 5

// PineconeClient speaks the Pinecone-compatible REST API. Every stored
// document carries a userId metadata field and queries always filter on
// it, so there is no cross-user retrieval path. Upsert and query follow
// the soft-fail policy; DeleteAll is an operator action and its errors
// propagate.
type PineconeClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

func NewPineconeClient(baseURL, apiKey string, log *zap.SugaredLogger) *PineconeClient {
	return &PineconeClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		log:        log,
	}
}

// Upsert stores a single document scoped to userID. The text and userId
// keys are merged into the metadata bag, overwriting caller-supplied keys
// of the same name. Upserting the all-zero sentinel embedding is a no-op
// so a degraded embedding provider cannot pollute the index.
func (c *PineconeClient) Upsert(ctx context.Context, userID, docID, text string, embedding []float32, metadata map[string]any) {
	if IsZeroVector(embedding) {
		c.log.Warnw("skipping vector upsert, embedding is the zero-vector sentinel", "docID", docID)
		return
	}

	if metadata == nil {
		metadata = make(map[string]any)
	}
	metadata["text"] = text
	metadata["userId"] = userID

	body := map[string]any{
		"vectors": []map[string]any{
			{
				"id":       docID,
				"values":   embedding,
				"metadata": metadata,
			},
		},
	}

	if err := c.post(ctx, "/vectors/upsert", body, nil); err != nil {
		// The index is an enrichment, not a system of record.
		c.log.Warnw("vector upsert failed", "docID", docID, "error", err)
	}
}

// Query returns the text of the topK most similar documents belonging to
// userID, one per line, in store ranking order. Any failure or an empty
// match set yields the empty string.
func (c *PineconeClient) Query(ctx context.Context, userID string, embedding []float32, topK int) string {
	if topK <= 0 {
		topK = defaultTopK
	}

	body := map[string]any{
		"vector":          embedding,
		"topK":            topK,
		"includeMetadata": true,
		"filter":          map[string]any{"userId": userID},
	}

	var result struct {
		Matches []struct {
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}
	if err := c.post(ctx, "/query", body, &result); err != nil {
		c.log.Warnw("vector query failed, proceeding without retrieved context", "error", err)
		return ""
	}

	var sb strings.Builder
	for _, match := range result.Matches {
		if text, ok := match.Metadata["text"].(string); ok {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// DeleteAll irreversibly removes every vector in the index, across all
// users. Callers gate this behind the admin surface.
func (c *PineconeClient) DeleteAll(ctx context.Context) error {
	body := map[string]any{"deleteAll": true}
	if err := c.post(ctx, "/vectors/delete", body, nil); err != nil {
		return fmt.Errorf("failed to delete all vectors: %w", err)
	}
	return nil
}

func (c *PineconeClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
	}
	return nil
}
