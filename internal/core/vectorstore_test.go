package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPineconeClient_UpsertMergesOwnershipMetadata(t *testing.T) {
	var body struct {
		Vectors []struct {
			ID       string         `json:"id"`
			Values   []float32      `json:"values"`
			Metadata map[string]any `json:"metadata"`
		} `json:"vectors"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/vectors/upsert", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewPineconeClient(srv.URL, "test-key", zaptest.NewLogger(t).Sugar())
	client.Upsert(context.Background(), "7", "doc-1", "knee is improving", []float32{0.5, 0.5}, map[string]any{
		"type":   "progress",
		"userId": "someone-else", // Caller-supplied ownership must be overwritten.
	})

	require.Len(t, body.Vectors, 1)
	v := body.Vectors[0]
	assert.Equal(t, "doc-1", v.ID)
	assert.Equal(t, []float32{0.5, 0.5}, v.Values)
	assert.Equal(t, "7", v.Metadata["userId"])
	assert.Equal(t, "knee is improving", v.Metadata["text"])
	assert.Equal(t, "progress", v.Metadata["type"])
}

func TestPineconeClient_UpsertZeroVectorIsNoOp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	client := NewPineconeClient(srv.URL, "test-key", zaptest.NewLogger(t).Sugar())
	client.Upsert(context.Background(), "7", "doc-1", "text", make([]float32, 384), nil)

	assert.Equal(t, int32(0), calls.Load(), "zero-vector upsert must not reach the store")
}

func TestPineconeClient_QueryFiltersByUserAndJoinsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/query", r.URL.Path)

		var req struct {
			Vector          []float32      `json:"vector"`
			TopK            int            `json:"topK"`
			IncludeMetadata bool           `json:"includeMetadata"`
			Filter          map[string]any `json:"filter"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 5, req.TopK)
		assert.True(t, req.IncludeMetadata)
		assert.Equal(t, "7", req.Filter["userId"])

		json.NewEncoder(w).Encode(map[string]any{
			"matches": []map[string]any{
				{"metadata": map[string]any{"text": "Pain dropped from 7 to 3 over two weeks"}},
				{"metadata": map[string]any{"type": "progress"}}, // no text field, skipped
				{"metadata": map[string]any{"text": "Did mobility drills daily"}},
			},
		})
	}))
	defer srv.Close()

	client := NewPineconeClient(srv.URL, "test-key", zaptest.NewLogger(t).Sugar())
	got := client.Query(context.Background(), "7", []float32{0.1, 0.2}, 5)

	assert.Equal(t, "Pain dropped from 7 to 3 over two weeks\nDid mobility drills daily\n", got)
}

func TestPineconeClient_QueryFailureReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewPineconeClient(srv.URL, "test-key", zaptest.NewLogger(t).Sugar())
	assert.Empty(t, client.Query(context.Background(), "7", []float32{0.1}, 5))
}

func TestPineconeClient_DeleteAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/vectors/delete", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, true, req["deleteAll"])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewPineconeClient(srv.URL, "test-key", zaptest.NewLogger(t).Sugar())
	assert.NoError(t, client.DeleteAll(context.Background()))
}

func TestPineconeClient_DeleteAllPropagatesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewPineconeClient(srv.URL, "test-key", zaptest.NewLogger(t).Sugar())
	assert.Error(t, client.DeleteAll(context.Background()))
}
