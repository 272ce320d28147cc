package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemonic-kb/mnemonic/core"
)

func testVector(dim int) []float32 {
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = float32(i) * 0.01
	}
	return vec
}

func newTestEngine(t *testing.T, handler http.HandlerFunc) *HuggingFaceEngine {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	engine, err := NewHuggingFaceEngine(Config{
		Endpoint: server.URL,
		APIKey:   "test-key",
	})
	require.NoError(t, err)
	return engine
}

func TestNewHuggingFaceEngineRequiresAPIKey(t *testing.T) {
	_, err := NewHuggingFaceEngine(Config{})
	assert.True(t, core.IsInvalidInput(err))
}

func TestEmbedFlatResponse(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/sentence-transformers/all-MiniLM-L6-v2/pipeline/feature-extraction", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req featureExtractionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello world", req.Inputs)

		json.NewEncoder(w).Encode(testVector(core.EmbeddingDimension))
	})

	vec, err := engine.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Len(t, vec, core.EmbeddingDimension)
	assert.InDelta(t, 0.01, vec[1], 1e-6)
}

func TestEmbedNestedBatchResponse(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([][]float32{testVector(core.EmbeddingDimension)})
	})

	vec, err := engine.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, core.EmbeddingDimension)
}

func TestEmbedDimensionMismatch(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(testVector(core.EmbeddingDimension - 1))
	})

	_, err := engine.Embed(context.Background(), "hello")
	assert.True(t, core.IsDimensionMismatch(err))
}

func TestEmbedMultiElementBatchRejected(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([][]float32{
			testVector(core.EmbeddingDimension),
			testVector(core.EmbeddingDimension),
		})
	})

	_, err := engine.Embed(context.Background(), "hello")
	assert.True(t, core.IsDimensionMismatch(err))
}

func TestEmbedEmptyText(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty text")
	})

	_, err := engine.Embed(context.Background(), "   ")
	assert.True(t, core.IsInvalidInput(err))
}

func TestEmbedStatusRetryability(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"model loading", http.StatusServiceUnavailable, true},
		{"timeout", http.StatusRequestTimeout, true},
		{"unauthorized", http.StatusUnauthorized, false},
		{"not found", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := engine.Embed(context.Background(), "hello")
			require.Error(t, err)
			assert.Equal(t, tt.retryable, core.IsRetryable(err))
		})
	}
}

func TestEmbedMalformedResponse(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "unexpected"}`))
	})

	_, err := engine.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.False(t, core.IsRetryable(err))
}
