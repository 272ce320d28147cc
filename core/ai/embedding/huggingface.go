// Package embedding provides the remote embedding capability used by the
// query pipeline. The production engine calls the HuggingFace Inference
// API for sentence-transformers/all-MiniLM-L6-v2, which produces
// 384-dimensional vectors.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mnemonic-kb/mnemonic/core"
)

const (
	defaultEndpoint = "https://router.huggingface.co/hf-inference"
	defaultModel    = "sentence-transformers/all-MiniLM-L6-v2"
	defaultTimeout  = 30 * time.Second
)

// Config configures the HuggingFace embedding engine.
type Config struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// HuggingFaceEngine implements core.Embedder over the HuggingFace
// Inference API feature-extraction pipeline.
type HuggingFaceEngine struct {
	config     Config
	httpClient *http.Client
}

// NewHuggingFaceEngine creates an embedding engine. The API key is
// required; endpoint, model, and timeout fall back to defaults.
func NewHuggingFaceEngine(config Config) (*HuggingFaceEngine, error) {
	if config.APIKey == "" {
		return nil, core.NewQueryError("NewHuggingFaceEngine", core.ErrInvalidInput, "HuggingFace API key is required", false)
	}
	if config.Endpoint == "" {
		config.Endpoint = defaultEndpoint
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	return &HuggingFaceEngine{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Dimension returns the fixed output dimension of the model.
func (e *HuggingFaceEngine) Dimension() int {
	return core.EmbeddingDimension
}

type featureExtractionRequest struct {
	Inputs string `json:"inputs"`
}

// Embed generates a 384-dimensional embedding for the given text. The API
// sometimes wraps the vector in a single-element batch; that shape is
// flattened before dimension validation. A vector of any other length
// fails with a dimension mismatch, never silently truncated or padded.
func (e *HuggingFaceEngine) Embed(ctx context.Context, text string) (core.EmbeddingVector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, core.NewQueryError("Embed", core.ErrInvalidInput, "text cannot be empty", false)
	}

	body, err := json.Marshal(featureExtractionRequest{Inputs: text})
	if err != nil {
		return nil, core.NewQueryError("Embed", err, "failed to marshal request", false)
	}

	url := fmt.Sprintf("%s/models/%s/pipeline/feature-extraction", strings.TrimRight(e.config.Endpoint, "/"), e.config.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, core.NewQueryError("Embed", err, "failed to create request", false)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.config.APIKey)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewQueryError("Embed", err, "embedding API call failed", true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, core.NewQueryError("Embed",
			fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, string(respBody)),
			"", isTransientStatus(resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewQueryError("Embed", err, "failed to read response", true)
	}

	vector, err := decodeVector(raw)
	if err != nil {
		return nil, err
	}
	if len(vector) != core.EmbeddingDimension {
		return nil, core.NewQueryError("Embed", core.ErrDimensionMismatch,
			fmt.Sprintf("expected %d dimensions, got %d", core.EmbeddingDimension, len(vector)), false)
	}
	return vector, nil
}

// decodeVector accepts the two shapes the feature-extraction pipeline is
// known to return: a flat vector, or a single-element batch wrapping one
// vector. Anything else is a provider contract violation.
func decodeVector(raw []byte) (core.EmbeddingVector, error) {
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}

	var nested [][]float32
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested) != 1 {
			return nil, core.NewQueryError("Embed", core.ErrDimensionMismatch,
				fmt.Sprintf("expected a single-element batch, got %d elements", len(nested)), false)
		}
		return nested[0], nil
	}

	return nil, core.NewQueryError("Embed",
		fmt.Errorf("unrecognized embedding response shape"), "", false)
}

func isTransientStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError
}
