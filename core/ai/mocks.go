// Package ai holds test doubles for the external capability providers.
// The real adapters live in the embedding, llm, and voice subpackages;
// the mocks here let the pipeline be exercised deterministically without
// network access.
package ai

import (
	"context"
	"sync"
	"time"

	"github.com/mnemonic-kb/mnemonic/core"
)

// MockEmbedder is a deterministic core.Embedder for tests. Vectors maps
// input text to a fixed embedding; unmapped text gets a constant vector.
type MockEmbedder struct {
	Vectors map[string]core.EmbeddingVector
	Err     error
	Delay   time.Duration

	mu        sync.Mutex
	callCount int
}

// Embed returns the configured vector for the text
func (m *MockEmbedder) Embed(ctx context.Context, text string) (core.EmbeddingVector, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if vec, ok := m.Vectors[text]; ok {
		return vec, nil
	}
	return ConstantVector(0.1), nil
}

// Dimension returns the fixed output dimension
func (m *MockEmbedder) Dimension() int {
	return core.EmbeddingDimension
}

// CallCount returns how many times Embed was invoked
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// MockCompleter is a scriptable core.CompletionProvider. It fails the
// first FailAttempts calls with a retryable error, then returns Answer.
type MockCompleter struct {
	Answer       string
	FailAttempts int
	FailErr      error
	Delay        time.Duration

	mu        sync.Mutex
	callCount int
	lastReq   core.CompletionRequest
}

// Complete returns the scripted answer or failure
func (m *MockCompleter) Complete(ctx context.Context, req core.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.callCount++
	attempt := m.callCount
	m.lastReq = req
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if attempt <= m.FailAttempts {
		if m.FailErr != nil {
			return "", m.FailErr
		}
		return "", core.NewQueryError("Complete", core.ErrSynthesis, "mock transient failure", true)
	}
	return m.Answer, nil
}

// CallCount returns how many times Complete was invoked
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastRequest returns the most recent completion request
func (m *MockCompleter) LastRequest() core.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReq
}

// MockTranscriber is a fixed-output core.Transcriber for tests.
type MockTranscriber struct {
	Transcript string
	Err        error
	Delay      time.Duration

	mu        sync.Mutex
	callCount int
}

// Transcribe returns the configured transcript
func (m *MockTranscriber) Transcribe(ctx context.Context, req core.TranscriptionRequest) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Transcript, nil
}

// CallCount returns how many times Transcribe was invoked
func (m *MockTranscriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// ConstantVector returns a 384-dimensional vector filled with value
func ConstantVector(value float32) core.EmbeddingVector {
	vec := make(core.EmbeddingVector, core.EmbeddingDimension)
	for i := range vec {
		vec[i] = value
	}
	return vec
}

// UnitVector returns a 384-dimensional vector with a single 1 at index.
// Distinct unit vectors are orthogonal, which makes similarity arithmetic
// in tests exact.
func UnitVector(index int) core.EmbeddingVector {
	vec := make(core.EmbeddingVector, core.EmbeddingDimension)
	vec[index%core.EmbeddingDimension] = 1
	return vec
}

// BlendVector returns a*UnitVector(i) + b*UnitVector(j), unnormalized.
// Cosine similarity against UnitVector(i) is a/sqrt(a^2+b^2).
func BlendVector(i int, a float32, j int, b float32) core.EmbeddingVector {
	vec := make(core.EmbeddingVector, core.EmbeddingDimension)
	vec[i%core.EmbeddingDimension] = a
	vec[j%core.EmbeddingDimension] = b
	return vec
}
