package synth

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemonic-kb/mnemonic/core"
	"github.com/mnemonic-kb/mnemonic/core/ai"
)

func testMatches(n int) []core.RankedMatch {
	matches := make([]core.RankedMatch, n)
	for i := range matches {
		matches[i] = core.RankedMatch{
			Note: core.Note{
				ID:        uuid.New(),
				OwnerID:   "user-1",
				Title:     fmt.Sprintf("Title %d", i+1),
				Content:   fmt.Sprintf("Content %d", i+1),
				Tags:      []string{"tag-a", "tag-b"},
				Embedding: ai.UnitVector(i),
				CreatedAt: time.Now(),
			},
			Similarity: 0.9 - float64(i)*0.1,
			Position:   i + 1,
		}
	}
	return matches
}

func TestSynthesizeFallbackOnZeroMatches(t *testing.T) {
	completer := &ai.MockCompleter{Answer: "should never be used"}
	s := NewSynthesizer(completer)

	result, err := s.Synthesize(context.Background(), "anything?", nil)
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, result.Answer)
	assert.Empty(t, result.CitedNoteIDs)
	assert.Equal(t, 0, completer.CallCount(), "language model must not be invoked")
}

func TestSynthesizeCitationExtraction(t *testing.T) {
	matches := testMatches(3)
	completer := &ai.MockCompleter{Answer: "According to Note 2, the answer is yes."}
	s := NewSynthesizer(completer)

	result, err := s.Synthesize(context.Background(), "is it?", matches)
	require.NoError(t, err)
	require.Len(t, result.CitedNoteIDs, 1)
	assert.Equal(t, matches[1].Note.ID, result.CitedNoteIDs[0], "only match #2 is cited")
}

func TestSynthesizeCitationByTitleIsNotExtracted(t *testing.T) {
	// The extraction scan is positional by design; an answer citing only
	// titles yields no citations.
	matches := testMatches(2)
	completer := &ai.MockCompleter{Answer: "According to 'Title 1', the answer is yes."}
	s := NewSynthesizer(completer)

	result, err := s.Synthesize(context.Background(), "is it?", matches)
	require.NoError(t, err)
	assert.Empty(t, result.CitedNoteIDs)
}

func TestSynthesizeMultipleCitations(t *testing.T) {
	matches := testMatches(3)
	completer := &ai.MockCompleter{Answer: "Note 3 expands on Note 1."}
	s := NewSynthesizer(completer)

	result, err := s.Synthesize(context.Background(), "expand?", matches)
	require.NoError(t, err)
	require.Len(t, result.CitedNoteIDs, 2)
	assert.Equal(t, matches[0].Note.ID, result.CitedNoteIDs[0])
	assert.Equal(t, matches[2].Note.ID, result.CitedNoteIDs[1])
}

func TestSynthesizePromptConstruction(t *testing.T) {
	matches := testMatches(2)
	matches[0].Similarity = 0.912345
	completer := &ai.MockCompleter{Answer: "ok"}
	s := NewSynthesizer(completer)

	_, err := s.Synthesize(context.Background(), "what is in my notes?", matches)
	require.NoError(t, err)

	req := completer.LastRequest()
	assert.Equal(t, "You are a personal knowledge assistant that helps users understand their own notes.", req.SystemPrompt)
	assert.Contains(t, req.UserPrompt, "Note 1 (Similarity: 0.912):", "similarity is rounded to 3 decimals")
	assert.Contains(t, req.UserPrompt, "Note 2 (Similarity: 0.800):")
	assert.Contains(t, req.UserPrompt, "Title: Title 1")
	assert.Contains(t, req.UserPrompt, "Content: Content 2")
	assert.Contains(t, req.UserPrompt, "Tags: tag-a, tag-b")
	assert.Contains(t, req.UserPrompt, "User Question: what is in my notes?")
	assert.InDelta(t, 0.4, req.Temperature, 1e-9)
	assert.InDelta(t, 0.2, req.TopP, 1e-9)
	assert.Equal(t, 500, req.MaxTokens)

	// Paragraphs are separated by exactly one blank line
	assert.True(t, strings.Contains(req.UserPrompt, "Tags: tag-a, tag-b\n\nNote 2"))
}

func TestSynthesizeRetriesTransientFailures(t *testing.T) {
	completer := &ai.MockCompleter{Answer: "recovered answer", FailAttempts: 2}
	s := NewSynthesizerWithPolicy(completer, fastPolicy())

	result, err := s.Synthesize(context.Background(), "query", testMatches(1))
	require.NoError(t, err)
	assert.Equal(t, "recovered answer", result.Answer)
	assert.Equal(t, 3, completer.CallCount())
}

func TestSynthesizeExhaustedRetriesFail(t *testing.T) {
	completer := &ai.MockCompleter{Answer: "never", FailAttempts: 100}
	s := NewSynthesizerWithPolicy(completer, fastPolicy())

	_, err := s.Synthesize(context.Background(), "query", testMatches(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSynthesis)
	assert.Equal(t, 3, completer.CallCount())
}

func TestSynthesizeBlankCompletion(t *testing.T) {
	completer := &ai.MockCompleter{Answer: "   "}
	s := NewSynthesizer(completer)

	result, err := s.Synthesize(context.Background(), "query", testMatches(1))
	require.NoError(t, err)
	assert.Equal(t, emptyCompletionAnswer, result.Answer)
	assert.Empty(t, result.CitedNoteIDs)
}
