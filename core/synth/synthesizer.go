// Package synth turns a ranked set of notes into a grounded,
// natural-language answer. It owns the synthesis prompt, the retry policy
// around the language-model call, and citation extraction.
//
// The context block labels each note with a 1-based position ("Note 1",
// "Note 2", ...). Citation extraction scans the answer for those literal
// position markers, so the prompt text and the extraction pattern form one
// co-versioned unit: changing either alone breaks the contract.
package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mnemonic-kb/mnemonic/core"
)

// FallbackAnswer is returned verbatim when there are no notes to ground an
// answer in. The language model is never invoked in that case.
const FallbackAnswer = "I couldn't find any relevant notes to answer your question. Try adding more notes or rephrasing your query."

// emptyCompletionAnswer stands in for a completion that came back blank.
const emptyCompletionAnswer = "Sorry, I couldn't generate a response."

const systemPrompt = "You are a personal knowledge assistant that helps users understand their own notes."

// Generation settings chosen for determinism: low temperature and a tight
// nucleus keep citation phrasing stable across runs.
const (
	defaultTemperature = 0.4
	defaultTopP        = 0.2
	defaultMaxTokens   = 500
)

// Synthesizer builds a grounding context from ranked notes and invokes a
// language model with retry.
type Synthesizer struct {
	llm       core.CompletionProvider
	retry     RetryPolicy
	maxTokens int
}

// NewSynthesizer creates a synthesizer with the default retry policy and
// token budget.
func NewSynthesizer(llm core.CompletionProvider) *Synthesizer {
	return &Synthesizer{
		llm:       llm,
		retry:     DefaultRetryPolicy(),
		maxTokens: defaultMaxTokens,
	}
}

// NewSynthesizerWithPolicy creates a synthesizer with an explicit retry
// policy, used by tests to avoid real backoff delays.
func NewSynthesizerWithPolicy(llm core.CompletionProvider, policy RetryPolicy) *Synthesizer {
	return &Synthesizer{
		llm:       llm,
		retry:     policy,
		maxTokens: defaultMaxTokens,
	}
}

// Synthesize produces an answer grounded only in the supplied matches plus
// the subset of matches the answer actually cited. With zero matches it
// short-circuits to the fixed fallback answer without calling the model.
// A model call that fails after retries surfaces as ErrSynthesis.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, matches []core.RankedMatch) (core.Synthesis, error) {
	if len(matches) == 0 {
		return core.Synthesis{
			Answer:       FallbackAnswer,
			CitedNoteIDs: []uuid.UUID{},
		}, nil
	}

	req := core.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(query, matches),
		Temperature:  defaultTemperature,
		TopP:         defaultTopP,
		MaxTokens:    s.maxTokens,
	}

	var answer string
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var callErr error
		answer, callErr = s.llm.Complete(ctx, req)
		return callErr
	})
	if err != nil {
		return core.Synthesis{}, core.NewQueryError("Synthesize", core.ErrSynthesis, err.Error(), false)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = emptyCompletionAnswer
	}

	return core.Synthesis{
		Answer:       answer,
		CitedNoteIDs: extractCitations(answer, matches),
	}, nil
}

// buildContext renders one labeled paragraph per match, in rank order,
// joined by blank lines. The "Note i" position label is what citation
// extraction keys on.
func buildContext(matches []core.RankedMatch) string {
	paragraphs := make([]string, len(matches))
	for i, m := range matches {
		paragraphs[i] = fmt.Sprintf(
			"Note %d (Similarity: %.3f):\nTitle: %s\nContent: %s\nTags: %s",
			i+1, m.Similarity, m.Note.Title, m.Note.Content, strings.Join(m.Note.Tags, ", "),
		)
	}
	return strings.Join(paragraphs, "\n\n")
}

func buildUserPrompt(query string, matches []core.RankedMatch) string {
	return fmt.Sprintf(`You are a helpful assistant that synthesizes information from personal notes.

Retrieved Notes:
%s

User Question: %s

Instructions:
1. Answer the question using ONLY information from the notes above
2. Cite specific notes by their TITLE when making claims (e.g., "According to 'Python Tips'..." or "'Database Design' mentions...")
3. If notes don't fully answer the question, acknowledge limitations
4. Keep the answer concise and well-organized
5. Do not mention internal IDs or system metadata
6. Use a friendly, conversational tone

Answer:`, buildContext(matches), query)
}

// extractCitations scans the answer for each match's literal position
// marker ("Note 1", "Note 2", ...). This is a deliberately simple
// substring scan, not semantic matching; an answer that cites only by
// title yields no citations.
func extractCitations(answer string, matches []core.RankedMatch) []uuid.UUID {
	cited := []uuid.UUID{}
	for i, m := range matches {
		if strings.Contains(answer, fmt.Sprintf("Note %d", i+1)) {
			cited = append(cited, m.Note.ID)
		}
	}
	return cited
}
