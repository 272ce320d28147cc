// Package query composes the capability providers, the ranker, and the
// synthesizer into the two public query pipelines: text and voice. Both
// share one pipeline after input normalization; the voice path merely
// transcribes first and then treats the transcript as the query text.
package query

import (
	"context"
	"math"
	"time"

	"github.com/mnemonic-kb/mnemonic/core"
	"github.com/mnemonic-kb/mnemonic/core/rank"
	"github.com/mnemonic-kb/mnemonic/core/synth"
)

// TextQueryRequest is one text query against an owner's notes.
type TextQueryRequest struct {
	Query   string
	OwnerID string
	Options core.QueryOptions
}

// VoiceQueryRequest is one spoken query against an owner's notes.
type VoiceQueryRequest struct {
	Audio       []byte
	ContentType string
	Filename    string
	Language    string
	OwnerID     string
	Options     core.QueryOptions
}

// Orchestrator runs the retrieval-augmented query pipeline: embed the
// query, rank the owner's notes, classify confidence, synthesize a cited
// answer, and measure end-to-end latency. Each call is an independent
// sequential chain; no state is shared between concurrent queries.
type Orchestrator struct {
	embedder    core.Embedder
	transcriber core.Transcriber
	ranker      *rank.Ranker
	synthesizer *synth.Synthesizer
}

// NewOrchestrator wires the pipeline from its collaborators. The
// transcriber may be nil when voice queries are not served.
func NewOrchestrator(embedder core.Embedder, transcriber core.Transcriber, ranker *rank.Ranker, synthesizer *synth.Synthesizer) *Orchestrator {
	return &Orchestrator{
		embedder:    embedder,
		transcriber: transcriber,
		ranker:      ranker,
		synthesizer: synthesizer,
	}
}

// AnswerTextQuery runs the full pipeline for a text query. Any failure in
// a pipeline step aborts the run and propagates the typed error; no
// partial result is returned.
func (o *Orchestrator) AnswerTextQuery(ctx context.Context, req TextQueryRequest) (*core.QueryResult, error) {
	start := time.Now()
	return o.run(ctx, start, req.Query, req.OwnerID, req.Options)
}

// AnswerVoiceQuery transcribes the audio and then runs the text pipeline
// using the transcript as both the embedding input and the reported query.
// The elapsed time covers transcription as well.
func (o *Orchestrator) AnswerVoiceQuery(ctx context.Context, req VoiceQueryRequest) (*core.QueryResult, error) {
	start := time.Now()

	if o.transcriber == nil {
		return nil, core.NewQueryError("AnswerVoiceQuery", core.ErrTranscription, "no transcriber configured", false)
	}

	transcript, err := o.transcriber.Transcribe(ctx, core.TranscriptionRequest{
		Audio:       req.Audio,
		ContentType: req.ContentType,
		Filename:    req.Filename,
		Language:    req.Language,
	})
	if err != nil {
		return nil, err
	}

	return o.run(ctx, start, transcript, req.OwnerID, req.Options)
}

// Transcribe converts audio to text without running a query, for callers
// that want the transcript alone.
func (o *Orchestrator) Transcribe(ctx context.Context, req core.TranscriptionRequest) (string, error) {
	if o.transcriber == nil {
		return "", core.NewQueryError("Transcribe", core.ErrTranscription, "no transcriber configured", false)
	}
	return o.transcriber.Transcribe(ctx, req)
}

// Search runs the retrieval half of the pipeline only: embed and rank,
// with no confidence label and no synthesis.
func (o *Orchestrator) Search(ctx context.Context, ownerID, queryText string, opts core.QueryOptions) ([]core.RankedMatch, error) {
	if err := core.ValidateQueryText(queryText); err != nil {
		return nil, err
	}
	vector, err := o.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}
	return o.ranker.Rank(ctx, ownerID, vector, opts)
}

func (o *Orchestrator) run(ctx context.Context, start time.Time, queryText, ownerID string, opts core.QueryOptions) (*core.QueryResult, error) {
	if err := core.ValidateQueryText(queryText); err != nil {
		return nil, err
	}

	vector, err := o.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}

	matches, err := o.ranker.Rank(ctx, ownerID, vector, opts)
	if err != nil {
		return nil, err
	}

	// Zero matches is not an error: confidence drops to low and synthesis
	// short-circuits to the fixed fallback answer.
	confidence := core.ConfidenceLow
	if len(matches) > 0 {
		confidence = core.ClassifyConfidence(matches[0].Similarity)
	}

	synthesis, err := o.synthesizer.Synthesize(ctx, queryText, matches)
	if err != nil {
		return nil, err
	}

	return &core.QueryResult{
		Query:           queryText,
		Matches:         matches,
		Confidence:      confidence,
		Answer:          synthesis.Answer,
		CitedNoteIDs:    synthesis.CitedNoteIDs,
		ExecutionTimeMS: elapsedMS(start),
	}, nil
}

// elapsedMS returns the wall-clock time since start in milliseconds,
// rounded to 2 decimal places.
func elapsedMS(start time.Time) float64 {
	ms := float64(time.Since(start).Microseconds()) / 1000.0
	return math.Round(ms*100) / 100
}
