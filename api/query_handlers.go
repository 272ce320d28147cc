package api

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mnemonic-kb/mnemonic/core"
	"github.com/mnemonic-kb/mnemonic/core/query"
)

// maxAudioBytes caps voice uploads at 25MB, the Whisper API limit.
const maxAudioBytes = 25 << 20

// Query request/response types
type TextQueryRequest struct {
	Query         string  `json:"query"`
	TopK          int     `json:"top_k"`
	MinSimilarity float64 `json:"min_similarity"`
}

type RetrievedNote struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	Tags            []string  `json:"tags"`
	SimilarityScore float64   `json:"similarity_score"`
	CreatedAt       time.Time `json:"created_at"`
}

type QueryResponse struct {
	Query           string          `json:"query"`
	Answer          string          `json:"answer"`
	Confidence      string          `json:"confidence"`
	RetrievedNotes  []RetrievedNote `json:"retrieved_notes"`
	CitedNotes      []uuid.UUID     `json:"cited_notes"`
	ExecutionTimeMS float64         `json:"execution_time_ms"`
}

type SearchRequest struct {
	Query         string  `json:"query"`
	TopK          int     `json:"top_k"`
	MinSimilarity float64 `json:"min_similarity"`
}

type SearchResponse struct {
	Query        string          `json:"query"`
	Results      []RetrievedNote `json:"results"`
	TotalResults int             `json:"total_results"`
}

type TranscriptionResponse struct {
	TranscribedText string  `json:"transcribed_text"`
	Language        string  `json:"language,omitempty"`
	DurationMS      float64 `json:"duration_ms"`
}

// handleTextQuery runs the full query pipeline for a text question
func (s *Server) handleTextQuery(w http.ResponseWriter, r *http.Request) {
	var req TextQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.orchestrator.AnswerTextQuery(r.Context(), query.TextQueryRequest{
		Query:   req.Query,
		OwnerID: ownerID(r),
		Options: queryOptions(req.TopK, req.MinSimilarity),
	})
	if err != nil {
		respondWithPipelineError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toQueryResponse(result))
}

// handleVoiceQuery transcribes uploaded audio and runs the query pipeline
// on the transcript
func (s *Server) handleVoiceQuery(w http.ResponseWriter, r *http.Request) {
	audio, contentType, filename, ok := readAudioUpload(w, r)
	if !ok {
		return
	}

	params := r.URL.Query()
	topK, _ := strconv.Atoi(params.Get("top_k"))
	minSimilarity := core.DefaultMinSimilarity
	if raw := params.Get("min_similarity"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid min_similarity")
			return
		}
		minSimilarity = parsed
	}

	result, err := s.orchestrator.AnswerVoiceQuery(r.Context(), query.VoiceQueryRequest{
		Audio:       audio,
		ContentType: contentType,
		Filename:    filename,
		Language:    params.Get("language"),
		OwnerID:     ownerID(r),
		Options: core.QueryOptions{
			TopK:          topK,
			MinSimilarity: minSimilarity,
		},
	})
	if err != nil {
		respondWithPipelineError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toQueryResponse(result))
}

// handleSearch runs embedding plus ranking only, with no synthesis
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	matches, err := s.orchestrator.Search(r.Context(), ownerID(r), req.Query, queryOptions(req.TopK, req.MinSimilarity))
	if err != nil {
		respondWithPipelineError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, SearchResponse{
		Query:        req.Query,
		Results:      toRetrievedNotes(matches),
		TotalResults: len(matches),
	})
}

// handleTranscribe transcribes uploaded audio without querying
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	audio, contentType, filename, ok := readAudioUpload(w, r)
	if !ok {
		return
	}

	start := time.Now()
	transcript, err := s.orchestrator.Transcribe(r.Context(), core.TranscriptionRequest{
		Audio:       audio,
		ContentType: contentType,
		Filename:    filename,
		Language:    r.URL.Query().Get("language"),
	})
	if err != nil {
		respondWithPipelineError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, TranscriptionResponse{
		TranscribedText: transcript,
		Language:        r.URL.Query().Get("language"),
		DurationMS:      math.Round(float64(time.Since(start).Microseconds())/10) / 100,
	})
}

// readAudioUpload extracts the "audio" file from a multipart form. On
// failure it writes the error response and returns ok=false.
func readAudioUpload(w http.ResponseWriter, r *http.Request) (audio []byte, contentType, filename string, ok bool) {
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form")
		return nil, "", "", false
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Missing audio file")
		return nil, "", "", false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAudioBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read audio file")
		return nil, "", "", false
	}

	return data, header.Header.Get("Content-Type"), header.Filename, true
}

func queryOptions(topK int, minSimilarity float64) core.QueryOptions {
	if minSimilarity == 0 {
		minSimilarity = core.DefaultMinSimilarity
	}
	return core.QueryOptions{
		TopK:          topK,
		MinSimilarity: minSimilarity,
	}
}

func toRetrievedNotes(matches []core.RankedMatch) []RetrievedNote {
	retrieved := make([]RetrievedNote, len(matches))
	for i, m := range matches {
		retrieved[i] = RetrievedNote{
			ID:              m.Note.ID,
			Title:           m.Note.Title,
			Content:         m.Note.Content,
			Tags:            m.Note.Tags,
			SimilarityScore: math.Round(m.Similarity*1000) / 1000,
			CreatedAt:       m.Note.CreatedAt,
		}
	}
	return retrieved
}

func toQueryResponse(result *core.QueryResult) QueryResponse {
	cited := result.CitedNoteIDs
	if cited == nil {
		cited = []uuid.UUID{}
	}
	return QueryResponse{
		Query:           result.Query,
		Answer:          result.Answer,
		Confidence:      string(result.Confidence),
		RetrievedNotes:  toRetrievedNotes(result.Matches),
		CitedNotes:      cited,
		ExecutionTimeMS: result.ExecutionTimeMS,
	}
}
