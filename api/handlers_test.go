package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemonic-kb/mnemonic/core"
	"github.com/mnemonic-kb/mnemonic/core/ai"
	"github.com/mnemonic-kb/mnemonic/core/query"
	"github.com/mnemonic-kb/mnemonic/core/rank"
	"github.com/mnemonic-kb/mnemonic/core/synth"
	"github.com/mnemonic-kb/mnemonic/notes"
	"github.com/mnemonic-kb/mnemonic/persistence"
)

const testQueryText = "How do I speed up Python?"

type testServer struct {
	server      *Server
	store       *persistence.MemoryStore
	embedder    *ai.MockEmbedder
	completer   *ai.MockCompleter
	transcriber *ai.MockTranscriber
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := persistence.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	embedder := &ai.MockEmbedder{
		Vectors: map[string]core.EmbeddingVector{
			testQueryText:                          ai.UnitVector(0),
			"Python Tips\nUse built-in functions.": ai.UnitVector(0),
		},
	}
	completer := &ai.MockCompleter{Answer: "Note 1 explains it well."}
	transcriber := &ai.MockTranscriber{Transcript: testQueryText}

	orchestrator := query.NewOrchestrator(
		embedder,
		transcriber,
		rank.NewRanker(store),
		synth.NewSynthesizer(completer),
	)
	server := NewServer(notes.NewService(store, embedder), orchestrator, DefaultServerConfig())

	return &testServer{
		server:      server,
		store:       store,
		embedder:    embedder,
		completer:   completer,
		transcriber: transcriber,
	}
}

func (ts *testServer) request(t *testing.T, method, path string, body any, owner string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set("X-User-ID", owner)
	}

	recorder := httptest.NewRecorder()
	ts.server.ServeHTTP(recorder, req)
	return recorder
}

func (ts *testServer) createNote(t *testing.T, owner, title, content string, tags []string) core.Note {
	t.Helper()
	recorder := ts.request(t, http.MethodPost, "/api/v1/notes", CreateNoteRequest{
		Title:   title,
		Content: content,
		Tags:    tags,
	}, owner)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	var note core.Note
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &note))
	return note
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	recorder := ts.request(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))

	var health HealthResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
}

func TestMissingOwnerHeader(t *testing.T) {
	ts := newTestServer(t)

	recorder := ts.request(t, http.MethodGet, "/api/v1/notes", nil, "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "X-User-ID")
}

func TestNoteCRUD(t *testing.T) {
	ts := newTestServer(t)

	created := ts.createNote(t, "user-1", "Python Tips", "Use built-in functions.", []string{"python"})
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "Python Tips", created.Title)

	// Get
	recorder := ts.request(t, http.MethodGet, "/api/v1/notes/"+created.ID.String(), nil, "user-1")
	require.Equal(t, http.StatusOK, recorder.Code)

	// Another owner cannot see it
	recorder = ts.request(t, http.MethodGet, "/api/v1/notes/"+created.ID.String(), nil, "user-2")
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	// Update
	title := "Python Tricks"
	recorder = ts.request(t, http.MethodPut, "/api/v1/notes/"+created.ID.String(), UpdateNoteRequest{Title: &title}, "user-1")
	require.Equal(t, http.StatusOK, recorder.Code)
	var updated core.Note
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &updated))
	assert.Equal(t, "Python Tricks", updated.Title)

	// Delete
	recorder = ts.request(t, http.MethodDelete, "/api/v1/notes/"+created.ID.String(), nil, "user-1")
	require.Equal(t, http.StatusOK, recorder.Code)
	var deleted NoteDeleteResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &deleted))
	assert.Equal(t, created.ID, deleted.DeletedID)

	recorder = ts.request(t, http.MethodGet, "/api/v1/notes/"+created.ID.String(), nil, "user-1")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestCreateNoteValidation(t *testing.T) {
	ts := newTestServer(t)

	recorder := ts.request(t, http.MethodPost, "/api/v1/notes", CreateNoteRequest{Title: "no content"}, "user-1")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestInvalidNoteID(t *testing.T) {
	ts := newTestServer(t)

	recorder := ts.request(t, http.MethodGet, "/api/v1/notes/not-a-uuid", nil, "user-1")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestListNotesPagination(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 3; i++ {
		ts.createNote(t, "user-1", fmt.Sprintf("Note %d", i), "body", []string{"work"})
	}
	ts.createNote(t, "user-2", "Foreign", "body", nil)

	recorder := ts.request(t, http.MethodGet, "/api/v1/notes?page=1&page_size=2", nil, "user-1")
	require.Equal(t, http.StatusOK, recorder.Code)

	var list NoteListResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &list))
	assert.Equal(t, 3, list.Total)
	assert.Len(t, list.Notes, 2)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 2, list.PageSize)

	recorder = ts.request(t, http.MethodGet, "/api/v1/notes?page=0", nil, "user-1")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = ts.request(t, http.MethodGet, "/api/v1/notes?page_size=101", nil, "user-1")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestListTags(t *testing.T) {
	ts := newTestServer(t)
	ts.createNote(t, "user-1", "A", "body", []string{"python", "testing"})
	ts.createNote(t, "user-1", "B", "body", []string{"python"})

	recorder := ts.request(t, http.MethodGet, "/api/v1/notes/tags", nil, "user-1")
	require.Equal(t, http.StatusOK, recorder.Code)

	var tags TagsResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &tags))
	assert.Equal(t, []string{"python", "testing"}, tags.Tags)
}

func TestTextQueryEndToEnd(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createNote(t, "user-1", "Python Tips", "Use built-in functions.", []string{"python"})

	recorder := ts.request(t, http.MethodPost, "/api/v1/query/text", TextQueryRequest{
		Query: testQueryText,
		TopK:  5,
	}, "user-1")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, testQueryText, resp.Query)
	assert.Equal(t, "Note 1 explains it well.", resp.Answer)
	assert.Equal(t, "high", resp.Confidence)
	require.Len(t, resp.RetrievedNotes, 1)
	assert.Equal(t, created.ID, resp.RetrievedNotes[0].ID)
	assert.Equal(t, 1.0, resp.RetrievedNotes[0].SimilarityScore)
	require.Len(t, resp.CitedNotes, 1)
	assert.Equal(t, created.ID, resp.CitedNotes[0])
	assert.GreaterOrEqual(t, resp.ExecutionTimeMS, 0.0)
}

func TestTextQueryNoMatches(t *testing.T) {
	ts := newTestServer(t)

	recorder := ts.request(t, http.MethodPost, "/api/v1/query/text", TextQueryRequest{
		Query: testQueryText,
	}, "user-1")
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "low", resp.Confidence)
	assert.Equal(t, synth.FallbackAnswer, resp.Answer)
	assert.Empty(t, resp.RetrievedNotes)
	assert.NotNil(t, resp.CitedNotes)
	assert.Empty(t, resp.CitedNotes)
}

func TestTextQueryValidation(t *testing.T) {
	ts := newTestServer(t)

	recorder := ts.request(t, http.MethodPost, "/api/v1/query/text", TextQueryRequest{Query: "  "}, "user-1")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = ts.request(t, http.MethodPost, "/api/v1/query/text", TextQueryRequest{Query: "q", TopK: 21}, "user-1")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestSearchEndpoint(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createNote(t, "user-1", "Python Tips", "Use built-in functions.", []string{"python"})

	recorder := ts.request(t, http.MethodPost, "/api/v1/search", SearchRequest{
		Query: testQueryText,
		TopK:  5,
	}, "user-1")
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.TotalResults)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, created.ID, resp.Results[0].ID)
	assert.Equal(t, 0, ts.completer.CallCount(), "search never calls the model")
}

func audioRequest(t *testing.T, path string, contentType string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="audio"; filename="question.wav"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("fake audio bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-User-ID", "user-1")
	return req
}

func TestVoiceQueryEndToEnd(t *testing.T) {
	ts := newTestServer(t)
	ts.createNote(t, "user-1", "Python Tips", "Use built-in functions.", []string{"python"})

	recorder := httptest.NewRecorder()
	ts.server.ServeHTTP(recorder, audioRequest(t, "/api/v1/query/voice?top_k=5", "audio/wav"))
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, testQueryText, resp.Query, "response carries the transcript")
	assert.Equal(t, "high", resp.Confidence)
	assert.Equal(t, 1, ts.transcriber.CallCount())
}

func TestVoiceQueryMissingAudio(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("note", "no file here"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query/voice", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-User-ID", "user-1")

	recorder := httptest.NewRecorder()
	ts.server.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestTranscribeEndpoint(t *testing.T) {
	ts := newTestServer(t)

	recorder := httptest.NewRecorder()
	ts.server.ServeHTTP(recorder, audioRequest(t, "/api/v1/voice/transcribe?language=en", "audio/wav"))
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp TranscriptionResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, testQueryText, resp.TranscribedText)
	assert.Equal(t, "en", resp.Language)
	assert.Equal(t, 0, ts.embedder.CallCount(), "transcription alone runs no query")
}

func TestTranscribeFailureMapsToBadRequest(t *testing.T) {
	ts := newTestServer(t)
	ts.transcriber.Err = core.NewQueryError("Transcribe", core.ErrTranscription, "no speech recognized", false)

	recorder := httptest.NewRecorder()
	ts.server.ServeHTTP(recorder, audioRequest(t, "/api/v1/voice/transcribe", "audio/wav"))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
