package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mnemonic-kb/mnemonic/core"
	"github.com/mnemonic-kb/mnemonic/notes"
)

// Health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   "1.0.0",
	}
	respondWithJSON(w, http.StatusOK, response)
}

// Note request/response types
type CreateNoteRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

type UpdateNoteRequest struct {
	Title   *string   `json:"title"`
	Content *string   `json:"content"`
	Tags    *[]string `json:"tags"`
}

type NoteListResponse struct {
	Notes    []core.Note `json:"notes"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

type NoteDeleteResponse struct {
	Message   string    `json:"message"`
	DeletedID uuid.UUID `json:"deleted_id"`
}

type TagsResponse struct {
	Tags []string `json:"tags"`
}

// handleCreateNote creates a new note for the authenticated owner
func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	note, err := s.notes.Create(r.Context(), ownerID(r), notes.CreateInput{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		respondWithPipelineError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, note)
}

// handleListNotes returns a page of the owner's notes
func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)
	if page < 1 || pageSize < 1 || pageSize > 100 {
		respondWithError(w, http.StatusBadRequest, "page must be >= 1 and page_size between 1 and 100")
		return
	}

	listed, total, err := s.notes.List(r.Context(), ownerID(r), core.ListOptions{
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
		Tag:    r.URL.Query().Get("tag"),
	})
	if err != nil {
		respondWithPipelineError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, NoteListResponse{
		Notes:    listed,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// handleGetNote returns a single note
func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid note ID")
		return
	}

	note, err := s.notes.Get(r.Context(), ownerID(r), id)
	if err != nil {
		respondWithPipelineError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, note)
}

// handleUpdateNote applies a partial update to a note
func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid note ID")
		return
	}

	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	note, err := s.notes.Update(r.Context(), ownerID(r), id, notes.UpdateInput{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		respondWithPipelineError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, note)
}

// handleDeleteNote removes a note
func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid note ID")
		return
	}

	if err := s.notes.Delete(r.Context(), ownerID(r), id); err != nil {
		respondWithPipelineError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, NoteDeleteResponse{
		Message:   "Note deleted successfully",
		DeletedID: id,
	})
}

// handleListTags returns the owner's distinct tags
func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.notes.Tags(r.Context(), ownerID(r))
	if err != nil {
		respondWithPipelineError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return value
}
