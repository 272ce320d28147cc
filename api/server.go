package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mnemonic-kb/mnemonic/core"
	"github.com/mnemonic-kb/mnemonic/core/query"
	"github.com/mnemonic-kb/mnemonic/notes"
)

// Server represents the REST API server
type Server struct {
	notes        *notes.Service
	orchestrator *query.Orchestrator
	router       *mux.Router
	httpServer   *http.Server
	config       ServerConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// NewServer creates a new API server
func NewServer(noteService *notes.Service, orchestrator *query.Orchestrator, config ServerConfig) *Server {
	s := &Server{
		notes:        noteService,
		orchestrator: orchestrator,
		config:       config,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	// Middleware
	s.router.Use(loggingMiddleware)
	s.router.Use(jsonContentTypeMiddleware)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// All note and query endpoints require an owner identity
	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.Use(ownerMiddleware)

	// Note endpoints
	v1.HandleFunc("/notes", s.handleCreateNote).Methods("POST")
	v1.HandleFunc("/notes", s.handleListNotes).Methods("GET")
	v1.HandleFunc("/notes/tags", s.handleListTags).Methods("GET")
	v1.HandleFunc("/notes/{id}", s.handleGetNote).Methods("GET")
	v1.HandleFunc("/notes/{id}", s.handleUpdateNote).Methods("PUT")
	v1.HandleFunc("/notes/{id}", s.handleDeleteNote).Methods("DELETE")

	// Retrieval endpoints
	v1.HandleFunc("/search", s.handleSearch).Methods("POST")
	v1.HandleFunc("/query/text", s.handleTextQuery).Methods("POST")
	v1.HandleFunc("/query/voice", s.handleVoiceQuery).Methods("POST")
	v1.HandleFunc("/voice/transcribe", s.handleTranscribe).Methods("POST")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	log.Printf("Starting Mnemonic API server on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Middleware functions

type contextKey string

const ownerIDKey contextKey = "ownerID"

// ownerMiddleware requires an owner identity on every request. Token
// verification happens at the gateway; by the time a request reaches this
// service the caller's identity travels in the X-User-ID header.
func ownerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID := r.Header.Get("X-User-ID")
		if ownerID == "" {
			respondWithError(w, http.StatusUnauthorized, "missing X-User-ID header")
			return
		}
		ctx := context.WithValue(r.Context(), ownerIDKey, ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ownerID(r *http.Request) string {
	id, _ := r.Context().Value(ownerIDKey).(string)
	return id
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Error response helper
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// JSON response helper
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Error marshaling JSON"}`))
		return
	}

	w.WriteHeader(code)
	w.Write(response)
}

// respondWithPipelineError maps the error taxonomy to HTTP status codes.
// Client mistakes are 4xx, an unreachable index is 503, provider contract
// violations and exhausted synthesis retries are 500.
func respondWithPipelineError(w http.ResponseWriter, err error) {
	switch {
	case core.IsInvalidInput(err), core.IsTranscription(err):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case core.IsNoteNotFound(err):
		respondWithError(w, http.StatusNotFound, err.Error())
	case core.IsIndexUnavailable(err):
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}
