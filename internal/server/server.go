// Package server implements the remote sync endpoint: a transactional
// apply of a client's batch of creates, updates, and deletes, plus the
// tag listing and creation routes the broader app consumes.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Server routes sync and tag requests to the server store.
type Server struct {
	store  *Store
	router *mux.Router
}

// New creates a Server over the given store with all routes registered.
func New(store *Store) *Server {
	s := &Server{store: store, router: mux.NewRouter()}
	s.router.HandleFunc("/api/sync", s.handleSync).Methods(http.MethodPost)
	s.router.HandleFunc("/api/tags", s.handleGetTags).Methods(http.MethodGet)
	s.router.HandleFunc("/api/tags", s.handleCreateTag).Methods(http.MethodPost)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// syncRequest is the body of POST /api/sync.
type syncRequest struct {
	UserID       string       `json:"userId"`
	NewTasks     []TaskRecord `json:"newTasks"`
	UpdatedTasks []TaskRecord `json:"updatedTasks"`
	DeletedTasks []TaskRecord `json:"deletedTasks"`
}

// createTagRequest is the body of POST /api/tags.
type createTagRequest struct {
	Name     string  `json:"name"`
	Color    string  `json:"color"`
	UserID   string  `json:"userId"`
	ParentID *string `json:"parentId,omitempty"`
}

// respondWithJSON formats and sends a JSON response.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithError sends a JSON {error} body with the given status.
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// handleSync applies a client's batch atomically. A request without a
// userId is rejected before any mutation.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	defer r.Body.Close()

	if req.UserID == "" {
		respondWithError(w, http.StatusBadRequest, "missing userId")
		return
	}

	err := s.store.ApplyBatch(r.Context(), req.UserID,
		req.NewTasks, req.UpdatedTasks, req.DeletedTasks)
	if err != nil {
		log.Printf("sync batch for user %s failed: %v", req.UserID, err)
		respondWithError(w, http.StatusInternalServerError, "failed to apply sync batch")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "sync completed",
	})
}

// handleGetTags lists a user's tags ordered by name.
func (s *Server) handleGetTags(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "missing userId")
		return
	}

	tags, err := s.store.Tags(r.Context(), userID)
	if err != nil {
		log.Printf("listing tags for user %s failed: %v", userID, err)
		respondWithError(w, http.StatusInternalServerError, "failed to list tags")
		return
	}
	if tags == nil {
		tags = []TagRecord{}
	}

	respondWithJSON(w, http.StatusOK, tags)
}

// handleCreateTag creates a tag, rejecting duplicate names per user.
func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req createTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	defer r.Body.Close()

	if req.UserID == "" {
		respondWithError(w, http.StatusBadRequest, "missing userId")
		return
	}
	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "missing tag name")
		return
	}

	tag := TagRecord{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Color:     req.Color,
		UserID:    req.UserID,
		ParentID:  req.ParentID,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.CreateTag(r.Context(), tag); err != nil {
		if errors.Is(err, errDuplicateTag) {
			respondWithError(w, http.StatusBadRequest, "tag name already exists")
			return
		}
		log.Printf("creating tag for user %s failed: %v", req.UserID, err)
		respondWithError(w, http.StatusInternalServerError, "failed to create tag")
		return
	}

	respondWithJSON(w, http.StatusCreated, tag)
}
