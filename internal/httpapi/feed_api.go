package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/johnrirwin/feedmix/internal/auth"
	"github.com/johnrirwin/feedmix/internal/logging"
	"github.com/johnrirwin/feedmix/internal/models"
)

// handleGetFeed handles GET /api/feed
func (s *Server) handleGetFeed(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r, defaultPageLimit, maxPageLimit)
	username := auth.GetUsername(r.Context())

	response, err := s.feeds.FeedFor(r.Context(), username, models.PageParams{Limit: limit, Offset: offset})
	if err != nil {
		s.writeStoreError(w, err, "failed to build feed")
		return
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleListSources handles GET /api/sources
func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	account, ok := s.currentAccount(w, r)
	if !ok {
		return
	}

	list, err := s.sources.ListSources(r.Context(), account.ID)
	if err != nil {
		s.writeStoreError(w, err, "failed to list sources")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sources": list,
		"count":   len(list),
	})
}

// handleAddSource handles POST /api/sources
func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var params models.AddSourceParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_input", "invalid request body")
		return
	}
	if params.URL == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_input", "url is required")
		return
	}

	account, ok := s.currentAccount(w, r)
	if !ok {
		return
	}

	src, err := s.registry.Register(r.Context(), params)
	if err != nil {
		s.writeStoreError(w, err, "failed to register source")
		return
	}

	if err := s.sources.AddSource(r.Context(), account.ID, src); err != nil {
		s.writeStoreError(w, err, "failed to add source")
		return
	}

	s.logger.Info("Source added", logging.WithFields(map[string]interface{}{
		"account": account.Username,
		"source":  src.Feed,
		"type":    string(src.Type),
	}))
	s.writeJSON(w, http.StatusCreated, src)
}

// handleRemoveSource handles DELETE /api/sources/{id}
func (s *Server) handleRemoveSource(w http.ResponseWriter, r *http.Request) {
	sourceID, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_input", "invalid source id")
		return
	}

	account, ok := s.currentAccount(w, r)
	if !ok {
		return
	}

	if err := s.sources.RemoveSource(r.Context(), account.ID, sourceID); err != nil {
		s.writeStoreError(w, err, "failed to remove source")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
