package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/johnrirwin/feedmix/internal/auth"
	"github.com/johnrirwin/feedmix/internal/logging"
	"github.com/johnrirwin/feedmix/internal/models"
)

// handleCreateAccount handles POST /api/accounts. The response carries an
// access token for the new account.
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var params models.CreateAccountParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_input", "invalid request body")
		return
	}

	account, err := s.accounts.CreateAccount(r.Context(), params)
	if err != nil {
		s.writeStoreError(w, err, "failed to create account")
		return
	}

	token, err := s.authSvc.IssueToken(r.Context(), account.Username)
	if err != nil {
		s.logger.Error("Failed to issue token", logging.WithField("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "internal_error", "failed to issue token")
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"account": account,
		"token":   token,
	})
}

// handleFollow handles POST /api/follow/{username}
func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.PathValue("username"))
	if target == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "username required")
		return
	}

	follower := auth.GetUsername(r.Context())
	if err := s.accounts.Follow(r.Context(), follower, target); err != nil {
		s.writeStoreError(w, err, "failed to follow user")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"following": true,
	})
}

// handleUnfollow handles DELETE /api/follow/{username}
func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.PathValue("username"))
	follower := auth.GetUsername(r.Context())

	if err := s.accounts.Unfollow(r.Context(), follower, target); err != nil {
		s.writeStoreError(w, err, "failed to unfollow user")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"following": false,
	})
}
