package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/johnrirwin/feedmix/internal/aggregator"
	"github.com/johnrirwin/feedmix/internal/logging"
	"github.com/johnrirwin/feedmix/internal/models"
)

// handleCreatePost handles POST /api/posts
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var params models.CreatePostParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_input", "invalid request body")
		return
	}

	account, ok := s.currentAccount(w, r)
	if !ok {
		return
	}

	body, err := s.sanitizer.Sanitize(params.Body)
	if err != nil {
		s.logger.Warn("Failed to sanitize post body", logging.WithFields(map[string]interface{}{
			"author": account.Username,
			"error":  err.Error(),
		}))
		body = ""
	}
	params.Body = body

	post, err := s.posts.PutPost(r.Context(), *account, params)
	if err != nil {
		s.writeStoreError(w, err, "failed to create post")
		return
	}

	s.writeJSON(w, http.StatusCreated, post)
}

// handleUserPosts handles GET /api/users/{username}/posts
func (s *Server) handleUserPosts(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r, defaultPageLimit, maxPageLimit)

	account, err := s.accounts.GetAccountByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		s.writeStoreError(w, err, "failed to load account")
		return
	}

	posts, err := s.posts.GetPostsByAuthor(r.Context(), account.ID)
	if err != nil {
		s.writeStoreError(w, err, "failed to list posts")
		return
	}

	aggregator.SortPosts(posts)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"posts":      aggregator.Paginate(posts, models.PageParams{Limit: limit, Offset: offset}),
		"totalCount": len(posts),
	})
}
