package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/johnrirwin/feedmix/internal/models"
)

// PostStore handles native posts written by accounts
type PostStore struct {
	db *DB
}

// NewPostStore creates a new post store
func NewPostStore(db *DB) *PostStore {
	return &PostStore{db: db}
}

// PutPost stores a native post. Its id is the title fingerprint, the same
// scheme used for feed entries.
func (s *PostStore) PutPost(ctx context.Context, author models.Account, params models.CreatePostParams) (*models.Post, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, &models.ValidationError{Field: "title", Message: "title is required"}
	}

	post := &models.Post{
		ID:     models.Fingerprint(title),
		Author: author.Username,
		Title:  title,
		Body:   params.Body,
		Image:  params.Image,
		Link:   params.Link,
		Type:   models.PostTypeNative,
		Source: models.NativeSource,
	}

	query, args := insertPostQuery(uuid.NewString(), author.ID, post)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&post.Datetime); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	post.Datetime = post.Datetime.UTC()

	return post, nil
}

// GetPostsByAuthor returns the native posts of an account, newest first
func (s *PostStore) GetPostsByAuthor(ctx context.Context, authorID string) ([]models.Post, error) {
	query, args := selectPostsByAuthorQuery(authorID)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		var (
			post        models.Post
			fingerprint string
			image       sql.NullString
		)
		if err := rows.Scan(&fingerprint, &post.Author, &post.Title, &post.Body, &image, &post.Link, &post.Datetime); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		if post.ID, err = strconv.ParseUint(fingerprint, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid post fingerprint %q: %w", fingerprint, err)
		}
		if image.Valid {
			post.Image = &image.String
		}
		post.Datetime = post.Datetime.UTC()
		post.Type = models.PostTypeNative
		post.Source = models.NativeSource
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func insertPostQuery(id, authorID string, post *models.Post) (string, []interface{}) {
	var image interface{}
	if post.Image != nil {
		image = *post.Image
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("posts").
		Cols("id", "author_id", "fingerprint", "title", "body", "image", "link").
		Values(id, authorID, numeric(post.ID), post.Title, post.Body, image, post.Link)
	ib.SQL("RETURNING created_at")
	return ib.Build()
}

func selectPostsByAuthorQuery(authorID string) (string, []interface{}) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("p.fingerprint::text", "a.username", "p.title", "p.body", "p.image", "p.link", "p.created_at").
		From("posts p").
		Join("accounts a", "a.id = p.author_id").
		Where(sb.Equal("p.author_id", authorID)).
		OrderBy("p.created_at").Desc()
	return sb.Build()
}
