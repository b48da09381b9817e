package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/johnrirwin/feedmix/internal/metrics"
	"github.com/johnrirwin/feedmix/internal/models"
)

// Store gives typed access to feed documents and normalized posts.
//
// Feed documents are keyed by the source's feed URL, posts by
// "<source id>:<post id>". Writes to one key are last-write-wins.
type Store struct {
	backend Cache
}

// NewStore wraps a cache backend.
func NewStore(backend Cache) *Store {
	return &Store{backend: backend}
}

// Backend returns the wrapped cache.
func (s *Store) Backend() Cache {
	return s.backend
}

// FeedKey is the cache key of a feed document.
func FeedKey(feedURL string) string {
	return feedURL
}

// PostKey is the cache key of a normalized post.
func PostKey(sourceID, postID uint64) string {
	return strconv.FormatUint(sourceID, 10) + ":" + strconv.FormatUint(postID, 10)
}

func (s *Store) PutFeed(ctx context.Context, feedURL string, doc *models.FeedDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode feed %s: %w", feedURL, err)
	}
	s.backend.Set(ctx, FeedKey(feedURL), data)
	return nil
}

func (s *Store) GetFeed(ctx context.Context, feedURL string) (*models.FeedDocument, bool) {
	data, ok := s.backend.Get(ctx, FeedKey(feedURL))
	if !ok {
		metrics.CacheMisses.WithLabelValues("feed").Inc()
		return nil, false
	}

	var doc models.FeedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		metrics.CacheMisses.WithLabelValues("feed").Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues("feed").Inc()
	return &doc, true
}

func (s *Store) PutPost(ctx context.Context, sourceID uint64, post models.Post) error {
	data, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("encode post %d: %w", post.ID, err)
	}
	s.backend.Set(ctx, PostKey(sourceID, post.ID), data)
	return nil
}

func (s *Store) GetPost(ctx context.Context, sourceID, postID uint64) (models.Post, bool) {
	data, ok := s.backend.Get(ctx, PostKey(sourceID, postID))
	if !ok {
		metrics.CacheMisses.WithLabelValues("post").Inc()
		return models.Post{}, false
	}

	var post models.Post
	if err := json.Unmarshal(data, &post); err != nil {
		metrics.CacheMisses.WithLabelValues("post").Inc()
		return models.Post{}, false
	}
	metrics.CacheHits.WithLabelValues("post").Inc()
	return post, true
}
