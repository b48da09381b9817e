// Package normalizer turns parsed feed entries into posts.
package normalizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/johnrirwin/feedmix/internal/cache"
	"github.com/johnrirwin/feedmix/internal/logging"
	"github.com/johnrirwin/feedmix/internal/metrics"
	"github.com/johnrirwin/feedmix/internal/models"
)

// MaxEntriesPerFeed caps how many entries of one feed become posts.
const MaxEntriesPerFeed = 5

// Epoch is the datetime given to entries whose pubDate cannot be parsed.
// It sorts them to the end of a feed.
var Epoch = time.Unix(0, 0).UTC()

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	"02 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	"02 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 MST",
}

// SanitizeError reports a body that could not be sanitized. The post keeps an empty body.
type SanitizeError struct {
	Err error
}

func (e *SanitizeError) Error() string {
	return fmt.Sprintf("sanitize body: %v", e.Err)
}

func (e *SanitizeError) Unwrap() error {
	return e.Err
}

// DateParseError reports a pubDate that is not an RFC 822 date.
type DateParseError struct {
	Value string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("invalid pubDate %q", e.Value)
}

// ParseDate parses an RFC 822 style pubDate, tolerating single-digit days
// and a missing weekday.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Epoch, &DateParseError{Value: raw}
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return Epoch, &DateParseError{Value: raw}
}

// Normalizer converts entries to posts and writes each post to the cache.
type Normalizer struct {
	sanitizer Sanitizer
	store     *cache.Store
	logger    *logging.Logger
}

// New creates a normalizer. store may be nil to skip caching.
func New(sanitizer Sanitizer, store *cache.Store, logger *logging.Logger) *Normalizer {
	if sanitizer == nil {
		sanitizer = NewBasicSanitizer()
	}
	return &Normalizer{
		sanitizer: sanitizer,
		store:     store,
		logger:    logger,
	}
}

// NormalizeFeed normalizes at most MaxEntriesPerFeed entries of doc, in document order.
func (n *Normalizer) NormalizeFeed(ctx context.Context, doc *models.FeedDocument, source models.Source) []models.Post {
	if doc == nil {
		return []models.Post{}
	}

	entries := doc.Items
	if len(entries) > MaxEntriesPerFeed {
		entries = entries[:MaxEntriesPerFeed]
	}

	posts := make([]models.Post, 0, len(entries))
	for _, entry := range entries {
		posts = append(posts, n.Normalize(ctx, entry, source))
	}
	return posts
}

// Normalize converts one entry. Problems with the body or date are logged and
// never fail the entry.
//
// The post ID is the fingerprint of the title after trimming surrounding
// whitespace and NFC normalization. Titles that differ only in surrounding
// whitespace or Unicode composition therefore share an ID.
func (n *Normalizer) Normalize(ctx context.Context, entry models.Entry, source models.Source) models.Post {
	title := norm.NFC.String(strings.TrimSpace(entry.Title))

	post := models.Post{
		ID:     models.Fingerprint(title),
		Author: source.Title,
		Title:  title,
		Link:   entry.Link,
		Type:   models.PostTypeRSS,
		Source: source,
	}

	body, err := n.sanitizer.Sanitize(entry.Description)
	if err != nil {
		n.warn("sanitize", &SanitizeError{Err: err}, source, title)
		body = ""
	}
	post.Body = body

	datetime, err := ParseDate(entry.PubDate)
	if err != nil {
		n.warn("pub_date", err, source, title)
	}
	post.Datetime = datetime

	if thumb, ok := entry.ThumbnailURL(); ok {
		post.Image = &thumb
	}

	if n.store != nil {
		if err := n.store.PutPost(ctx, source.ID, post); err != nil {
			n.warn("cache_write", err, source, title)
		}
	}

	return post
}

func (n *Normalizer) warn(kind string, err error, source models.Source, title string) {
	metrics.NormalizeWarnings.WithLabelValues(kind).Inc()
	n.logger.Warn("Entry normalized with defaults", logging.WithFields(map[string]interface{}{
		"kind":   kind,
		"source": source.Title,
		"title":  title,
		"error":  err.Error(),
	}))
}
