package sources

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/johnrirwin/feedmix/internal/logging"
	"github.com/johnrirwin/feedmix/internal/metrics"
	"github.com/johnrirwin/feedmix/internal/models"
	"github.com/johnrirwin/feedmix/internal/ratelimit"
)

const maxFeedBytes = 10 << 20

// Fetcher retrieves the parsed feed of one source.
type Fetcher interface {
	Fetch(ctx context.Context, source models.Source) (*models.FeedDocument, error)
}

type FetcherConfig struct {
	Timeout   time.Duration
	UserAgent string
	AtomProxy string
}

func DefaultConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:   30 * time.Second,
		UserAgent: "feedmix/1.0",
		AtomProxy: DefaultAtomProxy,
	}
}

// FeedFetcher performs a single GET per fetch and hands the body to gofeed.
// It never retries and never writes to the cache.
type FeedFetcher struct {
	client  *http.Client
	parser  *gofeed.Parser
	limiter *ratelimit.Limiter
	config  FetcherConfig
	logger  *logging.Logger
}

func NewFeedFetcher(client *http.Client, limiter *ratelimit.Limiter, config FetcherConfig, logger *logging.Logger) *FeedFetcher {
	if client == nil {
		client = &http.Client{}
	}
	if config.AtomProxy == "" {
		config.AtomProxy = DefaultAtomProxy
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &FeedFetcher{
		client:  client,
		parser:  gofeed.NewParser(),
		limiter: limiter,
		config:  config,
		logger:  logger,
	}
}

// FeedURL is the URL the fetcher will request for source.
func (f *FeedFetcher) FeedURL(source models.Source) (string, error) {
	return resolveFeedURL(f.config.AtomProxy, source.Type, source.Feed)
}

func (f *FeedFetcher) Fetch(ctx context.Context, source models.Source) (*models.FeedDocument, error) {
	feedURL, err := f.FeedURL(source)
	if err != nil {
		metrics.FeedFetches.WithLabelValues(string(source.Type), "invalid").Inc()
		return nil, err
	}

	start := time.Now()
	doc, err := f.fetch(ctx, feedURL, limitKey(source, feedURL))
	metrics.FeedFetchDuration.WithLabelValues(string(source.Type)).Observe(time.Since(start).Seconds())

	switch err.(type) {
	case nil:
		metrics.FeedFetches.WithLabelValues(string(source.Type), "ok").Inc()
		f.logger.Debug("Fetched feed", logging.WithFields(map[string]interface{}{
			"source": source.Title,
			"url":    feedURL,
			"items":  len(doc.Items),
		}))
	case *ParseError:
		metrics.FeedFetches.WithLabelValues(string(source.Type), "parse_error").Inc()
	default:
		metrics.FeedFetches.WithLabelValues(string(source.Type), "fetch_error").Inc()
	}
	return doc, err
}

// limitKey is the host requests for source are spaced on. Proxied types
// (atom, youtube) all resolve to the proxy host, so the source's own host is
// used instead and distinct blogs never queue behind each other.
func limitKey(source models.Source, feedURL string) string {
	if host, err := sourceHost(source.Feed); err == nil {
		return host
	}
	if u, err := url.Parse(feedURL); err == nil {
		return u.Host
	}
	return feedURL
}

func (f *FeedFetcher) fetch(ctx context.Context, feedURL, hostKey string) (*models.FeedDocument, error) {
	if f.limiter != nil {
		if err := f.limiter.WaitContext(ctx, hostKey); err != nil {
			return nil, &FetchError{URL: feedURL, Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: feedURL, StatusCode: resp.StatusCode}
	}

	feed, err := f.parser.Parse(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, &ParseError{URL: feedURL, Err: err}
	}

	return toDocument(feed), nil
}

// toDocument keeps only the fields the normalizer consumes.
func toDocument(feed *gofeed.Feed) *models.FeedDocument {
	doc := &models.FeedDocument{
		Title: feed.Title,
		Items: make([]models.Entry, 0, len(feed.Items)),
	}

	for _, item := range feed.Items {
		if item == nil {
			continue
		}

		pubDate := item.Published
		// Atom dates are RFC 3339; re-render them the way the RSS proxy would.
		if feed.FeedType == "atom" && item.PublishedParsed != nil {
			pubDate = item.PublishedParsed.Format(time.RFC1123Z)
		}

		description := item.Description
		if description == "" {
			description = item.Content
		}

		doc.Items = append(doc.Items, models.Entry{
			Title:       item.Title,
			Description: description,
			PubDate:     pubDate,
			Link:        item.Link,
			Media:       mediaFromExtensions(item.Extensions),
		})
	}

	return doc
}

func mediaFromExtensions(extensions ext.Extensions) *models.Media {
	media, ok := extensions["media"]
	if !ok {
		return nil
	}

	thumbs := media["thumbnail"]
	if len(thumbs) == 0 {
		// YouTube nests thumbnails under media:group.
		for _, group := range media["group"] {
			if t := group.Children["thumbnail"]; len(t) > 0 {
				thumbs = t
				break
			}
		}
	}
	if len(thumbs) == 0 {
		return &models.Media{}
	}

	thumb := &models.Thumbnail{}
	if u, ok := thumbs[0].Attrs["url"]; ok {
		thumb.Attrs = &models.ThumbnailAttrs{URL: u}
	}
	return &models.Media{Thumbnail: thumb}
}
