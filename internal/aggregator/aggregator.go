package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/johnrirwin/feedmix/internal/cache"
	"github.com/johnrirwin/feedmix/internal/logging"
	"github.com/johnrirwin/feedmix/internal/metrics"
	"github.com/johnrirwin/feedmix/internal/models"
	"github.com/johnrirwin/feedmix/internal/normalizer"
	"github.com/johnrirwin/feedmix/internal/sources"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxConcurrency = 16
)

// AccountFinder looks up accounts by username.
type AccountFinder interface {
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
}

// PostFinder returns the native posts written by an account.
type PostFinder interface {
	GetPostsByAuthor(ctx context.Context, authorID string) ([]models.Post, error)
}

type Config struct {
	// Timeout is the single deadline shared by every branch of one aggregation.
	Timeout time.Duration
	// MaxConcurrency caps in-flight branches. Zero means unbounded.
	MaxConcurrency int
}

func DefaultConfig() Config {
	return Config{
		Timeout:        DefaultTimeout,
		MaxConcurrency: DefaultMaxConcurrency,
	}
}

// Engine builds personal feeds from an account's sources and followed users.
type Engine struct {
	fetcher    sources.Fetcher
	normalizer *normalizer.Normalizer
	store      *cache.Store
	accounts   AccountFinder
	posts      PostFinder
	config     Config
	logger     *logging.Logger
}

func New(fetcher sources.Fetcher, n *normalizer.Normalizer, store *cache.Store, accounts AccountFinder, posts PostFinder, config Config, logger *logging.Logger) *Engine {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxConcurrency < 0 {
		config.MaxConcurrency = 0
	}
	return &Engine{
		fetcher:    fetcher,
		normalizer: n,
		store:      store,
		accounts:   accounts,
		posts:      posts,
		config:     config,
		logger:     logger,
	}
}

// Aggregate fetches every source and every followed user's posts concurrently
// and returns them newest first. Failed or unfinished branches contribute no
// posts; Aggregate itself never fails.
func (e *Engine) Aggregate(ctx context.Context, account models.Account) []models.Post {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	results := newResultSet(len(account.Sources) + len(account.Following))

	var g errgroup.Group
	if e.config.MaxConcurrency > 0 {
		g.SetLimit(e.config.MaxConcurrency)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		slot := 0
		for _, src := range account.Sources {
			i, src := slot, src
			slot++
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				posts, err := e.sourcePosts(ctx, src)
				results.set(i, posts, err)
				return nil
			})
		}
		for _, username := range account.Following {
			i, username := slot, username
			slot++
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				posts, err := e.followedPosts(ctx, username)
				results.set(i, posts, err)
				return nil
			})
		}

		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		pending := results.pending()
		e.logger.Warn("Aggregation deadline reached, cancelling unfinished branches", logging.WithFields(map[string]interface{}{
			"account": account.Username,
			"pending": pending,
			"timeout": e.config.Timeout.String(),
		}))
	}
	// Stragglers see a cancelled context from here on and their results are dropped.
	cancel()

	posts, errs := results.collect()
	SortPosts(posts)

	// Each degraded branch is counted once: by its own error if it finished,
	// as a timeout if it did not.
	for i, err := range errs {
		if err == nil {
			continue
		}
		branch := "source"
		if i >= len(account.Sources) {
			branch = "user"
		}
		metrics.BranchDegraded.WithLabelValues(branch, classify(err)).Inc()
	}

	metrics.AggregationDuration.Observe(time.Since(start).Seconds())
	metrics.AggregatedPosts.Observe(float64(len(posts)))
	e.logger.Info("Aggregation complete", logging.WithFields(map[string]interface{}{
		"account":   account.Username,
		"sources":   len(account.Sources),
		"following": len(account.Following),
		"posts":     len(posts),
		"duration":  time.Since(start).String(),
	}))

	return posts
}

func (e *Engine) sourcePosts(ctx context.Context, src models.Source) ([]models.Post, error) {
	doc, err := e.fetcher.Fetch(ctx, src)
	if err != nil {
		e.degrade("source", src.Title, err)
		return e.normalizer.NormalizeFeed(ctx, &models.FeedDocument{Items: []models.Entry{}}, src), err
	}
	if e.store != nil {
		if err := e.store.PutFeed(ctx, src.Feed, doc); err != nil {
			e.logger.Warn("Failed to cache feed", logging.WithFields(map[string]interface{}{
				"source": src.Title,
				"error":  err.Error(),
			}))
		}
	}

	return e.normalizer.NormalizeFeed(ctx, doc, src), nil
}

// Preview fetches and normalizes a single source. Unlike Aggregate it
// returns the fetch error instead of degrading to an empty list.
func (e *Engine) Preview(ctx context.Context, src models.Source) ([]models.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	doc, err := e.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	return e.normalizer.NormalizeFeed(ctx, doc, src), nil
}

func (e *Engine) followedPosts(ctx context.Context, username string) ([]models.Post, error) {
	if e.accounts == nil || e.posts == nil {
		return nil, nil
	}

	account, err := e.accounts.GetAccountByUsername(ctx, username)
	if err != nil {
		e.degrade("user", username, err)
		return nil, err
	}

	posts, err := e.posts.GetPostsByAuthor(ctx, account.ID)
	if err != nil {
		e.degrade("user", username, err)
		return nil, err
	}
	return posts, nil
}

func (e *Engine) degrade(branch, name string, err error) {
	reason := classify(err)
	e.logger.Warn("Aggregation branch contributed no posts", logging.WithFields(map[string]interface{}{
		"branch": branch,
		"name":   name,
		"reason": reason,
		"error":  err.Error(),
	}))
}

func classify(err error) string {
	var (
		fetchErr *sources.FetchError
		parseErr *sources.ParseError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.Is(err, sources.ErrInvalidURL):
		return "invalid_url"
	default:
		return "lookup"
	}
}

// SortPosts orders posts newest first. Equal datetimes are ordered by source
// id, then post id, both ascending, so the result does not depend on which
// branch finished first.
func SortPosts(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		if !a.Datetime.Equal(b.Datetime) {
			return a.Datetime.After(b.Datetime)
		}
		if a.Source.ID != b.Source.ID {
			return a.Source.ID < b.Source.ID
		}
		return a.ID < b.ID
	})
}

// Paginate returns the limit/offset window of posts. A non-positive limit returns everything from offset.
func Paginate(posts []models.Post, page models.PageParams) []models.Post {
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(posts) {
		return []models.Post{}
	}
	end := len(posts)
	if page.Limit > 0 && offset+page.Limit < end {
		end = offset + page.Limit
	}
	return posts[offset:end]
}

// FeedFor aggregates the feed of username and returns one page of it.
func (e *Engine) FeedFor(ctx context.Context, username string, page models.PageParams) (*models.FeedResponse, error) {
	if e.accounts == nil {
		return nil, errors.New("account lookup is not configured")
	}

	account, err := e.accounts.GetAccountByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", username, err)
	}

	posts := e.Aggregate(ctx, *account)
	return &models.FeedResponse{
		Posts:       Paginate(posts, page),
		TotalCount:  len(posts),
		FetchedAt:   time.Now(),
		SourceCount: len(account.Sources),
	}, nil
}

// errUnfinished stands in for branches still running when results are collected.
var errUnfinished = fmt.Errorf("branch did not finish: %w", context.DeadlineExceeded)

// resultSet holds one slot per branch. Writes after collect are discarded.
type resultSet struct {
	mu     sync.Mutex
	slots  [][]models.Post
	errs   []error
	filled []bool
	closed bool
}

func newResultSet(n int) *resultSet {
	return &resultSet{
		slots:  make([][]models.Post, n),
		errs:   make([]error, n),
		filled: make([]bool, n),
	}
}

func (r *resultSet) set(i int, posts []models.Post, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.slots[i] = posts
	r.errs[i] = err
	r.filled[i] = true
}

func (r *resultSet) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(lo.Filter(r.filled, func(f bool, _ int) bool { return !f }))
}

// collect closes the set and returns the merged posts along with one error
// per slot. Unfilled slots report errUnfinished.
func (r *resultSet) collect() ([]models.Post, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	errs := lo.Map(r.errs, func(err error, i int) error {
		if !r.filled[i] {
			return errUnfinished
		}
		return err
	})
	return lo.Flatten(r.slots), errs
}
