package aggregator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnrirwin/feedmix/internal/cache"
	"github.com/johnrirwin/feedmix/internal/metrics"
	"github.com/johnrirwin/feedmix/internal/models"
	"github.com/johnrirwin/feedmix/internal/normalizer"
	"github.com/johnrirwin/feedmix/internal/ratelimit"
	"github.com/johnrirwin/feedmix/internal/sources"
	"github.com/johnrirwin/feedmix/internal/testutil"
)

type fetchFunc func(ctx context.Context) (*models.FeedDocument, error)

// stubFetcher serves canned documents keyed by source feed.
type stubFetcher struct {
	byFeed map[string]fetchFunc
	calls  atomic.Int32
}

func (f *stubFetcher) Fetch(ctx context.Context, src models.Source) (*models.FeedDocument, error) {
	f.calls.Add(1)
	fn, ok := f.byFeed[src.Feed]
	if !ok {
		return nil, &sources.FetchError{URL: src.Feed, StatusCode: 404}
	}
	return fn(ctx)
}

type stubLookup struct {
	accounts map[string]*models.Account
	posts    map[string][]models.Post
	postsErr error
}

func (s *stubLookup) GetAccountByUsername(_ context.Context, username string) (*models.Account, error) {
	a, ok := s.accounts[username]
	if !ok {
		return nil, fmt.Errorf("account %q not found", username)
	}
	return a, nil
}

func (s *stubLookup) GetPostsByAuthor(_ context.Context, authorID string) ([]models.Post, error) {
	if s.postsErr != nil {
		return nil, s.postsErr
	}
	return s.posts[authorID], nil
}

func doc(titlesAndDates ...string) fetchFunc {
	d := &models.FeedDocument{}
	for i := 0; i+1 < len(titlesAndDates); i += 2 {
		d.Items = append(d.Items, models.Entry{Title: titlesAndDates[i], PubDate: titlesAndDates[i+1]})
	}
	return func(context.Context) (*models.FeedDocument, error) { return d, nil }
}

func source(feed string) models.Source {
	return models.Source{
		ID:    models.Fingerprint(feed),
		Title: feed,
		Feed:  feed,
		Type:  models.SourceTypeDirect,
	}
}

func newTestEngine(fetcher sources.Fetcher, lookup *stubLookup, config Config) (*Engine, *cache.Store) {
	mem := cache.NewMemory(0)
	store := cache.NewStore(mem)
	n := normalizer.New(nil, store, testutil.NullLogger())
	var accounts AccountFinder
	var posts PostFinder
	if lookup != nil {
		accounts, posts = lookup, lookup
	}
	return New(fetcher, n, store, accounts, posts, config, testutil.NullLogger()), store
}

func titles(posts []models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Title
	}
	return out
}

func TestAggregate_MergesAndSortsNewestFirst(t *testing.T) {
	fetcher := &stubFetcher{byFeed: map[string]fetchFunc{
		"a.example.com": doc(
			"a-old", "Mon, 01 Jan 2024 10:00:00 GMT",
			"a-new", "Wed, 03 Jan 2024 10:00:00 GMT",
		),
		"b.example.com": doc(
			"b-mid", "Tue, 02 Jan 2024 10:00:00 GMT",
		),
	}}
	lookup := &stubLookup{
		accounts: map[string]*models.Account{"alice": {ID: "u-alice", Username: "alice"}},
		posts: map[string][]models.Post{"u-alice": {{
			ID:       models.Fingerprint("native"),
			Title:    "native",
			Datetime: time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC),
			Type:     models.PostTypeNative,
			Source:   models.NativeSource,
		}}},
	}
	engine, _ := newTestEngine(fetcher, lookup, DefaultConfig())

	account := models.Account{
		Username:  "me",
		Sources:   []models.Source{source("a.example.com"), source("b.example.com")},
		Following: []string{"alice"},
	}

	posts := engine.Aggregate(context.Background(), account)
	assert.Equal(t, []string{"a-new", "native", "b-mid", "a-old"}, titles(posts))
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestAggregate_FailedBranchesDegradeToEmpty(t *testing.T) {
	fetcher := &stubFetcher{byFeed: map[string]fetchFunc{
		"ok.example.com": doc("kept", "Mon, 01 Jan 2024 10:00:00 GMT"),
		"parse.example.com": func(context.Context) (*models.FeedDocument, error) {
			return nil, &sources.ParseError{URL: "parse.example.com", Err: errors.New("bad xml")}
		},
	}}
	lookup := &stubLookup{accounts: map[string]*models.Account{}}
	engine, _ := newTestEngine(fetcher, lookup, DefaultConfig())

	account := models.Account{
		Sources: []models.Source{
			source("ok.example.com"),
			source("parse.example.com"),
			source("missing.example.com"),
		},
		Following: []string{"ghost"},
	}

	posts := engine.Aggregate(context.Background(), account)
	assert.Equal(t, []string{"kept"}, titles(posts))
}

func TestAggregate_PostLookupFailure(t *testing.T) {
	lookup := &stubLookup{
		accounts: map[string]*models.Account{"bob": {ID: "u-bob", Username: "bob"}},
		postsErr: errors.New("connection reset"),
	}
	engine, _ := newTestEngine(&stubFetcher{}, lookup, DefaultConfig())

	posts := engine.Aggregate(context.Background(), models.Account{Following: []string{"bob"}})
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestAggregate_EmptyAccount(t *testing.T) {
	engine, _ := newTestEngine(&stubFetcher{}, nil, DefaultConfig())

	posts := engine.Aggregate(context.Background(), models.Account{})
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestAggregate_DeadlineCancelsStragglers(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	var cancelled atomic.Bool
	fetcher := &stubFetcher{byFeed: map[string]fetchFunc{
		"fast.example.com": doc("fast", "Mon, 01 Jan 2024 10:00:00 GMT"),
		"slow.example.com": func(ctx context.Context) (*models.FeedDocument, error) {
			<-ctx.Done()
			cancelled.Store(true)
			return nil, ctx.Err()
		},
		// Ignores its context entirely; the engine must not wait for it.
		"stuck.example.com": func(context.Context) (*models.FeedDocument, error) {
			<-release
			return &models.FeedDocument{Items: []models.Entry{{Title: "late"}}}, nil
		},
	}}
	engine, _ := newTestEngine(fetcher, nil, Config{Timeout: 100 * time.Millisecond})

	account := models.Account{Sources: []models.Source{
		source("fast.example.com"),
		source("slow.example.com"),
		source("stuck.example.com"),
	}}

	start := time.Now()
	posts := engine.Aggregate(context.Background(), account)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, []string{"fast"}, titles(posts))
	assert.Eventually(t, cancelled.Load, time.Second, 10*time.Millisecond)
}

func TestAggregate_DegradedBranchesCountedOnce(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	fetcher := &stubFetcher{byFeed: map[string]fetchFunc{
		"slow.example.com": func(ctx context.Context) (*models.FeedDocument, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		"stuck.example.com": func(context.Context) (*models.FeedDocument, error) {
			<-release
			return nil, context.DeadlineExceeded
		},
		"parse.example.com": func(context.Context) (*models.FeedDocument, error) {
			return nil, &sources.ParseError{URL: "parse.example.com", Err: errors.New("bad xml")}
		},
	}}
	lookup := &stubLookup{accounts: map[string]*models.Account{}}
	engine, _ := newTestEngine(fetcher, lookup, Config{Timeout: 100 * time.Millisecond})

	count := func(branch, reason string) float64 {
		return promtest.ToFloat64(metrics.BranchDegraded.WithLabelValues(branch, reason))
	}
	sourceTimeouts := count("source", "timeout")
	sourceParse := count("source", "parse")
	userLookup := count("user", "lookup")
	anyTimeouts := count("any", "timeout")

	account := models.Account{
		Sources:   []models.Source{source("slow.example.com"), source("stuck.example.com"), source("parse.example.com")},
		Following: []string{"ghost"},
	}
	posts := engine.Aggregate(context.Background(), account)
	assert.Empty(t, posts)

	assert.Equal(t, sourceTimeouts+2, count("source", "timeout"))
	assert.Equal(t, sourceParse+1, count("source", "parse"))
	assert.Equal(t, userLookup+1, count("user", "lookup"))
	assert.Equal(t, anyTimeouts, count("any", "timeout"))

	// Branches finishing after the deadline do not add to the count.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, sourceTimeouts+2, count("source", "timeout"))
}

func TestAggregate_ParentCancellation(t *testing.T) {
	fetcher := &stubFetcher{byFeed: map[string]fetchFunc{
		"slow.example.com": func(ctx context.Context) (*models.FeedDocument, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}}
	engine, _ := newTestEngine(fetcher, nil, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	posts := engine.Aggregate(ctx, models.Account{Sources: []models.Source{source("slow.example.com")}})
	assert.Empty(t, posts)
}

func TestAggregate_RespectsMaxConcurrency(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	track := func(context.Context) (*models.FeedDocument, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return &models.FeedDocument{}, nil
	}

	fetcher := &stubFetcher{byFeed: map[string]fetchFunc{}}
	account := models.Account{}
	for i := 0; i < 10; i++ {
		feed := fmt.Sprintf("s%d.example.com", i)
		fetcher.byFeed[feed] = track
		account.Sources = append(account.Sources, source(feed))
	}

	engine, _ := newTestEngine(fetcher, nil, Config{Timeout: 5 * time.Second, MaxConcurrency: 2})
	engine.Aggregate(context.Background(), account)

	assert.Equal(t, int32(10), fetcher.calls.Load())
	assert.LessOrEqual(t, peak, 2)
}

func TestAggregate_CachesFeedAndPosts(t *testing.T) {
	src := source("cached.example.com")
	fetcher := &stubFetcher{byFeed: map[string]fetchFunc{
		src.Feed: doc("hello", "Mon, 01 Jan 2024 10:00:00 GMT"),
	}}
	engine, store := newTestEngine(fetcher, nil, DefaultConfig())

	posts := engine.Aggregate(context.Background(), models.Account{Sources: []models.Source{src}})
	require.Len(t, posts, 1)

	cachedDoc, ok := store.GetFeed(context.Background(), src.Feed)
	require.True(t, ok)
	assert.Len(t, cachedDoc.Items, 1)

	cachedPost, ok := store.GetPost(context.Background(), src.ID, posts[0].ID)
	require.True(t, ok)
	assert.Equal(t, "hello", cachedPost.Title)
}

func TestAggregate_CapsEachSource(t *testing.T) {
	var args []string
	for i := 0; i < 9; i++ {
		args = append(args, fmt.Sprintf("post %d", i), "Mon, 01 Jan 2024 10:00:00 GMT")
	}
	fetcher := &stubFetcher{byFeed: map[string]fetchFunc{"big.example.com": doc(args...)}}
	engine, _ := newTestEngine(fetcher, nil, DefaultConfig())

	posts := engine.Aggregate(context.Background(), models.Account{Sources: []models.Source{source("big.example.com")}})
	assert.Len(t, posts, normalizer.MaxEntriesPerFeed)
}

func TestSortPosts(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		posts []models.Post
		want  []uint64
	}{
		{
			name: "datetime descending",
			posts: []models.Post{
				{ID: 1, Datetime: t0},
				{ID: 2, Datetime: t0.Add(2 * time.Hour)},
				{ID: 3, Datetime: t0.Add(time.Hour)},
			},
			want: []uint64{2, 3, 1},
		},
		{
			name: "ties broken by source id",
			posts: []models.Post{
				{ID: 1, Datetime: t0, Source: models.Source{ID: 30}},
				{ID: 2, Datetime: t0, Source: models.Source{ID: 10}},
				{ID: 3, Datetime: t0, Source: models.Source{ID: 20}},
			},
			want: []uint64{2, 3, 1},
		},
		{
			name: "then by post id",
			posts: []models.Post{
				{ID: 9, Datetime: t0, Source: models.Source{ID: 1}},
				{ID: 4, Datetime: t0, Source: models.Source{ID: 1}},
				{ID: 7, Datetime: t0, Source: models.Source{ID: 1}},
			},
			want: []uint64{4, 7, 9},
		},
		{
			name: "epoch sorts last",
			posts: []models.Post{
				{ID: 1, Datetime: normalizer.Epoch},
				{ID: 2, Datetime: t0},
			},
			want: []uint64{2, 1},
		},
		{
			name:  "empty",
			posts: []models.Post{},
			want:  []uint64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SortPosts(tt.posts)
			got := make([]uint64, len(tt.posts))
			for i, p := range tt.posts {
				got[i] = p.ID
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSortPosts_IndependentOfInputOrder(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	base := []models.Post{
		{ID: 5, Datetime: t0, Source: models.Source{ID: 2}},
		{ID: 1, Datetime: t0, Source: models.Source{ID: 2}},
		{ID: 3, Datetime: t0, Source: models.Source{ID: 1}},
		{ID: 8, Datetime: t0.Add(time.Minute), Source: models.Source{ID: 9}},
	}

	reversed := make([]models.Post, len(base))
	for i := range base {
		reversed[len(base)-1-i] = base[i]
	}

	a := append([]models.Post(nil), base...)
	SortPosts(a)
	SortPosts(reversed)
	assert.Equal(t, a, reversed)
}

func TestPaginate(t *testing.T) {
	posts := make([]models.Post, 7)
	for i := range posts {
		posts[i].ID = uint64(i)
	}

	tests := []struct {
		name    string
		page    models.PageParams
		wantIDs []uint64
	}{
		{"first page", models.PageParams{Limit: 3}, []uint64{0, 1, 2}},
		{"second page", models.PageParams{Limit: 3, Offset: 3}, []uint64{3, 4, 5}},
		{"short last page", models.PageParams{Limit: 3, Offset: 6}, []uint64{6}},
		{"offset past end", models.PageParams{Limit: 3, Offset: 10}, []uint64{}},
		{"no limit", models.PageParams{Offset: 5}, []uint64{5, 6}},
		{"negative offset", models.PageParams{Limit: 1, Offset: -4}, []uint64{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Paginate(posts, tt.page)
			ids := make([]uint64, len(got))
			for i, p := range got {
				ids[i] = p.ID
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestFeedFor(t *testing.T) {
	fetcher := &stubFetcher{byFeed: map[string]fetchFunc{
		"a.example.com": doc(
			"one", "Mon, 01 Jan 2024 10:00:00 GMT",
			"two", "Tue, 02 Jan 2024 10:00:00 GMT",
			"three", "Wed, 03 Jan 2024 10:00:00 GMT",
		),
	}}
	lookup := &stubLookup{accounts: map[string]*models.Account{
		"me": {ID: "u-me", Username: "me", Sources: []models.Source{source("a.example.com")}},
	}}
	engine, _ := newTestEngine(fetcher, lookup, DefaultConfig())

	resp, err := engine.FeedFor(context.Background(), "me", models.PageParams{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.TotalCount)
	assert.Equal(t, 1, resp.SourceCount)
	assert.Equal(t, []string{"three", "two"}, titles(resp.Posts))

	_, err = engine.FeedFor(context.Background(), "nobody", models.PageParams{})
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "timeout"},
		{fmt.Errorf("wrapped: %w", context.Canceled), "timeout"},
		{&sources.FetchError{URL: "x", StatusCode: 500}, "fetch"},
		{&sources.ParseError{URL: "x", Err: errors.New("eof")}, "parse"},
		{fmt.Errorf("resolve: %w", sources.ErrInvalidURL), "invalid_url"},
		{errors.New("no rows"), "lookup"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.err), "classify(%v)", tt.err)
	}
}

func TestPreview(t *testing.T) {
	fetcher := &stubFetcher{byFeed: map[string]fetchFunc{
		"a.example.com": doc(
			"one", "Mon, 01 Jan 2024 10:00:00 GMT",
			"two", "Tue, 02 Jan 2024 10:00:00 GMT",
		),
	}}
	engine, _ := newTestEngine(fetcher, nil, DefaultConfig())

	posts, err := engine.Preview(context.Background(), source("a.example.com"))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, titles(posts))

	_, err = engine.Preview(context.Background(), source("missing.example.com"))
	var fetchErr *sources.FetchError
	assert.ErrorAs(t, err, &fetchErr)
}

func TestAggregate_ProxiedSourcesAreNotSerialized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.URL.Query().Get("source")
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>%[1]s</title>
  <entry><title>post from %[1]s</title><published>2024-01-01T10:00:00Z</published></entry>
</feed>`, origin)
	}))
	defer srv.Close()

	// Scaled down from the default 1s spacing and 30s deadline.
	limiter := ratelimit.New(200 * time.Millisecond)
	fetcher := sources.NewFeedFetcher(srv.Client(), limiter, sources.FetcherConfig{
		Timeout:   time.Second,
		AtomProxy: srv.URL,
	}, testutil.NullLogger())
	engine, _ := newTestEngine(fetcher, nil, Config{Timeout: time.Second})

	first := models.Account{Username: "first"}
	for i := 0; i < 20; i++ {
		first.Sources = append(first.Sources, models.Source{
			ID:    uint64(i + 1),
			Title: fmt.Sprintf("blog %d", i),
			Feed:  fmt.Sprintf("https://blog%d.example.com/feed.atom", i),
			Type:  models.SourceTypeAtom,
		})
	}
	posts := engine.Aggregate(context.Background(), first)
	assert.Len(t, posts, 20)

	// The next account's fetches must not queue behind the first aggregation.
	second := models.Account{Username: "second", Sources: []models.Source{{
		ID:    100,
		Title: "other blog",
		Feed:  "https://other.example.com/feed.atom",
		Type:  models.SourceTypeAtom,
	}}}
	posts = engine.Aggregate(context.Background(), second)
	require.Len(t, posts, 1)
	assert.Equal(t, "post from https://other.example.com/feed.atom", posts[0].Title)
}
