package models

import "time"

// PostType distinguishes posts pulled from a feed from posts written on the platform.
type PostType string

const (
	PostTypeRSS    PostType = "rss"
	PostTypeNative PostType = "native"
)

// Post is one entry of a personal feed. ID is the fingerprint of the title.
type Post struct {
	ID       uint64    `json:"id,string"`
	Author   string    `json:"author"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	Image    *string   `json:"image"`
	Link     string    `json:"link"`
	Datetime time.Time `json:"datetime"`
	Type     PostType  `json:"type"`
	Source   Source    `json:"source"`
}

// CreatePostParams holds the fields accepted for a native post.
type CreatePostParams struct {
	AuthorID string  `json:"-"`
	Title    string  `json:"title"`
	Body     string  `json:"body"`
	Image    *string `json:"image,omitempty"`
	Link     string  `json:"link,omitempty"`
}

// PageParams is a limit/offset window over an aggregated feed.
type PageParams struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// FeedResponse is the paginated personal feed returned by the API.
type FeedResponse struct {
	Posts       []Post    `json:"posts"`
	TotalCount  int       `json:"totalCount"`
	FetchedAt   time.Time `json:"fetchedAt"`
	SourceCount int       `json:"sourceCount"`
}
