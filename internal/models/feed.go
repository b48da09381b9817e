package models

// FeedDocument is the parser's view of a fetched feed.
type FeedDocument struct {
	Title string  `json:"title"`
	Items []Entry `json:"items"`
}

// Entry is a single item of a FeedDocument. PubDate is kept raw so the
// normalizer decides how to treat unparseable dates.
type Entry struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	PubDate     string `json:"pubDate"`
	Link        string `json:"link"`
	Media       *Media `json:"media,omitempty"`
}

// Media mirrors the media:* extension namespace.
type Media struct {
	Thumbnail *Thumbnail `json:"thumbnail,omitempty"`
}

type Thumbnail struct {
	Attrs *ThumbnailAttrs `json:"attrs,omitempty"`
}

type ThumbnailAttrs struct {
	URL string `json:"url"`
}

// ThumbnailURL returns media.thumbnail.attrs.url when every level is present.
func (e Entry) ThumbnailURL() (string, bool) {
	if e.Media == nil || e.Media.Thumbnail == nil || e.Media.Thumbnail.Attrs == nil {
		return "", false
	}
	if e.Media.Thumbnail.Attrs.URL == "" {
		return "", false
	}
	return e.Media.Thumbnail.Attrs.URL, true
}
