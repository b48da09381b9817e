package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/johnrirwin/feedmix/internal/logging"
)

const defaultYouTubeAPIBase = "https://www.googleapis.com/youtube/v3"

var (
	userPathRegex   = regexp.MustCompile(`/user/([^/?#]+)`)
	customPathRegex = regexp.MustCompile(`/c/([^/?#]+)`)
	handlePathRegex = regexp.MustCompile(`/(@[^/?#]+)`)
)

// ChannelResolver turns /user/, /c/ and /@handle YouTube URLs into
// /channel/<id> URLs, which are the only form the feed endpoint accepts.
//
// With an API key it asks the YouTube Data API. Without one it reads the
// canonical link from the channel page.
type ChannelResolver struct {
	client  *http.Client
	apiKey  string
	apiBase string
	logger  *logging.Logger
}

func NewChannelResolver(client *http.Client, apiKey string, logger *logging.Logger) *ChannelResolver {
	if client == nil {
		client = &http.Client{}
	}
	return &ChannelResolver{
		client:  client,
		apiKey:  apiKey,
		apiBase: defaultYouTubeAPIBase,
		logger:  logger,
	}
}

// Resolve returns a youtube.com/channel/<id> URL for rawURL.
func (r *ChannelResolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	if ExtractChannelID(rawURL) != "" {
		return rawURL, nil
	}

	var (
		channelID string
		err       error
	)
	if r.apiKey != "" {
		channelID, err = r.resolveWithAPI(ctx, rawURL)
	} else {
		channelID, err = r.resolveFromPage(ctx, rawURL)
	}
	if err != nil {
		return "", err
	}

	r.logger.Info("Resolved YouTube channel", logging.WithFields(map[string]interface{}{
		"url":       rawURL,
		"channelId": channelID,
	}))
	return "youtube.com/channel/" + channelID, nil
}

type channelListResponse struct {
	Items []struct {
		ID string `json:"id"`
	} `json:"items"`
}

type searchResponse struct {
	Items []struct {
		ID struct {
			ChannelID string `json:"channelId"`
		} `json:"id"`
		Snippet struct {
			ChannelID string `json:"channelId"`
		} `json:"snippet"`
	} `json:"items"`
}

func (r *ChannelResolver) resolveWithAPI(ctx context.Context, rawURL string) (string, error) {
	params := url.Values{"key": {r.apiKey}}

	switch {
	case userPathRegex.MatchString(rawURL):
		params.Set("part", "id")
		params.Set("forUsername", userPathRegex.FindStringSubmatch(rawURL)[1])
		var resp channelListResponse
		if err := r.getJSON(ctx, "/channels", params, &resp); err != nil {
			return "", err
		}
		if len(resp.Items) == 0 || resp.Items[0].ID == "" {
			return "", fmt.Errorf("%w: %s", ErrChannelNotFound, rawURL)
		}
		return resp.Items[0].ID, nil

	case handlePathRegex.MatchString(rawURL):
		params.Set("part", "id")
		params.Set("forHandle", handlePathRegex.FindStringSubmatch(rawURL)[1])
		var resp channelListResponse
		if err := r.getJSON(ctx, "/channels", params, &resp); err != nil {
			return "", err
		}
		if len(resp.Items) == 0 || resp.Items[0].ID == "" {
			return "", fmt.Errorf("%w: %s", ErrChannelNotFound, rawURL)
		}
		return resp.Items[0].ID, nil

	case customPathRegex.MatchString(rawURL):
		params.Set("part", "snippet")
		params.Set("type", "channel")
		params.Set("maxResults", "1")
		params.Set("q", customPathRegex.FindStringSubmatch(rawURL)[1])
		var resp searchResponse
		if err := r.getJSON(ctx, "/search", params, &resp); err != nil {
			return "", err
		}
		if len(resp.Items) == 0 {
			return "", fmt.Errorf("%w: %s", ErrChannelNotFound, rawURL)
		}
		if id := resp.Items[0].ID.ChannelID; id != "" {
			return id, nil
		}
		if id := resp.Items[0].Snippet.ChannelID; id != "" {
			return id, nil
		}
		return "", fmt.Errorf("%w: %s", ErrChannelNotFound, rawURL)

	default:
		return "", fmt.Errorf("%w: unrecognised youtube url %q", ErrInvalidURL, rawURL)
	}
}

func (r *ChannelResolver) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := r.apiBase + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return &FetchError{URL: r.apiBase + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &FetchError{URL: r.apiBase + path, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode youtube api response: %w", err)
	}
	return nil
}

// resolveFromPage reads the channel id from the page's canonical link or
// channelId meta tag.
func (r *ChannelResolver) resolveFromPage(ctx context.Context, rawURL string) (string, error) {
	pageURL := rawURL
	if !strings.Contains(pageURL, "://") {
		pageURL = "https://" + pageURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	// Skip the cookie consent interstitial.
	req.AddCookie(&http.Cookie{Name: "CONSENT", Value: "YES+1"})

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", &ParseError{URL: pageURL, Err: err}
	}

	if href, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		if id := ExtractChannelID(href); id != "" {
			return id, nil
		}
	}
	if id, ok := doc.Find(`meta[itemprop="channelId"], meta[itemprop="identifier"]`).First().Attr("content"); ok && id != "" {
		return id, nil
	}

	return "", fmt.Errorf("%w: %s", ErrChannelNotFound, rawURL)
}
