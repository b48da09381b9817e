package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/johnrirwin/feedmix/internal/models"
)

// BuildSource validates a source and derives its id and icon. It performs no I/O.
func BuildSource(title string, sourceType models.SourceType, rawURL string) (models.Source, error) {
	if !sourceType.Valid() {
		return models.Source{}, fmt.Errorf("%w: %q", ErrInvalidSourceType, sourceType)
	}

	rawURL = strings.TrimSpace(rawURL)
	icon, err := DetectFavicon(rawURL)
	if err != nil {
		return models.Source{}, err
	}

	return models.Source{
		ID:    models.Fingerprint(rawURL),
		Title: strings.TrimSpace(title),
		Feed:  rawURL,
		Type:  sourceType,
		Icon:  icon,
	}, nil
}

// DetectFavicon returns https://<authority>/favicon.ico for a possibly
// percent-encoded, possibly scheme-less URL.
func DetectFavicon(rawURL string) (string, error) {
	host, err := sourceHost(rawURL)
	if err != nil {
		return "", err
	}
	return "https://" + host + "/favicon.ico", nil
}

// sourceHost returns the authority of a possibly percent-encoded, possibly
// scheme-less URL.
func sourceHost(rawURL string) (string, error) {
	decoded, err := url.PathUnescape(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !strings.Contains(decoded, "://") {
		decoded = "https://" + strings.TrimPrefix(decoded, "//")
	}

	u, err := url.Parse(decoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: no authority in %q", ErrInvalidURL, rawURL)
	}
	return u.Host, nil
}

// Registry builds sources, resolving YouTube vanity URLs to channel URLs first.
type Registry struct {
	channels *ChannelResolver
}

func NewRegistry(channels *ChannelResolver) *Registry {
	return &Registry{channels: channels}
}

// Register validates params and returns the source to persist.
func (r *Registry) Register(ctx context.Context, params models.AddSourceParams) (models.Source, error) {
	rawURL := strings.TrimSpace(params.URL)
	if params.Type == models.SourceTypeYouTube && ExtractChannelID(rawURL) == "" {
		if r.channels == nil {
			return models.Source{}, fmt.Errorf("%w: no channel id in %q", ErrInvalidURL, rawURL)
		}
		resolved, err := r.channels.Resolve(ctx, rawURL)
		if err != nil {
			return models.Source{}, err
		}
		rawURL = resolved
	}

	return BuildSource(params.Title, params.Type, rawURL)
}
