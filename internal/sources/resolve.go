package sources

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/johnrirwin/feedmix/internal/models"
)

// DefaultAtomProxy converts Atom feeds to RSS.
const DefaultAtomProxy = "https://feedmix.novaclic.com/atom2rss.php"

const youtubeFeedBase = "https://www.youtube.com/feeds/videos.xml?channel_id="

var channelIDRegex = regexp.MustCompile(`/channel/([a-zA-Z0-9_-]+)`)

// ResolveFeedURL derives the URL to fetch for a source of the given type,
// routing Atom and YouTube feeds through DefaultAtomProxy.
func ResolveFeedURL(sourceType models.SourceType, rawURL string) (string, error) {
	return resolveFeedURL(DefaultAtomProxy, sourceType, rawURL)
}

func resolveFeedURL(proxy string, sourceType models.SourceType, rawURL string) (string, error) {
	switch sourceType {
	case models.SourceTypeBlogger:
		return "https://" + hostPath(rawURL) + "/feeds/posts/default?alt=rss&max-results=5", nil
	case models.SourceTypeWordPress:
		return "https://" + hostPath(rawURL) + "/feed/", nil
	case models.SourceTypeYouTube:
		channelID := ExtractChannelID(rawURL)
		if channelID == "" {
			return "", fmt.Errorf("%w: no channel id in %q", ErrInvalidURL, rawURL)
		}
		return proxied(proxy, youtubeFeedBase+channelID), nil
	case models.SourceTypeAtom:
		return proxied(proxy, rawURL), nil
	default:
		return "https://" + stripScheme(rawURL), nil
	}
}

// ExtractChannelID returns the id following /channel/ in a YouTube URL.
func ExtractChannelID(rawURL string) string {
	matches := channelIDRegex.FindStringSubmatch(rawURL)
	if len(matches) > 1 {
		return matches[1]
	}
	return ""
}

func proxied(proxy, target string) string {
	return proxy + "?source=" + url.QueryEscape(target)
}

func stripScheme(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	for _, scheme := range []string{"https://", "http://"} {
		if len(rawURL) >= len(scheme) && strings.EqualFold(rawURL[:len(scheme)], scheme) {
			return rawURL[len(scheme):]
		}
	}
	return rawURL
}

// hostPath is the URL without scheme or trailing slash, ready for a path suffix.
func hostPath(rawURL string) string {
	return strings.TrimRight(stripScheme(rawURL), "/")
}
