package normalizer

import (
	"fmt"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips unsafe markup from feed HTML.
type Sanitizer interface {
	Sanitize(html string) (string, error)
}

// PolicySanitizer applies a bluemonday policy.
type PolicySanitizer struct {
	policy *bluemonday.Policy
}

// NewBasicSanitizer allows inline text formatting, lists, quotes, code and
// links. Images, scripts, styles and iframes are removed.
func NewBasicSanitizer() *PolicySanitizer {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowElements(
		"abbr", "b", "blockquote", "br", "cite", "code", "dd", "dfn", "dl", "dt",
		"em", "i", "kbd", "li", "mark", "ol", "p", "pre", "q", "s", "samp",
		"small", "strike", "strong", "sub", "sup", "time", "u", "ul", "var",
	)
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("cite").OnElements("blockquote", "q")
	p.AllowAttrs("datetime").OnElements("time")
	p.AllowAttrs("title").OnElements("abbr", "dfn")
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return &PolicySanitizer{policy: p}
}

func (s *PolicySanitizer) Sanitize(html string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sanitizer panic: %v", r)
		}
	}()
	return s.policy.Sanitize(html), nil
}

var _ Sanitizer = (*PolicySanitizer)(nil)
