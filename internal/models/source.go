package models

// SourceType selects how a source's feed URL is derived.
type SourceType string

const (
	SourceTypeBlogger   SourceType = "blogger"
	SourceTypeWordPress SourceType = "wordpress"
	SourceTypeYouTube   SourceType = "youtube"
	SourceTypeAtom      SourceType = "atom"
	SourceTypeDirect    SourceType = "direct"

	// SourceTypeNative marks posts that were written on the platform rather than fetched.
	SourceTypeNative SourceType = "native"
)

// SourceTypes lists the types a user can register.
var SourceTypes = []SourceType{
	SourceTypeBlogger,
	SourceTypeWordPress,
	SourceTypeYouTube,
	SourceTypeAtom,
	SourceTypeDirect,
}

// Valid reports whether t is a registrable source type.
func (t SourceType) Valid() bool {
	for _, v := range SourceTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Source is a feed an account subscribes to. ID is the fingerprint of Feed.
type Source struct {
	ID    uint64     `json:"id,string"`
	Title string     `json:"title"`
	Feed  string     `json:"feed"`
	Type  SourceType `json:"type"`
	Icon  string     `json:"icon"`
}

// NativeSource is attached to every native post.
var NativeSource = Source{
	Title: "native",
	Type:  SourceTypeNative,
}

// AddSourceParams is the input for registering a source.
type AddSourceParams struct {
	Title string     `json:"title"`
	Type  SourceType `json:"type"`
	URL   string     `json:"url"`
}
