package domain

type MediaKind int

const (
	// MediaEmbeddable carries PNG encoded image bytes.
	MediaEmbeddable MediaKind = iota
	// MediaLinkOnly carries a link to the post instead of the media itself.
	MediaLinkOnly
)

func (k MediaKind) String() string {
	if k == MediaEmbeddable {
		return "embeddable"
	}
	return "link_only"
}

// MediaCause records why media fell back to a link.
type MediaCause string

const (
	MediaCauseBadURL      MediaCause = "bad_url"
	MediaCauseTransport   MediaCause = "transport"
	MediaCauseTimeout     MediaCause = "timeout"
	MediaCauseStatus      MediaCause = "status"
	MediaCauseNotImage    MediaCause = "not_image"
	MediaCauseTooLarge    MediaCause = "too_large"
	MediaCauseUndecodable MediaCause = "undecodable"
)

// Media is the resolved representation of a meme's primary media.
type Media struct {
	Kind  MediaKind
	Data  []byte
	Link  string
	Cause MediaCause
}

func Embedded(png []byte) Media {
	return Media{Kind: MediaEmbeddable, Data: png}
}

func LinkOnly(permalink string, cause MediaCause) Media {
	return Media{Kind: MediaLinkOnly, Link: permalink, Cause: cause}
}

// Unavailable reports whether the fallback comes from a failed fetch rather
// than from content that is simply not an image.
func (m Media) Unavailable() bool {
	if m.Kind == MediaEmbeddable {
		return false
	}
	return m.Cause != MediaCauseStatus && m.Cause != MediaCauseNotImage
}
