package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DeletedAuthor marks a post whose author account no longer exists.
const DeletedAuthor = "[deleted]"

var (
	ErrInvalidMeme      = errors.New("invalid meme")
	ErrStoreUnavailable = errors.New("store unavailable")
)

type Meme struct {
	ID         int64     `db:"id" json:"id"`
	ExternalID string    `db:"external_id" json:"external_id"`
	Title      string    `db:"title" json:"title"`
	Author     string    `db:"author" json:"author"`
	Score      int       `db:"score" json:"score"`
	MediaURL   string    `db:"media_url" json:"media_url"`
	Permalink  string    `db:"permalink" json:"permalink"`
	PostedAt   time.Time `db:"posted_at" json:"posted_at"`   // as reported by the feed, may be zero
	CreatedAt  time.Time `db:"created_at" json:"created_at"` // first observation, never rewritten
	FetchedAt  time.Time `db:"fetched_at" json:"fetched_at"` // latest observation
}

// Validate reports whether the meme carries the fields required to be stored.
func (m *Meme) Validate() error {
	switch {
	case strings.TrimSpace(m.ExternalID) == "":
		return fmt.Errorf("%w: missing external id", ErrInvalidMeme)
	case strings.TrimSpace(m.Title) == "":
		return fmt.Errorf("%w: missing title for %s", ErrInvalidMeme, m.ExternalID)
	case strings.TrimSpace(m.Permalink) == "":
		return fmt.Errorf("%w: missing permalink for %s", ErrInvalidMeme, m.ExternalID)
	}
	return nil
}

// OriginatedAt returns the feed's post time, or the first observation when
// the feed did not report one.
func (m *Meme) OriginatedAt() time.Time {
	if m.PostedAt.IsZero() {
		return m.CreatedAt
	}
	return m.PostedAt
}
