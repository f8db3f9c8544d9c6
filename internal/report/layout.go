package report

import (
	"errors"
	"os"

	"meme_digest/internal/domain"
)

type BlockKind string

const (
	BlockCover  BlockKind = "cover"
	BlockHeader BlockKind = "header"
	BlockMeme   BlockKind = "meme"
	BlockChart  BlockKind = "chart"
)

// Block records where one logical unit of the document was placed.
type Block struct {
	Kind       BlockKind
	Rank       int
	ExternalID string
	// Media is nil for blocks that are not memes.
	Media      *domain.MediaKind
	StartPage  int
	EndPage    int
}

type Layout struct {
	Pages  int
	Blocks []Block
}

// Memes returns the meme blocks in document order.
func (l Layout) Memes() []Block {
	var blocks []Block
	for _, b := range l.Blocks {
		if b.Kind == BlockMeme {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// Split returns the blocks that span more than one page.
func (l Layout) Split() []Block {
	var blocks []Block
	for _, b := range l.Blocks {
		if b.StartPage != b.EndPage {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// Result describes a completed report. Only a returned Result signals that
// Path holds a finished document.
type Result struct {
	Path      string
	ChartPath string
	Layout    Layout
}

// Cleanup removes the report and its chart. Missing files are ignored.
func (r *Result) Cleanup() error {
	var errs []error
	for _, p := range []string{r.Path, r.ChartPath} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
