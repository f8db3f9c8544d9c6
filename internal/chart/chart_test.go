package chart

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meme_digest/internal/domain"
)

func ranked(scores ...int) []domain.Meme {
	memes := make([]domain.Meme, len(scores))
	for i, s := range scores {
		memes[i] = domain.Meme{ExternalID: string(rune('a' + i)), Score: s}
	}
	return memes
}

func TestDistribution(t *testing.T) {
	bars := Distribution(ranked(100, 95, 40))

	assert.Equal(t, []Bar{{Rank: 1, Score: 100}, {Rank: 2, Score: 95}, {Rank: 3, Score: 40}}, bars)
	assert.Empty(t, Distribution(nil))
}

func TestRender_WritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "chart.png")

	got, err := NewRenderer(path).Render(ranked(100, 95, 90, 12))
	require.NoError(t, err)
	assert.Equal(t, path, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, Width, cfg.Width)
	assert.Equal(t, Height, cfg.Height)
}

func TestRender_Overwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chart.png")
	r := NewRenderer(path)

	_, err := r.Render(ranked(5))
	require.NoError(t, err)
	_, err = r.Render(ranked(9, 8, 7))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRender_FlatScores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.png")

	_, err := NewRenderer(path).Render(ranked(0, 0))
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestRender_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.png")

	got, err := NewRenderer(path).Render(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoFileExists(t, path)
}

func TestRender_EmptyRemovesPreviousChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.png")
	renderer := NewRenderer(path)

	_, err := renderer.Render(ranked(30, 20, 10))
	require.NoError(t, err)
	require.FileExists(t, path)

	got, err := renderer.Render(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoFileExists(t, path)
}
