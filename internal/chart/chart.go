package chart

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/renameio"
	gochart "github.com/wcharczuk/go-chart/v2"

	"meme_digest/internal/domain"
)

const (
	Width  = 600
	Height = 300
)

// Bar is one rank position of the score distribution.
type Bar struct {
	Rank  int
	Score int
}

// Distribution maps ranked memes to rank/score pairs, rank 1 first.
func Distribution(memes []domain.Meme) []Bar {
	bars := make([]Bar, len(memes))
	for i, m := range memes {
		bars[i] = Bar{Rank: i + 1, Score: m.Score}
	}
	return bars
}

// Renderer draws the upvote distribution to a fixed file path.
type Renderer struct {
	path string
}

func NewRenderer(path string) *Renderer {
	return &Renderer{path: path}
}

// Render writes the chart for memes, replacing any previous chart, and
// returns its path. An empty selection removes any previous chart and
// returns an empty path.
func (r *Renderer) Render(memes []domain.Meme) (string, error) {
	bars := Distribution(memes)
	if len(bars) == 0 {
		if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("remove stale chart: %w", err)
		}
		return "", nil
	}

	var buf bytes.Buffer
	if err := newBarChart(bars).Render(gochart.PNG, &buf); err != nil {
		return "", fmt.Errorf("render chart: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create chart dir: %w", err)
		}
	}
	if err := renameio.WriteFile(r.path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write chart: %w", err)
	}

	return r.path, nil
}

func newBarChart(bars []Bar) gochart.BarChart {
	values := make([]gochart.Value, len(bars))
	lo, hi := 0, 0
	for i, b := range bars {
		values[i] = gochart.Value{Value: float64(b.Score), Label: strconv.Itoa(b.Rank)}
		lo = min(lo, b.Score)
		hi = max(hi, b.Score)
	}
	if hi == lo {
		hi = lo + 1
	}

	barWidth := (Width - 80) / len(bars) * 2 / 3
	barWidth = max(4, min(barWidth, 40))

	return gochart.BarChart{
		Title:  "Upvote Distribution",
		Width:  Width,
		Height: Height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10},
		},
		BarWidth: barWidth,
		XAxis:    gochart.Style{FontSize: 8},
		YAxis: gochart.YAxis{
			Name:  "Upvotes",
			Style: gochart.Style{FontSize: 8},
			Range: &gochart.ContinuousRange{
				Min: float64(lo),
				Max: float64(hi) * 1.1,
			},
		},
		Bars: values,
	}
}
