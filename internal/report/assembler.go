// Package report lays out the daily meme report as a paginated PDF.
package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/renameio"

	"meme_digest/internal/domain"
)

const (
	font = "Helvetica"

	pageMargin   = 72.0
	footerOffset = 36.0
	imageSize    = 200.0
	chartWidth   = 400.0
	chartHeight  = 200.0
	maxTitleLen  = 300
)

type Config struct {
	Dir       string
	PageSize  string
	Title     string
	Subreddit string
	Brand     string
	// Window is the trailing range the report covers, 24h when unset.
	Window time.Duration
}

// Input is everything a report is composed from. Media[i] belongs to
// Memes[i]; both are in rank order.
type Input struct {
	Memes       []domain.Meme
	Media       []domain.Media
	ChartPath   string
	GeneratedAt time.Time
}

type Assembler struct {
	cfg    Config
	logger *slog.Logger
}

func NewAssembler(cfg Config, logger *slog.Logger) *Assembler {
	return &Assembler{cfg: cfg, logger: logger.With("component", "report")}
}

// FileName returns the report file name for the given generation time.
func FileName(generatedAt time.Time) string {
	return "top_memes_" + generatedAt.Format(time.DateOnly) + ".pdf"
}

// Assemble composes and writes the report. It performs no network I/O.
// The file appears under its final name only once fully written.
func (a *Assembler) Assemble(ctx context.Context, in Input) (*Result, error) {
	if len(in.Media) != len(in.Memes) {
		return nil, fmt.Errorf("media for %d memes, got %d", len(in.Memes), len(in.Media))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := newBuilder(a.cfg, in.GeneratedAt, a.logger)
	b.cover()
	b.bodyHeader(len(in.Memes))
	for i := range in.Memes {
		b.meme(i+1, in.Memes[i], in.Media[i])
	}
	b.chart(in.ChartPath)

	if err := b.pdf.Error(); err != nil {
		return nil, fmt.Errorf("compose pdf: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(a.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(a.cfg.Dir, FileName(in.GeneratedAt))

	if err := writeAtomically(b.pdf, path); err != nil {
		return nil, err
	}

	b.layout.Pages = b.pdf.PageNo()

	a.logger.Info("report assembled",
		"path", path,
		"pages", b.layout.Pages,
		"memes", len(in.Memes),
	)

	return &Result{Path: path, ChartPath: in.ChartPath, Layout: b.layout}, nil
}

func writeAtomically(pdf *fpdf.Fpdf, path string) error {
	t, err := renameio.TempFile("", path)
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	defer t.Cleanup()

	if err := pdf.Output(t); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}

	if err := t.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("finalize report: %w", err)
	}
	return nil
}

type builder struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	cfg    Config
	at     time.Time
	width  float64
	layout Layout
	logger *slog.Logger
}

func newBuilder(cfg Config, generatedAt time.Time, logger *slog.Logger) *builder {
	pdf := fpdf.New("P", "pt", cfg.PageSize, "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle(cfg.Title, true)
	pdf.SetCreator("meme_digest", true)
	pdf.SetCreationDate(generatedAt)

	b := &builder{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		cfg:    cfg,
		at:     generatedAt,
		logger: logger,
	}

	pageW, _ := pdf.GetPageSize()
	b.width = pageW - 2*pageMargin

	stamp := generatedAt.Format("2006-01-02 15:04")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-footerOffset)
		pdf.SetFont(font, "", 8)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, 10, b.tr(fmt.Sprintf("Page %d • Generated on %s", pdf.PageNo(), stamp)),
			"", 0, "R", false, 0, "")
	})

	return b
}

// keepTogether starts a new page when a block of height h would not fit in
// the space left on the current one, and returns the page it starts on.
func (b *builder) keepTogether(h float64) int {
	_, pageH := b.pdf.GetPageSize()
	_, bottom := b.pdf.GetAutoPageBreak()
	y := b.pdf.GetY()
	if y+h > pageH-bottom && y > pageMargin {
		b.pdf.AddPage()
	}
	return b.pdf.PageNo()
}

func (b *builder) record(block Block, start int) {
	block.StartPage = start
	block.EndPage = b.pdf.PageNo()
	b.layout.Blocks = append(b.layout.Blocks, block)
}

func (b *builder) lines(text string, style string, size, lineH float64, align string) {
	b.pdf.SetFont(font, style, size)
	for _, line := range b.split(text) {
		b.pdf.CellFormat(b.width, lineH, string(line), "", 2, align, false, 0, "")
	}
}

// split wraps text to the body width in the current font. Widths are
// looked up per cp1252 byte, so text is translated before measuring.
func (b *builder) split(text string) [][]byte {
	return b.pdf.SplitLines([]byte(b.tr(text)), b.width)
}

func (b *builder) cover() {
	pdf := b.pdf
	pdf.AddPage()
	start := pdf.PageNo()

	pdf.Ln(200)
	b.lines(b.cfg.Title, "B", 24, 30, "C")
	pdf.Ln(24)
	b.lines("Curated from r/"+b.cfg.Subreddit, "B", 16, 20, "C")
	pdf.Ln(12)
	b.lines("Generated on: "+b.at.Format(time.DateOnly), "", 12, 14, "C")
	pdf.Ln(250)
	b.lines("Prepared for "+b.cfg.Brand, "I", 12, 14, "C")

	b.record(Block{Kind: BlockCover}, start)
}

func (b *builder) bodyHeader(count int) {
	b.pdf.AddPage()
	start := b.pdf.PageNo()

	b.lines(fmt.Sprintf("Top %d Memes - Past %s", count, windowLabel(b.cfg.Window)), "B", 24, 30, "C")
	b.pdf.Ln(12)

	b.record(Block{Kind: BlockHeader}, start)
}

func (b *builder) meme(rank int, meme domain.Meme, media domain.Media) {
	pdf := b.pdf

	imageName := "meme-" + strconv.Itoa(rank)
	if media.Kind == domain.MediaEmbeddable {
		pdf.RegisterImageOptionsReader(imageName, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(media.Data))
		if !pdf.Ok() {
			b.logger.Warn("cannot embed media, using link",
				"external_id", meme.ExternalID,
				"error", pdf.Error(),
			)
			pdf.ClearError()
			media = domain.LinkOnly(meme.Permalink, domain.MediaCauseUndecodable)
		}
	}

	title := meme.Title
	if r := []rune(title); len(r) > maxTitleLen {
		title = string(r[:maxTitleLen]) + "..."
	}
	title = fmt.Sprintf("%d. %s", rank, title)
	caption := fmt.Sprintf("by u/%s • %d upvotes • Posted: %s",
		meme.Author, meme.Score, meme.OriginatedAt().UTC().Format("2006-01-02 15:04 UTC"))

	pdf.SetFont(font, "", 11)
	titleLines := len(b.split(title))
	pdf.SetFont(font, "I", 10)
	captionLines := len(b.split(caption))

	mediaH := 12.0
	if media.Kind == domain.MediaEmbeddable {
		mediaH = imageSize
	}
	h := 6 + float64(titleLines)*14 + 6 + float64(captionLines)*12 + 6 + mediaH + 14

	start := b.keepTogether(h)

	pdf.Ln(6)
	b.lines(title, "", 11, 14, "L")
	pdf.Ln(6)
	b.lines(caption, "I", 10, 12, "L")
	pdf.Ln(6)

	if media.Kind == domain.MediaEmbeddable {
		pageW, _ := pdf.GetPageSize()
		y := pdf.GetY()
		pdf.ImageOptions(imageName, (pageW-imageSize)/2, y, imageSize, imageSize, false,
			fpdf.ImageOptions{ImageType: "PNG"}, 0, meme.Permalink)
		pdf.SetY(y + imageSize)
	} else {
		text := "[View Meme on Reddit]"
		if media.Unavailable() {
			text = "[Failed to load media - View on Reddit]"
		}
		pdf.SetFont(font, "I", 10)
		pdf.SetTextColor(0, 0, 238)
		pdf.CellFormat(b.width, 12, b.tr(text), "", 2, "C", false, 0, media.Link)
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(14)

	b.record(Block{
		Kind:       BlockMeme,
		Rank:       rank,
		ExternalID: meme.ExternalID,
		Media:      &media.Kind,
	}, start)
}

func (b *builder) chart(chartPath string) {
	pdf := b.pdf

	bodyH := chartHeight
	if chartPath == "" {
		bodyH = 14
	}
	start := b.keepTogether(20 + 20 + 6 + bodyH)

	pdf.Ln(20)
	b.lines("Upvote Distribution", "B", 16, 20, "L")
	pdf.Ln(6)

	if chartPath == "" {
		b.lines("No memes were collected in the past "+strings.ToLower(windowLabel(b.cfg.Window))+".", "I", 12, 14, "L")
	} else {
		pageW, _ := pdf.GetPageSize()
		y := pdf.GetY()
		pdf.ImageOptions(chartPath, (pageW-chartWidth)/2, y, chartWidth, chartHeight, false,
			fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		pdf.SetY(y + chartHeight)
	}

	b.record(Block{Kind: BlockChart}, start)
}

// windowLabel renders a window as "24 Hours", "7 Days" or "90m0s".
func windowLabel(window time.Duration) string {
	if window <= 0 {
		window = 24 * time.Hour
	}
	switch {
	case window%(24*time.Hour) == 0 && window > 24*time.Hour:
		return fmt.Sprintf("%d Days", window/(24*time.Hour))
	case window == time.Hour:
		return "Hour"
	case window%time.Hour == 0:
		return fmt.Sprintf("%d Hours", window/time.Hour)
	default:
		return window.String()
	}
}
