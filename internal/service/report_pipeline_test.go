package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"meme_digest/internal/chart"
	"meme_digest/internal/config"
	"meme_digest/internal/domain"
	"meme_digest/internal/report"
	"meme_digest/internal/storage/sqldb"
)

// fixedResolver embeds an image for every other meme and links the rest.
type fixedResolver struct {
	image []byte
}

func (r fixedResolver) ResolveAll(_ context.Context, memes []domain.Meme) []domain.Media {
	media := make([]domain.Media, len(memes))
	for i, m := range memes {
		if i%2 == 0 {
			media[i] = domain.Embedded(r.image)
		} else {
			media[i] = domain.LinkOnly(m.Permalink, domain.MediaCauseTimeout)
		}
	}
	return media
}

type ReportPipelineTestSuite struct {
	suite.Suite
	ctx     context.Context
	dir     string
	store   *sqldb.MemeStore
	service *ReportService
	closeDB func() error
}

func (s *ReportPipelineTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.dir = s.T().TempDir()

	db, err := sqldb.Open(s.ctx, config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"})
	s.Require().NoError(err)
	s.closeDB = db.Close
	s.store = sqldb.NewMemeStore(db)

	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	img.Set(4, 4, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	s.Require().NoError(png.Encode(&buf, img))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = NewReportService(
		NewSelector(s.store, DefaultWindow, 20),
		fixedResolver{image: buf.Bytes()},
		chart.NewRenderer(filepath.Join(s.dir, "chart.png")),
		report.NewAssembler(report.Config{
			Dir:       filepath.Join(s.dir, "reports"),
			PageSize:  "letter",
			Title:     "Meme Insights Report",
			Subreddit: "memes",
			Brand:     "HEPMIL Media",
			Window:    DefaultWindow,
		}, logger),
		logger,
	)
}

func (s *ReportPipelineTestSuite) TearDownTest() {
	s.NoError(s.closeDB())
}

func TestReportPipelineTestSuite(t *testing.T) {
	suite.Run(t, new(ReportPipelineTestSuite))
}

func (s *ReportPipelineTestSuite) TestGenerate_WritesReport() {
	titles := []string{
		"When it compiles 😂 “first try”",
		"Plain ASCII meme",
		"Montag again… ¯\\_(ツ)_/¯",
	}
	observedAt := time.Now()
	for i := 0; i < 22; i++ {
		meme := testMeme(string(rune('a'+i)), 100+i*10)
		meme.Title = titles[i%len(titles)]
		meme.Author = "Zoë"
		_, err := s.store.Upsert(s.ctx, &meme, observedAt)
		s.Require().NoError(err)
	}

	result, err := s.service.Generate(s.ctx)
	s.Require().NoError(err)

	s.FileExists(result.Path)
	s.FileExists(result.ChartPath)
	data, err := os.ReadFile(result.Path)
	s.Require().NoError(err)
	s.True(bytes.HasPrefix(data, []byte("%PDF-")))

	s.Empty(result.Layout.Split())
	memes := result.Layout.Memes()
	s.Require().Len(memes, 20)
	s.Equal(string(rune('a'+21)), memes[0].ExternalID, "highest score first")
	s.Equal(string(rune('a'+2)), memes[19].ExternalID)
}

func (s *ReportPipelineTestSuite) TestGenerate_EmptyWindow() {
	result, err := s.service.Generate(s.ctx)
	s.Require().NoError(err)

	s.FileExists(result.Path)
	s.Empty(result.ChartPath)
	s.Empty(result.Layout.Memes())
	s.NoFileExists(filepath.Join(s.dir, "chart.png"))
}
