// Package media resolves the primary media of a meme into embeddable PNG
// bytes, degrading to a link to the post whenever that is not possible.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"meme_digest/internal/domain"
)

const defaultMaxBytes = 10 << 20

// Config holds media resolution settings.
type Config struct {
	Timeout     time.Duration
	MaxBytes    int64
	Concurrency int
	UserAgent   string
}

type Resolver struct {
	httpClient  *http.Client
	timeout     time.Duration
	maxBytes    int64
	concurrency int
	userAgent   string
	logger      *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Resolver {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Resolver{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		timeout:     cfg.Timeout,
		maxBytes:    maxBytes,
		concurrency: concurrency,
		userAgent:   cfg.UserAgent,
		logger:      logger.With("component", "media"),
	}
}

type fetchError struct {
	cause domain.MediaCause
	err   error
}

func (e *fetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.cause, e.err)
}

func (e *fetchError) Unwrap() error {
	return e.err
}

func fail(cause domain.MediaCause, err error) error {
	return &fetchError{cause: cause, err: err}
}

// Resolve never fails: any problem with the media yields a link-only
// result pointing at the meme's permalink.
func (r *Resolver) Resolve(ctx context.Context, meme domain.Meme) domain.Media {
	data, err := r.fetch(ctx, meme.MediaURL)
	if err != nil {
		cause := domain.MediaCauseTransport
		var fe *fetchError
		if errors.As(err, &fe) {
			cause = fe.cause
		}
		r.logger.Warn("media unavailable, using link",
			"external_id", meme.ExternalID,
			"url", meme.MediaURL,
			"cause", cause,
			"error", err,
		)
		return domain.LinkOnly(meme.Permalink, cause)
	}

	return domain.Embedded(data)
}

// ResolveAll resolves every meme concurrently. The result at index i
// belongs to memes[i] whatever order the fetches complete in.
func (r *Resolver) ResolveAll(ctx context.Context, memes []domain.Meme) []domain.Media {
	results := make([]domain.Media, len(memes))

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for i := range memes {
		g.Go(func() error {
			results[i] = r.Resolve(ctx, memes[i])
			return nil
		})
	}

	_ = g.Wait()

	return results
}

func (r *Resolver) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fail(domain.MediaCauseBadURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fail(domain.MediaCauseBadURL, fmt.Errorf("unsupported url %q", rawURL))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fail(domain.MediaCauseBadURL, err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fail(transportCause(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fail(domain.MediaCauseStatus, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return nil, fail(domain.MediaCauseNotImage, fmt.Errorf("content type %q", contentType))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, fail(transportCause(err), fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > r.maxBytes {
		return nil, fail(domain.MediaCauseTooLarge, fmt.Errorf("body exceeds %d bytes", r.maxBytes))
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fail(domain.MediaCauseUndecodable, err)
	}

	// Normalize to non-interlaced PNG so the report can embed any source format.
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fail(domain.MediaCauseUndecodable, err)
	}

	return buf.Bytes(), nil
}

func transportCause(err error) domain.MediaCause {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.MediaCauseTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return domain.MediaCauseTimeout
	}
	return domain.MediaCauseTransport
}
