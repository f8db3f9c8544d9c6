package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"meme_digest/internal/domain"
)

const (
	SourceID = "reddit"

	oauthBaseURL  = "https://oauth.reddit.com"
	publicBaseURL = "https://www.reddit.com"
	shortlinkBase = "https://redd.it/"
)

// Config holds Reddit source configuration.
type Config struct {
	BaseURL           string
	TokenURL          string
	ClientID          string
	ClientSecret      string
	UserAgent         string
	Subreddit         string
	TimeFilter        string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
}

// Source fetches the top posts of one subreddit. With client credentials
// it talks to the OAuth API using an application-only token, otherwise to
// the public JSON listing.
type Source struct {
	httpClient     *http.Client
	limiter        *rate.Limiter
	baseURL        string
	userAgent      string
	subreddit      string
	timeFilter     string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a new Reddit source.
func New(cfg Config, logger *slog.Logger) *Source {
	base := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &userAgentTransport{userAgent: cfg.UserAgent, base: http.DefaultTransport},
	}

	client := base
	baseURL := cfg.BaseURL
	if cfg.ClientID != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		client = cc.Client(ctx)
		client.Timeout = cfg.Timeout
		if baseURL == "" {
			baseURL = oauthBaseURL
		}
	} else if baseURL == "" {
		baseURL = publicBaseURL
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Source{
		httpClient:     client,
		limiter:        rate.NewLimiter(limit, 1),
		baseURL:        baseURL,
		userAgent:      cfg.UserAgent,
		subreddit:      cfg.Subreddit,
		timeFilter:     cfg.TimeFilter,
		maxAttempts:    maxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", SourceID, "subreddit", cfg.Subreddit),
	}
}

// Name returns human-readable name.
func (s *Source) Name() string {
	return "r/" + s.subreddit
}

// FetchTop returns up to limit posts in source rank order.
func (s *Source) FetchTop(ctx context.Context, limit int) ([]domain.Meme, error) {
	q := url.Values{}
	q.Set("t", s.timeFilter)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("raw_json", "1")
	endpoint := fmt.Sprintf("%s/r/%s/top.json?%s", s.baseURL, url.PathEscape(s.subreddit), q.Encode())

	var listing *Listing
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		listing, err = s.doRequest(ctx, endpoint)
		if err == nil {
			break
		}

		if attempt == s.maxAttempts {
			return nil, fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	memes := s.transform(listing.Data.Children)
	if len(memes) > limit {
		memes = memes[:limit]
	}

	s.logger.Debug("fetched listing", "posts", len(memes))

	return memes, nil
}

func (s *Source) doRequest(ctx context.Context, endpoint string) (*Listing, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var listing Listing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &listing, nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

// transform keeps malformed posts; the store rejects them individually.
func (s *Source) transform(children []Child) []domain.Meme {
	memes := make([]domain.Meme, 0, len(children))

	for _, c := range children {
		p := c.Data
		author := p.Author
		if author == "" {
			author = domain.DeletedAuthor
		}

		meme := domain.Meme{
			ExternalID: p.ID,
			Title:      p.Title,
			Author:     author,
			Score:      p.Score,
			MediaURL:   p.URL,
		}
		if p.ID != "" {
			meme.Permalink = shortlinkBase + p.ID
		}
		if p.CreatedUTC > 0 {
			sec, frac := math.Modf(p.CreatedUTC)
			meme.PostedAt = time.Unix(int64(sec), int64(frac*1e9)).UTC()
		}

		memes = append(memes, meme)
	}

	return memes
}

type userAgentTransport struct {
	userAgent string
	base      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}
