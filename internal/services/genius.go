// Genius implementation of [LyricsSource]
//
// Search uses the authenticated API; lyrics come from scraping the public song page.
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivetune/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	geniusAPIURL    = "https://api.genius.com"
	geniusUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

type geniusArtist struct {
	Name string `json:"name"`
}

// GeniusSong is the song object embedded in search hits and /songs responses.
type GeniusSong struct {
	ID                       int          `json:"id"`
	Title                    string       `json:"title"`
	URL                      string       `json:"url"`
	SongArtImageThumbnailURL string       `json:"song_art_image_thumbnail_url"`
	PrimaryArtist            geniusArtist `json:"primary_artist"`
}

func (s GeniusSong) toHit() SearchHit {
	return SearchHit{
		ID:        s.ID,
		Title:     s.Title,
		Artist:    s.PrimaryArtist.Name,
		URL:       s.URL,
		Thumbnail: s.SongArtImageThumbnailURL,
	}
}

type geniusSearchResponse struct {
	Response struct {
		Hits []struct {
			Type   string     `json:"type"`
			Result GeniusSong `json:"result"`
		} `json:"hits"`
	} `json:"response"`
}

type geniusSongResponse struct {
	Response struct {
		Song GeniusSong `json:"song"`
	} `json:"response"`
}

// GeniusService searches Genius and downloads lyrics pages.
type GeniusService struct {
	apiURL      string
	configured  bool
	api         *APIClient
	pages       *APIClient
	limiter     *rate.Limiter
	pageHeaders *shared.RequestHeaders
	logger      *log.Logger
}

// GeniusOption configures a [GeniusService].
type GeniusOption func(*geniusOptions)

type geniusOptions struct {
	base        http.RoundTripper
	pageHeaders *shared.RequestHeaders
	logger      *log.Logger
}

// WithGeniusTransport sets the transport beneath the bearer-token transport.
func WithGeniusTransport(rt http.RoundTripper) GeniusOption {
	return func(o *geniusOptions) { o.base = rt }
}

// WithPageHeaders adds browser headers, typically parsed from a copied cURL command, to page requests.
func WithPageHeaders(h *shared.RequestHeaders) GeniusOption {
	return func(o *geniusOptions) { o.pageHeaders = h }
}

// WithGeniusLogger sets the logger.
func WithGeniusLogger(l *log.Logger) GeniusOption {
	return func(o *geniusOptions) { o.logger = l }
}

// NewGeniusService creates a client from config. An empty access token leaves the service
// unconfigured: every call fails with [shared.ErrMissingCredentials].
func NewGeniusService(c shared.GeniusConfig, opts ...GeniusOption) *GeniusService {
	o := geniusOptions{base: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}

	apiURL := c.APIURL
	if apiURL == "" {
		apiURL = geniusAPIURL
	}

	limit := rate.Inf
	if c.RequestsPerSecond > 0 {
		limit = rate.Limit(c.RequestsPerSecond)
	}

	bearer := &http.Client{Transport: &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.AccessToken, TokenType: "Bearer"}),
		Base:   o.base,
	}}

	return &GeniusService{
		apiURL:      strings.TrimRight(apiURL, "/"),
		configured:  c.AccessToken != "",
		api:         NewAPIClient(bearer),
		pages:       NewAPIClient(&http.Client{Transport: o.base}),
		limiter:     rate.NewLimiter(limit, 1),
		pageHeaders: o.pageHeaders,
		logger:      shared.WithLogger(o.logger, "component", "genius"),
	}
}

// Name returns the provider name.
func (g *GeniusService) Name() string {
	return "Genius"
}

func (g *GeniusService) wait(ctx context.Context) error {
	if !g.configured {
		return fmt.Errorf("%w: genius access token", shared.ErrMissingCredentials)
	}
	return g.limiter.Wait(ctx)
}

// Search returns hits for query in the order Genius ranks them.
func (g *GeniusService) Search(ctx context.Context, query string) ([]SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: search query is required", shared.ErrInvalidRequest)
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	var resp geniusSearchResponse
	endpoint := g.apiURL + "/search?q=" + url.QueryEscape(query)
	if err := g.api.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("genius search failed: %w", err)
	}

	hits := make([]SearchHit, 0, len(resp.Response.Hits))
	for _, h := range resp.Response.Hits {
		hits = append(hits, h.Result.toHit())
	}

	g.logger.Debug("search", "query", query, "hits", len(hits))
	return hits, nil
}

// Song looks up a song by its Genius id.
func (g *GeniusService) Song(ctx context.Context, id int) (*SearchHit, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	var resp geniusSongResponse
	if err := g.api.GetJSON(ctx, fmt.Sprintf("%s/songs/%d", g.apiURL, id), &resp); err != nil {
		return nil, fmt.Errorf("genius song lookup failed: %w", err)
	}
	if resp.Response.Song.URL == "" {
		return nil, fmt.Errorf("%w: genius song %d has no url", shared.ErrSongNotFound, id)
	}

	hit := resp.Response.Song.toHit()
	return &hit, nil
}

// Page downloads a lyrics page with browser-like headers.
func (g *GeniusService) Page(ctx context.Context, pageURL string) (string, error) {
	if _, err := url.ParseRequestURI(pageURL); err != nil {
		return "", fmt.Errorf("%w: invalid page url: %w", shared.ErrInvalidRequest, err)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	html, err := g.pages.GetText(ctx, pageURL,
		WithHeader("User-Agent", geniusUserAgent),
		WithHeader("Accept-Language", "en-US,en;q=0.9"),
		WithHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"),
		WithHeader("Referer", "https://genius.com/"),
		func(req *http.Request) { g.pageHeaders.Apply(req.Header) },
	)
	if err != nil {
		return "", fmt.Errorf("failed to fetch lyrics page: %w", err)
	}

	g.logger.Debug("fetched page", "url", pageURL, "bytes", len(html))
	return html, nil
}
