package discovery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bartekus/vcgen/internal/domain"
	"github.com/bartekus/vcgen/internal/logging"
)

const defaultWebURL = "https://github.com"

// trendingRanges widen the trending page one step per requested page.
var trendingRanges = []string{"daily", "weekly", "monthly"}

// TrendingClient scrapes the GitHub trending page. It needs no credential
// but reports no repository sizes, so size limits only apply at clone time.
type TrendingClient struct {
	baseURL   string
	pages     int
	userAgent string
	http      *http.Client
	backoff   backoff
}

func NewTrendingClient(opts Options) *TrendingClient {
	c := &TrendingClient{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		pages:     opts.Pages,
		userAgent: opts.UserAgent,
		http:      &http.Client{Timeout: opts.Timeout},
		backoff:   defaultBackoff(),
	}
	if c.baseURL == "" {
		c.baseURL = defaultWebURL
	}
	if c.pages <= 0 || c.pages > len(trendingRanges) {
		c.pages = len(trendingRanges)
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	return c
}

func (c *TrendingClient) Discover(ctx context.Context, q Query) ([]domain.RepositoryLocation, error) {
	if strings.TrimSpace(q.Language) == "" {
		return nil, fmt.Errorf("discovery query needs a language")
	}
	logger := logging.New("discovery").With("source", SourceTrending, "language", q.Language)

	var locs []domain.RepositoryLocation
	for _, since := range trendingRanges[:c.pages] {
		html, err := c.fetch(ctx, q.Language, since)
		if err != nil {
			if len(locs) > 0 {
				logger.Warn("trending stopped early", "since", since, "err", err)
				break
			}
			return nil, err
		}
		found, err := c.parse(html)
		if err != nil {
			return nil, err
		}
		logger.Debug("trending page", "since", since, "items", len(found))
		locs = append(locs, found...)
	}
	return dedupe(locs, q.SizeLimitKB), nil
}

func (c *TrendingClient) fetch(ctx context.Context, language, since string) ([]byte, error) {
	u := fmt.Sprintf("%s/trending/%s?since=%s", c.baseURL, url.PathEscape(strings.ToLower(language)), since)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building trending request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := doWithRetry(ctx, c.http, c.backoff, req)
	if err != nil {
		return nil, fmt.Errorf("fetching trending page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trending page returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *TrendingClient) parse(html []byte) ([]domain.RepositoryLocation, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing trending page: %w", err)
	}

	var out []domain.RepositoryLocation
	doc.Find("article.Box-row h2 a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		slug := strings.Trim(strings.TrimSpace(href), "/")
		if strings.Count(slug, "/") != 1 {
			return
		}
		out = append(out, domain.RepositoryLocation{URL: defaultWebURL + "/" + slug + ".git"})
	})
	return out, nil
}
