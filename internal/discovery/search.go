package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bartekus/vcgen/internal/domain"
	"github.com/bartekus/vcgen/internal/logging"
)

const (
	defaultAPIURL    = "https://api.github.com"
	defaultPages     = 10
	defaultPerPage   = 100
	maxPerPage       = 100
	defaultUserAgent = "vcgen"
)

// SearchClient queries the GitHub repository search API sorted by stars.
type SearchClient struct {
	baseURL   string
	token     string
	pages     int
	perPage   int
	userAgent string
	http      *http.Client
	backoff   backoff
}

// NewSearchClient needs a GitHub token; the search API rate limit for
// anonymous callers is too low to page through results.
func NewSearchClient(token string, opts Options) (*SearchClient, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: GitHub search needs an API token", ErrCredentialMissing)
	}
	c := &SearchClient{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		token:     token,
		pages:     opts.Pages,
		perPage:   opts.PerPage,
		userAgent: opts.UserAgent,
		http:      &http.Client{Timeout: opts.Timeout},
		backoff:   defaultBackoff(),
	}
	if c.baseURL == "" {
		c.baseURL = defaultAPIURL
	}
	if c.pages <= 0 {
		c.pages = defaultPages
	}
	if c.perPage <= 0 || c.perPage > maxPerPage {
		c.perPage = defaultPerPage
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	return c, nil
}

type searchResponse struct {
	TotalCount int          `json:"total_count"`
	Items      []searchItem `json:"items"`
}

type searchItem struct {
	FullName string `json:"full_name"`
	CloneURL string `json:"clone_url"`
	Size     int64  `json:"size"`
	Stars    int    `json:"stargazers_count"`
}

type apiError struct {
	Message string `json:"message"`
}

func searchQuery(q Query) string {
	parts := []string{"language:" + q.Language}
	if q.SizeLimitKB > 0 {
		parts = append(parts, "size:<="+strconv.FormatInt(q.SizeLimitKB, 10))
	}
	return strings.Join(parts, " ")
}

// Discover pages through search results until a short page or the page limit.
func (c *SearchClient) Discover(ctx context.Context, q Query) ([]domain.RepositoryLocation, error) {
	if strings.TrimSpace(q.Language) == "" {
		return nil, fmt.Errorf("discovery query needs a language")
	}
	logger := logging.New("discovery").With("source", SourceSearch, "language", q.Language)

	var locs []domain.RepositoryLocation
	for page := 1; page <= c.pages; page++ {
		items, err := c.page(ctx, q, page)
		if err != nil {
			if len(locs) > 0 {
				logger.Warn("search stopped early", "page", page, "err", err)
				break
			}
			return nil, err
		}
		for _, it := range items {
			locs = append(locs, domain.RepositoryLocation{URL: it.CloneURL, SizeKB: it.Size})
		}
		logger.Debug("search page", "page", page, "items", len(items))
		if len(items) < c.perPage {
			break
		}
	}
	return dedupe(locs, q.SizeLimitKB), nil
}

func (c *SearchClient) page(ctx context.Context, q Query, page int) ([]searchItem, error) {
	params := url.Values{}
	params.Set("q", searchQuery(q))
	params.Set("sort", "stars")
	params.Set("order", "desc")
	params.Set("per_page", strconv.Itoa(c.perPage))
	params.Set("page", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/repositories?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := doWithRetry(ctx, c.http, c.backoff, req)
	if err != nil {
		return nil, fmt.Errorf("searching repositories: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		_ = json.Unmarshal(body, &apiErr)
		return nil, fmt.Errorf("search API returned %d: %s", resp.StatusCode, apiErr.Message)
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return sr.Items, nil
}
