// SPDX-License-Identifier: AGPL-3.0-or-later

// Package discovery finds candidate repositories, most popular first.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bartekus/vcgen/internal/domain"
)

// ErrCredentialMissing is returned by constructors that need a token.
var ErrCredentialMissing = errors.New("credential missing")

// Query selects repositories.
type Query struct {
	Language string
	// SizeLimitKB drops repositories larger than this. Zero disables.
	SizeLimitKB int64
}

// Source lists repository locations ordered by popularity, descending.
type Source interface {
	Discover(ctx context.Context, q Query) ([]domain.RepositoryLocation, error)
}

// Options are shared by every source constructor.
type Options struct {
	BaseURL   string
	Pages     int
	PerPage   int
	Timeout   time.Duration
	UserAgent string
}

const (
	SourceSearch   = "search"
	SourceTrending = "trending"
)

// New builds the named source. token is required for SourceSearch only.
func New(name, token string, opts Options) (Source, error) {
	switch strings.ToLower(name) {
	case SourceSearch:
		return NewSearchClient(token, opts)
	case SourceTrending:
		return NewTrendingClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown discovery source %q (want %s or %s)", name, SourceSearch, SourceTrending)
	}
}

// dedupe keeps the first occurrence of each URL and applies the size limit.
func dedupe(locs []domain.RepositoryLocation, sizeLimitKB int64) []domain.RepositoryLocation {
	seen := make(map[string]bool, len(locs))
	out := make([]domain.RepositoryLocation, 0, len(locs))
	for _, l := range locs {
		if l.URL == "" || seen[l.URL] {
			continue
		}
		if sizeLimitKB > 0 && l.SizeKB > sizeLimitKB {
			continue
		}
		seen[l.URL] = true
		out = append(out, l)
	}
	return out
}
