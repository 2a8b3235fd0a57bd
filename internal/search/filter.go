// Package search finds catalog videos long enough to be worth extracting.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/iconidentify/audiograbba/internal/domain"
)

// Default search policy.
const (
	DefaultMinDurationSeconds = 7 * 60
	DefaultMaxResults         = 10
	DefaultOrigin             = "https://www.youtube.com"
)

// ParseDuration converts "H:MM:SS" / "MM:SS" / "SS" into seconds.
// The rightmost group is seconds; each group to the left is worth 60x more.
func ParseDuration(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	total := 0
	for _, group := range strings.Split(s, ":") {
		n, err := strconv.Atoi(group)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid duration group %q in %q", group, s)
		}
		if total > (math.MaxInt-n)/60 {
			return 0, fmt.Errorf("duration %q out of range", s)
		}
		total = total*60 + n
	}
	return total, nil
}

// Filter implements keyword search with a minimum-duration cut.
type Filter struct {
	catalog Catalog
	origin  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewFilter creates a search filter. An empty origin uses DefaultOrigin.
func NewFilter(catalog Catalog, origin string, timeout time.Duration, logger *slog.Logger) *Filter {
	if origin == "" {
		origin = DefaultOrigin
	}
	return &Filter{
		catalog: catalog,
		origin:  strings.TrimRight(origin, "/"),
		timeout: timeout,
		logger:  logger,
	}
}

// Search returns candidates whose duration is strictly greater than
// minDurationSeconds. Catalog failures and empty results both yield an
// empty slice.
func (f *Filter) Search(ctx context.Context, query string, minDurationSeconds, maxResults int) []domain.VideoCandidate {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	entries, err := f.catalog.Query(ctx, query, maxResults)
	if err != nil {
		f.logger.Warn("catalog query failed", "query", query, "error", err)
		return nil
	}

	var candidates []domain.VideoCandidate
	for _, e := range entries {
		seconds, err := ParseDuration(e.Duration)
		if err != nil {
			f.logger.Debug("skipping entry with unparseable duration",
				"query", query,
				"title", e.Title,
				"duration", e.Duration,
			)
			continue
		}
		if seconds <= minDurationSeconds {
			continue
		}
		candidates = append(candidates, domain.VideoCandidate{
			URL:             f.origin + e.URLSuffix,
			Title:           e.Title,
			DurationSeconds: seconds,
		})
	}

	f.logger.Debug("search complete",
		"query", query,
		"returned", len(entries),
		"kept", len(candidates),
	)
	return candidates
}
