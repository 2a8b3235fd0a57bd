package search

import (
	"context"

	"github.com/iconidentify/audiograbba/pkg/ytdlp"
)

// Catalog queries a video index by keyword.
type Catalog interface {
	// Query returns up to maxResults entries; fewer is not an error.
	Query(ctx context.Context, keyword string, maxResults int) ([]CatalogEntry, error)
}

// CatalogEntry is raw catalog metadata before duration filtering.
type CatalogEntry struct {
	Title     string
	Duration  string // colon separated groups, largest unit first
	URLSuffix string // appended to the catalog origin to build the video URL
}

// YTDLPCatalog implements Catalog on top of yt-dlp's search extractor.
type YTDLPCatalog struct {
	client *ytdlp.Client
}

// NewYTDLPCatalog creates a catalog backed by yt-dlp.
func NewYTDLPCatalog(client *ytdlp.Client) *YTDLPCatalog {
	return &YTDLPCatalog{client: client}
}

// Query runs a yt-dlp search.
func (c *YTDLPCatalog) Query(ctx context.Context, keyword string, maxResults int) ([]CatalogEntry, error) {
	hits, err := c.client.Search(ctx, keyword, maxResults)
	if err != nil {
		return nil, err
	}

	entries := make([]CatalogEntry, 0, len(hits))
	for _, h := range hits {
		entries = append(entries, CatalogEntry{
			Title:     h.Title,
			Duration:  h.Duration,
			URLSuffix: h.URLSuffix,
		})
	}
	return entries, nil
}
