package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCatalog struct {
	results map[string][]CatalogEntry
	err     error
	calls   []string
	gotMax  int
}

func (f *fakeCatalog) Query(ctx context.Context, keyword string, maxResults int) ([]CatalogEntry, error) {
	f.calls = append(f.calls, keyword)
	f.gotMax = maxResults
	if f.err != nil {
		return nil, f.err
	}
	return f.results[keyword], nil
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"7:00", 420, false},
		{"1:02:03", 3723, false},
		{"0:59", 59, false},
		{"45", 45, false},
		{"07:01", 421, false},
		{"1:00:00:00", 216000, false},
		{" 3:10 ", 190, false},
		{"", 0, true},
		{"abc", 0, true},
		{"1::00", 0, true},
		{"1:-5", 0, true},
		{"LIVE", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDuration_Overflow(t *testing.T) {
	huge := strconv.Itoa(math.MaxInt)

	if got, err := ParseDuration(huge); err != nil || got != math.MaxInt {
		t.Errorf("ParseDuration(%q) = %d, %v; want MaxInt", huge, got, err)
	}
	for _, in := range []string{huge + ":59", huge + ":00:00", "1:" + huge} {
		if got, err := ParseDuration(in); err == nil {
			t.Errorf("ParseDuration(%q) = %d, want out of range error", in, got)
		}
	}
}

func TestParseDuration_Base60LeftToRight(t *testing.T) {
	for h := 0; h < 3; h++ {
		for m := 0; m < 60; m += 7 {
			for s := 0; s < 60; s += 11 {
				in := fmt.Sprintf("%d:%02d:%02d", h, m, s)
				got, err := ParseDuration(in)
				if err != nil {
					t.Fatalf("ParseDuration(%q) error: %v", in, err)
				}
				if want := h*3600 + m*60 + s; got != want {
					t.Errorf("ParseDuration(%q) = %d, want %d", in, got, want)
				}
			}
		}
	}
}

func TestFilter_Search_DurationBoundary(t *testing.T) {
	catalog := &fakeCatalog{results: map[string][]CatalogEntry{
		"lofi": {
			{Title: "exactly seven", Duration: "7:00", URLSuffix: "/watch?v=a"},
			{Title: "one over", Duration: "7:01", URLSuffix: "/watch?v=b"},
			{Title: "short", Duration: "3:00", URLSuffix: "/watch?v=c"},
			{Title: "long", Duration: "1:02:03", URLSuffix: "/watch?v=d"},
			{Title: "live", Duration: "", URLSuffix: "/watch?v=e"},
		},
	}}

	f := NewFilter(catalog, "", 0, testLogger())
	got := f.Search(context.Background(), "lofi", DefaultMinDurationSeconds, DefaultMaxResults)

	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(got), got)
	}
	if got[0].Title != "one over" || got[0].DurationSeconds != 421 {
		t.Errorf("first candidate = %+v", got[0])
	}
	if got[0].URL != "https://www.youtube.com/watch?v=b" {
		t.Errorf("URL = %q, want %q", got[0].URL, "https://www.youtube.com/watch?v=b")
	}
	if got[1].DurationSeconds != 3723 {
		t.Errorf("second duration = %d, want 3723", got[1].DurationSeconds)
	}
	if catalog.gotMax != DefaultMaxResults {
		t.Errorf("maxResults passed = %d, want %d", catalog.gotMax, DefaultMaxResults)
	}
}

func TestFilter_Search_CustomOrigin(t *testing.T) {
	catalog := &fakeCatalog{results: map[string][]CatalogEntry{
		"q": {{Title: "t", Duration: "10:00", URLSuffix: "/watch?v=z"}},
	}}

	f := NewFilter(catalog, "http://catalog.local/", 0, testLogger())
	got := f.Search(context.Background(), "q", 0, 5)

	if len(got) != 1 || got[0].URL != "http://catalog.local/watch?v=z" {
		t.Errorf("unexpected candidates: %+v", got)
	}
}

func TestFilter_Search_EmptyAndErrors(t *testing.T) {
	tests := []struct {
		name    string
		catalog *fakeCatalog
	}{
		{"no results", &fakeCatalog{results: map[string][]CatalogEntry{}}},
		{"catalog error", &fakeCatalog{err: errors.New("network down")}},
		{"all filtered", &fakeCatalog{results: map[string][]CatalogEntry{
			"q": {{Title: "short", Duration: "1:00", URLSuffix: "/watch?v=s"}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFilter(tt.catalog, "", 0, testLogger())
			if got := f.Search(context.Background(), "q", DefaultMinDurationSeconds, DefaultMaxResults); len(got) != 0 {
				t.Errorf("expected no candidates, got %+v", got)
			}
		})
	}
}
