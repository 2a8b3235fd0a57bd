// Package ytdlp wraps the yt-dlp executable for catalog search and audio extraction.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Client runs yt-dlp as a subprocess.
type Client struct {
	binary string
}

// NewClient creates a client for the yt-dlp binary at path, resolved via PATH.
func NewClient(path string) (*Client, error) {
	if path == "" {
		path = "yt-dlp"
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp not found: %w", err)
	}
	return &Client{binary: resolved}, nil
}

// SearchEntry is one catalog hit as yt-dlp reports it.
type SearchEntry struct {
	ID        string
	Title     string
	Duration  string // colon separated, e.g. "1:02:03"; empty when unknown
	URLSuffix string // path relative to the catalog origin, e.g. "/watch?v=abc"
}

// ExtractOptions configures audio extraction.
type ExtractOptions struct {
	Format      string // Output codec: "mp3", "m4a", "opus" (default: "mp3")
	BitrateKbps int    // Target quality in kbps (default: 192)
}

// Search queries the video catalog and returns at most maxResults entries.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]SearchEntry, error) {
	cmd := exec.CommandContext(ctx, c.binary, searchArgs(query, maxResults)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, commandError(ctx, "search", err, stderr.Bytes())
	}

	return parseSearchOutput(stdout.Bytes())
}

// ExtractAudio downloads sourceURL and converts its audio track into outputPath.
func (c *Client) ExtractAudio(ctx context.Context, sourceURL, outputPath string, opts ExtractOptions) error {
	cmd := exec.CommandContext(ctx, c.binary, extractArgs(sourceURL, outputPath, opts)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return commandError(ctx, "extract audio", err, stderr.Bytes())
	}
	return nil
}

// Version returns the yt-dlp version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	output, err := exec.CommandContext(ctx, c.binary, "--version").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

func searchArgs(query string, maxResults int) []string {
	if maxResults <= 0 {
		maxResults = 10
	}
	return []string{
		"--flat-playlist",
		"--dump-json",
		"--no-warnings",
		"--skip-download",
		fmt.Sprintf("ytsearch%d:%s", maxResults, query),
	}
}

func extractArgs(sourceURL, outputPath string, opts ExtractOptions) []string {
	if opts.Format == "" {
		opts.Format = "mp3"
	}
	if opts.BitrateKbps <= 0 {
		opts.BitrateKbps = 192
	}

	// yt-dlp renames the file after the audio post-processor runs, so the
	// template carries %(ext)s and resolves to outputPath for the target codec.
	template := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".%(ext)s"

	return []string{
		"--no-playlist",
		"--no-warnings",
		"--force-overwrites",
		"-f", "bestaudio/best",
		"--extract-audio",
		"--audio-format", opts.Format,
		"--audio-quality", strconv.Itoa(opts.BitrateKbps) + "K",
		"-o", template,
		sourceURL,
	}
}

type flatEntry struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Duration       *float64 `json:"duration"`
	DurationString string   `json:"duration_string"`
	URL            string   `json:"url"`
}

func parseSearchOutput(output []byte) ([]SearchEntry, error) {
	var entries []SearchEntry

	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var raw flatEntry
		if err := json.Unmarshal(line, &raw); err != nil {
			// Skip lines yt-dlp prints that are not entries.
			continue
		}
		if raw.ID == "" {
			continue
		}

		duration := raw.DurationString
		if duration == "" && raw.Duration != nil {
			duration = FormatDuration(int(*raw.Duration))
		}

		entries = append(entries, SearchEntry{
			ID:        raw.ID,
			Title:     raw.Title,
			Duration:  duration,
			URLSuffix: "/watch?v=" + raw.ID,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read search output: %w", err)
	}

	return entries, nil
}

// FormatDuration renders seconds as "M:SS" or "H:MM:SS".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// commandError keeps the most useful stderr line, which is what users see.
func commandError(ctx context.Context, op string, err error, stderr []byte) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	if msg := stderrSummary(stderr); msg != "" {
		return fmt.Errorf("%s: %s: %w", op, msg, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// stderrSummary returns the first "ERROR:" line, or the last non-empty line.
func stderrSummary(stderr []byte) string {
	lines := strings.Split(strings.TrimSpace(string(stderr)), "\n")
	last := ""
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
		last = line
	}
	return last
}
