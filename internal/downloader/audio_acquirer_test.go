package downloader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iconidentify/audiograbba/internal/config"
	"github.com/iconidentify/audiograbba/internal/domain"
	"github.com/iconidentify/audiograbba/pkg/ytdlp"
)

// id3Header is the start of an ID3v2 tagged MP3 file.
var id3Header = append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), make([]byte, 512)...)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.DownloadConfig {
	return config.DownloadConfig{
		Timeout:      5 * time.Second,
		AudioFormat:  "mp3",
		AudioBitrate: 192,
	}
}

type fakeExtractor struct {
	content  []byte
	extra    string // sibling file suffix to leave behind
	err      error
	gotURL   string
	gotPath  string
	gotOpts  ytdlp.ExtractOptions
	noOutput bool
}

func (f *fakeExtractor) ExtractAudio(ctx context.Context, sourceURL, outputPath string, opts ytdlp.ExtractOptions) error {
	f.gotURL = sourceURL
	f.gotPath = outputPath
	f.gotOpts = opts
	if f.extra != "" {
		os.WriteFile(strings.TrimSuffix(outputPath, ".mp3")+f.extra, []byte("partial"), 0644)
	}
	if f.err != nil {
		return f.err
	}
	if f.noOutput {
		return nil
	}
	return os.WriteFile(outputPath, f.content, 0644)
}

func TestAudioAcquirer_Acquire_Success(t *testing.T) {
	dir := t.TempDir()
	ext := &fakeExtractor{content: id3Header}
	a := NewAudioAcquirer(ext, testConfig(), dir, testLogger())

	artifact, err := a.Acquire(context.Background(), "https://www.youtube.com/watch?v=a")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer artifact.Release()

	if ext.gotURL != "https://www.youtube.com/watch?v=a" {
		t.Errorf("extractor URL = %q", ext.gotURL)
	}
	if ext.gotOpts.Format != "mp3" || ext.gotOpts.BitrateKbps != 192 {
		t.Errorf("extract options = %+v, want mp3/192", ext.gotOpts)
	}
	if filepath.Dir(artifact.Path) != dir {
		t.Errorf("artifact dir = %q, want %q", filepath.Dir(artifact.Path), dir)
	}
	if !strings.HasSuffix(artifact.Path, ".mp3") {
		t.Errorf("artifact path %q should end with .mp3", artifact.Path)
	}
	if artifact.Size != int64(len(id3Header)) {
		t.Errorf("Size = %d, want %d", artifact.Size, len(id3Header))
	}
	if artifact.MIMEType != "audio/mpeg" {
		t.Errorf("MIMEType = %q, want %q", artifact.MIMEType, "audio/mpeg")
	}
	if artifact.ID == "" {
		t.Error("artifact ID should be set")
	}
}

func TestAudioAcquirer_Acquire_UniquePaths(t *testing.T) {
	dir := t.TempDir()
	a := NewAudioAcquirer(&fakeExtractor{content: id3Header}, testConfig(), dir, testLogger())

	first, err := a.Acquire(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer first.Release()
	second, err := a.Acquire(context.Background(), "u2")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer second.Release()

	if first.Path == second.Path {
		t.Errorf("artifacts share a path: %q", first.Path)
	}
}

func TestAudioAcquirer_Acquire_Failures(t *testing.T) {
	tests := []struct {
		name      string
		extractor *fakeExtractor
		wantIs    error
		wantText  string
	}{
		{
			name:      "engine failure",
			extractor: &fakeExtractor{err: errors.New("extract audio: Video unavailable: exit status 1"), extra: ".webm.part"},
			wantText:  "Video unavailable",
		},
		{
			name:      "no output file",
			extractor: &fakeExtractor{noOutput: true},
			wantIs:    domain.ErrEmptyArtifact,
		},
		{
			name:      "empty output file",
			extractor: &fakeExtractor{content: []byte{}},
			wantIs:    domain.ErrEmptyArtifact,
		},
		{
			name:      "not audio",
			extractor: &fakeExtractor{content: []byte("<html>blocked</html>")},
			wantIs:    domain.ErrUnsupportedArtifact,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			a := NewAudioAcquirer(tt.extractor, testConfig(), dir, testLogger())

			artifact, err := a.Acquire(context.Background(), "https://www.youtube.com/watch?v=x")
			if err == nil {
				artifact.Release()
				t.Fatal("expected error")
			}

			var acqErr *domain.AcquisitionError
			if !errors.As(err, &acqErr) {
				t.Fatalf("expected *domain.AcquisitionError, got %T", err)
			}
			if acqErr.URL != "https://www.youtube.com/watch?v=x" {
				t.Errorf("URL = %q", acqErr.URL)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("expected %v in chain, got %v", tt.wantIs, err)
			}
			if tt.wantText != "" && !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantText)
			}

			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Errorf("temp dir should be empty after failure, found %d files", len(entries))
			}
		})
	}
}

func TestAudioAcquirer_Acquire_RemovesIntermediates(t *testing.T) {
	dir := t.TempDir()
	a := NewAudioAcquirer(&fakeExtractor{content: id3Header, extra: ".webm"}, testConfig(), dir, testLogger())

	artifact, err := a.Acquire(context.Background(), "u")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the artifact in temp dir, found %d files", len(entries))
	}

	if err := artifact.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	entries, _ = os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected empty temp dir after release, found %d files", len(entries))
	}
}

func TestNewAudioAcquirer_Defaults(t *testing.T) {
	a := NewAudioAcquirer(&fakeExtractor{}, config.DownloadConfig{}, t.TempDir(), testLogger())

	if a.opts.Format != "mp3" {
		t.Errorf("default format = %q, want mp3", a.opts.Format)
	}
	if a.opts.BitrateKbps != 192 {
		t.Errorf("default bitrate = %d, want 192", a.opts.BitrateKbps)
	}
}
