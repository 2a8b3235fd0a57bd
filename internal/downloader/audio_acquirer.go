package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/iconidentify/audiograbba/internal/config"
	"github.com/iconidentify/audiograbba/internal/domain"
	"github.com/iconidentify/audiograbba/pkg/ytdlp"
)

// sniffSize covers every magic number filetype knows about.
const sniffSize = 261

// AudioAcquirer implements Acquirer with an Extractor writing into a temp directory.
type AudioAcquirer struct {
	extractor Extractor
	tempDir   string
	opts      ytdlp.ExtractOptions
	timeout   time.Duration
	logger    *slog.Logger
}

// NewAudioAcquirer creates a new acquirer writing artifacts under tempDir.
func NewAudioAcquirer(extractor Extractor, cfg config.DownloadConfig, tempDir string, logger *slog.Logger) *AudioAcquirer {
	format := cfg.AudioFormat
	if format == "" {
		format = "mp3"
	}
	bitrate := cfg.AudioBitrate
	if bitrate <= 0 {
		bitrate = 192
	}

	return &AudioAcquirer{
		extractor: extractor,
		tempDir:   tempDir,
		opts: ytdlp.ExtractOptions{
			Format:      format,
			BitrateKbps: bitrate,
		},
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Acquire runs the extractor and validates the file it produced.
func (a *AudioAcquirer) Acquire(ctx context.Context, url string) (*domain.AudioArtifact, error) {
	id := uuid.New().String()
	path := filepath.Join(a.tempDir, "audio_"+id+"."+a.opts.Format)

	logger := a.logger.With("artifact_id", id, "url", url)
	logger.Info("extracting audio", "path", path)

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := a.extractor.ExtractAudio(ctx, url, path, a.opts); err != nil {
		a.removeAll(id, "")
		return nil, domain.NewAcquisitionError(url, "extract audio", err)
	}

	// Intermediate downloads the engine left behind are never part of the artifact.
	a.removeAll(id, path)

	size, mimeType, err := inspect(path)
	if err != nil {
		os.Remove(path)
		return nil, domain.NewAcquisitionError(url, "validate audio", err)
	}

	logger.Info("audio extracted",
		"size_bytes", size,
		"mime_type", mimeType,
		"duration", time.Since(start),
	)

	return &domain.AudioArtifact{
		ID:        id,
		Path:      path,
		SourceURL: url,
		Size:      size,
		MIMEType:  mimeType,
	}, nil
}

// inspect checks the file exists, is non-empty and looks like audio.
func inspect(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, "", domain.ErrEmptyArtifact
		}
		return 0, "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return 0, "", fmt.Errorf("stat artifact: %w", err)
	}
	if stat.Size() == 0 {
		return 0, "", domain.ErrEmptyArtifact
	}

	head := make([]byte, sniffSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, "", fmt.Errorf("read artifact header: %w", err)
	}
	head = head[:n]

	if !filetype.IsAudio(head) {
		return 0, "", domain.ErrUnsupportedArtifact
	}
	kind, _ := filetype.Match(head)

	return stat.Size(), kind.MIME.Value, nil
}

// removeAll deletes every file belonging to artifact id except keep.
func (a *AudioAcquirer) removeAll(id, keep string) {
	matches, err := filepath.Glob(filepath.Join(a.tempDir, "audio_"+id+"*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		if m == keep {
			continue
		}
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			a.logger.Warn("failed to remove temp file", "path", m, "error", err)
		}
	}
}
