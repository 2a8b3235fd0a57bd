package downloader

import (
	"context"

	"github.com/iconidentify/audiograbba/internal/domain"
	"github.com/iconidentify/audiograbba/pkg/ytdlp"
)

// Extractor turns a remote media URL into a local audio file.
type Extractor interface {
	// ExtractAudio writes the audio track of sourceURL to outputPath.
	ExtractAudio(ctx context.Context, sourceURL, outputPath string, opts ytdlp.ExtractOptions) error
}

// Acquirer produces audio artifacts for the pipeline.
type Acquirer interface {
	// Acquire extracts audio from url. The caller owns the returned artifact
	// and must Release it. Failures are *domain.AcquisitionError.
	Acquire(ctx context.Context, url string) (*domain.AudioArtifact, error)
}
