package domain

import (
	"errors"
	"io/fs"
	"os"
)

// VideoCandidate is a catalog search result that passed the duration filter.
type VideoCandidate struct {
	URL             string
	Title           string
	DurationSeconds int
}

// AudioArtifact is a locally produced audio file owned by one pipeline iteration.
type AudioArtifact struct {
	ID        string
	Path      string
	SourceURL string
	Size      int64
	MIMEType  string
}

// Release removes the artifact from disk. Releasing twice is not an error.
func (a *AudioArtifact) Release() error {
	if a == nil || a.Path == "" {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
