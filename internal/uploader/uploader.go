// Package uploader posts audio artifacts to user supplied HTTP endpoints.
package uploader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/iconidentify/audiograbba/internal/config"
)

// FormField is the multipart field carrying the file.
const FormField = "file"

// Uploader sends a local file to a destination URL.
type Uploader interface {
	// Upload makes a single attempt and reports whether the endpoint accepted
	// the file. Network and HTTP failures are reported as false.
	Upload(ctx context.Context, filePath, destinationURL string) bool
}

// HTTPUploader implements Uploader with a multipart/form-data POST.
type HTTPUploader struct {
	client       *http.Client
	acceptAny2xx bool
	logger       *slog.Logger
}

// NewHTTPUploader creates a new multipart uploader.
func NewHTTPUploader(cfg config.UploadConfig, logger *slog.Logger) *HTTPUploader {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPUploader{
		client:       &http.Client{Timeout: timeout},
		acceptAny2xx: cfg.AcceptAny2xx,
		logger:       logger,
	}
}

// Upload posts filePath to destinationURL.
func (u *HTTPUploader) Upload(ctx context.Context, filePath, destinationURL string) bool {
	logger := u.logger.With("destination", destinationURL, "path", filePath)

	status, err := u.post(ctx, filePath, destinationURL)
	if err != nil {
		logger.Warn("upload failed", "error", err)
		return false
	}

	ok := u.accepted(status)
	if !ok {
		logger.Warn("upload rejected", "status", status)
		return false
	}

	logger.Info("upload accepted", "status", status)
	return true
}

func (u *HTTPUploader) accepted(status int) bool {
	if u.acceptAny2xx {
		return status >= 200 && status < 300
	}
	return status == http.StatusOK
}

func (u *HTTPUploader) post(ctx context.Context, filePath, destinationURL string) (int, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile(FormField, filepath.Base(filePath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destinationURL, pr)
	if err != nil {
		pr.CloseWithError(err)
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	return resp.StatusCode, nil
}
