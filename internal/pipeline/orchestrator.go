// Package pipeline drives the repeat loop that turns keywords into delivered
// and uploaded audio.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/audiograbba/internal/domain"
	"github.com/iconidentify/audiograbba/internal/downloader"
	"github.com/iconidentify/audiograbba/internal/repository"
	"github.com/iconidentify/audiograbba/internal/search"
	"github.com/iconidentify/audiograbba/internal/uploader"
)

const eventSource = "pipeline"

// Progress texts.
const (
	MsgConfigureFirst = "Please use /settings to configure the bot first."
	MsgNoCandidates   = "No suitable videos found."
	MsgDownloading    = "Downloading audio... This may take a while."
	MsgUploadOK       = "Upload successful"
	MsgUploadFailed   = "Upload failed"
)

// Options holds the search policy applied to every keyword.
type Options struct {
	MinDurationSeconds int
	MaxResults         int
	// Seed for candidate selection. Zero seeds from the clock.
	Seed int64
}

// Orchestrator runs the acquisition pipeline for configured sessions.
type Orchestrator struct {
	sessions  repository.SessionRepository
	searcher  Searcher
	acquirer  downloader.Acquirer
	uploader  uploader.Uploader
	messenger Messenger
	events    domain.EventEmitter
	opts      Options
	logger    *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewOrchestrator creates a new pipeline orchestrator.
func NewOrchestrator(
	sessions repository.SessionRepository,
	searcher Searcher,
	acquirer downloader.Acquirer,
	up uploader.Uploader,
	messenger Messenger,
	events domain.EventEmitter,
	opts Options,
	logger *slog.Logger,
) *Orchestrator {
	if opts.MinDurationSeconds < 0 {
		opts.MinDurationSeconds = search.DefaultMinDurationSeconds
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = search.DefaultMaxResults
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if events == nil {
		events = domain.NopEmitter{}
	}

	return &Orchestrator{
		sessions:  sessions,
		searcher:  searcher,
		acquirer:  acquirer,
		uploader:  up,
		messenger: messenger,
		events:    events,
		opts:      opts,
		logger:    logger,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// ParseKeywords splits comma separated text into trimmed, non-empty keywords.
func ParseKeywords(text string) []string {
	var keywords []string
	for _, k := range strings.Split(text, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}

// Run executes the pipeline for one message. Iterations run sequentially and a
// failing iteration never stops the ones after it.
func (o *Orchestrator) Run(ctx context.Context, userID domain.UserID, chatID domain.ChatID, text string) *RunReport {
	report := &RunReport{
		RunID:  uuid.New().String(),
		UserID: userID,
	}
	logger := o.logger.With("run_id", report.RunID, "user_id", userID)

	session, err := o.sessions.Get(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		logger.Error("session lookup failed", "error", err)
	}
	if session == nil || !session.Configured() {
		report.Refused = true
		report.Err = domain.ErrNotConfigured
		o.say(ctx, chatID, MsgConfigureFirst)
		return report
	}

	report.Keywords = ParseKeywords(text)
	total := session.Repeats()
	logger.Info("pipeline run started",
		"keywords", report.Keywords,
		"repeat_count", total,
	)

	for i := 1; i <= total; i++ {
		if ctx.Err() != nil {
			report.Iterations = append(report.Iterations, IterationOutcome{
				Index:  i,
				Status: StatusCancelled,
				Upload: UploadSkipped,
				Err:    ctx.Err(),
			})
			continue
		}
		outcome := o.iterate(ctx, chatID, session.UploadURL, report.Keywords, i, total)
		report.Iterations = append(report.Iterations, outcome)
		o.record(logger, outcome)
	}

	logger.Info("pipeline run finished",
		"iterations", len(report.Iterations),
		"delivered", report.Delivered(),
	)
	return report
}

func (o *Orchestrator) iterate(ctx context.Context, chatID domain.ChatID, uploadURL string, keywords []string, index, total int) (outcome IterationOutcome) {
	outcome = IterationOutcome{Index: index, Upload: UploadSkipped}

	var artifact *domain.AudioArtifact
	defer func() {
		if r := recover(); r != nil {
			outcome.Status = StatusUnexpected
			outcome.Err = fmt.Errorf("panic: %v", r)
			o.say(ctx, chatID, "An error occurred: "+outcome.Err.Error())
		}
		if err := artifact.Release(); err != nil {
			o.logger.Warn("failed to remove artifact", "path", artifact.Path, "error", err)
		}
	}()

	o.say(ctx, chatID, fmt.Sprintf("Iteration %d/%d", index, total))
	o.say(ctx, chatID, "Searching for videos with keywords: "+strings.Join(keywords, ", "))

	var pool []domain.VideoCandidate
	for _, k := range keywords {
		pool = append(pool, o.searcher.Search(ctx, k, o.opts.MinDurationSeconds, o.opts.MaxResults)...)
	}
	outcome.PoolSize = len(pool)
	if len(pool) == 0 {
		outcome.Status = StatusNoCandidates
		outcome.Err = domain.ErrNoCandidates
		o.say(ctx, chatID, MsgNoCandidates)
		return outcome
	}

	selected := o.pick(pool)
	outcome.Selected = &selected
	o.say(ctx, chatID, fmt.Sprintf("Selected video: %s\n%s", selected.Title, selected.URL))
	o.say(ctx, chatID, MsgDownloading)

	artifact, err := o.acquirer.Acquire(ctx, selected.URL)
	if err != nil {
		outcome.Status = StatusAcquisitionFailed
		outcome.Err = err
		o.say(ctx, chatID, "An error occurred: "+err.Error())
		return outcome
	}
	outcome.ArtifactPath = artifact.Path

	if err := o.messenger.SendAudio(ctx, chatID, artifact.Path, selected.Title); err != nil {
		outcome.Status = StatusDeliveryFailed
		outcome.Err = err
		o.say(ctx, chatID, "An error occurred: "+err.Error())
		return outcome
	}
	outcome.Status = StatusDelivered

	if uploadURL != "" {
		o.say(ctx, chatID, fmt.Sprintf("Uploading to %s...", uploadURL))
		if o.uploader.Upload(ctx, artifact.Path, uploadURL) {
			outcome.Upload = UploadSucceeded
			o.say(ctx, chatID, MsgUploadOK)
		} else {
			outcome.Upload = UploadFailed
			o.say(ctx, chatID, MsgUploadFailed)
		}
	}

	return outcome
}

func (o *Orchestrator) pick(pool []domain.VideoCandidate) domain.VideoCandidate {
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	return pool[o.rng.Intn(len(pool))]
}

// say delivers progress text. Send failures are logged and never end the run.
func (o *Orchestrator) say(ctx context.Context, chatID domain.ChatID, text string) {
	if err := o.messenger.SendText(ctx, chatID, text); err != nil {
		o.logger.Warn("failed to send message", "chat_id", chatID, "error", err)
	}
}

func (o *Orchestrator) record(logger *slog.Logger, it IterationOutcome) {
	meta := domain.EventMetadata{
		"iteration": it.Index,
		"pool_size": it.PoolSize,
		"upload":    string(it.Upload),
	}
	if it.Selected != nil {
		meta["url"] = it.Selected.URL
		meta["title"] = it.Selected.Title
	}

	switch it.Status {
	case StatusNoCandidates:
		o.events.EmitWarning(domain.EventCategorySearch, eventSource, MsgNoCandidates, meta)
	case StatusAcquisitionFailed:
		o.events.EmitError(domain.EventCategoryDownload, eventSource, it.Err.Error(), meta)
	case StatusDeliveryFailed:
		o.events.EmitError(domain.EventCategoryDelivery, eventSource, it.Err.Error(), meta)
	case StatusUnexpected:
		o.events.EmitError(domain.EventCategorySystem, eventSource, it.Err.Error(), meta)
	case StatusDelivered:
		o.events.EmitSuccess(domain.EventCategoryDelivery, eventSource, "Delivered "+it.Selected.Title, meta)
		switch it.Upload {
		case UploadSucceeded:
			o.events.EmitSuccess(domain.EventCategoryUpload, eventSource, MsgUploadOK, meta)
		case UploadFailed:
			o.events.EmitWarning(domain.EventCategoryUpload, eventSource, MsgUploadFailed, meta)
		}
	}

	logger.Info("iteration finished",
		"iteration", it.Index,
		"status", it.Status,
		"upload", it.Upload,
		"error", it.Err,
	)
}
