package telegram

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iconidentify/audiograbba/internal/domain"
	"github.com/iconidentify/audiograbba/internal/worker"
)

// MsgBusy is sent when a user's queue is full.
const MsgBusy = "Still working on your previous messages, please wait."

// Handler processes one text message from a user.
type Handler interface {
	Handle(ctx context.Context, userID domain.UserID, chatID domain.ChatID, text string) error
}

// Submitter queues per-user work.
type Submitter interface {
	Submit(key domain.UserID, job worker.Job) error
}

// Poller feeds long-polled updates into per-user jobs.
type Poller struct {
	client     *Client
	dispatcher Submitter
	handler    Handler
	timeout    time.Duration
	backoff    time.Duration
	logger     *slog.Logger
}

// NewPoller creates a new update poller.
func NewPoller(client *Client, dispatcher Submitter, handler Handler, pollTimeout time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		client:     client,
		dispatcher: dispatcher,
		handler:    handler,
		timeout:    pollTimeout,
		backoff:    2 * time.Second,
		logger:     logger,
	}
}

// Run polls until ctx is cancelled or the dispatcher stops accepting work.
func (p *Poller) Run(ctx context.Context) error {
	var offset int64
	p.logger.Info("telegram polling started", "poll_timeout", p.timeout)

	for {
		if ctx.Err() != nil {
			return nil
		}

		updates, next, err := p.client.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.backoff):
			}
			continue
		}
		offset = next

		for _, u := range updates {
			if err := p.dispatch(ctx, u); errors.Is(err, worker.ErrStopped) {
				return nil
			}
		}
	}
}

func (p *Poller) dispatch(ctx context.Context, u Update) error {
	msg := u.Message
	if msg == nil || msg.Chat == nil || msg.From == nil || msg.From.IsBot || msg.Text == "" {
		return nil
	}

	userID := domain.UserID(msg.From.ID)
	chatID := domain.ChatID(msg.Chat.ID)
	text := msg.Text
	logger := p.logger.With("update_id", u.UpdateID, "user_id", userID, "chat_id", chatID)

	err := p.dispatcher.Submit(userID, func(jobCtx context.Context) {
		if err := p.handler.Handle(jobCtx, userID, chatID, text); err != nil {
			logger.Error("failed to handle message", "error", err)
		}
	})
	switch {
	case err == nil:
		logger.Debug("message queued")
	case errors.Is(err, worker.ErrQueueFull):
		logger.Warn("session queue full, dropping message")
		if sendErr := p.client.SendText(ctx, chatID, MsgBusy); sendErr != nil {
			logger.Warn("failed to send busy reply", "error", sendErr)
		}
	default:
		logger.Warn("failed to queue message", "error", err)
	}
	return err
}
