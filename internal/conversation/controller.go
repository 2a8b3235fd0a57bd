package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iconidentify/audiograbba/internal/domain"
	"github.com/iconidentify/audiograbba/internal/pipeline"
	"github.com/iconidentify/audiograbba/internal/repository"
)

const eventSource = "conversation"

// errUnchanged aborts a session update that has nothing to write.
var errUnchanged = errors.New("session unchanged")

// Replier sends text replies to a chat.
type Replier interface {
	SendText(ctx context.Context, chatID domain.ChatID, text string) error
}

// Runner executes the acquisition pipeline for a message.
type Runner interface {
	Run(ctx context.Context, userID domain.UserID, chatID domain.ChatID, text string) *pipeline.RunReport
}

// Controller applies inbound messages to the per-user state machine.
type Controller struct {
	sessions  repository.SessionRepository
	runner    Runner
	replier   Replier
	events    domain.EventEmitter
	maxRepeat int
	logger    *slog.Logger
}

// NewController creates a new conversation controller.
func NewController(sessions repository.SessionRepository, runner Runner, replier Replier, events domain.EventEmitter, maxRepeat int, logger *slog.Logger) *Controller {
	if events == nil {
		events = domain.NopEmitter{}
	}
	return &Controller{
		sessions:  sessions,
		runner:    runner,
		replier:   replier,
		events:    events,
		maxRepeat: maxRepeat,
		logger:    logger,
	}
}

// Handle processes one message from userID received in chatID.
// Calls for the same user must not overlap.
func (c *Controller) Handle(ctx context.Context, userID domain.UserID, chatID domain.ChatID, text string) error {
	in := ParseInput(text)
	logger := c.logger.With("user_id", userID, "chat_id", chatID)

	var out Outcome
	var before domain.ConversationState
	session, err := c.sessions.Update(ctx, userID, func(s *domain.UserSession) error {
		before = s.State
		out = Step(s, in, c.maxRepeat)
		if !out.Changed {
			return errUnchanged
		}
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return fmt.Errorf("update session: %w", err)
	}

	if out.Changed {
		logger.Debug("conversation state changed", "from", before, "to", session.State)
		c.recordTransition(userID, before, session)
	}

	if out.Reply != "" {
		if err := c.replier.SendText(ctx, chatID, out.Reply); err != nil {
			logger.Warn("failed to send reply", "error", err)
		}
	}

	switch out.Action {
	case ActionRunPipeline:
		c.runner.Run(ctx, userID, chatID, in.Text)
	case ActionIgnore:
		logger.Debug("ignoring unknown command", "command", in.Command)
	}
	return nil
}

func (c *Controller) recordTransition(userID domain.UserID, before domain.ConversationState, s *domain.UserSession) {
	meta := domain.EventMetadata{
		"user_id": userID.String(),
		"from":    string(before),
		"to":      string(s.State),
	}
	switch {
	case before == domain.StateAwaitingRepeatCount && s.State == domain.StateIdle && s.RepeatCount > 0:
		meta["repeat_count"] = s.RepeatCount
		c.events.EmitSuccess(domain.EventCategorySession, eventSource, "settings saved", meta)
	case s.State == domain.StateAwaitingUploadURL:
		c.events.EmitInfo(domain.EventCategorySession, eventSource, "settings started", meta)
	case before.Capturing() && s.State == domain.StateIdle:
		c.events.EmitInfo(domain.EventCategorySession, eventSource, "settings cancelled", meta)
	}
}
