package pipeline

import (
	"context"

	"github.com/iconidentify/audiograbba/internal/domain"
)

// Messenger delivers progress text and audio to a chat.
type Messenger interface {
	SendText(ctx context.Context, chatID domain.ChatID, text string) error
	SendAudio(ctx context.Context, chatID domain.ChatID, filePath, title string) error
}

// Searcher finds candidates for one keyword.
type Searcher interface {
	Search(ctx context.Context, query string, minDurationSeconds, maxResults int) []domain.VideoCandidate
}
