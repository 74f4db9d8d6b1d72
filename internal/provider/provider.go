package provider

import (
	"context"

	"github.com/tzuhan-lo/namecard-bot/internal/domain"
)

// CardExtractor turns a card photo into structured fields. One image may
// yield zero or many cards.
type CardExtractor interface {
	Extract(ctx context.Context, image []byte, userID string) ([]domain.BusinessCard, error)
}

// CardStore persists one extracted card and returns an opaque reference to
// the stored record.
type CardStore interface {
	Save(ctx context.Context, card *domain.BusinessCard) (string, error)
}

// Messenger is the outbound side of the chat platform: replies and message
// content downloads.
type Messenger interface {
	Reply(ctx context.Context, replyToken, text string) error
	Content(ctx context.Context, messageID string) ([]byte, error)
}

// ImageArchive stores raw card images out of band and returns the archived
// location.
type ImageArchive interface {
	Upload(ctx context.Context, userID string, image []byte) (string, error)
}
