package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatchResult groups the cards processed between an explicit batch start and
// end. It is owned by the ProcessingStatus that created it until the batch
// closes; after CompletedAt is stamped it is immutable and caller-owned.
type BatchResult struct {
	UserID          string         `json:"userId"`
	TotalCards      int            `json:"totalCards"`
	SuccessfulCards int            `json:"successfulCards"`
	FailedCards     int            `json:"failedCards"`
	Cards           []BusinessCard `json:"cards,omitempty"`
	StartedAt       time.Time      `json:"startedAt"`
	CompletedAt     *time.Time     `json:"completedAt,omitempty"`
	Errors          []string       `json:"errors,omitempty"`
}

func NewBatchResult(userID string, now time.Time) *BatchResult {
	return &BatchResult{
		UserID:    userID,
		StartedAt: now,
	}
}

// Append records one card in arrival order and bumps exactly one of the
// success/failure counters based on the card's Processed flag, keeping
// TotalCards == SuccessfulCards + FailedCards.
func (b *BatchResult) Append(card BusinessCard) {
	b.Cards = append(b.Cards, card)
	b.TotalCards++
	if card.Processed {
		b.SuccessfulCards++
	} else {
		b.FailedCards++
	}
}

// AppendError records a short error description. The list is append-only.
func (b *BatchResult) AppendError(msg string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return
	}
	if len(msg) > MaxCardErrorLength {
		msg = msg[:MaxCardErrorLength]
	}
	b.Errors = append(b.Errors, msg)
}

// Clone returns an independent deep copy, including the cards and errors
// slices.
func (b *BatchResult) Clone() *BatchResult {
	if b == nil {
		return nil
	}

	clone := *b
	if b.Cards != nil {
		clone.Cards = make([]BusinessCard, len(b.Cards))
		copy(clone.Cards, b.Cards)
	}
	if b.Errors != nil {
		clone.Errors = make([]string, len(b.Errors))
		copy(clone.Errors, b.Errors)
	}
	if b.CompletedAt != nil {
		completedAt := *b.CompletedAt
		clone.CompletedAt = &completedAt
	}
	return &clone
}

// SuccessRate is SuccessfulCards/TotalCards, or 0 for an empty batch.
func (b *BatchResult) SuccessRate() float64 {
	if b.TotalCards == 0 {
		return 0
	}
	return float64(b.SuccessfulCards) / float64(b.TotalCards)
}

// IsCompleted reports whether the batch has been finalized.
func (b *BatchResult) IsCompleted() bool {
	return b.CompletedAt != nil
}

func (b *BatchResult) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if b.TotalCards != b.SuccessfulCards+b.FailedCards {
		return fmt.Errorf("%w: counter mismatch total=%d successful=%d failed=%d",
			ErrValidation, b.TotalCards, b.SuccessfulCards, b.FailedCards)
	}
	return nil
}
