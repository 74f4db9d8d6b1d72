package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tzuhan-lo/namecard-bot/internal/domain"
	"github.com/tzuhan-lo/namecard-bot/internal/observability"
	"go.uber.org/zap"
)

// SessionStore is the slice of the session store the services depend on.
type SessionStore interface {
	GetOrCreate(ctx context.Context, userID string) (*domain.ProcessingStatus, error)
	Save(ctx context.Context, status *domain.ProcessingStatus) error
	IncrementUsage(ctx context.Context, userID string) (*domain.ProcessingStatus, error)
}

// BatchService drives the per-user batch lifecycle on top of the session
// store. All methods load the status, mutate it, and save it back.
type BatchService struct {
	sessions SessionStore
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewBatchService(sessions SessionStore, metrics *observability.Metrics, logger *zap.Logger) (*BatchService, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchService{
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Start opens a new batch for the user. A batch left open from before is
// implicitly closed and its partial result discarded.
func (s *BatchService) Start(ctx context.Context, userID string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	status, err := s.sessions.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	now := s.now()
	if status.HasOpenBatch() {
		// Finalize and discard, never merge. Losing the partial result is
		// deliberate, hence the loud log.
		status.CurrentBatch.CompletedAt = &now
		s.logger.Warn("implicitly closing open batch on restart",
			zap.String("userId", userID),
			zap.Int("discardedCards", status.CurrentBatch.TotalCards),
			zap.Int("discardedErrors", len(status.CurrentBatch.Errors)),
		)
	}

	status.CurrentBatch = domain.NewBatchResult(userID, now)
	status.IsBatchMode = true
	status.Touch(now)

	if err := s.sessions.Save(ctx, status); err != nil {
		return err
	}

	s.metrics.IncBatchStarted()
	s.logger.Info("batch started", zap.String("userId", userID))
	return nil
}

// End closes the user's open batch and returns the finalized result. A nil
// result with a nil error means no batch was open; ending twice is a no-op
// the second time.
func (s *BatchService) End(ctx context.Context, userID string) (*domain.BatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	status, err := s.sessions.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !status.HasOpenBatch() {
		return nil, nil
	}

	now := s.now()
	result := status.CurrentBatch
	result.CompletedAt = &now

	status.CurrentBatch = nil
	status.IsBatchMode = false
	status.Touch(now)

	if err := s.sessions.Save(ctx, status); err != nil {
		return nil, err
	}

	s.metrics.IncBatchCompleted()
	s.logger.Info("batch completed",
		zap.String("userId", userID),
		zap.Int("totalCards", result.TotalCards),
		zap.Int("successfulCards", result.SuccessfulCards),
		zap.Int("failedCards", result.FailedCards),
	)
	return result, nil
}

// AddCard appends a processed card to the user's open batch. It reports
// false without error when no batch is open, so single-image flows can
// fall through to their own handling.
func (s *BatchService) AddCard(ctx context.Context, userID string, card domain.BusinessCard) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	status, err := s.sessions.GetOrCreate(ctx, userID)
	if err != nil {
		return false, err
	}
	if !status.HasOpenBatch() {
		return false, nil
	}

	status.CurrentBatch.Append(card)
	status.Touch(s.now())

	if err := s.sessions.Save(ctx, status); err != nil {
		return false, err
	}
	return true, nil
}

// RecordError attaches a short failure description to the open batch, if any.
func (s *BatchService) RecordError(ctx context.Context, userID, message string) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	status, err := s.sessions.GetOrCreate(ctx, userID)
	if err != nil {
		return false, err
	}
	if !status.HasOpenBatch() {
		return false, nil
	}

	status.CurrentBatch.AppendError(message)
	status.Touch(s.now())

	if err := s.sessions.Save(ctx, status); err != nil {
		return false, err
	}
	return true, nil
}

// StatusText renders a human-readable progress summary of the open batch,
// or an empty string when none is open.
func (s *BatchService) StatusText(ctx context.Context, userID string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	status, err := s.sessions.GetOrCreate(ctx, userID)
	if err != nil {
		return "", err
	}
	if !status.HasOpenBatch() {
		return "", nil
	}

	batch := status.CurrentBatch
	elapsed := s.now().Sub(batch.StartedAt).Round(time.Second)

	var b strings.Builder
	fmt.Fprintf(&b, "Batch in progress (%s elapsed)\n", elapsed)
	fmt.Fprintf(&b, "Cards processed: %d (ok %d, failed %d)", batch.TotalCards, batch.SuccessfulCards, batch.FailedCards)
	if len(batch.Errors) > 0 {
		fmt.Fprintf(&b, "\nRecent issues: %d", len(batch.Errors))
	}
	return b.String(), nil
}
