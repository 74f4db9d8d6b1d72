package service

import (
	"context"
	"fmt"
	"time"

	"github.com/tzuhan-lo/namecard-bot/internal/observability"
	"go.uber.org/zap"
)

const (
	defaultCleanupInterval = time.Hour
	defaultCleanupHorizon  = 24 * time.Hour
)

// SessionCleaner is the slice of the session store the scanner needs.
type SessionCleaner interface {
	CleanupInactive(ctx context.Context, horizon time.Duration) (int, error)
}

// CleanupScanner periodically removes sessions with no recent activity.
type CleanupScanner struct {
	sessions SessionCleaner
	metrics  *observability.Metrics
	logger   *zap.Logger
	interval time.Duration
	horizon  time.Duration
}

func NewCleanupScanner(
	sessions SessionCleaner,
	interval time.Duration,
	horizon time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*CleanupScanner, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session cleaner is required")
	}
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	if horizon <= 0 {
		horizon = defaultCleanupHorizon
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CleanupScanner{
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
		interval: interval,
		horizon:  horizon,
	}, nil
}

func (s *CleanupScanner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.scan(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("cleanup initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.scan(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("cleanup scan failed", zap.Error(err))
			}
		}
	}
}

func (s *CleanupScanner) scan(ctx context.Context) error {
	removed, err := s.sessions.CleanupInactive(ctx, s.horizon)
	if err != nil {
		return fmt.Errorf("failed to clean inactive sessions: %w", err)
	}
	if removed > 0 {
		s.metrics.AddSessionsCleaned(removed)
		s.logger.Info("removed inactive sessions", zap.Int("count", removed))
	}
	return nil
}
