package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/tzuhan-lo/namecard-bot/internal/domain"
	"go.uber.org/zap"
)

const (
	// StatusKeyPrefix namespaces per-user status records in the backend.
	StatusKeyPrefix = "session:status:"

	defaultSessionTTL = 24 * time.Hour
)

// Backend is the durable key-value port behind the store. Implementations
// must bound their own call latency; the store never retries.
type Backend interface {
	// Get returns the stored payload or domain.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	SetEx(ctx context.Context, key string, ttl time.Duration, value []byte) error
	// Scan returns every key under the given prefix.
	Scan(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// StatusKey returns the backend key for a user's ProcessingStatus.
func StatusKey(userID string) string {
	return StatusKeyPrefix + userID
}

// Store is the single source of truth for ProcessingStatus records. With a
// backend configured it reconciles the backend with a local cache; without
// one it runs cache-only with identical semantics. Backend faults never
// propagate to callers: the affected call degrades to cache-only and the
// fault goes to the log.
//
// Reads hand out private copies and writes store private copies, so callers
// may mutate a returned status freely; a mutation becomes visible only once
// written back through Save or an operation that persists. Concurrent writes
// for the same user resolve last-writer-wins, in-process and cross-process
// alike, which is accepted for human-paced messaging traffic.
type Store struct {
	backend Backend
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.RWMutex
	cache map[string]*domain.ProcessingStatus
}

// NewStore builds a Store. backend may be nil for single-process cache-only
// operation. ttl is the backend expiry and must be no shorter than the
// inactivity cleanup horizon.
func NewStore(backend Backend, ttl time.Duration, logger *zap.Logger) (*Store, error) {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		backend: backend,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		cache:   make(map[string]*domain.ProcessingStatus),
	}, nil
}

// GetOrCreate returns the user's status, creating a fresh one on first
// access. Every read path applies the lazy daily-reset rule before
// returning.
func (s *Store) GetOrCreate(ctx context.Context, userID string) (*domain.ProcessingStatus, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := s.now()

	if s.backend != nil {
		if status, ok := s.readBackend(ctx, userID); ok {
			if status.ResetDailyUsageIfStale(now) {
				s.logger.Info("daily usage reset", zap.String("userId", userID))
				s.persist(ctx, status)
			} else {
				s.cachePut(status)
			}
			return status, nil
		}
	}

	if status, ok := s.cacheGet(userID); ok {
		if status.ResetDailyUsageIfStale(now) {
			s.logger.Info("daily usage reset", zap.String("userId", userID))
			s.persist(ctx, status)
		}
		return status, nil
	}

	status := domain.NewProcessingStatus(userID, now)
	s.persist(ctx, status)
	return status, nil
}

// Save upserts the status. Backend write failures are logged and swallowed;
// the cached value stays authoritative for this process.
func (s *Store) Save(ctx context.Context, status *domain.ProcessingStatus) error {
	if status == nil {
		return fmt.Errorf("%w: status is required", domain.ErrValidation)
	}
	if err := status.Validate(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.persist(ctx, status)
	return nil
}

// IncrementUsage bumps the daily counter and stamps activity. Call it
// exactly once per successfully processed image, never per inbound message.
func (s *Store) IncrementUsage(ctx context.Context, userID string) (*domain.ProcessingStatus, error) {
	status, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	status.DailyUsage++
	status.Touch(s.now())
	s.persist(ctx, status)

	s.logger.Info("usage incremented",
		zap.String("userId", userID),
		zap.Int("dailyUsage", status.DailyUsage),
	)
	return status, nil
}

// CleanupInactive removes every status idle longer than horizon and returns
// the count removed. It scans the backend when one is configured, tolerating
// per-key failures, then sweeps cache-only strays. This is a maintenance
// hook for out-of-band invocation, not the request path.
func (s *Store) CleanupInactive(ctx context.Context, horizon time.Duration) (int, error) {
	if horizon <= 0 {
		return 0, fmt.Errorf("%w: horizon must be positive", domain.ErrValidation)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cutoff := s.now().Add(-horizon)
	removed := 0

	if s.backend != nil {
		keys, err := s.backend.Scan(ctx, StatusKeyPrefix)
		if err != nil {
			s.logger.Warn("session backend scan failed, sweeping cache only", zap.Error(err))
		} else {
			removed += s.cleanupBackend(ctx, keys, cutoff)
		}
	}

	removed += s.cleanupCache(cutoff)
	return removed, nil
}

func (s *Store) cleanupBackend(ctx context.Context, keys []string, cutoff time.Time) int {
	removed := 0
	for _, key := range keys {
		payload, err := s.backend.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				s.logger.Warn("skipping session key during cleanup", zap.String("key", key), zap.Error(err))
			}
			continue
		}

		var status domain.ProcessingStatus
		if err := sonic.Unmarshal(payload, &status); err != nil {
			// Corrupt records can never be read again; drop them.
			s.logger.Error("deleting corrupt session payload", zap.String("key", key), zap.Error(err))
			if derr := s.backend.Delete(ctx, key); derr != nil {
				s.logger.Warn("failed to delete corrupt session", zap.String("key", key), zap.Error(derr))
				continue
			}
			removed++
			continue
		}

		if !status.LastActivity.Before(cutoff) {
			continue
		}

		if err := s.backend.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to delete inactive session", zap.String("key", key), zap.Error(err))
			continue
		}
		s.cacheDelete(status.UserID)
		removed++

		s.logger.Info("cleaned up inactive session", zap.String("userId", status.UserID))
	}
	return removed
}

func (s *Store) cleanupCache(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, status := range s.cache {
		if status.LastActivity.Before(cutoff) {
			delete(s.cache, userID)
			removed++
		}
	}
	return removed
}

// readBackend fetches and decodes a status. A corrupt payload is treated as
// a miss: failing open with a fresh status beats blocking the user.
func (s *Store) readBackend(ctx context.Context, userID string) (*domain.ProcessingStatus, bool) {
	payload, err := s.backend.Get(ctx, StatusKey(userID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false
		}
		s.logger.Warn("session backend read failed, using cache",
			zap.String("userId", userID),
			zap.Error(err),
		)
		return nil, false
	}

	status := &domain.ProcessingStatus{}
	if err := sonic.Unmarshal(payload, status); err != nil || status.UserID == "" {
		s.logger.Error("discarding corrupt session payload",
			zap.String("userId", userID),
			zap.Error(err),
		)
		return nil, false
	}

	return status, true
}

func (s *Store) persist(ctx context.Context, status *domain.ProcessingStatus) {
	s.cachePut(status)

	if s.backend == nil {
		return
	}

	payload, err := sonic.Marshal(status)
	if err != nil {
		s.logger.Error("failed to encode session", zap.String("userId", status.UserID), zap.Error(err))
		return
	}

	if err := s.backend.SetEx(ctx, StatusKey(status.UserID), s.ttl, payload); err != nil {
		s.logger.Warn("session backend write failed, cache remains authoritative",
			zap.String("userId", status.UserID),
			zap.Error(err),
		)
	}
}

// cacheGet returns a private copy so callers never share a pointer with the
// cache or with each other.
func (s *Store) cacheGet(userID string) (*domain.ProcessingStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.cache[userID]
	if !ok {
		return nil, false
	}
	return status.Clone(), true
}

func (s *Store) cachePut(status *domain.ProcessingStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[status.UserID] = status.Clone()
}

func (s *Store) cacheDelete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, userID)
}
