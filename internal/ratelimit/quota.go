package ratelimit

import "github.com/tzuhan-lo/namecard-bot/internal/domain"

// DefaultDailyLimit caps cards processed per user per calendar day.
const DefaultDailyLimit = 50

// Allow reports whether the user may process another image today. Pure:
// no side effects, no I/O. Callers increment usage separately, once per
// successfully processed image, via the session store.
func Allow(status *domain.ProcessingStatus, limit int) bool {
	if status == nil {
		return false
	}
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return status.DailyUsage < limit
}
