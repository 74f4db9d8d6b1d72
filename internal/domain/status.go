package domain

import (
	"fmt"
	"strings"
	"time"
)

// ProcessingStatus is the per-user session record: daily quota bookkeeping
// plus the current batch, if one is open. Created lazily on first access
// and removed only by inactivity cleanup.
//
// Invariant: CurrentBatch is non-nil iff IsBatchMode is true.
type ProcessingStatus struct {
	UserID         string       `json:"userId"`
	IsBatchMode    bool         `json:"isBatchMode"`
	CurrentBatch   *BatchResult `json:"currentBatch,omitempty"`
	LastActivity   time.Time    `json:"lastActivity"`
	DailyUsage     int          `json:"dailyUsage"`
	UsageResetDate time.Time    `json:"usageResetDate"`
}

func NewProcessingStatus(userID string, now time.Time) *ProcessingStatus {
	return &ProcessingStatus{
		UserID:         userID,
		LastActivity:   now,
		UsageResetDate: StartOfDay(now),
	}
}

// StartOfDay returns local midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ResetDailyUsageIfStale applies the lazy daily-reset rule: if now is on a
// later calendar day than UsageResetDate, zero DailyUsage and advance
// UsageResetDate to the new day's start. Reports whether a reset happened.
// The check runs only on access, never from a timer.
func (s *ProcessingStatus) ResetDailyUsageIfStale(now time.Time) bool {
	if !StartOfDay(now).After(StartOfDay(s.UsageResetDate)) {
		return false
	}
	s.DailyUsage = 0
	s.UsageResetDate = StartOfDay(now)
	return true
}

// Clone returns an independent deep copy, including the current batch.
func (s *ProcessingStatus) Clone() *ProcessingStatus {
	if s == nil {
		return nil
	}

	clone := *s
	clone.CurrentBatch = s.CurrentBatch.Clone()
	return &clone
}

// Touch stamps the most recent mutation time, used for inactivity cleanup.
func (s *ProcessingStatus) Touch(now time.Time) {
	s.LastActivity = now
}

// HasOpenBatch reports whether a batch is currently open.
func (s *ProcessingStatus) HasOpenBatch() bool {
	return s.IsBatchMode && s.CurrentBatch != nil
}

func (s *ProcessingStatus) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if s.DailyUsage < 0 {
		return fmt.Errorf("%w: daily usage %d must be non-negative", ErrValidation, s.DailyUsage)
	}
	if s.IsBatchMode != (s.CurrentBatch != nil) {
		return fmt.Errorf("%w: batch mode flag and current batch disagree", ErrValidation)
	}
	return nil
}
