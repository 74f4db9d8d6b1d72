package domain

import (
	"fmt"
	"strings"
	"time"
)

// UsageRecord is one processed image's outcome, appended for reporting.
// The authoritative quota counter lives on ProcessingStatus; these rows are
// a best-effort audit trail.
type UsageRecord struct {
	ID             string
	UserID         string
	CardsExtracted int
	CardsSaved     int
	CardsFailed    int
	CreatedAt      time.Time
}

func (r *UsageRecord) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if r.CardsExtracted < 0 || r.CardsSaved < 0 || r.CardsFailed < 0 {
		return fmt.Errorf("%w: usage counters must be non-negative", ErrValidation)
	}
	if r.CardsSaved+r.CardsFailed > r.CardsExtracted {
		return fmt.Errorf("%w: saved+failed (%d) exceeds extracted (%d)",
			ErrValidation, r.CardsSaved+r.CardsFailed, r.CardsExtracted)
	}
	return nil
}
