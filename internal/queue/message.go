package queue

import (
	"fmt"
	"strings"
	"time"
)

// ArchiveMessage is the broker payload for archiving an uploaded card image
// out of band. The worker re-downloads the image by MessageID rather than
// shipping image bytes through the broker.
type ArchiveMessage struct {
	JobID      string    `json:"jobId"`
	UserID     string    `json:"userId"`
	MessageID  string    `json:"messageId"`
	CapturedAt time.Time `json:"capturedAt"`
}

func (m ArchiveMessage) Validate() error {
	if strings.TrimSpace(m.JobID) == "" {
		return fmt.Errorf("jobId is required")
	}
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("userId is required")
	}
	if strings.TrimSpace(m.MessageID) == "" {
		return fmt.Errorf("messageId is required")
	}
	return nil
}
