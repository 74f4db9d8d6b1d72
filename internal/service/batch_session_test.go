package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tzuhan-lo/namecard-bot/internal/domain"
	"github.com/tzuhan-lo/namecard-bot/internal/session"
)

// deadBackend fails every call, simulating an unreachable session backend.
type deadBackend struct{}

func (deadBackend) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("backend down")
}

func (deadBackend) SetEx(ctx context.Context, key string, ttl time.Duration, value []byte) error {
	return errors.New("backend down")
}

func (deadBackend) Scan(ctx context.Context, prefix string) ([]string, error) {
	return nil, errors.New("backend down")
}

func (deadBackend) Delete(ctx context.Context, key string) error {
	return errors.New("backend down")
}

func TestBatchLifecycleSurvivesBackendOutage(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.March, 12, 9, 0, 0, 0, time.Local)

	store, err := session.NewStore(deadBackend{}, 24*time.Hour, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	svc, err := NewBatchService(store, nil, nil)
	if err != nil {
		t.Fatalf("NewBatchService() error = %v", err)
	}
	svc.now = func() time.Time { return now }

	ctx := context.Background()

	if err := svc.Start(ctx, "u1"); err != nil {
		t.Fatalf("Start() with backend down error = %v", err)
	}

	added, err := svc.AddCard(ctx, "u1", domain.BusinessCard{UserID: "u1", Name: "Lin Wei", Processed: true})
	if err != nil || !added {
		t.Fatalf("AddCard() = (%v, %v), want (true, nil)", added, err)
	}
	added, err = svc.AddCard(ctx, "u1", domain.BusinessCard{UserID: "u1", Name: "Blurry"})
	if err != nil || !added {
		t.Fatalf("AddCard() = (%v, %v), want (true, nil)", added, err)
	}
	recorded, err := svc.RecordError(ctx, "u1", "image too blurry")
	if err != nil || !recorded {
		t.Fatalf("RecordError() = (%v, %v), want (true, nil)", recorded, err)
	}

	text, err := svc.StatusText(ctx, "u1")
	if err != nil {
		t.Fatalf("StatusText() error = %v", err)
	}
	if !strings.Contains(text, "Cards processed: 2 (ok 1, failed 1)") {
		t.Errorf("StatusText() = %q, want processed counts from the cache", text)
	}

	result, err := svc.End(ctx, "u1")
	if err != nil {
		t.Fatalf("End() with backend down error = %v", err)
	}
	if result == nil {
		t.Fatal("End() returned nil result for an open batch")
	}
	if result.TotalCards != 2 || result.SuccessfulCards != 1 || result.FailedCards != 1 {
		t.Errorf("result = %d/%d/%d, want 2 total, 1 successful, 1 failed",
			result.TotalCards, result.SuccessfulCards, result.FailedCards)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %d, want 1", len(result.Errors))
	}
	if !result.IsCompleted() {
		t.Error("ended batch should carry a completion timestamp")
	}

	// Ending twice is a no-op the second time.
	second, err := svc.End(ctx, "u1")
	if err != nil || second != nil {
		t.Errorf("second End() = (%+v, %v), want (nil, nil)", second, err)
	}
}
