package domain

import (
	"errors"
	"testing"
	"time"
)

func TestResetDailyUsageIfStale(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.March, 12, 9, 30, 0, 0, time.Local)

	testCases := []struct {
		name      string
		resetDate time.Time
		usage     int
		wantReset bool
		wantUsage int
	}{
		{
			name:      "same day keeps usage",
			resetDate: StartOfDay(now),
			usage:     7,
			wantReset: false,
			wantUsage: 7,
		},
		{
			name:      "yesterday resets",
			resetDate: StartOfDay(now.AddDate(0, 0, -1)),
			usage:     42,
			wantReset: true,
			wantUsage: 0,
		},
		{
			name:      "several days stale resets once",
			resetDate: StartOfDay(now.AddDate(0, 0, -9)),
			usage:     3,
			wantReset: true,
			wantUsage: 0,
		},
		{
			name:      "late same-day timestamp does not reset",
			resetDate: now.Add(-2 * time.Hour),
			usage:     5,
			wantReset: false,
			wantUsage: 5,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			status := NewProcessingStatus("u1", now)
			status.DailyUsage = tc.usage
			status.UsageResetDate = tc.resetDate

			if got := status.ResetDailyUsageIfStale(now); got != tc.wantReset {
				t.Fatalf("ResetDailyUsageIfStale() = %v, want %v", got, tc.wantReset)
			}
			if status.DailyUsage != tc.wantUsage {
				t.Fatalf("DailyUsage = %d, want %d", status.DailyUsage, tc.wantUsage)
			}
			if tc.wantReset && !status.UsageResetDate.Equal(StartOfDay(now)) {
				t.Fatalf("UsageResetDate = %v, want %v", status.UsageResetDate, StartOfDay(now))
			}
		})
	}
}

func TestProcessingStatusValidateBatchInvariant(t *testing.T) {
	t.Parallel()

	now := time.Now()

	status := NewProcessingStatus("u1", now)
	if err := status.Validate(); err != nil {
		t.Fatalf("fresh status should validate, got %v", err)
	}

	status.IsBatchMode = true
	if err := status.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("batch mode without batch should fail validation, got %v", err)
	}

	status.CurrentBatch = NewBatchResult("u1", now)
	if err := status.Validate(); err != nil {
		t.Fatalf("open batch should validate, got %v", err)
	}

	status.IsBatchMode = false
	if err := status.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("dangling batch should fail validation, got %v", err)
	}
}

func TestParseIntentFromText(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   string
		want Intent
	}{
		{in: "help", want: IntentHelp},
		{in: "幫助", want: IntentHelp},
		{in: " Batch ", want: IntentStartBatch},
		{in: "批次", want: IntentStartBatch},
		{in: "結束批次", want: IntentEndBatch},
		{in: "END BATCH", want: IntentEndBatch},
		{in: "status", want: IntentQueryStatus},
		{in: "進度", want: IntentQueryStatus},
		{in: "what is this", want: IntentUnknown},
		{in: "", want: IntentUnknown},
	}

	for _, tc := range testCases {
		if got := ParseIntentFromText(tc.in); got != tc.want {
			t.Errorf("ParseIntentFromText(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
