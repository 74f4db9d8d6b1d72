package queue

import (
	"testing"
	"time"
)

func TestArchiveMessageValidate(t *testing.T) {
	t.Parallel()

	valid := ArchiveMessage{
		JobID:      "6a1c1b3e-0000-4000-8000-000000000001",
		UserID:     "u1",
		MessageID:  "m1",
		CapturedAt: time.Now(),
	}

	testCases := []struct {
		name    string
		mutate  func(m *ArchiveMessage)
		wantErr bool
	}{
		{name: "valid", mutate: func(m *ArchiveMessage) {}},
		{name: "missing job id", mutate: func(m *ArchiveMessage) { m.JobID = " " }, wantErr: true},
		{name: "missing user id", mutate: func(m *ArchiveMessage) { m.UserID = "" }, wantErr: true},
		{name: "missing message id", mutate: func(m *ArchiveMessage) { m.MessageID = "" }, wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			msg := valid
			tc.mutate(&msg)

			err := msg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
		})
	}
}
