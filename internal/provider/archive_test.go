package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tzuhan-lo/namecard-bot/internal/domain"
)

func newTestArchive(t *testing.T, server *httptest.Server) *ImageArchiveClient {
	t.Helper()

	client := resty.New()
	client.SetBaseURL(server.URL)
	client.SetTimeout(2 * time.Second)

	archive, err := NewImageArchiveClientWithClient(client)
	if err != nil {
		t.Fatalf("NewImageArchiveClientWithClient: %v", err)
	}
	return archive
}

func TestImageArchiveUpload(t *testing.T) {
	t.Parallel()

	image := []byte{0xff, 0xd8, 0x01, 0x02}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/images" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-User-Id"); got != "u1" {
			t.Errorf("X-User-Id = %q, want u1", got)
		}
		body, _ := io.ReadAll(r.Body)
		if len(body) != len(image) {
			t.Errorf("body length = %d, want %d", len(body), len(image))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://archive.example/u1/img-1.jpg"}`))
	}))
	defer server.Close()

	archive := newTestArchive(t, server)

	url, err := archive.Upload(context.Background(), "u1", image)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://archive.example/u1/img-1.jpg" {
		t.Errorf("url = %q", url)
	}
}

func TestImageArchiveUploadFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	archive := newTestArchive(t, server)

	_, err := archive.Upload(context.Background(), "u1", []byte{0x01})
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if !IsTransient(err) {
		t.Error("503 should be transient")
	}
}

func TestImageArchiveUploadValidation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	}))
	defer server.Close()

	archive := newTestArchive(t, server)

	if _, err := archive.Upload(context.Background(), "", []byte{0x01}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("blank user: err = %v, want ErrValidation", err)
	}
	if _, err := archive.Upload(context.Background(), "u1", nil); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty image: err = %v, want ErrValidation", err)
	}
}
