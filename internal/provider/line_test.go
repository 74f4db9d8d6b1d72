package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tzuhan-lo/namecard-bot/internal/domain"
)

func newTestMessenger(t *testing.T, server *httptest.Server) *LineMessenger {
	t.Helper()

	client := resty.New()
	client.SetBaseURL(server.URL)
	client.SetTimeout(2 * time.Second)

	messenger, err := NewLineMessengerWithClients(client, client)
	if err != nil {
		t.Fatalf("NewLineMessengerWithClients: %v", err)
	}
	return messenger
}

func TestLineMessengerReply(t *testing.T) {
	t.Parallel()

	var received lineReplyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/bot/message/reply" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	messenger := newTestMessenger(t, server)

	if err := messenger.Reply(context.Background(), "token-1", "hello"); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if received.ReplyToken != "token-1" {
		t.Errorf("replyToken = %q, want token-1", received.ReplyToken)
	}
	if len(received.Messages) != 1 || received.Messages[0].Type != "text" || received.Messages[0].Text != "hello" {
		t.Errorf("messages = %+v, want single text message", received.Messages)
	}
}

func TestLineMessengerReplyTruncatesLongText(t *testing.T) {
	t.Parallel()

	var received lineReplyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	messenger := newTestMessenger(t, server)

	long := bytes.Repeat([]byte("a"), maxReplyTextLength+100)
	if err := messenger.Reply(context.Background(), "token-1", string(long)); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if got := len([]rune(received.Messages[0].Text)); got != maxReplyTextLength {
		t.Errorf("reply length = %d, want %d", got, maxReplyTextLength)
	}
}

func TestLineMessengerReplyError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid reply token"}`))
	}))
	defer server.Close()

	messenger := newTestMessenger(t, server)

	err := messenger.Reply(context.Background(), "expired", "hello")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("error = %v, want *ProviderError", err)
	}
	if providerErr.Transient {
		t.Error("400 should be permanent")
	}
}

func TestLineMessengerContent(t *testing.T) {
	t.Parallel()

	payload := []byte{0xff, 0xd8, 0xff, 0xe0}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/bot/message/msg-1/content" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	messenger := newTestMessenger(t, server)

	got, err := messenger.Content(context.Background(), "msg-1")
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("content = %v, want %v", got, payload)
	}
}

func TestLineMessengerContentErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/bot/message/gone/content":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	messenger := newTestMessenger(t, server)

	if _, err := messenger.Content(context.Background(), "gone"); err == nil {
		t.Error("expected error for 404 response")
	}
	if _, err := messenger.Content(context.Background(), "empty"); err == nil {
		t.Error("expected error for empty body")
	}
	if _, err := messenger.Content(context.Background(), " "); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("blank id: err = %v, want ErrValidation", err)
	}
}
