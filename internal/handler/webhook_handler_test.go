package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/tzuhan-lo/namecard-bot/internal/domain"
	"github.com/tzuhan-lo/namecard-bot/internal/transport"
	"go.uber.org/zap"
)

const testChannelSecret = "test-channel-secret"

type stubCardService struct {
	intents []domain.Intent
	images  []string

	intentReply string
	imageReply  string
	err         error
}

func (s *stubCardService) HandleIntent(_ context.Context, _ string, intent domain.Intent) (string, error) {
	s.intents = append(s.intents, intent)
	return s.intentReply, s.err
}

func (s *stubCardService) HandleImage(_ context.Context, _ string, messageID string, _ []byte) (string, error) {
	s.images = append(s.images, messageID)
	return s.imageReply, s.err
}

type stubMessenger struct {
	replies  []string
	content  map[string][]byte
	replyErr error
}

func (s *stubMessenger) Reply(_ context.Context, _ string, text string) error {
	if s.replyErr != nil {
		return s.replyErr
	}
	s.replies = append(s.replies, text)
	return nil
}

func (s *stubMessenger) Content(_ context.Context, messageID string) ([]byte, error) {
	payload, ok := s.content[messageID]
	if !ok {
		return nil, errors.New("content not found")
	}
	return payload, nil
}

func newWebhookTestApp(t *testing.T, cards *stubCardService, messenger *stubMessenger) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})

	h, err := NewWebhookHandler(testChannelSecret, cards, messenger, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWebhookHandler: %v", err)
	}
	if err := RegisterWebhookRoutes(app, h); err != nil {
		t.Fatalf("RegisterWebhookRoutes: %v", err)
	}
	return app
}

func signBody(body string) string {
	mac := hmac.New(sha256.New, []byte(testChannelSecret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, app *fiber.App, body, signature string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func TestWebhookTextEvent(t *testing.T) {
	t.Parallel()

	cards := &stubCardService{intentReply: "Batch mode started."}
	messenger := &stubMessenger{}
	app := newWebhookTestApp(t, cards, messenger)

	body := `{"events":[{"type":"message","replyToken":"rt-1","source":{"type":"user","userId":"u1"},"message":{"id":"m1","type":"text","text":"batch"}}]}`
	resp := postWebhook(t, app, body, signBody(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if len(cards.intents) != 1 || cards.intents[0] != domain.IntentStartBatch {
		t.Errorf("intents = %v, want [START_BATCH]", cards.intents)
	}
	if len(messenger.replies) != 1 || messenger.replies[0] != "Batch mode started." {
		t.Errorf("replies = %v", messenger.replies)
	}
}

func TestWebhookImageEvent(t *testing.T) {
	t.Parallel()

	cards := &stubCardService{imageReply: "Saved 1 card(s)."}
	messenger := &stubMessenger{content: map[string][]byte{"m2": {0x01, 0x02}}}
	app := newWebhookTestApp(t, cards, messenger)

	body := `{"events":[{"type":"message","replyToken":"rt-2","source":{"type":"user","userId":"u1"},"message":{"id":"m2","type":"image"}}]}`
	resp := postWebhook(t, app, body, signBody(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if len(cards.images) != 1 || cards.images[0] != "m2" {
		t.Errorf("images = %v, want [m2]", cards.images)
	}
	if len(messenger.replies) != 1 {
		t.Errorf("replies = %v, want one", messenger.replies)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()

	cards := &stubCardService{}
	app := newWebhookTestApp(t, cards, &stubMessenger{})

	body := `{"events":[]}`
	resp := postWebhook(t, app, body, "bogus")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}

	resp = postWebhook(t, app, body, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("missing signature status = %d, want 403", resp.StatusCode)
	}
	if len(cards.intents)+len(cards.images) != 0 {
		t.Error("no event should be processed on signature failure")
	}
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	app := newWebhookTestApp(t, &stubCardService{}, &stubMessenger{})

	body := `{"events":` // truncated
	resp := postWebhook(t, app, body, signBody(body))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebhookIgnoresNonMessageEvents(t *testing.T) {
	t.Parallel()

	cards := &stubCardService{}
	messenger := &stubMessenger{}
	app := newWebhookTestApp(t, cards, messenger)

	body := `{"events":[{"type":"follow","replyToken":"rt-3","source":{"type":"user","userId":"u1"}}]}`
	resp := postWebhook(t, app, body, signBody(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(cards.intents)+len(cards.images) != 0 {
		t.Error("follow event should not reach the card service")
	}
	if len(messenger.replies) != 0 {
		t.Error("follow event should not be replied to")
	}
}

func TestWebhookServiceFailureStillAcks(t *testing.T) {
	t.Parallel()

	cards := &stubCardService{err: errors.New("pipeline down")}
	messenger := &stubMessenger{}
	app := newWebhookTestApp(t, cards, messenger)

	body := `{"events":[{"type":"message","replyToken":"rt-4","source":{"type":"user","userId":"u1"},"message":{"id":"m4","type":"text","text":"help"}}]}`
	resp := postWebhook(t, app, body, signBody(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite service failure", resp.StatusCode)
	}
	if len(messenger.replies) != 1 || !strings.Contains(messenger.replies[0], "Something went wrong") {
		t.Errorf("replies = %v, want fallback apology", messenger.replies)
	}
}

func TestWebhookReplyFailureStillAcks(t *testing.T) {
	t.Parallel()

	cards := &stubCardService{intentReply: "ok"}
	messenger := &stubMessenger{replyErr: errors.New("expired token")}
	app := newWebhookTestApp(t, cards, messenger)

	body := `{"events":[{"type":"message","replyToken":"rt-5","source":{"type":"user","userId":"u1"},"message":{"id":"m5","type":"text","text":"help"}}]}`
	resp := postWebhook(t, app, body, signBody(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite reply failure", resp.StatusCode)
	}
}
