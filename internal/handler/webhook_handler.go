package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/tzuhan-lo/namecard-bot/internal/domain"
	"github.com/tzuhan-lo/namecard-bot/internal/observability"
	"github.com/tzuhan-lo/namecard-bot/internal/provider"
	"go.uber.org/zap"
)

const signatureHeader = "X-Line-Signature"

// CardService is the slice of the card pipeline the webhook needs.
type CardService interface {
	HandleIntent(ctx context.Context, userID string, intent domain.Intent) (string, error)
	HandleImage(ctx context.Context, userID, messageID string, image []byte) (string, error)
}

type WebhookHandler struct {
	channelSecret []byte
	cards         CardService
	messenger     provider.Messenger
	metrics       *observability.Metrics
	logger        *zap.Logger
}

func NewWebhookHandler(
	channelSecret string,
	cards CardService,
	messenger provider.Messenger,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*WebhookHandler, error) {
	if strings.TrimSpace(channelSecret) == "" {
		return nil, fmt.Errorf("channel secret is required")
	}
	if cards == nil {
		return nil, fmt.Errorf("card service is required")
	}
	if messenger == nil {
		return nil, fmt.Errorf("messenger is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WebhookHandler{
		channelSecret: []byte(channelSecret),
		cards:         cards,
		messenger:     messenger,
		metrics:       metrics,
		logger:        logger,
	}, nil
}

func RegisterWebhookRoutes(router fiber.Router, h *WebhookHandler) error {
	if h == nil {
		return fmt.Errorf("webhook handler is required")
	}
	router.Post("/webhook", h.HandleWebhook)
	return nil
}

type webhookRequest struct {
	Events []webhookEvent `json:"events"`
}

type webhookEvent struct {
	Type       string         `json:"type"`
	ReplyToken string         `json:"replyToken"`
	Source     webhookSource  `json:"source"`
	Message    webhookMessage `json:"message"`
}

type webhookSource struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type webhookMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// HandleWebhook verifies the platform signature, then processes each event.
// It always answers 200 once the signature checks out; per-event failures
// are logged, never surfaced, so the platform does not redeliver.
func (h *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	body := c.Body()

	if !h.validSignature(body, c.Get(signatureHeader)) {
		h.logger.Warn("webhook signature mismatch",
			zap.String("remoteAddr", c.IP()),
		)
		return fiber.NewError(fiber.StatusForbidden, "invalid signature")
	}

	var req webhookRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed webhook payload")
	}

	for i := range req.Events {
		h.processEvent(c.UserContext(), &req.Events[i])
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *WebhookHandler) validSignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, h.channelSecret)
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (h *WebhookHandler) processEvent(ctx context.Context, event *webhookEvent) {
	if event.Type != "message" {
		h.metrics.IncWebhookEvent(event.Type)
		return
	}
	h.metrics.IncWebhookEvent(event.Message.Type)

	ctx = observability.WithCorrelationID(ctx, event.Message.ID)
	logger := observability.WithContextLogger(h.logger, ctx)

	userID := event.Source.UserID
	if userID == "" {
		logger.Warn("webhook event without user id", zap.String("type", event.Type))
		return
	}

	var (
		reply string
		err   error
	)
	switch event.Message.Type {
	case "text":
		reply, err = h.cards.HandleIntent(ctx, userID, domain.ParseIntentFromText(event.Message.Text))
	case "image":
		reply, err = h.handleImageEvent(ctx, userID, event.Message.ID)
	default:
		return
	}
	if err != nil {
		logger.Error("failed to process webhook event",
			zap.String("userId", userID),
			zap.String("messageType", event.Message.Type),
			zap.Error(err),
		)
		reply = "Something went wrong, please try again."
	}
	if reply == "" {
		return
	}

	if err := h.messenger.Reply(ctx, event.ReplyToken, reply); err != nil {
		logger.Error("failed to send reply",
			zap.String("userId", userID),
			zap.Error(err),
		)
	}
}

func (h *WebhookHandler) handleImageEvent(ctx context.Context, userID, messageID string) (string, error) {
	image, err := h.messenger.Content(ctx, messageID)
	if err != nil {
		return "", fmt.Errorf("failed to download image content: %w", err)
	}
	return h.cards.HandleImage(ctx, userID, messageID, image)
}
