package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tzuhan-lo/namecard-bot/internal/domain"
)

const (
	lineAPIBaseURL  = "https://api.line.me"
	lineDataBaseURL = "https://api-data.line.me"

	// LINE rejects reply payloads above this many characters per message.
	maxReplyTextLength = 5000
)

var _ Messenger = (*LineMessenger)(nil)

// LineMessenger talks to the LINE Messaging API: replies to webhook events
// and downloads message content (card photos) by message ID.
type LineMessenger struct {
	api  *resty.Client
	data *resty.Client
}

func NewLineMessenger(accessToken string) (*LineMessenger, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, fmt.Errorf("line channel access token is required")
	}

	api := resty.New()
	api.SetBaseURL(lineAPIBaseURL)
	api.SetAuthToken(accessToken)
	api.SetTimeout(defaultHTTPTimeout)
	api.SetRetryCount(0)

	data := resty.New()
	data.SetBaseURL(lineDataBaseURL)
	data.SetAuthToken(accessToken)
	data.SetTimeout(defaultHTTPTimeout)
	data.SetRetryCount(0)

	return &LineMessenger{api: api, data: data}, nil
}

// NewLineMessengerWithClients wires explicit clients, used by tests to point
// both endpoints at a local server.
func NewLineMessengerWithClients(api, data *resty.Client) (*LineMessenger, error) {
	if api == nil || data == nil {
		return nil, fmt.Errorf("resty clients are required")
	}
	return &LineMessenger{api: api, data: data}, nil
}

type lineReplyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []lineMessage `json:"messages"`
}

type lineMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (m *LineMessenger) Reply(ctx context.Context, replyToken, text string) error {
	if m == nil || m.api == nil {
		return fmt.Errorf("messenger is not initialized")
	}
	if strings.TrimSpace(replyToken) == "" {
		return fmt.Errorf("%w: reply token is required", domain.ErrValidation)
	}
	if text == "" {
		return fmt.Errorf("%w: reply text is required", domain.ErrValidation)
	}
	if len([]rune(text)) > maxReplyTextLength {
		text = string([]rune(text)[:maxReplyTextLength])
	}

	body := lineReplyRequest{
		ReplyToken: replyToken,
		Messages:   []lineMessage{{Type: "text", Text: text}},
	}

	response, err := m.api.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/v2/bot/message/reply")
	if err != nil {
		return &ProviderError{
			Message:   "line reply request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return &ProviderError{
			StatusCode: statusCode,
			Message:    providerErrorMessage("line", statusCode, strings.TrimSpace(response.String())),
			Transient:  isTransientHTTPStatus(statusCode),
		}
	}

	return nil
}

// Content downloads the binary payload of a received message. Image bytes
// are returned as-is for the extractor.
func (m *LineMessenger) Content(ctx context.Context, messageID string) ([]byte, error) {
	if m == nil || m.data == nil {
		return nil, fmt.Errorf("messenger is not initialized")
	}
	if strings.TrimSpace(messageID) == "" {
		return nil, fmt.Errorf("%w: message id is required", domain.ErrValidation)
	}

	response, err := m.data.R().
		SetContext(ctx).
		Get("/v2/bot/message/" + messageID + "/content")
	if err != nil {
		return nil, &ProviderError{
			Message:   "line content request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, &ProviderError{
			StatusCode: statusCode,
			Message:    providerErrorMessage("line", statusCode, ""),
			Transient:  isTransientHTTPStatus(statusCode),
		}
	}

	payload := response.Body()
	if len(payload) == 0 {
		return nil, &ProviderError{
			StatusCode: statusCode,
			Message:    "line returned empty content",
			Transient:  false,
		}
	}

	return payload, nil
}
