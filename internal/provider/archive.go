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

var _ ImageArchive = (*ImageArchiveClient)(nil)

// ImageArchiveClient posts card photos to an external archive service and
// returns the durable URL it assigns.
type ImageArchiveClient struct {
	client *resty.Client
}

func NewImageArchiveClient(endpoint string) (*ImageArchiveClient, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("archive endpoint is required")
	}

	client := resty.New()
	client.SetBaseURL(endpoint)
	client.SetTimeout(defaultHTTPTimeout)
	client.SetRetryCount(0)

	return &ImageArchiveClient{client: client}, nil
}

func NewImageArchiveClientWithClient(client *resty.Client) (*ImageArchiveClient, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	return &ImageArchiveClient{client: client}, nil
}

type archiveUploadResponse struct {
	URL string `json:"url"`
}

func (c *ImageArchiveClient) Upload(ctx context.Context, userID string, image []byte) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("archive client is not initialized")
	}
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if len(image) == 0 {
		return "", fmt.Errorf("%w: image payload is empty", domain.ErrValidation)
	}

	var uploaded archiveUploadResponse
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetHeader("X-User-Id", userID).
		SetBody(image).
		SetResult(&uploaded).
		Post("/v1/images")
	if err != nil {
		return "", &ProviderError{
			Message:   "archive upload failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return "", &ProviderError{
			StatusCode: statusCode,
			Message:    providerErrorMessage("archive", statusCode, strings.TrimSpace(response.String())),
			Transient:  isTransientHTTPStatus(statusCode),
		}
	}

	if uploaded.URL == "" {
		return "", &ProviderError{
			StatusCode: statusCode,
			Message:    "archive returned no image url",
			Transient:  false,
		}
	}

	return uploaded.URL, nil
}
