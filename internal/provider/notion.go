package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tzuhan-lo/namecard-bot/internal/domain"
)

const (
	notionBaseURL      = "https://api.notion.com"
	notionVersion      = "2022-06-28"
	defaultHTTPTimeout = 10 * time.Second
)

var _ CardStore = (*NotionStore)(nil)

// NotionStore persists extracted cards as pages of a Notion database.
type NotionStore struct {
	client     *resty.Client
	databaseID string
}

func NewNotionStore(apiKey, databaseID string) (*NotionStore, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("notion api key is required")
	}

	client := resty.New()
	client.SetBaseURL(notionBaseURL)
	client.SetAuthToken(apiKey)
	client.SetHeader("Notion-Version", notionVersion)
	client.SetTimeout(defaultHTTPTimeout)
	client.SetRetryCount(0)

	return NewNotionStoreWithClient(databaseID, client)
}

func NewNotionStoreWithClient(databaseID string, client *resty.Client) (*NotionStore, error) {
	if strings.TrimSpace(databaseID) == "" {
		return nil, fmt.Errorf("notion database id is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultHTTPTimeout)
	}
	client.SetRetryCount(0)

	return &NotionStore{
		client:     client,
		databaseID: databaseID,
	}, nil
}

type notionCreatePageResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Save creates one database page per card and returns the page URL as the
// opaque stored reference.
func (s *NotionStore) Save(ctx context.Context, card *domain.BusinessCard) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("card store is not initialized")
	}
	if card == nil {
		return "", fmt.Errorf("%w: card is required", domain.ErrValidation)
	}
	if err := card.Validate(); err != nil {
		return "", err
	}

	body := map[string]any{
		"parent":     map[string]any{"database_id": s.databaseID},
		"properties": s.cardProperties(card),
	}

	var created notionCreatePageResponse
	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&created).
		Post("/v1/pages")
	if err != nil {
		return "", &ProviderError{
			Message:   "notion request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return "", &ProviderError{
			StatusCode: statusCode,
			Message:    providerErrorMessage("notion", statusCode, strings.TrimSpace(response.String())),
			Transient:  isTransientHTTPStatus(statusCode),
		}
	}

	reference := created.URL
	if reference == "" {
		reference = created.ID
	}
	if reference == "" {
		return "", &ProviderError{
			StatusCode: statusCode,
			Message:    "notion returned no page reference",
			Transient:  false,
		}
	}

	return reference, nil
}

// cardProperties maps card fields to the database's property payloads.
// Only populated fields are sent; the Name title property always is.
func (s *NotionStore) cardProperties(card *domain.BusinessCard) map[string]any {
	name := card.Name
	if name == "" {
		name = "Unknown"
	}

	properties := map[string]any{
		"Name": map[string]any{
			"title": []any{textContent(name)},
		},
	}

	if card.Email != "" {
		properties["Email"] = map[string]any{"email": card.Email}
	}
	if card.Company != "" {
		properties["Company"] = richText(card.Company)
	}
	if card.Title != "" {
		properties["Title"] = map[string]any{"select": map[string]any{"name": card.Title}}
	}
	if card.Department != "" {
		properties["Department"] = richText(card.Department)
	}
	if card.Phone != "" {
		properties["Phone"] = map[string]any{"phone_number": card.Phone}
	}
	if card.Mobile != "" {
		properties["Mobile"] = map[string]any{"phone_number": card.Mobile}
	}
	if card.Address != "" {
		properties["Address"] = richText(card.Address)
	}
	if card.Website != "" {
		properties["Website"] = map[string]any{"url": card.Website}
	}

	notes := make([]string, 0, 3)
	if card.Fax != "" {
		notes = append(notes, "Fax: "+card.Fax)
	}
	if card.LineID != "" {
		notes = append(notes, "LINE: "+card.LineID)
	}
	notes = append(notes, fmt.Sprintf("Confidence: %.2f", card.ConfidenceScore))
	properties["Notes"] = richText(strings.Join(notes, "\n"))

	return properties
}

func richText(content string) map[string]any {
	return map[string]any{"rich_text": []any{textContent(content)}}
}

func textContent(content string) map[string]any {
	return map[string]any{"text": map[string]any{"content": content}}
}
