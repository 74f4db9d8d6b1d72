package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/generative-ai-go/genai"
	"github.com/tzuhan-lo/namecard-bot/internal/domain"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-1.5-flash"

// cardExtractionPrompt instructs the model to detect every card in the
// image and respond with JSON only.
const cardExtractionPrompt = `You are a business card OCR system. Analyze the image and extract the information of every business card in it.

Requirements:
1. Detect all business cards in the image (there may be more than one).
2. Extract the complete information of each card.
3. Rate the recognition confidence of each card between 0 and 1.
4. Rate the overall image quality between 0 and 1.

Respond with JSON in exactly this structure:
{
  "cards": [
    {
      "name": "full name",
      "company": "company name",
      "title": "job title",
      "department": "department",
      "phone": "phone number",
      "mobile": "mobile number",
      "email": "email address",
      "address": "address",
      "website": "website",
      "fax": "fax number",
      "line_id": "LINE ID",
      "confidence_score": 0.95,
      "quality_score": 0.9
    }
  ],
  "total_cards_detected": 1,
  "overall_quality": 0.9,
  "processing_notes": "short note about image quality"
}

Rules:
- Use null for any field that is not present on the card.
- Keep phone numbers in their original formatting.
- Addresses must be complete, including city and district.
- If the image is blurry or contains no business card, explain in processing_notes and return an empty cards array.
- Return JSON only, no other text.`

var _ CardExtractor = (*GeminiExtractor)(nil)

// GeminiExtractor extracts card fields with the Gemini vision API.
type GeminiExtractor struct {
	client     *genai.Client
	model      *genai.GenerativeModel
	logger     *zap.Logger
	maxRetries uint64
	now        func() time.Time
}

// NewGeminiExtractor builds the extractor. When the primary API key is
// rejected at client creation and a fallback key is configured, the fallback
// is used instead.
func NewGeminiExtractor(ctx context.Context, apiKey, fallbackKey, modelName string, logger *zap.Logger) (*GeminiExtractor, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultGeminiModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		if strings.TrimSpace(fallbackKey) == "" {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		logger.Warn("primary gemini key rejected, trying fallback key", zap.Error(err))
		client, err = genai.NewClient(ctx, option.WithAPIKey(fallbackKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client with fallback key: %w", err)
		}
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.Temperature = float32Ptr(0.2)

	return &GeminiExtractor{
		client:     client,
		model:      model,
		logger:     logger,
		maxRetries: 3,
		now:        time.Now,
	}, nil
}

func (e *GeminiExtractor) Close() error {
	if e == nil || e.client == nil {
		return nil
	}
	return e.client.Close()
}

type geminiCard struct {
	Name            string  `json:"name"`
	Company         string  `json:"company"`
	Title           string  `json:"title"`
	Department      string  `json:"department"`
	Phone           string  `json:"phone"`
	Mobile          string  `json:"mobile"`
	Email           string  `json:"email"`
	Address         string  `json:"address"`
	Website         string  `json:"website"`
	Fax             string  `json:"fax"`
	LineID          string  `json:"line_id"`
	ConfidenceScore float64 `json:"confidence_score"`
	QualityScore    float64 `json:"quality_score"`
}

type geminiResponse struct {
	Cards              []geminiCard `json:"cards"`
	TotalCardsDetected int          `json:"total_cards_detected"`
	OverallQuality     float64      `json:"overall_quality"`
	ProcessingNotes    string       `json:"processing_notes"`
}

// Extract sends the image to Gemini and converts the model's JSON answer to
// normalized domain cards. Transient API failures are retried with
// exponential backoff.
func (e *GeminiExtractor) Extract(ctx context.Context, image []byte, userID string) ([]domain.BusinessCard, error) {
	if e == nil || e.model == nil {
		return nil, fmt.Errorf("extractor is not initialized")
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: image payload is empty", domain.ErrValidation)
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	parts := []genai.Part{
		genai.Text(cardExtractionPrompt),
		genai.ImageData("jpeg", image),
	}

	var parsed geminiResponse
	operation := func() error {
		resp, err := e.model.GenerateContent(ctx, parts...)
		if err != nil {
			return fmt.Errorf("gemini api error: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			return fmt.Errorf("empty response from gemini")
		}

		text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
		if !ok {
			return backoff.Permanent(fmt.Errorf("unexpected response part type %T", resp.Candidates[0].Content.Parts[0]))
		}

		parsed = geminiResponse{}
		if err := sonic.Unmarshal([]byte(stripJSONFences(string(text))), &parsed); err != nil {
			return fmt.Errorf("failed to decode gemini response: %w", err)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), e.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	now := e.now()
	cards := make([]domain.BusinessCard, 0, len(parsed.Cards))
	for _, raw := range parsed.Cards {
		card := domain.BusinessCard{
			Name:            raw.Name,
			Company:         raw.Company,
			Title:           raw.Title,
			Department:      raw.Department,
			Phone:           raw.Phone,
			Mobile:          raw.Mobile,
			Email:           raw.Email,
			Address:         raw.Address,
			Website:         raw.Website,
			Fax:             raw.Fax,
			LineID:          raw.LineID,
			ConfidenceScore: clampScore(raw.ConfidenceScore),
			QualityScore:    clampScore(raw.QualityScore),
			ExtractedAt:     now,
			UserID:          userID,
		}
		card.Normalize()
		cards = append(cards, card)
	}

	e.logger.Info("card extraction completed",
		zap.String("userId", userID),
		zap.Int("cards", len(cards)),
		zap.String("notes", parsed.ProcessingNotes),
	)
	return cards, nil
}

// stripJSONFences removes markdown code fences some model replies wrap the
// JSON in despite the response MIME type.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func float32Ptr(v float32) *float32 { return &v }
