package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tzuhan-lo/namecard-bot/internal/domain"
	"github.com/tzuhan-lo/namecard-bot/internal/observability"
	"github.com/tzuhan-lo/namecard-bot/internal/provider"
	"github.com/tzuhan-lo/namecard-bot/internal/queue"
	"github.com/tzuhan-lo/namecard-bot/internal/ratelimit"
	"github.com/tzuhan-lo/namecard-bot/internal/repository"
	"go.uber.org/zap"
)

const helpText = `Send me a photo of a business card and I will extract the contact details.

Commands:
- "batch" to start collecting several cards
- "end batch" to finish and see the summary
- "status" for batch progress
- "help" to see this message`

// CardService runs the image pipeline: quota gate, extraction, persistence,
// usage accounting, and archive job publishing. It also answers text
// commands.
type CardService struct {
	sessions   SessionStore
	batches    *BatchService
	extractor  provider.CardExtractor
	store      provider.CardStore
	publisher  queue.Publisher
	usage      repository.UsageRecordRepository
	metrics    *observability.Metrics
	logger     *zap.Logger
	dailyLimit int
	maxBytes   int64
	now        func() time.Time
}

type CardServiceOptions struct {
	DailyLimit    int
	MaxImageBytes int64
}

func NewCardService(
	sessions SessionStore,
	batches *BatchService,
	extractor provider.CardExtractor,
	store provider.CardStore,
	publisher queue.Publisher,
	usage repository.UsageRecordRepository,
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts CardServiceOptions,
) (*CardService, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if batches == nil {
		return nil, fmt.Errorf("batch service is required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("card extractor is required")
	}
	if store == nil {
		return nil, fmt.Errorf("card store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DailyLimit <= 0 {
		opts.DailyLimit = ratelimit.DefaultDailyLimit
	}

	return &CardService{
		sessions:   sessions,
		batches:    batches,
		extractor:  extractor,
		store:      store,
		publisher:  publisher,
		usage:      usage,
		metrics:    metrics,
		logger:     logger,
		dailyLimit: opts.DailyLimit,
		maxBytes:   opts.MaxImageBytes,
		now:        time.Now,
	}, nil
}

// HandleIntent answers a text command with the reply to send back.
func (s *CardService) HandleIntent(ctx context.Context, userID string, intent domain.Intent) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	switch intent {
	case domain.IntentHelp:
		return helpText, nil

	case domain.IntentStartBatch:
		if err := s.batches.Start(ctx, userID); err != nil {
			return "", err
		}
		return "Batch mode started. Send card photos one by one, then say \"end batch\" when you are done.", nil

	case domain.IntentEndBatch:
		result, err := s.batches.End(ctx, userID)
		if err != nil {
			return "", err
		}
		if result == nil {
			return "No batch is in progress. Say \"batch\" to start one.", nil
		}
		return batchSummaryText(result), nil

	case domain.IntentQueryStatus:
		text, err := s.batches.StatusText(ctx, userID)
		if err != nil {
			return "", err
		}
		if text == "" {
			return s.usageStatusText(ctx, userID)
		}
		return text, nil

	default:
		return "I did not understand that. Say \"help\" to see what I can do.", nil
	}
}

// HandleImage runs the full pipeline for one received photo and returns the
// reply text. Daily usage is incremented once per image that yields at least
// one card, regardless of how many cards it contains.
func (s *CardService) HandleImage(ctx context.Context, userID, messageID string, image []byte) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	status, err := s.sessions.GetOrCreate(ctx, userID)
	if err != nil {
		return "", err
	}

	if !ratelimit.Allow(status, s.dailyLimit) {
		s.metrics.IncQuotaRejected()
		s.logger.Info("image rejected by daily quota",
			zap.String("userId", userID),
			zap.Int("dailyUsage", status.DailyUsage),
		)
		return fmt.Sprintf("Daily limit reached (%d cards per day). Please try again tomorrow.", s.dailyLimit), nil
	}

	if s.maxBytes > 0 && int64(len(image)) > s.maxBytes {
		return fmt.Sprintf("That image is too large (max %d MB). Please send a smaller photo.", s.maxBytes/(1024*1024)), nil
	}

	cards, err := s.extractor.Extract(ctx, image, userID)
	if err != nil {
		s.logger.Error("card extraction failed",
			zap.String("userId", userID),
			zap.String("messageId", messageID),
			zap.Error(err),
		)
		s.noteBatchError(ctx, userID, "extraction failed: "+err.Error())
		return "I could not read that image. Please try a sharper, well-lit photo.", nil
	}

	if len(cards) == 0 {
		s.noteBatchError(ctx, userID, "no card detected in image")
		return "I could not find a business card in that photo. Please try again with the card filling the frame.", nil
	}
	s.metrics.AddCardsExtracted(len(cards))

	saved, failed := s.persistCards(ctx, userID, cards)

	if updated, err := s.sessions.IncrementUsage(ctx, userID); err != nil {
		s.logger.Warn("failed to increment daily usage",
			zap.String("userId", userID),
			zap.Error(err),
		)
	} else {
		status = updated
	}

	s.recordUsage(ctx, userID, len(cards), saved, failed)
	s.publishArchiveJob(ctx, userID, messageID)

	return s.replyForImage(ctx, userID, status, len(cards), saved, failed)
}

// persistCards saves each card, marks the Processed flag, and feeds the open
// batch when one exists. Returns saved and failed counts.
func (s *CardService) persistCards(ctx context.Context, userID string, cards []domain.BusinessCard) (int, int) {
	var saved, failed int
	for i := range cards {
		card := &cards[i]

		reference, err := s.store.Save(ctx, card)
		if err != nil {
			failed++
			card.Processed = false
			s.metrics.IncCardSaveFailed()
			s.logger.Error("failed to save card",
				zap.String("userId", userID),
				zap.String("name", card.Name),
				zap.Error(err),
			)
			s.noteBatchError(ctx, userID, "save failed: "+err.Error())
		} else {
			saved++
			card.Processed = true
			s.metrics.IncCardSaved()
			s.logger.Info("card saved",
				zap.String("userId", userID),
				zap.String("reference", reference),
			)
		}

		if _, err := s.batches.AddCard(ctx, userID, *card); err != nil {
			s.logger.Warn("failed to record card in batch",
				zap.String("userId", userID),
				zap.Error(err),
			)
		}
	}
	return saved, failed
}

func (s *CardService) recordUsage(ctx context.Context, userID string, extracted, saved, failed int) {
	if s.usage == nil {
		return
	}

	record := &domain.UsageRecord{
		UserID:         userID,
		CardsExtracted: extracted,
		CardsSaved:     saved,
		CardsFailed:    failed,
		CreatedAt:      s.now(),
	}
	if err := s.usage.Create(ctx, record); err != nil {
		s.logger.Warn("failed to persist usage record",
			zap.String("userId", userID),
			zap.Error(err),
		)
	}
}

func (s *CardService) publishArchiveJob(ctx context.Context, userID, messageID string) {
	if s.publisher == nil || strings.TrimSpace(messageID) == "" {
		return
	}

	msg := queue.ArchiveMessage{
		JobID:      uuid.NewString(),
		UserID:     userID,
		MessageID:  messageID,
		CapturedAt: s.now(),
	}
	if err := s.publisher.Publish(ctx, queue.ArchiveQueueName, msg); err != nil {
		s.metrics.IncArchiveJob("publish_failed")
		s.logger.Warn("failed to enqueue archive job",
			zap.String("userId", userID),
			zap.String("messageId", messageID),
			zap.Error(err),
		)
		return
	}
	s.metrics.IncArchiveJob("published")
}

func (s *CardService) replyForImage(ctx context.Context, userID string, status *domain.ProcessingStatus, extracted, saved, failed int) (string, error) {
	batchText, err := s.batches.StatusText(ctx, userID)
	if err == nil && batchText != "" {
		return fmt.Sprintf("Got it, %d card(s) processed.\n%s", extracted, batchText), nil
	}

	var b strings.Builder
	if saved > 0 {
		fmt.Fprintf(&b, "Saved %d card(s) to your contacts.", saved)
	}
	if failed > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d card(s) could not be saved, please try again.", failed)
	}

	remaining := s.dailyLimit - status.DailyUsage
	if remaining < 0 {
		remaining = 0
	}
	fmt.Fprintf(&b, "\nRemaining today: %d of %d.", remaining, s.dailyLimit)
	return b.String(), nil
}

func (s *CardService) usageStatusText(ctx context.Context, userID string) (string, error) {
	status, err := s.sessions.GetOrCreate(ctx, userID)
	if err != nil {
		return "", err
	}

	remaining := s.dailyLimit - status.DailyUsage
	if remaining < 0 {
		remaining = 0
	}
	return fmt.Sprintf("No batch in progress. Used %d of %d cards today (%d remaining).",
		status.DailyUsage, s.dailyLimit, remaining), nil
}

func (s *CardService) noteBatchError(ctx context.Context, userID, message string) {
	if _, err := s.batches.RecordError(ctx, userID, message); err != nil {
		s.logger.Warn("failed to record batch error",
			zap.String("userId", userID),
			zap.Error(err),
		)
	}
}

func batchSummaryText(result *domain.BatchResult) string {
	var b strings.Builder
	b.WriteString("Batch finished.\n")
	fmt.Fprintf(&b, "Cards: %d total, %d saved, %d failed.", result.TotalCards, result.SuccessfulCards, result.FailedCards)
	if result.TotalCards > 0 {
		fmt.Fprintf(&b, "\nSuccess rate: %.0f%%.", result.SuccessRate()*100)
	}
	if len(result.Errors) > 0 {
		fmt.Fprintf(&b, "\nIssues: %s", strings.Join(result.Errors, "; "))
	}
	return b.String()
}
