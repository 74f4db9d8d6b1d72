package service

import (
	"context"
	"fmt"

	"github.com/tzuhan-lo/namecard-bot/internal/observability"
	"github.com/tzuhan-lo/namecard-bot/internal/provider"
	"github.com/tzuhan-lo/namecard-bot/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// ArchiveWorker drains the archive queue: it re-downloads each image by
// message ID and uploads it to the archive service. Transient failures are
// returned so the consumer requeues the job; permanent ones are logged and
// acked away.
type ArchiveWorker struct {
	consumer    queue.Consumer
	messenger   provider.Messenger
	archive     provider.ImageArchive
	metrics     *observability.Metrics
	logger      *zap.Logger
	concurrency int
}

func NewArchiveWorker(
	consumer queue.Consumer,
	messenger provider.Messenger,
	archive provider.ImageArchive,
	concurrency int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*ArchiveWorker, error) {
	if consumer == nil {
		return nil, fmt.Errorf("queue consumer is required")
	}
	if messenger == nil {
		return nil, fmt.Errorf("messenger is required")
	}
	if archive == nil {
		return nil, fmt.Errorf("image archive is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ArchiveWorker{
		consumer:    consumer,
		messenger:   messenger,
		archive:     archive,
		metrics:     metrics,
		logger:      logger,
		concurrency: concurrency,
	}, nil
}

// Start consumes the archive queue until context cancellation.
func (w *ArchiveWorker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			w.logger.Info("archive worker started", zap.Int("workerId", workerID))

			err := w.consumer.Consume(groupCtx, queue.ArchiveQueueName, w.processMessage)
			if err != nil {
				w.logger.Error("archive worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			w.logger.Info("archive worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (w *ArchiveWorker) processMessage(ctx context.Context, msg queue.ArchiveMessage) error {
	if err := msg.Validate(); err != nil {
		w.metrics.IncArchiveJob("invalid")
		w.logger.Warn("dropping invalid archive job",
			zap.String("jobId", msg.JobID),
			zap.Error(err),
		)
		return nil
	}

	image, err := w.messenger.Content(ctx, msg.MessageID)
	if err != nil {
		if provider.IsTransient(err) {
			return fmt.Errorf("failed to download message content: %w", err)
		}
		// Content expires on the messaging platform after a retention
		// window; a permanent miss is not worth retrying.
		w.metrics.IncArchiveJob("content_gone")
		w.logger.Warn("message content no longer available",
			zap.String("jobId", msg.JobID),
			zap.String("messageId", msg.MessageID),
			zap.Error(err),
		)
		return nil
	}

	url, err := w.archive.Upload(ctx, msg.UserID, image)
	if err != nil {
		if provider.IsTransient(err) {
			return fmt.Errorf("failed to upload image: %w", err)
		}
		w.metrics.IncArchiveJob("rejected")
		w.logger.Error("archive rejected image",
			zap.String("jobId", msg.JobID),
			zap.String("userId", msg.UserID),
			zap.Error(err),
		)
		return nil
	}

	w.metrics.IncArchiveJob("archived")
	w.logger.Info("image archived",
		zap.String("jobId", msg.JobID),
		zap.String("userId", msg.UserID),
		zap.String("url", url),
	)
	return nil
}
