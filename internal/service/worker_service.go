package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/readypush/newsletter-push/internal/domain"
	"github.com/readypush/newsletter-push/internal/observability"
	"github.com/readypush/newsletter-push/internal/queue"
	"github.com/readypush/newsletter-push/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// WorkerService consumes the push queue and runs the provider workflow for
// each claimed push. Transient provider errors are retried inside the
// client; anything that still fails after that is terminal for the run and
// waits for an operator resume.
type WorkerService struct {
	pushes      repository.PushRepository
	consumer    queue.Consumer
	runner      *PushRunner
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
}

func NewWorkerService(
	pushes repository.PushRepository,
	consumer queue.Consumer,
	runner *PushRunner,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if pushes == nil {
		return nil, fmt.Errorf("push repository is required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		pushes:      pushes,
		consumer:    consumer,
		runner:      runner,
		logger:      logger,
		concurrency: concurrency,
	}, nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
	s.runner.SetMetrics(metrics)
}

// Start consumes the push queue until context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started", zap.Int("workerId", workerID))

			err := s.consumer.Consume(groupCtx, queue.WorkQueueName, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) processMessage(ctx context.Context, msg queue.PushMessage) error {
	if msg.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	}
	logger := observability.WithContextLogger(s.logger, ctx)

	push, err := s.pushes.LockForRun(ctx, msg.PushID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("push not found during lock, skipping",
				zap.String("pushId", msg.PushID),
			)
			return nil
		}
		return fmt.Errorf("failed to lock push for run: %w", err)
	}

	// Nil means terminal or already running; ack and skip.
	if push == nil {
		return nil
	}

	if s.metrics != nil {
		s.metrics.IncWorkerInFlight()
		defer s.metrics.DecWorkerInFlight()
	}

	result, runErr := s.runner.Run(ctx, push)
	if runErr != nil {
		return fmt.Errorf("push run aborted: %w", runErr)
	}

	if result.Success {
		if s.metrics != nil {
			mode := "sent"
			if !push.SendNow {
				mode = "draft"
			}
			s.metrics.IncPushCompleted(mode)
		}
		return nil
	}

	if s.metrics != nil {
		s.metrics.IncPushFailed(result.LastCompletedStep.String(), result.ErrorKind.String())
	}
	if result.OrphanedMessageID != "" {
		logger.Warn("push left an orphaned message at the provider",
			zap.String("pushId", push.ID),
			zap.String("messageId", result.OrphanedMessageID),
		)
	}

	// The failure is recorded on the push row; requeueing would only
	// repeat a run that already exhausted its transient retries.
	return nil
}
