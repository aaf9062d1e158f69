package service

import (
	"context"
	"fmt"
	"time"

	"github.com/readypush/newsletter-push/internal/queue"
	"github.com/readypush/newsletter-push/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultSchedulerScanInterval = 5 * time.Second
	defaultSchedulerScanLimit    = 100
)

// Scheduler periodically enqueues pushes whose scheduled time has arrived.
type Scheduler struct {
	pushes    repository.PushRepository
	publisher queue.Publisher
	logger    *zap.Logger
	interval  time.Duration
	limit     int
}

func NewScheduler(
	pushes repository.PushRepository,
	publisher queue.Publisher,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) (*Scheduler, error) {
	if pushes == nil {
		return nil, fmt.Errorf("push repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if interval <= 0 {
		interval = defaultSchedulerScanInterval
	}
	if limit <= 0 {
		limit = defaultSchedulerScanLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		pushes:    pushes,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		limit:     limit,
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.scanDue(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("scheduler initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.scanDue(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("scheduler scan failed", zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) scanDue(ctx context.Context) error {
	duePushes, err := s.pushes.GetDueForSchedule(ctx, s.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch due scheduled pushes: %w", err)
	}

	for i := range duePushes {
		push := duePushes[i]
		msg := queue.PushMessage{
			PushID:        push.ID,
			CorrelationID: push.CorrelationID,
		}

		if err := s.publisher.Publish(ctx, queue.WorkQueueName, msg); err != nil {
			s.logger.Error("failed to enqueue scheduled push",
				zap.String("pushId", push.ID),
				zap.Error(err),
			)
			continue
		}

		updated, err := s.pushes.MarkQueuedIfAccepted(ctx, push.ID)
		if err != nil {
			s.logger.Error("failed to mark scheduled push as queued",
				zap.String("pushId", push.ID),
				zap.Error(err),
			)
			continue
		}
		if !updated {
			s.logger.Info("scheduled push status changed before queue mark",
				zap.String("pushId", push.ID),
			)
		}
	}

	return nil
}
