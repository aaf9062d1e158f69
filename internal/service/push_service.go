package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/readypush/newsletter-push/internal/domain"
	"github.com/readypush/newsletter-push/internal/queue"
	"github.com/readypush/newsletter-push/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SenderDefaults fill in sender fields omitted from a push request.
type SenderDefaults struct {
	Name    string
	Email   string
	ReplyTo string
}

type PushService struct {
	pushes    repository.PushRepository
	attempts  repository.AttemptRepository
	publisher queue.Publisher
	defaults  SenderDefaults
	logger    *zap.Logger
}

func NewPushService(
	pushes repository.PushRepository,
	attempts repository.AttemptRepository,
	publisher queue.Publisher,
	defaults SenderDefaults,
	logger *zap.Logger,
) (*PushService, error) {
	if pushes == nil {
		return nil, fmt.Errorf("push repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PushService{
		pushes:    pushes,
		attempts:  attempts,
		publisher: publisher,
		defaults:  defaults,
		logger:    logger,
	}, nil
}

// Create validates and persists a push, then enqueues it unless it is
// scheduled for later. The push never touches the provider here; the worker
// owns the whole remote workflow.
func (s *PushService) Create(ctx context.Context, push *domain.Push) (*domain.Push, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.prepareForCreate(push); err != nil {
		return nil, err
	}

	if err := s.pushes.Create(ctx, push); err != nil {
		existing, resolved, resolveErr := s.resolveIdempotencyConflict(ctx, err, push.IdempotencyKey)
		if resolveErr != nil {
			return nil, resolveErr
		}
		if resolved {
			return existing, nil
		}
		return nil, err
	}

	now := time.Now().UTC()
	if !shouldEnqueueImmediately(push.ScheduledAt, now) {
		return push, nil
	}

	if err := s.enqueue(ctx, push); err != nil {
		return nil, err
	}
	return push, nil
}

func (s *PushService) GetByID(ctx context.Context, id string) (*domain.Push, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: push id is required", domain.ErrValidation)
	}
	return s.pushes.GetByID(ctx, strings.TrimSpace(id))
}

func (s *PushService) GetAttempts(ctx context.Context, pushID string) ([]domain.PushAttempt, error) {
	if strings.TrimSpace(pushID) == "" {
		return nil, fmt.Errorf("%w: push id is required", domain.ErrValidation)
	}
	if s.attempts == nil {
		return nil, nil
	}
	return s.attempts.GetByPushID(ctx, strings.TrimSpace(pushID))
}

func (s *PushService) List(
	ctx context.Context,
	params repository.ListParams,
) ([]domain.Push, int64, error) {
	return s.pushes.List(ctx, params)
}

// Cancel stops a push that has not started running yet.
func (s *PushService) Cancel(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: push id is required", domain.ErrValidation)
	}
	return s.pushes.Cancel(ctx, strings.TrimSpace(id))
}

// Resume requeues a failed push. The worker continues from the last
// completed step using the handles persisted during the failed run.
func (s *PushService) Resume(ctx context.Context, id string) (*domain.Push, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: push id is required", domain.ErrValidation)
	}

	push, err := s.pushes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if push.Status != domain.StatusFailed {
		return nil, fmt.Errorf("%w: only failed pushes can be resumed, current status is %s",
			domain.ErrConflict, push.Status)
	}

	updated, err := s.pushes.MarkQueuedIfFailed(ctx, id)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, fmt.Errorf("%w: push status changed before resume", domain.ErrConflict)
	}
	push.Status = domain.StatusQueued
	push.ErrorKind = nil
	push.ErrorMessage = nil

	msg := queue.PushMessage{
		PushID:        push.ID,
		CorrelationID: push.CorrelationID,
	}
	if err := s.publisher.Publish(ctx, queue.WorkQueueName, msg); err != nil {
		s.logger.Error("failed to publish resumed push",
			zap.String("pushId", push.ID),
			zap.Error(err),
		)
		if markErr := s.pushes.MarkFailed(ctx, push.ID, push.Step, "TRANSPORT", "failed to enqueue resume"); markErr != nil {
			s.logger.Error("failed to restore failed status after publish error",
				zap.String("pushId", push.ID),
				zap.Error(markErr),
			)
		}
		return nil, fmt.Errorf("failed to publish resumed push: %w", err)
	}

	s.logger.Info("push resumed",
		zap.String("pushId", push.ID),
		zap.String("step", push.Step.String()),
	)
	return push, nil
}

func (s *PushService) enqueue(ctx context.Context, push *domain.Push) error {
	msg := queue.PushMessage{
		PushID:        push.ID,
		CorrelationID: push.CorrelationID,
	}
	if err := s.publisher.Publish(ctx, queue.WorkQueueName, msg); err != nil {
		s.logger.Error("failed to publish push",
			zap.String("pushId", push.ID),
			zap.Error(err),
		)
		if updateErr := s.pushes.UpdateStatus(ctx, push.ID, domain.StatusFailed); updateErr != nil {
			s.logger.Error("failed to mark push as failed after publish error",
				zap.String("pushId", push.ID),
				zap.Error(updateErr),
			)
			return fmt.Errorf("failed to publish push: %w (failed to mark as failed: %v)", err, updateErr)
		}
		push.Status = domain.StatusFailed
		return fmt.Errorf("failed to publish push: %w", err)
	}

	updated, err := s.pushes.MarkQueuedIfAccepted(ctx, push.ID)
	if err != nil {
		return fmt.Errorf("failed to update push status to queued: %w", err)
	}
	if updated {
		push.Status = domain.StatusQueued
	}
	return nil
}

func (s *PushService) prepareForCreate(push *domain.Push) error {
	if push == nil {
		return fmt.Errorf("%w: push is required", domain.ErrValidation)
	}

	push.ListID = strings.TrimSpace(push.ListID)
	push.CampaignName = strings.TrimSpace(push.CampaignName)
	push.Subject = strings.TrimSpace(push.Subject)
	push.SenderName = strings.TrimSpace(push.SenderName)
	push.SenderEmail = strings.TrimSpace(push.SenderEmail)
	push.ReplyTo = normalizeOptionalString(push.ReplyTo)
	push.TextContent = normalizeOptionalString(push.TextContent)
	push.IdempotencyKey = normalizeOptionalString(push.IdempotencyKey)

	if push.SenderName == "" {
		push.SenderName = s.defaults.Name
	}
	if push.SenderEmail == "" {
		push.SenderEmail = s.defaults.Email
	}
	if push.ReplyTo == nil && s.defaults.ReplyTo != "" {
		replyTo := s.defaults.ReplyTo
		push.ReplyTo = &replyTo
	}

	push.CorrelationID = strings.TrimSpace(push.CorrelationID)
	if push.CorrelationID == "" {
		push.CorrelationID = uuid.NewString()
	}
	push.ID = strings.TrimSpace(push.ID)
	if push.ID == "" {
		push.ID = uuid.NewString()
	}

	push.Status = domain.StatusAccepted
	push.Step = domain.StepInit
	push.MessageID = nil
	push.CampaignID = nil
	push.LinkID = nil
	push.ErrorKind = nil
	push.ErrorMessage = nil

	return push.Validate()
}

func (s *PushService) resolveIdempotencyConflict(
	ctx context.Context,
	createErr error,
	idempotencyKey *string,
) (*domain.Push, bool, error) {
	if idempotencyKey == nil || strings.TrimSpace(*idempotencyKey) == "" {
		return nil, false, nil
	}
	if !isUniqueViolationError(createErr) {
		return nil, false, nil
	}

	existing, err := s.pushes.GetByIdempotencyKey(ctx, strings.TrimSpace(*idempotencyKey))
	if err != nil {
		return nil, false, fmt.Errorf("failed to load existing push after idempotency conflict: %w", err)
	}
	s.logger.Info("idempotency conflict resolved",
		zap.String("existingId", existing.ID),
		zap.String("idempotencyKey", *idempotencyKey),
	)
	return existing, true, nil
}

func isUniqueViolationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func shouldEnqueueImmediately(scheduledAt *time.Time, now time.Time) bool {
	if scheduledAt == nil {
		return true
	}
	return !scheduledAt.After(now)
}
