package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/readypush/newsletter-push/internal/domain"
	"github.com/readypush/newsletter-push/internal/observability"
	"github.com/readypush/newsletter-push/internal/provider"
	"github.com/readypush/newsletter-push/internal/repository"
	"go.uber.org/zap"
)

// PushResult summarizes one workflow run. It is the only object returned
// upward; no provider error escapes the runner unwrapped.
type PushResult struct {
	Success           bool
	CampaignID        string
	MessageID         string
	ErrorKind         provider.ErrorKind
	Message           string
	LastCompletedStep domain.Step
	// OrphanedMessageID is set when a message exists remotely but the
	// campaign it was meant for was never created. There is no delete
	// endpoint, so the id is reported for operator cleanup.
	OrphanedMessageID string
}

// PushRunner drives a single push through the ordered provider workflow:
// create message, create campaign, link, set status to send. Ordering is
// enforced here because the provider itself does not forbid send-before-link.
type PushRunner struct {
	client   provider.Client
	pushes   repository.PushRepository
	attempts repository.AttemptRepository
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

func NewPushRunner(
	client provider.Client,
	pushes repository.PushRepository,
	attempts repository.AttemptRepository,
	logger *zap.Logger,
) (*PushRunner, error) {
	if client == nil {
		return nil, fmt.Errorf("provider client is required")
	}
	if pushes == nil {
		return nil, fmt.Errorf("push repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PushRunner{
		client:   client,
		pushes:   pushes,
		attempts: attempts,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (r *PushRunner) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

// Run executes the workflow from the push's recorded step onward. A fresh
// push starts at INIT; a resumed push continues from its last completed
// step with the handles persisted during the failed run. The returned error
// is infrastructure-only (persistence); workflow failures are expressed in
// the PushResult.
func (r *PushRunner) Run(ctx context.Context, push *domain.Push) (PushResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if push == nil {
		return PushResult{
			ErrorKind:         provider.KindValidation,
			Message:           "push is required",
			LastCompletedStep: domain.StepInit,
		}, nil
	}

	logger := r.logger.With(
		zap.String("pushId", push.ID),
		zap.String("correlationId", push.CorrelationID),
	)

	if err := push.Validate(); err != nil {
		// Nothing was created remotely; the whole flow is safe to retry
		// after the caller fixes the request.
		return r.fail(ctx, push, domain.StepInit, provider.KindValidation, err, logger), nil
	}

	startStep := push.Step
	if !startStep.IsValid() {
		startStep = domain.StepInit
	}

	messageID := stringValue(push.MessageID)
	campaignID := stringValue(push.CampaignID)

	if startStep.Order() < domain.StepMessageCreated.Order() {
		id, err := r.runStep(ctx, push, domain.StepMessageCreated, func() (string, error) {
			return r.client.CreateMessage(ctx, provider.NewMessage{
				FromName:  push.SenderName,
				FromEmail: push.SenderEmail,
				ReplyTo:   stringValue(push.ReplyTo),
				Subject:   push.Subject,
				HTML:      push.HTMLContent,
				Text:      stringValue(push.TextContent),
			})
		})
		if err != nil {
			return r.fail(ctx, push, domain.StepInit, provider.KindOf(err), err, logger), nil
		}
		messageID = id
		if persistErr := r.pushes.SetStepHandle(ctx, push.ID, domain.StepMessageCreated, id); persistErr != nil {
			return PushResult{}, fmt.Errorf("failed to persist message handle: %w", persistErr)
		}
		push.Step = domain.StepMessageCreated
		push.MessageID = &messageID
		logger.Info("message created", zap.String("messageId", messageID))
	}

	if push.Step.Order() < domain.StepCampaignCreated.Order() {
		id, err := r.runStep(ctx, push, domain.StepCampaignCreated, func() (string, error) {
			return r.client.CreateCampaign(ctx, provider.NewCampaign{
				Name:       push.CampaignName,
				ListID:     push.ListID,
				TrackLinks: "all",
				TrackOpens: true,
			})
		})
		if err != nil {
			// The message now exists orphaned remotely; report its id.
			result := r.fail(ctx, push, domain.StepMessageCreated, provider.KindOf(err), err, logger)
			result.OrphanedMessageID = messageID
			return result, nil
		}
		campaignID = id
		if persistErr := r.pushes.SetStepHandle(ctx, push.ID, domain.StepCampaignCreated, id); persistErr != nil {
			return PushResult{}, fmt.Errorf("failed to persist campaign handle: %w", persistErr)
		}
		push.Step = domain.StepCampaignCreated
		push.CampaignID = &campaignID
		logger.Info("campaign created", zap.String("campaignId", campaignID))
	}

	if push.Step.Order() < domain.StepLinked.Order() {
		linkID, linked, err := r.linkStep(ctx, push, campaignID, messageID, startStep, logger)
		if err != nil {
			return r.fail(ctx, push, domain.StepCampaignCreated, provider.KindOf(err), err, logger), nil
		}
		if linked {
			if persistErr := r.pushes.SetStepHandle(ctx, push.ID, domain.StepLinked, linkID); persistErr != nil {
				return PushResult{}, fmt.Errorf("failed to persist link handle: %w", persistErr)
			}
		}
		push.Step = domain.StepLinked
		logger.Info("message linked to campaign",
			zap.String("campaignId", campaignID),
			zap.String("messageId", messageID),
		)
	}

	if !push.SendNow {
		if persistErr := r.pushes.MarkCompleted(ctx, push.ID, domain.StatusDrafted, domain.StepLinked); persistErr != nil {
			return PushResult{}, fmt.Errorf("failed to mark push drafted: %w", persistErr)
		}
		logger.Info("push completed as draft", zap.String("campaignId", campaignID))
		return PushResult{
			Success:           true,
			CampaignID:        campaignID,
			MessageID:         messageID,
			LastCompletedStep: domain.StepLinked,
		}, nil
	}

	if push.Step.Order() < domain.StepSent.Order() {
		_, err := r.runStep(ctx, push, domain.StepSent, func() (string, error) {
			status, sendErr := r.client.SetCampaignStatus(ctx, campaignID, domain.CampaignCompleted)
			return status.String(), sendErr
		})
		if err != nil {
			// Campaign exists fully configured but unsent; only this
			// final step needs a retry.
			return r.fail(ctx, push, domain.StepLinked, provider.KindOf(err), err, logger), nil
		}
	}

	if persistErr := r.pushes.MarkCompleted(ctx, push.ID, domain.StatusSent, domain.StepSent); persistErr != nil {
		return PushResult{}, fmt.Errorf("failed to mark push sent: %w", persistErr)
	}
	push.Step = domain.StepSent
	logger.Info("push sent", zap.String("campaignId", campaignID))

	return PushResult{
		Success:           true,
		CampaignID:        campaignID,
		MessageID:         messageID,
		LastCompletedStep: domain.StepSent,
	}, nil
}

// linkStep links message to campaign. Whether re-linking an already-linked
// pair is a safe no-op is undocumented, so a resumed link is preceded by a
// read of the current links and skipped when the pair already exists.
func (r *PushRunner) linkStep(
	ctx context.Context,
	push *domain.Push,
	campaignID, messageID string,
	startStep domain.Step,
	logger *zap.Logger,
) (string, bool, error) {
	if startStep == domain.StepCampaignCreated {
		linkedMessageIDs, err := r.client.ListCampaignMessages(ctx, campaignID)
		if err != nil {
			logger.Warn("link pre-check failed, attempting link anyway", zap.Error(err))
		} else {
			for _, linkedID := range linkedMessageIDs {
				if linkedID == messageID {
					logger.Info("message already linked, skipping link call")
					return "", false, nil
				}
			}
		}
	}

	linkID, err := r.runStep(ctx, push, domain.StepLinked, func() (string, error) {
		return r.client.LinkMessageToCampaign(ctx, campaignID, messageID)
	})
	if err != nil {
		return "", false, err
	}
	return linkID, true, nil
}

// runStep times one provider call and records it as a push attempt.
func (r *PushRunner) runStep(
	ctx context.Context,
	push *domain.Push,
	step domain.Step,
	call func() (string, error),
) (string, error) {
	start := r.now()
	result, err := call()
	if r.metrics != nil {
		r.metrics.ObserveStepDuration(step.String(), r.now().Sub(start))
	}

	if recordErr := r.recordAttempt(ctx, push.ID, step, err); recordErr != nil {
		r.logger.Error("failed to record push attempt",
			zap.String("pushId", push.ID),
			zap.String("step", step.String()),
			zap.Error(recordErr),
		)
	}

	return result, err
}

func (r *PushRunner) recordAttempt(ctx context.Context, pushID string, step domain.Step, callErr error) error {
	var statusCode *int
	var attemptErr *string

	if callErr != nil {
		value := callErr.Error()
		attemptErr = &value

		var apiErr *provider.APIError
		if errors.As(callErr, &apiErr) && apiErr.StatusCode > 0 {
			code := apiErr.StatusCode
			statusCode = &code
		}
	}

	attempt := &domain.PushAttempt{
		ID:         uuid.NewString(),
		PushID:     pushID,
		Step:       step,
		StatusCode: statusCode,
		Error:      attemptErr,
		CreatedAt:  r.now().UTC(),
	}

	return r.attempts.Create(ctx, attempt)
}

func (r *PushRunner) fail(
	ctx context.Context,
	push *domain.Push,
	lastCompleted domain.Step,
	kind provider.ErrorKind,
	err error,
	logger *zap.Logger,
) PushResult {
	message := ""
	if err != nil {
		message = err.Error()
	}

	if persistErr := r.pushes.MarkFailed(ctx, push.ID, lastCompleted, kind.String(), message); persistErr != nil {
		logger.Error("failed to persist push failure", zap.Error(persistErr))
	}

	logger.Warn("push failed",
		zap.String("step", lastCompleted.String()),
		zap.String("kind", kind.String()),
		zap.Error(err),
	)

	return PushResult{
		Success:           false,
		CampaignID:        stringValue(push.CampaignID),
		MessageID:         stringValue(push.MessageID),
		ErrorKind:         kind,
		Message:           message,
		LastCompletedStep: lastCompleted,
	}
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
