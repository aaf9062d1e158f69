package repository

import (
	"context"
	"errors"
	"time"

	"github.com/readypush/newsletter-push/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ListParams struct {
	Status   *domain.Status
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

type PushRepository interface {
	Create(ctx context.Context, p *domain.Push) error
	GetByID(ctx context.Context, id string) (*domain.Push, error)
	GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.Push, error)
	List(ctx context.Context, params ListParams) ([]domain.Push, int64, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
	MarkQueuedIfAccepted(ctx context.Context, id string) (bool, error)
	MarkQueuedIfFailed(ctx context.Context, id string) (bool, error)
	Cancel(ctx context.Context, id string) error
	LockForRun(ctx context.Context, id string) (*domain.Push, error)
	GetDueForSchedule(ctx context.Context, limit int) ([]domain.Push, error)
	SetStepHandle(ctx context.Context, id string, step domain.Step, handleID string) error
	MarkCompleted(ctx context.Context, id string, status domain.Status, step domain.Step) error
	MarkFailed(ctx context.Context, id string, step domain.Step, errorKind, errorMessage string) error
}

type GormPushRepo struct {
	db *gorm.DB
}

func NewGormPushRepo(db *gorm.DB) *GormPushRepo {
	return &GormPushRepo{db: db}
}

func (r *GormPushRepo) Create(ctx context.Context, p *domain.Push) error {
	model := pushModelFromDomain(p)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if p != nil {
		*p = *pushModelToDomain(model)
	}
	return nil
}

func (r *GormPushRepo) GetByID(ctx context.Context, id string) (*domain.Push, error) {
	var model PushModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return pushModelToDomain(&model), nil
}

func (r *GormPushRepo) GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.Push, error) {
	var model PushModel
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", idempotencyKey).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return pushModelToDomain(&model), nil
}

func (r *GormPushRepo) List(ctx context.Context, params ListParams) ([]domain.Push, int64, error) {
	query := r.db.WithContext(ctx).Model(&PushModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []PushModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	pushes := make([]domain.Push, 0, len(models))
	for i := range models {
		pushes = append(pushes, *pushModelToDomain(&models[i]))
	}

	return pushes, total, nil
}

func (r *GormPushRepo) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	result := r.db.WithContext(ctx).
		Model(&PushModel{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormPushRepo) MarkQueuedIfAccepted(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&PushModel{}).
		Where("id = ? AND status = ?", id, domain.StatusAccepted).
		Update("status", domain.StatusQueued)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkQueuedIfFailed re-arms a failed push for an operator resume. The
// recorded step and handles stay in place so the run continues forward.
func (r *GormPushRepo) MarkQueuedIfFailed(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&PushModel{}).
		Where("id = ? AND status = ?", id, domain.StatusFailed).
		Updates(map[string]any{
			"status":        domain.StatusQueued,
			"error_kind":    nil,
			"error_message": nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Cancel succeeds only while no remote state exists yet. Once the workflow
// has started, the push runs to a terminal state instead.
func (r *GormPushRepo) Cancel(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&PushModel{}).
		Where("id = ? AND status IN ?", id, []domain.Status{domain.StatusAccepted, domain.StatusQueued}).
		Update("status", domain.StatusCanceled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormPushRepo) LockForRun(ctx context.Context, id string) (*domain.Push, error) {
	var claimed *domain.Push
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model PushModel
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		// Skip if already terminal or claimed by another worker.
		switch model.Status {
		case domain.StatusCanceled, domain.StatusSent, domain.StatusDrafted, domain.StatusFailed, domain.StatusRunning:
			return nil
		}

		// The status guard makes the claim single-winner even if the
		// row lock was not held across both statements.
		result := tx.
			Model(&PushModel{}).
			Where("id = ? AND status = ?", id, model.Status).
			Update("status", domain.StatusRunning)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		model.Status = domain.StatusRunning
		claimed = pushModelToDomain(&model)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *GormPushRepo) GetDueForSchedule(ctx context.Context, limit int) ([]domain.Push, error) {
	var models []PushModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?", domain.StatusAccepted, time.Now()).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	pushes := make([]domain.Push, 0, len(models))
	for i := range models {
		pushes = append(pushes, *pushModelToDomain(&models[i]))
	}

	return pushes, nil
}

// SetStepHandle records a completed workflow step together with the provider
// handle it produced.
func (r *GormPushRepo) SetStepHandle(ctx context.Context, id string, step domain.Step, handleID string) error {
	updates := map[string]any{"step": step}
	switch step {
	case domain.StepMessageCreated:
		updates["message_id"] = handleID
	case domain.StepCampaignCreated:
		updates["campaign_id"] = handleID
	case domain.StepLinked:
		updates["link_id"] = handleID
	default:
		return domain.ErrValidation
	}

	result := r.db.WithContext(ctx).
		Model(&PushModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkCompleted finishes a successful run: SENT/SENT for send-now pushes,
// DRAFTED/LINKED for pushes that stop at the configured draft.
func (r *GormPushRepo) MarkCompleted(ctx context.Context, id string, status domain.Status, step domain.Step) error {
	result := r.db.WithContext(ctx).
		Model(&PushModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        status,
			"step":          step,
			"error_kind":    nil,
			"error_message": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormPushRepo) MarkFailed(ctx context.Context, id string, step domain.Step, errorKind, errorMessage string) error {
	result := r.db.WithContext(ctx).
		Model(&PushModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        domain.StatusFailed,
			"step":          step,
			"error_kind":    errorKind,
			"error_message": errorMessage,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
