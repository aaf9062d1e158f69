package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/readypush/newsletter-push/internal/domain"
	"github.com/readypush/newsletter-push/internal/repository"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type PushService interface {
	Create(ctx context.Context, push *domain.Push) (*domain.Push, error)
	GetByID(ctx context.Context, id string) (*domain.Push, error)
	GetAttempts(ctx context.Context, pushID string) ([]domain.PushAttempt, error)
	Cancel(ctx context.Context, id string) error
	Resume(ctx context.Context, id string) (*domain.Push, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Push, int64, error)
}

type PushHandler struct {
	service PushService
}

func NewPushHandler(service PushService) (*PushHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("push service is required")
	}
	return &PushHandler{service: service}, nil
}

func RegisterPushRoutes(router fiber.Router, service PushService) error {
	h, err := NewPushHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/pushes", h.CreatePush)
	v1.Get("/pushes/:id", h.GetPush)
	v1.Post("/pushes/:id/cancel", h.CancelPush)
	v1.Post("/pushes/:id/resume", h.ResumePush)
	v1.Get("/pushes", h.ListPushes)

	return nil
}

type createPushRequest struct {
	CorrelationID  string     `json:"correlationId"`
	IdempotencyKey *string    `json:"idempotencyKey"`
	ListID         string     `json:"listId"`
	CampaignName   string     `json:"campaignName"`
	Subject        string     `json:"subject"`
	HTMLContent    string     `json:"htmlContent"`
	TextContent    *string    `json:"textContent"`
	SenderName     string     `json:"senderName"`
	SenderEmail    string     `json:"senderEmail"`
	ReplyTo        *string    `json:"replyTo"`
	SendNow        *bool      `json:"sendNow"`
	ScheduledAt    *time.Time `json:"scheduledAt"`
}

type pushResponse struct {
	ID             string         `json:"id"`
	CorrelationID  string         `json:"correlationId"`
	IdempotencyKey *string        `json:"idempotencyKey,omitempty"`
	ListID         string         `json:"listId"`
	CampaignName   string         `json:"campaignName"`
	Subject        string         `json:"subject"`
	SenderName     string         `json:"senderName"`
	SenderEmail    string         `json:"senderEmail"`
	ReplyTo        *string        `json:"replyTo,omitempty"`
	SendNow        bool           `json:"sendNow"`
	ScheduledAt    *time.Time     `json:"scheduledAt,omitempty"`
	Status         string         `json:"status"`
	Step           string         `json:"step"`
	MessageID      *string        `json:"messageId,omitempty"`
	CampaignID     *string        `json:"campaignId,omitempty"`
	Error          *pushErrorItem `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"createdAt,omitempty"`
	UpdatedAt      time.Time      `json:"updatedAt,omitempty"`
}

type pushErrorItem struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type pushDetailResponse struct {
	pushResponse
	Attempts []pushAttemptItem `json:"attempts"`
}

type pushAttemptItem struct {
	Step       string    `json:"step"`
	StatusCode *int      `json:"statusCode,omitempty"`
	Error      *string   `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type listPushesResponse struct {
	Data []pushResponse `json:"data"`
	Meta listMeta       `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *PushHandler) CreatePush(c *fiber.Ctx) error {
	var req createPushRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	push := requestToDomainPush(req, requestCorrelationID(c))
	created, err := h.service.Create(c.Context(), &push)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toPushResponse(created))
}

func (h *PushHandler) GetPush(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	push, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	attempts, err := h.service.GetAttempts(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]pushAttemptItem, 0, len(attempts))
	for _, attempt := range attempts {
		items = append(items, pushAttemptItem{
			Step:       attempt.Step.String(),
			StatusCode: attempt.StatusCode,
			Error:      attempt.Error,
			CreatedAt:  attempt.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(pushDetailResponse{
		pushResponse: toPushResponse(push),
		Attempts:     items,
	})
}

func (h *PushHandler) CancelPush(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.Cancel(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"pushId": id,
		"status": domain.StatusCanceled.String(),
	})
}

func (h *PushHandler) ResumePush(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	push, err := h.service.Resume(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toPushResponse(push))
}

func (h *PushHandler) ListPushes(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	pushes, total, err := h.service.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listPushesResponse{
		Data: toPushResponses(pushes),
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func requestToDomainPush(req createPushRequest, fallbackCorrelationID string) domain.Push {
	push := domain.Push{
		CorrelationID:  strings.TrimSpace(req.CorrelationID),
		IdempotencyKey: req.IdempotencyKey,
		ListID:         strings.TrimSpace(req.ListID),
		CampaignName:   strings.TrimSpace(req.CampaignName),
		Subject:        strings.TrimSpace(req.Subject),
		HTMLContent:    req.HTMLContent,
		TextContent:    req.TextContent,
		SenderName:     strings.TrimSpace(req.SenderName),
		SenderEmail:    strings.TrimSpace(req.SenderEmail),
		ReplyTo:        req.ReplyTo,
		SendNow:        true,
		ScheduledAt:    req.ScheduledAt,
	}

	if req.SendNow != nil {
		push.SendNow = *req.SendNow
	}
	if push.CorrelationID == "" {
		push.CorrelationID = strings.TrimSpace(fallbackCorrelationID)
	}

	return push
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toPushResponses(pushes []domain.Push) []pushResponse {
	responses := make([]pushResponse, 0, len(pushes))
	for _, push := range pushes {
		p := push
		responses = append(responses, toPushResponse(&p))
	}
	return responses
}

func toPushResponse(p *domain.Push) pushResponse {
	if p == nil {
		return pushResponse{}
	}

	resp := pushResponse{
		ID:             p.ID,
		CorrelationID:  p.CorrelationID,
		IdempotencyKey: p.IdempotencyKey,
		ListID:         p.ListID,
		CampaignName:   p.CampaignName,
		Subject:        p.Subject,
		SenderName:     p.SenderName,
		SenderEmail:    p.SenderEmail,
		ReplyTo:        p.ReplyTo,
		SendNow:        p.SendNow,
		ScheduledAt:    p.ScheduledAt,
		Status:         p.Status.String(),
		Step:           p.Step.String(),
		MessageID:      p.MessageID,
		CampaignID:     p.CampaignID,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}

	if p.ErrorKind != nil || p.ErrorMessage != nil {
		item := pushErrorItem{}
		if p.ErrorKind != nil {
			item.Kind = *p.ErrorKind
		}
		if p.ErrorMessage != nil {
			item.Message = *p.ErrorMessage
		}
		resp.Error = &item
	}

	return resp
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
