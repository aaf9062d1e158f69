package repository

import (
	"time"

	"github.com/readypush/newsletter-push/internal/domain"
)

// PushModel is the persistence model for the pushes table.
type PushModel struct {
	ID             string  `gorm:"type:uuid;primaryKey"`
	CorrelationID  string  `gorm:"type:varchar(36);not null"`
	IdempotencyKey *string `gorm:"type:varchar(255)"`

	ListID       string  `gorm:"type:varchar(64);not null"`
	CampaignName string  `gorm:"type:varchar(255);not null"`
	Subject      string  `gorm:"type:varchar(255);not null"`
	HTMLContent  string  `gorm:"type:text;not null"`
	TextContent  *string `gorm:"type:text"`
	SenderName   string  `gorm:"type:varchar(255);not null"`
	SenderEmail  string  `gorm:"type:varchar(255);not null"`
	ReplyTo      *string `gorm:"type:varchar(255)"`

	SendNow     bool       `gorm:"not null;default:true"`
	ScheduledAt *time.Time `gorm:"type:timestamptz"`

	Status domain.Status `gorm:"type:varchar(20);not null"`
	Step   domain.Step   `gorm:"type:varchar(20);not null"`

	MessageID  *string `gorm:"type:varchar(64)"`
	CampaignID *string `gorm:"type:varchar(64)"`
	LinkID     *string `gorm:"type:varchar(64)"`

	ErrorKind    *string `gorm:"type:varchar(32)"`
	ErrorMessage *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PushModel) TableName() string {
	return "pushes"
}

// PushAttemptModel is the persistence model for push_attempts.
type PushAttemptModel struct {
	ID           string      `gorm:"type:uuid;primaryKey"`
	PushID       string      `gorm:"type:uuid;not null"`
	Step         domain.Step `gorm:"type:varchar(20);not null"`
	StatusCode   *int        `gorm:"type:int"`
	ResponseBody *string     `gorm:"type:text"`
	Error        *string     `gorm:"type:text"`
	CreatedAt    time.Time
}

func (PushAttemptModel) TableName() string {
	return "push_attempts"
}

func pushModelFromDomain(p *domain.Push) *PushModel {
	if p == nil {
		return nil
	}

	return &PushModel{
		ID:             p.ID,
		CorrelationID:  p.CorrelationID,
		IdempotencyKey: p.IdempotencyKey,
		ListID:         p.ListID,
		CampaignName:   p.CampaignName,
		Subject:        p.Subject,
		HTMLContent:    p.HTMLContent,
		TextContent:    p.TextContent,
		SenderName:     p.SenderName,
		SenderEmail:    p.SenderEmail,
		ReplyTo:        p.ReplyTo,
		SendNow:        p.SendNow,
		ScheduledAt:    p.ScheduledAt,
		Status:         p.Status,
		Step:           p.Step,
		MessageID:      p.MessageID,
		CampaignID:     p.CampaignID,
		LinkID:         p.LinkID,
		ErrorKind:      p.ErrorKind,
		ErrorMessage:   p.ErrorMessage,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func pushModelToDomain(m *PushModel) *domain.Push {
	if m == nil {
		return nil
	}

	return &domain.Push{
		ID:             m.ID,
		CorrelationID:  m.CorrelationID,
		IdempotencyKey: m.IdempotencyKey,
		ListID:         m.ListID,
		CampaignName:   m.CampaignName,
		Subject:        m.Subject,
		HTMLContent:    m.HTMLContent,
		TextContent:    m.TextContent,
		SenderName:     m.SenderName,
		SenderEmail:    m.SenderEmail,
		ReplyTo:        m.ReplyTo,
		SendNow:        m.SendNow,
		ScheduledAt:    m.ScheduledAt,
		Status:         m.Status,
		Step:           m.Step,
		MessageID:      m.MessageID,
		CampaignID:     m.CampaignID,
		LinkID:         m.LinkID,
		ErrorKind:      m.ErrorKind,
		ErrorMessage:   m.ErrorMessage,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.PushAttempt) *PushAttemptModel {
	if a == nil {
		return nil
	}

	return &PushAttemptModel{
		ID:           a.ID,
		PushID:       a.PushID,
		Step:         a.Step,
		StatusCode:   a.StatusCode,
		ResponseBody: a.ResponseBody,
		Error:        a.Error,
		CreatedAt:    a.CreatedAt,
	}
}

func attemptModelToDomain(m *PushAttemptModel) *domain.PushAttempt {
	if m == nil {
		return nil
	}

	return &domain.PushAttempt{
		ID:           m.ID,
		PushID:       m.PushID,
		Step:         m.Step,
		StatusCode:   m.StatusCode,
		ResponseBody: m.ResponseBody,
		Error:        m.Error,
		CreatedAt:    m.CreatedAt,
	}
}
