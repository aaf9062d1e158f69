package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Status represents the lifecycle state of a push.
type Status string

const (
	StatusAccepted Status = "ACCEPTED"
	StatusQueued   Status = "QUEUED"
	StatusRunning  Status = "RUNNING"
	StatusSent     Status = "SENT"
	StatusDrafted  Status = "DRAFTED"
	StatusFailed   Status = "FAILED"
	StatusCanceled Status = "CANCELED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusAccepted, StatusQueued, StatusRunning, StatusSent, StatusDrafted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// IsTerminal reports whether no further workflow execution is possible
// without an explicit operator resume.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSent, StatusDrafted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Step is the last workflow step that completed for a push. The workflow
// only ever moves forward: INIT -> MESSAGE_CREATED -> CAMPAIGN_CREATED ->
// LINKED -> SENT.
type Step string

const (
	StepInit            Step = "INIT"
	StepMessageCreated  Step = "MESSAGE_CREATED"
	StepCampaignCreated Step = "CAMPAIGN_CREATED"
	StepLinked          Step = "LINKED"
	StepSent            Step = "SENT"
)

func (s Step) String() string { return string(s) }

func (s Step) IsValid() bool {
	switch s {
	case StepInit, StepMessageCreated, StepCampaignCreated, StepLinked, StepSent:
		return true
	}
	return false
}

// Order returns the step position in the workflow, with INIT at 0.
func (s Step) Order() int {
	switch s {
	case StepMessageCreated:
		return 1
	case StepCampaignCreated:
		return 2
	case StepLinked:
		return 3
	case StepSent:
		return 4
	default:
		return 0
	}
}

func ParseStepFromString(s string) (Step, error) {
	st := Step(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid step %q", ErrValidation, s)
	}
	return st, nil
}

// Push is the core domain entity: one attempt to turn a locally authored
// newsletter into a sent campaign at the provider.
type Push struct {
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

	// SendNow selects the terminal step: true runs through SENT,
	// false leaves the campaign linked as a draft.
	SendNow     bool `gorm:"not null;default:true"`
	ScheduledAt *time.Time

	Status Status `gorm:"type:varchar(20);not null"`
	Step   Step   `gorm:"type:varchar(20);not null"`

	// Provider handles recorded as each step completes. A failed push keeps
	// the handles it collected so an operator can clean up or resume.
	MessageID  *string `gorm:"type:varchar(64)"`
	CampaignID *string `gorm:"type:varchar(64)"`
	LinkID     *string `gorm:"type:varchar(64)"`

	ErrorKind    *string `gorm:"type:varchar(32)"`
	ErrorMessage *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the push request fields before any side-effecting call.
// A push that fails validation must never have created remote state.
func (p *Push) Validate() error {
	missing := make([]string, 0, 4)
	if strings.TrimSpace(p.ListID) == "" {
		missing = append(missing, "listId")
	}
	if strings.TrimSpace(p.CampaignName) == "" {
		missing = append(missing, "campaignName")
	}
	if strings.TrimSpace(p.Subject) == "" {
		missing = append(missing, "subject")
	}
	if strings.TrimSpace(p.HTMLContent) == "" {
		missing = append(missing, "htmlContent")
	}
	if strings.TrimSpace(p.SenderName) == "" {
		missing = append(missing, "senderName")
	}
	if strings.TrimSpace(p.SenderEmail) == "" {
		missing = append(missing, "senderEmail")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}

	if !isWellFormedAddress(p.SenderEmail) {
		return fmt.Errorf("%w: senderEmail %q is not a valid address", ErrValidation, p.SenderEmail)
	}
	if p.ReplyTo != nil && strings.TrimSpace(*p.ReplyTo) != "" && !isWellFormedAddress(*p.ReplyTo) {
		return fmt.Errorf("%w: replyTo %q is not a valid address", ErrValidation, *p.ReplyTo)
	}
	return nil
}

func isWellFormedAddress(value string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(value))
	if err != nil {
		return false
	}
	// Reject "Name <a@b>" forms; the sender name travels in its own field.
	return addr.Address == strings.TrimSpace(value)
}
