package domain

import "fmt"

// CampaignStatus is the provider-side numeric campaign status. Setting a
// draft campaign to CampaignCompleted is what triggers the send.
type CampaignStatus int

const (
	CampaignDraft     CampaignStatus = 0
	CampaignScheduled CampaignStatus = 1
	CampaignSending   CampaignStatus = 2
	CampaignPaused    CampaignStatus = 3
	CampaignStopped   CampaignStatus = 4
	CampaignCompleted CampaignStatus = 5
)

func (s CampaignStatus) String() string {
	switch s {
	case CampaignDraft:
		return "DRAFT"
	case CampaignScheduled:
		return "SCHEDULED"
	case CampaignSending:
		return "SENDING"
	case CampaignPaused:
		return "PAUSED"
	case CampaignStopped:
		return "STOPPED"
	case CampaignCompleted:
		return "COMPLETED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

func (s CampaignStatus) IsValid() bool {
	return s >= CampaignDraft && s <= CampaignCompleted
}

// Code returns the numeric wire value the provider expects.
func (s CampaignStatus) Code() int { return int(s) }

// SubscriberList is a provider-side named group of subscribers. Read-only,
// never created or mutated locally.
type SubscriberList struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	SubscriberCount int    `json:"subscriberCount"`
}

// MailingAddress is a provider-side mailing address attached to campaigns.
type MailingAddress struct {
	ID          string `json:"id"`
	CompanyName string `json:"companyName"`
	Display     string `json:"display"`
}
