package provider

import (
	"context"

	"github.com/readypush/newsletter-push/internal/domain"
)

// NewMessage is the payload for creating a provider-side message object.
type NewMessage struct {
	FromName  string
	FromEmail string
	ReplyTo   string
	Subject   string
	HTML      string
	Text      string
}

// NewCampaign is the payload for creating a provider-side campaign shell.
// Campaigns are always created in DRAFT.
type NewCampaign struct {
	Name       string
	ListID     string
	TrackLinks string
	TrackOpens bool
}

// Client is the outbound port to the email-marketing provider. One method
// per REST call; every failure is a classified *APIError.
type Client interface {
	ListLists(ctx context.Context, limit, offset int) ([]domain.SubscriberList, int, error)
	ListAllLists(ctx context.Context) ([]domain.SubscriberList, error)
	ListAddresses(ctx context.Context) ([]domain.MailingAddress, error)
	CreateMessage(ctx context.Context, msg NewMessage) (string, error)
	CreateCampaign(ctx context.Context, campaign NewCampaign) (string, error)
	LinkMessageToCampaign(ctx context.Context, campaignID, messageID string) (string, error)
	ListCampaignMessages(ctx context.Context, campaignID string) ([]string, error)
	SetCampaignStatus(ctx context.Context, campaignID string, status domain.CampaignStatus) (domain.CampaignStatus, error)
}
