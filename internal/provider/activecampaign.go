package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/readypush/newsletter-push/internal/domain"
	"github.com/readypush/newsletter-push/internal/ratelimit"
)

const (
	defaultRequestTimeout = 30 * time.Second
	apiBasePath           = "/api/3"
	defaultPageSize       = 100

	maxCallAttempts      = 5
	baseRetryDelay       = time.Second
	maxRetryDelay        = 30 * time.Second
	maxRetryJitterMillis = 250

	// limiterScope keys the shared rate limiter; the ceiling is
	// per-account, not per-endpoint.
	limiterScope = "activecampaign"

	defaultPlainText = "Please view this email in an HTML-compatible email client."
)

// ActiveCampaign is the typed client for the ActiveCampaign v3 REST API.
type ActiveCampaign struct {
	client   *resty.Client
	limiter  ratelimit.RateLimiter
	sleep    func(ctx context.Context, d time.Duration) error
	randIntn func(n int) int
}

var _ Client = (*ActiveCampaign)(nil)

func NewActiveCampaign(baseURL, apiToken string, limiter ratelimit.RateLimiter) (*ActiveCampaign, error) {
	client := resty.New()
	client.SetTimeout(defaultRequestTimeout)
	client.SetRetryCount(0)

	return NewActiveCampaignWithClient(baseURL, apiToken, limiter, client)
}

func NewActiveCampaignWithClient(
	baseURL, apiToken string,
	limiter ratelimit.RateLimiter,
	client *resty.Client,
) (*ActiveCampaign, error) {
	trimmedURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedURL == "" {
		return nil, fmt.Errorf("activecampaign base url is required")
	}
	if _, err := url.ParseRequestURI(trimmedURL); err != nil {
		return nil, fmt.Errorf("invalid activecampaign base url: %w", err)
	}
	if strings.TrimSpace(apiToken) == "" {
		return nil, fmt.Errorf("activecampaign api token is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultRequestTimeout)
	}
	client.SetRetryCount(0)
	client.SetBaseURL(trimmedURL)
	client.SetHeader("Api-Token", apiToken)
	client.SetHeader("Content-Type", "application/json")

	return &ActiveCampaign{
		client:   client,
		limiter:  limiter,
		sleep:    sleepWithContext,
		randIntn: rand.Intn,
	}, nil
}

type listsResponse struct {
	Lists []struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		SubscriberCount string `json:"subscriber_count"`
	} `json:"lists"`
	Meta struct {
		Total string `json:"total"`
	} `json:"meta"`
}

func (c *ActiveCampaign) ListLists(ctx context.Context, limit, offset int) ([]domain.SubscriberList, int, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var decoded listsResponse
	path := fmt.Sprintf("%s/lists?limit=%d&offset=%d", apiBasePath, limit, offset)
	if err := c.do(ctx, resty.MethodGet, path, nil, &decoded); err != nil {
		return nil, 0, err
	}

	lists := make([]domain.SubscriberList, 0, len(decoded.Lists))
	for _, item := range decoded.Lists {
		count, _ := strconv.Atoi(item.SubscriberCount)
		lists = append(lists, domain.SubscriberList{
			ID:              item.ID,
			Name:            item.Name,
			SubscriberCount: count,
		})
	}

	total, err := strconv.Atoi(decoded.Meta.Total)
	if err != nil {
		total = len(lists)
	}

	return lists, total, nil
}

func (c *ActiveCampaign) ListAllLists(ctx context.Context) ([]domain.SubscriberList, error) {
	all := make([]domain.SubscriberList, 0, defaultPageSize)
	offset := 0

	for {
		page, total, err := c.ListLists(ctx, defaultPageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)

		offset += len(page)
		if len(page) == 0 || offset >= total {
			return all, nil
		}
	}
}

type addressesResponse struct {
	Addresses []struct {
		ID          string `json:"id"`
		CompanyName string `json:"companyName"`
		Address1    string `json:"address1"`
		City        string `json:"city"`
		State       string `json:"state"`
	} `json:"addresses"`
}

func (c *ActiveCampaign) ListAddresses(ctx context.Context) ([]domain.MailingAddress, error) {
	var decoded addressesResponse
	if err := c.do(ctx, resty.MethodGet, apiBasePath+"/addresses", nil, &decoded); err != nil {
		return nil, err
	}

	addresses := make([]domain.MailingAddress, 0, len(decoded.Addresses))
	for _, item := range decoded.Addresses {
		parts := make([]string, 0, 3)
		if item.CompanyName != "" {
			parts = append(parts, item.CompanyName)
		}
		if item.Address1 != "" {
			parts = append(parts, item.Address1)
		}
		if item.City != "" {
			cityState := item.City
			if item.State != "" {
				cityState += ", " + item.State
			}
			parts = append(parts, cityState)
		}

		display := strings.Join(parts, " - ")
		if display == "" {
			display = fmt.Sprintf("Address #%s", item.ID)
		}

		addresses = append(addresses, domain.MailingAddress{
			ID:          item.ID,
			CompanyName: item.CompanyName,
			Display:     display,
		})
	}

	return addresses, nil
}

type messageEnvelope struct {
	Message messagePayload `json:"message"`
}

type messagePayload struct {
	FromName  string `json:"fromname"`
	FromEmail string `json:"fromemail"`
	ReplyTo   string `json:"reply2"`
	Subject   string `json:"subject"`
	HTML      string `json:"html"`
	Text      string `json:"text"`
}

type messageResponse struct {
	Message struct {
		ID string `json:"id"`
	} `json:"message"`
}

func (c *ActiveCampaign) CreateMessage(ctx context.Context, msg NewMessage) (string, error) {
	replyTo := strings.TrimSpace(msg.ReplyTo)
	if replyTo == "" {
		replyTo = msg.FromEmail
	}
	text := msg.Text
	if strings.TrimSpace(text) == "" {
		text = defaultPlainText
	}

	body := messageEnvelope{Message: messagePayload{
		FromName:  msg.FromName,
		FromEmail: msg.FromEmail,
		ReplyTo:   replyTo,
		Subject:   msg.Subject,
		HTML:      msg.HTML,
		Text:      text,
	}}

	var decoded messageResponse
	if err := c.do(ctx, resty.MethodPost, apiBasePath+"/messages", body, &decoded); err != nil {
		return "", err
	}
	if strings.TrimSpace(decoded.Message.ID) == "" {
		return "", &APIError{Kind: KindProvider, Message: "create message response missing id"}
	}

	return decoded.Message.ID, nil
}

type campaignEnvelope struct {
	Campaign campaignPayload `json:"campaign"`
}

type campaignPayload struct {
	Type       string            `json:"type"`
	Name       string            `json:"name"`
	Status     int               `json:"status"`
	Public     int               `json:"public"`
	TrackLinks string            `json:"tracklinks"`
	TrackReads int               `json:"trackreads"`
	Lists      map[string]string `json:"p"`
}

type campaignResponse struct {
	Campaign struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"campaign"`
}

func (c *ActiveCampaign) CreateCampaign(ctx context.Context, campaign NewCampaign) (string, error) {
	trackLinks := strings.TrimSpace(campaign.TrackLinks)
	if trackLinks == "" {
		trackLinks = "all"
	}
	trackReads := 0
	if campaign.TrackOpens {
		trackReads = 1
	}

	body := campaignEnvelope{Campaign: campaignPayload{
		Type:       "single",
		Name:       campaign.Name,
		Status:     domain.CampaignDraft.Code(),
		Public:     1,
		TrackLinks: trackLinks,
		TrackReads: trackReads,
		Lists:      map[string]string{campaign.ListID: campaign.ListID},
	}}

	var decoded campaignResponse
	if err := c.do(ctx, resty.MethodPost, apiBasePath+"/campaigns", body, &decoded); err != nil {
		return "", err
	}
	if strings.TrimSpace(decoded.Campaign.ID) == "" {
		return "", &APIError{Kind: KindProvider, Message: "create campaign response missing id"}
	}

	return decoded.Campaign.ID, nil
}

type campaignMessageEnvelope struct {
	CampaignMessage campaignMessagePayload `json:"campaignMessage"`
}

type campaignMessagePayload struct {
	Campaign string `json:"campaign"`
	Message  string `json:"message"`
}

type campaignMessageResponse struct {
	CampaignMessage struct {
		ID string `json:"id"`
	} `json:"campaignMessage"`
}

func (c *ActiveCampaign) LinkMessageToCampaign(ctx context.Context, campaignID, messageID string) (string, error) {
	body := campaignMessageEnvelope{CampaignMessage: campaignMessagePayload{
		Campaign: campaignID,
		Message:  messageID,
	}}

	var decoded campaignMessageResponse
	if err := c.do(ctx, resty.MethodPost, apiBasePath+"/campaignMessages", body, &decoded); err != nil {
		return "", err
	}
	if strings.TrimSpace(decoded.CampaignMessage.ID) == "" {
		return "", &APIError{Kind: KindProvider, Message: "link response missing id"}
	}

	return decoded.CampaignMessage.ID, nil
}

type campaignMessagesResponse struct {
	CampaignMessages []struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"campaignMessages"`
}

func (c *ActiveCampaign) ListCampaignMessages(ctx context.Context, campaignID string) ([]string, error) {
	var decoded campaignMessagesResponse
	path := fmt.Sprintf("%s/campaigns/%s/campaignMessages", apiBasePath, url.PathEscape(campaignID))
	if err := c.do(ctx, resty.MethodGet, path, nil, &decoded); err != nil {
		return nil, err
	}

	messageIDs := make([]string, 0, len(decoded.CampaignMessages))
	for _, link := range decoded.CampaignMessages {
		messageIDs = append(messageIDs, link.Message)
	}

	return messageIDs, nil
}

type campaignStatusEnvelope struct {
	Campaign struct {
		Status int `json:"status"`
	} `json:"campaign"`
}

func (c *ActiveCampaign) SetCampaignStatus(ctx context.Context, campaignID string, status domain.CampaignStatus) (domain.CampaignStatus, error) {
	if !status.IsValid() {
		return 0, &APIError{Kind: KindValidation, Message: fmt.Sprintf("invalid campaign status %d", status.Code())}
	}

	var body campaignStatusEnvelope
	body.Campaign.Status = status.Code()

	var decoded campaignResponse
	path := fmt.Sprintf("%s/campaigns/%s", apiBasePath, url.PathEscape(campaignID))
	if err := c.do(ctx, resty.MethodPut, path, body, &decoded); err != nil {
		return 0, err
	}

	parsed, err := strconv.Atoi(decoded.Campaign.Status)
	if err != nil {
		return status, nil
	}

	return domain.CampaignStatus(parsed), nil
}

// do issues one API call with rate-limit throttling and bounded backoff.
// Only rate-limit and transport failures are retried; the final error of an
// exhausted budget is surfaced as-is.
func (c *ActiveCampaign) do(ctx context.Context, method, path string, body any, out any) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("activecampaign client is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	delay := baseRetryDelay
	for attempt := 1; ; attempt++ {
		err := c.doOnce(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		if attempt >= maxCallAttempts || !IsRetryable(err) {
			return err
		}

		if sleepErr := c.sleep(ctx, c.withJitter(delay)); sleepErr != nil {
			return err
		}

		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

func (c *ActiveCampaign) doOnce(ctx context.Context, method, path string, body any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, limiterScope); err != nil {
			return &APIError{Kind: KindTransport, Message: "rate limiter wait failed", Cause: err}
		}
	}

	req := c.client.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	response, err := req.Execute(method, path)
	if err != nil {
		return &APIError{Kind: KindTransport, Message: "request failed", Cause: err}
	}
	if response == nil {
		return &APIError{Kind: KindTransport, Message: "empty response"}
	}

	statusCode := response.StatusCode()
	if statusCode >= 400 {
		return &APIError{
			Kind:       classifyStatus(statusCode),
			StatusCode: statusCode,
			Message:    errorMessageFromBody(statusCode, response.Body()),
		}
	}

	if out != nil {
		if err := json.Unmarshal(response.Body(), out); err != nil {
			return &APIError{
				Kind:       KindProvider,
				StatusCode: statusCode,
				Message:    "failed to decode response",
				Cause:      err,
			}
		}
	}

	return nil
}

func (c *ActiveCampaign) withJitter(delay time.Duration) time.Duration {
	jitterMillis := 0
	if c.randIntn != nil && maxRetryJitterMillis > 0 {
		jitterMillis = c.randIntn(maxRetryJitterMillis + 1)
	}
	return delay + time.Duration(jitterMillis)*time.Millisecond
}

// errorMessageFromBody extracts the provider detail message from a v3 error
// body, which carries either an errors array or a single message field.
func errorMessageFromBody(statusCode int, body []byte) string {
	var decoded struct {
		Errors []struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
		Message string `json:"message"`
	}

	if err := json.Unmarshal(body, &decoded); err == nil {
		if len(decoded.Errors) > 0 {
			titles := make([]string, 0, len(decoded.Errors))
			for _, item := range decoded.Errors {
				if msg := strings.TrimSpace(item.Title); msg != "" {
					titles = append(titles, msg)
				} else if msg := strings.TrimSpace(item.Detail); msg != "" {
					titles = append(titles, msg)
				}
			}
			if len(titles) > 0 {
				return strings.Join(titles, "; ")
			}
		}
		if msg := strings.TrimSpace(decoded.Message); msg != "" {
			return msg
		}
	}

	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		return trimmed
	}
	return fmt.Sprintf("HTTP %d", statusCode)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
