package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/readypush/newsletter-push/internal/domain"
	"github.com/readypush/newsletter-push/internal/provider"
	"go.uber.org/zap"
)

func runnerPush() *domain.Push {
	p := validPush()
	p.ID = "p1"
	p.CorrelationID = "c1"
	p.Status = domain.StatusRunning
	p.Step = domain.StepInit
	return &p
}

func TestPushRunnerFullFlowOrdering(t *testing.T) {
	t.Parallel()

	var calls []string
	var handles []string
	var completed bool

	client := &fakeProviderClient{
		createMessageFn: func(ctx context.Context, msg provider.NewMessage) (string, error) {
			calls = append(calls, "createMessage")
			if msg.FromEmail != "news@example.com" {
				t.Fatalf("fromEmail = %q, want news@example.com", msg.FromEmail)
			}
			return "21", nil
		},
		createCampaignFn: func(ctx context.Context, campaign provider.NewCampaign) (string, error) {
			calls = append(calls, "createCampaign")
			if campaign.ListID != "1" {
				t.Fatalf("listID = %q, want 1", campaign.ListID)
			}
			return "7", nil
		},
		linkFn: func(ctx context.Context, campaignID, messageID string) (string, error) {
			calls = append(calls, "link")
			if campaignID != "7" || messageID != "21" {
				t.Fatalf("link args = (%s, %s), want (7, 21)", campaignID, messageID)
			}
			return "55", nil
		},
		setCampaignStatusFn: func(ctx context.Context, campaignID string, status domain.CampaignStatus) (domain.CampaignStatus, error) {
			calls = append(calls, "send")
			if status != domain.CampaignCompleted {
				t.Fatalf("status = %s, want COMPLETED", status)
			}
			return domain.CampaignCompleted, nil
		},
	}

	repo := &fakePushRepo{
		setStepHandleFn: func(ctx context.Context, id string, step domain.Step, handleID string) error {
			handles = append(handles, fmt.Sprintf("%s=%s", step, handleID))
			return nil
		},
		markCompletedFn: func(ctx context.Context, id string, status domain.Status, step domain.Step) error {
			if status != domain.StatusSent || step != domain.StepSent {
				t.Fatalf("MarkCompleted(%s, %s), want (SENT, SENT)", status, step)
			}
			completed = true
			return nil
		},
	}

	var attempts int
	attemptRepo := &fakeAttemptRepo{
		createFn: func(ctx context.Context, a *domain.PushAttempt) error {
			attempts++
			return nil
		},
	}

	runner, err := NewPushRunner(client, repo, attemptRepo, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPushRunner() error = %v", err)
	}

	result, err := runner.Run(context.Background(), runnerPush())
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	if !result.Success {
		t.Fatalf("result.Success = false, message %q", result.Message)
	}
	if result.CampaignID != "7" || result.MessageID != "21" {
		t.Fatalf("result handles = (%s, %s), want (7, 21)", result.CampaignID, result.MessageID)
	}
	if result.LastCompletedStep != domain.StepSent {
		t.Fatalf("LastCompletedStep = %s, want SENT", result.LastCompletedStep)
	}

	wantCalls := []string{"createMessage", "createCampaign", "link", "send"}
	if len(calls) != len(wantCalls) {
		t.Fatalf("calls = %v, want %v", calls, wantCalls)
	}
	for i := range wantCalls {
		if calls[i] != wantCalls[i] {
			t.Fatalf("calls[%d] = %s, want %s", i, calls[i], wantCalls[i])
		}
	}

	wantHandles := []string{"MESSAGE_CREATED=21", "CAMPAIGN_CREATED=7", "LINKED=55"}
	if len(handles) != len(wantHandles) {
		t.Fatalf("handles = %v, want %v", handles, wantHandles)
	}
	if !completed {
		t.Fatal("MarkCompleted was not called")
	}
	if attempts != 4 {
		t.Fatalf("attempts recorded = %d, want 4", attempts)
	}
}

func TestPushRunnerDraftModeStopsAfterLink(t *testing.T) {
	t.Parallel()

	var sendCalled bool
	client := &fakeProviderClient{
		createMessageFn: func(ctx context.Context, msg provider.NewMessage) (string, error) { return "21", nil },
		createCampaignFn: func(ctx context.Context, campaign provider.NewCampaign) (string, error) {
			return "7", nil
		},
		linkFn: func(ctx context.Context, campaignID, messageID string) (string, error) { return "55", nil },
		setCampaignStatusFn: func(ctx context.Context, campaignID string, status domain.CampaignStatus) (domain.CampaignStatus, error) {
			sendCalled = true
			return status, nil
		},
	}

	var completedStatus domain.Status
	var completedStep domain.Step
	repo := &fakePushRepo{
		markCompletedFn: func(ctx context.Context, id string, status domain.Status, step domain.Step) error {
			completedStatus = status
			completedStep = step
			return nil
		},
	}

	runner, err := NewPushRunner(client, repo, &fakeAttemptRepo{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPushRunner() error = %v", err)
	}

	push := runnerPush()
	push.SendNow = false

	result, err := runner.Run(context.Background(), push)
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	if !result.Success {
		t.Fatalf("result.Success = false, message %q", result.Message)
	}
	if sendCalled {
		t.Fatal("draft push must not set campaign status")
	}
	if result.LastCompletedStep != domain.StepLinked {
		t.Fatalf("LastCompletedStep = %s, want LINKED", result.LastCompletedStep)
	}
	if completedStatus != domain.StatusDrafted || completedStep != domain.StepLinked {
		t.Fatalf("MarkCompleted(%s, %s), want (DRAFTED, LINKED)", completedStatus, completedStep)
	}
}

func TestPushRunnerCampaignFailureReportsOrphanedMessage(t *testing.T) {
	t.Parallel()

	client := &fakeProviderClient{
		createMessageFn: func(ctx context.Context, msg provider.NewMessage) (string, error) { return "21", nil },
		createCampaignFn: func(ctx context.Context, campaign provider.NewCampaign) (string, error) {
			return "", &provider.APIError{Kind: provider.KindValidation, StatusCode: 422, Message: "bad list"}
		},
	}

	var failedStep domain.Step
	var failedKind string
	repo := &fakePushRepo{
		markFailedFn: func(ctx context.Context, id string, step domain.Step, errorKind, errorMessage string) error {
			failedStep = step
			failedKind = errorKind
			return nil
		},
	}

	runner, err := NewPushRunner(client, repo, &fakeAttemptRepo{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPushRunner() error = %v", err)
	}

	result, err := runner.Run(context.Background(), runnerPush())
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	if result.Success {
		t.Fatal("result.Success = true, want false")
	}
	if result.OrphanedMessageID != "21" {
		t.Fatalf("OrphanedMessageID = %q, want 21", result.OrphanedMessageID)
	}
	if result.LastCompletedStep != domain.StepMessageCreated {
		t.Fatalf("LastCompletedStep = %s, want MESSAGE_CREATED", result.LastCompletedStep)
	}
	if result.ErrorKind != provider.KindValidation {
		t.Fatalf("ErrorKind = %s, want VALIDATION", result.ErrorKind)
	}
	if failedStep != domain.StepMessageCreated || failedKind != "VALIDATION" {
		t.Fatalf("MarkFailed(%s, %s), want (MESSAGE_CREATED, VALIDATION)", failedStep, failedKind)
	}
}

func TestPushRunnerSendFailureKeepsLinkedStep(t *testing.T) {
	t.Parallel()

	client := &fakeProviderClient{
		createMessageFn: func(ctx context.Context, msg provider.NewMessage) (string, error) { return "21", nil },
		createCampaignFn: func(ctx context.Context, campaign provider.NewCampaign) (string, error) {
			return "7", nil
		},
		linkFn: func(ctx context.Context, campaignID, messageID string) (string, error) { return "55", nil },
		setCampaignStatusFn: func(ctx context.Context, campaignID string, status domain.CampaignStatus) (domain.CampaignStatus, error) {
			return 0, &provider.APIError{Kind: provider.KindRateLimited, StatusCode: 429, Message: "slow down"}
		},
	}

	runner, err := NewPushRunner(client, &fakePushRepo{}, &fakeAttemptRepo{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPushRunner() error = %v", err)
	}

	result, err := runner.Run(context.Background(), runnerPush())
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	if result.Success {
		t.Fatal("result.Success = true, want false")
	}
	if result.LastCompletedStep != domain.StepLinked {
		t.Fatalf("LastCompletedStep = %s, want LINKED", result.LastCompletedStep)
	}
	if result.OrphanedMessageID != "" {
		t.Fatalf("OrphanedMessageID = %q, want empty (message is linked)", result.OrphanedMessageID)
	}
}

func TestPushRunnerResumeSkipsCompletedSteps(t *testing.T) {
	t.Parallel()

	var calls []string
	client := &fakeProviderClient{
		createMessageFn: func(ctx context.Context, msg provider.NewMessage) (string, error) {
			calls = append(calls, "createMessage")
			return "", fmt.Errorf("must not be called")
		},
		createCampaignFn: func(ctx context.Context, campaign provider.NewCampaign) (string, error) {
			calls = append(calls, "createCampaign")
			return "", fmt.Errorf("must not be called")
		},
		listCampaignMessagesFn: func(ctx context.Context, campaignID string) ([]string, error) {
			calls = append(calls, "listLinks")
			return nil, nil
		},
		linkFn: func(ctx context.Context, campaignID, messageID string) (string, error) {
			calls = append(calls, "link")
			return "55", nil
		},
		setCampaignStatusFn: func(ctx context.Context, campaignID string, status domain.CampaignStatus) (domain.CampaignStatus, error) {
			calls = append(calls, "send")
			return domain.CampaignCompleted, nil
		},
	}

	runner, err := NewPushRunner(client, &fakePushRepo{}, &fakeAttemptRepo{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPushRunner() error = %v", err)
	}

	messageID := "21"
	campaignID := "7"
	push := runnerPush()
	push.Step = domain.StepCampaignCreated
	push.MessageID = &messageID
	push.CampaignID = &campaignID

	result, err := runner.Run(context.Background(), push)
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("result.Success = false, message %q", result.Message)
	}

	wantCalls := []string{"listLinks", "link", "send"}
	if len(calls) != len(wantCalls) {
		t.Fatalf("calls = %v, want %v", calls, wantCalls)
	}
	for i := range wantCalls {
		if calls[i] != wantCalls[i] {
			t.Fatalf("calls[%d] = %s, want %s", i, calls[i], wantCalls[i])
		}
	}
}

func TestPushRunnerResumeSkipsLinkWhenAlreadyLinked(t *testing.T) {
	t.Parallel()

	var linkCalled bool
	client := &fakeProviderClient{
		listCampaignMessagesFn: func(ctx context.Context, campaignID string) ([]string, error) {
			return []string{"21"}, nil
		},
		linkFn: func(ctx context.Context, campaignID, messageID string) (string, error) {
			linkCalled = true
			return "55", nil
		},
		setCampaignStatusFn: func(ctx context.Context, campaignID string, status domain.CampaignStatus) (domain.CampaignStatus, error) {
			return domain.CampaignCompleted, nil
		},
	}

	runner, err := NewPushRunner(client, &fakePushRepo{}, &fakeAttemptRepo{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPushRunner() error = %v", err)
	}

	messageID := "21"
	campaignID := "7"
	push := runnerPush()
	push.Step = domain.StepCampaignCreated
	push.MessageID = &messageID
	push.CampaignID = &campaignID

	result, err := runner.Run(context.Background(), push)
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("result.Success = false, message %q", result.Message)
	}
	if linkCalled {
		t.Fatal("link must be skipped when the pair is already linked")
	}
}

func TestPushRunnerValidationFailureMakesNoProviderCalls(t *testing.T) {
	t.Parallel()

	var called bool
	client := &fakeProviderClient{
		createMessageFn: func(ctx context.Context, msg provider.NewMessage) (string, error) {
			called = true
			return "21", nil
		},
	}

	runner, err := NewPushRunner(client, &fakePushRepo{}, &fakeAttemptRepo{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPushRunner() error = %v", err)
	}

	push := runnerPush()
	push.SenderEmail = "not-an-address"

	result, err := runner.Run(context.Background(), push)
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	if result.Success {
		t.Fatal("result.Success = true, want false")
	}
	if result.ErrorKind != provider.KindValidation {
		t.Fatalf("ErrorKind = %s, want VALIDATION", result.ErrorKind)
	}
	if called {
		t.Fatal("invalid push must not reach the provider")
	}
}

func TestPushRunnerPersistenceErrorAborts(t *testing.T) {
	t.Parallel()

	client := &fakeProviderClient{
		createMessageFn: func(ctx context.Context, msg provider.NewMessage) (string, error) { return "21", nil },
	}
	repo := &fakePushRepo{
		setStepHandleFn: func(ctx context.Context, id string, step domain.Step, handleID string) error {
			return fmt.Errorf("database gone")
		},
	}

	runner, err := NewPushRunner(client, repo, &fakeAttemptRepo{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPushRunner() error = %v", err)
	}

	_, err = runner.Run(context.Background(), runnerPush())
	if err == nil {
		t.Fatal("expected persistence error")
	}
}

type fakeProviderClient struct {
	listListsFn            func(ctx context.Context, limit, offset int) ([]domain.SubscriberList, int, error)
	listAllListsFn         func(ctx context.Context) ([]domain.SubscriberList, error)
	listAddressesFn        func(ctx context.Context) ([]domain.MailingAddress, error)
	createMessageFn        func(ctx context.Context, msg provider.NewMessage) (string, error)
	createCampaignFn       func(ctx context.Context, campaign provider.NewCampaign) (string, error)
	linkFn                 func(ctx context.Context, campaignID, messageID string) (string, error)
	listCampaignMessagesFn func(ctx context.Context, campaignID string) ([]string, error)
	setCampaignStatusFn    func(ctx context.Context, campaignID string, status domain.CampaignStatus) (domain.CampaignStatus, error)
}

func (f *fakeProviderClient) ListLists(ctx context.Context, limit, offset int) ([]domain.SubscriberList, int, error) {
	if f.listListsFn != nil {
		return f.listListsFn(ctx, limit, offset)
	}
	return nil, 0, nil
}

func (f *fakeProviderClient) ListAllLists(ctx context.Context) ([]domain.SubscriberList, error) {
	if f.listAllListsFn != nil {
		return f.listAllListsFn(ctx)
	}
	return nil, nil
}

func (f *fakeProviderClient) ListAddresses(ctx context.Context) ([]domain.MailingAddress, error) {
	if f.listAddressesFn != nil {
		return f.listAddressesFn(ctx)
	}
	return nil, nil
}

func (f *fakeProviderClient) CreateMessage(ctx context.Context, msg provider.NewMessage) (string, error) {
	if f.createMessageFn != nil {
		return f.createMessageFn(ctx, msg)
	}
	return "", fmt.Errorf("createMessage not stubbed")
}

func (f *fakeProviderClient) CreateCampaign(ctx context.Context, campaign provider.NewCampaign) (string, error) {
	if f.createCampaignFn != nil {
		return f.createCampaignFn(ctx, campaign)
	}
	return "", fmt.Errorf("createCampaign not stubbed")
}

func (f *fakeProviderClient) LinkMessageToCampaign(ctx context.Context, campaignID, messageID string) (string, error) {
	if f.linkFn != nil {
		return f.linkFn(ctx, campaignID, messageID)
	}
	return "", fmt.Errorf("link not stubbed")
}

func (f *fakeProviderClient) ListCampaignMessages(ctx context.Context, campaignID string) ([]string, error) {
	if f.listCampaignMessagesFn != nil {
		return f.listCampaignMessagesFn(ctx, campaignID)
	}
	return nil, nil
}

func (f *fakeProviderClient) SetCampaignStatus(ctx context.Context, campaignID string, status domain.CampaignStatus) (domain.CampaignStatus, error) {
	if f.setCampaignStatusFn != nil {
		return f.setCampaignStatusFn(ctx, campaignID, status)
	}
	return status, nil
}
