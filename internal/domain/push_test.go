package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestParseStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Status
		wantErr bool
	}{
		{name: "valid uppercase", input: "SENT", want: StatusSent},
		{name: "valid lowercase with spaces", input: " queued ", want: StatusQueued},
		{name: "drafted", input: "drafted", want: StatusDrafted},
		{name: "invalid", input: "unknown", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseStatusFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseStatusFromString() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseStatusFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseStatusFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStatusIsTerminal(t *testing.T) {
	t.Parallel()

	terminal := []Status{StatusSent, StatusDrafted, StatusFailed, StatusCanceled}
	for _, status := range terminal {
		if !status.IsTerminal() {
			t.Fatalf("IsTerminal() = false for %s, want true", status)
		}
	}

	active := []Status{StatusAccepted, StatusQueued, StatusRunning}
	for _, status := range active {
		if status.IsTerminal() {
			t.Fatalf("IsTerminal() = true for %s, want false", status)
		}
	}
}

func TestStepOrder(t *testing.T) {
	t.Parallel()

	ordered := []Step{StepInit, StepMessageCreated, StepCampaignCreated, StepLinked, StepSent}
	for i, step := range ordered {
		if step.Order() != i {
			t.Fatalf("Order() = %d for %s, want %d", step.Order(), step, i)
		}
	}
}

func TestParseStepFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseStepFromString(" campaign_created ")
	if err != nil {
		t.Fatalf("ParseStepFromString() unexpected error = %v", err)
	}
	if got != StepCampaignCreated {
		t.Fatalf("ParseStepFromString() = %s, want %s", got, StepCampaignCreated)
	}

	_, err = ParseStepFromString("DELIVERED")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseStepFromString() error = %v, want ErrValidation", err)
	}
}

func TestPushValidate(t *testing.T) {
	t.Parallel()

	base := Push{
		ListID:       "1",
		CampaignName: "October Digest",
		Subject:      "What's new in October",
		HTMLContent:  "<h1>Hello</h1>",
		SenderName:   "News Team",
		SenderEmail:  "news@example.com",
		SendNow:      true,
	}

	tests := []struct {
		name    string
		mutate  func(*Push)
		wantErr bool
	}{
		{
			name: "valid push",
			mutate: func(p *Push) {
				// keep base
			},
		},
		{
			name: "missing list id",
			mutate: func(p *Push) {
				p.ListID = " "
			},
			wantErr: true,
		},
		{
			name: "missing subject",
			mutate: func(p *Push) {
				p.Subject = ""
			},
			wantErr: true,
		},
		{
			name: "missing html content",
			mutate: func(p *Push) {
				p.HTMLContent = ""
			},
			wantErr: true,
		},
		{
			name: "malformed sender email",
			mutate: func(p *Push) {
				p.SenderEmail = "not-an-address"
			},
			wantErr: true,
		},
		{
			name: "sender email with display name",
			mutate: func(p *Push) {
				p.SenderEmail = "News Team <news@example.com>"
			},
			wantErr: true,
		},
		{
			name: "malformed reply to",
			mutate: func(p *Push) {
				replyTo := "nope@"
				p.ReplyTo = &replyTo
			},
			wantErr: true,
		},
		{
			name: "valid reply to",
			mutate: func(p *Push) {
				replyTo := "replies@example.com"
				p.ReplyTo = &replyTo
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			push := base
			tt.mutate(&push)

			err := push.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestPushValidateReportsAllMissingFields(t *testing.T) {
	t.Parallel()

	push := Push{}
	err := push.Validate()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}

	for _, field := range []string{"listId", "campaignName", "subject", "htmlContent", "senderName", "senderEmail"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("Validate() error %q does not mention %s", err.Error(), field)
		}
	}
}

func TestCampaignStatusCode(t *testing.T) {
	t.Parallel()

	if CampaignCompleted.Code() != 5 {
		t.Fatalf("Code() = %d, want 5", CampaignCompleted.Code())
	}
	if CampaignDraft.Code() != 0 {
		t.Fatalf("Code() = %d, want 0", CampaignDraft.Code())
	}
	if !CampaignCompleted.IsValid() {
		t.Fatal("IsValid() = false for COMPLETED, want true")
	}
	if CampaignStatus(9).IsValid() {
		t.Fatal("IsValid() = true for 9, want false")
	}
}
