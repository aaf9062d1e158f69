package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Submit a newsletter push",
	RunE:  runPush,
}

var (
	pushListID         string
	pushCampaignName   string
	pushSubject        string
	pushHTMLFile       string
	pushTextFile       string
	pushSenderName     string
	pushSenderEmail    string
	pushReplyTo        string
	pushDraft          bool
	pushScheduleAt     string
	pushIdempotencyKey string
)

func init() {
	pushCmd.Flags().StringVar(&pushListID, "list", "", "Subscriber list id")
	pushCmd.Flags().StringVar(&pushCampaignName, "name", "", "Campaign name")
	pushCmd.Flags().StringVar(&pushSubject, "subject", "", "Email subject")
	pushCmd.Flags().StringVar(&pushHTMLFile, "html-file", "", "Path to the HTML body file")
	pushCmd.Flags().StringVar(&pushTextFile, "text-file", "", "Path to the plain text body file")
	pushCmd.Flags().StringVar(&pushSenderName, "sender-name", "", "Sender name (service default when empty)")
	pushCmd.Flags().StringVar(&pushSenderEmail, "sender-email", "", "Sender email (service default when empty)")
	pushCmd.Flags().StringVar(&pushReplyTo, "reply-to", "", "Reply-to address (service default when empty)")
	pushCmd.Flags().BoolVar(&pushDraft, "draft", false, "Stop after linking, leave the campaign unsent")
	pushCmd.Flags().StringVar(&pushScheduleAt, "schedule", "", "RFC3339 time to run the push (immediate when empty)")
	pushCmd.Flags().StringVar(&pushIdempotencyKey, "idempotency-key", "", "Idempotency key for safe retries")
	pushCmd.MarkFlagRequired("list")         //nolint:errcheck
	pushCmd.MarkFlagRequired("name")         //nolint:errcheck
	pushCmd.MarkFlagRequired("subject")      //nolint:errcheck
	pushCmd.MarkFlagRequired("html-file")    //nolint:errcheck
}

type createPushBody struct {
	IdempotencyKey *string `json:"idempotencyKey,omitempty"`
	ListID         string  `json:"listId"`
	CampaignName   string  `json:"campaignName"`
	Subject        string  `json:"subject"`
	HTMLContent    string  `json:"htmlContent"`
	TextContent    *string `json:"textContent,omitempty"`
	SenderName     string  `json:"senderName,omitempty"`
	SenderEmail    string  `json:"senderEmail,omitempty"`
	ReplyTo        *string `json:"replyTo,omitempty"`
	SendNow        bool    `json:"sendNow"`
	ScheduledAt    *string `json:"scheduledAt,omitempty"`
}

type pushBody struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	Step        string  `json:"step"`
	MessageID   *string `json:"messageId"`
	CampaignID  *string `json:"campaignId"`
	ScheduledAt *string `json:"scheduledAt"`
	Error       *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
	Attempts []struct {
		Step       string  `json:"step"`
		StatusCode *int    `json:"statusCode"`
		Error      *string `json:"error"`
		CreatedAt  string  `json:"createdAt"`
	} `json:"attempts"`
}

func runPush(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	html, err := os.ReadFile(pushHTMLFile)
	if err != nil {
		return fmt.Errorf("failed to read html file: %w", err)
	}

	body := createPushBody{
		ListID:       pushListID,
		CampaignName: pushCampaignName,
		Subject:      pushSubject,
		HTMLContent:  string(html),
		SenderName:   pushSenderName,
		SenderEmail:  pushSenderEmail,
		SendNow:      !pushDraft,
	}

	if pushTextFile != "" {
		text, err := os.ReadFile(pushTextFile)
		if err != nil {
			return fmt.Errorf("failed to read text file: %w", err)
		}
		textContent := string(text)
		body.TextContent = &textContent
	}
	if pushReplyTo != "" {
		body.ReplyTo = &pushReplyTo
	}
	if pushIdempotencyKey != "" {
		body.IdempotencyKey = &pushIdempotencyKey
	}
	if pushScheduleAt != "" {
		if _, err := time.Parse(time.RFC3339, pushScheduleAt); err != nil {
			return fmt.Errorf("schedule must be RFC3339: %w", err)
		}
		body.ScheduledAt = &pushScheduleAt
	}

	var created pushBody
	resp, err := client.R().
		SetBody(body).
		SetResult(&created).
		Post("/v1/pushes")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiError(resp)
	}

	fmt.Printf("push %s accepted (status %s)\n", created.ID, created.Status)
	if created.ScheduledAt != nil {
		fmt.Printf("scheduled for %s\n", *created.ScheduledAt)
	}
	return nil
}
