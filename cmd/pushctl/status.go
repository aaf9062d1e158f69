package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [id]",
	Short: "Show a push and its provider call history",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var resumeCmd = &cobra.Command{
	Use:   "resume [id]",
	Short: "Requeue a failed push from its last completed step",
	Args:  cobra.ExactArgs(1),
	RunE:  runResume,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a push that has not started running",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var push pushBody
	resp, err := client.R().
		SetResult(&push).
		Get("/v1/pushes/" + args[0])
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiError(resp)
	}

	fmt.Printf("push:     %s\n", push.ID)
	fmt.Printf("status:   %s\n", push.Status)
	fmt.Printf("step:     %s\n", push.Step)
	if push.MessageID != nil {
		fmt.Printf("message:  %s\n", *push.MessageID)
	}
	if push.CampaignID != nil {
		fmt.Printf("campaign: %s\n", *push.CampaignID)
	}
	if push.Error != nil {
		fmt.Printf("error:    [%s] %s\n", push.Error.Kind, push.Error.Message)
	}

	if len(push.Attempts) > 0 {
		fmt.Println("attempts:")
		for _, attempt := range push.Attempts {
			line := fmt.Sprintf("  %s  %s", attempt.CreatedAt, attempt.Step)
			if attempt.StatusCode != nil {
				line += fmt.Sprintf("  http=%d", *attempt.StatusCode)
			}
			if attempt.Error != nil {
				line += "  " + *attempt.Error
			} else {
				line += "  ok"
			}
			fmt.Println(line)
		}
	}
	return nil
}

func runResume(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var push pushBody
	resp, err := client.R().
		SetResult(&push).
		Post("/v1/pushes/" + args[0] + "/resume")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiError(resp)
	}

	fmt.Printf("push %s requeued from step %s\n", push.ID, push.Step)
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	resp, err := client.R().
		Post("/v1/pushes/" + args[0] + "/cancel")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiError(resp)
	}

	fmt.Printf("push %s canceled\n", args[0])
	return nil
}
