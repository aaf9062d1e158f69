package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "List subscriber lists available at the provider",
	RunE:  runLists,
}

var addressesCmd = &cobra.Command{
	Use:   "addresses",
	Short: "List mailing addresses configured at the provider",
	RunE:  runAddresses,
}

type listsBody struct {
	Data []struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		SubscriberCount int    `json:"subscriberCount"`
	} `json:"data"`
}

type addressesBody struct {
	Data []struct {
		ID      string `json:"id"`
		Display string `json:"display"`
	} `json:"data"`
}

func runLists(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var body listsBody
	resp, err := client.R().
		SetResult(&body).
		Get("/v1/lists")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiError(resp)
	}

	for _, list := range body.Data {
		fmt.Printf("%-8s  %-40s  %d subscribers\n", list.ID, list.Name, list.SubscriberCount)
	}
	return nil
}

func runAddresses(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var body addressesBody
	resp, err := client.R().
		SetResult(&body).
		Get("/v1/addresses")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiError(resp)
	}

	for _, address := range body.Data {
		fmt.Printf("%-8s  %s\n", address.ID, address.Display)
	}
	return nil
}
