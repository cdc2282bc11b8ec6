package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/corray333/backend-labs/marketplace/internal/dal/clients/fulfillment"
	"github.com/corray333/backend-labs/marketplace/internal/dal/clients/httpjson"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"github.com/urfave/cli/v2"
)

func redispatch(c *cli.Context) error {
	ref := c.String("order")
	client := httpjson.NewClient(c.String("storefront"), c.Duration("timeout"))

	reply, err := client.Do(
		c.Context,
		http.MethodPut,
		"/orders/"+url.PathEscape(ref)+"/update-status",
		map[string]string{"X-Actor-Role": string(orderstatus.ActorAdmin)},
		map[string]string{"status": orderstatus.Ready.String()},
	)
	if err != nil {
		return fmt.Errorf("redispatch %s: %w", ref, err)
	}
	if !reply.OK() {
		return fmt.Errorf("redispatch %s: status %d: %s", ref, reply.StatusCode, reply.Error)
	}

	fmt.Fprintf(c.App.Writer, "%s: dispatch triggered\n", ref)

	return nil
}

func resync(c *cli.Context) error {
	ref := c.String("order")
	client := fulfillment.NewClient(c.String("fulfillment"), c.Duration("timeout"))

	if err := client.Resync(c.Context, ref); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "%s: queued for sync\n", ref)

	return nil
}

func syncFailures(c *cli.Context) error {
	client := fulfillment.NewClient(c.String("fulfillment"), c.Duration("timeout"))

	messages, err := client.SyncFailures(c.Context, c.Bool("dead-only"), c.Int("limit"))
	if err != nil {
		return err
	}

	for _, m := range messages {
		state := "pending"
		if m.Dead() {
			state = "dead"
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\t%d/%d\t%s\n",
			m.OrderRef, m.Status, state, m.RetryCount, m.MaxRetries, m.LastError)
	}

	return nil
}

func promote(c *cli.Context) error {
	id := c.String("id")
	client := httpjson.NewClient(c.String("backoffice"), c.Duration("timeout"))

	reply, err := client.Do(
		c.Context,
		http.MethodPost,
		"/registrations/"+url.PathEscape(id)+"/approve",
		map[string]string{"X-Actor-ID": c.String("approver")},
		nil,
	)
	if err != nil {
		return fmt.Errorf("promote %s: %w", id, err)
	}
	if !reply.OK() {
		return fmt.Errorf("promote %s: status %d: %s", id, reply.StatusCode, reply.Error)
	}

	var result struct {
		Outcome string `json:"outcome"`
	}
	if err := json.Unmarshal(reply.Data, &result); err != nil {
		return fmt.Errorf("decode promotion: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "%s: %s\n", id, result.Outcome)

	return nil
}
