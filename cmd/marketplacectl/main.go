// marketplacectl is the operator repair tool: it re-drives dispatch and
// sync for stuck orders and re-runs restaurant promotions.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/corray333/backend-labs/marketplace/pkg/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(&slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "marketplacectl",
		Usage: "repair tool for the marketplace services",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "storefront",
				Usage:   "order-of-record base URL",
				EnvVars: []string{"MARKETPLACE_STOREFRONT_URL"},
				Value:   "http://localhost:8081",
			},
			&cli.StringFlag{
				Name:    "fulfillment",
				Usage:   "fulfillment base URL",
				EnvVars: []string{"MARKETPLACE_FULFILLMENT_URL"},
				Value:   "http://localhost:8082",
			},
			&cli.StringFlag{
				Name:    "backoffice",
				Usage:   "backoffice base URL",
				EnvVars: []string{"MARKETPLACE_BACKOFFICE_URL"},
				Value:   "http://localhost:8084",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "per-request timeout",
				Value: 10 * time.Second,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "redispatch",
				Usage: "re-issue ready for an order so a missing dispatch record is created",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "order", Usage: "order reference", Required: true},
				},
				Action: redispatch,
			},
			{
				Name:  "resync",
				Usage: "revive the fulfillment outbox row of an order",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "order", Usage: "order reference", Required: true},
				},
				Action: resync,
			},
			{
				Name:  "sync-failures",
				Usage: "list status pushes still owed to the order-of-record",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dead-only", Usage: "only rows the reconciler gave up on"},
					&cli.IntFlag{Name: "limit", Value: 50},
				},
				Action: syncFailures,
			},
			{
				Name:  "promote",
				Usage: "approve a pending restaurant registration",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "pending registration id", Required: true},
					&cli.StringFlag{Name: "approver", Usage: "approving admin id", Required: true},
				},
				Action: promote,
			},
		},
	}
}
