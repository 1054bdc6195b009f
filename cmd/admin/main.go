// Read-only diagnostics over the relay store: the queries the old one-off
// scripts ran, consolidated into one CLI. Never writes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/kitchenhub/order-relay/internal/config"
	"github.com/kitchenhub/order-relay/internal/postgres"
	"github.com/kitchenhub/order-relay/internal/relay"
)

func main() {
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		fatal("db connect: %v", err)
	}
	defer db.Close()

	registry := &relay.RegistryRepo{DB: db}
	handshakes := &relay.HandshakeRepo{DB: db}
	orders := &relay.OrderRepo{DB: db}

	switch os.Args[1] {
	case "restaurants":
		rs, err := registry.ListRestaurants(ctx)
		if err != nil {
			fatal("list restaurants: %v", err)
		}
		tw := newTab()
		fmt.Fprintln(tw, "UID\tWEBSITE_ID\tNAME\tACTIVE\tCREATED")
		for _, r := range rs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", r.UID, r.WebsiteRestaurantID, r.Name, r.IsActive, r.CreatedAt.Format(time.RFC3339))
		}
		tw.Flush()

	case "mappings":
		fs := flag.NewFlagSet("mappings", flag.ExitOnError)
		websiteID := fs.String("website-id", "", "filter by website_restaurant_id")
		_ = fs.Parse(os.Args[2:])

		ms, err := registry.ListMappings(ctx, *websiteID)
		if err != nil {
			fatal("list mappings: %v", err)
		}
		tw := newTab()
		fmt.Fprintln(tw, "WEBSITE_ID\tRESTAURANT_UID\tACTIVE\tLAST_HANDSHAKE\tHANDSHAKE_REQUEST")
		for _, m := range ms {
			hs := "-"
			if m.HandshakeRequestID != nil {
				hs = *m.HandshakeRequestID
			}
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", m.WebsiteRestaurantID, m.RestaurantUID, m.IsActive, m.LastHandshake.Format(time.RFC3339), hs)
		}
		tw.Flush()

	case "handshakes":
		fs := flag.NewFlagSet("handshakes", flag.ExitOnError)
		websiteID := fs.String("website-id", "", "filter by website_restaurant_id")
		status := fs.String("status", "", "filter by status")
		_ = fs.Parse(os.Args[2:])

		hsList, err := handshakes.List(ctx, *websiteID, relay.HandshakeStatus(*status))
		if err != nil {
			fatal("list handshakes: %v", err)
		}
		tw := newTab()
		fmt.Fprintln(tw, "ID\tWEBSITE_ID\tSTATUS\tTARGET\tREQUESTER_IP\tEXPIRES")
		for _, h := range hsList {
			target := h.TargetRestaurantUID
			if target == "" {
				target = "(broadcast)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", h.ID, h.WebsiteRestaurantID, h.Status, target, h.RequesterIP, h.ExpiresAt.Format(time.RFC3339))
		}
		tw.Flush()

	case "orders":
		fs := flag.NewFlagSet("orders", flag.ExitOnError)
		restaurantUID := fs.String("restaurant-uid", "", "filter by restaurant_uid")
		websiteID := fs.String("website-id", "", "filter by website_restaurant_id")
		_ = fs.Parse(os.Args[2:])

		var (
			list []relay.Order
			err  error
		)
		switch {
		case *restaurantUID != "":
			list, err = orders.ListByRestaurant(ctx, *restaurantUID)
		case *websiteID != "":
			list, err = orders.ListByWebsite(ctx, *websiteID)
		default:
			fatal("orders requires -restaurant-uid or -website-id")
		}
		if err != nil {
			fatal("list orders: %v", err)
		}
		tw := newTab()
		fmt.Fprintln(tw, "ID\tNUMBER\tSTATUS\tAMOUNT\tRESTAURANT_UID\tWEBSITE_ID\tIDEMPOTENCY_KEY")
		for _, o := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", o.ID, o.OrderNumber, o.Status, o.AmountDisplay, o.RestaurantUID, o.WebsiteRestaurantID, o.IdempotencyKey)
		}
		tw.Flush()

	default:
		usage()
		os.Exit(2)
	}
}

func newTab() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: admin <command> [flags]

commands:
  restaurants                         list registered restaurants
  mappings   [-website-id ID]         list website->restaurant mappings
  handshakes [-website-id ID] [-status S]  list handshake requests
  orders     -restaurant-uid UID | -website-id ID  list relayed orders`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
