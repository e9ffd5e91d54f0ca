package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arvid/tenantdb/internal/cli"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "apply":
		cmdApply(os.Args[2:])
	case "list":
		cmdList(os.Args[2:])
	case "health":
		cmdHealth()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: tenantctl <command> [options]

Commands:
  apply   -f <manifest.yaml>   Provision tenants and grants from a manifest
  list    [-status <status>]   List tenants
  health                       Show pool health on the API instance

Environment:
  TENANTDB_API_URL   Router API base URL (default http://localhost:8090)
  TENANTDB_API_KEY   Admin API key (required)`)
}

func newClient() *cli.Client {
	apiKey := os.Getenv("TENANTDB_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "error: TENANTDB_API_KEY is required")
		os.Exit(1)
	}
	baseURL := os.Getenv("TENANTDB_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8090"
	}
	return cli.NewClient(baseURL, apiKey)
}

func cmdApply(args []string) {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	file := fs.String("f", "", "Tenant manifest file (required)")
	concurrency := fs.Int("concurrency", 4, "Concurrent provisioning operations")
	fs.Parse(args)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "error: -f is required")
		os.Exit(1)
	}

	manifest, err := cli.LoadManifest(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	client := newClient()
	ctx := context.Background()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)

	for _, t := range manifest.Tenants {
		g.Go(func() error {
			tenant, err := client.ProvisionTenant(ctx, t.ID, t.DisplayName)
			var apiErr *cli.APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
				// Already provisioned, grants still need converging.
				fmt.Printf("tenant %-24s already exists\n", t.ID)
			} else if err != nil {
				return fmt.Errorf("provision %s: %w", t.ID, err)
			} else {
				fmt.Printf("tenant %-24s %s\n", t.ID, tenant.Status)
			}

			for _, principal := range t.Grants {
				if err := client.CreateGrant(ctx, t.ID, principal); err != nil {
					return fmt.Errorf("grant %s -> %s: %w", principal, t.ID, err)
				}
				fmt.Printf("grant  %-24s %s\n", t.ID, principal)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("applied %d tenants\n", len(manifest.Tenants))
}

func cmdList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	status := fs.String("status", "", "Filter by status")
	fs.Parse(args)

	client := newClient()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tenants, err := client.ListTenants(ctx, *status)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%-24s %-16s %-16s %s\n", "ID", "STATUS", "STATE", "DISPLAY NAME")
	for _, t := range tenants {
		fmt.Printf("%-24s %-16s %-16s %s\n", t.ID, t.Status, t.ProvisionState, t.DisplayName)
	}
}

func cmdHealth() {
	client := newClient()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pools, err := client.PoolHealth(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if len(pools) == 0 {
		fmt.Println("no pools cached on this instance")
		return
	}

	fmt.Printf("%-24s %-12s %-8s %-8s %s\n", "TENANT", "HEALTH", "CONNS", "MAX", "LAST USED")
	for _, p := range pools {
		fmt.Printf("%-24s %-12s %-8d %-8d %s\n",
			p.TenantID, p.Health, p.AcquiredConns, p.MaxConns, p.LastUsedAt.Format(time.RFC3339))
	}
}
