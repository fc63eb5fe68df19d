package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/gwdns/internal/dns"
	"github.com/user/gwdns/internal/platform"
	"github.com/user/gwdns/internal/reconcile"
	"github.com/user/gwdns/internal/state"
	"github.com/user/gwdns/internal/storage"
	"github.com/user/gwdns/internal/util"
)

var (
	updateDryRun   bool
	updateForce    bool
	updateIPv4Only bool
	updateIPv6Only bool
	updateQuiet    bool
	updateReason   string
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Run one reconciliation now",
	Long: `Evaluate gateway health, compute the healthy address set, and update
the DNS record if it differs from the last applied set.

Examples:
  gwdns update
  gwdns update --dry-run
  gwdns update --force-update --ipv4only`,
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().BoolVarP(&updateDryRun, "dry-run", "n", false,
		"Report what would change without touching DNS, cache, or state")
	updateCmd.Flags().BoolVarP(&updateForce, "force-update", "f", false,
		"Push the record even when the address set is unchanged")
	updateCmd.Flags().BoolVar(&updateIPv4Only, "ipv4only", false,
		"Publish only IPv4 addresses")
	updateCmd.Flags().BoolVar(&updateIPv6Only, "ipv6only", false,
		"Publish only IPv6 addresses")
	updateCmd.Flags().BoolVarP(&updateQuiet, "quiet", "q", false,
		"Log warnings and errors only")
	updateCmd.Flags().StringVar(&updateReason, "reason", "cli",
		"Reason tag recorded in update history")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	if updateQuiet {
		util.GetLogger().SetLevel(util.LevelWarn)
	}

	probe, err := platform.New(cfg)
	if err != nil {
		return err
	}

	engine := reconcile.New(cfg, probe, dns.NewClient(cfg), state.NewStore(cfg.StateFile))

	// History is best-effort for one-shot runs; a broken database must
	// not block a DNS update.
	if db, err := storage.Initialize(cfg.DataDir); err == nil {
		defer db.Close()
		engine.SetHistory(storage.NewHistoryStorage(db))
	} else {
		util.Warn("History unavailable: %v", err)
	}

	result, err := engine.Run(context.Background(), reconcile.Options{
		ForceUpdate: updateForce,
		IPv4Only:    updateIPv4Only,
		IPv6Only:    updateIPv6Only,
		DryRun:      updateDryRun,
		Reason:      updateReason,
	})
	if errors.Is(err, reconcile.ErrAlreadyRunning) {
		return fmt.Errorf("another reconciliation is in progress, try again shortly")
	}
	if err != nil {
		return err
	}

	ips := make([]string, 0, len(result.HealthyIPs))
	for _, a := range result.HealthyIPs {
		ips = append(ips, a.String())
	}
	set := strings.Join(ips, ", ")
	if set == "" {
		set = "(empty)"
	}

	switch {
	case updateDryRun:
		fmt.Printf("Dry run: healthy set for %s would be %s\n", cfg.RecordName, set)
	case result.Applied:
		fmt.Printf("Record %s updated: %s\n", cfg.RecordName, set)
	default:
		fmt.Printf("Record %s already current: %s\n", cfg.RecordName, set)
	}

	return nil
}
