// Package reconcile computes the desired healthy-IP set and drives the
// idempotent DNS/cache update.
package reconcile

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"time"

	"github.com/user/gwdns/internal/dns"
	"github.com/user/gwdns/internal/health"
	"github.com/user/gwdns/internal/model"
	"github.com/user/gwdns/internal/platform"
	"github.com/user/gwdns/internal/state"
	"github.com/user/gwdns/internal/storage"
	"github.com/user/gwdns/internal/util"
)

// Options control a single reconciliation run.
type Options struct {
	ForceUpdate bool
	IPv4Only    bool
	IPv6Only    bool
	DryRun      bool
	Reason      string
}

// Result reports what a run decided and applied.
type Result struct {
	Applied       bool
	HealthyIPs    []netip.Addr
	GatewayHealth map[string]model.HealthState
}

// Engine is the reconciliation engine. A run re-reads live gateway health
// and interface addressing, diffs the desired healthy-IP set against the
// persisted last-applied state, and replaces the DNS record when needed.
type Engine struct {
	cfg    *util.Config
	probe  platform.Probe
	client *dns.Client
	store  *state.Store

	// LockTimeout bounds how long a run waits for the exclusive lock
	// before reporting ErrAlreadyRunning.
	LockTimeout time.Duration

	history *storage.HistoryStorage
}

// New creates an engine.
func New(cfg *util.Config, probe platform.Probe, client *dns.Client, store *state.Store) *Engine {
	return &Engine{
		cfg:         cfg,
		probe:       probe,
		client:      client,
		store:       store,
		LockTimeout: 2 * time.Second,
	}
}

// SetHistory attaches optional run/transition history recording.
func (e *Engine) SetHistory(h *storage.HistoryStorage) {
	e.history = h
}

// evaluation is the per-gateway outcome of one run.
type evaluation struct {
	gateway model.Gateway
	state   model.HealthState
	addrs   model.InterfaceAddrs
}

// Run executes one reconciliation. Mutual exclusion is mandatory: the
// run holds an exclusive file lock from before the state read until the
// state file has been durably rewritten.
func (e *Engine) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.IPv4Only && opts.IPv6Only {
		return nil, fmt.Errorf("ipv4only and ipv6only are mutually exclusive")
	}
	if opts.Reason == "" {
		opts.Reason = "manual"
	}

	lock, err := acquireLock(e.cfg.LockFile, e.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	util.Info("Reconciliation started (reason: %s)", opts.Reason)

	prev, err := e.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	evals, err := e.evaluateGateways()
	if err != nil {
		return nil, err
	}

	desired := e.desiredHealthyIPs(evals, opts)
	desiredStrings := addrStrings(desired)

	currentHealth := make(map[string]model.HealthState, len(evals))
	for _, ev := range evals {
		currentHealth[ev.gateway.ID] = ev.state
		util.Debug("Gateway %s: %s", ev.gateway.ID, ev.state)
	}

	setChanged := !equalStringSets(desiredStrings, prev.HealthyIPs)
	dnsRequired := opts.ForceUpdate || setChanged

	result := &Result{
		HealthyIPs:    desired,
		GatewayHealth: currentHealth,
	}

	if opts.DryRun {
		if dnsRequired {
			util.Info("Dry run: would replace record %s with %v", e.cfg.RecordName, desiredStrings)
		} else {
			util.Info("Dry run: no DNS change needed (current set %v)", desiredStrings)
		}
		e.recordRun(opts, result)
		return result, nil
	}

	if dnsRequired {
		v4, v6 := splitFamilies(desired)
		if err := e.client.ReplaceRecords(ctx, v4, v6); err != nil {
			e.recordRun(opts, result)
			return nil, fmt.Errorf("dns update (reason: %s): %w", opts.Reason, err)
		}

		prev.HealthyIPs = desiredStrings
		prev.UpdatedAt = time.Now().UTC()
		result.Applied = true
		util.Info("DNS record %s replaced with %v", e.cfg.RecordName, desiredStrings)

		if err := e.probe.Notify("DynDNS Gateway Update",
			fmt.Sprintf("DynDNS for %s updated.\nHealthy IPs: %v", e.cfg.RecordName, desiredStrings)); err != nil {
			util.Warn("Notification failed: %v", err)
		}
	} else {
		util.Info("No DNS change needed for %s", e.cfg.RecordName)
	}

	// The cache encoding stays live even when the DNS content is
	// unchanged: one entry per gateway address, reflecting the health
	// evaluated this run.
	e.writeCacheEntries(evals)

	prev.GatewayHealth = currentHealth
	if err := e.store.Save(prev); err != nil {
		return nil, fmt.Errorf("persist state: %w", err)
	}

	e.recordRun(opts, result)
	util.Info("Reconciliation finished (applied=%v)", result.Applied)
	return result, nil
}

// evaluateGateways classifies every configured gateway and enumerates its
// interface addresses. Per-gateway probe failures degrade that gateway to
// unknown; they never abort the run.
func (e *Engine) evaluateGateways() ([]evaluation, error) {
	gws, err := e.probe.Gateways()
	if err != nil {
		return nil, fmt.Errorf("enumerate gateways: %w", err)
	}

	allowed := make(map[string]bool, len(e.cfg.Interfaces))
	for _, iface := range e.cfg.Interfaces {
		allowed[iface] = true
	}

	var evals []evaluation
	for _, gw := range gws {
		if len(allowed) > 0 && !allowed[gw.PhysicalInterface] {
			continue
		}

		ev := evaluation{gateway: gw, state: model.HealthUnknown}

		sample, err := e.probe.ReadGatewaySample(gw.ID)
		if err != nil {
			util.Warn("No sample for gateway %s, treating as unknown: %v", gw.ID, err)
		} else {
			ev.state = health.Classify(sample, gw.Thresholds)
		}

		addrs, err := e.probe.ListInterfaceAddresses(gw.PhysicalInterface)
		if err != nil {
			// A healthy gateway without enumerable addresses simply
			// contributes nothing this run; it is not down.
			util.Warn("Cannot enumerate addresses on %s: %v", gw.PhysicalInterface, err)
		} else {
			ev.addrs = addrs
		}

		evals = append(evals, ev)
	}

	return evals, nil
}

// desiredHealthyIPs is the union of addresses on healthy gateways,
// filtered by the family options, sorted for stable comparison.
func (e *Engine) desiredHealthyIPs(evals []evaluation, opts Options) []netip.Addr {
	var out []netip.Addr
	for _, ev := range evals {
		if !health.IsHealthy(ev.state, e.cfg.WarningIsHealthy) {
			continue
		}
		if !opts.IPv6Only {
			out = append(out, ev.addrs.V4...)
		}
		if !opts.IPv4Only {
			out = append(out, ev.addrs.V6...)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func (e *Engine) writeCacheEntries(evals []evaluation) {
	for _, ev := range evals {
		healthy := health.IsHealthy(ev.state, e.cfg.WarningIsHealthy)
		for _, addr := range append(append([]netip.Addr{}, ev.addrs.V4...), ev.addrs.V6...) {
			if err := e.probe.WriteCacheEntry(ev.gateway, addr, healthy); err != nil {
				util.Warn("Cache entry for %s (%s): %v", addr, ev.gateway.ID, err)
			}
		}
	}
}

func (e *Engine) recordRun(opts Options, result *Result) {
	if e.history == nil {
		return
	}
	rec := &model.UpdateRecord{
		Reason:     opts.Reason,
		Applied:    result.Applied,
		DryRun:     opts.DryRun,
		HealthyIPs: addrStrings(result.HealthyIPs),
		Timestamp:  time.Now().UTC(),
	}
	if err := e.history.SaveUpdate(rec); err != nil {
		util.Warn("History write failed: %v", err)
	}
}

func splitFamilies(addrs []netip.Addr) (v4, v6 []netip.Addr) {
	for _, a := range addrs {
		if a.Is4() {
			v4 = append(v4, a)
		} else {
			v6 = append(v6, a)
		}
	}
	return v4, v6
}

func addrStrings(addrs []netip.Addr) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}

func equalStringSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if !set[s] {
			return false
		}
	}
	return true
}
