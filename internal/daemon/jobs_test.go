package daemon

import (
	"context"
	"fmt"
	"net/netip"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/gwdns/internal/model"
	"github.com/user/gwdns/internal/reconcile"
	"github.com/user/gwdns/internal/state"
	"github.com/user/gwdns/internal/util"
)

// fakeProbe serves scripted samples to the watch loop.
type fakeProbe struct {
	gateways  []model.Gateway
	samples   map[string]model.RawSample
	sampleErr map[string]error
}

func (f *fakeProbe) Gateways() ([]model.Gateway, error) { return f.gateways, nil }

func (f *fakeProbe) ReadGatewayThresholds(id string) (model.Thresholds, error) {
	for _, gw := range f.gateways {
		if gw.ID == id {
			return gw.Thresholds, nil
		}
	}
	return model.Thresholds{}, fmt.Errorf("gateway %s not found", id)
}

func (f *fakeProbe) ReadGatewaySample(id string) (model.RawSample, error) {
	if err := f.sampleErr[id]; err != nil {
		return model.RawSample{}, err
	}
	return f.samples[id], nil
}

func (f *fakeProbe) ListInterfaceAddresses(iface string) (model.InterfaceAddrs, error) {
	return model.InterfaceAddrs{}, nil
}

func (f *fakeProbe) WriteCacheEntry(gw model.Gateway, addr netip.Addr, healthy bool) error {
	return nil
}

func (f *fakeProbe) Notify(subject, message string) error { return nil }

var watchThresholds = model.Thresholds{
	LossWarn: 10, LossCrit: 30, LatencyWarn: 100, LatencyCrit: 300,
}

func onlineSample() model.RawSample {
	return model.RawSample{LossPct: 0, AvgLatencyMs: 5, ProbesSent: 10}
}

func downSample() model.RawSample {
	return model.RawSample{LossPct: 90, AvgLatencyMs: 5, ProbesSent: 10}
}

type watchEnv struct {
	daemon   *Daemon
	probe    *fakeProbe
	triggers []string
	fail     error
}

func newWatchEnv(t *testing.T) *watchEnv {
	t.Helper()

	probe := &fakeProbe{
		gateways: []model.Gateway{
			{ID: "GW_A", PhysicalInterface: "em0", Thresholds: watchThresholds},
			{ID: "GW_B", PhysicalInterface: "em1", Thresholds: watchThresholds},
		},
		samples: map[string]model.RawSample{
			"GW_A": onlineSample(),
			"GW_B": onlineSample(),
		},
	}

	dir := t.TempDir()
	cfg := util.DefaultConfig()
	cfg.DataDir = dir
	cfg.StateFile = filepath.Join(dir, "state.json")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	env := &watchEnv{probe: probe}
	env.daemon = &Daemon{
		config:    cfg,
		probe:     probe,
		store:     state.NewStore(cfg.StateFile),
		scheduler: NewScheduler(ctx),
		ctx:       ctx,
		cancel:    cancel,
	}
	env.daemon.trigger = func(ctx context.Context, reason string) error {
		env.triggers = append(env.triggers, reason)
		return env.fail
	}
	return env
}

func (e *watchEnv) tick(t *testing.T) {
	t.Helper()
	if err := e.daemon.runGatewayWatch(context.Background()); err != nil {
		t.Fatalf("watch tick: %v", err)
	}
}

func TestWatchFirstTickSeedsBaseline(t *testing.T) {
	env := newWatchEnv(t)

	env.tick(t)

	if len(env.triggers) != 0 {
		t.Errorf("first tick triggered reconciliation: %v", env.triggers)
	}
	statuses := env.daemon.GatewayStatuses()
	if len(statuses) != 2 || statuses[0].State != model.HealthOnline {
		t.Errorf("unexpected statuses after first tick: %+v", statuses)
	}
}

func TestWatchTriggersOncePerTick(t *testing.T) {
	env := newWatchEnv(t)
	env.tick(t)

	// Both gateways flip in the same tick: one reconciliation, not two.
	env.probe.samples["GW_A"] = downSample()
	env.probe.samples["GW_B"] = downSample()
	env.tick(t)

	if len(env.triggers) != 1 {
		t.Fatalf("got %d triggers, want 1", len(env.triggers))
	}
	if env.triggers[0] != "gateway-event" {
		t.Errorf("trigger reason = %q, want gateway-event", env.triggers[0])
	}
}

func TestWatchNoTriggerWhenStable(t *testing.T) {
	env := newWatchEnv(t)
	env.tick(t)
	env.tick(t)
	env.tick(t)

	if len(env.triggers) != 0 {
		t.Errorf("stable health vector triggered %d reconciliations", len(env.triggers))
	}
}

func TestWatchProbeErrorBecomesUnknown(t *testing.T) {
	env := newWatchEnv(t)
	env.tick(t)

	env.probe.sampleErr = map[string]error{"GW_A": fmt.Errorf("socket gone")}
	env.tick(t)

	if len(env.triggers) != 1 {
		t.Fatalf("Online -> Unknown must trigger, got %d triggers", len(env.triggers))
	}
	for _, st := range env.daemon.GatewayStatuses() {
		if st.GatewayID == "GW_A" && st.State != model.HealthUnknown {
			t.Errorf("GW_A state = %s, want unknown", st.State)
		}
		if st.GatewayID == "GW_B" && st.State != model.HealthOnline {
			t.Errorf("failed poll of GW_A must not affect GW_B: %s", st.State)
		}
	}
}

func TestWatchLockContentionRetriesNextTick(t *testing.T) {
	env := newWatchEnv(t)
	env.tick(t)

	env.probe.samples["GW_A"] = downSample()
	env.fail = reconcile.ErrAlreadyRunning
	env.tick(t)

	if len(env.triggers) != 1 {
		t.Fatalf("got %d triggers, want 1", len(env.triggers))
	}

	// Baseline was not advanced, so the still-changed vector re-triggers.
	env.fail = nil
	env.tick(t)
	if len(env.triggers) != 2 {
		t.Errorf("contended trigger not retried on next tick: %d triggers", len(env.triggers))
	}

	// Once the trigger succeeds the baseline advances and the loop settles.
	env.tick(t)
	if len(env.triggers) != 2 {
		t.Errorf("settled vector re-triggered: %d triggers", len(env.triggers))
	}
}

func TestWatchTriggerOutlivesPollInterval(t *testing.T) {
	env := newWatchEnv(t)
	env.tick(t)

	// A triggered run must get enough time for the full DNS retry
	// schedule (MaxRetries * (APITimeout + backoff)), not just one poll
	// interval.
	var deadline time.Time
	env.daemon.trigger = func(ctx context.Context, reason string) error {
		deadline, _ = ctx.Deadline()
		return nil
	}

	env.probe.samples["GW_A"] = downSample()
	env.tick(t)

	if deadline.IsZero() {
		t.Fatal("trigger context has no deadline")
	}
	cfg := env.daemon.config
	minimum := time.Duration(cfg.MaxRetries) * (cfg.APITimeout + cfg.RetryBackoff)
	if remaining := time.Until(deadline); remaining < minimum {
		t.Errorf("trigger deadline %s away, retry schedule needs at least %s", remaining, minimum)
	}
	if remaining := time.Until(deadline); remaining <= cfg.PollInterval {
		t.Errorf("trigger deadline %s away is bounded by the poll interval %s", remaining, cfg.PollInterval)
	}
}

func TestWatchRecoveryTriggers(t *testing.T) {
	env := newWatchEnv(t)
	env.tick(t)

	env.probe.samples["GW_A"] = downSample()
	env.tick(t)
	env.probe.samples["GW_A"] = onlineSample()
	env.tick(t)

	if len(env.triggers) != 2 {
		t.Errorf("got %d triggers, want 2 (down then recovery)", len(env.triggers))
	}
}
