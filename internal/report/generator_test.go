package report

import (
	"strings"
	"testing"
	"time"

	"github.com/user/gwdns/internal/model"
	"github.com/user/gwdns/internal/storage"
	"github.com/user/gwdns/internal/util"
)

func seededGenerator(t *testing.T) (*Generator, time.Time) {
	t.Helper()

	dir := t.TempDir()
	db, err := storage.Initialize(dir)
	if err != nil {
		t.Fatalf("initialize storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hist := storage.NewHistoryStorage(db)
	base := time.Now().Add(-1 * time.Hour)

	updates := []model.UpdateRecord{
		{Reason: "cli", Applied: true, HealthyIPs: []string{"203.0.113.1", "203.0.113.2"}, Timestamp: base},
		{Reason: "gateway-event", Applied: true, HealthyIPs: []string{"203.0.113.2"}, Timestamp: base.Add(10 * time.Minute)},
		{Reason: "scheduled", Applied: false, HealthyIPs: []string{"203.0.113.2"}, Timestamp: base.Add(20 * time.Minute)},
		{Reason: "cli", Applied: false, DryRun: true, HealthyIPs: []string{"203.0.113.2"}, Timestamp: base.Add(30 * time.Minute)},
	}
	for i := range updates {
		if err := hist.SaveUpdate(&updates[i]); err != nil {
			t.Fatalf("save update: %v", err)
		}
	}

	transitions := []model.TransitionRecord{
		{GatewayID: "WAN_DHCP", PrevState: model.HealthOnline, NewState: model.HealthDown, LossPct: 45, LatencyMs: 12, Timestamp: base.Add(9 * time.Minute)},
		{GatewayID: "WAN_DHCP", PrevState: model.HealthDown, NewState: model.HealthOnline, LossPct: 0, LatencyMs: 11, Timestamp: base.Add(40 * time.Minute)},
	}
	for i := range transitions {
		if err := hist.SaveTransition(&transitions[i]); err != nil {
			t.Fatalf("save transition: %v", err)
		}
	}

	cfg := util.DefaultConfig()
	cfg.DataDir = dir
	cfg.RecordName = "home.example.net"

	return NewGenerator(db, cfg), base
}

func TestGenerateCountsAndCurrentIPs(t *testing.T) {
	gen, base := seededGenerator(t)

	data, err := gen.Generate(Options{Since: base.Add(-time.Minute), Until: time.Now()})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(data.Updates) != 4 {
		t.Errorf("got %d updates, want 4", len(data.Updates))
	}
	if data.AppliedCount != 2 {
		t.Errorf("AppliedCount = %d, want 2", data.AppliedCount)
	}
	if data.DryRunCount != 1 {
		t.Errorf("DryRunCount = %d, want 1", data.DryRunCount)
	}
	if len(data.DownEvents) != 1 {
		t.Errorf("got %d down events, want 1", len(data.DownEvents))
	}
	if data.FlapCounts["WAN_DHCP"] != 2 {
		t.Errorf("FlapCounts[WAN_DHCP] = %d, want 2", data.FlapCounts["WAN_DHCP"])
	}

	// Newest applied non-dry run wins, ignoring the later no-op and dry runs.
	want := []string{"203.0.113.2"}
	if len(data.CurrentIPs) != 1 || data.CurrentIPs[0] != want[0] {
		t.Errorf("CurrentIPs = %v, want %v", data.CurrentIPs, want)
	}
}

func TestGenerateSinceFilter(t *testing.T) {
	gen, base := seededGenerator(t)

	data, err := gen.Generate(Options{Since: base.Add(15 * time.Minute), Until: time.Now()})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(data.Updates) != 2 {
		t.Errorf("got %d updates in window, want 2", len(data.Updates))
	}
	if len(data.Transitions) != 1 {
		t.Errorf("got %d transitions in window, want 1", len(data.Transitions))
	}
}

func TestFormatMarkdown(t *testing.T) {
	gen, base := seededGenerator(t)

	data, err := gen.Generate(Options{Since: base.Add(-time.Minute), Until: time.Now()})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	md := FormatMarkdown(data)
	for _, want := range []string{
		"# gwdns Report",
		"home.example.net",
		"## Health Transitions",
		"online → down",
		"## Update Runs",
		"gateway-event",
		"```mermaid",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestGenerateHealthTimelineEmpty(t *testing.T) {
	if out := GenerateHealthTimeline("WAN_DHCP", nil); out != "" {
		t.Errorf("timeline for no transitions should be empty, got %q", out)
	}
}
