package tui

import (
	"strings"
	"testing"

	gwmodel "github.com/user/gwdns/internal/model"
)

func testDashboard() *Dashboard {
	data := &DashboardData{
		RecordName:     "home.example.net",
		WatcherRunning: true,
		WatcherPID:     4242,
		Uptime:         "1h2m3s",
		Gateways: []gwmodel.GatewayStatus{
			{GatewayID: "WAN_DHCP", State: gwmodel.HealthOnline,
				Sample: gwmodel.RawSample{LossPct: 0, AvgLatencyMs: 11.5, ProbesSent: 10}},
			{GatewayID: "WANB_DHCP", State: gwmodel.HealthDown,
				Sample: gwmodel.RawSample{LossPct: 62, AvgLatencyMs: 8.1, ProbesSent: 10}},
		},
		AppliedIPs:  []string{"203.0.113.1"},
		LastUpdate:  "2026-08-23 10:00:00",
		UpdateCount: 7,
		Transitions: []TransitionInfo{
			{Gateway: "WANB_DHCP", Change: "online -> down", Time: "09:58:12"},
		},
	}
	return NewDashboard(dataMsg{Data: data}, 80, 24)
}

func TestDashboardView(t *testing.T) {
	out := testDashboard().View()

	for _, want := range []string{
		"gwdns - home.example.net",
		"WAN_DHCP",
		"WANB_DHCP",
		"203.0.113.1",
		"online -> down",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dashboard output missing %q", want)
		}
	}

	// Header and separators stay plain ASCII.
	if strings.Contains(out, "—") {
		t.Error("dashboard output contains an em-dash")
	}
}

func TestDashboardViewEmptyRecord(t *testing.T) {
	d := testDashboard()
	d.data.AppliedIPs = nil
	d.data.Gateways = nil
	d.data.Transitions = nil
	d.data.WatcherRunning = false

	out := d.View()
	if !strings.Contains(out, "(record empty)") {
		t.Error("empty record set not indicated")
	}
	if !strings.Contains(out, "stopped") {
		t.Error("stopped watcher not indicated")
	}
	if !strings.Contains(out, "no gateway data yet") {
		t.Error("missing gateway placeholder")
	}
}

func TestRenderHealthStates(t *testing.T) {
	tests := []struct {
		state string
		want  string
	}{
		{"online", "online"},
		{"warning", "warning"},
		{"down", "down"},
		{"unknown", "unknown"},
		{"bogus", "unknown"},
	}
	for _, tt := range tests {
		if got := RenderHealth(tt.state); !strings.Contains(got, tt.want) {
			t.Errorf("RenderHealth(%q) = %q, want it to contain %q", tt.state, got, tt.want)
		}
	}
}
