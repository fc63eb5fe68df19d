package platform

import (
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testConfigXML = `<?xml version="1.0"?>
<pfsense>
  <interfaces>
    <wan>
      <if>em0</if>
    </wan>
    <lan>
      <if>em1</if>
    </lan>
    <opt1>
      <if>ixl2</if>
    </opt1>
  </interfaces>
  <gateways>
    <latencyhigh>500</latencyhigh>
    <losshigh>20</losshigh>
    <gateway_item>
      <name>WAN_DHCP</name>
      <interface>wan</interface>
    </gateway_item>
    <gateway_item>
      <name>FIBER_GW</name>
      <interface>opt1</interface>
      <latencylow>50</latencylow>
      <latencyhigh>150</latencyhigh>
      <losslow>2</losslow>
      <losshigh>8</losshigh>
    </gateway_item>
  </gateways>
  <dyndnses>
    <dyndns>
      <type>custom</type>
      <interface>wan</interface>
      <id>0</id>
    </dyndns>
    <dyndns>
      <type>custom</type>
      <interface>opt1</interface>
      <id>1</id>
    </dyndns>
    <dyndns>
      <type>cloudflare</type>
      <interface>lan</interface>
      <id>2</id>
    </dyndns>
  </dyndnses>
</pfsense>
`

func newTestPlatform(t *testing.T) *PfSense {
	t.Helper()
	dir := t.TempDir()

	configPath := filepath.Join(dir, "config.xml")
	if err := os.WriteFile(configPath, []byte(testConfigXML), 0644); err != nil {
		t.Fatal(err)
	}

	p := NewPfSense()
	p.ConfigPath = configPath
	p.DpingerDir = dir
	p.CacheDir = dir
	return p
}

func TestGateways(t *testing.T) {
	p := newTestPlatform(t)

	gws, err := p.Gateways()
	if err != nil {
		t.Fatalf("Gateways: %v", err)
	}
	if len(gws) != 2 {
		t.Fatalf("got %d gateways, want 2", len(gws))
	}

	wan := gws[0]
	if wan.ID != "WAN_DHCP" || wan.PhysicalInterface != "em0" {
		t.Errorf("unexpected first gateway: %+v", wan)
	}
	// Inherits global latencyhigh/losshigh, shipped defaults for warn.
	if wan.Thresholds.LatencyCrit != 500 || wan.Thresholds.LossCrit != 20 {
		t.Errorf("unexpected crit thresholds: %+v", wan.Thresholds)
	}
	if wan.Thresholds.LatencyWarn != 200 || wan.Thresholds.LossWarn != 10 {
		t.Errorf("unexpected warn thresholds: %+v", wan.Thresholds)
	}

	fiber := gws[1]
	if fiber.PhysicalInterface != "ixl2" {
		t.Errorf("fiber physical interface = %s, want ixl2", fiber.PhysicalInterface)
	}
	if fiber.Thresholds.LatencyWarn != 50 || fiber.Thresholds.LatencyCrit != 150 ||
		fiber.Thresholds.LossWarn != 2 || fiber.Thresholds.LossCrit != 8 {
		t.Errorf("per-gateway thresholds not applied: %+v", fiber.Thresholds)
	}
}

func TestReadGatewayThresholds(t *testing.T) {
	p := newTestPlatform(t)

	th, err := p.ReadGatewayThresholds("FIBER_GW")
	if err != nil {
		t.Fatalf("ReadGatewayThresholds: %v", err)
	}
	if th.LossCrit != 8 {
		t.Errorf("LossCrit = %v, want 8", th.LossCrit)
	}

	if _, err := p.ReadGatewayThresholds("NOPE"); err == nil {
		t.Error("expected error for unknown gateway")
	}
}

func TestParseDpingerReport(t *testing.T) {
	tests := []struct {
		name    string
		report  string
		wantErr bool
		loss    float64
		latency float64
	}{
		{name: "nominal", report: "WAN_DHCP 5400 800 0\n", loss: 0, latency: 5.4},
		{name: "lossy", report: "WAN_DHCP 250000 90000 35", loss: 35, latency: 250},
		{name: "empty", report: "", wantErr: true},
		{name: "short", report: "WAN_DHCP 5400", wantErr: true},
		{name: "garbage latency", report: "WAN_DHCP abc 800 0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := parseDpingerReport(tt.report)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", s)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.LossPct != tt.loss || s.AvgLatencyMs != tt.latency {
				t.Errorf("got loss=%v latency=%v, want loss=%v latency=%v",
					s.LossPct, s.AvgLatencyMs, tt.loss, tt.latency)
			}
			if s.ProbesSent == 0 {
				t.Error("parsed report must mark probes as sent")
			}
		})
	}
}

func TestReadGatewaySample(t *testing.T) {
	p := newTestPlatform(t)

	sockPath := filepath.Join(p.DpingerDir, "dpinger_WAN_DHCP~8.8.8.8.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Write([]byte("WAN_DHCP 12000 3000 5\n"))
			conn.Close()
		}
	}()

	p.DialTimeout = time.Second
	sample, err := p.ReadGatewaySample("WAN_DHCP")
	if err != nil {
		t.Fatalf("ReadGatewaySample: %v", err)
	}
	if sample.AvgLatencyMs != 12 || sample.LossPct != 5 {
		t.Errorf("unexpected sample: %+v", sample)
	}

	if _, err := p.ReadGatewaySample("MISSING_GW"); err == nil {
		t.Error("expected error for gateway without socket")
	}
}

func TestWriteCacheEntry(t *testing.T) {
	p := newTestPlatform(t)

	gws, err := p.Gateways()
	if err != nil {
		t.Fatal(err)
	}
	wan := gws[0]
	addr := netip.MustParseAddr("203.0.113.7")

	if err := p.WriteCacheEntry(wan, addr, true); err != nil {
		t.Fatalf("WriteCacheEntry healthy: %v", err)
	}

	cachePath := filepath.Join(p.CacheDir, "dyndns_wancustom''0.cache")
	data, err := os.ReadFile(cachePath)
	if err != nil {
		t.Fatalf("cache file not written: %v", err)
	}
	if string(data) != "203.0.113.7" {
		t.Errorf("healthy cache content = %q, want bare address without newline", data)
	}

	if err := p.WriteCacheEntry(wan, addr, false); err != nil {
		t.Fatalf("WriteCacheEntry unhealthy: %v", err)
	}
	data, _ = os.ReadFile(cachePath)
	if string(data) != "203.0.113.7\n" {
		t.Errorf("unhealthy cache content = %q, want address with trailing newline", data)
	}
}

func TestWriteCacheEntryNoDyndnsEntry(t *testing.T) {
	p := newTestPlatform(t)

	gws, _ := p.Gateways()
	// lan has a dyndns entry but not of type custom; a gateway on em1
	// has no cache file to maintain.
	gw := gws[0]
	gw.PhysicalInterface = "em1"

	if err := p.WriteCacheEntry(gw, netip.MustParseAddr("203.0.113.7"), true); err == nil {
		t.Error("expected error for interface without custom dyndns entry")
	}
}

func TestIsPublic(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"203.0.113.7", true},
		{"2001:db8::1", true},
		{"127.0.0.1", false},
		{"10.1.2.3", false},
		{"172.16.0.1", false},
		{"192.168.1.1", false},
		{"169.254.1.1", false},
		{"fe80::1", false},
		{"fd00::1", false},
		{"::1", false},
		{"::", false},
	}

	for _, tt := range tests {
		if got := isPublic(netip.MustParseAddr(tt.addr)); got != tt.want {
			t.Errorf("isPublic(%s) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}
