package platform

import (
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/user/gwdns/internal/model"
)

// pfSense default monitoring thresholds, applied when neither the global
// gateway settings nor the gateway item override them. These match the
// values the GUI shows for an unconfigured gateway.
const (
	defaultLatencyWarn = 200
	defaultLatencyCrit = 500
	defaultLossWarn    = 10
	defaultLossCrit    = 20
)

// PfSense reads gateway state from a pfSense router: config.xml for
// gateways, interfaces and dyndns entries, and the dpinger control
// sockets for live monitoring samples.
type PfSense struct {
	ConfigPath  string
	DpingerDir  string
	CacheDir    string
	PHPBin      string
	DialTimeout time.Duration

	mu   sync.Mutex
	conf *pfConfig
}

// NewPfSense creates a pfSense platform probe with standard paths.
func NewPfSense() *PfSense {
	return &PfSense{
		ConfigPath:  "/conf/config.xml",
		DpingerDir:  "/var/run",
		CacheDir:    "/conf",
		PHPBin:      "/usr/local/bin/php",
		DialTimeout: 2 * time.Second,
	}
}

// pfConfig mirrors the slice of /conf/config.xml this tool needs.
type pfConfig struct {
	XMLName  xml.Name `xml:"pfsense"`
	Gateways struct {
		LatencyLow  string        `xml:"latencylow"`
		LatencyHigh string        `xml:"latencyhigh"`
		LossLow     string        `xml:"losslow"`
		LossHigh    string        `xml:"losshigh"`
		Items       []gatewayItem `xml:"gateway_item"`
	} `xml:"gateways"`
	Interfaces struct {
		Entries []ifaceEntry `xml:",any"`
	} `xml:"interfaces"`
	DynDNSes struct {
		Entries []dyndnsEntry `xml:"dyndns"`
	} `xml:"dyndnses"`
}

type gatewayItem struct {
	Name        string `xml:"name"`
	Interface   string `xml:"interface"`
	LatencyLow  string `xml:"latencylow"`
	LatencyHigh string `xml:"latencyhigh"`
	LossLow     string `xml:"losslow"`
	LossHigh    string `xml:"losshigh"`
}

// ifaceEntry captures one <interfaces> child; the element name is the
// logical interface (wan, lan, opt1, ...).
type ifaceEntry struct {
	XMLName xml.Name
	If      string `xml:"if"`
}

type dyndnsEntry struct {
	Type      string `xml:"type"`
	Interface string `xml:"interface"`
	ID        string `xml:"id"`
}

// load parses config.xml. The parse is re-done on every call so that GUI
// edits to thresholds are picked up without a restart; the result is also
// retained for cache-path resolution.
func (p *PfSense) load() (*pfConfig, error) {
	data, err := os.ReadFile(p.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p.ConfigPath, err)
	}

	var conf pfConfig
	if err := xml.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.ConfigPath, err)
	}

	p.mu.Lock()
	p.conf = &conf
	p.mu.Unlock()

	return &conf, nil
}

func (p *PfSense) cached() (*pfConfig, error) {
	p.mu.Lock()
	conf := p.conf
	p.mu.Unlock()
	if conf != nil {
		return conf, nil
	}
	return p.load()
}

// Gateways enumerates gateway_item entries, resolving each logical
// interface to its physical device.
func (p *PfSense) Gateways() ([]model.Gateway, error) {
	conf, err := p.load()
	if err != nil {
		return nil, err
	}

	physical := physicalByLogical(conf)

	var gws []model.Gateway
	for _, item := range conf.Gateways.Items {
		if item.Name == "" {
			continue
		}
		gws = append(gws, model.Gateway{
			ID:                item.Name,
			PhysicalInterface: physical[item.Interface],
			Thresholds:        thresholdsFor(conf, item),
		})
	}
	return gws, nil
}

// ReadGatewayThresholds re-reads the thresholds for one gateway.
func (p *PfSense) ReadGatewayThresholds(gatewayID string) (model.Thresholds, error) {
	conf, err := p.load()
	if err != nil {
		return model.Thresholds{}, err
	}
	for _, item := range conf.Gateways.Items {
		if item.Name == gatewayID {
			return thresholdsFor(conf, item), nil
		}
	}
	return model.Thresholds{}, fmt.Errorf("gateway %s not found in %s", gatewayID, p.ConfigPath)
}

func thresholdsFor(conf *pfConfig, item gatewayItem) model.Thresholds {
	return model.Thresholds{
		LatencyWarn: pickFloat(item.LatencyLow, conf.Gateways.LatencyLow, defaultLatencyWarn),
		LatencyCrit: pickFloat(item.LatencyHigh, conf.Gateways.LatencyHigh, defaultLatencyCrit),
		LossWarn:    pickFloat(item.LossLow, conf.Gateways.LossLow, defaultLossWarn),
		LossCrit:    pickFloat(item.LossHigh, conf.Gateways.LossHigh, defaultLossCrit),
	}
}

// pickFloat resolves a threshold: per-gateway value, then the global
// gateway settings, then the shipped default.
func pickFloat(item, global string, def float64) float64 {
	for _, s := range []string{item, global} {
		if s == "" {
			continue
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return def
}

func physicalByLogical(conf *pfConfig) map[string]string {
	m := make(map[string]string)
	for _, e := range conf.Interfaces.Entries {
		if e.If != "" {
			m[e.XMLName.Local] = e.If
		}
	}
	return m
}

func logicalByPhysical(conf *pfConfig) map[string]string {
	m := make(map[string]string)
	for _, e := range conf.Interfaces.Entries {
		if e.If != "" {
			m[e.If] = e.XMLName.Local
		}
	}
	return m
}

func dyndnsIDByLogical(conf *pfConfig) map[string]string {
	m := make(map[string]string)
	for _, e := range conf.DynDNSes.Entries {
		if e.Type == "custom" && e.Interface != "" && e.ID != "" {
			m[e.Interface] = e.ID
		}
	}
	return m
}

// ReadGatewaySample reads the dpinger control socket for a gateway.
// dpinger writes one report line per connection:
//
//	<name> <latency_us> <stddev_us> <loss_pct>
func (p *PfSense) ReadGatewaySample(gatewayID string) (model.RawSample, error) {
	pattern := filepath.Join(p.DpingerDir, fmt.Sprintf("dpinger_%s~*.sock", gatewayID))
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return model.RawSample{}, fmt.Errorf("no dpinger socket for gateway %s", gatewayID)
	}

	conn, err := net.DialTimeout("unix", matches[0], p.DialTimeout)
	if err != nil {
		return model.RawSample{}, fmt.Errorf("dial dpinger socket: %w", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(p.DialTimeout))

	data, err := io.ReadAll(io.LimitReader(conn, 256))
	if err != nil {
		return model.RawSample{}, fmt.Errorf("read dpinger socket: %w", err)
	}

	return parseDpingerReport(string(data))
}

func parseDpingerReport(report string) (model.RawSample, error) {
	fields := strings.Fields(strings.TrimSpace(report))
	if len(fields) < 4 {
		return model.RawSample{}, fmt.Errorf("malformed dpinger report %q", report)
	}

	latencyUs, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return model.RawSample{}, fmt.Errorf("dpinger latency %q: %w", fields[1], err)
	}
	stddevUs, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return model.RawSample{}, fmt.Errorf("dpinger stddev %q: %w", fields[2], err)
	}
	lossPct, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return model.RawSample{}, fmt.Errorf("dpinger loss %q: %w", fields[3], err)
	}

	return model.RawSample{
		LossPct:         lossPct,
		AvgLatencyMs:    latencyUs / 1000,
		StdDevLatencyMs: stddevUs / 1000,
		// dpinger reports aggregates only; a parsed report implies
		// probes were sent.
		ProbesSent: 1,
	}, nil
}

// ListInterfaceAddresses returns the public addresses on a physical
// interface via the OS interface table.
func (p *PfSense) ListInterfaceAddresses(iface string) (model.InterfaceAddrs, error) {
	return listPublicAddrs(iface)
}

// WriteCacheEntry writes the dyndns cache file for one gateway address.
// The filename (including the doubled single quote) and the trailing
// newline semantics are a fixed contract with the pfSense dashboard
// widget: no newline renders the address as up, a newline as down.
func (p *PfSense) WriteCacheEntry(gw model.Gateway, addr netip.Addr, healthy bool) error {
	conf, err := p.cached()
	if err != nil {
		return err
	}

	logical := logicalByPhysical(conf)[gw.PhysicalInterface]
	if logical == "" {
		return fmt.Errorf("no logical interface for %s", gw.PhysicalInterface)
	}
	id, ok := dyndnsIDByLogical(conf)[logical]
	if !ok {
		return fmt.Errorf("no custom dyndns entry for interface %s", logical)
	}

	path := filepath.Join(p.CacheDir, fmt.Sprintf("dyndns_%scustom''%s.cache", logical, id))
	content := addr.String()
	if !healthy {
		content += "\n"
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write cache file %s: %w", path, err)
	}
	return nil
}

// Notify posts a pfSense file notice so the update shows up in the GUI
// notification area.
func (p *PfSense) Notify(subject, message string) error {
	safe := strings.ReplaceAll(message, `"`, `\"`)
	safe = strings.ReplaceAll(safe, "`", "'")
	code := fmt.Sprintf(`require_once("/etc/inc/notices.inc"); file_notice("dynupdate", "%s", "%s", "", 1, false);`, safe, subject)

	cmd := exec.Command(p.PHPBin, "-r", code)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("file_notice failed: %v (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}
