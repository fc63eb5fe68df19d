// Package model defines core data structures for gwdns.
package model

import (
	"net/netip"
	"time"
)

// HealthState classifies a gateway's current reachability.
type HealthState string

const (
	HealthOnline  HealthState = "online"
	HealthWarning HealthState = "warning"
	HealthDown    HealthState = "down"
	HealthUnknown HealthState = "unknown"
)

// Thresholds holds the loss/latency warn and crit levels for one gateway.
// Latency values are milliseconds, loss values are percent.
type Thresholds struct {
	LossWarn    float64 `json:"loss_warn"`
	LossCrit    float64 `json:"loss_crit"`
	LatencyWarn float64 `json:"latency_warn"`
	LatencyCrit float64 `json:"latency_crit"`
}

// Gateway identifies one WAN uplink. Built from router configuration at
// process start and immutable for the process lifetime.
type Gateway struct {
	ID                string     `json:"id"`
	PhysicalInterface string     `json:"physical_interface"`
	Thresholds        Thresholds `json:"thresholds"`
}

// RawSample is one monitoring poll result for a gateway. Ephemeral, never
// persisted. ProbesSent == 0 means no sample is available.
type RawSample struct {
	LossPct         float64 `json:"loss_pct"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	StdDevLatencyMs float64 `json:"stddev_latency_ms"`
	ProbesSent      int     `json:"probes_sent"`
}

// InterfaceAddrs holds the public addresses currently bound to one
// physical interface.
type InterfaceAddrs struct {
	V4 []netip.Addr
	V6 []netip.Addr
}

// GatewayStatus is one gateway's evaluated health plus the sample it was
// derived from, as reported by the watcher and the status surface.
type GatewayStatus struct {
	GatewayID string      `json:"gateway_id"`
	State     HealthState `json:"state"`
	Sample    RawSample   `json:"sample"`
	CheckedAt time.Time   `json:"checked_at"`
}

// UpdateRecord is one reconciliation run as recorded in history.
type UpdateRecord struct {
	ID         int64     `json:"id"`
	Reason     string    `json:"reason"`
	Applied    bool      `json:"applied"`
	DryRun     bool      `json:"dry_run"`
	HealthyIPs []string  `json:"healthy_ips"`
	Timestamp  time.Time `json:"timestamp"`
}

// TransitionRecord is one observed gateway health transition.
type TransitionRecord struct {
	ID        int64       `json:"id"`
	GatewayID string      `json:"gateway_id"`
	PrevState HealthState `json:"prev_state"`
	NewState  HealthState `json:"new_state"`
	LossPct   float64     `json:"loss_pct"`
	LatencyMs float64     `json:"latency_ms"`
	Timestamp time.Time   `json:"timestamp"`
}
