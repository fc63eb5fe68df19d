// Package health classifies gateway monitoring samples into health states.
//
// The classification must exactly reproduce the router's own GUI-configured
// semantics so the two never disagree: crit thresholds are checked before
// warn thresholds, loss before latency at each level, and either condition
// alone is sufficient.
package health

import "github.com/user/gwdns/internal/model"

// Classify turns a raw monitoring sample and thresholds into a health state.
// Pure function: same inputs always yield the same state.
func Classify(sample model.RawSample, t model.Thresholds) model.HealthState {
	if sample.ProbesSent == 0 {
		return model.HealthUnknown
	}
	if sample.LossPct >= t.LossCrit || sample.AvgLatencyMs >= t.LatencyCrit {
		return model.HealthDown
	}
	if sample.LossPct >= t.LossWarn || sample.AvgLatencyMs >= t.LatencyWarn {
		return model.HealthWarning
	}
	return model.HealthOnline
}

// IsHealthy reports whether a gateway in the given state keeps its
// addresses in the DNS record. Warning counts as healthy by default;
// stricter deployments can disable that via warning_is_healthy.
// Down and Unknown always exclude a gateway.
func IsHealthy(s model.HealthState, warningHealthy bool) bool {
	switch s {
	case model.HealthOnline:
		return true
	case model.HealthWarning:
		return warningHealthy
	default:
		return false
	}
}
