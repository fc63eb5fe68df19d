package daemon

import (
	"context"
	"errors"
	"time"

	"github.com/user/gwdns/internal/health"
	"github.com/user/gwdns/internal/model"
	"github.com/user/gwdns/internal/reconcile"
	"github.com/user/gwdns/internal/util"
)

// reconcileTimeout bounds a triggered reconciliation run. It is deliberately
// decoupled from the poll interval: a 5s tick must not cancel a run that is
// still working through the DNS retry schedule.
const reconcileTimeout = 60 * time.Second

// registerJobs registers the watcher jobs with the scheduler.
func (d *Daemon) registerJobs() {
	d.scheduler.AddJob(&Job{
		Name:     "gateway_watch",
		Interval: d.config.PollInterval,
		Run:      d.runGatewayWatch,
	})

	if d.config.RefreshInterval > 0 {
		d.scheduler.AddJob(&Job{
			Name:     "scheduled_refresh",
			Interval: d.config.RefreshInterval,
			Run:      d.runScheduledRefresh,
		})
	}
}

// runGatewayWatch is one watcher tick: classify every gateway, compare
// the health vector against the previous tick, and trigger a single
// reconciliation when anything changed.
func (d *Daemon) runGatewayWatch(ctx context.Context) error {
	gws, err := d.probe.Gateways()
	if err != nil {
		return err
	}

	now := time.Now()
	current := make(map[string]model.HealthState, len(gws))
	statuses := make([]model.GatewayStatus, 0, len(gws))

	for _, gw := range gws {
		state := model.HealthUnknown
		sample, err := d.probe.ReadGatewaySample(gw.ID)
		if err != nil {
			// One gateway failing to report never aborts the tick.
			util.Warn("Poll of gateway %s failed, treating as unknown: %v", gw.ID, err)
		} else {
			state = health.Classify(sample, gw.Thresholds)
		}
		current[gw.ID] = state
		statuses = append(statuses, model.GatewayStatus{
			GatewayID: gw.ID,
			State:     state,
			Sample:    sample,
			CheckedAt: now,
		})
	}

	d.mu.Lock()
	prev := d.prevStates
	d.lastStatuses = statuses
	d.mu.Unlock()

	defer d.writeStatus()

	if prev == nil {
		// First tick seeds the baseline without triggering.
		util.Info("Initial gateway state: %v", current)
		d.setPrevStates(current)
		return nil
	}

	changed := d.detectTransitions(prev, statuses)
	if len(changed) == 0 {
		d.setPrevStates(current)
		return nil
	}

	util.Info("Gateway state change detected (%d gateways), triggering reconciliation", len(changed))

	// One reconciliation per tick, no matter how many gateways moved.
	if err := d.runTrigger("gateway-event"); err != nil {
		if errors.Is(err, reconcile.ErrAlreadyRunning) {
			// Do not block and do not advance the baseline: the next
			// tick re-detects the difference and retries, and the
			// in-flight run re-reads live health anyway.
			util.Info("Reconciliation already in progress, will retry on next tick")
			return nil
		}
		util.Error("Triggered reconciliation failed: %v", err)
	}

	d.setPrevStates(current)
	return nil
}

// detectTransitions logs and records every index where the health vector
// moved, returning the changed gateway IDs.
func (d *Daemon) detectTransitions(prev map[string]model.HealthState, statuses []model.GatewayStatus) []string {
	var changed []string
	for _, st := range statuses {
		prevState, seen := prev[st.GatewayID]
		if seen && prevState == st.State {
			continue
		}
		if !seen {
			prevState = model.HealthUnknown
		}
		changed = append(changed, st.GatewayID)
		util.Info("Gateway %s: %s -> %s (loss %.1f%%, latency %.1fms)",
			st.GatewayID, prevState, st.State, st.Sample.LossPct, st.Sample.AvgLatencyMs)

		if d.history != nil {
			rec := &model.TransitionRecord{
				GatewayID: st.GatewayID,
				PrevState: prevState,
				NewState:  st.State,
				LossPct:   st.Sample.LossPct,
				LatencyMs: st.Sample.AvgLatencyMs,
				Timestamp: st.CheckedAt,
			}
			if err := d.history.SaveTransition(rec); err != nil {
				util.Warn("History write failed: %v", err)
			}
		}
	}
	return changed
}

func (d *Daemon) setPrevStates(states map[string]model.HealthState) {
	d.mu.Lock()
	d.prevStates = states
	d.mu.Unlock()
}

// runTrigger invokes one reconciliation under the daemon's own lifetime
// context and the reconcile timeout, independent of the calling job's
// interval-bounded context.
func (d *Daemon) runTrigger(reason string) error {
	ctx, cancel := context.WithTimeout(d.ctx, reconcileTimeout)
	defer cancel()
	return d.trigger(ctx, reason)
}

// runScheduledRefresh is the low-frequency forced re-registration run,
// mirroring the router's own dyndns schedule.
func (d *Daemon) runScheduledRefresh(ctx context.Context) error {
	err := d.runTrigger("scheduled")
	if errors.Is(err, reconcile.ErrAlreadyRunning) {
		util.Info("Scheduled refresh skipped, reconciliation already in progress")
		return nil
	}
	return err
}
