package storage

import (
	"testing"
	"time"

	"github.com/user/gwdns/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndQueryUpdates(t *testing.T) {
	hist := NewHistoryStorage(newTestDB(t))

	rec := &model.UpdateRecord{
		Reason:     "gateway-event",
		Applied:    true,
		HealthyIPs: []string{"1.1.1.1", "2001:db8::1"},
		Timestamp:  time.Now(),
	}
	if err := hist.SaveUpdate(rec); err != nil {
		t.Fatalf("SaveUpdate: %v", err)
	}
	if rec.ID == 0 {
		t.Error("ID not set after insert")
	}

	got, err := hist.RecentUpdates(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("RecentUpdates: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if got[0].Reason != "gateway-event" || !got[0].Applied {
		t.Errorf("unexpected record: %+v", got[0])
	}
	if len(got[0].HealthyIPs) != 2 || got[0].HealthyIPs[1] != "2001:db8::1" {
		t.Errorf("healthy IPs not round-tripped: %v", got[0].HealthyIPs)
	}

	last, err := hist.LastUpdate()
	if err != nil {
		t.Fatalf("LastUpdate: %v", err)
	}
	if last == nil || last.ID != rec.ID {
		t.Errorf("LastUpdate = %+v, want id %d", last, rec.ID)
	}
}

func TestUpdateWithNoIPs(t *testing.T) {
	hist := NewHistoryStorage(newTestDB(t))

	rec := &model.UpdateRecord{Reason: "scheduled", Applied: true, Timestamp: time.Now()}
	if err := hist.SaveUpdate(rec); err != nil {
		t.Fatal(err)
	}

	got, err := hist.RecentUpdates(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got[0].HealthyIPs) != 0 {
		t.Errorf("empty IP list became %v", got[0].HealthyIPs)
	}
}

func TestSaveAndQueryTransitions(t *testing.T) {
	hist := NewHistoryStorage(newTestDB(t))

	recs := []*model.TransitionRecord{
		{GatewayID: "WAN_DHCP", PrevState: model.HealthOnline, NewState: model.HealthDown,
			LossPct: 45, LatencyMs: 12, Timestamp: time.Now().Add(-time.Minute)},
		{GatewayID: "FIBER_GW", PrevState: model.HealthOnline, NewState: model.HealthWarning,
			LossPct: 12, LatencyMs: 80, Timestamp: time.Now()},
	}
	for _, r := range recs {
		if err := hist.SaveTransition(r); err != nil {
			t.Fatalf("SaveTransition: %v", err)
		}
	}

	got, err := hist.RecentTransitions(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("RecentTransitions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d transitions, want 2", len(got))
	}
	// Newest first.
	if got[0].GatewayID != "FIBER_GW" || got[0].NewState != model.HealthWarning {
		t.Errorf("unexpected first transition: %+v", got[0])
	}

	n, err := hist.CountTransitions()
	if err != nil || n != 2 {
		t.Errorf("CountTransitions = %d, %v; want 2", n, err)
	}
}
