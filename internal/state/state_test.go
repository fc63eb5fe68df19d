package state

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/user/gwdns/internal/model"
)

func TestLoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "state.json"))

	st, err := s.Load()
	if err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if len(st.HealthyIPs) != 0 {
		t.Errorf("fresh state has healthy IPs: %v", st.HealthyIPs)
	}
	if st.GatewayHealth == nil {
		t.Error("fresh state must have a non-nil health map")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "state.json"))

	want := &PersistedState{
		HealthyIPs: []string{"1.1.1.1", "2001:db8::1"},
		GatewayHealth: map[string]model.HealthState{
			"WAN_DHCP": model.HealthOnline,
			"FIBER_GW": model.HealthDown,
		},
		UpdatedAt: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
	}

	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, want)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "state.json"))

	if err := s.Save(&PersistedState{HealthyIPs: []string{"1.1.1.1"}}); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("expected only state.json, got %d entries", len(entries))
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewStore(path).Load(); err == nil {
		t.Error("expected error for corrupt state file")
	}
}
