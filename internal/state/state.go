// Package state persists the last-applied reconciliation state. The file
// is the single authority on what the DNS backend currently holds:
// healthy_ips is only ever written to a value the backend has accepted.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/user/gwdns/internal/model"
)

// PersistedState is the durable record of the last applied update.
type PersistedState struct {
	HealthyIPs    []string                     `json:"healthy_ips"`
	GatewayHealth map[string]model.HealthState `json:"gateway_health"`
	UpdatedAt     time.Time                    `json:"updated_at"`
}

// Store reads and writes the state file.
type Store struct {
	path string
}

// NewStore creates a store for the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted state. A missing file yields an empty state,
// not an error: first run on a fresh host.
func (s *Store) Load() (*PersistedState, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &PersistedState{GatewayHealth: make(map[string]model.HealthState)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var st PersistedState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", s.path, err)
	}
	if st.GatewayHealth == nil {
		st.GatewayHealth = make(map[string]model.HealthState)
	}
	return &st, nil
}

// Save durably rewrites the state file with write-temp-then-rename
// semantics so a crash mid-write cannot leave a partial file.
func (s *Store) Save(st *PersistedState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
