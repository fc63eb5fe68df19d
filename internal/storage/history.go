package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/user/gwdns/internal/model"
)

// HistoryStorage records reconciliation runs and health transitions.
type HistoryStorage struct {
	db *DB
}

// NewHistoryStorage creates a new history storage handler.
func NewHistoryStorage(db *DB) *HistoryStorage {
	return &HistoryStorage{db: db}
}

// SaveUpdate stores one reconciliation run.
func (s *HistoryStorage) SaveUpdate(rec *model.UpdateRecord) error {
	query := `INSERT INTO update_history (reason, applied, dry_run, healthy_ips, timestamp)
			  VALUES (?, ?, ?, ?, ?)`

	result, err := s.db.Exec(query,
		rec.Reason, rec.Applied, rec.DryRun,
		strings.Join(rec.HealthyIPs, ","), rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert update record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	rec.ID = id

	return nil
}

// SaveTransition stores one observed gateway health transition.
func (s *HistoryStorage) SaveTransition(rec *model.TransitionRecord) error {
	query := `INSERT INTO transitions (gateway, prev_state, new_state, loss_pct, latency_ms, timestamp)
			  VALUES (?, ?, ?, ?, ?, ?)`

	result, err := s.db.Exec(query,
		rec.GatewayID, string(rec.PrevState), string(rec.NewState),
		rec.LossPct, rec.LatencyMs, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert transition: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	rec.ID = id

	return nil
}

// RecentUpdates returns update records since a given time, newest first.
func (s *HistoryStorage) RecentUpdates(since time.Time) ([]model.UpdateRecord, error) {
	query := `SELECT id, reason, applied, dry_run, healthy_ips, timestamp
			  FROM update_history WHERE timestamp >= ? ORDER BY timestamp DESC`

	rows, err := s.db.Query(query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query update history: %w", err)
	}
	defer rows.Close()

	var records []model.UpdateRecord
	for rows.Next() {
		var rec model.UpdateRecord
		var ips string
		if err := rows.Scan(&rec.ID, &rec.Reason, &rec.Applied, &rec.DryRun, &ips, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan update record: %w", err)
		}
		if ips != "" {
			rec.HealthyIPs = strings.Split(ips, ",")
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// RecentTransitions returns transitions since a given time, newest first.
func (s *HistoryStorage) RecentTransitions(since time.Time) ([]model.TransitionRecord, error) {
	query := `SELECT id, gateway, prev_state, new_state, loss_pct, latency_ms, timestamp
			  FROM transitions WHERE timestamp >= ? ORDER BY timestamp DESC`

	rows, err := s.db.Query(query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var records []model.TransitionRecord
	for rows.Next() {
		var rec model.TransitionRecord
		var prev, next string
		if err := rows.Scan(&rec.ID, &rec.GatewayID, &prev, &next, &rec.LossPct, &rec.LatencyMs, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		rec.PrevState = model.HealthState(prev)
		rec.NewState = model.HealthState(next)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// LastUpdate returns the most recent update record, or nil when none exists.
func (s *HistoryStorage) LastUpdate() (*model.UpdateRecord, error) {
	records, err := s.RecentUpdates(time.Time{})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// CountUpdates returns the total number of recorded runs.
func (s *HistoryStorage) CountUpdates() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM update_history").Scan(&count)
	return count, err
}

// CountTransitions returns the total number of recorded transitions.
func (s *HistoryStorage) CountTransitions() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM transitions").Scan(&count)
	return count, err
}
