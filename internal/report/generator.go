// Package report generates DNS update and gateway health reports.
package report

import (
	"fmt"
	"time"

	"github.com/user/gwdns/internal/model"
	"github.com/user/gwdns/internal/storage"
	"github.com/user/gwdns/internal/util"
)

// Generator creates update history reports.
type Generator struct {
	db     *storage.DB
	config *util.Config
}

// NewGenerator creates a new report generator.
func NewGenerator(db *storage.DB, cfg *util.Config) *Generator {
	return &Generator{
		db:     db,
		config: cfg,
	}
}

// Options selects the time range for a report.
type Options struct {
	Since time.Time
	Until time.Time
}

// ReportData holds all data for a report.
type ReportData struct {
	GeneratedAt time.Time
	Since       time.Time
	Until       time.Time
	RecordName  string

	// Update section
	Updates      []model.UpdateRecord
	AppliedCount int
	DryRunCount  int
	CurrentIPs   []string

	// Transition section
	Transitions          []model.TransitionRecord
	TransitionsByGateway map[string][]model.TransitionRecord
	DownEvents           []model.TransitionRecord
	FlapCounts           map[string]int
}

// Generate creates a report for the specified time range.
func (g *Generator) Generate(opts Options) (*ReportData, error) {
	data := &ReportData{
		GeneratedAt:          time.Now(),
		Since:                opts.Since,
		Until:                opts.Until,
		RecordName:           g.config.RecordName,
		TransitionsByGateway: make(map[string][]model.TransitionRecord),
		FlapCounts:           make(map[string]int),
	}

	hist := storage.NewHistoryStorage(g.db)

	updates, err := hist.RecentUpdates(opts.Since)
	if err != nil {
		return nil, fmt.Errorf("failed to get update history: %w", err)
	}
	data.Updates = updates

	for _, u := range updates {
		if u.Applied {
			data.AppliedCount++
		}
		if u.DryRun {
			data.DryRunCount++
		}
	}

	// The IP set the record currently holds is the one from the newest
	// applied run.
	for _, u := range updates {
		if u.Applied && !u.DryRun {
			data.CurrentIPs = u.HealthyIPs
			break
		}
	}

	transitions, err := hist.RecentTransitions(opts.Since)
	if err != nil {
		return nil, fmt.Errorf("failed to get transitions: %w", err)
	}
	data.Transitions = transitions

	for _, tr := range transitions {
		data.TransitionsByGateway[tr.GatewayID] = append(data.TransitionsByGateway[tr.GatewayID], tr)
		data.FlapCounts[tr.GatewayID]++
		if tr.NewState == model.HealthDown {
			data.DownEvents = append(data.DownEvents, tr)
		}
	}

	return data, nil
}
