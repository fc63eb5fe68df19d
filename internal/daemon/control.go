package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/user/gwdns/internal/model"
	"github.com/user/gwdns/internal/util"
)

// CheckRunning checks if the watcher daemon is already running.
func CheckRunning(dataDir string) (bool, int) {
	pidFile := filepath.Join(dataDir, "gwdns.pid")

	data, err := os.ReadFile(pidFile)
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	// Signal 0 probes for process existence
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return false, 0
	}

	return true, pid
}

// SendStop sends a stop signal to the running daemon.
func SendStop(dataDir string) error {
	running, pid := CheckRunning(dataDir)
	if !running {
		return fmt.Errorf("daemon is not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send signal: %w", err)
	}

	return nil
}

// StatusFile holds serialized daemon status.
type StatusFile struct {
	Running        bool                  `json:"running"`
	PID            int                   `json:"pid"`
	StartTime      string                `json:"start_time"`
	Uptime         string                `json:"uptime"`
	Gateways       []model.GatewayStatus `json:"gateways"`
	LastAppliedIPs []string              `json:"last_applied_ips"`
	LastUpdate     string                `json:"last_update,omitempty"`
	Jobs           []JobStatus           `json:"jobs"`
}

// writeStatus serializes the current daemon status to status.json in the
// data dir, once per watcher tick.
func (d *Daemon) writeStatus() {
	d.mu.RLock()
	startTime := d.startTime
	running := d.running
	d.mu.RUnlock()

	sf := StatusFile{
		Running:   running,
		PID:       os.Getpid(),
		StartTime: startTime.Format("2006-01-02 15:04:05"),
		Uptime:    time.Since(startTime).Round(time.Second).String(),
		Gateways:  d.GatewayStatuses(),
		Jobs:      d.scheduler.GetJobStatuses(),
	}

	if st, err := d.store.Load(); err == nil {
		sf.LastAppliedIPs = st.HealthyIPs
		if !st.UpdatedAt.IsZero() {
			sf.LastUpdate = st.UpdatedAt.Local().Format("2006-01-02 15:04:05")
		}
	}

	statusFile := filepath.Join(d.config.DataDir, "status.json")
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		util.Warn("Failed to encode status file: %v", err)
		return
	}
	if err := os.WriteFile(statusFile, data, 0644); err != nil {
		util.Warn("Failed to write status file: %v", err)
	}
}

// ReadStatusFile reads the daemon status from a file.
func ReadStatusFile(dataDir string) (*StatusFile, error) {
	statusFile := filepath.Join(dataDir, "status.json")

	data, err := os.ReadFile(statusFile)
	if err != nil {
		return nil, err
	}

	var sf StatusFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, err
	}

	return &sf, nil
}
