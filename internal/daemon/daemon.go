// Package daemon runs the gateway watcher: a single-threaded poll loop
// that classifies every gateway each tick, detects health transitions,
// and triggers reconciliation.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/user/gwdns/internal/dns"
	"github.com/user/gwdns/internal/model"
	"github.com/user/gwdns/internal/platform"
	"github.com/user/gwdns/internal/reconcile"
	"github.com/user/gwdns/internal/state"
	"github.com/user/gwdns/internal/storage"
	"github.com/user/gwdns/internal/util"
)

// Daemon manages the background watcher service.
type Daemon struct {
	config    *util.Config
	probe     platform.Probe
	scheduler *Scheduler
	db        *storage.DB
	history   *storage.HistoryStorage
	store     *state.Store

	// trigger invokes one reconciliation run. Swappable in tests.
	trigger func(ctx context.Context, reason string) error

	pidFile   string
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   bool
	startTime time.Time
	mu        sync.RWMutex

	// prevStates is the health vector from the previous tick; nil until
	// the first tick has seeded the baseline.
	prevStates   map[string]model.HealthState
	lastStatuses []model.GatewayStatus
}

// New creates a new daemon instance.
func New(cfg *util.Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}

	probe, err := platform.New(cfg)
	if err != nil {
		return nil, err
	}

	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	store := state.NewStore(cfg.StateFile)
	history := storage.NewHistoryStorage(db)

	engine := reconcile.New(cfg, probe, dns.NewClient(cfg), store)
	engine.SetHistory(history)

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config:  cfg,
		probe:   probe,
		db:      db,
		history: history,
		store:   store,
		pidFile: filepath.Join(cfg.DataDir, "gwdns.pid"),
		ctx:     ctx,
		cancel:  cancel,
	}
	d.trigger = func(ctx context.Context, reason string) error {
		_, err := engine.Run(ctx, reconcile.Options{ForceUpdate: true, Reason: reason})
		return err
	}

	d.scheduler = NewScheduler(ctx)

	return d, nil
}

// Start starts the daemon.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	util.Info("Watcher starting (poll interval %s)", d.config.PollInterval)

	d.registerJobs()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.scheduler.Run()
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.handleSignals()
	}()

	util.Info("Watcher started with PID %d", os.Getpid())

	return nil
}

// Wait waits for the daemon to finish.
func (d *Daemon) Wait() {
	d.wg.Wait()
}

// Stop stops the daemon gracefully.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	util.Info("Watcher stopping...")

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		util.Info("Watcher stopped gracefully")
	case <-time.After(30 * time.Second):
		util.Warn("Watcher stop timed out")
	}

	d.removePIDFile()
	if d.db != nil {
		d.db.Close()
	}

	return nil
}

func (d *Daemon) handleSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		util.Info("Received signal: %v", sig)
		d.Stop()
	case <-d.ctx.Done():
		return
	}
}

func (d *Daemon) writePIDFile() error {
	pid := os.Getpid()
	return os.WriteFile(d.pidFile, []byte(strconv.Itoa(pid)), 0644)
}

func (d *Daemon) removePIDFile() {
	os.Remove(d.pidFile)
}

// IsRunning returns whether the daemon is running.
func (d *Daemon) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// GatewayStatuses returns the gateway evaluations from the last tick.
func (d *Daemon) GatewayStatuses() []model.GatewayStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.GatewayStatus, len(d.lastStatuses))
	copy(out, d.lastStatuses)
	return out
}
