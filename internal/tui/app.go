// Package tui provides a terminal dashboard over the watcher state.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/user/gwdns/internal/daemon"
	"github.com/user/gwdns/internal/state"
	"github.com/user/gwdns/internal/storage"
	"github.com/user/gwdns/internal/util"
)

// App is the main TUI application.
type App struct {
	db     *storage.DB
	config *util.Config
}

// NewApp creates a new TUI application.
func NewApp(db *storage.DB, cfg *util.Config) *App {
	return &App{
		db:     db,
		config: cfg,
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(newModel(a.db, a.config), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// model is the main bubbletea model.
type model struct {
	db        *storage.DB
	config    *util.Config
	dashboard *Dashboard
	spinner   spinner.Model
	ready     bool
	width     int
	height    int
	err       error
}

func newModel(db *storage.DB, cfg *util.Config) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		db:      db,
		config:  cfg,
		spinner: s,
	}
}

// refreshMsg drives the periodic reload.
type refreshMsg time.Time

func refreshTick() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// Init initializes the model.
func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		loadData(m.db, m.config),
		refreshTick(),
	)
}

// Update handles messages.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, loadData(m.db, m.config)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.dashboard != nil {
			m.dashboard.SetSize(msg.Width, msg.Height)
		}

	case refreshMsg:
		return m, tea.Batch(loadData(m.db, m.config), refreshTick())

	case dataMsg:
		m.ready = true
		m.dashboard = NewDashboard(msg, m.width, m.height)

	case errMsg:
		m.err = msg.err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the UI.
func (m model) View() string {
	if m.err != nil {
		return ErrorStyle.Render("Error: " + m.err.Error())
	}

	if !m.ready {
		return LoadingStyle.Render(m.spinner.View() + " Loading...")
	}

	return m.dashboard.View()
}

// Messages
type dataMsg struct {
	Data *DashboardData
}

type errMsg struct {
	err error
}

func loadData(db *storage.DB, cfg *util.Config) tea.Cmd {
	return func() tea.Msg {
		data, err := fetchDashboardData(db, cfg)
		if err != nil {
			return errMsg{err}
		}
		return dataMsg{Data: data}
	}
}

func fetchDashboardData(db *storage.DB, cfg *util.Config) (*DashboardData, error) {
	data := &DashboardData{RecordName: cfg.RecordName}

	running, pid := daemon.CheckRunning(cfg.DataDir)
	data.WatcherRunning = running
	data.WatcherPID = pid

	if sf, err := daemon.ReadStatusFile(cfg.DataDir); err == nil {
		data.Gateways = sf.Gateways
		data.Uptime = sf.Uptime
	}

	if st, err := state.NewStore(cfg.StateFile).Load(); err == nil {
		data.AppliedIPs = st.HealthyIPs
		if !st.UpdatedAt.IsZero() {
			data.LastUpdate = st.UpdatedAt.Local().Format("2006-01-02 15:04:05")
		}
	}

	hist := storage.NewHistoryStorage(db)
	if transitions, err := hist.RecentTransitions(time.Now().Add(-24 * time.Hour)); err == nil {
		if len(transitions) > 10 {
			transitions = transitions[:10]
		}
		for _, tr := range transitions {
			data.Transitions = append(data.Transitions, TransitionInfo{
				Gateway: tr.GatewayID,
				Change:  string(tr.PrevState) + " -> " + string(tr.NewState),
				Time:    tr.Timestamp.Local().Format("15:04:05"),
			})
		}
	}
	if count, err := hist.CountUpdates(); err == nil {
		data.UpdateCount = count
	}

	return data, nil
}
