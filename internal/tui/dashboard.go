package tui

import (
	"fmt"
	"strings"

	gwmodel "github.com/user/gwdns/internal/model"
)

// DashboardData holds data for the dashboard view.
type DashboardData struct {
	RecordName     string
	WatcherRunning bool
	WatcherPID     int
	Uptime         string
	Gateways       []gwmodel.GatewayStatus
	AppliedIPs     []string
	LastUpdate     string
	UpdateCount    int
	Transitions    []TransitionInfo
}

// TransitionInfo represents one recent health transition for display.
type TransitionInfo struct {
	Gateway string
	Change  string
	Time    string
}

// Dashboard is the main dashboard view.
type Dashboard struct {
	data   *DashboardData
	width  int
	height int
}

// NewDashboard creates a new dashboard.
func NewDashboard(msg dataMsg, width, height int) *Dashboard {
	return &Dashboard{
		data:   msg.Data,
		width:  width,
		height: height,
	}
}

// SetSize updates the dashboard size.
func (d *Dashboard) SetSize(width, height int) {
	d.width = width
	d.height = height
}

// View renders the dashboard.
func (d *Dashboard) View() string {
	var sb strings.Builder

	header := HeaderStyle.Width(d.width).Render("gwdns - " + d.data.RecordName)
	sb.WriteString(header)
	sb.WriteString("\n\n")

	sb.WriteString(d.renderGatewaySection())
	sb.WriteString("\n")

	sb.WriteString(d.renderRecordSection())
	sb.WriteString("\n")

	if len(d.data.Transitions) > 0 {
		sb.WriteString(d.renderTransitionSection())
		sb.WriteString("\n")
	}

	help := HelpStyle.Render("Press 'r' to refresh • 'q' to quit")
	sb.WriteString(help)

	return sb.String()
}

func (d *Dashboard) sectionWidth() int {
	w := d.width - 4
	if w < 40 {
		w = 40
	}
	return w
}

func (d *Dashboard) renderGatewaySection() string {
	var lines []string

	watcher := DownStyle.Render("stopped")
	if d.data.WatcherRunning {
		watcher = OnlineStyle.Render(fmt.Sprintf("running (PID %d, up %s)", d.data.WatcherPID, d.data.Uptime))
	}
	lines = append(lines, LabelStyle.Render("Watcher:")+" "+watcher)

	if len(d.data.Gateways) == 0 {
		lines = append(lines, DimStyle.Render("no gateway data yet"))
	}
	for _, gw := range d.data.Gateways {
		detail := DimStyle.Render(fmt.Sprintf("loss %.1f%%  latency %.1fms",
			gw.Sample.LossPct, gw.Sample.AvgLatencyMs))
		lines = append(lines, fmt.Sprintf("%s %s  %s",
			LabelStyle.Render(gw.GatewayID+":"),
			RenderHealth(string(gw.State)),
			detail))
	}

	return SectionStyle.Width(d.sectionWidth()).Render(
		SectionTitleStyle.Render("Gateways") + "\n" + strings.Join(lines, "\n"))
}

func (d *Dashboard) renderRecordSection() string {
	ips := strings.Join(d.data.AppliedIPs, ", ")
	if ips == "" {
		ips = DimStyle.Render("(record empty)")
	} else {
		ips = ValueStyle.Render(ips)
	}

	lastUpdate := d.data.LastUpdate
	if lastUpdate == "" {
		lastUpdate = "never"
	}

	content := fmt.Sprintf(
		"%s %s\n%s %s\n%s %s",
		LabelStyle.Render("Applied IPs:"), ips,
		LabelStyle.Render("Last update:"), ValueStyle.Render(lastUpdate),
		LabelStyle.Render("Total runs:"), ValueStyle.Render(fmt.Sprintf("%d", d.data.UpdateCount)),
	)

	return SectionStyle.Width(d.sectionWidth()).Render(
		SectionTitleStyle.Render("DNS Record") + "\n" + content)
}

func (d *Dashboard) renderTransitionSection() string {
	var lines []string
	for _, tr := range d.data.Transitions {
		lines = append(lines, fmt.Sprintf("%s  %s  %s",
			DimStyle.Render(tr.Time),
			LabelStyle.Render(tr.Gateway),
			tr.Change))
	}

	return SectionStyle.Width(d.sectionWidth()).Render(
		SectionTitleStyle.Render("Recent Transitions (24h)") + "\n" + strings.Join(lines, "\n"))
}
