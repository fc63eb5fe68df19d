package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/user/gwdns/internal/daemon"
	"github.com/user/gwdns/internal/state"
	"github.com/user/gwdns/internal/storage"
	"github.com/user/gwdns/internal/tui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show watcher and record status",
	Long:  "Show the current status of the gwdns watcher, gateway health, and the last applied record set.",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("86"))

	runningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("46")).
		Bold(true)

	stoppedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true)

	// Check watcher status
	running, pid := daemon.CheckRunning(cfg.DataDir)

	fmt.Println(titleStyle.Render("gwdns Status"))
	fmt.Println()

	// Watcher status
	fmt.Print(labelStyle.Render("Watcher: "))
	if running {
		fmt.Println(runningStyle.Render(fmt.Sprintf("Running (PID %d)", pid)))
	} else {
		fmt.Println(stoppedStyle.Render("Stopped"))
	}

	// Read the status file for watcher details
	if sf, err := daemon.ReadStatusFile(cfg.DataDir); err == nil {
		fmt.Print(labelStyle.Render("Started: "))
		fmt.Println(valueStyle.Render(sf.StartTime))

		fmt.Print(labelStyle.Render("Uptime: "))
		fmt.Println(valueStyle.Render(sf.Uptime))

		if len(sf.Gateways) > 0 {
			fmt.Println()
			fmt.Println(titleStyle.Render("Gateways"))

			for _, gw := range sf.Gateways {
				fmt.Printf("  %s %s  %s\n",
					labelStyle.Render(gw.GatewayID+":"),
					tui.RenderHealth(string(gw.State)),
					valueStyle.Render(fmt.Sprintf("loss %.1f%%  latency %.1fms",
						gw.Sample.LossPct, gw.Sample.AvgLatencyMs)))
			}
		}

		if len(sf.Jobs) > 0 {
			fmt.Println()
			fmt.Println(titleStyle.Render("Jobs"))

			for _, job := range sf.Jobs {
				statusStr := "idle"
				if job.Running {
					statusStr = "running"
				}
				fmt.Printf("  %s: %s (last: %s, errors: %d)\n",
					labelStyle.Render(job.Name),
					valueStyle.Render(statusStr),
					job.LastRun.Format("15:04:05"),
					job.ErrorCount)
			}
		}
	}

	// Last applied record set
	fmt.Println()
	fmt.Println(titleStyle.Render("DNS Record"))
	fmt.Printf("  %s %s\n",
		labelStyle.Render("Record:"),
		valueStyle.Render(cfg.RecordName))

	if st, err := state.NewStore(cfg.StateFile).Load(); err == nil {
		ips := strings.Join(st.HealthyIPs, ", ")
		if ips == "" {
			ips = "(empty)"
		}
		fmt.Printf("  %s %s\n",
			labelStyle.Render("Applied IPs:"),
			valueStyle.Render(ips))
		if !st.UpdatedAt.IsZero() {
			fmt.Printf("  %s %s\n",
				labelStyle.Render("Last update:"),
				valueStyle.Render(st.UpdatedAt.Local().Format("2006-01-02 15:04:05")))
		}
	}

	// History stats
	if db, err := storage.Initialize(cfg.DataDir); err == nil {
		defer db.Close()

		hist := storage.NewHistoryStorage(db)

		fmt.Println()
		fmt.Println(titleStyle.Render("History"))

		if count, err := hist.CountUpdates(); err == nil {
			fmt.Printf("  %s %s\n",
				labelStyle.Render("Update runs:"),
				valueStyle.Render(fmt.Sprintf("%d", count)))
		}
		if count, err := hist.CountTransitions(); err == nil {
			fmt.Printf("  %s %s\n",
				labelStyle.Render("Transitions:"),
				valueStyle.Render(fmt.Sprintf("%d", count)))
		}
	}

	return nil
}
