package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FormatMarkdown renders the report as a markdown document.
func FormatMarkdown(data *ReportData) string {
	var sb strings.Builder

	sb.WriteString("# gwdns Report\n\n")
	sb.WriteString(fmt.Sprintf("**Record:** %s  \n", data.RecordName))
	sb.WriteString(fmt.Sprintf("**Generated:** %s  \n", data.GeneratedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("**Period:** %s to %s\n\n",
		data.Since.Format("2006-01-02 15:04"),
		data.Until.Format("2006-01-02 15:04")))

	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- Reconciliation runs: %d\n", len(data.Updates)))
	sb.WriteString(fmt.Sprintf("- Runs that changed DNS: %d\n", data.AppliedCount))
	sb.WriteString(fmt.Sprintf("- Dry runs: %d\n", data.DryRunCount))
	sb.WriteString(fmt.Sprintf("- Health transitions: %d\n", len(data.Transitions)))
	sb.WriteString(fmt.Sprintf("- Down events: %d\n", len(data.DownEvents)))
	if len(data.CurrentIPs) > 0 {
		sb.WriteString(fmt.Sprintf("- Current record set: %s\n", strings.Join(data.CurrentIPs, ", ")))
	} else {
		sb.WriteString("- Current record set: (empty)\n")
	}
	sb.WriteString("\n")

	if len(data.FlapCounts) > 0 {
		sb.WriteString("## Gateway Stability\n\n")
		sb.WriteString("| Gateway | Transitions |\n")
		sb.WriteString("|---------|-------------|\n")
		for gw, count := range data.FlapCounts {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", gw, count))
		}
		sb.WriteString("\n")
	}

	if len(data.Transitions) > 0 {
		sb.WriteString("## Health Transitions\n\n")
		sb.WriteString("| Time | Gateway | Change | Loss | Latency |\n")
		sb.WriteString("|------|---------|--------|------|---------|\n")
		for _, tr := range data.Transitions {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s → %s | %.1f%% | %.1fms |\n",
				tr.Timestamp.Format("2006-01-02 15:04:05"),
				tr.GatewayID,
				tr.PrevState, tr.NewState,
				tr.LossPct, tr.LatencyMs))
		}
		sb.WriteString("\n")

		for gw, transitions := range data.TransitionsByGateway {
			sb.WriteString(GenerateHealthTimeline(gw, transitions))
			sb.WriteString("\n")
		}
	}

	if len(data.Updates) > 0 {
		sb.WriteString("## Update Runs\n\n")
		sb.WriteString("| Time | Reason | Applied | Dry Run | Healthy IPs |\n")
		sb.WriteString("|------|--------|---------|---------|-------------|\n")
		for _, u := range data.Updates {
			ips := strings.Join(u.HealthyIPs, ", ")
			if ips == "" {
				ips = "(empty)"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				u.Timestamp.Format("2006-01-02 15:04:05"),
				u.Reason,
				yesNo(u.Applied), yesNo(u.DryRun),
				ips))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// WriteMarkdownFile writes the report to an auto-named file under dir.
func WriteMarkdownFile(data *ReportData, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	filename := fmt.Sprintf("gwdns-report-%s.md", data.GeneratedAt.Format("20060102-150405"))
	path := filepath.Join(dir, filename)

	if err := os.WriteFile(path, []byte(FormatMarkdown(data)), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return path, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
