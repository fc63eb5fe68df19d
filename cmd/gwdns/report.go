package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/gwdns/internal/report"
	"github.com/user/gwdns/internal/storage"
)

var (
	reportLast   string
	reportOutput string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate an update history report",
	Long: `Generate a markdown report of DNS update runs and gateway health
transitions.

Examples:
  gwdns report --last 24h
  gwdns report --last 7d
  gwdns report --last 1h --output ./report.md
  gwdns report --output -`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportLast, "last", "24h",
		"Time range (e.g., 1h, 24h, 7d)")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "",
		"Output file path, or - for stdout (default: auto-generated)")
}

func runReport(cmd *cobra.Command, args []string) error {
	// Parse time range
	duration, err := parseDuration(reportLast)
	if err != nil {
		return fmt.Errorf("invalid time range: %w", err)
	}

	since := time.Now().Add(-duration)
	until := time.Now()

	// Initialize database
	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Generate report
	gen := report.NewGenerator(db, cfg)

	data, err := gen.Generate(report.Options{
		Since: since,
		Until: until,
	})
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	// Output report
	if reportOutput == "" {
		outputPath, err := report.WriteMarkdownFile(data, filepath.Join(cfg.DataDir, "reports"))
		if err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("Report saved to: %s\n", outputPath)
	} else {
		content := report.FormatMarkdown(data)
		if reportOutput == "-" {
			fmt.Println(content)
		} else {
			if err := os.WriteFile(reportOutput, []byte(content), 0644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			fmt.Printf("Report saved to: %s\n", reportOutput)
		}
	}

	// Print summary
	if reportOutput != "-" {
		fmt.Println()
		fmt.Println("Report Summary:")
		fmt.Printf("  Reconciliation runs: %d\n", len(data.Updates))
		fmt.Printf("  Runs that changed DNS: %d\n", data.AppliedCount)
		fmt.Printf("  Health transitions: %d\n", len(data.Transitions))
		fmt.Printf("  Down events: %d\n", len(data.DownEvents))
	}

	return nil
}

func parseDuration(s string) (time.Duration, error) {
	// Handle days
	if len(s) > 0 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}

	// Handle weeks
	if len(s) > 0 && s[len(s)-1] == 'w' {
		var weeks int
		if _, err := fmt.Sscanf(s, "%dw", &weeks); err == nil {
			return time.Duration(weeks) * 7 * 24 * time.Hour, nil
		}
	}

	return time.ParseDuration(s)
}
