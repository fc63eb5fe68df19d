package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/gwdns/internal/storage"
	"github.com/user/gwdns/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Launch the terminal dashboard",
	Long: `Launch an interactive terminal dashboard showing live watcher status.

The dashboard shows:
- Watcher state and uptime
- Per-gateway health with loss and latency
- The applied record set
- Recent health transitions

The view refreshes every 2 seconds; press 'r' to refresh now, 'q' to quit.`,
	RunE: runUI,
}

func runUI(cmd *cobra.Command, args []string) error {
	// Initialize database
	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	app := tui.NewApp(db, cfg)
	return app.Run()
}
