package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/gwdns/internal/daemon"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the gateway watcher",
	Long:  "Stop the running gwdns watcher gracefully.",
	RunE:  runStop,
}

func runStop(cmd *cobra.Command, args []string) error {
	running, pid := daemon.CheckRunning(cfg.DataDir)
	if !running {
		fmt.Println("Watcher is not running")
		return nil
	}

	fmt.Printf("Stopping watcher (PID %d)...\n", pid)

	if err := daemon.SendStop(cfg.DataDir); err != nil {
		return fmt.Errorf("failed to stop watcher: %w", err)
	}

	// Wait for the watcher to stop
	for i := 0; i < 30; i++ {
		time.Sleep(time.Second)
		running, _ := daemon.CheckRunning(cfg.DataDir)
		if !running {
			fmt.Println("Watcher stopped")
			return nil
		}
	}

	fmt.Println("Warning: Watcher may not have stopped completely")
	return nil
}
