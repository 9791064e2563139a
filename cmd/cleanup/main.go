package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"docqa-be/internal/bootstrap"
	"docqa-be/internal/config"

	"github.com/fatih/color"
)

// Removes index, upload and image folders left behind by deleted sessions.
// Set CLEANUP_DRY_RUN=true to only list them.
func main() {
	cfg := config.Load()

	dryRun, _ := strconv.ParseBool(os.Getenv("CLEANUP_DRY_RUN"))

	container, err := bootstrap.NewContainer(cfg)
	if err != nil {
		log.Fatalf("Bootstrap failed: %v", err)
	}
	defer container.Close()

	color.Cyan("Scanning for orphaned session folders (dry run: %v)\n", dryRun)

	report, err := container.CleanupService.Sweep(context.Background(), dryRun)
	if err != nil {
		color.Red("Sweep failed: %v", err)
		os.Exit(1)
	}

	if len(report.Orphans) == 0 {
		color.Green("No orphans found.")
		return
	}
	for _, p := range report.Orphans {
		color.Yellow("orphan: %s", p)
	}
	for _, p := range report.Removed {
		color.Green("removed: %s", p)
	}
	for _, p := range report.Failed {
		color.Red("failed: %s", p)
	}
	if len(report.Failed) > 0 {
		os.Exit(1)
	}
}
