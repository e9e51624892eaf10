package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/obsidianops/vaultsync/internal/task"
	"github.com/obsidianops/vaultsync/internal/ui"
)

var importCmd = &cobra.Command{
	Use:   "import [file...]",
	Short: "Import tasks from the vault into the database",
	Long: `Scan the vault for Tasks-plugin checkbox lines and sync them into the
task database. With file arguments, only those files are scanned;
otherwise the configured sync_sources patterns decide.

Lines that conflict with database edits are recorded for later
resolution (see 'vaultsync conflicts').`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine, _, cleanup, err := openEngine(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		fmt.Printf("%s Importing from %s...\n", ui.RenderAccent("🔄"), cfg.VaultPath)
		start := time.Now()

		syncLog, err := engine.Import(cmd.Context(), args)
		if syncLog != nil {
			printSyncLog(syncLog, time.Since(start))
		}
		return err
	},
}

func printSyncLog(l *task.SyncLog, elapsed time.Duration) {
	mark := ui.RenderPass("✓")
	if l.Status == task.SyncFailed {
		mark = ui.RenderError("✗")
	}
	fmt.Printf("%s Sync %s in %v\n", mark, l.Status, elapsed.Round(time.Millisecond))
	fmt.Printf("   Created:   %d\n", l.TasksCreated)
	fmt.Printf("   Updated:   %d\n", l.TasksUpdated)
	fmt.Printf("   Skipped:   %d\n", l.TasksSkipped)
	if l.ConflictsCount > 0 {
		fmt.Printf("   %s %d conflict(s) found, run 'vaultsync conflicts' to resolve\n",
			ui.RenderWarn("⚠"), l.ConflictsCount)
	}
	if l.ErrorMessage != "" {
		fmt.Printf("   Errors:\n%s\n", indent(l.ErrorMessage, "     "))
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func init() {
	rootCmd.AddCommand(importCmd)
}
