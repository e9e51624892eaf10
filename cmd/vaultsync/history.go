package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obsidianops/vaultsync/internal/ui"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent sync runs",
	Args:  cobra.NoArgs,
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

		logs, err := engine.History(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			fmt.Println("No syncs recorded yet.")
			return nil
		}

		fmt.Printf("\n%s\n\n", ui.Header.Render("Recent syncs"))
		for _, l := range logs {
			status := ui.StatusStyle(string(l.Status)).Render(fmt.Sprintf("%-11s", l.Status))
			fmt.Printf("   %s  %s  %-6s  +%d ~%d -%d",
				l.StartedAt.Format("2006-01-02 15:04:05"), status, l.SyncType,
				l.TasksCreated, l.TasksUpdated, l.TasksSkipped)
			if l.ConflictsCount > 0 {
				fmt.Printf("  %s", ui.RenderWarn(fmt.Sprintf("%d conflict(s)", l.ConflictsCount)))
			}
			fmt.Println()
		}
		fmt.Println()
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}
