package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obsidianops/vaultsync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync engine status",
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

		info, err := engine.Status(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("\n%s\n", ui.Header.Render("vaultsync status"))
		fmt.Printf("   Vault:     %s\n", cfg.VaultPath)
		fmt.Printf("   Database:  %s\n", cfg.DatabasePath)

		if info.IsSyncing {
			fmt.Printf("   Syncing:   %s\n", ui.RenderWarn("yes"))
		} else {
			fmt.Printf("   Syncing:   no\n")
		}
		fmt.Printf("   Syncs run: %d\n", info.TotalSyncs)

		if info.LastSync != nil {
			fmt.Printf("   Last sync: %s (%s, %s)\n",
				info.LastSync.StartedAt.Format("2006-01-02 15:04:05"),
				info.LastSync.SyncType,
				ui.StatusStyle(string(info.LastSync.Status)).Render(string(info.LastSync.Status)))
		} else {
			fmt.Printf("   Last sync: %s\n", ui.Muted.Render("never"))
		}

		if info.UnresolvedConflicts > 0 {
			fmt.Printf("   %s %d unresolved conflict(s)\n", ui.RenderWarn("⚠"), info.UnresolvedConflicts)
		} else {
			fmt.Printf("   Conflicts: %s\n", ui.RenderPass("none"))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
