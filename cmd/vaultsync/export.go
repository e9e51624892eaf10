package main

import (
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/obsidianops/vaultsync/internal/syncer"
	"github.com/obsidianops/vaultsync/internal/task"
	"github.com/obsidianops/vaultsync/internal/ui"
)

var (
	exportProject   string
	exportOutput    string
	exportDueBefore string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write database tasks back into the vault",
	Long: `Render stored tasks as Tasks-plugin lines and write them into the
vault. Tasks linked to a vault line are rewritten in place; tasks with
no vault source are appended to the export file, grouped by project.

The --due-before filter accepts a date (2026-01-15) or a natural
phrase like "next friday".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := syncer.ExportOptions{
			Project:    exportProject,
			OutputPath: exportOutput,
		}
		if exportDueBefore != "" {
			due, err := parseDueBefore(exportDueBefore)
			if err != nil {
				return err
			}
			opts.DueBefore = due
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine, _, cleanup, err := openEngine(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		fmt.Printf("%s Exporting to %s...\n", ui.RenderAccent("🔄"), cfg.VaultPath)
		start := time.Now()

		syncLog, err := engine.Export(cmd.Context(), opts)
		if syncLog != nil {
			printSyncLog(syncLog, time.Since(start))
		}
		return err
	},
}

// parseDueBefore accepts 2006-01-02 dates and English date phrases.
func parseDueBefore(s string) (*time.Time, error) {
	if t, err := time.ParseInLocation(task.DateLayout, s, time.Local); err == nil {
		return &t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(s, time.Now())
	if err != nil || r == nil {
		return nil, fmt.Errorf("cannot parse date %q", s)
	}
	day := time.Date(r.Time.Year(), r.Time.Month(), r.Time.Day(), 0, 0, 0, 0, time.Local)
	return &day, nil
}

func init() {
	exportCmd.Flags().StringVarP(&exportProject, "project", "p", "", "export only tasks in this project")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "target file for tasks with no vault source")
	exportCmd.Flags().StringVar(&exportDueBefore, "due-before", "", "only tasks due on or before this date")
	rootCmd.AddCommand(exportCmd)
}
