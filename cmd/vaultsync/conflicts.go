package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/obsidianops/vaultsync/internal/obsidian"
	"github.com/obsidianops/vaultsync/internal/syncer"
	"github.com/obsidianops/vaultsync/internal/task"
	"github.com/obsidianops/vaultsync/internal/ui"
)

var (
	conflictsSyncLog string
	resolveAllWith   string
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List and resolve sync conflicts",
	Long: `Conflicts are recorded when a task changed both in the vault and in
the database since the last sync. Each must be resolved before the
next sync will reconcile it.

Resolutions:
  obsidian   keep the vault version, overwrite the database
  database   keep the database version, the next export rewrites the vault line
  skip       leave both sides as they are`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listConflicts(cmd)
	},
}

var conflictsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unresolved conflicts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listConflicts(cmd)
	},
}

var conflictsResolveCmd = &cobra.Command{
	Use:   "resolve [conflict-id] [obsidian|database|skip]",
	Short: "Resolve one conflict, or all interactively",
	Long: `With a conflict ID and a resolution, apply that resolution. With no
arguments, walk through every unresolved conflict interactively.`,
	Args: cobra.MaximumNArgs(2),
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

		if len(args) == 0 {
			return resolveInteractive(cmd, engine)
		}
		if len(args) != 2 {
			return fmt.Errorf("resolve needs a conflict ID and a resolution, or no arguments for interactive mode")
		}

		resolution := task.Resolution(args[1])
		if !resolution.Valid() {
			return fmt.Errorf("unknown resolution %q (want obsidian, database, or skip)", args[1])
		}

		c, err := engine.ResolveConflict(cmd.Context(), args[0], resolution)
		if err != nil {
			return err
		}
		fmt.Printf("%s Conflict %s resolved: %s\n", ui.RenderPass("✓"), c.ID, c.Resolution)
		return nil
	},
}

var conflictsResolveAllCmd = &cobra.Command{
	Use:   "resolve-all",
	Short: "Resolve every conflict from one sync run the same way",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if conflictsSyncLog == "" {
			return fmt.Errorf("--sync-log is required")
		}
		resolution := task.Resolution(resolveAllWith)
		if !resolution.Valid() {
			return fmt.Errorf("unknown resolution %q (want obsidian, database, or skip)", resolveAllWith)
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

		n, err := engine.ResolveAllConflicts(cmd.Context(), conflictsSyncLog, resolution)
		if err != nil {
			return err
		}
		fmt.Printf("%s Resolved %d conflict(s) with %s\n", ui.RenderPass("✓"), n, resolution)
		return nil
	},
}

func listConflicts(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine, _, cleanup, err := openEngine(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	conflicts, err := engine.Conflicts(cmd.Context(), conflictsSyncLog)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		fmt.Printf("%s No unresolved conflicts\n", ui.RenderPass("✓"))
		return nil
	}

	fmt.Printf("\n%s\n\n", ui.Header.Render(fmt.Sprintf("%d unresolved conflict(s)", len(conflicts))))
	for _, c := range conflicts {
		printConflict(c)
	}
	fmt.Printf("Run 'vaultsync conflicts resolve' to work through them.\n\n")
	return nil
}

func printConflict(c *task.SyncConflict) {
	fmt.Printf("   %s  %s:%d\n", ui.Accent.Render(c.ID), c.ObsidianPath, c.ObsidianLine)
	fmt.Printf("      vault:    %s\n", snapshotLine(c.Obsidian))
	fmt.Printf("      database: %s\n", snapshotLine(c.Database))
}

// snapshotLine renders one conflict side the way it would appear in the
// vault, so both versions compare visually.
func snapshotLine(s task.Snapshot) string {
	t := &task.Task{
		Title:    s.Title,
		Status:   s.Status,
		Priority: s.Priority,
		DueDate:  s.DueDate,
		Tags:     s.Tags,
	}
	return obsidian.Render(t)
}

func resolveInteractive(cmd *cobra.Command, engine *syncer.Engine) error {
	conflicts, err := engine.Conflicts(cmd.Context(), conflictsSyncLog)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		fmt.Printf("%s No unresolved conflicts\n", ui.RenderPass("✓"))
		return nil
	}

	resolved := 0
	for i, c := range conflicts {
		var choice string
		form := huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Conflict %d/%d: %s:%d", i+1, len(conflicts), c.ObsidianPath, c.ObsidianLine)).
				Description(fmt.Sprintf("vault:    %s\ndatabase: %s", snapshotLine(c.Obsidian), snapshotLine(c.Database))).
				Options(
					huh.NewOption("Keep vault version", string(task.ResolveObsidian)),
					huh.NewOption("Keep database version", string(task.ResolveDatabase)),
					huh.NewOption("Skip, leave both sides", string(task.ResolveSkip)),
					huh.NewOption("Decide later", "later"),
				).
				Value(&choice),
		))
		if err := form.Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				break
			}
			return err
		}
		if choice == "later" {
			continue
		}

		if _, err := engine.ResolveConflict(cmd.Context(), c.ID, task.Resolution(choice)); err != nil {
			return fmt.Errorf("failed to resolve %s: %w", c.ID, err)
		}
		resolved++
	}

	fmt.Printf("%s Resolved %d of %d conflict(s)\n", ui.RenderPass("✓"), resolved, len(conflicts))
	return nil
}

func init() {
	conflictsCmd.PersistentFlags().StringVar(&conflictsSyncLog, "sync-log", "", "limit to conflicts from one sync run")
	conflictsResolveAllCmd.Flags().StringVar(&resolveAllWith, "resolution", "", "resolution to apply (obsidian, database, skip)")
	conflictsCmd.AddCommand(conflictsListCmd, conflictsResolveCmd, conflictsResolveAllCmd)
	rootCmd.AddCommand(conflictsCmd)
}
