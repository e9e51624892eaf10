// vaultsync keeps Obsidian vault tasks and the task database in step.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/obsidianops/vaultsync/internal/config"
	"github.com/obsidianops/vaultsync/internal/logging"
	"github.com/obsidianops/vaultsync/internal/store"
	"github.com/obsidianops/vaultsync/internal/syncer"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "vaultsync",
	Short: "Sync tasks between an Obsidian vault and the task database",
	Long: `vaultsync scans an Obsidian vault for Tasks-plugin checkbox lines,
syncs them with a local task database, and writes database changes back
into the vault.

Run 'vaultsync config init' first to create a configuration file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.config/vaultsync/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "mirror log output to stderr")
}

// absPath resolves a user path against the working directory.
func absPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", p, err)
	}
	return abs, nil
}

// loadConfig reads the config file named by --config or the default path.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}

// openEngine wires the store and sync engine from the loaded config.
// The returned cleanup closes the database.
func openEngine(ctx context.Context, cfg *config.Config) (*syncer.Engine, *store.Store, func(), error) {
	logger, err := logging.New(cfg.LogPath, "[vaultsync] ", verbose)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := st.InitSchema(ctx); err != nil {
		st.Close()
		return nil, nil, nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	engine, err := syncer.NewEngine(cfg, st, logger)
	if err != nil {
		st.Close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		if err := st.Close(); err != nil {
			logger.Printf("close database: %v", err)
		}
	}
	return engine, st, cleanup, nil
}
