package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/obsidianops/vaultsync/internal/config"
	"github.com/obsidianops/vaultsync/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the vaultsync configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init <vault-path>",
	Short: "Create a config file with defaults for the given vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}

		vault, err := absPath(args[0])
		if err != nil {
			return err
		}

		cfg := config.Default()
		cfg.VaultPath = vault
		if err := config.Save(cfg, path); err != nil {
			return err
		}
		fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one scalar config key and save",
	Long: `Set a scalar configuration key and write the file back.

Keys: vault_path, default_project, default_conflict_resolution,
database_path, log_path, export_path, sync_sources (comma-separated).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		key, value := args[0], args[1]
		switch key {
		case "vault_path":
			vault, err := absPath(value)
			if err != nil {
				return err
			}
			cfg.VaultPath = vault
		case "default_project":
			cfg.DefaultProject = value
		case "default_conflict_resolution":
			cfg.DefaultConflictResolution = value
		case "database_path":
			cfg.DatabasePath = value
		case "log_path":
			cfg.LogPath = value
		case "export_path":
			cfg.ExportPath = value
		case "sync_sources":
			cfg.SyncSources = splitList(value)
		default:
			return fmt.Errorf("unknown config key %q", key)
		}

		if err := config.Save(cfg, path); err != nil {
			return err
		}
		fmt.Printf("%s Set %s\n", ui.RenderPass("✓"), key)
		return nil
	},
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
