// Package config loads and persists the vaultsync configuration.
//
// Configuration is read once at startup and treated as read-only for
// the duration of a sync pass. Tag and folder mappings are ordered
// lists of pairs, not maps: precedence between rules is the declared
// order in the file, never incidental map iteration order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Conflict resolution policies accepted by default_conflict_resolution.
const (
	ResolutionObsidian = "obsidian"
	ResolutionDatabase = "database"
	ResolutionSkip     = "skip"
	ResolutionManual   = "manual"
)

// TagRule maps one tag to a project name.
type TagRule struct {
	Tag     string `mapstructure:"tag" yaml:"tag"`
	Project string `mapstructure:"project" yaml:"project"`
}

// FolderRule maps a vault-relative folder prefix to a project name.
type FolderRule struct {
	Folder  string `mapstructure:"folder" yaml:"folder"`
	Project string `mapstructure:"project" yaml:"project"`
}

// Config is the process-wide sync configuration.
type Config struct {
	// VaultPath is the absolute path of the Obsidian vault root.
	VaultPath string `mapstructure:"vault_path" yaml:"vault_path"`

	// SyncSources are glob patterns relative to VaultPath, expanded in
	// declared order.
	SyncSources []string `mapstructure:"sync_sources" yaml:"sync_sources"`

	// TagMapping and FolderMapping are consulted in declared order.
	TagMapping    []TagRule    `mapstructure:"tag_mapping" yaml:"tag_mapping"`
	FolderMapping []FolderRule `mapstructure:"folder_mapping" yaml:"folder_mapping"`

	// DefaultProject receives every task no other rule claims.
	DefaultProject string `mapstructure:"default_project" yaml:"default_project"`

	// DefaultConflictResolution is applied automatically at
	// classification time; "manual" persists conflicts for later
	// explicit resolution instead.
	DefaultConflictResolution string `mapstructure:"default_conflict_resolution" yaml:"default_conflict_resolution"`

	// DatabasePath locates the task store. Defaults to
	// <vault>/.vaultsync/tasks.db.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path,omitempty"`

	// LogPath locates the rotating sync log file. Empty disables file
	// logging (stderr only).
	LogPath string `mapstructure:"log_path" yaml:"log_path,omitempty"`

	// ExportPath is the vault-relative file receiving exported tasks
	// that have no linked source line.
	ExportPath string `mapstructure:"export_path" yaml:"export_path,omitempty"`
}

// Default returns the configuration defaults applied before loading.
func Default() *Config {
	return &Config{
		SyncSources:               []string{"*.md", "*/*.md"},
		DefaultProject:            "Inbox",
		DefaultConflictResolution: ResolutionManual,
		ExportPath:                filepath.Join("00_Inbox", "Exported Tasks.md"),
	}
}

// Load reads the configuration file at path, applying defaults and
// VAULTSYNC_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("vaultsync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DefaultProject == "" {
		c.DefaultProject = "Inbox"
	}
	if c.DefaultConflictResolution == "" {
		c.DefaultConflictResolution = ResolutionManual
	}
	if c.DatabasePath == "" && c.VaultPath != "" {
		c.DatabasePath = filepath.Join(c.VaultPath, ".vaultsync", "tasks.db")
	}
	if c.ExportPath == "" {
		c.ExportPath = filepath.Join("00_Inbox", "Exported Tasks.md")
	}
}

// Validate checks the configuration before a pass starts. A validation
// failure is fatal: no sync pass runs against a broken configuration.
func (c *Config) Validate() error {
	if c.VaultPath == "" {
		return fmt.Errorf("vault_path is required")
	}
	if !filepath.IsAbs(c.VaultPath) {
		return fmt.Errorf("vault_path must be absolute (got %q)", c.VaultPath)
	}
	if len(c.SyncSources) == 0 {
		return fmt.Errorf("sync_sources must list at least one pattern")
	}
	for _, pattern := range c.SyncSources {
		if _, err := filepath.Match(pattern, "probe"); err != nil {
			return fmt.Errorf("invalid sync source pattern %q: %w", pattern, err)
		}
	}
	switch c.DefaultConflictResolution {
	case ResolutionObsidian, ResolutionDatabase, ResolutionSkip, ResolutionManual:
	default:
		return fmt.Errorf("invalid default_conflict_resolution %q (want obsidian, database, skip or manual)",
			c.DefaultConflictResolution)
	}
	if c.DefaultProject == "" {
		return fmt.Errorf("default_project is required")
	}
	return nil
}

// Save writes the configuration back to path as YAML. Used by the
// config update surface; the running engine never mutates its copy.
func Save(c *Config, path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// DefaultPath returns the conventional config location, honoring
// VAULTSYNC_CONFIG when set.
func DefaultPath() string {
	if env := os.Getenv("VAULTSYNC_CONFIG"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "vaultsync.yaml"
	}
	return filepath.Join(home, ".config", "vaultsync", "config.yaml")
}
