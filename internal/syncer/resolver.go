package syncer

import (
	"path/filepath"
	"strings"

	"github.com/obsidianops/vaultsync/internal/config"
	"github.com/obsidianops/vaultsync/internal/obsidian"
)

// projectTagPrefix marks a tag that pins the task's project explicitly,
// e.g. #project/health.
const projectTagPrefix = "project/"

// ProjectResolver maps a parsed occurrence to a target project name.
//
// Resolution order, first match wins:
//  1. an explicit project/<name> tag on the line
//  2. the first tag_mapping rule (declared order) whose tag the line carries
//  3. the longest folder_mapping prefix of the file's containing directory
//  4. default_project
//
// The resolver never fails; unresolvable tasks land in default_project.
type ProjectResolver struct {
	cfg *config.Config
}

// NewProjectResolver creates a resolver over a loaded configuration.
func NewProjectResolver(cfg *config.Config) *ProjectResolver {
	return &ProjectResolver{cfg: cfg}
}

// Resolve returns the project name for one occurrence.
func (r *ProjectResolver) Resolve(parsed *obsidian.ParsedTask) string {
	if name := projectTag(parsed.Tags); name != "" {
		return name
	}

	// Rule order decides precedence, not the order tags appear on the
	// line.
	for _, rule := range r.cfg.TagMapping {
		want := strings.ToLower(rule.Tag)
		for _, tag := range parsed.Tags {
			if tag == want {
				return rule.Project
			}
		}
	}

	if name := r.resolveFolder(parsed.SourcePath); name != "" {
		return name
	}

	return r.cfg.DefaultProject
}

func projectTag(tags []string) string {
	for _, tag := range tags {
		if strings.HasPrefix(tag, projectTagPrefix) {
			if name := tag[len(projectTagPrefix):]; name != "" {
				return name
			}
		}
	}
	return ""
}

// resolveFolder matches the longest folder prefix against the file's
// containing directory. Paths are vault-relative, slash-normalized.
func (r *ProjectResolver) resolveFolder(sourcePath string) string {
	if sourcePath == "" {
		return ""
	}
	dir := filepath.ToSlash(filepath.Dir(sourcePath))

	best := ""
	bestLen := -1
	for _, rule := range r.cfg.FolderMapping {
		prefix := strings.TrimSuffix(filepath.ToSlash(rule.Folder), "/")
		if prefix == "" {
			continue
		}
		if dir == prefix || strings.HasPrefix(dir+"/", prefix+"/") {
			if len(prefix) > bestLen {
				best = rule.Project
				bestLen = len(prefix)
			}
		}
	}
	return best
}
