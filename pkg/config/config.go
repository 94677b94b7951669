// Package config loads the janus configuration and resolves the
// per-file effective configuration: deploy target, template flag, and the
// merged variable/secret file layers contributed by globals, matching
// filesets, and the file entry itself.
package config

import (
	"regexp"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/logging"
	"github.com/logannc/janus/pkg/paths"
	"github.com/logannc/janus/pkg/types"
)

var log = logging.GetLogger("config")

// Config is the top-level janus configuration, loaded from TOML.
type Config struct {
	// DotfilesDir is the dotfiles directory path (may contain "~").
	DotfilesDir string `toml:"dotfiles_dir"`

	// Vars lists global variable files, relative to the dotfiles directory.
	Vars []string `toml:"vars"`

	// Secrets lists global secret files, relative to the dotfiles directory.
	Secrets []string `toml:"secrets"`

	// Files are the managed file entries.
	Files []FileEntry `toml:"files"`

	// Filesets are named glob groups carrying var/secret overrides.
	Filesets map[string]Fileset `toml:"filesets"`

	// filesetOrder preserves the declaration order of [filesets.*] tables,
	// which TOML maps lose. Merge precedence depends on it.
	filesetOrder []string

	path string
}

// FileEntry is a single managed file.
type FileEntry struct {
	// Src is the path relative to the dotfiles directory; the unique key.
	Src string `toml:"src"`

	// Target is the deploy path (may contain "~").
	// Empty means ~/.config/{src}.
	Target string `toml:"target,omitempty"`

	// Template selects rendering; nil defaults to true.
	Template *bool `toml:"template,omitempty"`

	// Vars and Secrets are per-file override files, relative to the
	// dotfiles directory.
	Vars    []string `toml:"vars,omitempty"`
	Secrets []string `toml:"secrets,omitempty"`
}

// Fileset groups files by glob patterns and contributes var/secret
// overrides to every matching entry.
type Fileset struct {
	Patterns []string `toml:"patterns"`
	Vars     []string `toml:"vars,omitempty"`
	Secrets  []string `toml:"secrets,omitempty"`
}

// IsTemplate reports whether the entry should be rendered (default true).
func (f *FileEntry) IsTemplate() bool {
	return f.Template == nil || *f.Template
}

// TargetPath returns the entry's target, defaulting to ~/.config/{src}.
func (f *FileEntry) TargetPath() string {
	if f.Target != "" {
		return f.Target
	}
	return paths.DefaultTarget(f.Src)
}

var filesetHeaderRe = regexp.MustCompile(`(?m)^\s*\[filesets\.([^]\s]+)\]`)

// Load reads and parses the config file at path.
func Load(fsys types.FS, path string) (*Config, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "failed to read config file %s", path)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to parse config file %s", path)
	}
	if cfg.DotfilesDir == "" {
		return nil, errors.Newf(errors.ErrConfigValid, "config %s is missing dotfiles_dir", path)
	}
	for name, fileset := range cfg.Filesets {
		if len(fileset.Patterns) == 0 {
			return nil, errors.Newf(errors.ErrConfigValid, "fileset %q has no patterns", name)
		}
	}
	for _, match := range filesetHeaderRe.FindAllSubmatch(data, -1) {
		cfg.filesetOrder = append(cfg.filesetOrder, string(match[1]))
	}
	cfg.path = path
	log.Debug().Str("path", path).Int("files", len(cfg.Files)).Msg("Config loaded")
	return &cfg, nil
}

// Path returns the location the config was loaded from.
func (c *Config) Path() string { return c.path }

// Dir returns the expanded dotfiles directory.
func (c *Config) Dir() string { return paths.ExpandTilde(c.DotfilesDir) }

// GeneratedDir returns the rendered-output directory.
func (c *Config) GeneratedDir() string { return c.Dir() + "/" + paths.GeneratedDir }

// StagedDir returns the staging directory backing deployed symlinks.
func (c *Config) StagedDir() string { return c.Dir() + "/" + paths.StagedDir }

// FilesetOrder returns fileset names in config declaration order.
func (c *Config) FilesetOrder() []string { return c.filesetOrder }
