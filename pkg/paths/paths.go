// Package paths centralizes path handling: tilde expansion for
// user-facing paths, XDG lookups for the config file, and the mapping of
// imported paths to their canonical location in the dotfiles directory.
package paths

import (
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

// Default locations inside the dotfiles directory. These are internal
// structure, not user-configurable.
const (
	// GeneratedDir holds rendered template output.
	GeneratedDir = ".generated"

	// StagedDir is the backing store that deployed symlinks point into.
	StagedDir = ".staged"

	// StateFile is the pipeline state store within the dotfiles directory.
	StateFile = ".janus_state.toml"

	// LockFile guards mutating commands against concurrent janus runs.
	LockFile = ".janus.lock"
)

// DefaultConfigPath returns the XDG-compliant config file location,
// typically ~/.config/janus/config.toml.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "janus", "config.toml")
}

// ExpandTilde expands a leading "~" or "~/" to the user's home directory.
// Paths without a tilde prefix are returned unchanged.
func ExpandTilde(path string) string {
	if path == "~" {
		return xdg.Home
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(xdg.Home, rest)
	}
	return path
}

// CollapseTilde replaces the home directory prefix with "~" for display
// and for stable, machine-independent state entries.
func CollapseTilde(path string) string {
	home := xdg.Home
	if home == "" || !strings.HasPrefix(path, home) {
		return path
	}
	rest := strings.TrimPrefix(path, home)
	if rest == "" {
		return "~"
	}
	if !strings.HasPrefix(rest, "/") {
		return path
	}
	return "~" + rest
}
