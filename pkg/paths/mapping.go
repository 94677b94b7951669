package paths

import (
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/logannc/janus/pkg/errors"
)

// MapSource computes the canonical src path within the dotfiles directory
// for an imported file. Resolution order:
//
//  1. under the user config directory: strip that prefix
//     (~/.config/hypr/hypr.conf -> hypr/hypr.conf)
//  2. under the home directory: strip home and one leading dot
//     (~/.bashrc -> bashrc)
//  3. elsewhere: flatten the absolute path's separators to underscores
//     (/etc/systemd/system/foo.service -> etc_systemd_system_foo.service)
func MapSource(path string) (string, error) {
	abs := ExpandTilde(path)
	if !filepath.IsAbs(abs) {
		var err error
		abs, err = filepath.Abs(abs)
		if err != nil {
			return "", errors.Wrapf(err, errors.ErrFileAccess, "cannot resolve import path %s", path)
		}
	}

	if configDir := xdg.ConfigHome; configDir != "" {
		if rel, ok := relativeTo(abs, configDir); ok {
			return rel, nil
		}
	}

	if home := xdg.Home; home != "" {
		if rel, ok := relativeTo(abs, home); ok {
			return strings.TrimPrefix(rel, "."), nil
		}
	}

	flat := strings.ReplaceAll(strings.TrimPrefix(abs, "/"), "/", "_")
	if flat == "" {
		return "", errors.Newf(errors.ErrConfigValid, "cannot map import path %s", path)
	}
	return flat, nil
}

// relativeTo returns path relative to base when path is strictly inside it.
func relativeTo(path, base string) (string, bool) {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return rel, true
}

// DefaultTarget is the deploy target assumed when a file entry has none:
// ~/.config/{src}.
func DefaultTarget(src string) string {
	return "~/.config/" + src
}
