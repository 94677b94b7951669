package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/filesystem"
	"github.com/logannc/janus/pkg/types"
)

// BackupSuffix is appended to a pre-existing target file before janus
// replaces it with a symlink.
const BackupSuffix = ".janus.bak"

const tempSuffix = ".janus.tmp"

// Publisher performs the symlink swap. The default path creates the new
// link at a temporary sibling and renames it over the target, so an
// observer never sees the target missing. NoAtomic falls back to
// remove-then-create for filesystems that reject rename over a symlink.
type Publisher struct {
	FS       types.FS
	NoAtomic bool
}

// IsJanusLink reports whether path is a symlink owned by janus, i.e.
// one pointing into the staged directory.
func IsJanusLink(fsys types.FS, path, stagedDir string) bool {
	if !filesystem.IsSymlink(fsys, path) {
		return false
	}
	dest, err := fsys.Readlink(path)
	if err != nil {
		return false
	}
	return strings.HasPrefix(dest, stagedDir+string(filepath.Separator))
}

// Publish points target at source. A pre-existing file that janus does
// not own is backed up to {target}.janus.bak first, unless force is set.
func (p *Publisher) Publish(target, source, stagedDir string, force bool) error {
	if err := p.FS.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", filepath.Dir(target))
	}

	if _, err := p.FS.Lstat(target); err == nil {
		if !IsJanusLink(p.FS, target, stagedDir) && !force {
			backup := target + BackupSuffix
			if err := filesystem.CopyFile(p.FS, target, backup); err != nil {
				return errors.Wrapf(err, errors.ErrFileWrite, "cannot back up %s", target)
			}
			log.Info().Str("target", target).Str("backup", backup).Msg("Backed up existing file")
		}
		if p.NoAtomic {
			if err := p.FS.Remove(target); err != nil {
				return errors.Wrapf(err, errors.ErrSymlinkCreate, "cannot remove %s", target)
			}
		}
	}

	if p.NoAtomic {
		if err := p.FS.Symlink(source, target); err != nil {
			return errors.Wrapf(err, errors.ErrSymlinkCreate, "cannot link %s", target)
		}
		return nil
	}

	tmp := target + tempSuffix
	_ = p.FS.Remove(tmp)
	if err := p.FS.Symlink(source, tmp); err != nil {
		return errors.Wrapf(err, errors.ErrSymlinkCreate, "cannot create %s", tmp)
	}
	if err := p.FS.Rename(tmp, target); err != nil {
		_ = p.FS.Remove(tmp)
		return errors.Wrapf(err, errors.ErrSymlinkCreate, "cannot replace %s", target)
	}
	return nil
}

// Retract undoes a deploy. By default the symlink is replaced with a
// regular file holding the staged content, so the application keeps a
// working config; removeFile deletes the target outright.
func (p *Publisher) Retract(target, stagedDir string, removeFile bool) error {
	if !IsJanusLink(p.FS, target, stagedDir) {
		return errors.Newf(errors.ErrFileAccess,
			"%s is not a janus symlink; refusing to touch it", target)
	}
	if removeFile {
		if err := p.FS.Remove(target); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "cannot remove %s", target)
		}
		return nil
	}

	source, err := p.FS.Readlink(target)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot read link %s", target)
	}
	data, err := p.FS.ReadFile(source)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileNotFound, "staged content %s is missing", source)
	}
	info, err := p.FS.Stat(source)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot stat %s", source)
	}

	tmp := target + tempSuffix
	if err := p.FS.WriteFile(tmp, data, info.Mode().Perm()); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", tmp)
	}
	if err := p.FS.Rename(tmp, target); err != nil {
		_ = p.FS.Remove(tmp)
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot replace %s", target)
	}
	return nil
}
