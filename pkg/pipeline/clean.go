package pipeline

import (
	"io/fs"
	"path/filepath"

	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/filesystem"
	"github.com/logannc/janus/pkg/paths"
	"github.com/logannc/janus/pkg/state"
)

// CleanOptions selects what clean removes.
type CleanOptions struct {
	// Generated wipes the .generated directory.
	Generated bool

	// Orphans removes generated/staged copies whose src is no longer
	// configured. A staged orphan still backing a live symlink is kept.
	Orphans bool
}

// Clean removes pipeline artifacts.
func (o *Orchestrator) Clean(opts CleanOptions) error {
	if opts.Generated {
		if err := o.cleanGenerated(); err != nil {
			return err
		}
	}
	if opts.Orphans {
		if err := o.cleanOrphans(); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) cleanGenerated() error {
	dir := o.Config.GeneratedDir()
	if o.DryRun {
		log.Info().Str("dir", dir).Msg("Would remove generated output")
		return nil
	}
	if err := filesystem.RemoveTree(o.FS, dir); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot clean %s", dir)
	}
	// Files whose only artifact was generated output are unmanaged now.
	for _, record := range o.State.Files() {
		if record.Status == state.StatusGenerated {
			if err := o.State.Transition(record.Src, state.StatusUnmanaged); err != nil {
				return err
			}
		}
	}
	return o.State.Save()
}

func (o *Orchestrator) cleanOrphans() error {
	if err := o.removeOrphansUnder(o.Config.GeneratedDir(), false); err != nil {
		return err
	}
	return o.removeOrphansUnder(o.Config.StagedDir(), true)
}

func (o *Orchestrator) removeOrphansUnder(root string, staged bool) error {
	if !filesystem.IsDir(o.FS, root) {
		return nil
	}
	var orphans []string
	err := filesystem.Walk(o.FS, root, 0, func(path string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if o.Config.FindFile(rel) != nil {
			return nil
		}
		if staged && o.stagedOrphanIsLive(rel) {
			log.Warn().Str("src", rel).Msg("Staged orphan still deployed, keeping it")
			return nil
		}
		orphans = append(orphans, path)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot scan %s", root)
	}

	for _, path := range orphans {
		rel, _ := filepath.Rel(root, path)
		if o.DryRun {
			log.Info().Str("path", path).Msg("Would remove orphan")
			continue
		}
		if err := o.FS.Remove(path); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "cannot remove orphan %s", path)
		}
		filesystem.RemoveEmptyParents(o.FS, path, root)
		log.Debug().Str("path", path).Msg("Removed orphan")

		if record := o.State.Get(rel); record.Status != state.StatusUnmanaged && staged {
			if err := o.State.Transition(rel, state.StatusUnmanaged); err != nil {
				return err
			}
			if err := o.State.Save(); err != nil {
				return err
			}
		}
	}
	return nil
}

// stagedOrphanIsLive reports whether an unconfigured staged file is
// still the backing store of a deployed symlink.
func (o *Orchestrator) stagedOrphanIsLive(src string) bool {
	record := o.State.Get(src)
	if record.Status != state.StatusDeployed || record.Target == "" {
		return false
	}
	return IsJanusLink(o.FS, paths.ExpandTilde(record.Target), o.Config.StagedDir())
}
