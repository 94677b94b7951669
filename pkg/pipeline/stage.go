package pipeline

import (
	"bytes"
	"path/filepath"

	"github.com/logannc/janus/pkg/config"
	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/state"
)

// Stage copies generated output into .staged, the backing store for
// deployed symlinks. A staged copy that was edited in place since the
// last stage (drift) is never silently overwritten: the file is skipped
// with an error unless --force is set or the user confirms.
func (o *Orchestrator) Stage(entries []config.FileEntry) *Report {
	report := &Report{}
	for i := range entries {
		report.Add(entries[i].Src, "stage", o.stageOne(&entries[i]))
	}
	return report
}

func (o *Orchestrator) stageOne(entry *config.FileEntry) error {
	generatedPath := o.GeneratedPath(entry.Src)
	generated, err := o.FS.ReadFile(generatedPath)
	if err != nil {
		if o.DryRun {
			log.Info().Str("src", entry.Src).Msg("Would stage freshly generated output")
			return nil
		}
		return errors.Wrapf(err, errors.ErrFileNotFound,
			"no generated output for %s; run generate first", entry.Src)
	}
	info, err := o.FS.Stat(generatedPath)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot stat %s", generatedPath)
	}

	stagedPath := o.StagedPath(entry.Src)
	if err := o.checkStagedDrift(entry.Src, stagedPath, generated); err != nil {
		return err
	}

	if o.DryRun {
		log.Info().Str("src", entry.Src).Str("path", stagedPath).Msg("Would stage")
		return nil
	}
	if err := o.FS.MkdirAll(filepath.Dir(stagedPath), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", filepath.Dir(stagedPath))
	}
	if err := o.FS.WriteFile(stagedPath, generated, info.Mode().Perm()); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", stagedPath)
	}
	if err := o.FS.Chmod(stagedPath, info.Mode().Perm()); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot set mode on %s", stagedPath)
	}

	o.State.SetStagedSum(entry.Src, checksum(generated))
	if err := o.advance(entry.Src, state.StatusStaged); err != nil {
		return err
	}
	log.Debug().Str("src", entry.Src).Msg("Staged")
	return o.State.Save()
}

// checkStagedDrift refuses to clobber a staged copy that diverged since
// it was last staged. The recorded checksum is the baseline; older state
// files without one fall back to comparing against generated output.
func (o *Orchestrator) checkStagedDrift(src, stagedPath string, generated []byte) error {
	staged, err := o.FS.ReadFile(stagedPath)
	if err != nil {
		return nil
	}

	var drifted bool
	if baseline := o.State.Get(src).StagedSum; baseline != "" {
		drifted = checksum(staged) != baseline
	} else {
		drifted = !bytes.Equal(staged, generated)
	}
	if !drifted || o.Force {
		return nil
	}

	if !o.DryRun && o.Prompter != nil {
		choice, err := o.Prompter.Select(
			"Staged copy of "+src+" has local edits that sync has not captured. Overwrite?",
			[]string{"Skip", "Overwrite"}, 0)
		if err == nil && choice == 1 {
			return nil
		}
	}
	if !o.DryRun {
		o.State.SetDrift(src, true)
		if err := o.State.Save(); err != nil {
			return err
		}
	}
	return errors.Newf(errors.ErrStageDrift,
		"staged copy of %s has local edits; sync them or re-run with --force", src)
}
