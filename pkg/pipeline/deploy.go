package pipeline

import (
	"github.com/logannc/janus/pkg/config"
	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/filesystem"
	"github.com/logannc/janus/pkg/paths"
	"github.com/logannc/janus/pkg/state"
)

// Deploy publishes each selected file's staged copy as a symlink at its
// target path.
func (o *Orchestrator) Deploy(entries []config.FileEntry) *Report {
	report := &Report{}
	for i := range entries {
		report.Add(entries[i].Src, "deploy", o.deployOne(&entries[i]))
	}
	return report
}

func (o *Orchestrator) deployOne(entry *config.FileEntry) error {
	stagedPath := o.StagedPath(entry.Src)
	if !filesystem.Exists(o.FS, stagedPath) && !o.DryRun {
		return errors.Newf(errors.ErrFileNotFound,
			"no staged copy for %s; run stage first", entry.Src)
	}
	target := paths.ExpandTilde(entry.TargetPath())

	if o.DryRun {
		log.Info().Str("src", entry.Src).Str("target", target).Msg("Would deploy")
		return nil
	}

	// Refuse before publishing, so an illegal transition never leaves a
	// live symlink the state does not account for.
	if !o.State.CanTransition(entry.Src, state.StatusDeployed) {
		return errors.Newf(errors.ErrStateTransition,
			"file %s cannot move from %s to %s; run stage first",
			entry.Src, o.State.Get(entry.Src).Status, state.StatusDeployed)
	}

	publisher := &Publisher{FS: o.FS, NoAtomic: o.NoAtomic}
	if err := publisher.Publish(target, stagedPath, o.Config.StagedDir(), o.Force); err != nil {
		return err
	}

	o.State.SetTarget(entry.Src, paths.CollapseTilde(target))
	if err := o.advance(entry.Src, state.StatusDeployed); err != nil {
		return err
	}
	log.Debug().Str("src", entry.Src).Str("target", target).Msg("Deployed")
	return o.State.Save()
}

// Undeploy retracts each selected file's symlink. The target keeps a
// plain copy of the staged content unless removeFile is set.
func (o *Orchestrator) Undeploy(entries []config.FileEntry, removeFile bool) *Report {
	report := &Report{}
	for i := range entries {
		report.Add(entries[i].Src, "undeploy", o.undeployOne(&entries[i], removeFile))
	}
	return report
}

func (o *Orchestrator) undeployOne(entry *config.FileEntry, removeFile bool) error {
	fs := o.State.Get(entry.Src)
	if fs.Status != state.StatusDeployed {
		log.Debug().Str("src", entry.Src).Msg("Not deployed, nothing to undeploy")
		return nil
	}
	// The recorded target survives config edits; prefer it.
	target := fs.Target
	if target == "" {
		target = entry.TargetPath()
	}
	target = paths.ExpandTilde(target)

	if o.DryRun {
		log.Info().Str("src", entry.Src).Str("target", target).
			Bool("remove", removeFile).Msg("Would undeploy")
		return nil
	}

	publisher := &Publisher{FS: o.FS, NoAtomic: o.NoAtomic}
	if err := publisher.Retract(target, o.Config.StagedDir(), removeFile); err != nil {
		return err
	}

	if err := o.State.Transition(entry.Src, state.StatusStaged); err != nil {
		return err
	}
	log.Debug().Str("src", entry.Src).Str("target", target).Msg("Undeployed")
	return o.State.Save()
}

// Apply runs generate, stage, and deploy per file in sequence. A file
// that fails one step is not carried into the next; other files proceed.
func (o *Orchestrator) Apply(entries []config.FileEntry) (*Report, error) {
	if err := o.checkConflicts(entries); err != nil {
		return nil, err
	}
	report := &Report{}
	for i := range entries {
		entry := &entries[i]
		if err := o.generateOne(entry); err != nil {
			report.Add(entry.Src, "generate", err)
			continue
		}
		if err := o.stageOne(entry); err != nil {
			report.Add(entry.Src, "stage", err)
			continue
		}
		report.Add(entry.Src, "deploy", o.deployOne(entry))
	}
	return report, nil
}
