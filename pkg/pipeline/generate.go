package pipeline

import (
	"path/filepath"

	"github.com/logannc/janus/pkg/config"
	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/state"
)

// Generate renders or copies each selected file into .generated.
// Variable/secret name collisions abort the whole run before any file
// is touched; everything after that fails per file.
func (o *Orchestrator) Generate(entries []config.FileEntry) (*Report, error) {
	if err := o.checkConflicts(entries); err != nil {
		return nil, err
	}
	report := &Report{}
	for i := range entries {
		report.Add(entries[i].Src, "generate", o.generateOne(&entries[i]))
	}
	return report, nil
}

func (o *Orchestrator) generateOne(entry *config.FileEntry) error {
	sourcePath := o.SourcePath(entry.Src)
	data, err := o.FS.ReadFile(sourcePath)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileNotFound, "source %s is missing", sourcePath)
	}
	info, err := o.FS.Stat(sourcePath)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot stat %s", sourcePath)
	}

	output := data
	if entry.IsTemplate() {
		vars, err := o.effectiveVars(entry)
		if err != nil {
			return err
		}
		rendered, err := o.Renderer.Render(entry.Src, string(data), vars)
		if err != nil {
			return err
		}
		output = []byte(rendered)
	}

	generatedPath := o.GeneratedPath(entry.Src)
	if o.DryRun {
		log.Info().Str("src", entry.Src).Str("path", generatedPath).
			Bool("template", entry.IsTemplate()).Msg("Would generate")
		return nil
	}
	if err := o.FS.MkdirAll(filepath.Dir(generatedPath), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", filepath.Dir(generatedPath))
	}
	if err := o.FS.WriteFile(generatedPath, output, info.Mode().Perm()); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", generatedPath)
	}
	if err := o.FS.Chmod(generatedPath, info.Mode().Perm()); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot set mode on %s", generatedPath)
	}
	log.Debug().Str("src", entry.Src).Msg("Generated")
	if err := o.advance(entry.Src, state.StatusGenerated); err != nil {
		return err
	}
	return o.State.Save()
}
