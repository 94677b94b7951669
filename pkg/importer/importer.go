// Package importer brings existing config files under janus management
// and removes them again. Import maps a live path to its canonical spot
// in the dotfiles directory, copies it in, registers it in the config,
// and runs the full pipeline so the live path becomes a janus symlink.
package importer

import (
	"io/fs"
	"path/filepath"

	"github.com/logannc/janus/pkg/config"
	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/filesystem"
	"github.com/logannc/janus/pkg/logging"
	"github.com/logannc/janus/pkg/paths"
	"github.com/logannc/janus/pkg/pipeline"
	"github.com/logannc/janus/pkg/state"
	"github.com/logannc/janus/pkg/types"
)

var log = logging.GetLogger("importer")

// Importer drives import and unimport.
type Importer struct {
	Orch     *pipeline.Orchestrator
	Prompter types.Prompter

	// All imports every candidate without prompting.
	All bool

	// MaxDepth bounds directory walks; <= 0 means unlimited.
	MaxDepth int
}

type importChoice int

const (
	choiceImport importChoice = iota
	choiceIgnore
	choiceSkip
)

// Import walks path (or takes it as a single file) and imports the
// selected candidates.
func (im *Importer) Import(path string) (*pipeline.Report, error) {
	abs := paths.ExpandTilde(path)
	if !filepath.IsAbs(abs) {
		var err error
		abs, err = filepath.Abs(abs)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot resolve %s", path)
		}
	}

	candidates, err := im.collect(abs)
	if err != nil {
		return nil, err
	}

	report := &pipeline.Report{}
	for _, candidate := range candidates {
		src, err := im.importOne(candidate)
		if err != nil {
			report.Add(candidate, "import", err)
			continue
		}
		if src == "" {
			continue // ignored or skipped
		}
		entry := im.Orch.Config.FindFile(src)
		applied, err := im.Orch.Apply([]config.FileEntry{*entry})
		if err != nil {
			report.Add(src, "import", err)
			continue
		}
		report.Merge(applied)
	}
	return report, nil
}

// collect lists importable files: the path itself, or a bounded walk
// when it is a directory. Symlinks are skipped; a janus deploy target
// is already a symlink and anything else pointing elsewhere is not
// safely importable by copy.
func (im *Importer) collect(abs string) ([]string, error) {
	fsys := im.Orch.FS
	info, err := fsys.Lstat(abs)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileNotFound, "%s does not exist", abs)
	}
	if !info.IsDir() {
		if info.Mode()&fs.ModeSymlink != 0 {
			return nil, errors.Newf(errors.ErrFileAccess, "%s is a symlink; not importing it", abs)
		}
		return []string{abs}, nil
	}

	var files []string
	err = filesystem.Walk(fsys, abs, im.MaxDepth, func(path string, d fs.DirEntry) error {
		if d.IsDir() || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot walk %s", abs)
	}
	return files, nil
}

// importOne imports a single file, returning its new src, or "" when
// the user skipped or ignored it.
func (im *Importer) importOne(abs string) (string, error) {
	collapsed := paths.CollapseTilde(abs)
	if im.Orch.State.IsIgnored(collapsed) {
		log.Debug().Str("path", abs).Msg("Previously ignored, skipping")
		return "", nil
	}
	src, err := paths.MapSource(abs)
	if err != nil {
		return "", err
	}
	if im.Orch.Config.FindFile(src) != nil {
		log.Debug().Str("src", src).Msg("Already managed, skipping")
		return "", nil
	}

	choice := choiceImport
	if !im.All {
		choice, err = im.ask(collapsed)
		if err != nil {
			return "", err
		}
	}
	switch choice {
	case choiceSkip:
		return "", nil
	case choiceIgnore:
		if im.Orch.DryRun {
			log.Info().Str("path", collapsed).Msg("Would ignore")
			return "", nil
		}
		im.Orch.State.Ignore(collapsed, "")
		return "", im.Orch.State.Save()
	}

	entry := config.FileEntry{Src: src, Target: collapsed}
	if entry.Target == paths.DefaultTarget(src) {
		entry.Target = ""
	}

	if im.Orch.DryRun {
		log.Info().Str("path", abs).Str("src", src).Msg("Would import")
		return "", nil
	}

	dest := filepath.Join(im.Orch.Config.Dir(), src)
	if err := im.Orch.FS.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", filepath.Dir(dest))
	}
	if err := filesystem.CopyFile(im.Orch.FS, abs, dest); err != nil {
		return "", errors.Wrapf(err, errors.ErrFileWrite, "cannot copy %s into dotfiles", abs)
	}
	if err := im.Orch.Config.AppendFileEntry(im.Orch.FS, entry); err != nil {
		return "", err
	}
	log.Info().Str("path", abs).Str("src", src).Msg("Imported")
	return src, nil
}

func (im *Importer) ask(path string) (importChoice, error) {
	if im.Prompter == nil {
		return choiceSkip, errors.Newf(errors.ErrInternal,
			"no terminal for interactive import; use --all")
	}
	choice, err := im.Prompter.Select("Import "+path+"?",
		[]string{"Import", "Ignore", "Skip"}, 0)
	if err != nil {
		return choiceSkip, err
	}
	return importChoice(choice), nil
}

// Unimport removes files from management: undeploy if deployed, drop
// the config entry, delete the pipeline copies, forget the state.
func (im *Importer) Unimport(entries []config.FileEntry, removeFile bool) *pipeline.Report {
	report := &pipeline.Report{}
	for i := range entries {
		report.Add(entries[i].Src, "unimport", im.unimportOne(&entries[i], removeFile))
	}
	return report
}

func (im *Importer) unimportOne(entry *config.FileEntry, removeFile bool) error {
	orch := im.Orch
	if orch.State.Get(entry.Src).Status == state.StatusDeployed {
		undeployed := orch.Undeploy([]config.FileEntry{*entry}, removeFile)
		if err := undeployed.Err(); err != nil {
			return err
		}
	}

	if orch.DryRun {
		log.Info().Str("src", entry.Src).Msg("Would unimport")
		return nil
	}

	if err := orch.Config.RemoveFileEntry(orch.FS, entry.Src); err != nil {
		return err
	}
	for _, path := range []string{
		orch.SourcePath(entry.Src),
		orch.GeneratedPath(entry.Src),
		orch.StagedPath(entry.Src),
	} {
		if filesystem.Exists(orch.FS, path) {
			if err := orch.FS.Remove(path); err != nil {
				return errors.Wrapf(err, errors.ErrFileWrite, "cannot remove %s", path)
			}
		}
		filesystem.RemoveEmptyParents(orch.FS, path, orch.Config.Dir())
	}

	if err := orch.State.Transition(entry.Src, state.StatusUnmanaged); err != nil {
		return err
	}
	log.Info().Str("src", entry.Src).Msg("Unimported")
	return orch.State.Save()
}
