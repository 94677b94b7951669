package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/filesystem"
	"github.com/logannc/janus/pkg/logging"
	"github.com/logannc/janus/pkg/paths"
)

const defaultVarsFile = `# Shared template variables. Referenced from the config's vars list;
# later files in the list override earlier ones.
`

// newInitCmd scaffolds a dotfiles directory and the default config.
func newInitCmd() *cobra.Command {
	var dotfilesDir string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the dotfiles directory and a starter config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return errors.New(errors.ErrConfigValid,
					"init writes the default config location; --config makes no sense here")
			}
			return runInit(dotfilesDir)
		},
	}
	cmd.Flags().StringVar(&dotfilesDir, "dotfiles-dir", "~/dotfiles", "where to create the dotfiles directory")
	return cmd
}

func runInit(dotfilesDir string) error {
	log := logging.GetLogger("init")
	fsys := filesystem.NewOS()
	dir := paths.ExpandTilde(dotfilesDir)

	if dryRun {
		log.Info().Str("dir", dir).Msg("Would scaffold dotfiles directory")
		return nil
	}

	for _, sub := range []string{dir, filepath.Join(dir, paths.GeneratedDir), filepath.Join(dir, paths.StagedDir)} {
		if err := fsys.MkdirAll(sub, 0755); err != nil {
			return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", sub)
		}
	}

	varsPath := filepath.Join(dir, "vars.toml")
	if !filesystem.Exists(fsys, varsPath) {
		if err := fsys.WriteFile(varsPath, []byte(defaultVarsFile), 0644); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", varsPath)
		}
	}

	statePath := filepath.Join(dir, paths.StateFile)
	if !filesystem.Exists(fsys, statePath) {
		if err := fsys.WriteFile(statePath, nil, 0644); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", statePath)
		}
	}

	defaultConfig := paths.DefaultConfigPath()
	if filesystem.Exists(fsys, defaultConfig) {
		log.Info().Str("path", defaultConfig).Msg("Config already exists, leaving it alone")
		return nil
	}
	if err := fsys.MkdirAll(filepath.Dir(defaultConfig), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", filepath.Dir(defaultConfig))
	}
	content := fmt.Sprintf("dotfiles_dir = %q\nvars = [\"vars.toml\"]\n", dotfilesDir)
	if err := fsys.WriteFile(defaultConfig, []byte(content), 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", defaultConfig)
	}

	fmt.Fprintf(os.Stdout, "Initialized %s and wrote %s\n", dir, defaultConfig)
	return nil
}
