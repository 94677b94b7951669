package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/logannc/janus/pkg/config"
	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/filesystem"
	"github.com/logannc/janus/pkg/importer"
	"github.com/logannc/janus/pkg/lockfile"
	"github.com/logannc/janus/pkg/paths"
	"github.com/logannc/janus/pkg/pipeline"
	"github.com/logannc/janus/pkg/secrets"
	"github.com/logannc/janus/pkg/state"
	"github.com/logannc/janus/pkg/syncer"
	"github.com/logannc/janus/pkg/template"
)

const lockTimeout = 5 * time.Second

// app bundles everything a subcommand needs. Mutating commands hold the
// process lock until release is called.
type app struct {
	orch *pipeline.Orchestrator
	lock *lockfile.Lock
}

func (a *app) release() {
	a.lock.Unlock()
}

// loadApp loads config and state and, for mutating commands, takes the
// process lock. Dry runs never lock; they never write.
func loadApp(mutating bool) (*app, error) {
	path := configPath
	if path == "" {
		path = paths.DefaultConfigPath()
	}
	fsys := filesystem.NewOS()
	cfg, err := config.Load(fsys, path)
	if err != nil {
		return nil, err
	}
	store, err := state.Load(fsys, cfg.Dir())
	if err != nil {
		return nil, err
	}

	var lock *lockfile.Lock
	if mutating && !dryRun {
		lock, err = lockfile.Acquire(filepath.Join(cfg.Dir(), paths.LockFile), lockTimeout)
		if err != nil {
			return nil, err
		}
	}

	return &app{
		lock: lock,
		orch: &pipeline.Orchestrator{
			Config:   cfg,
			FS:       fsys,
			State:    store,
			Renderer: template.NewRenderer(),
			Secrets:  secrets.NewResolver(secrets.NewCLIEngine()),
			Prompter: newPrompter(),
			Out:      os.Stdout,
			DryRun:   dryRun,
		},
	}, nil
}

func newGenerateCmd() *cobra.Command {
	sel := &selection{}
	cmd := &cobra.Command{
		Use:   "generate [files...]",
		Short: "Render templates into the generated output directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(true)
			if err != nil {
				return err
			}
			defer a.release()
			entries, err := sel.resolve(a.orch.Config, args)
			if err != nil {
				return err
			}
			report, err := a.orch.Generate(entries)
			if err != nil {
				return err
			}
			return report.Err()
		},
	}
	sel.addFlags(cmd)
	return cmd
}

func newStageCmd() *cobra.Command {
	sel := &selection{}
	var force bool
	cmd := &cobra.Command{
		Use:   "stage [files...]",
		Short: "Copy generated output into the staging area",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(true)
			if err != nil {
				return err
			}
			defer a.release()
			a.orch.Force = force
			entries, err := sel.resolve(a.orch.Config, args)
			if err != nil {
				return err
			}
			return a.orch.Stage(entries).Err()
		},
	}
	sel.addFlags(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "overwrite staged copies that have local edits")
	return cmd
}

func newDeployCmd() *cobra.Command {
	sel := &selection{}
	var force, noAtomic bool
	cmd := &cobra.Command{
		Use:   "deploy [files...]",
		Short: "Publish staged files as symlinks at their targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(true)
			if err != nil {
				return err
			}
			defer a.release()
			a.orch.Force = force
			a.orch.NoAtomic = noAtomic
			entries, err := sel.resolve(a.orch.Config, args)
			if err != nil {
				return err
			}
			return a.orch.Deploy(entries).Err()
		},
	}
	sel.addFlags(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "replace existing target files without a backup")
	cmd.Flags().BoolVar(&noAtomic, "no-atomic", false, "remove and recreate links instead of the atomic rename swap")
	return cmd
}

func newApplyCmd() *cobra.Command {
	sel := &selection{}
	var force, noAtomic bool
	cmd := &cobra.Command{
		Use:   "apply [files...]",
		Short: "Generate, stage, and deploy in one pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(true)
			if err != nil {
				return err
			}
			defer a.release()
			a.orch.Force = force
			a.orch.NoAtomic = noAtomic
			entries, err := sel.resolve(a.orch.Config, args)
			if err != nil {
				return err
			}
			report, err := a.orch.Apply(entries)
			if err != nil {
				return err
			}
			return report.Err()
		},
	}
	sel.addFlags(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "overwrite drifted staged copies and skip target backups")
	cmd.Flags().BoolVar(&noAtomic, "no-atomic", false, "remove and recreate links instead of the atomic rename swap")
	return cmd
}

func newUndeployCmd() *cobra.Command {
	sel := &selection{}
	var removeFile bool
	cmd := &cobra.Command{
		Use:   "undeploy [files...]",
		Short: "Replace deployed symlinks with plain files",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(true)
			if err != nil {
				return err
			}
			defer a.release()
			entries, err := sel.resolve(a.orch.Config, args)
			if err != nil {
				return err
			}
			return a.orch.Undeploy(entries, removeFile).Err()
		},
	}
	sel.addFlags(cmd)
	cmd.Flags().BoolVar(&removeFile, "remove-file", false, "delete the target instead of leaving a copy")
	return cmd
}

func newStatusCmd() *cobra.Command {
	sel := &selection{}
	opts := pipeline.StatusOptions{}
	cmd := &cobra.Command{
		Use:   "status [files...]",
		Short: "Show each file's pipeline position",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(false)
			if err != nil {
				return err
			}
			entries, err := sel.resolve(a.orch.Config, args)
			if err != nil {
				return err
			}
			return a.orch.Status(entries, opts)
		},
	}
	sel.addFlags(cmd)
	cmd.Flags().BoolVar(&opts.OnlyDiffs, "only-diffs", false, "show only files whose staged copy drifted")
	cmd.Flags().BoolVar(&opts.Deployed, "deployed", false, "show only deployed files")
	cmd.Flags().BoolVar(&opts.Undeployed, "undeployed", false, "show only files that are not deployed")
	return cmd
}

func newDiffCmd() *cobra.Command {
	sel := &selection{}
	cmd := &cobra.Command{
		Use:   "diff [files...]",
		Short: "Diff generated output against the staged copies",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(false)
			if err != nil {
				return err
			}
			entries, err := sel.resolve(a.orch.Config, args)
			if err != nil {
				return err
			}
			return a.orch.Diff(entries).Err()
		},
	}
	sel.addFlags(cmd)
	return cmd
}

func newSyncCmd() *cobra.Command {
	sel := &selection{}
	cmd := &cobra.Command{
		Use:   "sync [files...]",
		Short: "Merge staged drift back into the source templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(true)
			if err != nil {
				return err
			}
			defer a.release()
			entries, err := sel.resolve(a.orch.Config, args)
			if err != nil {
				return err
			}

			var resolver syncer.Resolver
			if prompter := newPrompter(); prompter != nil {
				resolver = &syncer.InteractiveResolver{Prompter: prompter, Out: os.Stdout}
			} else if !dryRun {
				return errors.New(errors.ErrInternal,
					"sync needs a terminal to resolve hunks; use --dry-run to preview")
			}
			engine := &syncer.Engine{
				Config:   a.orch.Config,
				FS:       a.orch.FS,
				State:    a.orch.State,
				Resolver: resolver,
				Out:      os.Stdout,
				DryRun:   dryRun,
			}
			return engine.Sync(entries).Err()
		},
	}
	sel.addFlags(cmd)
	return cmd
}

func newImportCmd() *cobra.Command {
	var all bool
	var maxDepth int
	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Bring an existing config file or directory under management",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(true)
			if err != nil {
				return err
			}
			defer a.release()

			prompter := newPrompter()
			if prompter == nil && !all && !dryRun {
				return errors.New(errors.ErrInternal,
					"import needs a terminal to prompt per file; use --all")
			}
			im := &importer.Importer{
				Orch:     a.orch,
				Prompter: prompter,
				All:      all,
				MaxDepth: maxDepth,
			}
			report, err := im.Import(args[0])
			if err != nil {
				return err
			}
			return report.Err()
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "import every file without prompting")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "limit directory walks to this depth (0 = unlimited)")
	return cmd
}

func newUnimportCmd() *cobra.Command {
	var filesets []string
	var removeFile bool
	cmd := &cobra.Command{
		Use:   "unimport [files...]",
		Short: "Remove files from management",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(true)
			if err != nil {
				return err
			}
			defer a.release()

			// No --all here: removing everything should hurt a little.
			var entries []config.FileEntry
			switch {
			case len(args) > 0 && len(filesets) == 0:
				entries, err = a.orch.Config.SelectFiles(args)
			case len(filesets) > 0 && len(args) == 0:
				entries, err = a.orch.Config.SelectFilesets(filesets)
			default:
				return errors.New(errors.ErrConfigValid,
					"name files explicitly or use --filesets")
			}
			if err != nil {
				return err
			}
			im := &importer.Importer{Orch: a.orch}
			return im.Unimport(entries, removeFile).Err()
		},
	}
	cmd.Flags().StringSliceVar(&filesets, "filesets", nil, "unimport files matching the named filesets")
	cmd.Flags().BoolVar(&removeFile, "remove-file", false, "delete the deployed target instead of leaving a copy")
	return cmd
}

func newCleanCmd() *cobra.Command {
	opts := pipeline.CleanOptions{}
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove generated output and orphaned pipeline files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.Generated && !opts.Orphans {
				return errors.New(errors.ErrConfigValid,
					"nothing selected; use --generated and/or --orphans")
			}
			a, err := loadApp(true)
			if err != nil {
				return err
			}
			defer a.release()
			return a.orch.Clean(opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Generated, "generated", false, "wipe the generated output directory")
	cmd.Flags().BoolVar(&opts.Orphans, "orphans", false, "remove generated/staged files no longer in the config")
	return cmd
}
