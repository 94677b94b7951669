package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/logannc/janus/pkg/logging"
	"github.com/logannc/janus/pkg/types"
)

var (
	configPath string
	dryRun     bool
	verbosity  int
	quietness  int
)

// NewRootCmd builds the janus command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "janus",
		Short: "Two-way dotfiles pipeline manager",
		Long: `janus manages configuration files through a template pipeline:
sources render into generated output, generated output is staged, and
staged files are published as symlinks at their live locations.
Applications edit through the symlink; those edits flow back into the
source templates with 'janus sync'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity - quietness)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default $XDG_CONFIG_HOME/janus/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false,
		"describe what would happen without changing anything")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"increase verbosity (-v info, -vv debug, -vvv trace)")
	rootCmd.PersistentFlags().CountVarP(&quietness, "quiet", "q",
		"decrease verbosity (-q errors only, -qq silent)")

	rootCmd.AddCommand(
		newInitCmd(),
		newImportCmd(),
		newGenerateCmd(),
		newStageCmd(),
		newDeployCmd(),
		newApplyCmd(),
		newUndeployCmd(),
		newUnimportCmd(),
		newStatusCmd(),
		newDiffCmd(),
		newSyncCmd(),
		newCleanCmd(),
	)
	return rootCmd
}

// newPrompter returns the interactive prompter, or nil when stdin is
// not a terminal. Callers treat nil as "no interaction possible".
func newPrompter() types.Prompter {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return nil
	}
	return &ptermPrompter{}
}

type ptermPrompter struct{}

func (p *ptermPrompter) Select(prompt string, options []string, defaultIndex int) (int, error) {
	defaultOption := ""
	if defaultIndex >= 0 && defaultIndex < len(options) {
		defaultOption = options[defaultIndex]
	}
	picked, err := pterm.DefaultInteractiveSelect.
		WithOptions(options).
		WithDefaultOption(defaultOption).
		Show(prompt)
	if err != nil {
		return 0, err
	}
	for i, option := range options {
		if option == picked {
			return i, nil
		}
	}
	return defaultIndex, nil
}

func (p *ptermPrompter) Input(prompt, initial string) (string, error) {
	return pterm.DefaultInteractiveTextInput.
		WithDefaultValue(initial).
		Show(prompt)
}
