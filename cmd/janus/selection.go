package main

import (
	"github.com/spf13/cobra"

	"github.com/logannc/janus/pkg/config"
	"github.com/logannc/janus/pkg/errors"
)

// selection holds the file selection flags shared by most subcommands.
// Exactly one of explicit files, --all, or --filesets must be given;
// there is deliberately no implicit "all".
type selection struct {
	all      bool
	filesets []string
}

func (s *selection) addFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&s.all, "all", false, "select every configured file")
	cmd.Flags().StringSliceVar(&s.filesets, "filesets", nil, "select files matching the named filesets")
}

func (s *selection) resolve(cfg *config.Config, args []string) ([]config.FileEntry, error) {
	sources := 0
	if len(args) > 0 {
		sources++
	}
	if s.all {
		sources++
	}
	if len(s.filesets) > 0 {
		sources++
	}
	if sources != 1 {
		return nil, errors.New(errors.ErrConfigValid,
			"select files explicitly, with --all, or with --filesets")
	}

	switch {
	case s.all:
		return cfg.SelectAll(), nil
	case len(s.filesets) > 0:
		return cfg.SelectFilesets(s.filesets)
	default:
		return cfg.SelectFiles(args)
	}
}
