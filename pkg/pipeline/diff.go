package pipeline

import (
	"fmt"
	"strings"

	"github.com/muesli/termenv"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/logannc/janus/pkg/config"
	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/paths"
)

// Diff prints a unified diff of generated output against the staged
// copy for each selected file. Read-only; files with no difference
// print nothing.
func (o *Orchestrator) Diff(entries []config.FileEntry) *Report {
	profile := termenv.EnvColorProfile()
	report := &Report{}
	for i := range entries {
		report.Add(entries[i].Src, "diff", o.diffOne(&entries[i], profile))
	}
	return report
}

func (o *Orchestrator) diffOne(entry *config.FileEntry, profile termenv.Profile) error {
	generated, err := o.FS.ReadFile(o.GeneratedPath(entry.Src))
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileNotFound,
			"no generated output for %s; run generate first", entry.Src)
	}
	staged, err := o.FS.ReadFile(o.StagedPath(entry.Src))
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileNotFound,
			"no staged copy for %s; run stage first", entry.Src)
	}

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitKeepEnds(string(generated)),
		B:        splitKeepEnds(string(staged)),
		FromFile: paths.GeneratedDir + "/" + entry.Src,
		ToFile:   paths.StagedDir + "/" + entry.Src,
		Context:  3,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "diff failed")
	}
	if text == "" {
		return nil
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		fmt.Fprint(o.Out, colorDiffLine(profile, line))
	}
	return nil
}

func colorDiffLine(profile termenv.Profile, line string) string {
	switch {
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		return termenv.String(line).Foreground(profile.Color("4")).Bold().String()
	case strings.HasPrefix(line, "@@"):
		return termenv.String(line).Foreground(profile.Color("6")).String()
	case strings.HasPrefix(line, "+"):
		return termenv.String(line).Foreground(profile.Color("2")).String()
	case strings.HasPrefix(line, "-"):
		return termenv.String(line).Foreground(profile.Color("1")).String()
	default:
		return line
	}
}
