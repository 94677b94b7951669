package pipeline

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/muesli/termenv"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/logannc/janus/pkg/config"
	"github.com/logannc/janus/pkg/paths"
	"github.com/logannc/janus/pkg/state"
)

// StatusOptions filters status output.
type StatusOptions struct {
	// OnlyDiffs hides files whose staged copy matches generated output.
	OnlyDiffs bool

	// Deployed and Undeployed restrict output to one side of the
	// deployment check.
	Deployed   bool
	Undeployed bool
}

// FileStatus is the computed report for one file. The deployed claim is
// verified against the real symlink, not just the state record.
type FileStatus struct {
	Src          string
	Status       state.Status
	Target       string
	Deployed     bool
	Drifted      bool
	ChangedLines int
	Missing      bool
}

// Status reports each file's pipeline position. Read-only.
func (o *Orchestrator) Status(entries []config.FileEntry, opts StatusOptions) error {
	profile := termenv.EnvColorProfile()
	drifted := make(map[string][]string)

	for i := range entries {
		entry := &entries[i]
		fs := o.inspect(entry)

		if opts.OnlyDiffs && !fs.Drifted {
			continue
		}
		if opts.Deployed && !fs.Deployed {
			continue
		}
		if opts.Undeployed && fs.Deployed {
			continue
		}
		fmt.Fprintln(o.Out, renderStatus(profile, fs))

		if fs.Drifted {
			matches, err := o.Config.MatchingFilesets(entry.Src)
			if err == nil {
				for _, name := range matches {
					drifted[name] = append(drifted[name], entry.Src)
				}
			}
		}
	}

	for _, name := range o.Config.FilesetOrder() {
		if files := drifted[name]; len(files) > 0 {
			fmt.Fprintf(o.Out, "fileset %s: %d drifted (%s)\n",
				name, len(files), strings.Join(files, ", "))
		}
	}
	return nil
}

// inspect derives a file's real status, trusting disk over the state
// record where they disagree.
func (o *Orchestrator) inspect(entry *config.FileEntry) FileStatus {
	record := o.State.Get(entry.Src)
	fs := FileStatus{
		Src:    entry.Src,
		Status: record.Status,
		Target: record.Target,
	}
	if fs.Target == "" {
		fs.Target = entry.TargetPath()
	}

	generated, genErr := o.FS.ReadFile(o.GeneratedPath(entry.Src))
	staged, stagedErr := o.FS.ReadFile(o.StagedPath(entry.Src))
	if genErr == nil && stagedErr == nil && !bytes.Equal(generated, staged) {
		fs.Drifted = true
		fs.ChangedLines = changedLines(generated, staged)
	}
	if _, err := o.FS.Stat(o.SourcePath(entry.Src)); err != nil {
		fs.Missing = true
	}

	if record.Status == state.StatusDeployed {
		target := paths.ExpandTilde(fs.Target)
		fs.Deployed = IsJanusLink(o.FS, target, o.Config.StagedDir())
	}
	return fs
}

func renderStatus(profile termenv.Profile, fs FileStatus) string {
	var marker termenv.Style
	var note string
	switch {
	case fs.Missing:
		marker = termenv.String("✗").Foreground(profile.Color("1"))
		note = "source missing"
	case fs.Status == state.StatusDeployed && !fs.Deployed:
		marker = termenv.String("!").Foreground(profile.Color("1"))
		note = "recorded deployed but target is not a janus symlink"
	case fs.Drifted:
		marker = termenv.String("~").Foreground(profile.Color("3"))
		note = fmt.Sprintf("%d changed lines in staged copy", fs.ChangedLines)
	case fs.Deployed:
		marker = termenv.String("✓").Foreground(profile.Color("2"))
		note = "-> " + fs.Target
	default:
		marker = termenv.String("·").Foreground(profile.Color("8"))
	}

	line := fmt.Sprintf("%s %-40s %s", marker, fs.Src, fs.Status)
	if note != "" {
		line += "  (" + note + ")"
	}
	return line
}

// changedLines counts lines touched by the generated/staged diff.
func changedLines(generated, staged []byte) int {
	matcher := difflib.NewMatcher(splitKeepEnds(string(generated)), splitKeepEnds(string(staged)))
	count := 0
	for _, op := range matcher.GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		count += (op.I2 - op.I1) + (op.J2 - op.J1)
	}
	return count
}

// splitKeepEnds splits text into lines that keep their "\n" terminator,
// without the phantom trailing element strings.Split would produce.
func splitKeepEnds(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.SplitAfter(text, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
