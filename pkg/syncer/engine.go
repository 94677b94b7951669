package syncer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/muesli/termenv"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/logannc/janus/pkg/config"
	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/logging"
	"github.com/logannc/janus/pkg/pipeline"
	"github.com/logannc/janus/pkg/state"
	"github.com/logannc/janus/pkg/template"
	"github.com/logannc/janus/pkg/types"
)

var log = logging.GetLogger("syncer")

// Engine runs the sync algorithm over selected files.
type Engine struct {
	Config   *config.Config
	FS       types.FS
	State    *state.Store
	Resolver Resolver
	Out      io.Writer
	DryRun   bool
}

// Sync reconciles each selected file independently.
func (e *Engine) Sync(entries []config.FileEntry) *pipeline.Report {
	report := &pipeline.Report{}
	for i := range entries {
		report.Add(entries[i].Src, "sync", e.syncOne(&entries[i]))
	}
	return report
}

func (e *Engine) syncOne(entry *config.FileEntry) error {
	sourcePath := filepath.Join(e.Config.Dir(), entry.Src)
	generatedPath := filepath.Join(e.Config.GeneratedDir(), entry.Src)
	stagedPath := filepath.Join(e.Config.StagedDir(), entry.Src)

	source, err := e.FS.ReadFile(sourcePath)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileNotFound, "source %s is missing", sourcePath)
	}
	generated, err := e.FS.ReadFile(generatedPath)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileNotFound,
			"no generated snapshot for %s; run generate first", entry.Src)
	}
	staged, err := e.FS.ReadFile(stagedPath)
	if err != nil {
		log.Debug().Str("src", entry.Src).Msg("No staged copy, nothing to sync")
		return nil
	}
	if string(generated) == string(staged) {
		log.Debug().Str("src", entry.Src).Msg("No drift")
		return nil
	}

	sourceLines := splitKeepEnds(string(source))
	genLines := splitKeepEnds(string(generated))
	stagedLines := splitKeepEnds(string(staged))

	// A template that changes line count between source and rendered
	// output (loops, conditionals) breaks the 1:1 line correspondence
	// the hunk mapping relies on.
	if entry.IsTemplate() && len(sourceLines) != len(genLines) {
		return errors.Newf(errors.ErrSyncConflict,
			"%s renders to a different line count than its source; merge manually", entry.Src)
	}

	hunks := e.computeHunks(entry, sourceLines, genLines, stagedLines)
	newSource, applied, err := e.resolveHunks(entry.Src, sourceLines, hunks)
	if err != nil {
		return err
	}

	if e.DryRun {
		return nil
	}
	if applied > 0 {
		if err := e.writeSource(sourcePath, newSource); err != nil {
			return err
		}
		log.Info().Str("src", entry.Src).Int("hunks", applied).Msg("Synced into source")
	}

	// Refresh the baseline to the staged content so unresolved drift is
	// not offered again on the next run.
	info, err := e.FS.Stat(stagedPath)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot stat %s", stagedPath)
	}
	if err := e.FS.WriteFile(generatedPath, staged, info.Mode().Perm()); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot refresh snapshot %s", generatedPath)
	}
	sum := sha256.Sum256(staged)
	e.State.SetStagedSum(entry.Src, hex.EncodeToString(sum[:]))
	return e.State.Save()
}

// computeHunks diffs the generated snapshot against the staged copy and
// flags hunks that cannot be applied mechanically.
func (e *Engine) computeHunks(entry *config.FileEntry, sourceLines, genLines, stagedLines []string) []Hunk {
	var hunks []Hunk
	for _, op := range difflib.NewMatcher(genLines, stagedLines).GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		hunk := Hunk{
			OldStart: op.I1,
			NewStart: op.J1,
			Removed:  append([]string(nil), genLines[op.I1:op.I2]...),
			Inserted: append([]string(nil), stagedLines[op.J1:op.J2]...),
		}
		e.flagConflict(entry, sourceLines, &hunk, op.I1, op.I2)
		hunks = append(hunks, hunk)
	}
	return hunks
}

func (e *Engine) flagConflict(entry *config.FileEntry, sourceLines []string, hunk *Hunk, from, to int) {
	if to > len(sourceLines) {
		hunk.Conflict = true
		hunk.Reason = "source is shorter than expected"
		return
	}
	for i := from; i < to; i++ {
		if entry.IsTemplate() && template.HasSyntax(sourceLines[i]) {
			hunk.Conflict = true
			hunk.Reason = "range contains template markup"
			return
		}
		if sourceLines[i] != hunk.Removed[i-from] {
			hunk.Conflict = true
			hunk.Reason = "source was edited since the last generate"
			return
		}
	}
}

// resolveHunks asks the resolver about each hunk and builds the new
// source. Applying a hunk shifts the source range of every later hunk
// by the line delta.
func (e *Engine) resolveHunks(src string, sourceLines []string, hunks []Hunk) ([]string, int, error) {
	newSource := append([]string(nil), sourceLines...)
	offset := 0
	applied := 0
	profile := termenv.EnvColorProfile()

	for _, hunk := range hunks {
		if e.DryRun {
			action := "apply"
			if hunk.Conflict {
				action = "skip"
			}
			fmt.Fprintf(e.Out, "%s: would %s\n%s", src, action, Format(profile, hunk))
			continue
		}

		decision, err := e.Resolver.Resolve(src, hunk)
		if err != nil {
			return nil, 0, errors.Wrapf(err, errors.ErrSyncConflict,
				"hunk resolution failed for %s", src)
		}

		var replacement []string
		switch decision.Action {
		case ActionSkip:
			continue
		case ActionApply:
			replacement = hunk.Inserted
		case ActionEdit:
			replacement = splitKeepEnds(ensureTerminated(decision.Text))
		}

		start := hunk.OldStart + offset
		end := hunk.OldStart + len(hunk.Removed) + offset
		if start < 0 || end > len(newSource) {
			return nil, 0, errors.Newf(errors.ErrSyncConflict,
				"hunk at line %d no longer fits %s", hunk.OldStart+1, src)
		}
		newSource = spliceLines(newSource, start, end, replacement)
		offset += len(replacement) - len(hunk.Removed)
		applied++
	}
	return newSource, applied, nil
}

func spliceLines(lines []string, start, end int, replacement []string) []string {
	out := make([]string, 0, len(lines)-(end-start)+len(replacement))
	out = append(out, lines[:start]...)
	out = append(out, replacement...)
	out = append(out, lines[end:]...)
	return out
}

func ensureTerminated(text string) string {
	if text != "" && !strings.HasSuffix(text, "\n") {
		return text + "\n"
	}
	return text
}

func (e *Engine) writeSource(path string, lines []string) error {
	info, err := e.FS.Stat(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot stat %s", path)
	}
	data := []byte(strings.Join(lines, ""))
	tmp := path + ".janus.tmp"
	if err := e.FS.WriteFile(tmp, data, info.Mode().Perm()); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", tmp)
	}
	if err := e.FS.Rename(tmp, path); err != nil {
		_ = e.FS.Remove(tmp)
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot replace %s", path)
	}
	return nil
}
