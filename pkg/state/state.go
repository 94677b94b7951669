// Package state persists per-file pipeline progress in the dotfiles
// directory, so janus can recover interrupted runs and answer status
// queries without probing every target path.
package state

import (
	"path/filepath"
	"sort"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/logging"
	"github.com/logannc/janus/pkg/paths"
	"github.com/logannc/janus/pkg/types"
)

var log = logging.GetLogger("state")

// Status is a file's position in the pipeline.
type Status string

const (
	// StatusUnmanaged means the file has no pipeline artifacts.
	StatusUnmanaged Status = "unmanaged"

	// StatusGenerated means rendered output exists in .generated.
	StatusGenerated Status = "generated"

	// StatusStaged means a reviewed copy exists in .staged.
	StatusStaged Status = "staged"

	// StatusDeployed means the target symlink points into .staged.
	StatusDeployed Status = "deployed"
)

// allowedTransitions maps each status to the statuses it may move to.
// Self transitions are always allowed; re-running a step is idempotent.
var allowedTransitions = map[Status][]Status{
	StatusUnmanaged: {StatusGenerated},
	StatusGenerated: {StatusStaged, StatusUnmanaged},
	StatusStaged:    {StatusDeployed, StatusGenerated, StatusUnmanaged},
	StatusDeployed:  {StatusStaged, StatusUnmanaged},
}

// FileState records pipeline progress for one managed file.
type FileState struct {
	// Src is the path relative to the dotfiles directory.
	Src string `toml:"src"`

	Status Status `toml:"status"`

	// Target is the deploy path recorded at deploy time, with the home
	// directory collapsed to "~". Undeploy trusts this over the current
	// config so a config edit cannot strand a symlink.
	Target string `toml:"target,omitempty"`

	// Drift marks a staged copy that was hand-edited after staging.
	Drift bool `toml:"drift,omitempty"`

	// StagedSum is the sha256 of the staged copy, recorded at stage
	// time. Drift detection compares against it.
	StagedSum string `toml:"staged_sum,omitempty"`
}

// IgnoredEntry records a path the user told import to stop offering.
type IgnoredEntry struct {
	Path   string `toml:"path"`
	Reason string `toml:"reason,omitempty"`
}

type stateFile struct {
	Files   []FileState    `toml:"files,omitempty"`
	Ignored []IgnoredEntry `toml:"ignored,omitempty"`
}

// Store is the in-memory state with its backing file path. It is not
// safe for concurrent use; the process lock serializes janus runs.
type Store struct {
	fsys  types.FS
	path  string
	files map[string]*FileState
	// ignored is keyed by collapsed path.
	ignored map[string]IgnoredEntry
}

// Load reads the state file from the dotfiles directory. A missing file
// yields an empty store. A corrupt file is an error, never silently
// reset; the state is the only record of what janus deployed where.
func Load(fsys types.FS, dotfilesDir string) (*Store, error) {
	store := &Store{
		fsys:    fsys,
		path:    filepath.Join(dotfilesDir, paths.StateFile),
		files:   make(map[string]*FileState),
		ignored: make(map[string]IgnoredEntry),
	}
	data, err := fsys.ReadFile(store.path)
	if err != nil {
		log.Debug().Str("path", store.path).Msg("No state file, starting empty")
		return store, nil
	}
	var parsed stateFile
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return nil, errors.Wrapf(err, errors.ErrStateLoad,
			"state file %s is corrupt; refusing to continue", store.path)
	}
	for i := range parsed.Files {
		fs := parsed.Files[i]
		store.files[fs.Src] = &fs
	}
	for _, entry := range parsed.Ignored {
		store.ignored[entry.Path] = entry
	}
	return store, nil
}

// Save writes the state atomically: a temp file in the same directory,
// then a rename over the real path.
func (s *Store) Save() error {
	var out stateFile
	for _, src := range s.sortedSrcs() {
		out.Files = append(out.Files, *s.files[src])
	}
	var ignoredPaths []string
	for path := range s.ignored {
		ignoredPaths = append(ignoredPaths, path)
	}
	sort.Strings(ignoredPaths)
	for _, path := range ignoredPaths {
		out.Ignored = append(out.Ignored, s.ignored[path])
	}

	data, err := toml.Marshal(out)
	if err != nil {
		return errors.Wrap(err, errors.ErrStateSave, "failed to serialize state")
	}
	tmp := s.path + ".tmp"
	if err := s.fsys.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrStateSave, "failed to write %s", tmp)
	}
	if err := s.fsys.Rename(tmp, s.path); err != nil {
		return errors.Wrapf(err, errors.ErrStateSave, "failed to replace %s", s.path)
	}
	return nil
}

// Get returns the state for src. Unknown files are unmanaged.
func (s *Store) Get(src string) FileState {
	if fs, ok := s.files[src]; ok {
		return *fs
	}
	return FileState{Src: src, Status: StatusUnmanaged}
}

// Files returns all tracked file states sorted by src.
func (s *Store) Files() []FileState {
	var out []FileState
	for _, src := range s.sortedSrcs() {
		out = append(out, *s.files[src])
	}
	return out
}

// Transition moves src to a new status, enforcing the pipeline order.
// Moving to the current status is a no-op.
func (s *Store) Transition(src string, to Status) error {
	current := s.Get(src)
	if current.Status == to {
		return nil
	}
	if !transitionAllowed(current.Status, to) {
		return errors.Newf(errors.ErrStateTransition,
			"file %s cannot move from %s to %s", src, current.Status, to)
	}
	log.Debug().Str("src", src).
		Str("from", string(current.Status)).Str("to", string(to)).
		Msg("State transition")
	if to == StatusUnmanaged {
		delete(s.files, src)
		return nil
	}
	fs := s.ensure(src)
	fs.Status = to
	return nil
}

// CanTransition reports whether Transition would accept moving src to
// the given status. Callers with side effects check this first so a
// refused transition never leaves artifacts behind.
func (s *Store) CanTransition(src string, to Status) bool {
	current := s.Get(src).Status
	return current == to || transitionAllowed(current, to)
}

// SetTarget records the deploy target for src.
func (s *Store) SetTarget(src, target string) {
	s.ensure(src).Target = target
}

// SetStagedSum records the staged checksum and clears any drift mark.
func (s *Store) SetStagedSum(src, sum string) {
	fs := s.ensure(src)
	fs.StagedSum = sum
	fs.Drift = false
}

// SetDrift marks or clears hand-edit drift on the staged copy.
func (s *Store) SetDrift(src string, drift bool) {
	s.ensure(src).Drift = drift
}

// Ignore records a path import should stop offering.
func (s *Store) Ignore(path, reason string) {
	s.ignored[path] = IgnoredEntry{Path: path, Reason: reason}
}

// Unignore removes an ignore entry, returning whether it existed.
func (s *Store) Unignore(path string) bool {
	_, ok := s.ignored[path]
	delete(s.ignored, path)
	return ok
}

// IsIgnored reports whether a path was previously ignored.
func (s *Store) IsIgnored(path string) bool {
	_, ok := s.ignored[path]
	return ok
}

// Ignored returns all ignore entries sorted by path.
func (s *Store) Ignored() []IgnoredEntry {
	var paths []string
	for path := range s.ignored {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	out := make([]IgnoredEntry, 0, len(paths))
	for _, path := range paths {
		out = append(out, s.ignored[path])
	}
	return out
}

func (s *Store) ensure(src string) *FileState {
	if fs, ok := s.files[src]; ok {
		return fs
	}
	fs := &FileState{Src: src, Status: StatusUnmanaged}
	s.files[src] = fs
	return fs
}

func (s *Store) sortedSrcs() []string {
	srcs := make([]string, 0, len(s.files))
	for src := range s.files {
		srcs = append(srcs, src)
	}
	sort.Strings(srcs)
	return srcs
}

func transitionAllowed(from, to Status) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
