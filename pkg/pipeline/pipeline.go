// Package pipeline drives the forward path for managed files: generate
// renders or copies sources into .generated, stage copies them into the
// symlink backing store, deploy publishes the target symlink. Files are
// processed one at a time and fail independently; state is persisted
// after every file so an interrupted run resumes where it stopped.
package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"path/filepath"
	"sort"

	"github.com/logannc/janus/pkg/config"
	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/logging"
	"github.com/logannc/janus/pkg/secrets"
	"github.com/logannc/janus/pkg/state"
	"github.com/logannc/janus/pkg/types"
)

var log = logging.GetLogger("pipeline")

// Orchestrator wires the pipeline's collaborators together. Construct
// one per run; the secret cache lives inside the resolver for exactly
// that long.
type Orchestrator struct {
	Config   *config.Config
	FS       types.FS
	State    *state.Store
	Renderer types.Renderer
	Secrets  *secrets.Resolver
	Prompter types.Prompter
	Out      io.Writer
	DryRun   bool
	Force    bool
	NoAtomic bool
}

// SourcePath returns the absolute path of a file's source template.
func (o *Orchestrator) SourcePath(src string) string {
	return filepath.Join(o.Config.Dir(), src)
}

// GeneratedPath returns the absolute path of a file's rendered output.
func (o *Orchestrator) GeneratedPath(src string) string {
	return filepath.Join(o.Config.GeneratedDir(), src)
}

// StagedPath returns the absolute path of a file's staged copy.
func (o *Orchestrator) StagedPath(src string) string {
	return filepath.Join(o.Config.StagedDir(), src)
}

// statusRank orders pipeline statuses so re-running an earlier stage on
// a file that is further along never regresses it.
var statusRank = map[state.Status]int{
	state.StatusUnmanaged: 0,
	state.StatusGenerated: 1,
	state.StatusStaged:    2,
	state.StatusDeployed:  3,
}

// advance moves src forward to at least the given status. Already being
// at or past it is a no-op. Callers save the store afterwards.
func (o *Orchestrator) advance(src string, to state.Status) error {
	if statusRank[o.State.Get(src).Status] >= statusRank[to] {
		return nil
	}
	return o.State.Transition(src, to)
}

// effectiveVars builds the flattened template data for one file: merged
// variables overlaid with resolved secrets.
func (o *Orchestrator) effectiveVars(entry *config.FileEntry) (map[string]interface{}, error) {
	vars, defs, err := o.loadLayers(entry)
	if err != nil {
		return nil, err
	}
	if err := secrets.CheckConflicts(vars, defs); err != nil {
		return nil, err
	}
	resolved, err := o.Secrets.ResolveAll(defs)
	if err != nil {
		return nil, err
	}
	for name, value := range resolved {
		vars[name] = value
	}
	return vars, nil
}

func (o *Orchestrator) loadLayers(entry *config.FileEntry) (map[string]interface{}, []secrets.Definition, error) {
	varFiles, err := o.Config.VarFiles(entry)
	if err != nil {
		return nil, nil, err
	}
	vars, err := config.LoadVars(o.FS, o.Config.Dir(), varFiles)
	if err != nil {
		return nil, nil, err
	}
	secretFiles, err := o.Config.SecretFiles(entry)
	if err != nil {
		return nil, nil, err
	}
	defs, err := secrets.ParseFiles(o.FS, o.Config.Dir(), secretFiles)
	if err != nil {
		return nil, nil, err
	}
	return vars, defs, nil
}

// checkConflicts scans every selected template file for variable/secret
// name collisions before anything is rendered, so the failure lists all
// conflicts across the whole selection at once.
func (o *Orchestrator) checkConflicts(entries []config.FileEntry) error {
	clashes := make(map[string]bool)
	for i := range entries {
		entry := &entries[i]
		if !entry.IsTemplate() {
			continue
		}
		vars, defs, err := o.loadLayers(entry)
		if err != nil {
			return err
		}
		for _, def := range defs {
			if _, ok := vars[def.Name]; ok {
				clashes[def.Name] = true
			}
		}
	}
	if len(clashes) == 0 {
		return nil
	}
	var names []string
	for name := range clashes {
		names = append(names, name)
	}
	sort.Strings(names)
	return errors.Newf(errors.ErrSecretConflict,
		"secret names collide with variables: %v", names).
		WithDetail("names", names)
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
