// Package secrets parses secret definition files and resolves their
// references through pluggable engines, caching each resolved reference
// for the duration of a run.
package secrets

import (
	"fmt"
	"path/filepath"
	"sort"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/logging"
	"github.com/logannc/janus/pkg/types"
)

var log = logging.GetLogger("secrets")

// Definition declares a named secret and where to fetch it from.
type Definition struct {
	// Name is the template variable the secret is exposed as.
	Name string `toml:"name"`

	// Engine selects the resolver backend, e.g. "1password".
	Engine string `toml:"engine"`

	// Reference is the engine-specific lookup, e.g. an op:// URI.
	Reference string `toml:"reference"`
}

type definitionFile struct {
	Secrets []Definition `toml:"secret"`
}

// ParseFiles reads secret definition files relative to the dotfiles
// directory and concatenates their definitions in order. Missing files
// are skipped, matching variable file behavior. A later definition with
// the same name shadows an earlier one.
func ParseFiles(fsys types.FS, dotfilesDir string, files []string) ([]Definition, error) {
	var defs []Definition
	for _, file := range files {
		path := filepath.Join(dotfilesDir, file)
		data, err := fsys.ReadFile(path)
		if err != nil {
			log.Debug().Str("path", path).Msg("Secret file not present, skipping")
			continue
		}
		var parsed definitionFile
		if err := toml.Unmarshal(data, &parsed); err != nil {
			return nil, errors.Wrapf(err, errors.ErrSecretParse, "failed to parse secret file %s", path)
		}
		for _, def := range parsed.Secrets {
			if def.Name == "" || def.Engine == "" || def.Reference == "" {
				return nil, errors.Newf(errors.ErrSecretParse,
					"secret definition in %s needs name, engine, and reference", path)
			}
		}
		defs = append(defs, parsed.Secrets...)
	}
	return dedupe(defs), nil
}

// dedupe keeps the last definition for each name, preserving the order
// of first appearance.
func dedupe(defs []Definition) []Definition {
	byName := make(map[string]Definition, len(defs))
	var order []string
	for _, def := range defs {
		if _, seen := byName[def.Name]; !seen {
			order = append(order, def.Name)
		}
		byName[def.Name] = def
	}
	out := make([]Definition, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}

// CheckConflicts fails when any secret name collides with a plain
// variable. All collisions are reported at once so the user can fix the
// whole config in one pass.
func CheckConflicts(vars map[string]interface{}, defs []Definition) error {
	var clashes []string
	for _, def := range defs {
		if _, ok := vars[def.Name]; ok {
			clashes = append(clashes, def.Name)
		}
	}
	if len(clashes) == 0 {
		return nil
	}
	sort.Strings(clashes)
	return errors.Newf(errors.ErrSecretConflict,
		"secret names collide with variables: %v", clashes).
		WithDetail("names", clashes)
}

// Resolver resolves secret definitions through an engine, caching each
// engine:reference pair so a secret shared by many files is fetched once
// per run.
type Resolver struct {
	engine types.SecretEngine
	cache  map[string]string
}

// NewResolver creates a Resolver backed by the given engine.
func NewResolver(engine types.SecretEngine) *Resolver {
	return &Resolver{
		engine: engine,
		cache:  make(map[string]string),
	}
}

// ResolveAll fetches every definition and returns name -> value.
func (r *Resolver) ResolveAll(defs []Definition) (map[string]interface{}, error) {
	resolved := make(map[string]interface{}, len(defs))
	for _, def := range defs {
		value, err := r.Resolve(def)
		if err != nil {
			return nil, err
		}
		resolved[def.Name] = value
	}
	return resolved, nil
}

// Resolve fetches a single definition, from cache when possible.
func (r *Resolver) Resolve(def Definition) (string, error) {
	key := fmt.Sprintf("%s:%s", def.Engine, def.Reference)
	if value, ok := r.cache[key]; ok {
		return value, nil
	}
	log.Debug().Str("name", def.Name).Str("engine", def.Engine).Msg("Resolving secret")
	value, err := r.engine.Resolve(def.Engine, def.Reference)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrSecretResolve,
			"failed to resolve secret %q", def.Name).
			WithDetail("engine", def.Engine)
	}
	r.cache[key] = value
	return value, nil
}
