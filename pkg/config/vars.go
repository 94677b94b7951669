package config

import (
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/types"
)

// VarFiles returns the layered variable files for a file entry, in
// merge order: global vars, then each matching fileset's vars in config
// declaration order, then the entry's own vars. Later layers win.
func (c *Config) VarFiles(entry *FileEntry) ([]string, error) {
	return c.layeredFiles(entry, c.Vars, func(fs Fileset) []string { return fs.Vars }, entry.Vars)
}

// SecretFiles returns the layered secret definition files for a file
// entry, using the same layering as VarFiles.
func (c *Config) SecretFiles(entry *FileEntry) ([]string, error) {
	return c.layeredFiles(entry, c.Secrets, func(fs Fileset) []string { return fs.Secrets }, entry.Secrets)
}

func (c *Config) layeredFiles(entry *FileEntry, global []string, pick func(Fileset) []string, own []string) ([]string, error) {
	var layers []string
	layers = append(layers, global...)
	matches, err := c.MatchingFilesets(entry.Src)
	if err != nil {
		return nil, err
	}
	for _, name := range matches {
		layers = append(layers, pick(c.Filesets[name])...)
	}
	layers = append(layers, own...)
	return layers, nil
}

// LoadVars reads TOML variable files relative to the dotfiles directory
// and merges them in order, later files overriding earlier keys. Files
// that do not exist are skipped, so shared config can reference machine
// local var files that are only present on some hosts.
func LoadVars(fsys types.FS, dotfilesDir string, files []string) (map[string]interface{}, error) {
	vars := make(map[string]interface{})
	for _, file := range files {
		path := filepath.Join(dotfilesDir, file)
		data, err := fsys.ReadFile(path)
		if err != nil {
			log.Debug().Str("path", path).Msg("Var file not present, skipping")
			continue
		}
		layer := make(map[string]interface{})
		if err := toml.Unmarshal(data, &layer); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to parse var file %s", path)
		}
		for key, value := range layer {
			vars[key] = value
		}
	}
	return vars, nil
}
