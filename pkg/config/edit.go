package config

import (
	"fmt"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/types"
)

// AppendFileEntry adds a [[files]] table to the config file by
// appending raw TOML, which keeps the user's formatting and comments
// intact. Fields matching their defaults are omitted.
func (c *Config) AppendFileEntry(fsys types.FS, entry FileEntry) error {
	existing, err := fsys.ReadFile(c.path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrConfigLoad, "failed to read config file %s", c.path)
	}

	var b strings.Builder
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n[[files]]\n")
	fmt.Fprintf(&b, "src = %q\n", entry.Src)
	if entry.Target != "" {
		fmt.Fprintf(&b, "target = %q\n", entry.Target)
	}
	if entry.Template != nil && !*entry.Template {
		b.WriteString("template = false\n")
	}

	updated := append(existing, []byte(b.String())...)
	if err := fsys.WriteFile(c.path, updated, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to update config file %s", c.path)
	}
	c.Files = append(c.Files, entry)
	log.Debug().Str("src", entry.Src).Msg("Added file entry to config")
	return nil
}

// RemoveFileEntry deletes a [[files]] table from the config file. The
// file is rewritten from the parsed model, so comments around file
// entries do not survive removal.
func (c *Config) RemoveFileEntry(fsys types.FS, src string) error {
	index := -1
	for i := range c.Files {
		if c.Files[i].Src == src {
			index = i
			break
		}
	}
	if index < 0 {
		return errors.Newf(errors.ErrFileUnknown, "no configured file matches %q", src)
	}
	c.Files = append(c.Files[:index], c.Files[index+1:]...)

	data, err := toml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to serialize config")
	}
	if err := fsys.WriteFile(c.path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to update config file %s", c.path)
	}
	log.Debug().Str("src", src).Msg("Removed file entry from config")
	return nil
}
