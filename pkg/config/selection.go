package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/logannc/janus/pkg/errors"
)

// FindFile returns the entry whose src matches exactly, or nil.
func (c *Config) FindFile(src string) *FileEntry {
	for i := range c.Files {
		if c.Files[i].Src == src {
			return &c.Files[i]
		}
	}
	return nil
}

// MatchingFilesets returns the names of filesets whose patterns match src,
// in config declaration order.
func (c *Config) MatchingFilesets(src string) ([]string, error) {
	var names []string
	for _, name := range c.filesetOrder {
		fileset := c.Filesets[name]
		matched, err := matchAny(fileset.Patterns, src)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrGlobInvalid,
				"fileset %q has an invalid pattern", name)
		}
		if matched {
			names = append(names, name)
		}
	}
	return names, nil
}

// SelectAll returns every configured file entry.
func (c *Config) SelectAll() []FileEntry {
	return c.Files
}

// SelectFiles resolves explicit file arguments to config entries. Each
// argument must name a configured src exactly; unknown names fail with a
// did-you-mean suggestion when a close src exists.
func (c *Config) SelectFiles(args []string) ([]FileEntry, error) {
	var selected []FileEntry
	for _, arg := range args {
		entry := c.FindFile(arg)
		if entry == nil {
			return nil, c.unknownFileError(arg)
		}
		selected = append(selected, *entry)
	}
	return selected, nil
}

// SelectFilesets resolves fileset names to the union of their matching
// file entries, preserving config file order and deduplicating.
func (c *Config) SelectFilesets(names []string) ([]FileEntry, error) {
	for _, name := range names {
		if _, ok := c.Filesets[name]; !ok {
			return nil, c.unknownFilesetError(name)
		}
	}
	want := make(map[string]bool, len(names))
	for _, name := range names {
		want[name] = true
	}

	var selected []FileEntry
	for _, entry := range c.Files {
		matches, err := c.MatchingFilesets(entry.Src)
		if err != nil {
			return nil, err
		}
		for _, name := range matches {
			if want[name] {
				selected = append(selected, entry)
				break
			}
		}
	}
	return selected, nil
}

func (c *Config) unknownFileError(arg string) error {
	var srcs []string
	for _, entry := range c.Files {
		srcs = append(srcs, entry.Src)
	}
	msg := fmt.Sprintf("no configured file matches %q", arg)
	if suggestion := closest(arg, srcs); suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
	}
	return errors.New(errors.ErrFileUnknown, msg).WithDetail("file", arg)
}

func (c *Config) unknownFilesetError(name string) error {
	var known []string
	for fs := range c.Filesets {
		known = append(known, fs)
	}
	sort.Strings(known)
	msg := fmt.Sprintf("unknown fileset %q", name)
	if suggestion := closest(name, known); suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
	}
	return errors.New(errors.ErrFilesetUnknown, msg).WithDetail("fileset", name)
}

// closest picks the best fuzzy match for input among candidates, or ""
// when nothing is close enough to be a plausible typo.
func closest(input string, candidates []string) string {
	ranks := fuzzy.RankFindNormalizedFold(input, candidates)
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return ranks[0].Target
}

// matchAny reports whether any glob pattern matches src. Patterns match
// the whole src path, so "nvim/*" matches "nvim/init.lua" but a pattern
// with no separator only matches top-level files.
func matchAny(patterns []string, src string) (bool, error) {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, src)
		if err != nil {
			return false, fmt.Errorf("invalid glob %q: %w", pattern, err)
		}
		if matched {
			return true, nil
		}
		// "dir/**" style convenience: a trailing /** matches the whole
		// subtree, which filepath.Match alone does not.
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
			if strings.HasPrefix(src, prefix+"/") {
				return true, nil
			}
		}
	}
	return false, nil
}
