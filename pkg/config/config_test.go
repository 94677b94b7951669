package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logannc/janus/pkg/config"
	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/filesystem"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
dotfiles_dir = "~/dotfiles"
vars = ["vars/common.toml"]

[[files]]
src = "bashrc"
target = "~/.bashrc"
template = false

[[files]]
src = "nvim/init.lua"

[filesets.shell]
patterns = ["bashrc", "zshrc"]
vars = ["vars/shell.toml"]

[filesets.editors]
patterns = ["nvim/*"]
`)

	cfg, err := config.Load(filesystem.NewOS(), path)
	require.NoError(t, err)

	assert.Equal(t, "~/dotfiles", cfg.DotfilesDir)
	assert.Equal(t, []string{"vars/common.toml"}, cfg.Vars)
	require.Len(t, cfg.Files, 2)

	bashrc := cfg.FindFile("bashrc")
	require.NotNil(t, bashrc)
	assert.Equal(t, "~/.bashrc", bashrc.TargetPath())
	assert.False(t, bashrc.IsTemplate())

	nvim := cfg.FindFile("nvim/init.lua")
	require.NotNil(t, nvim)
	assert.Equal(t, "~/.config/nvim/init.lua", nvim.TargetPath())
	assert.True(t, nvim.IsTemplate(), "template should default to true")

	assert.Equal(t, []string{"shell", "editors"}, cfg.FilesetOrder())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantCode errors.ErrorCode
	}{
		{
			name:     "invalid toml",
			content:  `dotfiles_dir = `,
			wantCode: errors.ErrConfigParse,
		},
		{
			name:     "missing dotfiles_dir",
			content:  `[[files]]` + "\n" + `src = "bashrc"`,
			wantCode: errors.ErrConfigValid,
		},
		{
			name: "fileset without patterns",
			content: `dotfiles_dir = "~/dotfiles"
[filesets.empty]
vars = ["vars/x.toml"]`,
			wantCode: errors.ErrConfigValid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := config.Load(filesystem.NewOS(), path)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.GetErrorCode(err))
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.toml")
	_, err := config.Load(filesystem.NewOS(), path)
	require.Error(t, err)
	assert.Equal(t, errors.ErrConfigLoad, errors.GetErrorCode(err))
}

func TestMatchingFilesets(t *testing.T) {
	path := writeConfig(t, `
dotfiles_dir = "~/dotfiles"

[filesets.shell]
patterns = ["bashrc", "zsh/*"]

[filesets.all-nvim]
patterns = ["nvim/**"]
`)
	cfg, err := config.Load(filesystem.NewOS(), path)
	require.NoError(t, err)

	matches, err := cfg.MatchingFilesets("bashrc")
	require.NoError(t, err)
	assert.Equal(t, []string{"shell"}, matches)

	matches, err = cfg.MatchingFilesets("nvim/lua/plugins.lua")
	require.NoError(t, err)
	assert.Equal(t, []string{"all-nvim"}, matches, "/** should match nested paths")
}

func TestMatchingFilesetsInvalidGlob(t *testing.T) {
	path := writeConfig(t, `
dotfiles_dir = "~/dotfiles"

[filesets.broken]
patterns = ["[unclosed"]
`)
	cfg, err := config.Load(filesystem.NewOS(), path)
	require.NoError(t, err)

	_, err = cfg.MatchingFilesets("bashrc")
	require.Error(t, err)
	assert.Equal(t, errors.ErrGlobInvalid, errors.GetErrorCode(err))
}

func TestSelectFiles(t *testing.T) {
	path := writeConfig(t, `
dotfiles_dir = "~/dotfiles"

[[files]]
src = "bashrc"

[[files]]
src = "gitconfig"
`)
	cfg, err := config.Load(filesystem.NewOS(), path)
	require.NoError(t, err)

	selected, err := cfg.SelectFiles([]string{"gitconfig", "bashrc"})
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "gitconfig", selected[0].Src)
	assert.Equal(t, "bashrc", selected[1].Src)

	_, err = cfg.SelectFiles([]string{"bashr"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrFileUnknown, errors.GetErrorCode(err))
	assert.Contains(t, err.Error(), "bashrc", "should suggest the close match")
}

func TestSelectFilesets(t *testing.T) {
	path := writeConfig(t, `
dotfiles_dir = "~/dotfiles"

[[files]]
src = "bashrc"

[[files]]
src = "nvim/init.lua"

[[files]]
src = "zshrc"

[filesets.shell]
patterns = ["bashrc", "zshrc"]

[filesets.editors]
patterns = ["nvim/*"]
`)
	cfg, err := config.Load(filesystem.NewOS(), path)
	require.NoError(t, err)

	selected, err := cfg.SelectFilesets([]string{"shell"})
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "bashrc", selected[0].Src)
	assert.Equal(t, "zshrc", selected[1].Src)

	// Union of overlapping sets deduplicates and keeps file order.
	selected, err = cfg.SelectFilesets([]string{"editors", "shell"})
	require.NoError(t, err)
	require.Len(t, selected, 3)

	_, err = cfg.SelectFilesets([]string{"shel"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrFilesetUnknown, errors.GetErrorCode(err))
	assert.Contains(t, err.Error(), "shell")
}

func TestVarFileLayering(t *testing.T) {
	path := writeConfig(t, `
dotfiles_dir = "~/dotfiles"
vars = ["vars/common.toml"]
secrets = ["secrets/common.toml"]

[[files]]
src = "bashrc"
vars = ["vars/bash.toml"]

[filesets.shell]
patterns = ["bashrc"]
vars = ["vars/shell.toml"]
secrets = ["secrets/shell.toml"]

[filesets.late]
patterns = ["bashrc"]
vars = ["vars/late.toml"]
`)
	cfg, err := config.Load(filesystem.NewOS(), path)
	require.NoError(t, err)

	entry := cfg.FindFile("bashrc")
	require.NotNil(t, entry)

	varFiles, err := cfg.VarFiles(entry)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"vars/common.toml",
		"vars/shell.toml",
		"vars/late.toml",
		"vars/bash.toml",
	}, varFiles, "global, then filesets in declaration order, then per-file")

	secretFiles, err := cfg.SecretFiles(entry)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"secrets/common.toml",
		"secrets/shell.toml",
	}, secretFiles)
}

func TestLoadVars(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vars"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vars", "common.toml"),
		[]byte("editor = \"vi\"\nport = 8080\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vars", "host.toml"),
		[]byte("editor = \"nvim\"\n"), 0644))

	vars, err := config.LoadVars(filesystem.NewOS(), dir, []string{
		"vars/common.toml",
		"vars/missing.toml",
		"vars/host.toml",
	})
	require.NoError(t, err)

	assert.Equal(t, "nvim", vars["editor"], "later files override earlier keys")
	assert.Equal(t, int64(8080), vars["port"])
}

func TestLoadVarsParseError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.toml"), []byte("= broken"), 0644))

	_, err := config.LoadVars(filesystem.NewOS(), dir, []string{"bad.toml"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrConfigParse, errors.GetErrorCode(err))
}
