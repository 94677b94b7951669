package pipeline_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logannc/janus/pkg/config"
	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/filesystem"
	"github.com/logannc/janus/pkg/pipeline"
	"github.com/logannc/janus/pkg/secrets"
	"github.com/logannc/janus/pkg/state"
	"github.com/logannc/janus/pkg/template"
	"github.com/logannc/janus/pkg/testutil"
)

type fixture struct {
	dir    string
	engine *testutil.FakeSecretEngine
	orch   *pipeline.Orchestrator
	out    *bytes.Buffer
}

// newFixture builds a dotfiles tree and an orchestrator over it. The
// configTOML is a format string receiving the dotfiles dir.
func newFixture(t *testing.T, configTOML string, files map[string]string) *fixture {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, files)

	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(configPath,
		[]byte(fmt.Sprintf(configTOML, dir)), 0644))

	fsys := filesystem.NewOS()
	cfg, err := config.Load(fsys, configPath)
	require.NoError(t, err)
	store, err := state.Load(fsys, cfg.Dir())
	require.NoError(t, err)

	engine := &testutil.FakeSecretEngine{Values: map[string]string{}}
	out := &bytes.Buffer{}
	return &fixture{
		dir:    dir,
		engine: engine,
		out:    out,
		orch: &pipeline.Orchestrator{
			Config:   cfg,
			FS:       fsys,
			State:    store,
			Renderer: template.NewRenderer(),
			Secrets:  secrets.NewResolver(engine),
			Out:      out,
		},
	}
}

func (f *fixture) reloadState(t *testing.T) *state.Store {
	t.Helper()
	store, err := state.Load(filesystem.NewOS(), f.orch.Config.Dir())
	require.NoError(t, err)
	return store
}

const basicConfig = `
dotfiles_dir = %q
vars = ["vars.toml"]

[[files]]
src = "gitconfig"
target = "TARGETDIR/gitconfig"
`

func targetedConfig(t *testing.T, raw string) (string, string) {
	t.Helper()
	targetDir := t.TempDir()
	return targetDir, replaceAll(raw, "TARGETDIR", targetDir)
}

func replaceAll(s, old, new string) string {
	return string(bytes.ReplaceAll([]byte(s), []byte(old), []byte(new)))
}

func TestGenerateRendersTemplate(t *testing.T) {
	f := newFixture(t, `
dotfiles_dir = %q
vars = ["vars.toml"]

[[files]]
src = "gitconfig"
`, map[string]string{
		"gitconfig": "[user]\n\temail = {{.email}}\n",
		"vars.toml": "email = \"me@example.com\"\n",
	})

	report, err := f.orch.Generate(f.orch.Config.SelectAll())
	require.NoError(t, err)
	require.NoError(t, report.Err())

	content := testutil.ReadFile(t, filepath.Join(f.dir, ".generated", "gitconfig"))
	assert.Equal(t, "[user]\n\temail = me@example.com\n", content)
	assert.Equal(t, state.StatusGenerated, f.reloadState(t).Get("gitconfig").Status)
}

func TestGenerateCopiesNonTemplate(t *testing.T) {
	f := newFixture(t, `
dotfiles_dir = %q

[[files]]
src = "binary.conf"
template = false
`, map[string]string{
		"binary.conf": "literal {{not a template}}\n",
	})

	report, err := f.orch.Generate(f.orch.Config.SelectAll())
	require.NoError(t, err)
	require.NoError(t, report.Err())

	content := testutil.ReadFile(t, filepath.Join(f.dir, ".generated", "binary.conf"))
	assert.Equal(t, "literal {{not a template}}\n", content)
}

func TestGenerateSecretDeduplication(t *testing.T) {
	f := newFixture(t, `
dotfiles_dir = %q
secrets = ["secrets.toml"]

[[files]]
src = "a.conf"

[[files]]
src = "b.conf"
`, map[string]string{
		"a.conf": "token={{.api_token}}\n",
		"b.conf": "auth={{.api_token}}\n",
		"secrets.toml": `[[secret]]
name = "api_token"
engine = "1password"
reference = "op://vault/item/token"
`,
	})
	f.engine.Values["1password:op://vault/item/token"] = "s3cret"

	report, err := f.orch.Generate(f.orch.Config.SelectAll())
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.Equal(t, 1, f.engine.Calls, "one engine lookup for a shared reference")
	assert.Equal(t, "token=s3cret\n",
		testutil.ReadFile(t, filepath.Join(f.dir, ".generated", "a.conf")))
	assert.Equal(t, "auth=s3cret\n",
		testutil.ReadFile(t, filepath.Join(f.dir, ".generated", "b.conf")))
}

func TestGenerateSecretCollisionAbortsRun(t *testing.T) {
	f := newFixture(t, `
dotfiles_dir = %q
vars = ["vars.toml"]
secrets = ["secrets.toml"]

[[files]]
src = "a.conf"

[[files]]
src = "b.conf"
`, map[string]string{
		"a.conf":    "x={{.api_key}}\n",
		"b.conf":    "y={{.other}}\n",
		"vars.toml": "api_key = \"plain\"\nother = \"ok\"\n",
		"secrets.toml": `[[secret]]
name = "api_key"
engine = "1password"
reference = "op://vault/item/key"
`,
	})

	_, err := f.orch.Generate(f.orch.Config.SelectAll())
	require.Error(t, err)
	assert.Equal(t, errors.ErrSecretConflict, errors.GetErrorCode(err))
	assert.Contains(t, err.Error(), "api_key")

	assert.NoFileExists(t, filepath.Join(f.dir, ".generated", "a.conf"))
	assert.NoFileExists(t, filepath.Join(f.dir, ".generated", "b.conf"),
		"no file renders when any file has a collision")
	assert.Equal(t, 0, f.engine.Calls)
}

func TestMergePrecedence(t *testing.T) {
	tests := []struct {
		name string
		cfg  string
		want string
	}{
		{
			name: "per-file wins",
			cfg: `
dotfiles_dir = %q
vars = ["global.toml"]

[[files]]
src = "app.conf"
vars = ["file.toml"]

[filesets.apps]
patterns = ["*.conf"]
vars = ["set.toml"]
`,
			want: "x=3\n",
		},
		{
			name: "fileset beats global",
			cfg: `
dotfiles_dir = %q
vars = ["global.toml"]

[[files]]
src = "app.conf"

[filesets.apps]
patterns = ["*.conf"]
vars = ["set.toml"]
`,
			want: "x=2\n",
		},
		{
			name: "global alone",
			cfg: `
dotfiles_dir = %q
vars = ["global.toml"]

[[files]]
src = "app.conf"
`,
			want: "x=1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.cfg, map[string]string{
				"app.conf":    "x={{.x}}\n",
				"global.toml": "x = 1\n",
				"set.toml":    "x = 2\n",
				"file.toml":   "x = 3\n",
			})
			report, err := f.orch.Generate(f.orch.Config.SelectAll())
			require.NoError(t, err)
			require.NoError(t, report.Err())
			assert.Equal(t, tt.want,
				testutil.ReadFile(t, filepath.Join(f.dir, ".generated", "app.conf")))
		})
	}
}

func TestApplyDeploysSymlink(t *testing.T) {
	_, cfg := targetedConfig(t, basicConfig)
	f := newFixture(t, cfg, map[string]string{
		"gitconfig": "email = {{.email}}\n",
		"vars.toml": "email = \"me@example.com\"\n",
	})

	report, err := f.orch.Apply(f.orch.Config.SelectAll())
	require.NoError(t, err)
	require.NoError(t, report.Err())

	target := f.orch.Config.Files[0].Target
	info, err := os.Lstat(target)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink, "target should be a symlink")

	assert.Equal(t, "email = me@example.com\n", testutil.ReadFile(t, target),
		"symlink resolves to the rendered content")

	record := f.reloadState(t).Get("gitconfig")
	assert.Equal(t, state.StatusDeployed, record.Status)
	assert.Equal(t, target, record.Target)
}

func TestApplyIsIdempotent(t *testing.T) {
	_, cfg := targetedConfig(t, basicConfig)
	f := newFixture(t, cfg, map[string]string{
		"gitconfig": "email = {{.email}}\n",
		"vars.toml": "email = \"me@example.com\"\n",
	})

	report, err := f.orch.Apply(f.orch.Config.SelectAll())
	require.NoError(t, err)
	require.NoError(t, report.Err())
	first := testutil.ReadFile(t, filepath.Join(f.dir, ".janus_state.toml"))

	report, err = f.orch.Apply(f.orch.Config.SelectAll())
	require.NoError(t, err)
	require.NoError(t, report.Err())
	second := testutil.ReadFile(t, filepath.Join(f.dir, ".janus_state.toml"))

	assert.Equal(t, first, second, "re-apply leaves the state store unchanged")
	assert.Equal(t, "email = me@example.com\n",
		testutil.ReadFile(t, f.orch.Config.Files[0].Target))
}

func TestStageRefusesDriftedCopy(t *testing.T) {
	_, cfg := targetedConfig(t, basicConfig)
	f := newFixture(t, cfg, map[string]string{
		"gitconfig": "email = {{.email}}\n",
		"vars.toml": "email = \"me@example.com\"\n",
	})

	report, err := f.orch.Apply(f.orch.Config.SelectAll())
	require.NoError(t, err)
	require.NoError(t, report.Err())

	// An application writes through the deployed symlink.
	stagedPath := filepath.Join(f.dir, ".staged", "gitconfig")
	require.NoError(t, os.WriteFile(stagedPath, []byte("email = edited@example.com\n"), 0644))

	report = f.orch.Stage(f.orch.Config.SelectAll())
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, errors.ErrStageDrift, errors.GetErrorCode(failed[0].Err))
	assert.Equal(t, "email = edited@example.com\n", testutil.ReadFile(t, stagedPath),
		"the drifted copy is untouched")
	assert.True(t, f.reloadState(t).Get("gitconfig").Drift)

	f.orch.Force = true
	report = f.orch.Stage(f.orch.Config.SelectAll())
	require.NoError(t, report.Err())
	assert.Equal(t, "email = me@example.com\n", testutil.ReadFile(t, stagedPath))
	assert.False(t, f.reloadState(t).Get("gitconfig").Drift)
}

func TestDeployBacksUpExistingFile(t *testing.T) {
	_, cfg := targetedConfig(t, basicConfig)
	f := newFixture(t, cfg, map[string]string{
		"gitconfig": "fresh\n",
		"vars.toml": "",
	})
	target := f.orch.Config.Files[0].Target
	require.NoError(t, os.WriteFile(target, []byte("precious old config\n"), 0644))

	report, err := f.orch.Apply(f.orch.Config.SelectAll())
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.Equal(t, "precious old config\n", testutil.ReadFile(t, target+".janus.bak"))
	assert.Equal(t, "fresh\n", testutil.ReadFile(t, target))
}

func TestDeployRefusesUnstagedState(t *testing.T) {
	// A staged copy on disk is not enough; the state has to agree that
	// the file reached staged. Nothing may be published otherwise.
	_, cfg := targetedConfig(t, basicConfig)
	f := newFixture(t, cfg, map[string]string{
		"gitconfig": "content\n",
		"vars.toml": "",
	})
	stagedPath := filepath.Join(f.orch.Config.StagedDir(), "gitconfig")
	require.NoError(t, os.MkdirAll(filepath.Dir(stagedPath), 0755))
	require.NoError(t, os.WriteFile(stagedPath, []byte("content\n"), 0644))

	report := f.orch.Deploy(f.orch.Config.SelectAll())

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.True(t, errors.IsErrorCode(failed[0].Err, errors.ErrStateTransition))
	assert.NoFileExists(t, f.orch.Config.Files[0].Target)
	assert.Equal(t, state.StatusUnmanaged, f.reloadState(t).Get("gitconfig").Status)
}

func TestUndeployLeavesPlainCopy(t *testing.T) {
	_, cfg := targetedConfig(t, basicConfig)
	f := newFixture(t, cfg, map[string]string{
		"gitconfig": "content\n",
		"vars.toml": "",
	})
	report, err := f.orch.Apply(f.orch.Config.SelectAll())
	require.NoError(t, err)
	require.NoError(t, report.Err())
	target := f.orch.Config.Files[0].Target

	report = f.orch.Undeploy(f.orch.Config.SelectAll(), false)
	require.NoError(t, report.Err())

	info, err := os.Lstat(target)
	require.NoError(t, err)
	assert.Zero(t, info.Mode()&os.ModeSymlink, "target should be a regular file")
	assert.Equal(t, "content\n", testutil.ReadFile(t, target))
	assert.Equal(t, state.StatusStaged, f.reloadState(t).Get("gitconfig").Status)
}

func TestUndeployRemoveFile(t *testing.T) {
	_, cfg := targetedConfig(t, basicConfig)
	f := newFixture(t, cfg, map[string]string{
		"gitconfig": "content\n",
		"vars.toml": "",
	})
	report, err := f.orch.Apply(f.orch.Config.SelectAll())
	require.NoError(t, err)
	require.NoError(t, report.Err())

	report = f.orch.Undeploy(f.orch.Config.SelectAll(), true)
	require.NoError(t, report.Err())
	assert.NoFileExists(t, f.orch.Config.Files[0].Target)
}

func TestApplyPartialFailure(t *testing.T) {
	targetDir := t.TempDir()
	f := newFixture(t, replaceAll(`
dotfiles_dir = %q

[[files]]
src = "good.conf"
target = "TARGETDIR/good.conf"
template = false

[[files]]
src = "bad.conf"
target = "TARGETDIR/bad.conf"
`, "TARGETDIR", targetDir), map[string]string{
		"good.conf": "fine\n",
		"bad.conf":  "broken {{.missing}}\n",
	})

	report, err := f.orch.Apply(f.orch.Config.SelectAll())
	require.NoError(t, err)
	require.Error(t, report.Err())
	assert.Equal(t, errors.ErrPipelineBatch, errors.GetErrorCode(report.Err()))
	require.Len(t, report.Failed(), 1)
	assert.Equal(t, "bad.conf", report.Failed()[0].Src)

	// The good file completed and survived the bad one's failure.
	assert.Equal(t, "fine\n", testutil.ReadFile(t, filepath.Join(targetDir, "good.conf")))
	store := f.reloadState(t)
	assert.Equal(t, state.StatusDeployed, store.Get("good.conf").Status)
	assert.Equal(t, state.StatusUnmanaged, store.Get("bad.conf").Status)
}

func TestDryRunTouchesNothing(t *testing.T) {
	_, cfg := targetedConfig(t, basicConfig)
	f := newFixture(t, cfg, map[string]string{
		"gitconfig": "email = {{.email}}\n",
		"vars.toml": "email = \"me@example.com\"\n",
	})
	f.orch.DryRun = true

	report, err := f.orch.Apply(f.orch.Config.SelectAll())
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.NoFileExists(t, filepath.Join(f.dir, ".generated", "gitconfig"))
	assert.NoFileExists(t, filepath.Join(f.dir, ".staged", "gitconfig"))
	assert.NoFileExists(t, f.orch.Config.Files[0].Target)
	assert.NoFileExists(t, filepath.Join(f.dir, ".janus_state.toml"))
}

func TestCleanOrphans(t *testing.T) {
	f := newFixture(t, `
dotfiles_dir = %q

[[files]]
src = "kept.conf"
template = false
`, map[string]string{
		"kept.conf":             "kept\n",
		".generated/kept.conf":  "kept\n",
		".generated/gone.conf":  "orphan\n",
		".staged/kept.conf":     "kept\n",
		".staged/gone.conf":     "orphan\n",
		".staged/sub/gone.conf": "nested orphan\n",
	})

	require.NoError(t, f.orch.Clean(pipeline.CleanOptions{Orphans: true}))

	assert.FileExists(t, filepath.Join(f.dir, ".generated", "kept.conf"))
	assert.FileExists(t, filepath.Join(f.dir, ".staged", "kept.conf"))
	assert.NoFileExists(t, filepath.Join(f.dir, ".generated", "gone.conf"))
	assert.NoFileExists(t, filepath.Join(f.dir, ".staged", "gone.conf"))
	assert.NoDirExists(t, filepath.Join(f.dir, ".staged", "sub"),
		"empty parents of removed orphans are pruned")
}

func TestCleanGenerated(t *testing.T) {
	f := newFixture(t, `
dotfiles_dir = %q

[[files]]
src = "a.conf"
template = false
`, map[string]string{
		"a.conf": "data\n",
	})
	report, err := f.orch.Generate(f.orch.Config.SelectAll())
	require.NoError(t, err)
	require.NoError(t, report.Err())

	require.NoError(t, f.orch.Clean(pipeline.CleanOptions{Generated: true}))
	assert.NoDirExists(t, filepath.Join(f.dir, ".generated"))
	assert.Equal(t, state.StatusUnmanaged, f.reloadState(t).Get("a.conf").Status)
}

func TestStatusReportsBrokenDeployClaim(t *testing.T) {
	_, cfg := targetedConfig(t, basicConfig)
	f := newFixture(t, cfg, map[string]string{
		"gitconfig": "content\n",
		"vars.toml": "",
	})
	report, err := f.orch.Apply(f.orch.Config.SelectAll())
	require.NoError(t, err)
	require.NoError(t, report.Err())

	// Someone replaced the symlink behind janus's back.
	target := f.orch.Config.Files[0].Target
	require.NoError(t, os.Remove(target))
	require.NoError(t, os.WriteFile(target, []byte("impostor\n"), 0644))

	require.NoError(t, f.orch.Status(f.orch.Config.SelectAll(), pipeline.StatusOptions{}))
	assert.Contains(t, f.out.String(), "not a janus symlink")
}

func TestDiffOutput(t *testing.T) {
	f := newFixture(t, `
dotfiles_dir = %q

[[files]]
src = "app.conf"
template = false
`, map[string]string{
		"app.conf":            "port = 8080\n",
		".generated/app.conf": "port = 8080\n",
		".staged/app.conf":    "port = 9090\n",
	})

	report := f.orch.Diff(f.orch.Config.SelectAll())
	require.NoError(t, report.Err())
	assert.Contains(t, f.out.String(), "-port = 8080")
	assert.Contains(t, f.out.String(), "+port = 9090")
}
