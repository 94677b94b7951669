package state_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/filesystem"
	"github.com/logannc/janus/pkg/paths"
	"github.com/logannc/janus/pkg/state"
)

func TestLoadMissing(t *testing.T) {
	store, err := state.Load(filesystem.NewOS(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, store.Files())
	assert.Equal(t, state.StatusUnmanaged, store.Get("bashrc").Status)
}

func TestLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, paths.StateFile),
		[]byte("not [ valid toml"), 0644))

	_, err := state.Load(filesystem.NewOS(), dir)
	require.Error(t, err)
	assert.Equal(t, errors.ErrStateLoad, errors.GetErrorCode(err))
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fsys := filesystem.NewOS()

	store, err := state.Load(fsys, dir)
	require.NoError(t, err)

	require.NoError(t, store.Transition("bashrc", state.StatusGenerated))
	require.NoError(t, store.Transition("bashrc", state.StatusStaged))
	store.SetStagedSum("bashrc", "abc123")
	require.NoError(t, store.Transition("bashrc", state.StatusDeployed))
	store.SetTarget("bashrc", "~/.bashrc")
	store.Ignore("~/.config/chromium", "noisy")
	require.NoError(t, store.Save())

	reloaded, err := state.Load(fsys, dir)
	require.NoError(t, err)

	fs := reloaded.Get("bashrc")
	assert.Equal(t, state.StatusDeployed, fs.Status)
	assert.Equal(t, "~/.bashrc", fs.Target)
	assert.Equal(t, "abc123", fs.StagedSum)
	assert.False(t, fs.Drift)
	assert.True(t, reloaded.IsIgnored("~/.config/chromium"))
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name string
		from state.Status
		to   state.Status
		ok   bool
	}{
		{"forward generate", state.StatusUnmanaged, state.StatusGenerated, true},
		{"forward stage", state.StatusGenerated, state.StatusStaged, true},
		{"forward deploy", state.StatusStaged, state.StatusDeployed, true},
		{"undeploy", state.StatusDeployed, state.StatusStaged, true},
		{"unimport from deployed", state.StatusDeployed, state.StatusUnmanaged, true},
		{"unimport from staged", state.StatusStaged, state.StatusUnmanaged, true},
		{"self transition", state.StatusStaged, state.StatusStaged, true},
		{"skip generate", state.StatusUnmanaged, state.StatusStaged, false},
		{"skip stage", state.StatusGenerated, state.StatusDeployed, false},
		{"deploy backwards to generated", state.StatusDeployed, state.StatusGenerated, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := state.Load(filesystem.NewOS(), t.TempDir())
			require.NoError(t, err)
			seed(t, store, "file", tt.from)

			assert.Equal(t, tt.ok, store.CanTransition("file", tt.to),
				"CanTransition should agree with Transition")
			err = store.Transition("file", tt.to)
			if tt.ok {
				assert.NoError(t, err)
				assert.Equal(t, tt.to, store.Get("file").Status)
			} else {
				require.Error(t, err)
				assert.Equal(t, errors.ErrStateTransition, errors.GetErrorCode(err))
				assert.Equal(t, tt.from, store.Get("file").Status, "failed transition leaves state untouched")
			}
		})
	}
}

// seed walks a file forward through valid transitions to the wanted status.
func seed(t *testing.T, store *state.Store, src string, to state.Status) {
	t.Helper()
	chain := []state.Status{state.StatusGenerated, state.StatusStaged, state.StatusDeployed}
	for _, status := range chain {
		if store.Get(src).Status == to {
			return
		}
		require.NoError(t, store.Transition(src, status))
	}
}

func TestUnmanagedDropsEntry(t *testing.T) {
	store, err := state.Load(filesystem.NewOS(), t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Transition("bashrc", state.StatusGenerated))
	require.NoError(t, store.Transition("bashrc", state.StatusUnmanaged))
	assert.Empty(t, store.Files())
}

func TestStagedSumClearsDrift(t *testing.T) {
	store, err := state.Load(filesystem.NewOS(), t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Transition("bashrc", state.StatusGenerated))
	require.NoError(t, store.Transition("bashrc", state.StatusStaged))
	store.SetDrift("bashrc", true)
	assert.True(t, store.Get("bashrc").Drift)

	store.SetStagedSum("bashrc", "fresh")
	fs := store.Get("bashrc")
	assert.False(t, fs.Drift, "recording a new staged checksum clears drift")
	assert.Equal(t, "fresh", fs.StagedSum)
}

func TestIgnore(t *testing.T) {
	store, err := state.Load(filesystem.NewOS(), t.TempDir())
	require.NoError(t, err)

	store.Ignore("~/.config/foo", "")
	store.Ignore("~/.config/bar", "generated by app")

	entries := store.Ignored()
	require.Len(t, entries, 2)
	assert.Equal(t, "~/.config/bar", entries[0].Path)

	assert.True(t, store.Unignore("~/.config/foo"))
	assert.False(t, store.Unignore("~/.config/foo"))
	assert.False(t, store.IsIgnored("~/.config/foo"))
}
