package pipeline_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/filesystem"
	"github.com/logannc/janus/pkg/pipeline"
	"github.com/logannc/janus/pkg/testutil"
)

func publisherFixture(t *testing.T) (*pipeline.Publisher, string, string) {
	t.Helper()
	dir := t.TempDir()
	stagedDir := filepath.Join(dir, ".staged")
	testutil.WriteFiles(t, dir, map[string]string{
		".staged/app.conf": "v1\n",
	})
	return &pipeline.Publisher{FS: filesystem.NewOS()}, stagedDir, dir
}

func TestPublishSwapsExistingLinkAtomically(t *testing.T) {
	pub, stagedDir, dir := publisherFixture(t)
	target := filepath.Join(dir, "target.conf")
	source := filepath.Join(stagedDir, "app.conf")

	require.NoError(t, pub.Publish(target, source, stagedDir, false))
	require.NoError(t, pub.Publish(target, source, stagedDir, false),
		"re-publishing over our own link needs no backup")

	assert.NoFileExists(t, target+".janus.bak")
	dest, err := os.Readlink(target)
	require.NoError(t, err)
	assert.Equal(t, source, dest)
	assert.NoFileExists(t, target+".janus.tmp", "temp link cleaned up by the rename")
}

func TestPublishNoAtomicFallback(t *testing.T) {
	pub, stagedDir, dir := publisherFixture(t)
	pub.NoAtomic = true
	target := filepath.Join(dir, "target.conf")
	source := filepath.Join(stagedDir, "app.conf")

	require.NoError(t, pub.Publish(target, source, stagedDir, false))
	require.NoError(t, pub.Publish(target, source, stagedDir, false))

	dest, err := os.Readlink(target)
	require.NoError(t, err)
	assert.Equal(t, source, dest)
}

func TestPublishForceSkipsBackup(t *testing.T) {
	pub, stagedDir, dir := publisherFixture(t)
	target := filepath.Join(dir, "target.conf")
	require.NoError(t, os.WriteFile(target, []byte("old\n"), 0644))

	require.NoError(t, pub.Publish(target, filepath.Join(stagedDir, "app.conf"), stagedDir, true))
	assert.NoFileExists(t, target+".janus.bak")
	assert.Equal(t, "v1\n", testutil.ReadFile(t, target))
}

func TestRetractRefusesForeignFiles(t *testing.T) {
	pub, stagedDir, dir := publisherFixture(t)
	target := filepath.Join(dir, "target.conf")
	require.NoError(t, os.WriteFile(target, []byte("not ours\n"), 0644))

	err := pub.Retract(target, stagedDir, false)
	require.Error(t, err)
	assert.Equal(t, errors.ErrFileAccess, errors.GetErrorCode(err))
	assert.Equal(t, "not ours\n", testutil.ReadFile(t, target))

	// A symlink pointing somewhere other than the staged dir is just as
	// foreign.
	other := filepath.Join(dir, "elsewhere")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))
	link := filepath.Join(dir, "foreign-link")
	require.NoError(t, os.Symlink(other, link))
	err = pub.Retract(link, stagedDir, false)
	require.Error(t, err)
}
