package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockDryRun(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, minimalYAML)

	report, err := Lock(path, true)
	require.NoError(t, err)
	assert.False(t, report.Written)
	assert.Len(t, report.Hash, 64)

	_, err = os.Stat(filepath.Join(dir, ChecksumFilename))
	assert.True(t, os.IsNotExist(err), ".checksums should not be written in dry-run mode")
}

func TestLockThenLoadVerifies(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, minimalYAML)

	report, err := Lock(path, false)
	require.NoError(t, err)
	assert.True(t, report.Written)

	manifest, err := LoadChecksums(dir)
	require.NoError(t, err)
	assert.Equal(t, report.Hash, manifest.Hashes[DefaultFilename])

	_, err = Load(path)
	require.NoError(t, err)
}

func TestLoadRejectsTamperedConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, minimalYAML)

	_, err := Lock(path, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(minimalYAML+"\nservice:\n  log_level: debug\n"), 0o600))

	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash mismatch")
}

func TestLoadWithoutManifestSkipsVerification(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, minimalYAML)

	_, err := LoadChecksums(dir)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(path)
	assert.NoError(t, err)
}

func TestComputeBlake3HashDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))

	h1, err := ComputeBlake3Hash(path)
	require.NoError(t, err)
	h2, err := ComputeBlake3Hash(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.NoError(t, VerifyFileHash(path, h1))
	assert.Error(t, VerifyFileHash(path, "00"))
}
