package cache

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRecordsOwner(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := Open(dir)
	require.NoError(t, err)

	pid, err := readOwner(dir)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, c.Close())
	_, err = os.Stat(filepath.Join(dir, ownerFile))
	assert.True(t, os.IsNotExist(err), "owner file must be removed on close")
}

func TestOpenWhileOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := Open(dir)
	require.NoError(t, err)
	defer c.Close()

	// The first handle belongs to a live process, so the lock is kept.
	_, err = Open(dir)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestRecoverStaleLock(t *testing.T) {
	t.Run("no owner", func(t *testing.T) {
		dir := t.TempDir()
		assert.NoError(t, recoverStaleLock(dir))
	})

	t.Run("live owner", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, writeOwner(dir))

		assert.ErrorIs(t, recoverStaleLock(dir), ErrBusy)
		_, err := os.Stat(filepath.Join(dir, ownerFile))
		assert.NoError(t, err, "owner file must stay while the owner runs")
	})

	t.Run("stale owner", func(t *testing.T) {
		dir := t.TempDir()
		lock := filepath.Join(dir, "LOCK")
		require.NoError(t, os.WriteFile(filepath.Join(dir, ownerFile), []byte(strconv.Itoa(999999999)), 0o644))
		require.NoError(t, os.WriteFile(lock, []byte("stale"), 0o644))

		require.NoError(t, recoverStaleLock(dir))
		for _, p := range []string{lock, filepath.Join(dir, ownerFile)} {
			_, err := os.Stat(p)
			assert.True(t, os.IsNotExist(err), "%s should be removed", p)
		}
	})
}

func TestProcessRunning(t *testing.T) {
	assert.True(t, processRunning(os.Getpid()))
	assert.False(t, processRunning(0))
	assert.False(t, processRunning(999999999))
}
