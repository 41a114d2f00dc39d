package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadRemovePidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shroudd.pid")

	require.NoError(t, WritePidFile(path))

	pid, err := ReadPidFile(path)
	require.NoError(t, err)
	require.Equal(t, os.Getpid(), pid)

	require.NoError(t, RemovePidFile(path))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err), "pidfile still present after RemovePidFile")
}

func TestRemovePidFileMissingIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.pid")
	require.NoError(t, RemovePidFile(path))
}

func TestWritePidFileRefusesLiveOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shroudd.pid")
	require.NoError(t, WritePidFile(path))
	err := WritePidFile(path)
	require.Error(t, err, "expected WritePidFile to refuse an already-claimed pidfile owned by this (live) process")
}

func TestReadPidFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid\n"), 0o644))

	_, err := ReadPidFile(path)
	require.Error(t, err, "expected ReadPidFile to reject non-numeric content")
}
