package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRun(t *testing.T, pm *PathManager, kind, runID, content string) string {
	t.Helper()
	path, err := pm.EnsureRunLog(kind, runID)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestPathManager_Paths(t *testing.T) {
	pm := NewPathManager("/var/log/dexkeep")

	assert.Equal(t, "/var/log/dexkeep", pm.BaseDir())
	assert.Equal(t, "/var/log/dexkeep/sync", pm.KindDir("sync"))
	assert.Equal(t, "/var/log/dexkeep/sync/run1.log", pm.RunLogPath("sync", "run1"))
}

func TestPathManager_EnsureRunLog(t *testing.T) {
	baseDir := t.TempDir()
	pm := NewPathManager(baseDir)

	path, err := pm.EnsureRunLog("sync", "run1")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(baseDir, "sync", "run1.log"), path)
	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPathManager_ListRuns(t *testing.T) {
	pm := NewPathManager(t.TempDir())

	runs, err := pm.ListRuns("sync")
	require.NoError(t, err)
	assert.Nil(t, runs)

	for _, run := range []string{"20260102T000000-b", "20260101T000000-a", "20260103T000000-c"} {
		writeRun(t, pm, "sync", run, "x\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(pm.KindDir("sync"), "notes.txt"), []byte("x"), 0644))

	runs, err = pm.ListRuns("sync")
	require.NoError(t, err)
	assert.Equal(t, []string{"20260101T000000-a", "20260102T000000-b", "20260103T000000-c"}, runs)

	latest, err := pm.LatestRun("sync")
	require.NoError(t, err)
	assert.Equal(t, "20260103T000000-c", latest)
}

func TestPathManager_Prune(t *testing.T) {
	pm := NewPathManager(t.TempDir())
	for _, run := range []string{"a", "b", "c", "d"} {
		writeRun(t, pm, "sync", run, "x\n")
	}

	require.NoError(t, pm.Prune("sync", 2))

	runs, err := pm.ListRuns("sync")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, runs)

	require.NoError(t, pm.Prune("sync", 10))
	require.NoError(t, pm.Prune("serve", 1))
}

func TestNewRunID(t *testing.T) {
	earlier := NewRunID(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	later := NewRunID(time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC))

	assert.Less(t, earlier, later)
	assert.Regexp(t, `^20260101T000000-[0-9a-f]{8}$`, earlier)
}
