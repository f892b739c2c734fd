package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeeWriter(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")

	t.Run("writes to both destinations", func(t *testing.T) {
		primary := &bytes.Buffer{}
		tw, err := NewTeeWriter(primary, logPath)
		require.NoError(t, err)

		n, err := tw.Write([]byte("first\n"))
		require.NoError(t, err)
		assert.Equal(t, 6, n)
		assert.Equal(t, logPath, tw.LogPath())
		require.NoError(t, tw.Close())

		assert.Equal(t, "first\n", primary.String())
		assert.Empty(t, tw.LogPath())
	})

	t.Run("appends without a primary", func(t *testing.T) {
		tw, err := NewTeeWriter(nil, logPath)
		require.NoError(t, err)

		n, err := tw.Write([]byte("second\n"))
		require.NoError(t, err)
		assert.Equal(t, 7, n)
		require.NoError(t, tw.Close())
		require.NoError(t, tw.Close())

		//nolint:gosec // G304: test temp directory
		data, err := os.ReadFile(logPath)
		require.NoError(t, err)
		assert.Equal(t, "first\nsecond\n", string(data))
	})

	t.Run("write after close skips the file", func(t *testing.T) {
		primary := &bytes.Buffer{}
		tw, err := NewTeeWriter(primary, logPath)
		require.NoError(t, err)
		require.NoError(t, tw.Close())

		_, err = tw.Write([]byte("late\n"))
		require.NoError(t, err)
		assert.Equal(t, "late\n", primary.String())
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := NewTeeWriter(nil, filepath.Join(t.TempDir(), "nope", "run.log"))
		assert.Error(t, err)
	})
}
