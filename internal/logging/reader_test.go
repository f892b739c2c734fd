package logging

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer guards a bytes.Buffer shared with Follow's goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestReader_Resolve(t *testing.T) {
	pm := NewPathManager(t.TempDir())
	r := NewReader(pm)

	_, err := r.Resolve("sync", "")
	assert.ErrorIs(t, err, ErrNoRuns)

	writeRun(t, pm, "sync", "a", "")
	writeRun(t, pm, "sync", "b", "")

	got, err := r.Resolve("sync", "")
	require.NoError(t, err)
	assert.Equal(t, "b", got)

	got, err = r.Resolve("sync", "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got)
}

func TestReader_Tail(t *testing.T) {
	pm := NewPathManager(t.TempDir())
	var lines []string
	for i := 1; i <= 10; i++ {
		lines = append(lines, fmt.Sprintf("line%d", i))
	}
	writeRun(t, pm, "sync", "run", strings.Join(lines, "\n")+"\n")
	writeRun(t, pm, "sync", "empty", "")
	r := NewReader(pm)

	tests := []struct {
		name string
		run  string
		n    int
		want []string
	}{
		{"last three", "run", 3, []string{"line8", "line9", "line10"}},
		{"more than available", "run", 50, lines},
		{"default", "run", 0, lines},
		{"empty", "empty", 5, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Tail("sync", tt.run, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("missing", func(t *testing.T) {
		_, err := r.Tail("sync", "nope", 1)
		assert.Error(t, err)
	})
}

func TestReader_Follow(t *testing.T) {
	pm := NewPathManager(t.TempDir())
	path := writeRun(t, pm, "sync", "run", "old1\nold2\n")
	r := NewReader(pm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- r.Follow(ctx, "sync", "run", out, 1, 10*time.Millisecond) }()

	require.Eventually(t, func() bool { return out.String() == "old2\n" }, time.Second, 5*time.Millisecond)

	//nolint:gosec // G304: test temp directory
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("new\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool { return out.String() == "old2\nnew\n" }, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
