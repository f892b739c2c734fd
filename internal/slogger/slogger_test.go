package slogger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Verbosity(t *testing.T) {
	tests := []struct {
		name      string
		verbosity int
		wantInfo  bool
		wantDebug bool
	}{
		{name: "default", verbosity: 0},
		{name: "verbose", verbosity: 1, wantInfo: true},
		{name: "debug", verbosity: 2, wantInfo: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(Config{Verbosity: tt.verbosity, Output: &buf})

			logger.Info("info message")
			logger.Debug("debug message")
			logger.Error("error message")

			out := buf.String()
			assert.Contains(t, out, "error message")
			assert.Equal(t, tt.wantInfo, bytes.Contains(buf.Bytes(), []byte("info message")))
			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("debug message")))
		})
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Verbosity: 1, Output: &buf, Format: FormatJSON})

	logger.Info("synced", "pushed", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "synced", record["msg"])
	assert.EqualValues(t, 3, record["pushed"])
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]string{"": FormatText, "TEXT": FormatText, "json": FormatJSON, " logfmt ": FormatLogfmt} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	logger := New(Config{})
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, L(ctx))
}
