package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	log, err := New(Options{Level: "debug", File: path})
	require.NoError(t, err)

	log.Info("task created")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "task created")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	assert.Error(t, err)
}
