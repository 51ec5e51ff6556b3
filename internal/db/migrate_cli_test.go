package db

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrateCommand(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mstid.db")
	var out bytes.Buffer

	require.NoError(t, RunMigrateCommand(&out, []string{"status"}, path))
	assert.Contains(t, out.String(), "Current version: 0")
	assert.Contains(t, out.String(), "2 migration(s) pending")

	out.Reset()
	require.NoError(t, RunMigrateCommand(&out, []string{"up"}, path))
	assert.Contains(t, out.String(), "Current version: 2 (dirty: false)")

	out.Reset()
	require.NoError(t, RunMigrateCommand(&out, []string{"down"}, path))
	assert.Contains(t, out.String(), "Current version: 1")

	out.Reset()
	require.NoError(t, RunMigrateCommand(&out, []string{"version", "2"}, path))
	assert.Contains(t, out.String(), "Current version: 2")

	out.Reset()
	require.NoError(t, RunMigrateCommand(&out, []string{"force", "2"}, path))
	assert.Contains(t, out.String(), "forced to 2")
}

func TestRunMigrateCommand_BadArgs(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mstid.db")
	var out bytes.Buffer

	assert.Error(t, RunMigrateCommand(&out, nil, path))
	assert.Contains(t, out.String(), "Usage: music migrate")
	assert.Error(t, RunMigrateCommand(&out, []string{"sideways"}, path))
	assert.Error(t, RunMigrateCommand(&out, []string{"version"}, path))
	assert.Error(t, RunMigrateCommand(&out, []string{"force", "x"}, path))
	assert.NoError(t, RunMigrateCommand(&out, []string{"help"}, path))
}
