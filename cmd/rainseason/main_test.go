package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/rainseason/internal/constants"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "rainseason "+constants.Version+"\n", out)
}

func TestSynthToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "precip.csv")
	_, err := execute(t, "synth", "--rows", "1", "--cols", "2", "--start-year", "2001", "--years", "2", "-o", path)
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Equal(t, "row,col,date,precip", lines[0])
	assert.Len(t, lines, 1+2*730)
	assert.True(t, strings.HasPrefix(lines[1], "0,0,2001-01-01,"))
}

func TestSynthUnknownRegime(t *testing.T) {
	_, err := execute(t, "synth", "--regime", "trimodal")
	assert.ErrorContains(t, err, "unknown regime")
}

func TestConfigImportAndShow(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	dbPath := filepath.Join(dir, "rainseason.db")
	require.NoError(t, os.WriteFile(yamlPath, []byte("mask:\n  min_rangeland_fraction: 0.9\nprocessing:\n  workers: 2\n"), 0o644))

	out, err := execute(t, "config", "import", yamlPath, "--config-backend", "sqlite", "--config", dbPath, "--profile", "strict")
	require.NoError(t, err)
	assert.Contains(t, out, `profile "strict"`)

	_, err = execute(t, "config", "set", "processing.workers", "6", "--config-backend", "sqlite", "--config", dbPath, "--profile", "strict")
	require.NoError(t, err)

	out, err = execute(t, "config", "show", "--config-backend", "sqlite", "--config", dbPath, "--profile", "strict")
	require.NoError(t, err)
	assert.Contains(t, out, "min_rangeland_fraction: 0.9")
	assert.Contains(t, out, "workers: 6")

	out, err = execute(t, "config", "profiles", "--config-backend", "sqlite", "--config", dbPath, "--profile", "strict")
	require.NoError(t, err)
	assert.Contains(t, out, "* strict")
}

func TestConfigSetNeedsSQLite(t *testing.T) {
	_, err := execute(t, "config", "set", "processing.workers", "6")
	assert.ErrorContains(t, err, "--config-backend sqlite")
}
