package cmd_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/zeros"
	"github.com/GoCodeAlone/zeros/cmd/zeros/cmd"
)

const testManifest = `
modules:
  kernel/core: []
  kernel/memory: [kernel/core]
  kernel/fs: [kernel/core]
  apps/shell: [kernel/fs, kernel/memory]
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := cmd.NewRootCommand()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestRootCommand(t *testing.T) {
	root := cmd.NewRootCommand()
	assert.Equal(t, "zeros", root.Use)

	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "layer by layer")
	for _, sub := range []string{"order", "boot", "serve", "config"} {
		assert.Contains(t, out, sub)
	}
}

func TestOrderCommand(t *testing.T) {
	path := writeFile(t, t.TempDir(), "boot.yaml", testManifest)

	out, err := execute(t, "order", path)
	require.NoError(t, err)
	assert.Equal(t, `Load order:
   1. kernel/core
   2. kernel/memory
   3. kernel/fs
   4. apps/shell
Layers:
  0: kernel/core
  1: kernel/memory, kernel/fs
  2: apps/shell
`, out)

	out, err = execute(t, "order", "--json", path)
	require.NoError(t, err)
	var plan zeros.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.Equal(t, zeros.LoadOrder{"kernel/core", "kernel/memory", "kernel/fs", "apps/shell"}, plan.Order)
	assert.Len(t, plan.Layers, 3)
}

func TestOrderCommand_Cycle(t *testing.T) {
	path := writeFile(t, t.TempDir(), "boot.json", `{"modules": {"a": ["b"], "b": ["a"]}}`)

	_, err := execute(t, "order", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, zeros.ErrCycleDetected)
}

func TestBootCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "boot.yaml", testManifest)
	scripts := filepath.Join(dir, "scripts")
	for _, id := range []string{"kernel/core", "kernel/memory", "kernel/fs", "apps/shell"} {
		writeFile(t, scripts, id+".js", "// "+id)
	}

	out, err := execute(t, "boot", "--scripts", scripts, path)
	require.NoError(t, err)
	assert.Contains(t, out, "boot completed (")

	out, err = execute(t, "boot", "--report", "--scripts", scripts, path)
	require.NoError(t, err)
	dec := json.NewDecoder(bytes.NewReader([]byte(out)))
	var report zeros.BootReport
	require.NoError(t, dec.Decode(&report))
	assert.Equal(t, []string{"kernel/core", "kernel/memory", "kernel/fs", "apps/shell"}, report.Order)
	for id, state := range report.Modules {
		assert.Equal(t, zeros.StateReady, state, id)
	}
}

func TestBootCommand_MissingScript(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "boot.yaml", testManifest)
	scripts := filepath.Join(dir, "scripts")
	writeFile(t, scripts, "kernel/core.js", "// core")

	_, err := execute(t, "boot", "--scripts", scripts, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boot failed")
}

func TestBootCommand_NoSource(t *testing.T) {
	path := writeFile(t, t.TempDir(), "boot.yaml", testManifest)

	_, err := execute(t, "boot", path)
	assert.ErrorIs(t, err, zeros.ErrNoScriptSource)
}

func TestConfigCommands(t *testing.T) {
	out, err := execute(t, "config", "sample", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "signal_timeout")

	_, err = execute(t, "config", "sample", "ini")
	assert.Error(t, err)

	out, err = execute(t, "config", "describe")
	require.NoError(t, err)
	assert.Contains(t, out, "script_ext")

	cfgPath := writeFile(t, t.TempDir(), "zeros.toml", "script_ext = \".lua\"\nlog_level = \"debug\"\n")
	out, err = execute(t, "--config", cfgPath, "--log-level", "warn", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "script_ext: .lua")
	assert.Contains(t, out, "log_level: warn")
}

func TestConfigFlag_UnsupportedFormat(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "zeros.ini", "x=1")
	_, err := execute(t, "--config", cfgPath, "config", "show")
	assert.ErrorIs(t, err, zeros.ErrUnsupportedFormatType)
}
