package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "maplesync.yaml")
	cfg := `
world: challenger
database:
  path: ` + filepath.Join(dir, "test.db") + `
nexon:
  api_key: test-key
blocklist:
  server_name: challenger
  first_start: "2025-12-03"
`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoot_RejectsInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "pending")
	assert.Error(t, err)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "boom", nil)))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func TestPending_MissingConfigIsCommandError(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "pending")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestAddAndPending(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := execute(t, "--config", cfgPath, "add", "alice", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "added 2 of 2 names")

	// Adding again is a no-op.
	out, err = execute(t, "--config", cfgPath, "add", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "added 0 of 1 names")

	out, err = execute(t, "--config", cfgPath, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "no pending failures")
}

func TestOutputFormatter_JSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}
	require.NoError(t, f.Success(map[string]int{"added": 2}))
	assert.JSONEq(t, `{"status":"ok","data":{"added":2}}`, buf.String())

	buf.Reset()
	require.NoError(t, f.Error("boom", nil))
	assert.JSONEq(t, `{"status":"error","error":{"message":"boom"}}`, buf.String())
}
