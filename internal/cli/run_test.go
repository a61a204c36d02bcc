package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quenchlabs/quench/internal/suite"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRun_BuiltinSuitePasses(t *testing.T) {
	out, _, err := execute(t, "run", "--run-token", "cli-test")
	require.NoError(t, err)
	assert.Contains(t, out, "run cli-test: 5 total, 5 passed, 0 failed, 0 errored")
}

func TestRun_JSONReport(t *testing.T) {
	out, _, err := execute(t, "run", "--run-token", "cli-test", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   suite.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "cli-test", resp.Data.RunToken)
	assert.Equal(t, 5, resp.Data.Total)
	assert.Equal(t, 5, resp.Data.Passed)
}

func TestRun_ExportMatchesExportCommand(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "session.db")
	exportPath := filepath.Join(dir, "results.json")

	_, _, err := execute(t, "run", "--db", db, "--run-token", "cli-test", "--export", exportPath)
	require.NoError(t, err)

	fromRun, err := os.ReadFile(exportPath)
	require.NoError(t, err)

	out, _, err := execute(t, "export", "--db", db)
	require.NoError(t, err)

	assert.Equal(t, string(fromRun), out, "export is byte-stable for the same store")
}

func TestRun_BadProfileIsCommandError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.cue")
	require.NoError(t, os.WriteFile(path, []byte("profile: {intervals: {testbed_ms: -5}}"), 0o644))

	_, _, err := execute(t, "run", "--profile", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestExport_MissingStoreIsCommandError(t *testing.T) {
	_, _, err := execute(t, "export", "--db", filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStatus_SummarizesStore(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "session.db")

	_, _, err := execute(t, "run", "--db", db, "--run-token", "cli-test")
	require.NoError(t, err)

	out, _, err := execute(t, "status", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "5 results (5 passed, 0 failed, 0 errored)")
}
