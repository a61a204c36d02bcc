package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const passingScript = `
name: smoke
description: two passing steps
run_token: walkthrough-test
steps:
  - name: first
  - name: second
`

const failingScript = `
name: smoke
description: one failing step
run_token: walkthrough-test
steps:
  - name: first
  - name: second
    status: fail
    detail: declared failure
`

func TestWalkthrough_PassingScript(t *testing.T) {
	out, _, err := execute(t, "walkthrough", writeScript(t, passingScript))
	require.NoError(t, err)
	assert.Contains(t, out, "run walkthrough-test: 2 total, 2 passed, 0 failed, 0 errored")
}

func TestWalkthrough_FailingScriptExitsNonzero(t *testing.T) {
	_, _, err := execute(t, "walkthrough", writeScript(t, failingScript))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestWalkthrough_MissingScriptIsCommandError(t *testing.T) {
	_, _, err := execute(t, "walkthrough", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidate_Script(t *testing.T) {
	out, _, err := execute(t, "validate", writeScript(t, passingScript))
	require.NoError(t, err)
	assert.Contains(t, out, "smoke: valid (2 steps)")
}

func TestValidate_BadScriptFails(t *testing.T) {
	path := writeScript(t, "name: broken\nsteps: []\n")
	_, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
