package launcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunForegroundSuccess(t *testing.T) {
	result, err := RunForeground(Request{Argv: []string{"/bin/true"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
}

func TestRunForegroundNonZeroExit(t *testing.T) {
	result, err := RunForeground(Request{Argv: []string{"/bin/sh", "-c", "exit 7"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, result.ExitCode)
}

func TestRunForegroundCommandNotFound(t *testing.T) {
	result, err := RunForeground(Request{Argv: []string{"/no/such/binary"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 127, result.ExitCode)
}

func TestRunForegroundDryRun(t *testing.T) {
	result, err := RunForeground(Request{Argv: []string{"/no/such/binary"}, DryRun: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
}

func TestRunForegroundRejectsEmptyArgv(t *testing.T) {
	_, err := RunForeground(Request{}, nil)
	assert.Error(t, err)
}

func TestRunBackgroundDryRunReturnsSyntheticPID(t *testing.T) {
	result, err := RunBackground(Request{Argv: []string{"/no/such/binary"}, DryRun: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, DryRunPID, result.PID)
}

func TestRunBackgroundStartsAndLogsOutput(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "svc.log")

	result, err := RunBackground(Request{
		Argv:    []string{"/bin/sh", "-c", "echo hello"},
		LogPath: logPath,
	}, nil)
	require.NoError(t, err)
	assert.Greater(t, result.PID, 0)

	time.Sleep(200 * time.Millisecond)

	contents, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "hello")
}
