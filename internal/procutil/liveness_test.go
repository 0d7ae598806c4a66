package procutil

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliveRejectsNonPositivePID(t *testing.T) {
	assert.False(t, Alive(0))
	assert.False(t, Alive(-1))
}

func TestAliveInitProcess(t *testing.T) {
	assert.True(t, Alive(1))
}

func TestAliveForRunningAndExitedProcess(t *testing.T) {
	cmd := exec.Command("sleep", "5")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid

	assert.True(t, Alive(pid))

	require.NoError(t, cmd.Process.Kill())
	_ = cmd.Wait()

	assert.False(t, Alive(pid))
}

func TestSignalTreatsMissingProcessAsSuccess(t *testing.T) {
	cmd := exec.Command("sleep", "5")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	require.NoError(t, cmd.Process.Kill())
	_, _ = cmd.Process.Wait()

	err := Signal(pid, 15)
	assert.NoError(t, err)
}
