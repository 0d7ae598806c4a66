package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quratoop/serviced/internal/config"
	"github.com/quratoop/serviced/internal/procutil"
	"github.com/quratoop/serviced/internal/unit"
)

func newTestSupervisor(t *testing.T, units map[string]string) *Supervisor {
	t.Helper()
	unitDir := t.TempDir()
	for name, contents := range units {
		require.NoError(t, os.WriteFile(filepath.Join(unitDir, name), []byte(contents), 0o644))
	}

	root := t.TempDir()
	cfg := config.Default()
	cfg.SearchPath = []string{unitDir}
	cfg.StateRoot = filepath.Join(root, "state")
	cfg.PersistRoot = filepath.Join(root, "persist")

	return New(cfg, nil)
}

func TestScenarioS1SimpleStartStop(t *testing.T) {
	sup := newTestSupervisor(t, map[string]string{
		"hello.service": "[Service]\nType=simple\nExecStart=/bin/sleep 60\n",
	})

	require.NoError(t, sup.Start("hello"))

	status, err := sup.Status("hello")
	require.NoError(t, err)
	assert.Equal(t, "active", status.State)
	assert.True(t, procutil.Alive(status.PID))

	require.NoError(t, sup.Stop("hello"))

	status, err = sup.Status("hello")
	require.NoError(t, err)
	assert.Equal(t, "inactive", status.State)
}

func TestScenarioS2OneshotRemainAfterExit(t *testing.T) {
	sup := newTestSupervisor(t, map[string]string{
		"remain.service": "[Service]\nType=oneshot\nExecStart=/bin/true\nRemainAfterExit=yes\n",
	})

	require.NoError(t, sup.Start("remain"))
	status, err := sup.Status("remain")
	require.NoError(t, err)
	assert.Equal(t, "active", status.State)
	assert.Equal(t, 0, status.PID)

	require.NoError(t, sup.Start("remain"))
	status, err = sup.Status("remain")
	require.NoError(t, err)
	assert.Equal(t, "active", status.State)
}

func TestScenarioS3DeadOnArrival(t *testing.T) {
	sup := newTestSupervisor(t, map[string]string{
		"doa.service": "[Service]\nType=simple\nExecStart=/bin/false\n",
	})

	err := sup.Start("doa")
	assert.Error(t, err)

	status, statusErr := sup.Status("doa")
	require.NoError(t, statusErr)
	assert.Equal(t, "failed", status.State)
	assert.Equal(t, 0, sup.store.ReadPID("doa.service"))
}

func TestScenarioS4MaskedUnit(t *testing.T) {
	unitDir := t.TempDir()
	require.NoError(t, os.Symlink("/dev/null", filepath.Join(unitDir, "foo.service")))

	root := t.TempDir()
	cfg := config.Default()
	cfg.SearchPath = []string{unitDir}
	cfg.StateRoot = filepath.Join(root, "state")
	cfg.PersistRoot = filepath.Join(root, "persist")
	sup := New(cfg, nil)

	err := sup.Start("foo")
	require.Error(t, err)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestScenarioS5CriticalRefusal(t *testing.T) {
	sup := newTestSupervisor(t, nil)

	err := sup.Start("systemd-journald")
	require.Error(t, err)
	var refused *RefusedError
	assert.ErrorAs(t, err, &refused)

	_, statErr := os.Stat(sup.cfg.StateRoot)
	assert.True(t, os.IsNotExist(statErr), "no state directory should be created for a refused start")
}

func TestScenarioS6EnvExpansionAndOptionalFile(t *testing.T) {
	sup := newTestSupervisor(t, map[string]string{
		"envtest.service": "[Service]\nType=oneshot\n" +
			`EnvironmentFile=-/nonexistent/envfile` + "\n" +
			`Environment="OPTS=--flag --other"` + "\n" +
			"ExecStart=/bin/echo $OPTS\n",
	})

	require.NoError(t, sup.Start("envtest"))
}

func TestEnableDisableIdempotent(t *testing.T) {
	sup := newTestSupervisor(t, map[string]string{
		"svc.service": "[Service]\nExecStart=/bin/true\n",
	})

	assert.False(t, sup.IsEnabled("svc"))
	require.NoError(t, sup.Enable("svc"))
	assert.True(t, sup.IsEnabled("svc"))
	require.NoError(t, sup.Enable("svc"))
	assert.True(t, sup.IsEnabled("svc"))

	require.NoError(t, sup.Disable("svc"))
	assert.False(t, sup.IsEnabled("svc"))
	require.NoError(t, sup.Disable("svc"))
	assert.False(t, sup.IsEnabled("svc"))
}

func TestEnableSymlinksToUnitPath(t *testing.T) {
	sup := newTestSupervisor(t, map[string]string{
		"svc.service": "[Service]\nExecStart=/bin/true\n",
	})

	require.NoError(t, sup.Enable("svc"))

	rec, err := sup.registry.Get("svc")
	require.NoError(t, err)

	marker := sup.store.Paths.EnabledMarkerPath("svc.service")
	target, err := os.Readlink(marker)
	require.NoError(t, err)
	assert.Equal(t, rec.Path, target)
}

func TestEnableUnknownUnitFails(t *testing.T) {
	sup := newTestSupervisor(t, nil)
	err := sup.Enable("ghost")
	assert.Error(t, err)
	assert.False(t, sup.IsEnabled("ghost"))
}

func TestStopOnNotRunningServiceIsIdempotent(t *testing.T) {
	sup := newTestSupervisor(t, map[string]string{
		"idle.service": "[Service]\nExecStart=/bin/true\n",
	})

	require.NoError(t, sup.Stop("idle"))
	status, err := sup.Status("idle")
	require.NoError(t, err)
	assert.Equal(t, "inactive", status.State)
}

func TestRestartRunsStopThenStart(t *testing.T) {
	sup := newTestSupervisor(t, map[string]string{
		"restartme.service": "[Service]\nType=simple\nExecStart=/bin/sleep 60\n",
	})

	require.NoError(t, sup.Start("restartme"))
	firstStatus, err := sup.Status("restartme")
	require.NoError(t, err)
	firstPID := firstStatus.PID

	require.NoError(t, sup.Restart("restartme"))
	secondStatus, err := sup.Status("restartme")
	require.NoError(t, err)

	assert.NotEqual(t, firstPID, secondStatus.PID)
	assert.False(t, procutil.Alive(firstPID))
	assert.True(t, procutil.Alive(secondStatus.PID))
}

func TestSafetyGateRejectsTemplateUnits(t *testing.T) {
	sup := newTestSupervisor(t, nil)
	err := sup.Start("getty@.service")
	require.Error(t, err)
	var refused *RefusedError
	assert.ErrorAs(t, err, &refused)
}

func TestUnsupportedTypeRefused(t *testing.T) {
	sup := newTestSupervisor(t, map[string]string{
		"bus.service": "[Service]\nType=dbus\nExecStart=/bin/true\n",
	})

	err := sup.Start("bus")
	require.Error(t, err)
	var refused *RefusedError
	assert.ErrorAs(t, err, &refused)
}

func TestListServicesIncludesCriticalFlag(t *testing.T) {
	unitDir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(unitDir, unit.CanonicalName("plain")),
		[]byte("[Service]\nExecStart=/bin/true\n"),
		0o644,
	))

	root := t.TempDir()
	cfg := config.Default()
	cfg.SearchPath = []string{unitDir}
	cfg.StateRoot = filepath.Join(root, "state")
	cfg.PersistRoot = filepath.Join(root, "persist")
	sup := New(cfg, nil)

	entries, err := sup.ListServices(false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "plain.service", entries[0].Name)
	assert.False(t, entries[0].Critical)
}

func TestDryRunNeverWritesState(t *testing.T) {
	sup := newTestSupervisor(t, map[string]string{
		"dry.service": "[Service]\nType=simple\nExecStart=/bin/sleep 60\n",
	})
	sup.SetDryRun(true)

	require.NoError(t, sup.Start("dry"))
	assert.Equal(t, 0, sup.store.ReadPID("dry.service"))

	_, statErr := os.Stat(sup.cfg.Paths().StatusPath("dry.service"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDryRunStopNeverSignalsProcess(t *testing.T) {
	sup := newTestSupervisor(t, map[string]string{
		"dry.service": "[Service]\nType=simple\nExecStart=/bin/sleep 60\n",
	})

	require.NoError(t, sup.Start("dry"))
	pid := sup.store.ReadPID("dry.service")
	require.NotZero(t, pid)
	require.True(t, procutil.Alive(pid))

	sup.SetDryRun(true)
	require.NoError(t, sup.Stop("dry"))

	assert.True(t, procutil.Alive(pid), "dry-run stop must not signal the tracked pid")
	assert.Equal(t, pid, sup.store.ReadPID("dry.service"), "dry-run stop must not clear the PID file")

	sup.SetDryRun(false)
	require.NoError(t, sup.Stop("dry"))
	assert.False(t, procutil.Alive(pid))
}

func TestDryRunStartNeverKillsPreviouslyTrackedPID(t *testing.T) {
	sup := newTestSupervisor(t, map[string]string{
		"dry2.service": "[Service]\nType=simple\nExecStart=/bin/sleep 60\n",
	})

	require.NoError(t, sup.Start("dry2"))
	firstPID := sup.store.ReadPID("dry2.service")
	require.NotZero(t, firstPID)
	require.True(t, procutil.Alive(firstPID))

	sup.SetDryRun(true)
	require.NoError(t, sup.Start("dry2"))

	assert.True(t, procutil.Alive(firstPID), "dry-run start must not pre-clean a real tracked process")

	sup.SetDryRun(false)
	require.NoError(t, sup.Stop("dry2"))
}

func TestShowLogDefaultsToFiftyLines(t *testing.T) {
	sup := newTestSupervisor(t, map[string]string{
		"logged.service": "[Service]\nType=oneshot\nExecStart=/bin/true\n",
	})
	require.NoError(t, sup.Start("logged"))

	time.Sleep(10 * time.Millisecond)
	logContents, err := sup.ShowLog("logged", 0)
	require.NoError(t, err)
	assert.Contains(t, logContents, "START")

	f, err := os.OpenFile(sup.cfg.Paths().LogPath("logged.service"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	for i := 0; i < 60; i++ {
		_, err = fmt.Fprintf(f, "line %d\n", i)
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())

	logContents, err = sup.ShowLog("logged", 0)
	require.NoError(t, err)
	lines := strings.Split(logContents, "\n")
	assert.Len(t, lines, 50)
	assert.Equal(t, "line 59", lines[len(lines)-1])
}
