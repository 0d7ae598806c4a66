package state

import "path/filepath"

// Paths resolves the directories and files the supervisor uses for
// runtime bookkeeping. StateRoot holds volatile, per-boot data (PID
// files, redirected logs, status snapshots); PersistRoot holds data
// meant to survive a reboot (enabled markers, the audit log).
type Paths struct {
	StateRoot   string
	PersistRoot string
}

// DefaultPaths mirrors the original supervisor's hardcoded layout.
func DefaultPaths() Paths {
	return Paths{
		StateRoot:   "/tmp/serviced",
		PersistRoot: "/var/lib/serviced",
	}
}

func (p Paths) pidDir() string    { return filepath.Join(p.StateRoot, "pids") }
func (p Paths) logDir() string    { return filepath.Join(p.StateRoot, "logs") }
func (p Paths) statusDir() string { return filepath.Join(p.StateRoot, "status") }
func (p Paths) enabledDir() string {
	return filepath.Join(p.PersistRoot, "enabled")
}

// PIDPath is the path the given unit's PID file is stored at.
func (p Paths) PIDPath(name string) string { return filepath.Join(p.pidDir(), name+".pid") }

// LogPath is the path the given unit's redirected stdout/stderr log is
// appended to.
func (p Paths) LogPath(name string) string { return filepath.Join(p.logDir(), name+".log") }

// StatusPath is the path the given unit's status JSON snapshot lives at.
func (p Paths) StatusPath(name string) string { return filepath.Join(p.statusDir(), name+".json") }

// EnabledMarkerPath is the path of the given unit's enabled marker file.
func (p Paths) EnabledMarkerPath(name string) string {
	return filepath.Join(p.enabledDir(), name)
}

// ActionLogPath is the path of the persistent start/stop audit log.
func (p Paths) ActionLogPath() string {
	return filepath.Join(p.PersistRoot, "serviced.log")
}
