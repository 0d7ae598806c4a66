package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"
)

// Status is the JSON snapshot written for a unit after every
// start/stop/restart attempt.
type Status struct {
	State     string    `json:"state"`
	PID       int       `json:"pid"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the on-disk bookkeeping layer rooted at Paths.
type Store struct {
	Paths Paths
}

// New builds a Store rooted at the given Paths.
func New(paths Paths) *Store {
	return &Store{Paths: paths}
}

// EnsureDirs creates the volatile state directories, and attempts (but
// does not require) creation of the persistent enabled-units directory,
// matching the original supervisor's tolerance for running unprivileged
// against a read-only /var/lib.
func (s *Store) EnsureDirs() error {
	for _, dir := range []string{s.Paths.StateRoot, s.Paths.pidDir(), s.Paths.logDir(), s.Paths.statusDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir %s: %w", dir, err)
		}
	}
	_ = os.MkdirAll(s.Paths.enabledDir(), 0o755)
	return nil
}

// ReadPID returns the PID stored for name, or 0 if it cannot be read.
func (s *Store) ReadPID(name string) int {
	data, err := os.ReadFile(s.Paths.PIDPath(name))
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// WritePID stores pid for name.
func (s *Store) WritePID(name string, pid int) error {
	if err := s.EnsureDirs(); err != nil {
		return err
	}
	return os.WriteFile(s.Paths.PIDPath(name), []byte(strconv.Itoa(pid)), 0o644)
}

// RemovePID deletes name's PID file, if any.
func (s *Store) RemovePID(name string) {
	_ = os.Remove(s.Paths.PIDPath(name))
}

// WriteStatus atomically writes name's status snapshot, so that a
// concurrent reader never observes a partially-written file.
func (s *Store) WriteStatus(name, state string, pid int, message string) error {
	if err := s.EnsureDirs(); err != nil {
		return err
	}

	snapshot := Status{
		State:     state,
		PID:       pid,
		Message:   message,
		Timestamp: time.Now(),
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	pending, err := renameio.NewPendingFile(
		s.Paths.StatusPath(name),
		renameio.WithPermissions(0o644),
	)
	if err != nil {
		return err
	}
	defer pending.Cleanup()

	if _, err := pending.Write(payload); err != nil {
		return err
	}
	return pending.CloseAtomicallyReplace()
}

// ReadStatus reads back name's status snapshot. It returns nil, nil if
// no snapshot exists or it cannot be parsed.
func (s *Store) ReadStatus(name string) (*Status, error) {
	data, err := os.ReadFile(s.Paths.StatusPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var snapshot Status
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, nil
	}
	return &snapshot, nil
}

// RemoveStatus deletes name's status snapshot, if any.
func (s *Store) RemoveStatus(name string) {
	_ = os.Remove(s.Paths.StatusPath(name))
}

// AppendLogHeader appends a "--- <name> START <timestamp> ---" marker
// to name's redirected log, so manually tailing the file makes launch
// boundaries obvious.
func (s *Store) AppendLogHeader(name string) error {
	if err := s.EnsureDirs(); err != nil {
		return err
	}
	f, err := os.OpenFile(s.Paths.LogPath(name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\n--- %s START %s ---\n", name, time.Now().Format("2006-01-02 15:04:05"))
	_, err = f.Write(buf.Bytes())
	return err
}

// Enable creates name's enabled marker, preferring a symlink to
// unitPath (so "ls -l enabled/" shows what a name actually points at,
// the same convention real systemd unit links follow) and falling back
// to a plain marker file when symlink creation is refused (e.g. the
// persist root lives on a filesystem that does not support them).
func (s *Store) Enable(name, unitPath string) error {
	if err := s.EnsureDirs(); err != nil {
		return err
	}
	target := s.Paths.EnabledMarkerPath(name)
	if unitPath != "" {
		if err := os.Symlink(unitPath, target); err == nil {
			return nil
		}
	}
	return os.WriteFile(target, []byte("# enabled\n"), 0o644)
}

// Disable removes name's enabled marker.
func (s *Store) Disable(name string) {
	_ = os.Remove(s.Paths.EnabledMarkerPath(name))
}

// IsEnabled reports whether name has an enabled marker.
func (s *Store) IsEnabled(name string) bool {
	_, err := os.Stat(s.Paths.EnabledMarkerPath(name))
	return err == nil
}

// EnabledNames lists every unit with an enabled marker.
func (s *Store) EnabledNames() ([]string, error) {
	entries, err := os.ReadDir(s.Paths.enabledDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// AppendAction appends a single line to the persistent audit log.
func (s *Store) AppendAction(line string) error {
	if err := os.MkdirAll(s.Paths.PersistRoot, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.Paths.ActionLogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "[%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), line)
	return err
}
