package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sys/unix"

	"github.com/quratoop/serviced/internal/cmdline"
	"github.com/quratoop/serviced/internal/config"
	"github.com/quratoop/serviced/internal/environment"
	"github.com/quratoop/serviced/internal/launcher"
	"github.com/quratoop/serviced/internal/procutil"
	"github.com/quratoop/serviced/internal/state"
	"github.com/quratoop/serviced/internal/unit"
)

// Supervisor orchestrates unit discovery, environment/argument
// resolution, process launching and on-disk state into the
// start/stop/restart/enable/disable/status/log/list operations.
type Supervisor struct {
	cfg      config.Config
	registry *unit.Registry
	store    *state.Store
	logger   hclog.Logger
	dryRun   bool
}

// New builds a Supervisor from cfg. A nil logger is replaced with a
// no-op logger.
func New(cfg config.Config, logger hclog.Logger) *Supervisor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Supervisor{
		cfg:      cfg,
		registry: unit.NewRegistry(cfg.SearchPath, logger.Named("unit")),
		store:    state.New(cfg.Paths()),
		logger:   logger,
	}
}

// SetDryRun toggles --dry-run semantics: no process is spawned or
// signalled, and a simple-type start writes no PID or status file;
// argv resolution and logging still happen. The audit log and the
// state directories are still written, and oneshot and forking starts,
// as well as a stop of a unit that is not running, still write a
// status snapshot.
func (s *Supervisor) SetDryRun(dryRun bool) {
	s.dryRun = dryRun
}

func (s *Supervisor) audit(format string, args ...any) {
	_ = s.store.AppendAction(fmt.Sprintf(format, args...))
}

// Start starts name, recursively starting its Requires=/Wants=
// dependencies first (best-effort, cycle-safe).
func (s *Supervisor) Start(name string) error {
	return s.startOne(unit.CanonicalName(name), make(map[string]bool))
}

func (s *Supervisor) startOne(name string, visiting map[string]bool) error {
	s.audit("START request for %s", name)

	if s.isCritical(name) {
		s.logger.Error("refusing to manage critical service", "name", name)
		return &RefusedError{Name: name, Reason: "critical service"}
	}

	rec, err := s.registry.Get(name)
	if err != nil {
		s.logger.Error("service not found", "name", name)
		return &NotFoundError{Name: name}
	}

	stype := rec.ServiceType()
	if s.isUnsupportedType(stype) {
		s.logger.Error("unsupported service type", "name", name, "type", stype)
		return &RefusedError{Name: name, Reason: fmt.Sprintf("unsupported type %q", stype)}
	}

	s.preClean(name, rec)
	s.startDependencies(name, rec, visiting)

	s.logger.Debug("starting", "name", name, "description", rec.Description())

	env := environment.Resolve(os.Environ(), rec.EnvironmentFile(), rec.Environment(), s.logger)
	if err := s.store.EnsureDirs(); err != nil {
		return &StartFailedError{Name: name, Reason: err.Error()}
	}
	if !s.dryRun {
		_ = s.store.AppendLogHeader(name)
	}

	for _, raw := range rec.ExecStartPre() {
		checkErrors, argv := s.resolveArgv(raw, env)
		if len(argv) == 0 {
			continue
		}
		result, _ := launcher.RunForeground(s.foregroundRequest(argv, env, rec, name), s.logger)
		if result.ExitCode != 0 && checkErrors {
			s.logger.Error("ExecStartPre failed", "name", name, "exit_code", result.ExitCode)
			_ = s.store.WriteStatus(name, "failed", 0, "ExecStartPre failed")
			return &StartFailedError{Name: name, Reason: "ExecStartPre failed"}
		}
	}

	var dispatchErr error
	switch stype {
	case "oneshot":
		dispatchErr = s.startOneshot(name, rec, env)
	case "forking":
		dispatchErr = s.startForking(name, rec, env)
	default:
		dispatchErr = s.startSimple(name, rec, env)
	}

	if dispatchErr == nil {
		for _, raw := range rec.ExecStartPost() {
			_, argv := s.resolveArgv(raw, env)
			if len(argv) == 0 {
				continue
			}
			_, _ = launcher.RunForeground(s.foregroundRequest(argv, env, rec, name), s.logger)
		}
	}

	return dispatchErr
}

// resolveArgv runs the full C4 pipeline for one raw Exec*= directive.
func (s *Supervisor) resolveArgv(raw string, env []string) (checkErrors bool, argv []string) {
	checkErrors, argv = cmdline.Parse(raw)
	if len(argv) == 0 {
		return checkErrors, nil
	}
	envMap := make(map[string]string, len(env))
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			envMap[k] = v
		}
	}
	argv = cmdline.ExpandEnv(argv, envMap)
	argv = cmdline.StripSocketActivation(argv)
	return checkErrors, argv
}

func (s *Supervisor) foregroundRequest(argv, env []string, rec *unit.Record, name string) launcher.Request {
	return launcher.Request{
		Argv:             argv,
		Env:              env,
		WorkingDirectory: rec.WorkingDirectory(),
		User:             rec.User(),
		Group:            rec.Group(),
		LogPath:          s.cfg.Paths().LogPath(name),
		DryRun:           s.dryRun,
	}
}

func (s *Supervisor) startOneshot(name string, rec *unit.Record, env []string) error {
	cmds := rec.ExecStart()
	if len(cmds) == 0 {
		s.logger.Error("no ExecStart defined", "name", name)
		return &StartFailedError{Name: name, Reason: "no ExecStart"}
	}

	for _, raw := range cmds {
		checkErrors, argv := s.resolveArgv(raw, env)
		if len(argv) == 0 {
			continue
		}
		result, _ := launcher.RunForeground(s.foregroundRequest(argv, env, rec, name), s.logger)
		if result.ExitCode != 0 && checkErrors {
			msg := fmt.Sprintf("ExecStart failed (exit %d)", result.ExitCode)
			s.logger.Error(msg, "name", name)
			_ = s.store.WriteStatus(name, "failed", 0, msg)
			return &StartFailedError{Name: name, Reason: msg}
		}
	}

	if rec.RemainAfterExit() {
		_ = s.store.WriteStatus(name, "active", 0, "Completed (RemainAfterExit)")
	} else {
		_ = s.store.WriteStatus(name, "inactive", 0, "Completed successfully")
	}
	s.logger.Info("completed", "name", name)
	return nil
}

func (s *Supervisor) startForking(name string, rec *unit.Record, env []string) error {
	cmds := rec.ExecStart()
	if len(cmds) == 0 {
		s.logger.Error("no ExecStart defined", "name", name)
		return &StartFailedError{Name: name, Reason: "no ExecStart"}
	}

	for _, raw := range cmds {
		checkErrors, argv := s.resolveArgv(raw, env)
		if len(argv) == 0 {
			continue
		}
		result, _ := launcher.RunForeground(s.foregroundRequest(argv, env, rec, name), s.logger)
		if result.ExitCode != 0 && checkErrors {
			s.logger.Error("ExecStart failed", "name", name, "exit_code", result.ExitCode)
			_ = s.store.WriteStatus(name, "failed", 0, "ExecStart failed")
			return &StartFailedError{Name: name, Reason: "ExecStart failed"}
		}
	}

	pid := 0
	if pidFile := rec.PIDFile(); pidFile != "" {
		for i := 0; i < 20; i++ {
			if data, err := os.ReadFile(pidFile); err == nil {
				if parsed, convErr := strconv.Atoi(strings.TrimSpace(string(data))); convErr == nil {
					pid = parsed
					break
				}
			}
			if !s.dryRun {
				time.Sleep(200 * time.Millisecond)
			}
		}
	}

	if pid != 0 && procutil.Alive(pid) {
		_ = s.store.WritePID(name, pid)
		_ = s.store.WriteStatus(name, "active", pid, "")
		s.logger.Info("started", "name", name, "pid", pid)
	} else {
		s.logger.Warn("forking service started but no PID tracked", "name", name)
		_ = s.store.WriteStatus(name, "active", 0, "PID unknown")
	}
	return nil
}

func (s *Supervisor) startSimple(name string, rec *unit.Record, env []string) error {
	cmds := rec.ExecStart()
	if len(cmds) == 0 {
		s.logger.Error("no ExecStart defined", "name", name)
		_ = s.store.WriteStatus(name, "failed", 0, "No ExecStart")
		return &StartFailedError{Name: name, Reason: "no ExecStart"}
	}

	raw := cmds[len(cmds)-1]
	_, argv := s.resolveArgv(raw, env)
	if len(argv) == 0 {
		_ = s.store.WriteStatus(name, "failed", 0, "No ExecStart")
		return &StartFailedError{Name: name, Reason: "no ExecStart"}
	}

	req := launcher.Request{
		Argv:             argv,
		Env:              env,
		WorkingDirectory: rec.WorkingDirectory(),
		User:             rec.User(),
		Group:            rec.Group(),
		LogPath:          s.cfg.Paths().LogPath(name),
		DryRun:           s.dryRun,
	}
	result, err := launcher.RunBackground(req, s.logger)
	if err != nil || result.PID <= 0 {
		s.logger.Error("failed to start", "name", name)
		_ = s.store.WriteStatus(name, "failed", 0, "Failed to start process")
		return &StartFailedError{Name: name, Reason: "failed to start process"}
	}

	if !s.dryRun {
		_ = s.store.WritePID(name, result.PID)
		_ = s.store.WriteStatus(name, "active", result.PID, "")
	}

	if !s.dryRun {
		wait := 500 * time.Millisecond
		if stype := rec.ServiceType(); stype == "notify" || stype == "notify-reload" {
			wait = 1500 * time.Millisecond
		}
		time.Sleep(wait)

		if !procutil.Alive(result.PID) {
			if rec.RemainAfterExit() {
				s.logger.Info("started and exited (RemainAfterExit)", "name", name)
				_ = s.store.WriteStatus(name, "active", 0, "Exited (RemainAfterExit)")
			} else {
				s.logger.Error("started but exited immediately", "name", name)
				_ = s.store.WriteStatus(name, "failed", 0, "Exited immediately")
				s.store.RemovePID(name)
				return &StartFailedError{Name: name, Reason: "exited immediately"}
			}
		}
	}

	s.logger.Info("started", "name", name, "pid", result.PID)
	return nil
}

// preClean implements the aggressive pre-start cleanup: kill the
// previously tracked pid, and (when PkillOnStart is enabled) a
// basename-wide pkill sweep, skipping shared interpreter binaries.
func (s *Supervisor) preClean(name string, rec *unit.Record) {
	if s.dryRun {
		s.logger.Info("dry-run: skipping pre-clean", "name", name)
		return
	}

	pid := s.store.ReadPID(name)
	if pid != 0 && procutil.Alive(pid) {
		s.logger.Debug("killing tracked pid", "name", name, "pid", pid)
		_ = procutil.Signal(pid, unix.SIGTERM)
		time.Sleep(100 * time.Millisecond)
		if procutil.Alive(pid) {
			_ = procutil.Signal(pid, unix.SIGKILL)
		}
		s.store.RemovePID(name)
	}

	if !s.cfg.PkillOnStart {
		return
	}

	cmds := rec.ExecStart()
	if len(cmds) == 0 {
		return
	}
	_, argv := cmdline.Parse(cmds[0])
	if len(argv) == 0 {
		return
	}
	binary := filepath.Base(argv[0])
	for _, skip := range s.cfg.SkipInterpreters {
		if binary == skip {
			return
		}
	}

	s.logger.Debug("attempting pkill sweep", "binary", binary)
	_ = launcher.PkillByName(binary)
}

// startDependencies starts every Requires=/Wants= dependency of rec,
// skipping ones already alive, critical, unsupported, or unknown, and
// using visiting to break cycles.
func (s *Supervisor) startDependencies(name string, rec *unit.Record, visiting map[string]bool) {
	if visiting[name] {
		return
	}
	visiting[name] = true
	defer delete(visiting, name)

	deps := append(append([]string{}, rec.Requires()...), rec.Wants()...)
	for _, dep := range deps {
		if !strings.HasSuffix(dep, ".service") || dep == name {
			continue
		}
		if visiting[dep] {
			s.logger.Debug("dependency already being started, skipping", "dependency", dep)
			continue
		}
		if depPID := s.store.ReadPID(dep); depPID != 0 && procutil.Alive(depPID) {
			s.logger.Debug("dependency already running", "dependency", dep, "pid", depPID)
			continue
		}
		if s.isCritical(dep) {
			s.logger.Debug("skipping critical dependency", "dependency", dep)
			continue
		}
		depRec, err := s.registry.Get(dep)
		if err != nil {
			s.logger.Debug("dependency not found, skipping", "dependency", dep)
			continue
		}
		if s.isUnsupportedType(depRec.ServiceType()) {
			s.logger.Debug("dependency has unsupported type, skipping", "dependency", dep)
			continue
		}
		s.logger.Info("starting dependency", "dependency", dep)
		_ = s.startOne(dep, visiting)
	}
}

// Stop stops name, tolerating the case where it is already stopped.
func (s *Supervisor) Stop(name string) error {
	canonical := unit.CanonicalName(name)
	s.audit("STOP request for %s", canonical)

	if s.isCritical(canonical) {
		s.logger.Error("refusing to manage critical service", "name", canonical)
		return &RefusedError{Name: canonical, Reason: "critical service"}
	}

	if _, err := s.registry.Get(canonical); err != nil {
		s.logger.Error("service not found", "name", canonical)
		return &NotFoundError{Name: canonical}
	}

	pid := s.store.ReadPID(canonical)
	if pid == 0 || !procutil.Alive(pid) {
		s.store.RemovePID(canonical)
		_ = s.store.WriteStatus(canonical, "inactive", 0, "")
		return nil
	}

	if pid == 1 || pid == 2 {
		return &RefusedError{Name: canonical, Reason: "refusing to signal pid 1 or 2"}
	}

	if s.dryRun {
		s.logger.Info("dry-run: would stop", "name", canonical, "pid", pid)
		return nil
	}

	_ = procutil.Signal(pid, unix.SIGTERM)
	alive := true
	for i := 0; i < 25; i++ {
		time.Sleep(200 * time.Millisecond)
		if !procutil.Alive(pid) {
			alive = false
			break
		}
	}
	if alive {
		_ = procutil.Signal(pid, unix.SIGKILL)
		time.Sleep(500 * time.Millisecond)
		alive = procutil.Alive(pid)
	}

	if alive {
		_ = s.store.WriteStatus(canonical, "failed", pid, "process did not stop")
		return &StopFailedError{Name: canonical, PID: pid}
	}

	s.store.RemovePID(canonical)
	_ = s.store.WriteStatus(canonical, "inactive", 0, "")
	return nil
}

// Restart stops then starts name.
func (s *Supervisor) Restart(name string) error {
	_ = s.Stop(name)
	time.Sleep(500 * time.Millisecond)
	return s.Start(name)
}

// Enable marks name to be started by StartAllEnabled.
func (s *Supervisor) Enable(name string) error {
	canonical := unit.CanonicalName(name)
	if s.store.IsEnabled(canonical) {
		return nil
	}

	rec, err := s.registry.Get(canonical)
	if err != nil {
		s.logger.Error("service not found", "name", canonical)
		return &NotFoundError{Name: canonical}
	}

	return s.store.Enable(canonical, rec.Path)
}

// Disable removes name's enabled marker.
func (s *Supervisor) Disable(name string) error {
	s.store.Disable(unit.CanonicalName(name))
	return nil
}

// IsEnabled reports whether name has an enabled marker.
func (s *Supervisor) IsEnabled(name string) bool {
	return s.store.IsEnabled(unit.CanonicalName(name))
}

// StartAllEnabled starts every unit under the enabled directory in
// lexicographic order and reports one outcome line per unit.
func (s *Supervisor) StartAllEnabled() ([]string, error) {
	names, err := s.store.EnabledNames()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		rec, recErr := s.registry.Get(name)
		description := name
		if recErr == nil {
			description = rec.Description()
		}

		if err := s.Start(name); err != nil {
			lines = append(lines, fmt.Sprintf("[FAILED] Failed to start %s.", description))
			continue
		}
		lines = append(lines, fmt.Sprintf("[  OK  ] Started %s.", description))
	}
	return lines, nil
}

// StatusReport is the result of a status query.
type StatusReport struct {
	Name        string
	Description string
	Path        string
	State       string
	PID         int
	StartedAt   time.Time
	Found       bool
}

// Status reports the current state of name.
func (s *Supervisor) Status(name string) (StatusReport, error) {
	canonical := unit.CanonicalName(name)

	rec, err := s.registry.Get(canonical)
	if err != nil {
		return StatusReport{Name: canonical, Found: false}, &NotFoundError{Name: canonical}
	}

	report := StatusReport{
		Name:        canonical,
		Description: rec.Description(),
		Path:        rec.Path,
		Found:       true,
		State:       "inactive",
	}

	snapshot, _ := s.store.ReadStatus(canonical)
	if snapshot != nil {
		report.State = snapshot.State
		report.PID = snapshot.PID
	}

	if report.PID != 0 && procutil.Alive(report.PID) {
		if info, statErr := os.Stat(fmt.Sprintf("/proc/%d", report.PID)); statErr == nil {
			report.StartedAt = info.ModTime()
		}
	} else if report.PID != 0 {
		report.State = "inactive"
		report.PID = 0
	}

	return report, nil
}

// ShowLog returns the last n lines of name's log, n<=0 defaulting to
// 50.
func (s *Supervisor) ShowLog(name string, n int) (string, error) {
	if n <= 0 {
		n = 50
	}
	canonical := unit.CanonicalName(name)
	data, err := os.ReadFile(s.cfg.Paths().LogPath(canonical))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n"), nil
}

// ListEntry is one row of a ListServices listing.
type ListEntry struct {
	Name            string
	Type            string
	State           string
	PID             int
	Description     string
	Enabled         bool
	Critical        bool
	Unsupported     bool
	UnsupportedType string
}

// ListServices lists every discovered unit. When runningOnly is true,
// only units with a currently alive tracked pid are included.
func (s *Supervisor) ListServices(runningOnly bool) ([]ListEntry, error) {
	names := s.registry.Names()
	entries := make([]ListEntry, 0, len(names))

	for _, name := range names {
		rec, err := s.registry.Get(name)
		if err != nil {
			continue
		}

		pid := s.store.ReadPID(name)
		alive := pid != 0 && procutil.Alive(pid)
		if runningOnly && !alive {
			continue
		}

		unitState := "inactive"
		if snapshot, _ := s.store.ReadStatus(name); snapshot != nil {
			unitState = snapshot.State
		}
		if !alive {
			pid = 0
		}

		entry := ListEntry{
			Name:        name,
			Type:        rec.ServiceType(),
			State:       unitState,
			PID:         pid,
			Description: rec.Description(),
			Enabled:     s.store.IsEnabled(name),
			Critical:    s.isCritical(name),
		}
		if s.isUnsupportedType(entry.Type) {
			entry.Unsupported = true
			entry.UnsupportedType = entry.Type
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
