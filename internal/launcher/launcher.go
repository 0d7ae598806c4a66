package launcher

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
)

// ForegroundTimeout bounds how long a synchronous launch may run before
// it is killed and treated as failed.
const ForegroundTimeout = 120 * time.Second

// DryRunPID is the synthetic PID reported for a launch performed under
// --dry-run, standing in for a process that was never actually
// started.
const DryRunPID = 12345

// Request describes one process to launch.
type Request struct {
	Argv             []string
	Env              []string
	WorkingDirectory string
	User             string
	Group            string

	// LogPath, if set, receives the child's stdout/stderr. In
	// foreground mode only stderr is appended, and only on a non-zero
	// exit; in background mode both streams are continuously appended.
	LogPath string

	DryRun bool
}

// Result reports the outcome of a launch.
type Result struct {
	// ExitCode is meaningful for foreground launches: 0 on success,
	// the child's own exit code otherwise, or an errno-mapped code
	// (127 command not found, 126 permission denied, 1 other failure)
	// if the process never started.
	ExitCode int

	// PID is the child's process ID for a background launch (or
	// DryRunPID under --dry-run). It is 0 for foreground launches.
	PID int
}

func resolveCredential(username, group string, logger hclog.Logger) *syscall.Credential {
	if username == "" && group == "" {
		return nil
	}

	var uid, gid int
	haveUID, haveGID := false, false

	if username != "" {
		u, err := user.Lookup(username)
		if err != nil {
			logger.Warn("user not found, running as current user", "user", username, "error", err)
		} else {
			id, convErr := strconv.Atoi(u.Uid)
			if convErr == nil {
				uid, haveUID = id, true
			}
			if gidNum, convErr := strconv.Atoi(u.Gid); convErr == nil {
				gid, haveGID = gidNum, true
			}
		}
	}

	if group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			logger.Warn("group not found", "group", group, "error", err)
		} else if id, convErr := strconv.Atoi(g.Gid); convErr == nil {
			gid, haveGID = id, true
		}
	}

	if !haveUID && !haveGID {
		return nil
	}
	cred := &syscall.Credential{}
	if haveUID {
		cred.Uid = uint32(uid)
	}
	if haveGID {
		cred.Gid = uint32(gid)
	}
	return cred
}

func resolveWorkingDirectory(dir string) string {
	if dir == "" {
		return ""
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return ""
	}
	return dir
}

// RunForeground runs req synchronously, enforcing ForegroundTimeout. It
// never returns a non-nil error for an ordinary non-zero exit; errors
// are reserved for genuine launcher failures (req.Argv empty).
func RunForeground(req Request, logger hclog.Logger) (Result, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if len(req.Argv) == 0 {
		return Result{}, errors.New("launcher: empty argv")
	}

	if req.DryRun {
		logger.Info("dry run: would execute", "argv", req.Argv)
		return Result{ExitCode: 0}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), ForegroundTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, req.Argv[0], req.Argv[1:]...)
	cmd.Env = req.Env
	cmd.Dir = resolveWorkingDirectory(req.WorkingDirectory)

	cred := resolveCredential(req.User, req.Group, logger)
	sysProcAttr := &syscall.SysProcAttr{Setsid: true}
	if cred != nil {
		sysProcAttr.Credential = cred
	}
	cmd.SysProcAttr = sysProcAttr

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return Result{ExitCode: 0}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code != 0 && stderr.Len() > 0 {
			logger.Debug("stderr", "output", stderr.String())
			appendLog(req.LogPath, stderr.Bytes())
		}
		return Result{ExitCode: code}, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		logger.Error("command not found", "argv0", req.Argv[0])
		return Result{ExitCode: 127}, nil
	}
	if errors.Is(err, os.ErrPermission) {
		logger.Error("permission denied", "argv0", req.Argv[0])
		return Result{ExitCode: 126}, nil
	}
	logger.Error("failed to execute", "argv0", req.Argv[0], "error", err)
	return Result{ExitCode: 1}, nil
}

// RunBackground starts req detached in a new session, with stdout and
// stderr appended to req.LogPath (or discarded if unset), and returns
// immediately without waiting for it to exit.
func RunBackground(req Request, logger hclog.Logger) (Result, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if len(req.Argv) == 0 {
		return Result{}, errors.New("launcher: empty argv")
	}

	if req.DryRun {
		logger.Info("dry run: would execute in background", "argv", req.Argv)
		return Result{PID: DryRunPID}, nil
	}

	cmd := exec.Command(req.Argv[0], req.Argv[1:]...)
	cmd.Env = req.Env
	cmd.Dir = resolveWorkingDirectory(req.WorkingDirectory)

	cred := resolveCredential(req.User, req.Group, logger)
	sysProcAttr := &syscall.SysProcAttr{Setsid: true}
	if cred != nil {
		sysProcAttr.Credential = cred
	}
	cmd.SysProcAttr = sysProcAttr

	var out *os.File
	if req.LogPath != "" {
		f, err := os.OpenFile(req.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return Result{}, err
		}
		out = f
	} else {
		f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0o644)
		if err != nil {
			return Result{}, err
		}
		out = f
	}
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		out.Close()
		switch {
		case errors.Is(err, os.ErrNotExist):
			logger.Error("command not found", "argv0", req.Argv[0])
		case errors.Is(err, os.ErrPermission):
			logger.Error("permission denied", "argv0", req.Argv[0])
		default:
			logger.Error("failed to execute", "argv0", req.Argv[0], "error", err)
		}
		return Result{}, err
	}

	pid := cmd.Process.Pid

	go func() {
		defer out.Close()
		_ = cmd.Wait()
	}()

	return Result{PID: pid}, nil
}

// PkillByName best-effort terminates every process whose command name
// exactly matches binary, via the system pkill utility. pkill's own
// error (including pkill being absent or matching nothing) is returned
// as is: this is a last-resort sweep, not a verified kill.
func PkillByName(binary string) error {
	cmd := exec.Command("pkill", "-x", binary)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run()
}

func appendLog(path string, data []byte) {
	if path == "" || len(data) == 0 {
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.Write(data)
	_, _ = f.Write([]byte("\n"))
}
