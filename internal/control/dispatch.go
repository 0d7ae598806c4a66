package control

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/quratoop/serviced/internal/supervisor"
)

// Command identifies one CLI verb understood by Execute.
type Command string

const (
	CommandStart        Command = "start"
	CommandStop         Command = "stop"
	CommandRestart      Command = "restart"
	CommandEnable       Command = "enable"
	CommandDisable      Command = "disable"
	CommandStatus       Command = "status"
	CommandLog          Command = "log"
	CommandList         Command = "list"
	CommandListRunning  Command = "list-running"
	CommandStartEnabled Command = "start-enabled"
)

// Request carries one command invocation's arguments.
type Request struct {
	Command  Command
	Name     string
	LogLines int
}

// Response is the process-facing outcome of a Request: an exit code
// and any text that should be written to stdout.
type Response struct {
	ExitCode int
	Output   string
}

// Execute dispatches req against sup, mapping the Supervisor's return
// value onto this package's exit code conventions.
func Execute(sup *supervisor.Supervisor, req Request) Response {
	switch req.Command {
	case CommandStart:
		if req.Name == "" {
			return fromLines(sup.StartAllEnabled())
		}
		return fromErr(sup.Start(req.Name), req.Name)
	case CommandStop:
		return fromErr(sup.Stop(req.Name), req.Name)
	case CommandRestart:
		return fromErr(sup.Restart(req.Name), req.Name)
	case CommandEnable:
		return fromErr(sup.Enable(req.Name), req.Name)
	case CommandDisable:
		return fromErr(sup.Disable(req.Name), req.Name)
	case CommandStartEnabled:
		return fromLines(sup.StartAllEnabled())
	case CommandStatus:
		return statusResponse(sup, req.Name)
	case CommandLog:
		return logResponse(sup, req.Name, req.LogLines)
	case CommandList:
		return listResponse(sup, false)
	case CommandListRunning:
		return listResponse(sup, true)
	default:
		return Response{ExitCode: 1, Output: fmt.Sprintf("unknown command %q", req.Command)}
	}
}

func fromErr(err error, name string) Response {
	if err == nil {
		return Response{ExitCode: 0}
	}
	return Response{ExitCode: 1, Output: err.Error()}
}

func fromLines(lines []string, err error) Response {
	if err != nil {
		return Response{ExitCode: 1, Output: err.Error()}
	}
	return Response{ExitCode: 0, Output: strings.Join(lines, "\n")}
}

// statusResponse maps exit codes per the command-line table: 0 active,
// 3 inactive/failed, 4 not found.
func statusResponse(sup *supervisor.Supervisor, name string) Response {
	report, err := sup.Status(name)
	if err != nil {
		var notFound *supervisor.NotFoundError
		if errors.As(err, &notFound) {
			return Response{ExitCode: 4, Output: fmt.Sprintf("%s: not found", name)}
		}
		return Response{ExitCode: 1, Output: err.Error()}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s\n", report.Name, report.Description)
	fmt.Fprintf(&b, "   Unit path: %s\n", report.Path)
	fmt.Fprintf(&b, "      Active: %s", report.State)
	if report.State == "active" && report.PID != 0 {
		uptime := time.Since(report.StartedAt).Round(time.Second)
		fmt.Fprintf(&b, " (pid %d, up %s)", report.PID, uptime)
	}
	b.WriteString("\n")

	exitCode := 3
	if report.State == "active" {
		exitCode = 0
	}
	return Response{ExitCode: exitCode, Output: b.String()}
}

func logResponse(sup *supervisor.Supervisor, name string, n int) Response {
	contents, err := sup.ShowLog(name, n)
	if err != nil {
		return Response{ExitCode: 1, Output: err.Error()}
	}
	return Response{ExitCode: 0, Output: contents}
}

func listResponse(sup *supervisor.Supervisor, runningOnly bool) Response {
	entries, err := sup.ListServices(runningOnly)
	if err != nil {
		return Response{ExitCode: 1, Output: err.Error()}
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tSTATE\tPID\tDESCRIPTION\tFLAGS")
	for _, e := range entries {
		var flags []string
		if e.Enabled {
			flags = append(flags, "enabled")
		}
		if e.Critical {
			flags = append(flags, "[CRITICAL]")
		}
		if e.Unsupported {
			flags = append(flags, fmt.Sprintf("[UNSUPPORTED:%s]", e.UnsupportedType))
		}
		pid := ""
		if e.PID != 0 {
			pid = fmt.Sprintf("%d", e.PID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Name, e.Type, e.State, pid, e.Description, strings.Join(flags, " "))
	}
	w.Flush()

	return Response{ExitCode: 0, Output: strings.TrimRight(b.String(), "\n")}
}
