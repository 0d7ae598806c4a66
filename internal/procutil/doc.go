// Package procutil provides the PID liveness oracle: a best-effort
// answer to "is this process still alive and not a zombie" using only
// signal-0 probes and /proc, with no dependency on the process being a
// child of this one.
package procutil
