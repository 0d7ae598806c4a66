// Package control dispatches a named command against a Supervisor and
// maps its outcome to the process exit code conventions defined for
// the command-line surface (0/1 for most commands, 0/3/4 for status).
package control
