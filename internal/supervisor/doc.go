// Package supervisor implements the per-service-type start/stop state
// machine, the dependency preorder walk, the safety gate over
// critical/unsupported units, and the audit log, wiring together the
// unit, environment, cmdline, launcher, procutil and state packages.
package supervisor
