// Package state manages the supervisor's on-disk bookkeeping: PID
// files and redirected logs under a volatile state root, status
// snapshots written atomically, and the persistent enabled-unit
// markers and audit log that survive a reboot.
package state
