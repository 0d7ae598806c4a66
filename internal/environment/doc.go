// Package environment resolves the environment variable set a unit's
// process should be launched with.
//
// Resolution follows systemd's own precedence: the supervisor's own
// process environment is the base, an optional EnvironmentFile= layer
// on top of it, and inline Environment= entries take final precedence.
package environment
