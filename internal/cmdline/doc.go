// Package cmdline turns a raw systemd Exec*= directive string into an
// argv slice ready to exec, applying exec-prefix stripping, shell-style
// tokenization, $VAR/${VAR} expansion, and socket-activation stripping.
package cmdline
