// Package launcher spawns service processes with resolved argv, env,
// working directory and privilege-drop settings, either synchronously
// with a wall-clock timeout and captured output, or detached into a new
// session with its output teed to a log file.
package launcher
