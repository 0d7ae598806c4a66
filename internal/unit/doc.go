// Package unit parses systemd-style ".service" unit files and discovers
// them on disk.
//
// A Record holds the raw, ordered key/value sequences of a parsed unit
// file grouped by section, plus a set of derived accessors matching the
// subset of the unit-file grammar this supervisor understands. A Registry
// scans the conventional systemd unit search path, resolves masked units
// (symlinks to the null device) and first-wins duplicate basenames, and
// caches parsed Records for the lifetime of one supervisor invocation.
package unit
