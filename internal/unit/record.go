package unit

import (
	"path/filepath"
	"strings"
)

// Record is the structured result of parsing one unit file. Sections map
// to an ordered sequence of raw string values per key, matching systemd's
// own in-memory model closely enough to reproduce its append/reset
// semantics (see Parse).
type Record struct {
	// Path is the absolute path the record was parsed from. It is empty
	// for synthetic records built in tests.
	Path string

	sections map[string]section
}

// section maps a key to its ordered, possibly-reset value sequence.
type section map[string][]string

func newRecord(path string) *Record {
	return &Record{
		Path:     path,
		sections: make(map[string]section),
	}
}

func (r *Record) ensureSection(name string) section {
	s, ok := r.sections[name]
	if !ok {
		s = make(section)
		r.sections[name] = s
	}
	return s
}

// append adds value to the ordered sequence for section/key. An empty
// value resets the sequence instead of appending to it, matching
// systemd's "key=" reset convention.
func (r *Record) append(sectionName, key, value string) {
	s := r.ensureSection(sectionName)
	if value == "" {
		s[key] = nil
		return
	}
	s[key] = append(s[key], value)
}

// HasSection reports whether the named section appeared in the file.
func (r *Record) HasSection(name string) bool {
	_, ok := r.sections[name]
	return ok
}

// getList returns the full ordered value sequence for section/key, or nil
// if it was never set.
func (r *Record) getList(sectionName, key string) []string {
	s, ok := r.sections[sectionName]
	if !ok {
		return nil
	}
	return s[key]
}

// get returns the last value in section/key's sequence, or def if unset
// or the sequence is empty.
func (r *Record) get(sectionName, key, def string) string {
	values := r.getList(sectionName, key)
	if len(values) == 0 {
		return def
	}
	return values[len(values)-1]
}

func (r *Record) getBool(sectionName, key string, def bool) bool {
	v := r.get(sectionName, key, "")
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "yes", "true", "1", "on":
		return true
	}
	return false
}

// Description is the [Unit] Description=, defaulting to the unit's own
// basename when unset.
func (r *Record) Description() string {
	def := "unknown"
	if r.Path != "" {
		def = filepath.Base(r.Path)
	}
	return r.get("Unit", "Description", def)
}

// ServiceType is the lowercased [Service] Type=, defaulting to "simple".
func (r *Record) ServiceType() string {
	return strings.ToLower(r.get("Service", "Type", "simple"))
}

// ExecStartPre returns the ordered ExecStartPre= commands.
func (r *Record) ExecStartPre() []string { return r.getList("Service", "ExecStartPre") }

// ExecStart returns the ordered ExecStart= commands.
func (r *Record) ExecStart() []string { return r.getList("Service", "ExecStart") }

// ExecStartPost returns the ordered ExecStartPost= commands.
func (r *Record) ExecStartPost() []string { return r.getList("Service", "ExecStartPost") }

// ExecStop returns the ordered ExecStop= commands.
func (r *Record) ExecStop() []string { return r.getList("Service", "ExecStop") }

// PIDFile is the [Service] PIDFile=.
func (r *Record) PIDFile() string { return r.get("Service", "PIDFile", "") }

// WorkingDirectory is the [Service] WorkingDirectory=.
func (r *Record) WorkingDirectory() string { return r.get("Service", "WorkingDirectory", "") }

// User is the [Service] User=.
func (r *Record) User() string { return r.get("Service", "User", "") }

// Group is the [Service] Group=.
func (r *Record) Group() string { return r.get("Service", "Group", "") }

// EnvironmentFile is the [Service] EnvironmentFile=.
func (r *Record) EnvironmentFile() string { return r.get("Service", "EnvironmentFile", "") }

// RemainAfterExit is the [Service] RemainAfterExit= boolean, default false.
func (r *Record) RemainAfterExit() bool { return r.getBool("Service", "RemainAfterExit", false) }

// Environment parses the inline [Service] Environment= entries into a map,
// stripping surrounding single/double quotes from each value.
func (r *Record) Environment() map[string]string {
	env := make(map[string]string)
	for _, raw := range r.getList("Service", "Environment") {
		raw = strings.Trim(raw, `"'`)
		key, value, ok := strings.Cut(raw, "=")
		if !ok {
			continue
		}
		env[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	return env
}

// Requires is the whitespace-split [Unit] Requires= list.
func (r *Record) Requires() []string { return strings.Fields(r.get("Unit", "Requires", "")) }

// Wants is the whitespace-split [Unit] Wants= list.
func (r *Record) Wants() []string { return strings.Fields(r.get("Unit", "Wants", "")) }

// After is the whitespace-split [Unit] After= list.
func (r *Record) After() []string { return strings.Fields(r.get("Unit", "After", "")) }

// CanonicalName appends ".service" to name if it is not already present.
func CanonicalName(name string) string {
	if strings.HasSuffix(name, ".service") {
		return name
	}
	return name + ".service"
}
