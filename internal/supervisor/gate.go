package supervisor

import "strings"

// isCritical reports whether name matches the configured critical set,
// a critical prefix, or the template-unit marker "@." — any of which
// makes it off-limits for start/stop/restart.
func (s *Supervisor) isCritical(name string) bool {
	base := strings.TrimSuffix(name, ".service")

	if strings.Contains(name, "@.") {
		return true
	}
	for _, critical := range s.cfg.CriticalServices {
		if base == critical {
			return true
		}
	}
	for _, prefix := range s.cfg.CriticalPrefixes {
		if strings.HasPrefix(base, prefix) {
			return true
		}
	}
	return false
}

// isUnsupportedType reports whether serviceType is in the configured
// unsupported-type blocklist.
func (s *Supervisor) isUnsupportedType(serviceType string) bool {
	for _, t := range s.cfg.UnsupportedTypes {
		if t == serviceType {
			return true
		}
	}
	return false
}
