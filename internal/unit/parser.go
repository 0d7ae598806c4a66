package unit

import (
	"bufio"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Parse reads and parses the unit file at path. A missing or unreadable
// file yields an empty Record rather than an error, matching the
// original supervisor's lenient treatment of unit files that vanish or
// become unreadable between discovery and use; the condition is still
// logged at debug level for diagnosability.
func Parse(path string, logger hclog.Logger) *Record {
	rec := newRecord(path)

	f, err := os.Open(path)
	if err != nil {
		if logger != nil {
			logger.Debug("unable to read unit file", "path", path, "error", err)
		}
		return rec
	}
	defer f.Close()

	currentSection := ""
	var pendingKey, pendingValue string
	haveContinuation := false

	flush := func() {
		if haveContinuation {
			rec.append(currentSection, pendingKey, strings.TrimSpace(pendingValue))
			haveContinuation = false
			pendingKey, pendingValue = "", ""
		}
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if haveContinuation {
			trimmed := strings.TrimSuffix(line, "\\")
			pendingValue += " " + strings.TrimSpace(trimmed)
			if trimmed == line {
				flush()
			}
			continue
		}

		trimmedLine := strings.TrimSpace(line)
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, "#") || strings.HasPrefix(trimmedLine, ";") {
			continue
		}

		if strings.HasPrefix(trimmedLine, "[") && strings.HasSuffix(trimmedLine, "]") {
			currentSection = strings.TrimSuffix(strings.TrimPrefix(trimmedLine, "["), "]")
			continue
		}

		key, value, ok := strings.Cut(trimmedLine, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if strings.HasSuffix(value, "\\") {
			pendingKey = key
			pendingValue = strings.TrimSpace(strings.TrimSuffix(value, "\\"))
			haveContinuation = true
			continue
		}

		rec.append(currentSection, key, value)
	}
	flush()

	if err := scanner.Err(); err != nil && logger != nil {
		logger.Debug("error scanning unit file", "path", path, "error", err)
	}

	return rec
}
