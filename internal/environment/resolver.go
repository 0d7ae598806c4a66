package environment

import (
	"bufio"
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Resolve builds the full environment for a unit as a sorted "KEY=value"
// slice suitable for exec.Cmd.Env. base is the process environment to
// start from (normally os.Environ()); envFile is the unit's
// EnvironmentFile= directive (possibly empty, possibly prefixed with
// "-" to mark it optional); inline is the unit's parsed Environment=
// map, applied last so it always wins.
func Resolve(base []string, envFile string, inline map[string]string, logger hclog.Logger) []string {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	merged := make(map[string]string, len(base)+len(inline))
	for _, kv := range base {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		merged[key] = value
	}

	if envFile != "" {
		fileEnv, err := loadFile(envFile)
		if err != nil {
			logger.Warn("failed to read EnvironmentFile", "path", envFile, "error", err)
		}
		for k, v := range fileEnv {
			merged[k] = v
		}
	}

	for k, v := range inline {
		merged[k] = v
	}

	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// loadFile parses an EnvironmentFile= style file: "KEY=value" lines,
// blank lines and "#" comments skipped, surrounding quotes on values
// stripped. A leading "-" on path marks the file optional; a missing
// optional file is not an error.
func loadFile(path string) (map[string]string, error) {
	optional := false
	if strings.HasPrefix(path, "-") {
		optional = true
		path = strings.TrimSpace(strings.TrimPrefix(path, "-"))
	}

	env := make(map[string]string)

	f, err := os.Open(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return env, nil
		}
		return env, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		env[key] = value
	}
	return env, scanner.Err()
}
