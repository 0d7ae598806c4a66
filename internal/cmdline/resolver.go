package cmdline

import (
	"regexp"
	"strings"

	"github.com/google/shlex"
)

// execPrefixChars are the systemd exec-prefix characters that may
// appear, in any combination, at the front of an Exec*= directive.
const execPrefixChars = "-+!@:"

// Parse strips systemd's exec prefixes from raw and tokenizes the
// remainder shell-style. checkErrors reports whether a non-zero exit
// from the resulting command should be treated as a failure; it is
// false when the directive was prefixed with "-".
func Parse(raw string) (checkErrors bool, argv []string) {
	cmd := strings.TrimSpace(raw)
	checkErrors = true

	for len(cmd) > 0 && strings.ContainsRune(execPrefixChars, rune(cmd[0])) {
		if cmd[0] == '-' {
			checkErrors = false
		}
		cmd = cmd[1:]
	}
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return checkErrors, nil
	}

	parts, err := shlex.Split(cmd)
	if err != nil {
		parts = strings.Fields(cmd)
	}
	return checkErrors, parts
}

var (
	bracedVarPattern   = regexp.MustCompile(`\$\{([^}]+)\}`)
	bareVarPattern     = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	wholeBracedPattern = regexp.MustCompile(`^\$\{([^}]+)\}$`)
	wholeBarePattern   = regexp.MustCompile(`^\$([A-Za-z_][A-Za-z0-9_]*)$`)
)

// ExpandEnv substitutes $VAR and ${VAR} references in each argument
// using env. A token that consists ENTIRELY of a variable reference is
// treated the way an unquoted shell expansion would be: its expanded
// value is word-split into zero or more argv entries, so a multi-word
// value like "--flag --other" becomes two arguments rather than one.
// A variable reference embedded within a larger token (e.g.
// "--root=${HOME}/data") is substituted in place without splitting.
func ExpandEnv(argv []string, env map[string]string) []string {
	lookup := func(name string) string { return env[name] }

	result := make([]string, 0, len(argv))
	for _, part := range argv {
		if m := wholeBracedPattern.FindStringSubmatch(part); m != nil {
			result = append(result, strings.Fields(lookup(m[1]))...)
			continue
		}
		if m := wholeBarePattern.FindStringSubmatch(part); m != nil {
			result = append(result, strings.Fields(lookup(m[1]))...)
			continue
		}

		expanded := bracedVarPattern.ReplaceAllStringFunc(part, func(m string) string {
			name := bracedVarPattern.FindStringSubmatch(m)[1]
			return lookup(name)
		})
		expanded = bareVarPattern.ReplaceAllStringFunc(expanded, func(m string) string {
			name := bareVarPattern.FindStringSubmatch(m)[1]
			return lookup(name)
		})
		result = append(result, expanded)
	}
	return result
}

// StripSocketActivation removes "-H fd://..." style systemd
// socket-activation arguments, which cannot function without a real
// init system passing down a listening file descriptor. Services that
// rely on it (dockerd among them) fall back to their own default
// socket once the flag is gone.
func StripSocketActivation(argv []string) []string {
	result := make([]string, 0, len(argv))
	skipNext := false
	for i, part := range argv {
		if skipNext {
			skipNext = false
			continue
		}
		if part == "-H" && i+1 < len(argv) && strings.HasPrefix(argv[i+1], "fd://") {
			skipNext = true
			continue
		}
		if strings.HasPrefix(part, "-H=fd://") || strings.HasPrefix(part, "--host=fd://") {
			continue
		}
		result = append(result, part)
	}
	return result
}
