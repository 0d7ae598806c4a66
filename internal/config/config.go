package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quratoop/serviced/internal/state"
)

// Config is the full set of operator-tunable supervisor behavior. The
// zero value is not useful; build one with Default and optionally layer
// a YAML file over it with Load.
type Config struct {
	StateRoot   string `yaml:"state_root"`
	PersistRoot string `yaml:"persist_root"`

	// SearchPath overrides the unit discovery search path. Empty means
	// use unit.SearchPath.
	SearchPath []string `yaml:"unit_search_path"`

	// CriticalServices is the set of unit basenames (without
	// ".service") the safety gate refuses to touch outright.
	CriticalServices []string `yaml:"critical_services"`

	// CriticalPrefixes is the set of basename prefixes the safety gate
	// refuses to touch.
	CriticalPrefixes []string `yaml:"critical_prefixes"`

	// UnsupportedTypes lists [Service] Type= values this supervisor
	// cannot meaningfully manage (e.g. "dbus", which depends on a
	// running bus daemon this supervisor does not provide).
	UnsupportedTypes []string `yaml:"unsupported_types"`

	// SkipInterpreters lists ExecStart binary basenames the aggressive
	// pkill sweep refuses to target, because killing a shared
	// interpreter binary by name would take down unrelated processes.
	SkipInterpreters []string `yaml:"skip_interpreters"`

	// PkillOnStart enables the basename-wide pkill sweep on start, in
	// addition to the always-on tracked-PID kill. Off by default: a
	// bare process-name match is a blunt instrument that can kill
	// unrelated processes sharing a binary name.
	PkillOnStart bool `yaml:"pkill_on_start"`

	// ForegroundTimeoutSeconds is loaded and overlaid like the other
	// fields, but foreground launches do not read it: they are always
	// bounded by launcher.ForegroundTimeout (120 s), whatever this holds.
	ForegroundTimeoutSeconds int `yaml:"foreground_timeout_seconds"`

	// Verbose mirrors the original supervisor's -v flag default.
	Verbose bool `yaml:"verbose"`
}

// Default returns the compiled-in configuration, matching the original
// supervisor's hardcoded constants.
func Default() Config {
	return Config{
		StateRoot:   state.DefaultPaths().StateRoot,
		PersistRoot: state.DefaultPaths().PersistRoot,

		CriticalServices: defaultCriticalServices,
		CriticalPrefixes: defaultCriticalPrefixes,
		UnsupportedTypes: []string{"dbus"},
		SkipInterpreters: []string{"bash", "sh", "python", "python3", "perl", "ruby"},

		PkillOnStart:             false,
		ForegroundTimeoutSeconds: 120,
		Verbose:                  false,
	}
}

// Load reads a YAML file at path and layers its non-zero fields over
// Default. A missing path is not an error: the caller gets the
// compiled-in defaults back unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	overlay := Config{}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return cfg, err
	}

	applyOverlay(&cfg, overlay)
	return cfg, nil
}

func applyOverlay(cfg *Config, overlay Config) {
	if overlay.StateRoot != "" {
		cfg.StateRoot = overlay.StateRoot
	}
	if overlay.PersistRoot != "" {
		cfg.PersistRoot = overlay.PersistRoot
	}
	if len(overlay.SearchPath) > 0 {
		cfg.SearchPath = overlay.SearchPath
	}
	if len(overlay.CriticalServices) > 0 {
		cfg.CriticalServices = overlay.CriticalServices
	}
	if len(overlay.CriticalPrefixes) > 0 {
		cfg.CriticalPrefixes = overlay.CriticalPrefixes
	}
	if len(overlay.UnsupportedTypes) > 0 {
		cfg.UnsupportedTypes = overlay.UnsupportedTypes
	}
	if len(overlay.SkipInterpreters) > 0 {
		cfg.SkipInterpreters = overlay.SkipInterpreters
	}
	if overlay.PkillOnStart {
		cfg.PkillOnStart = true
	}
	if overlay.ForegroundTimeoutSeconds > 0 {
		cfg.ForegroundTimeoutSeconds = overlay.ForegroundTimeoutSeconds
	}
	if overlay.Verbose {
		cfg.Verbose = true
	}
}

// Paths builds a state.Paths from the configured roots.
func (c Config) Paths() state.Paths {
	return state.Paths{StateRoot: c.StateRoot, PersistRoot: c.PersistRoot}
}

// defaultCriticalServices mirrors the original supervisor's hardcoded
// CRITICAL_SERVICES set: systemd internals and core system units this
// supervisor must never be asked to stop or restart.
var defaultCriticalServices = []string{
	"systemd-journald",
	"systemd-logind",
	"systemd-udevd",
	"systemd-resolved",
	"systemd-networkd",
	"systemd-timesyncd",
	"systemd-tmpfiles-setup",
	"systemd-tmpfiles-clean",
	"systemd-sysctl",
	"systemd-modules-load",
	"systemd-remount-fs",
	"systemd-update-utmp",
	"systemd-random-seed",
	"systemd-hibernate-resume",
	"systemd-suspend",
	"systemd-halt",
	"systemd-poweroff",
	"systemd-reboot",
	"systemd-kexec",
	"systemd-machine-id-commit",
	"systemd-binfmt",
	"systemd-coredump",
	"systemd-ask-password-console",
	"systemd-ask-password-wall",
	"systemd-boot-random-seed",
	"systemd-fsck",
	"systemd-growfs",
	"systemd-makefs",
	"systemd-pstore",
	"systemd-quotacheck",
	"systemd-vconsole-setup",
	"systemd-firstboot",
	"systemd-sysusers",
	"systemd-homed",
	"systemd-userdbd",
	"systemd-oomd",
	"init",
	"dbus",
	"dbus-broker",
	"dbus-daemon",
	"udev",
	"eudev",
	"mdev",
	"getty@tty1",
	"serial-getty@",
	"local-fs.target",
	"remote-fs.target",
	"swap.target",
	"tmp.mount",
	"dev-hugepages.mount",
	"dev-mqueue.mount",
	"sys-kernel-debug.mount",
	"sys-kernel-tracing.mount",
	"sys-fs-fuse-connections.mount",
}

// defaultCriticalPrefixes mirrors CRITICAL_PREFIXES.
var defaultCriticalPrefixes = []string{
	"systemd-",
	"initrd-",
	"rescue.",
	"emergency.",
	"halt.",
	"poweroff.",
	"reboot.",
	"kexec.",
}
