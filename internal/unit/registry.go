package unit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// SearchPath is the conventional systemd unit search path, in priority
// order. The first directory to contain a given basename wins; later
// directories are only consulted for names not already found.
var SearchPath = []string{
	"/etc/systemd/system",
	"/usr/local/lib/systemd/system",
	"/usr/lib/systemd/system",
	"/lib/systemd/system",
}

// nullDevice is the target a masked unit's symlink points at.
const nullDevice = "/dev/null"

// Registry discovers unit files across SearchPath and caches their
// parsed Records for the lifetime of one supervisor invocation.
type Registry struct {
	logger     hclog.Logger
	searchPath []string

	mu        sync.Mutex
	discover  sync.Once
	locations map[string]string // canonical name -> absolute path
	masked    map[string]bool
	cache     map[string]*Record
}

// NewRegistry builds a Registry over the given search path. A nil or
// empty searchPath falls back to SearchPath.
func NewRegistry(searchPath []string, logger hclog.Logger) *Registry {
	if len(searchPath) == 0 {
		searchPath = SearchPath
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Registry{
		logger:     logger,
		searchPath: searchPath,
		locations:  make(map[string]string),
		masked:     make(map[string]bool),
		cache:      make(map[string]*Record),
	}
}

// discoverOnce walks the search path exactly once, populating locations
// and masked.
func (reg *Registry) discoverOnce() {
	reg.discover.Do(func() {
		for _, dir := range reg.searchPath {
			entries, err := os.ReadDir(dir)
			if err != nil {
				reg.logger.Debug("skipping unit search directory", "dir", dir, "error", err)
				continue
			}
			for _, entry := range entries {
				name := entry.Name()
				if filepath.Ext(name) != ".service" {
					continue
				}
				if _, already := reg.locations[name]; already {
					continue
				}

				full := filepath.Join(dir, name)
				masked, broken := reg.classifySymlink(full)
				if broken {
					reg.logger.Debug("skipping broken unit symlink", "path", full)
					continue
				}
				if masked {
					reg.masked[name] = true
					continue
				}
				reg.locations[name] = full
			}
		}
	})
}

// classifySymlink reports whether path is a symlink pointing at the
// null device (masked, systemd's convention for a disabled unit) or a
// symlink whose target cannot be resolved at all (broken). A broken
// symlink is neither masked nor a usable unit location and must be
// skipped entirely, the same way the original supervisor's discovery
// pass does with a dangling unit-file symlink.
func (reg *Registry) classifySymlink(path string) (masked bool, broken bool) {
	info, err := os.Lstat(path)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return false, false
	}
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false, true
	}
	if _, statErr := os.Stat(target); statErr != nil {
		return false, true
	}
	return target == nullDevice, false
}

// Names returns the canonical names of every discovered, unmasked unit
// in deterministic sorted order.
func (reg *Registry) Names() []string {
	reg.discoverOnce()
	reg.mu.Lock()
	defer reg.mu.Unlock()

	names := make([]string, 0, len(reg.locations))
	for name := range reg.locations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve canonicalizes name (appending ".service" if missing) and
// reports whether it was discovered, whether it is masked, and its
// absolute path when found.
func (reg *Registry) Resolve(name string) (canonical string, path string, masked bool, found bool) {
	reg.discoverOnce()
	canonical = CanonicalName(name)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.masked[canonical] {
		return canonical, "", true, false
	}
	path, found = reg.locations[canonical]
	return canonical, path, false, found
}

// Get resolves name and returns its parsed Record, using the registry's
// cache. It returns an error if the unit cannot be found or is masked.
func (reg *Registry) Get(name string) (*Record, error) {
	canonical, path, masked, found := reg.Resolve(name)
	if masked {
		return nil, fmt.Errorf("unit %s is masked", canonical)
	}
	if !found {
		return nil, fmt.Errorf("unit %s not found", canonical)
	}

	reg.mu.Lock()
	if rec, ok := reg.cache[canonical]; ok {
		reg.mu.Unlock()
		return rec, nil
	}
	reg.mu.Unlock()

	rec := Parse(path, reg.logger)

	reg.mu.Lock()
	reg.cache[canonical] = rec
	reg.mu.Unlock()

	return rec, nil
}
