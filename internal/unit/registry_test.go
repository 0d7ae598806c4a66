package unit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkdirUnits(t *testing.T, n int) []string {
	t.Helper()
	dirs := make([]string, n)
	for i := range dirs {
		dirs[i] = t.TempDir()
	}
	return dirs
}

func TestRegistryFirstWinsAcrossSearchPath(t *testing.T) {
	dirs := mkdirUnits(t, 2)
	writeUnit(t, dirs[0], "dupe.service", "[Unit]\nDescription=first\n")
	writeUnit(t, dirs[1], "dupe.service", "[Unit]\nDescription=second\n")

	reg := NewRegistry(dirs, nil)
	rec, err := reg.Get("dupe")
	require.NoError(t, err)
	assert.Equal(t, "first", rec.Description())
}

func TestRegistryCanonicalizesName(t *testing.T) {
	dirs := mkdirUnits(t, 1)
	writeUnit(t, dirs[0], "myapp.service", "[Unit]\nDescription=myapp\n")

	reg := NewRegistry(dirs, nil)
	rec, err := reg.Get("myapp.service")
	require.NoError(t, err)
	assert.Equal(t, "myapp", rec.Description())
}

func TestRegistryDetectsMaskedUnit(t *testing.T) {
	dirs := mkdirUnits(t, 1)
	masked := filepath.Join(dirs[0], "masked.service")
	require.NoError(t, os.Symlink("/dev/null", masked))

	reg := NewRegistry(dirs, nil)
	_, _, isMasked, found := reg.Resolve("masked")
	assert.True(t, isMasked)
	assert.False(t, found)

	_, err := reg.Get("masked")
	assert.Error(t, err)
}

func TestRegistrySkipsBrokenSymlink(t *testing.T) {
	dirs := mkdirUnits(t, 1)
	broken := filepath.Join(dirs[0], "broken.service")
	require.NoError(t, os.Symlink(filepath.Join(dirs[0], "nonexistent-target"), broken))

	reg := NewRegistry(dirs, nil)
	_, err := reg.Get("broken")
	assert.Error(t, err)
	assert.NotContains(t, reg.Names(), "broken.service")
}

func TestRegistryUnknownUnit(t *testing.T) {
	dirs := mkdirUnits(t, 1)
	reg := NewRegistry(dirs, nil)
	_, err := reg.Get("nosuchthing")
	assert.Error(t, err)
}

func TestRegistryNamesSortedAndDeduped(t *testing.T) {
	dirs := mkdirUnits(t, 2)
	writeUnit(t, dirs[0], "b.service", "[Unit]\n")
	writeUnit(t, dirs[0], "a.service", "[Unit]\n")
	writeUnit(t, dirs[1], "a.service", "[Unit]\n")

	reg := NewRegistry(dirs, nil)
	assert.Equal(t, []string{"a.service", "b.service"}, reg.Names())
}

func TestRegistryCachesParsedRecord(t *testing.T) {
	dirs := mkdirUnits(t, 1)
	path := filepath.Join(dirs[0], "cached.service")
	writeUnit(t, dirs[0], "cached.service", "[Unit]\nDescription=before\n")

	reg := NewRegistry(dirs, nil)
	first, err := reg.Get("cached")
	require.NoError(t, err)
	assert.Equal(t, "before", first.Description())

	require.NoError(t, os.WriteFile(path, []byte("[Unit]\nDescription=after\n"), 0o644))

	second, err := reg.Get("cached")
	require.NoError(t, err)
	assert.Equal(t, "before", second.Description(), "registry should serve cached record, not re-read")
}
