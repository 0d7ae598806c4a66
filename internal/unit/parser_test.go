package unit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeUnit(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestParseBasicService(t *testing.T) {
	dir := t.TempDir()
	path := writeUnit(t, dir, "example.service", `# a comment
[Unit]
Description=Example daemon
Requires=foo.service bar.service
After=network.target

[Service]
Type=simple
ExecStart=/usr/bin/example --flag value
User=nobody
Environment=FOO=bar
Environment=BAZ="qux quux"
`)

	rec := Parse(path, nil)
	assert.Equal(t, "Example daemon", rec.Description())
	assert.Equal(t, "simple", rec.ServiceType())
	assert.Equal(t, []string{"/usr/bin/example --flag value"}, rec.ExecStart())
	assert.Equal(t, "nobody", rec.User())
	assert.Equal(t, []string{"foo.service", "bar.service"}, rec.Requires())
	assert.Equal(t, []string{"network.target"}, rec.After())
	assert.Equal(t, map[string]string{"FOO": "bar", "BAZ": "qux quux"}, rec.Environment())
}

func TestParseLineContinuation(t *testing.T) {
	dir := t.TempDir()
	path := writeUnit(t, dir, "wrapped.service", "[Service]\n"+
		"ExecStart=/usr/bin/example \\\n"+
		"  --flag-one \\\n"+
		"  --flag-two\n")

	rec := Parse(path, nil)
	require.Len(t, rec.ExecStart(), 1)
	assert.Equal(t, "/usr/bin/example --flag-one --flag-two", rec.ExecStart()[0])
}

func TestParseEmptyValueResetsSequence(t *testing.T) {
	dir := t.TempDir()
	path := writeUnit(t, dir, "reset.service", `[Service]
ExecStartPre=/bin/one
ExecStartPre=/bin/two
ExecStartPre=
ExecStartPre=/bin/three
`)

	rec := Parse(path, nil)
	assert.Equal(t, []string{"/bin/three"}, rec.ExecStartPre())
}

func TestParseMissingFileYieldsEmptyRecord(t *testing.T) {
	rec := Parse("/nonexistent/path/to/unit.service", nil)
	assert.Equal(t, "unit.service", rec.Description())
	assert.Empty(t, rec.ExecStart())
}

func TestDescriptionDefaultsToBasename(t *testing.T) {
	dir := t.TempDir()
	path := writeUnit(t, dir, "nodescription.service", "[Service]\nExecStart=/bin/true\n")
	rec := Parse(path, nil)
	assert.Equal(t, "nodescription.service", rec.Description())
}

func TestRemainAfterExitDefault(t *testing.T) {
	dir := t.TempDir()
	path := writeUnit(t, dir, "oneshot.service", "[Service]\nType=oneshot\nExecStart=/bin/true\n")
	rec := Parse(path, nil)
	assert.False(t, rec.RemainAfterExit())

	path2 := writeUnit(t, dir, "oneshot2.service", "[Service]\nType=oneshot\nRemainAfterExit=yes\n")
	rec2 := Parse(path2, nil)
	assert.True(t, rec2.RemainAfterExit())
}
