package cmdline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStripsPrefixes(t *testing.T) {
	checkErrors, argv := Parse("-/usr/bin/example --flag value")
	assert.False(t, checkErrors)
	assert.Equal(t, []string{"/usr/bin/example", "--flag", "value"}, argv)
}

func TestParseKeepsErrorCheckingByDefault(t *testing.T) {
	checkErrors, argv := Parse("/usr/bin/example")
	assert.True(t, checkErrors)
	assert.Equal(t, []string{"/usr/bin/example"}, argv)
}

func TestParseHandlesQuoting(t *testing.T) {
	_, argv := Parse(`/usr/bin/example --name "hello world"`)
	assert.Equal(t, []string{"/usr/bin/example", "--name", "hello world"}, argv)
}

func TestParseFallsBackToWhitespaceSplitOnUnbalancedQuotes(t *testing.T) {
	_, argv := Parse(`/usr/bin/example --name "unterminated`)
	assert.Equal(t, []string{"/usr/bin/example", "--name", `"unterminated`}, argv)
}

func TestParseEmptyAfterStrippingPrefixes(t *testing.T) {
	_, argv := Parse("-")
	assert.Empty(t, argv)
}

func TestExpandEnvBracedAndBare(t *testing.T) {
	env := map[string]string{"HOME": "/home/svc", "PORT": "8080"}
	argv := []string{"--root=${HOME}/data", "--port=$PORT"}
	assert.Equal(t, []string{"--root=/home/svc/data", "--port=8080"}, ExpandEnv(argv, env))
}

func TestExpandEnvDropsEmptyWholeArgument(t *testing.T) {
	argv := []string{"$OPTIONS", "--keep"}
	assert.Equal(t, []string{"--keep"}, ExpandEnv(argv, map[string]string{}))
}

func TestExpandEnvWordSplitsWholeTokenExpansion(t *testing.T) {
	argv := []string{"$OPTS"}
	env := map[string]string{"OPTS": "--flag --other"}
	assert.Equal(t, []string{"--flag", "--other"}, ExpandEnv(argv, env))
}

func TestExpandEnvBracedWholeTokenWordSplits(t *testing.T) {
	argv := []string{"${OPTS}"}
	env := map[string]string{"OPTS": "--flag --other"}
	assert.Equal(t, []string{"--flag", "--other"}, ExpandEnv(argv, env))
}

func TestStripSocketActivationTwoArgForm(t *testing.T) {
	argv := []string{"dockerd", "-H", "fd://", "--log-level=info"}
	assert.Equal(t, []string{"dockerd", "--log-level=info"}, StripSocketActivation(argv))
}

func TestStripSocketActivationCombinedForm(t *testing.T) {
	argv := []string{"dockerd", "--host=fd://"}
	assert.Equal(t, []string{"dockerd"}, StripSocketActivation(argv))
}
