package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandStringLiteral(t *testing.T) {
	got, err := ExpandString("plain-password")
	require.NoError(t, err)
	assert.Equal(t, "plain-password", got)
}

func TestExpandStringEnvVar(t *testing.T) {
	t.Setenv("GW_TEST_TOKEN", "s3cret")

	got, err := ExpandString("${GW_TEST_TOKEN}")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	got, err = ExpandString("prefix-${GW_TEST_TOKEN}-suffix")
	require.NoError(t, err)
	assert.Equal(t, "prefix-s3cret-suffix", got)
}

func TestExpandStringDefault(t *testing.T) {
	got, err := ExpandString("${GW_TEST_UNSET_VAR:-fallback}")
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)

	// empty fallback is still a fallback
	got, err = ExpandString("${GW_TEST_UNSET_VAR:-}")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExpandStringMissing(t *testing.T) {
	_, err := ExpandString("${GW_TEST_DEFINITELY_UNSET}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GW_TEST_DEFINITELY_UNSET")
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db_password")
	require.NoError(t, os.WriteFile(path, []byte("hunter2\n"), 0o600))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got, "trailing newline should be trimmed")
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestResolvePrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret")
	require.NoError(t, os.WriteFile(path, []byte("from-file"), 0o600))
	t.Setenv("GW_TEST_RESOLVE", "from-env")

	got, err := Resolve(path, "${GW_TEST_RESOLVE}")
	require.NoError(t, err)
	assert.Equal(t, "from-file", got, "file secret takes precedence")

	got, err = Resolve("", "${GW_TEST_RESOLVE}")
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}
