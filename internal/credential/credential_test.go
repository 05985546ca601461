package credential

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvSource(t *testing.T) {
	t.Setenv("LATCH_TEST_KEY_A", "")
	t.Setenv("LATCH_TEST_KEY_B", "  from-b  ")

	key, err := EnvSource{Vars: []string{"LATCH_TEST_KEY_A", "LATCH_TEST_KEY_B"}}.APIKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-b", key)
}

func TestEnvSource_ReadsAtCallTime(t *testing.T) {
	src := EnvSource{Vars: []string{"LATCH_TEST_ROTATE"}}
	t.Setenv("LATCH_TEST_ROTATE", "first")

	key, _ := src.APIKey(context.Background())
	assert.Equal(t, "first", key)

	t.Setenv("LATCH_TEST_ROTATE", "second")
	key, _ = src.APIKey(context.Background())
	assert.Equal(t, "second", key)
}

func TestEnvVarsFor(t *testing.T) {
	assert.Equal(t, []string{"LATCH_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"}, EnvVarsFor("gemini"))
	assert.Equal(t, []string{"LATCH_API_KEY", "OPENAI_API_KEY"}, EnvVarsFor("openai"))
	assert.Equal(t, []string{"LATCH_API_KEY"}, EnvVarsFor("mock"))
}

func TestFileSource_Lifecycle(t *testing.T) {
	src := FileSource{Path: filepath.Join(t.TempDir(), "nested", "api_key")}
	ctx := context.Background()

	key, err := src.APIKey(ctx)
	require.NoError(t, err)
	assert.Empty(t, key, "missing file means no key")

	require.NoError(t, src.Set("  AIza-secret \n"))
	key, err = src.APIKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AIza-secret", key)

	info, err := os.Stat(src.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, src.Set("AIza-rotated"))
	key, _ = src.APIKey(ctx)
	assert.Equal(t, "AIza-rotated", key)

	require.NoError(t, src.Clear())
	key, err = src.APIKey(ctx)
	require.NoError(t, err)
	assert.Empty(t, key)

	require.NoError(t, src.Clear(), "clearing twice is fine")
}

func TestFileSource_SetRejectsEmpty(t *testing.T) {
	src := FileSource{Path: filepath.Join(t.TempDir(), "api_key")}
	assert.Error(t, src.Set("   "))
}

func TestContextSource(t *testing.T) {
	key, err := ContextSource{}.APIKey(context.Background())
	require.NoError(t, err)
	assert.Empty(t, key)

	key, err = ContextSource{}.APIKey(WithKey(context.Background(), "hdr-key"))
	require.NoError(t, err)
	assert.Equal(t, "hdr-key", key)
}

type errSource struct{}

func (errSource) APIKey(context.Context) (string, error) { return "", errors.New("boom") }

func TestChain(t *testing.T) {
	ctx := WithKey(context.Background(), "ctx-key")

	key, err := Chain{EnvSource{Vars: []string{"LATCH_TEST_UNSET"}}, ContextSource{}}.APIKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ctx-key", key)

	key, err = Chain{EnvSource{}, ContextSource{}}.APIKey(context.Background())
	require.NoError(t, err)
	assert.Empty(t, key)

	_, err = Chain{errSource{}, ContextSource{}}.APIKey(ctx)
	assert.Error(t, err)
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("LATCH_KEY_FILE", "/tmp/explicit_key")
	p, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/explicit_key", p)

	t.Setenv("LATCH_KEY_FILE", "")
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	p, err = DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/cfg", "latch", "api_key"), p)
}

func TestDefault_EnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LATCH_KEY_FILE", filepath.Join(dir, "api_key"))
	t.Setenv("LATCH_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	src, file, err := Default("gemini")
	require.NoError(t, err)
	require.NoError(t, file.Set("file-key"))

	key, _ := src.APIKey(context.Background())
	assert.Equal(t, "file-key", key)

	t.Setenv("GEMINI_API_KEY", "env-key")
	key, _ = src.APIKey(context.Background())
	assert.Equal(t, "env-key", key)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****", Mask("abcd"))
	assert.Equal(t, "****5678", Mask("12345678"))
	assert.Equal(t, "", Mask(""))
}
