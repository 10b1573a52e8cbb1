package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))
	assert.True(t, FileExists(dir))

	// Idempotent.
	require.NoError(t, EnsureDir(dir))
}

func TestWriteJSONAtomic(t *testing.T) {
	t.Parallel()

	t.Run("RoundTrip", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "doc.json")
		in := map[string]string{"k": "v"}
		require.NoError(t, WriteJSONAtomic(path, in))

		var out map[string]string
		ok, err := ReadJSON(path, &out)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, in, out)

		// No temporary file left behind.
		assert.False(t, FileExists(path+".tmp"))
	})

	t.Run("Overwrite", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "doc.json")
		require.NoError(t, WriteJSONAtomic(path, map[string]int{"n": 1}))
		require.NoError(t, WriteJSONAtomic(path, map[string]int{"n": 2}))

		var out map[string]int
		ok, err := ReadJSON(path, &out)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 2, out["n"])
	})

	t.Run("UnmarshalableValue", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "doc.json")
		err := WriteJSONAtomic(path, make(chan int))
		require.Error(t, err)
		assert.False(t, FileExists(path))
	})
}

func TestResolvePath(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		got, err := ResolvePath("")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Tilde", func(t *testing.T) {
		home, err := os.UserHomeDir()
		require.NoError(t, err)

		got, err := ResolvePath("~/data")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "data"), got)
	})

	t.Run("EnvVar", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("FILEUTIL_TEST_DIR", dir)

		got, err := ResolvePath("$FILEUTIL_TEST_DIR/data")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "data"), got)
	})

	t.Run("RelativeBecomesAbsolute", func(t *testing.T) {
		got, err := ResolvePath("./data")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(got))
	})
}

func TestReadJSON(t *testing.T) {
	t.Parallel()

	t.Run("Missing", func(t *testing.T) {
		t.Parallel()

		var out map[string]string
		ok, err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &out)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Corrupt", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), FilePermissions))

		var out map[string]string
		_, err := ReadJSON(path, &out)
		require.Error(t, err)
		assert.Contains(t, err.Error(), path)
	})
}
