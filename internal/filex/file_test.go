package filex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureDir_CreatesNestedDirectories(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models", "essential", "voice")

	require.NoError(t, EnsureDir(dir))

	fi, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, fi.IsDir())
}

func TestEnsureDir_Idempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")

	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(dir))
}

func TestEnsureDir_FailsIfFileWithSameNameExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o660))

	require.Error(t, EnsureDir(path))
}
