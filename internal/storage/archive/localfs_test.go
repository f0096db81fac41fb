package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/newthinker/fxmc/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS_ImplementsStorage(t *testing.T) {
	var _ Storage = (*LocalFS)(nil)
}

func TestLocalFS_WriteOpen(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewLocalFS(dir)
	require.NoError(t, err)

	ctx := context.Background()
	data := []byte("Date,Open,High,Low,Close\n")

	require.NoError(t, fs.Write(ctx, "results/run/trades.csv", data))

	rc, err := fs.Open(ctx, "results/run/trades.csv")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Join(dir, "results", "run"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalFS_Overwrite(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	ctx := context.Background()

	require.NoError(t, fs.Write(ctx, "a.csv", []byte("first")))
	require.NoError(t, fs.Write(ctx, "a.csv", []byte("second")))

	got, err := ReadAll(ctx, fs, "a.csv")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestLocalFS_OpenMissing(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	_, err := fs.Open(context.Background(), "missing.csv")
	assert.ErrorIs(t, err, core.ErrNoData)
}

func TestLocalFS_AbsolutePath(t *testing.T) {
	other := t.TempDir()
	abs := filepath.Join(other, "bars.csv")
	require.NoError(t, os.WriteFile(abs, []byte("x"), 0644))

	fs, _ := NewLocalFS(t.TempDir())
	got, err := ReadAll(context.Background(), fs, abs)
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
}

func TestLocalFS_Exists(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	ctx := context.Background()

	exists, err := fs.Exists(ctx, "nonexistent.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, fs.Write(ctx, "exists.txt", []byte("data")))
	exists, err = fs.Exists(ctx, "exists.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLocalFS_List(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	ctx := context.Background()

	fs.Write(ctx, "results/a/summary.csv", []byte("a"))
	fs.Write(ctx, "results/a/trades.csv", []byte("b"))
	fs.Write(ctx, "results/b/summary.csv", []byte("c"))

	paths, err := fs.List(ctx, "results/a")
	require.NoError(t, err)
	sort.Strings(paths)
	assert.Equal(t, []string{"results/a/summary.csv", "results/a/trades.csv"}, paths)

	paths, err = fs.List(ctx, "nothing/here")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestNew_SelectsBackend(t *testing.T) {
	s, err := New(Config{Type: "localfs", Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalFS{}, s)

	s, err = New(Config{Type: "s3", S3: S3Config{Bucket: "bars", Region: "eu-west-1"}})
	require.NoError(t, err)
	assert.IsType(t, &S3Storage{}, s)

	_, err = New(Config{Type: "s3"})
	assert.ErrorIs(t, err, core.ErrConfigMissing)

	_, err = New(Config{Type: "ftp"})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}
