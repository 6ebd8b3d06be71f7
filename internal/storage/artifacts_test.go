package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Mirror = NopMirror{}
var _ Mirror = (*MinioMirror)(nil)

func newStore(t *testing.T) *ArtifactStore {
	t.Helper()
	store, err := NewArtifactStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return store
}

func TestArtifactStore_SaveOpen(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	n, err := store.Save(ctx, "abc-model.ifc", strings.NewReader("ISO-10303-21;"), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)

	ok, err := store.Exists(ctx, "abc-model.ifc")
	require.NoError(t, err)
	assert.True(t, ok)

	f, err := store.Open(ctx, "abc-model.ifc")
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "ISO-10303-21;", string(data))

	entries, err := os.ReadDir(store.BaseDir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestArtifactStore_SaveLimit(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, err := store.Save(ctx, "big.ifc", strings.NewReader(strings.Repeat("x", 11)), 10)
	assert.ErrorIs(t, err, ErrTooLarge)

	ok, err := store.Exists(ctx, "big.ifc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArtifactStore_Traversal(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	for _, key := range []string{"", "..", "../escape.ifc", "a/b.ifc", `a\b.ifc`} {
		_, err := store.Path(key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
		_, err = store.Save(ctx, key, strings.NewReader("x"), 0)
		assert.Error(t, err, key)
	}
}

func TestArtifactStore_ImportDelete(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	src := filepath.Join(t.TempDir(), "extracted.ifc")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))
	require.NoError(t, store.Import(ctx, src, "abc.ifc"))
	assert.NoFileExists(t, src)

	require.NoError(t, store.Delete(ctx, "abc.ifc", "abc.dae", "abc.obj"), "missing keys are ignored")
	ok, err := store.Exists(ctx, "abc.ifc")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Open(ctx, "abc.ifc")
	assert.True(t, os.IsNotExist(err))
}

func TestMirrorKey(t *testing.T) {
	assert.Equal(t, "meshes/f1/abc-model.obj", MirrorKey("f1", "abc-model"))
	assert.NoError(t, NopMirror{}.Upload(context.Background(), "k", "/nowhere"))
}
