package extraction

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	f, err := os.Create(p)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for n, body := range files {
		fw, err := w.Create(n)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return p
}

func TestIsArchive(t *testing.T) {
	assert.True(t, IsArchive("model.ifczip"))
	assert.True(t, IsArchive("MODEL.ZIP"))
	assert.False(t, IsArchive("model.ifc"))
	assert.False(t, IsArchive("model"))
}

func TestExtractIFC(t *testing.T) {
	archive := writeZip(t, "bundle.zip", map[string]string{
		"readme.txt":           "ignored",
		"models/house.ifc":     "ISO-10303-21;",
		"__MACOSX/._house.ifc": "resource fork",
	})
	dest := t.TempDir()

	got, err := ExtractIFC(context.Background(), archive, dest, 0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "house.ifc"), got)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "ISO-10303-21;", string(data))
}

func TestExtractIFC_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  error
	}{
		{name: "empty", files: map[string]string{"notes.txt": "x"}, want: ErrNoModel},
		{name: "two models", files: map[string]string{"a.ifc": "a", "b/b.IFC": "b"}, want: ErrMultipleModels},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive := writeZip(t, "bundle.zip", tt.files)
			_, err := ExtractIFC(context.Background(), archive, t.TempDir(), 0)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExtractIFC_NotAnArchive(t *testing.T) {
	p := filepath.Join(t.TempDir(), "plain.zip")
	require.NoError(t, os.WriteFile(p, []byte("not a zip"), 0o644))

	_, err := ExtractIFC(context.Background(), p, t.TempDir(), 0)
	assert.Error(t, err)
}

func TestExtractIFC_Limit(t *testing.T) {
	body := strings.Repeat("x", 4096)
	archive := writeZip(t, "bundle.zip", map[string]string{"big.ifc": body})

	dest := t.TempDir()
	_, err := ExtractIFC(context.Background(), archive, dest, 1024)
	assert.ErrorIs(t, err, ErrTooLarge)
	_, statErr := os.Stat(filepath.Join(dest, "big.ifc"))
	assert.True(t, os.IsNotExist(statErr), "partial output is removed")

	got, err := ExtractIFC(context.Background(), archive, t.TempDir(), int64(len(body)))
	require.NoError(t, err)
	info, err := os.Stat(got)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), info.Size())
}
