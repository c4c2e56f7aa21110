package recovery

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipEntries(t *testing.T, path string) map[string][]byte {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = data
	}
	return out
}

func TestWriteArchive(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "ppt", "slides"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "ppt", "slides", "slide1.xml"), []byte("<x/>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "_rels.txt"), []byte("r"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, contentTypesPart), []byte("<Types/>"), 0o644))

	dest := filepath.Join(t.TempDir(), "out.pptx")
	require.NoError(t, WriteArchive(src, dest))

	zr, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer zr.Close()

	require.Len(t, zr.File, 3)
	assert.Equal(t, contentTypesPart, zr.File[0].Name)
	for _, f := range zr.File {
		assert.Equal(t, zip.Deflate, f.Method)
	}

	entries := zipEntries(t, dest)
	assert.Equal(t, []byte("<x/>"), entries["ppt/slides/slide1.xml"])
}

func TestWriteArchiveRemovesPartialFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.pptx")
	err := WriteArchive(filepath.Join(t.TempDir(), "missing"), dest)
	assert.Error(t, err)
	assert.NoFileExists(t, dest)
}
