package util

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/images"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestLoadImageFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "desk.png")
	writePNG(t, path, 30, 20)

	file, err := LoadImageFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, file.Path)
	assert.Equal(t, images.FormatPNG, file.Image.Format)
	assert.Equal(t, 30, file.Image.Width)
	assert.Equal(t, 20, file.Image.Height)

	_, err = LoadImageFile(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "notes.png")
	require.NoError(t, os.WriteFile(bad, []byte("plain text"), 0o600))
	_, err = LoadImageFile(bad)
	assert.ErrorIs(t, err, images.ErrUnsupportedFormat)
}

func TestLoadImageFiles(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 4, 4)
	writeJPEG(t, filepath.Join(dir, "a.JPG"), 8, 8)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("skip"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.png"), 0o700))

	files, err := LoadImageFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "a.JPG"), files[0].Path)
	assert.Equal(t, images.FormatJPEG, files[0].Image.Format)
	assert.Equal(t, filepath.Join(dir, "b.png"), files[1].Path)

	single, err := LoadImageFiles(filepath.Join(dir, "b.png"))
	require.NoError(t, err)
	assert.Len(t, single, 1)

	_, err = LoadImageFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
