package util

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/images"
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Image is the sniffed image.
	Image *images.Image
}

// LoadImageFile reads and sniffs one JPEG or PNG file.
//
// Arguments:
// - path: The image file.
//
// Returns:
// - ImageFile: The loaded image.
// - error: Read errors or images.ErrUnsupportedFormat.
func LoadImageFile(path string) (ImageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImageFile{}, errors.Wrapf(err, "failed to read %s", path)
	}
	img, err := images.NewImage(data)
	if err != nil {
		return ImageFile{}, errors.Wrapf(err, "failed to load %s", path)
	}
	return ImageFile{Path: path, Image: img}, nil
}

// LoadImageFiles loads path itself if it is a file, or every .jpg, .jpeg and
// .png file directly inside it, sorted by name, if it is a directory.
//
// Arguments:
// - path: An image file or a directory of image files.
//
// Returns:
// - []ImageFile: The loaded images.
// - error: Error if loading fails.
func LoadImageFiles(path string) ([]ImageFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}
	if !info.IsDir() {
		file, err := LoadImageFile(path)
		if err != nil {
			return nil, err
		}
		return []ImageFile{file}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read directory %s", path)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			file, err := LoadImageFile(filepath.Join(path, entry.Name()))
			if err != nil {
				return nil, err
			}
			files = append(files, file)
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	return files, nil
}
