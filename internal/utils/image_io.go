package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path        string
	Format      string
	SizeBytes   int64
	Width       int
	Height      int
	AspectRatio float64
}

// LoadImage opens and decodes an image file. Every failure is reported as
// an *ImageLoadError carrying the offending path.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		return nil, ImageMetadata{}, &ImageLoadError{Path: path, Err: errors.New("empty path")}
	}
	if !IsSupportedImage(path) {
		return nil, ImageMetadata{}, &ImageLoadError{
			Path: path,
			Err:  fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path)),
		}
	}

	f, err := os.Open(path) //nolint:gosec // G304: Reading user-provided image file path is expected
	if err != nil {
		return nil, ImageMetadata{}, &ImageLoadError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, ImageMetadata{}, &ImageLoadError{Path: path, Err: err}
	}

	img, format, err := DecodeImage(f)
	if err != nil {
		var le *ImageLoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, ImageMetadata{}, err
	}

	meta := metadataFor(img, format)
	meta.Path = path
	meta.SizeBytes = fi.Size()
	return img, meta, nil
}

// DecodeImage decodes an image from a reader (uploads, chat attachments, PDF
// extracts). Decode failures are reported as *ImageLoadError.
func DecodeImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", &ImageLoadError{Err: fmt.Errorf("decode: %w", err)}
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, "", &ImageLoadError{Err: fmt.Errorf("decode: empty %s image", format)}
	}
	return img, format, nil
}

// DecodeImageBytes is DecodeImage for in-memory payloads.
func DecodeImageBytes(data []byte) (image.Image, ImageMetadata, error) {
	img, format, err := DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, ImageMetadata{}, err
	}
	meta := metadataFor(img, format)
	meta.SizeBytes = int64(len(data))
	return img, meta, nil
}

func metadataFor(img image.Image, format string) ImageMetadata {
	b := img.Bounds()
	return ImageMetadata{
		Format:      format,
		Width:       b.Dx(),
		Height:      b.Dy(),
		AspectRatio: float64(b.Dx()) / float64(b.Dy()),
	}
}

// ListImages expands files and directories into supported image paths.
// Directories are walked recursively when recursive is set.
func ListImages(inputs []string, recursive bool) ([]string, error) {
	var out []string
	for _, in := range inputs {
		fi, err := os.Stat(in)
		if err != nil {
			return nil, &ImageLoadError{Path: in, Err: err}
		}
		if !fi.IsDir() {
			out = append(out, in)
			continue
		}
		err = filepath.WalkDir(in, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != in && !recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if IsSupportedImage(path) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", in, err)
		}
	}
	return out, nil
}
