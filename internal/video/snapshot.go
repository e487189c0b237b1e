package video

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/dchest/uniuri"
	"golang.org/x/image/bmp"

	"github.com/zsiec/duet/media"
)

// Snapshot image formats.
const (
	FormatPNG = "png"
	FormatBMP = "bmp"
)

const (
	snapshotNameLen  = 10
	snapshotAttempts = 16
)

var snapshotChars = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")

// SaveSnapshot writes pic to a new file with a random ten letter name in
// dir and returns its path. Existing files are never overwritten.
func SaveSnapshot(dir, format string, pic *media.Picture) (string, error) {
	if format == "" {
		format = FormatPNG
	}
	if format != FormatPNG && format != FormatBMP {
		return "", fmt.Errorf("snapshot: unknown format %q", format)
	}
	if dir == "" {
		dir = "."
	}

	img := &image.RGBA{
		Pix:    pic.Pix,
		Stride: pic.Stride,
		Rect:   image.Rect(0, 0, pic.Width, pic.Height),
	}

	for attempt := 0; attempt < snapshotAttempts; attempt++ {
		path := filepath.Join(dir, uniuri.NewLenChars(snapshotNameLen, snapshotChars)+"."+format)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("snapshot: %w", err)
		}

		if format == FormatBMP {
			err = bmp.Encode(f, img)
		} else {
			err = png.Encode(f, img)
		}
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
			return "", fmt.Errorf("snapshot: encode %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("snapshot: no free file name in %s", dir)
}
