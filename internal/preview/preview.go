// Package preview decodes user-selected images and downscales them to a
// bounded thumbnail for display. Failures here are non-fatal: a broken
// preview does not invalidate the selected path.
package preview

import (
	"errors"
	"image"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// MaxDim is the default bounding box for thumbnails, in pixels.
const MaxDim = 360

// decodeError signals a failed preview decode.
type decodeError struct{ err error }

func (e decodeError) Error() string { return "preview failed: " + e.err.Error() }

func (e decodeError) Unwrap() error { return e.err }

// ErrPreview wraps err as a preview failure.
func ErrPreview(err error) error { return decodeError{err: err} }

// IsPreviewError reports whether err is a (non-fatal) preview failure.
func IsPreviewError(err error) bool {
	var de decodeError
	return errors.As(err, &de)
}

// Thumbnail decodes the image at path and scales it down to fit within a
// maxDim square, preserving aspect ratio. Images already within bounds are
// returned as decoded.
func Thumbnail(path string, maxDim int) (image.Image, error) {
	if maxDim <= 0 {
		maxDim = MaxDim
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, ErrPreview(err)
	}
	defer f.Close()
	src, _, err := image.Decode(f)
	if err != nil {
		return nil, ErrPreview(err)
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return src, nil
	}
	if w >= h {
		h = h * maxDim / w
		w = maxDim
	} else {
		w = w * maxDim / h
		h = maxDim
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst, nil
}
