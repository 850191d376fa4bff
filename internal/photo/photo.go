// Package photo normalizes uploaded item photos.
package photo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// MIME is the type of every stored photo.
const MIME = "image/jpeg"

// ErrUnsupported is returned for uploads that are not JPEG or PNG.
var ErrUnsupported = errors.New("unsupported image format")

// Options controls photo processing.
type Options struct {
	// MaxDimension bounds the width and height of the stored photo.
	MaxDimension int
	// ThumbDimension bounds the width and height of the thumbnail.
	ThumbDimension int
	// Quality is the JPEG quality (1-100).
	Quality int
	// MaxBytes caps the size of the upload. Zero means no cap.
	MaxBytes int64
}

// DefaultOptions returns the standard processing settings.
func DefaultOptions() Options {
	return Options{MaxDimension: 1024, ThumbDimension: 160, Quality: 85, MaxBytes: 10 << 20}
}

// Result holds the re-encoded photo and its thumbnail.
type Result struct {
	Photo     []byte
	Thumbnail []byte
	MIME      string
	Width     int
	Height    int
}

// Process sniffs the upload (client headers are ignored), downscales it to
// the configured bounds and re-encodes it as JPEG together with a thumbnail.
func Process(r io.Reader, opts Options) (*Result, error) {
	if opts.MaxBytes > 0 {
		r = io.LimitReader(r, opts.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	if opts.MaxBytes > 0 && int64(len(data)) > opts.MaxBytes {
		return nil, fmt.Errorf("photo exceeds %d bytes", opts.MaxBytes)
	}

	switch detected := http.DetectContentType(data); detected {
	case "image/jpeg", "image/png":
	default:
		return nil, fmt.Errorf("%w: %s (only JPEG and PNG accepted)", ErrUnsupported, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding photo: %w", err)
	}

	full := fit(img, opts.MaxDimension)
	photo, err := encode(full, opts.Quality)
	if err != nil {
		return nil, err
	}
	thumb, err := encode(fit(full, opts.ThumbDimension), opts.Quality)
	if err != nil {
		return nil, err
	}

	b := full.Bounds()
	return &Result{Photo: photo, Thumbnail: thumb, MIME: MIME, Width: b.Dx(), Height: b.Dy()}, nil
}

func encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// fit scales img down with Catmull-Rom so neither side exceeds maxDim,
// keeping the aspect ratio. Smaller images are returned as is.
func fit(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(1, h*maxDim/w)
	} else {
		newW = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
