// Package raster encodes an extracted PixelBuffer as a viewer-friendly
// raster image (PNG, WebP) for output paths whose extension implies it,
// per spec's Extractor output-path step.
package raster

import (
	"fmt"
	"image"

	"github.com/hallertau/geotiffkit/internal/tiff"
)

// Encoder turns an in-memory image into file bytes for one raster format.
type Encoder interface {
	Encode(img image.Image) ([]byte, error)
	Format() string
	FileExtension() string
}

// NewEncoder returns the Encoder for format ("png" or "webp").
func NewEncoder(format string, quality int) (Encoder, error) {
	switch format {
	case "png":
		return &PNGEncoder{}, nil
	case "webp":
		return &WebPEncoder{Quality: quality}, nil
	default:
		return nil, tiff.UnsupportedError("raster.NewEncoder", fmt.Errorf("unsupported raster format %q", format))
	}
}
