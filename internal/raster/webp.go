package raster

import (
	"bytes"
	"image"

	"github.com/gen2brain/webp"

	"github.com/hallertau/geotiffkit/internal/tiff"
)

// WebPEncoder encodes images as WebP using gen2brain/webp, a pure-Go
// sibling to libwebp (runs the reference codec compiled to WASM via
// wazero), replacing the teacher's CGO-only libwebp binding so this
// output format builds without a C toolchain.
type WebPEncoder struct {
	Quality int // 0-100, default 85
}

func (e *WebPEncoder) Encode(img image.Image) ([]byte, error) {
	quality := e.Quality
	if quality <= 0 {
		quality = 85
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, webp.Options{Quality: float32(quality)}); err != nil {
		return nil, tiff.IoError("raster.WebPEncoder.Encode", err)
	}
	return buf.Bytes(), nil
}

func (e *WebPEncoder) Format() string        { return "webp" }
func (e *WebPEncoder) FileExtension() string { return ".webp" }

// DecodeWebP decodes WebP image bytes for ingesting a previously
// extracted image, mirroring the teacher's DecodeWebP but routed
// through the pure-Go codec.
func DecodeWebP(data []byte) (image.Image, error) {
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, tiff.IoError("raster.DecodeWebP", err)
	}
	return img, nil
}
