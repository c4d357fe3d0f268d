package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/hallertau/geotiffkit/internal/tiff"
)

// PNGEncoder encodes images as PNG.
type PNGEncoder struct{}

func (e *PNGEncoder) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := &png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, tiff.IoError("raster.PNGEncoder.Encode", err)
	}
	return buf.Bytes(), nil
}

func (e *PNGEncoder) Format() string        { return "png" }
func (e *PNGEncoder) FileExtension() string { return ".png" }

// ToImage converts a decoded PixelBuffer to an image.Image suitable for
// the Encoder interface. 4-sample 8-bit buffers (the ColormapApplier's
// output) become image.RGBA directly; everything else is rendered as
// 8-bit grayscale, taking the first sample per pixel and rescaling
// 16/32-bit samples into the 0-255 range.
func ToImage(buf *tiff.PixelBuffer) image.Image {
	if buf.SamplesPerPixel == 4 && buf.BitsPerSample == 8 {
		img := image.NewRGBA(image.Rect(0, 0, buf.Width, buf.Height))
		copy(img.Pix, buf.Pix)
		img.Stride = buf.Stride()
		return img
	}

	img := image.NewGray(image.Rect(0, 0, buf.Width, buf.Height))
	bps := buf.BytesPerSample()
	stride := buf.Stride()
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			off := y*stride + x*buf.SamplesPerPixel*bps
			img.SetGray(x, y, color.Gray{Y: sampleToGray(buf, off, bps)})
		}
	}
	return img
}

func sampleToGray(buf *tiff.PixelBuffer, off, bps int) uint8 {
	switch bps {
	case 1:
		return buf.Pix[off]
	case 2:
		v := uint16(buf.Pix[off]) | uint16(buf.Pix[off+1])<<8
		return uint8(v >> 8)
	case 4:
		v := uint32(buf.Pix[off]) | uint32(buf.Pix[off+1])<<8 | uint32(buf.Pix[off+2])<<16 | uint32(buf.Pix[off+3])<<24
		return uint8(v >> 24)
	default:
		return 0
	}
}
