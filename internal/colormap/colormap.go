// Package colormap maps single-sample pixel values to RGBA colors,
// either from a TIFF's embedded ColorMap tag or from an external
// SLD-like XML description.
package colormap

import (
	"sort"

	"github.com/hallertau/geotiffkit/internal/tiff"
)

// RGBA is an 8-bit-per-channel color.
type RGBA struct {
	R, G, B, A uint8
}

// Entry is one value->color mapping point, ascending by Quantity.
type Entry struct {
	Quantity float64
	Color    RGBA
}

// Colormap is an ordered list of entries used to interpolate or look up
// a color for a given sample value.
type Colormap struct {
	Entries []Entry
	// FilterTransparent makes out-of-range values map to alpha=0
	// instead of the default (first/last entry) color.
	FilterTransparent bool
}

// FromEmbedded builds a Colormap from a TIFF's ColorMap tag: a flat
// array of 3*2^BitsPerSample 16-bit entries, R plane then G then B,
// each scaled 0..65535. Entry i's quantity is the raw sample value i.
func FromEmbedded(ifd *tiff.IFD, bitsPerSample int) (*Colormap, error) {
	raw := ifd.ColorMap()
	n := 1 << uint(bitsPerSample)
	if len(raw) < 3*n {
		return nil, tiff.FormatError("colormap.FromEmbedded", errShortColorMap)
	}

	cm := &Colormap{Entries: make([]Entry, n)}
	for i := 0; i < n; i++ {
		r := raw[i]
		g := raw[n+i]
		b := raw[2*n+i]
		cm.Entries[i] = Entry{
			Quantity: float64(i),
			Color:    RGBA{R: scale16to8(r), G: scale16to8(g), B: scale16to8(b), A: 255},
		}
	}
	return cm, nil
}

func scale16to8(v uint16) uint8 { return uint8(uint32(v) * 255 / 65535) }

// Apply maps a single-sample PixelBuffer to a 4-sample RGBA 8-bit
// PixelBuffer, applying mask if present (masked-out pixels are fully
// transparent) and the colormap's own out-of-range behavior.
func Apply(cm *Colormap, src *tiff.PixelBuffer, mask *tiff.Mask) (*tiff.PixelBuffer, error) {
	if src.SamplesPerPixel != 1 {
		return nil, tiff.RequestError("colormap.Apply", errNotSingleSample)
	}
	out := tiff.NewPixelBuffer(src.Width, src.Height, 4, 8, tiff.SampleFormatUint)

	bps := src.BytesPerSample()
	srcStride := src.Stride()
	dstStride := out.Stride()

	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			v := sampleAt(src, srcStride, bps, x, y)
			c := cm.colorFor(v)
			if mask != nil && !mask.At(x, y) {
				c.A = 0
			}
			off := y*dstStride + x*4
			out.Pix[off+0] = c.R
			out.Pix[off+1] = c.G
			out.Pix[off+2] = c.B
			out.Pix[off+3] = c.A
		}
	}
	return out, nil
}

func sampleAt(buf *tiff.PixelBuffer, stride, bps, x, y int) float64 {
	off := y*stride + x*bps
	switch bps {
	case 1:
		return float64(buf.Pix[off])
	case 2:
		return float64(uint16(buf.Pix[off]) | uint16(buf.Pix[off+1])<<8)
	case 4:
		return float64(uint32(buf.Pix[off]) | uint32(buf.Pix[off+1])<<8 | uint32(buf.Pix[off+2])<<16 | uint32(buf.Pix[off+3])<<24)
	default:
		return 0
	}
}

// colorFor looks up (interpolating between bracketing entries) the
// color for value v. Values outside the entry range get the nearest
// boundary entry's color, or transparent when FilterTransparent is set.
func (cm *Colormap) colorFor(v float64) RGBA {
	entries := cm.Entries
	if len(entries) == 0 {
		return RGBA{}
	}

	if v <= entries[0].Quantity {
		if cm.FilterTransparent && v < entries[0].Quantity {
			return RGBA{}
		}
		return entries[0].Color
	}
	last := entries[len(entries)-1]
	if v >= last.Quantity {
		if cm.FilterTransparent && v > last.Quantity {
			return RGBA{}
		}
		return last.Color
	}

	i := sort.Search(len(entries), func(i int) bool { return entries[i].Quantity >= v })
	if i < len(entries) && entries[i].Quantity == v {
		return entries[i].Color
	}
	lo, hi := entries[i-1], entries[i]
	t := (v - lo.Quantity) / (hi.Quantity - lo.Quantity)
	return RGBA{
		R: lerp8(lo.Color.R, hi.Color.R, t),
		G: lerp8(lo.Color.G, hi.Color.G, t),
		B: lerp8(lo.Color.B, hi.Color.B, t),
		A: lerp8(lo.Color.A, hi.Color.A, t),
	}
}

func lerp8(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + t*(float64(b)-float64(a)))
}

var (
	errShortColorMap   = simpleErr("ColorMap tag too short for BitsPerSample")
	errNotSingleSample = simpleErr("colormap apply requires a single-sample source")
)

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
