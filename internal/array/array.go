// Package array exports a decoded PixelBuffer as a tabular array format:
// CSV, JSON, or NumPy's NPY binary form.
package array

import (
	"bytes"
	"encoding/binary"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/hallertau/geotiffkit/internal/tiff"
)

// WriteCSV writes one row per image row, samples comma-separated,
// multi-sample pixels flattened left to right, LF line terminator.
func WriteCSV(w io.Writer, buf *tiff.PixelBuffer) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = false

	stride := buf.Stride()
	bps := buf.BytesPerSample()
	row := make([]string, buf.Width*buf.SamplesPerPixel)
	for y := 0; y < buf.Height; y++ {
		rowOff := y * stride
		for x := 0; x < buf.Width; x++ {
			for s := 0; s < buf.SamplesPerPixel; s++ {
				off := rowOff + (x*buf.SamplesPerPixel+s)*bps
				row[x*buf.SamplesPerPixel+s] = formatSample(buf, off, bps)
			}
		}
		if err := cw.Write(row); err != nil {
			return tiff.IoError("array.WriteCSV", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return tiff.IoError("array.WriteCSV", err)
	}
	return nil
}

// WriteJSON writes a 2-D array of numbers (height x width) when
// SamplesPerPixel == 1, or a 3-D array (height x width x samples)
// otherwise.
func WriteJSON(w io.Writer, buf *tiff.PixelBuffer) error {
	stride := buf.Stride()
	bps := buf.BytesPerSample()

	var value interface{}
	if buf.SamplesPerPixel == 1 {
		rows := make([][]float64, buf.Height)
		for y := 0; y < buf.Height; y++ {
			row := make([]float64, buf.Width)
			rowOff := y * stride
			for x := 0; x < buf.Width; x++ {
				row[x] = numericSample(buf, rowOff+x*bps, bps)
			}
			rows[y] = row
		}
		value = rows
	} else {
		rows := make([][][]float64, buf.Height)
		for y := 0; y < buf.Height; y++ {
			row := make([][]float64, buf.Width)
			rowOff := y * stride
			for x := 0; x < buf.Width; x++ {
				pix := make([]float64, buf.SamplesPerPixel)
				for s := 0; s < buf.SamplesPerPixel; s++ {
					off := rowOff + (x*buf.SamplesPerPixel+s)*bps
					pix[s] = numericSample(buf, off, bps)
				}
				row[x] = pix
			}
			rows[y] = row
		}
		value = rows
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(value); err != nil {
		return tiff.IoError("array.WriteJSON", err)
	}
	return nil
}

const npyMagic = "\x93NUMPY"

// WriteNPY writes the standard NumPy binary tabular form: magic,
// version 1.0, a little-endian dictionary header (dtype, shape,
// fortran_order=False) padded to a 64-byte-aligned data start,
// followed by row-major raw samples (as stored in buf.Pix, which is
// already row-major/interleaved).
func WriteNPY(w io.Writer, buf *tiff.PixelBuffer) error {
	dtype, err := npyDtype(buf)
	if err != nil {
		return err
	}

	shape := fmt.Sprintf("(%d, %d)", buf.Height, buf.Width)
	if buf.SamplesPerPixel > 1 {
		shape = fmt.Sprintf("(%d, %d, %d)", buf.Height, buf.Width, buf.SamplesPerPixel)
	}
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", dtype, shape)

	// Header length must make magic(6) + version(2) + headerLen(2) +
	// dict + padding a multiple of 64, with the dict itself newline
	// terminated.
	const preludeLen = len(npyMagic) + 2 + 2
	total := preludeLen + len(dict) + 1 // +1 for trailing '\n'
	pad := (64 - total%64) % 64
	dict += spaces(pad) + "\n"

	var buf2 bytes.Buffer
	buf2.WriteString(npyMagic)
	buf2.WriteByte(1) // major version
	buf2.WriteByte(0) // minor version
	if err := binary.Write(&buf2, binary.LittleEndian, uint16(len(dict))); err != nil {
		return tiff.IoError("array.WriteNPY", err)
	}
	buf2.WriteString(dict)

	if _, err := w.Write(buf2.Bytes()); err != nil {
		return tiff.IoError("array.WriteNPY", err)
	}
	if _, err := w.Write(buf.Pix); err != nil {
		return tiff.IoError("array.WriteNPY", err)
	}
	return nil
}

func spaces(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}

func npyDtype(buf *tiff.PixelBuffer) (string, error) {
	var kind byte
	switch buf.SampleFormat {
	case tiff.SampleFormatUint:
		kind = 'u'
	case tiff.SampleFormatInt:
		kind = 'i'
	case tiff.SampleFormatFloat:
		kind = 'f'
	default:
		return "", tiff.UnsupportedError("array.npyDtype", fmt.Errorf("unsupported sample format %d", buf.SampleFormat))
	}
	return fmt.Sprintf("<%c%d", kind, buf.BytesPerSample()), nil
}

func formatSample(buf *tiff.PixelBuffer, off, bps int) string {
	return fmt.Sprintf("%v", numericSample(buf, off, bps))
}

func numericSample(buf *tiff.PixelBuffer, off, bps int) float64 {
	switch buf.SampleFormat {
	case tiff.SampleFormatFloat:
		switch bps {
		case 4:
			u := binary.LittleEndian.Uint32(buf.Pix[off:])
			return float64(math.Float32frombits(u))
		case 8:
			u := binary.LittleEndian.Uint64(buf.Pix[off:])
			return math.Float64frombits(u)
		}
	case tiff.SampleFormatInt:
		switch bps {
		case 1:
			return float64(int8(buf.Pix[off]))
		case 2:
			return float64(int16(binary.LittleEndian.Uint16(buf.Pix[off:])))
		case 4:
			return float64(int32(binary.LittleEndian.Uint32(buf.Pix[off:])))
		}
	default: // uint
		switch bps {
		case 1:
			return float64(buf.Pix[off])
		case 2:
			return float64(binary.LittleEndian.Uint16(buf.Pix[off:]))
		case 4:
			return float64(binary.LittleEndian.Uint32(buf.Pix[off:]))
		}
	}
	return 0
}
