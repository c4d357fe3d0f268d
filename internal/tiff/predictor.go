package tiff

import "encoding/binary"

// ApplyPredictor and UndoPredictor implement TIFF Predictor=2
// (horizontal differencing, TIFF 6.0 §14), generalized from the
// teacher's byte-only version to the 8/16/32-bit sample widths
// spec.md §4.4 requires. Predictor=1 (none) is a no-op handled by the
// caller before ever reaching here.
//
// samplesPerPixel and bitsPerSample describe one row's layout: each
// sample is diffed against the same-channel sample one pixel to its
// left, not against the immediately preceding byte. order is the
// file's byte order — differencing operates on decoded sample values,
// which are only well-defined once de-serialized with that order.

// UndoPredictor reverses horizontal differencing in place.
func UndoPredictor(data []byte, width, samplesPerPixel, bitsPerSample int, order binary.ByteOrder) {
	switch bitsPerSample {
	case 8:
		undoPredictor8(data, width, samplesPerPixel)
	case 16:
		undoPredictor16(data, width, samplesPerPixel, order)
	case 32:
		undoPredictor32(data, width, samplesPerPixel, order)
	}
}

// ApplyPredictor performs horizontal differencing in place.
func ApplyPredictor(data []byte, width, samplesPerPixel, bitsPerSample int, order binary.ByteOrder) {
	switch bitsPerSample {
	case 8:
		applyPredictor8(data, width, samplesPerPixel)
	case 16:
		applyPredictor16(data, width, samplesPerPixel, order)
	case 32:
		applyPredictor32(data, width, samplesPerPixel, order)
	}
}

func undoPredictor8(data []byte, width, samplesPerPixel int) {
	rowBytes := width * samplesPerPixel
	for off := 0; off+rowBytes <= len(data); off += rowBytes {
		row := data[off : off+rowBytes]
		for x := samplesPerPixel; x < rowBytes; x++ {
			row[x] += row[x-samplesPerPixel]
		}
	}
}

func applyPredictor8(data []byte, width, samplesPerPixel int) {
	rowBytes := width * samplesPerPixel
	for off := 0; off+rowBytes <= len(data); off += rowBytes {
		row := data[off : off+rowBytes]
		for x := rowBytes - 1; x >= samplesPerPixel; x-- {
			row[x] -= row[x-samplesPerPixel]
		}
	}
}

func undoPredictor16(data []byte, width, samplesPerPixel int, order binary.ByteOrder) {
	rowSamples := width * samplesPerPixel
	rowBytes := rowSamples * 2
	for off := 0; off+rowBytes <= len(data); off += rowBytes {
		row := data[off : off+rowBytes]
		for i := samplesPerPixel; i < rowSamples; i++ {
			prev := order.Uint16(row[(i-samplesPerPixel)*2:])
			cur := order.Uint16(row[i*2:])
			order.PutUint16(row[i*2:], cur+prev)
		}
	}
}

func applyPredictor16(data []byte, width, samplesPerPixel int, order binary.ByteOrder) {
	rowSamples := width * samplesPerPixel
	rowBytes := rowSamples * 2
	for off := 0; off+rowBytes <= len(data); off += rowBytes {
		row := data[off : off+rowBytes]
		for i := rowSamples - 1; i >= samplesPerPixel; i-- {
			prev := order.Uint16(row[(i-samplesPerPixel)*2:])
			cur := order.Uint16(row[i*2:])
			order.PutUint16(row[i*2:], cur-prev)
		}
	}
}

func undoPredictor32(data []byte, width, samplesPerPixel int, order binary.ByteOrder) {
	rowSamples := width * samplesPerPixel
	rowBytes := rowSamples * 4
	for off := 0; off+rowBytes <= len(data); off += rowBytes {
		row := data[off : off+rowBytes]
		for i := samplesPerPixel; i < rowSamples; i++ {
			prev := order.Uint32(row[(i-samplesPerPixel)*4:])
			cur := order.Uint32(row[i*4:])
			order.PutUint32(row[i*4:], cur+prev)
		}
	}
}

func applyPredictor32(data []byte, width, samplesPerPixel int, order binary.ByteOrder) {
	rowSamples := width * samplesPerPixel
	rowBytes := rowSamples * 4
	for off := 0; off+rowBytes <= len(data); off += rowBytes {
		row := data[off : off+rowBytes]
		for i := rowSamples - 1; i >= samplesPerPixel; i-- {
			prev := order.Uint32(row[(i-samplesPerPixel)*4:])
			cur := order.Uint32(row[i*4:])
			order.PutUint32(row[i*4:], cur-prev)
		}
	}
}
