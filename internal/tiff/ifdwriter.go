package tiff

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// IFDWriter serializes an IFD back to TIFF bytes, spec.md §4.3. It
// assigns offsets for every out-of-line value in a first pass, then
// emits the directory (always sorted by tag id) followed by the
// out-of-line values in a second pass, so that re-reading the result
// with ReadIFDs reproduces an equal tag set.
type IFDWriter struct {
	Order   binary.ByteOrder
	Variant Variant
}

func NewIFDWriter(order binary.ByteOrder, variant Variant) *IFDWriter {
	return &IFDWriter{Order: order, Variant: variant}
}

func (w *IFDWriter) offsetWidth() int {
	if w.Variant == VariantBig {
		return 8
	}
	return 4
}

func (w *IFDWriter) entrySize() int {
	if w.Variant == VariantBig {
		return 20
	}
	return 12
}

// WriteHeader writes the 8-byte (classic) or 16-byte (BigTIFF) file
// header, with firstIFDOffset pointing at the first directory. Every
// field goes through a write ByteCursor (spec.md §4.1).
func (w *IFDWriter) WriteHeader(out io.Writer, firstIFDOffset uint64) (int64, error) {
	cur := NewWriteCursor(out, w.Order)

	var marker string
	if w.Order == binary.LittleEndian {
		marker = "II"
	} else {
		marker = "MM"
	}
	if err := cur.WriteBytes([]byte(marker)); err != nil {
		return 0, err
	}
	magic := uint16(42)
	if w.Variant == VariantBig {
		magic = 43
	}
	if err := cur.WriteU16(magic); err != nil {
		return 0, err
	}

	n := int64(4)
	if w.Variant == VariantBig {
		if err := cur.WriteU16(8); err != nil {
			return 0, err
		}
		if err := cur.WriteU16(0); err != nil {
			return 0, err
		}
		if err := cur.WriteU64(firstIFDOffset); err != nil {
			return 0, err
		}
		n += 2 + 2 + 8
	} else {
		if err := cur.WriteU32(uint32(firstIFDOffset)); err != nil {
			return 0, err
		}
		n += 4
	}
	return n, nil
}

// PixelData carries the encoded strip or tile chunks for one IFD: they
// are always written out-of-line (spec.md §4.3), one chunk per strip
// or tile, in StripOffsets/TileOffsets order.
type PixelData struct {
	OffsetsTag    Tag // TagStripOffsets or TagTileOffsets
	ByteCountsTag Tag // TagStripByteCounts or TagTileByteCounts
	Chunks        [][]byte
}

// WriteIFD writes one directory at the current position of out, a
// plain io.Writer: every offset is computed before a single byte is
// written, so nothing is seeked back to or patched. baseOffset is the
// absolute file offset the directory will start at. nextIFDOffset is
// the absolute offset of the following directory, 0 if none.
// Returns the absolute end-of-directory offset (useful for chaining).
func (w *IFDWriter) WriteIFD(out io.Writer, baseOffset uint64, ifd *IFD, pixels *PixelData, nextIFDOffset uint64) (uint64, error) {
	const op = "tiff.IFDWriter.WriteIFD"

	tags := ifd.Tags()
	tagSet := make(map[Tag]bool, len(tags))
	for _, t := range tags {
		tagSet[t] = true
	}
	if pixels != nil {
		tagSet[pixels.OffsetsTag] = true
		tagSet[pixels.ByteCountsTag] = true
		if !containsTag(tags, pixels.OffsetsTag) {
			tags = append(tags, pixels.OffsetsTag)
		}
		if !containsTag(tags, pixels.ByteCountsTag) {
			tags = append(tags, pixels.ByteCountsTag)
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	ow := w.offsetWidth()
	entrySize := w.entrySize()

	countFieldWidth := 2
	if w.Variant == VariantBig {
		countFieldWidth = 8
	}
	dirSize := uint64(countFieldWidth) + uint64(len(tags))*uint64(entrySize) + uint64(ow)
	cursor := baseOffset + dirSize

	type outline struct {
		tag    Tag
		offset uint64
		data   []byte // nil for pixel chunks (see chunkOffsets)
	}
	var extras []outline
	chunkOffsets := map[Tag][]uint64{}
	var byteCountsOffset, offsetsArrayOffset uint64
	var byteCountsOutOfLine, offsetsArrayOutOfLine bool

	align := func() {
		if cursor%2 != 0 {
			cursor++
		}
	}

	for _, tag := range tags {
		if pixels != nil && tag == pixels.OffsetsTag {
			offs := make([]uint64, len(pixels.Chunks))
			for i, chunk := range pixels.Chunks {
				align()
				offs[i] = cursor
				cursor += uint64(len(chunk))
			}
			chunkOffsets[tag] = offs
			if len(pixels.Chunks) > 1 {
				align()
				offsetsArrayOffset = cursor
				offsetsArrayOutOfLine = true
				cursor += uint64(len(pixels.Chunks) * ow)
			}
			continue
		}
		if pixels != nil && tag == pixels.ByteCountsTag {
			if len(pixels.Chunks) > 1 {
				align()
				byteCountsOffset = cursor
				byteCountsOutOfLine = true
				cursor += uint64(len(pixels.Chunks) * ow)
			}
			continue
		}

		v, _ := ifd.Get(tag)
		size := uint64(v.Count) * uint64(v.Kind.Size())
		if v.Kind == KindASCII {
			size = uint64(len(v.ascii))
		}
		if size <= uint64(ow) {
			continue // fits inline
		}
		align()
		data := encodeValueBytes(w.Order, v)
		extras = append(extras, outline{tag: tag, offset: cursor, data: data})
		cursor += uint64(len(data))
	}

	// --- pass 2: emit ---
	var dir []byte
	if w.Variant == VariantBig {
		cb := make([]byte, 8)
		w.Order.PutUint64(cb, uint64(len(tags)))
		dir = append(dir, cb...)
	} else {
		cb := make([]byte, 2)
		w.Order.PutUint16(cb, uint16(len(tags)))
		dir = append(dir, cb...)
	}

	extraByTag := make(map[Tag]outline, len(extras))
	for _, e := range extras {
		extraByTag[e.tag] = e
	}

	var byteCountsArray []byte
	if pixels != nil {
		sizes := make([]uint64, len(pixels.Chunks))
		for i, c := range pixels.Chunks {
			sizes[i] = uint64(len(c))
		}
		byteCountsArray = encodeUintOffsetArray(w.Order, ow, sizes)
	}

	for _, tag := range tags {
		tb := make([]byte, 2)
		w.Order.PutUint16(tb, uint16(tag))
		dir = append(dir, tb...)

		var kind Kind
		var count uint64
		var valueBytes []byte

		switch {
		case pixels != nil && tag == pixels.OffsetsTag:
			kind = KindLong
			if w.Variant == VariantBig {
				kind = KindLong8
			}
			count = uint64(len(pixels.Chunks))
			offs := chunkOffsets[tag]
			if offsetsArrayOutOfLine {
				valueBytes = make([]byte, ow)
				putOffset(w.Order, valueBytes, offsetsArrayOffset, ow)
			} else {
				valueBytes = encodeUintOffsetArray(w.Order, ow, offs)
			}
		case pixels != nil && tag == pixels.ByteCountsTag:
			kind = KindLong
			if w.Variant == VariantBig {
				kind = KindLong8
			}
			count = uint64(len(pixels.Chunks))
			if byteCountsOutOfLine {
				valueBytes = make([]byte, ow)
				putOffset(w.Order, valueBytes, byteCountsOffset, ow)
			} else {
				valueBytes = byteCountsArray
			}
		default:
			v, _ := ifd.Get(tag)
			kind = v.Kind
			count = uint64(v.Count)
			if e, ok := extraByTag[tag]; ok {
				valueBytes = make([]byte, ow)
				putOffset(w.Order, valueBytes, e.offset, ow)
			} else {
				valueBytes = encodeInlineValue(w.Order, v, ow)
			}
		}

		kb := make([]byte, 2)
		w.Order.PutUint16(kb, uint16(kind))
		dir = append(dir, kb...)

		if w.Variant == VariantBig {
			countB := make([]byte, 8)
			w.Order.PutUint64(countB, count)
			dir = append(dir, countB...)
		} else {
			countB := make([]byte, 4)
			w.Order.PutUint32(countB, uint32(count))
			dir = append(dir, countB...)
		}
		if len(valueBytes) < ow {
			padded := make([]byte, ow)
			copy(padded, valueBytes)
			valueBytes = padded
		}
		dir = append(dir, valueBytes[:ow]...)
	}

	if w.Variant == VariantBig {
		nb := make([]byte, 8)
		w.Order.PutUint64(nb, nextIFDOffset)
		dir = append(dir, nb...)
	} else {
		nb := make([]byte, 4)
		w.Order.PutUint32(nb, uint32(nextIFDOffset))
		dir = append(dir, nb...)
	}

	if uint64(len(dir)) != dirSize {
		return 0, FormatError(op, fmt.Errorf("internal size mismatch: wrote %d, expected %d", len(dir), dirSize))
	}
	cur := NewWriteCursor(out, w.Order)
	if err := cur.WriteBytes(dir); err != nil {
		return 0, err
	}

	written := baseOffset + dirSize
	emit := func(offset uint64, data []byte) error {
		if written%2 != 0 {
			if err := cur.WriteBytes([]byte{0}); err != nil {
				return err
			}
			written++
		}
		if written != offset {
			return FormatError(op, fmt.Errorf("offset drift: at %d, expected %d", written, offset))
		}
		if err := cur.WriteBytes(data); err != nil {
			return err
		}
		written += uint64(len(data))
		return nil
	}

	// Non-pixel extras and pixel chunks must be emitted in increasing
	// offset order since they were laid out in a single forward scan.
	type placed struct {
		offset uint64
		data   []byte
	}
	var all []placed
	for _, e := range extras {
		all = append(all, placed{e.offset, e.data})
	}
	if pixels != nil {
		offs := chunkOffsets[pixels.OffsetsTag]
		for i, c := range pixels.Chunks {
			all = append(all, placed{offs[i], c})
		}
		if byteCountsOutOfLine {
			all = append(all, placed{byteCountsOffset, byteCountsArray})
		}
		if offsetsArrayOutOfLine {
			all = append(all, placed{offsetsArrayOffset, encodeUintOffsetArray(w.Order, ow, offs)})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].offset < all[j].offset })
	for _, p := range all {
		if err := emit(p.offset, p.data); err != nil {
			return 0, err
		}
	}

	return written, nil
}

func containsTag(tags []Tag, tag Tag) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func putOffset(order binary.ByteOrder, dst []byte, offset uint64, width int) {
	if width == 8 {
		order.PutUint64(dst, offset)
	} else {
		order.PutUint32(dst, uint32(offset))
	}
}

func encodeUintOffsetArray(order binary.ByteOrder, width int, vals []uint64) []byte {
	if width == 8 {
		out := make([]byte, 8*len(vals))
		for i, v := range vals {
			order.PutUint64(out[i*8:i*8+8], v)
		}
		return out
	}
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		order.PutUint32(out[i*4:i*4+4], uint32(v))
	}
	return out
}

// encodeInlineValue encodes a value that is known to fit within the
// offset-width value field.
func encodeInlineValue(order binary.ByteOrder, v Value, width int) []byte {
	data := encodeValueBytes(order, v)
	if len(data) > width {
		data = data[:width]
	}
	return data
}

// encodeValueBytes encodes the full payload of v regardless of size;
// callers place it inline or out-of-line depending on length.
func encodeValueBytes(order binary.ByteOrder, v Value) []byte {
	switch v.Kind {
	case KindASCII:
		return []byte(v.ascii)
	case KindByte, KindSByte, KindUndefined:
		out := make([]byte, len(v.uints))
		for i, u := range v.uints {
			out[i] = byte(u)
		}
		return out
	case KindShort, KindSShort:
		out := make([]byte, 2*len(v.uints))
		for i, u := range v.uints {
			order.PutUint16(out[i*2:i*2+2], uint16(u))
		}
		return out
	case KindLong, KindSLong, KindIFD8:
		out := make([]byte, 4*len(v.uints))
		for i, u := range v.uints {
			order.PutUint32(out[i*4:i*4+4], uint32(u))
		}
		return out
	case KindLong8, KindSLong8:
		out := make([]byte, 8*len(v.uints))
		for i, u := range v.uints {
			order.PutUint64(out[i*8:i*8+8], u)
		}
		return out
	case KindRational, KindSRational:
		out := make([]byte, 8*len(v.floats))
		for i, f := range v.floats {
			num, den := rationalize(f)
			order.PutUint32(out[i*8:i*8+4], num)
			order.PutUint32(out[i*8+4:i*8+8], den)
		}
		return out
	case KindFloat:
		out := make([]byte, 4*len(v.floats))
		for i, f := range v.floats {
			order.PutUint32(out[i*4:i*4+4], bitsFromFloat32(f))
		}
		return out
	case KindDouble:
		out := make([]byte, 8*len(v.floats))
		for i, f := range v.floats {
			order.PutUint64(out[i*8:i*8+8], bitsFromFloat64(f))
		}
		return out
	default:
		return nil
	}
}

// rationalize approximates f as a fraction with a reasonably large
// denominator; sufficient for XResolution/YResolution round-tripping.
func rationalize(f float64) (num, den uint32) {
	const scale = 1000000
	if f < 0 {
		f = 0
	}
	return uint32(f * scale), scale
}
