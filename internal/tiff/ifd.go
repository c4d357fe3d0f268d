package tiff

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Variant distinguishes classic TIFF (32-bit offsets) from BigTIFF
// (64-bit offsets), spec.md §3.
type Variant int

const (
	VariantClassic Variant = iota
	VariantBig
)

// Header is the parsed 8/16-byte TIFF file header.
type Header struct {
	Order   binary.ByteOrder
	Variant Variant
	FirstIFD uint64
}

// IFD is an ordered tag-id→value mapping, spec.md §3. Entries keep
// their read order so re-reading an IFD written by IFDWriter (which
// always sorts by tag id) still round-trips the tag *set*.
type IFD struct {
	order []Tag
	tags  map[Tag]Value

	// NextOffset is the file offset of the following IFD, 0 if none.
	NextOffset uint64
}

func newIFD() *IFD {
	return &IFD{tags: make(map[Tag]Value)}
}

// NewIFD returns an empty directory, ready for Set calls, for callers
// building a TIFF to write rather than parsing one that was read.
func NewIFD() *IFD { return newIFD() }

// Set installs or overwrites a tag value, recording insertion order.
func (ifd *IFD) Set(tag Tag, v Value) {
	if _, exists := ifd.tags[tag]; !exists {
		ifd.order = append(ifd.order, tag)
	}
	ifd.tags[tag] = v
}

// Get returns the value for tag and whether it was present.
func (ifd *IFD) Get(tag Tag) (Value, bool) {
	v, ok := ifd.tags[tag]
	return v, ok
}

// Has reports whether tag is present in the directory.
func (ifd *IFD) Has(tag Tag) bool {
	_, ok := ifd.tags[tag]
	return ok
}

// Tags returns the tags in the order IFDReader read them.
func (ifd *IFD) Tags() []Tag {
	out := make([]Tag, len(ifd.order))
	copy(out, ifd.order)
	return out
}

// --- convenience accessors for the fields the core actually consumes ---

func (ifd *IFD) uint32Of(tag Tag) uint32 {
	v, ok := ifd.Get(tag)
	if !ok {
		return 0
	}
	return uint32(v.AsUint64())
}

func (ifd *IFD) uint16Of(tag Tag) uint16 {
	v, ok := ifd.Get(tag)
	if !ok {
		return 0
	}
	return uint16(v.AsUint64())
}

func (ifd *IFD) uint16SliceOf(tag Tag) []uint16 {
	v, ok := ifd.Get(tag)
	if !ok {
		return nil
	}
	u := v.AsUint64Slice()
	out := make([]uint16, len(u))
	for i, x := range u {
		out[i] = uint16(x)
	}
	return out
}

func (ifd *IFD) uint64SliceOf(tag Tag) []uint64 {
	v, ok := ifd.Get(tag)
	if !ok {
		return nil
	}
	return v.AsUint64Slice()
}

func (ifd *IFD) float64SliceOf(tag Tag) []float64 {
	v, ok := ifd.Get(tag)
	if !ok {
		return nil
	}
	return v.AsFloat64Slice()
}

func (ifd *IFD) Width() uint32             { return ifd.uint32Of(TagImageWidth) }
func (ifd *IFD) Height() uint32            { return ifd.uint32Of(TagImageLength) }
func (ifd *IFD) BitsPerSample() []uint16   { return ifd.uint16SliceOf(TagBitsPerSample) }
func (ifd *IFD) SamplesPerPixel() uint16 {
	if !ifd.Has(TagSamplesPerPixel) {
		return 1
	}
	return ifd.uint16Of(TagSamplesPerPixel)
}
func (ifd *IFD) Compression() uint16 {
	if !ifd.Has(TagCompression) {
		return CompressionNone
	}
	return ifd.uint16Of(TagCompression)
}
func (ifd *IFD) Photometric() uint16     { return ifd.uint16Of(TagPhotometricInterpretation) }
func (ifd *IFD) PlanarConfig() uint16 {
	if !ifd.Has(TagPlanarConfiguration) {
		return 1
	}
	return ifd.uint16Of(TagPlanarConfiguration)
}
func (ifd *IFD) Predictor() uint16 {
	if !ifd.Has(TagPredictor) {
		return PredictorNone
	}
	return ifd.uint16Of(TagPredictor)
}
func (ifd *IFD) SampleFormat() []uint16 {
	sf := ifd.uint16SliceOf(TagSampleFormat)
	if len(sf) == 0 {
		n := int(ifd.SamplesPerPixel())
		sf = make([]uint16, n)
		for i := range sf {
			sf[i] = SampleFormatUint
		}
	}
	return sf
}
func (ifd *IFD) RowsPerStrip() uint32 {
	if !ifd.Has(TagRowsPerStrip) {
		return ifd.Height()
	}
	return ifd.uint32Of(TagRowsPerStrip)
}
func (ifd *IFD) StripOffsets() []uint64    { return ifd.uint64SliceOf(TagStripOffsets) }
func (ifd *IFD) StripByteCounts() []uint64 { return ifd.uint64SliceOf(TagStripByteCounts) }
func (ifd *IFD) TileWidth() uint32         { return ifd.uint32Of(TagTileWidth) }
func (ifd *IFD) TileLength() uint32        { return ifd.uint32Of(TagTileLength) }
func (ifd *IFD) TileOffsets() []uint64     { return ifd.uint64SliceOf(TagTileOffsets) }
func (ifd *IFD) TileByteCounts() []uint64  { return ifd.uint64SliceOf(TagTileByteCounts) }
func (ifd *IFD) ColorMap() []uint16        { return ifd.uint16SliceOf(TagColorMap) }
func (ifd *IFD) ModelTiepoint() []float64  { return ifd.float64SliceOf(TagModelTiepointTag) }
func (ifd *IFD) ModelPixelScale() []float64 {
	return ifd.float64SliceOf(TagModelPixelScaleTag)
}
func (ifd *IFD) ModelTransformation() []float64 {
	return ifd.float64SliceOf(TagModelTransformationTag)
}
func (ifd *IFD) GeoKeys() []uint16         { return ifd.uint16SliceOf(TagGeoKeyDirectoryTag) }
func (ifd *IFD) GeoDoubleParams() []float64 {
	return ifd.float64SliceOf(TagGeoDoubleParamsTag)
}
func (ifd *IFD) GeoAsciiParams() string {
	v, ok := ifd.Get(TagGeoAsciiParamsTag)
	if !ok {
		return ""
	}
	return v.AsString()
}
func (ifd *IFD) NoData() string {
	v, ok := ifd.Get(TagGDALNoData)
	if !ok {
		return ""
	}
	return v.AsString()
}

// IsTiled reports whether this IFD lays out pixel data in tiles rather
// than strips. spec.md §3 requires exactly one of the two to be present.
func (ifd *IFD) IsTiled() bool { return ifd.Has(TagTileWidth) && ifd.Has(TagTileLength) }

// --- reading ---

// ReadIFDs parses the TIFF/BigTIFF header and the full IFD chain from r,
// reading every byte through a ByteCursor (spec.md §4.1) so offset
// validation and I/O errors originate from one place.
// Entries of an unknown value kind are skipped without aborting; no
// warning is emitted. A bad byte order marker, magic or truncated entry
// is a Format error, a short header or count read is an Io error, and
// an offset past the end of r is a Request error.
func ReadIFDs(r io.ReadSeeker) (Header, []*IFD, error) {
	const op = "tiff.ReadIFDs"

	cur, err := NewCursor(r, binary.LittleEndian)
	if err != nil {
		return Header{}, nil, err
	}

	order, buf, err := readByteOrderMarker(cur)
	if err != nil {
		return Header{}, nil, err
	}
	cur.SetEndian(order)

	magic := order.Uint16(buf[2:4])
	var hdr Header
	hdr.Order = order

	switch magic {
	case 42:
		hdr.Variant = VariantClassic
		hdr.FirstIFD = uint64(order.Uint32(buf[4:8]))
	case 43:
		hdr.Variant = VariantBig
		rest, err := cur.ReadBytes(8)
		if err != nil {
			return Header{}, nil, err
		}
		offsetSize := order.Uint16(rest[0:2])
		reserved := order.Uint16(rest[2:4])
		if offsetSize != 8 || reserved != 0 {
			return Header{}, nil, FormatError(op, fmt.Errorf("unsupported BigTIFF header (offsetSize=%d reserved=%d)", offsetSize, reserved))
		}
		hdr.FirstIFD = order.Uint64(rest[4:8])
	default:
		return Header{}, nil, FormatError(op, fmt.Errorf("bad magic %d", magic))
	}

	var ifds []*IFD
	offset := hdr.FirstIFD
	for offset != 0 {
		ifd, err := readOneIFD(cur, offset, hdr.Variant)
		if err != nil {
			return Header{}, nil, err
		}
		ifds = append(ifds, ifd)
		offset = ifd.NextOffset
	}
	return hdr, ifds, nil
}

func readByteOrderMarker(cur *ByteCursor) (binary.ByteOrder, []byte, error) {
	const op = "tiff.ReadIFDs"
	if err := cur.Seek(0); err != nil {
		return nil, nil, err
	}
	buf, err := cur.ReadBytes(8)
	if err != nil {
		return nil, nil, err
	}
	var order binary.ByteOrder
	switch string(buf[0:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, nil, FormatError(op, fmt.Errorf("bad byte order marker %q", buf[0:2]))
	}
	return order, buf, nil
}

func readOneIFD(cur *ByteCursor, offset uint64, variant Variant) (*IFD, error) {
	const op = "tiff.ReadIFDs"
	if err := cur.Seek(int64(offset)); err != nil {
		return nil, err
	}
	order := cur.Order()

	var numEntries uint64
	var entrySize, offsetWidth int
	if variant == VariantBig {
		n, err := cur.ReadU64()
		if err != nil {
			return nil, err
		}
		numEntries = n
		entrySize, offsetWidth = 20, 8
	} else {
		n, err := cur.ReadU16()
		if err != nil {
			return nil, err
		}
		numEntries = uint64(n)
		entrySize, offsetWidth = 12, 4
	}

	ifd := newIFD()
	for i := uint64(0); i < numEntries; i++ {
		raw, err := cur.ReadBytes(entrySize)
		if err != nil {
			return nil, FormatError(op, fmt.Errorf("truncated entry %d: %w", i, unwrapIOErr(err)))
		}
		tag := Tag(order.Uint16(raw[0:2]))
		kind := Kind(order.Uint16(raw[2:4]))
		if !kind.known() {
			// Unknown value kind: the entry is skipped, with no warning.
			continue
		}
		var count uint64
		var valueField []byte
		if variant == VariantBig {
			count = order.Uint64(raw[4:12])
			valueField = raw[12:20]
		} else {
			count = uint64(order.Uint32(raw[4:8]))
			valueField = raw[8:12]
		}

		val, err := resolveValue(cur, kind, count, valueField, offsetWidth)
		if err != nil {
			return nil, err
		}
		ifd.Set(tag, val)
	}

	var next uint64
	if variant == VariantBig {
		n, err := cur.ReadU64()
		if err != nil {
			return nil, err
		}
		next = n
	} else {
		n, err := cur.ReadU32()
		if err != nil {
			return nil, err
		}
		next = uint64(n)
	}
	ifd.NextOffset = next
	return ifd, nil
}

// unwrapIOErr strips a ByteCursor's IoError wrapping so a caller can
// reclassify the underlying cause under a different ErrorKind.
func unwrapIOErr(err error) error {
	if e, ok := err.(*Error); ok && e.Err != nil {
		return e.Err
	}
	return err
}

// resolveValue reads the Count values of the given Kind, fetching them
// from an out-of-line offset when they don't fit in the inline value
// field (spec.md §4.2).
func resolveValue(cur *ByteCursor, kind Kind, count uint64, inline []byte, offsetWidth int) (Value, error) {
	const op = "tiff.ReadIFDs"
	order := cur.Order()
	size := int(count) * kind.Size()

	var data []byte
	if size <= len(inline) {
		data = inline[:size]
	} else {
		var dataOffset uint64
		if offsetWidth == 8 {
			dataOffset = order.Uint64(inline)
		} else {
			dataOffset = uint64(order.Uint32(inline))
		}
		saved, err := cur.Tell()
		if err != nil {
			return Value{}, err
		}
		if err := cur.Seek(int64(dataOffset)); err != nil {
			return Value{}, err
		}
		data, err = cur.ReadBytes(size)
		if err != nil {
			return Value{}, FormatError(op, fmt.Errorf("reading %d bytes at offset %d: %w", size, dataOffset, unwrapIOErr(err)))
		}
		if err := cur.Seek(saved); err != nil {
			return Value{}, err
		}
	}

	n := int(count)
	switch kind {
	case KindASCII:
		return NewASCIIValue(string(data)), nil
	case KindByte, KindSByte, KindUndefined:
		out := make([]uint64, n)
		for i := 0; i < n; i++ {
			out[i] = uint64(data[i])
		}
		return NewUintValue(kind, out), nil
	case KindShort, KindSShort:
		out := make([]uint64, n)
		for i := 0; i < n; i++ {
			out[i] = uint64(order.Uint16(data[i*2 : i*2+2]))
		}
		return NewUintValue(kind, out), nil
	case KindLong, KindSLong, KindIFD8:
		w := kind.Size()
		out := make([]uint64, n)
		for i := 0; i < n; i++ {
			if w == 8 {
				out[i] = order.Uint64(data[i*8 : i*8+8])
			} else {
				out[i] = uint64(order.Uint32(data[i*4 : i*4+4]))
			}
		}
		return NewUintValue(kind, out), nil
	case KindLong8, KindSLong8:
		out := make([]uint64, n)
		for i := 0; i < n; i++ {
			out[i] = order.Uint64(data[i*8 : i*8+8])
		}
		return NewUintValue(kind, out), nil
	case KindRational, KindSRational:
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			num := order.Uint32(data[i*8 : i*8+4])
			den := order.Uint32(data[i*8+4 : i*8+8])
			if den == 0 {
				out[i] = 0
			} else {
				out[i] = float64(num) / float64(den)
			}
		}
		return NewFloatValue(kind, out), nil
	case KindFloat:
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			out[i] = float32FromBits(order.Uint32(data[i*4 : i*4+4]))
		}
		return NewFloatValue(kind, out), nil
	case KindDouble:
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			out[i] = float64FromBits(order.Uint64(data[i*8 : i*8+8]))
		}
		return NewFloatValue(kind, out), nil
	default:
		return Value{}, nil
	}
}
