package tiff

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// writeMinimalClassicTIFF builds a tiny classic single-IFD file with a
// handful of representative tag kinds, used to exercise the
// IFDWriter/ReadIFDs round trip without going through a full image
// pipeline.
func writeMinimalClassicTIFF(t *testing.T) []byte {
	t.Helper()

	ifd := newIFD()
	ifd.Set(TagImageWidth, NewUintValue(KindLong, []uint64{4}))
	ifd.Set(TagImageLength, NewUintValue(KindLong, []uint64{2}))
	ifd.Set(TagBitsPerSample, NewUintValue(KindShort, []uint64{8}))
	ifd.Set(TagSamplesPerPixel, NewUintValue(KindShort, []uint64{1}))
	ifd.Set(TagCompression, NewUintValue(KindShort, []uint64{CompressionNone}))
	ifd.Set(TagPhotometricInterpretation, NewUintValue(KindShort, []uint64{PhotometricBlackIsZero}))
	ifd.Set(TagRowsPerStrip, NewUintValue(KindLong, []uint64{2}))
	ifd.Set(TagGeoAsciiParamsTag, NewASCIIValue("EPSG:2056\x00"))

	w := NewIFDWriter(binary.LittleEndian, VariantClassic)
	var buf bytes.Buffer
	if _, err := w.WriteHeader(&buf, 8); err != nil {
		t.Fatalf("write header: %v", err)
	}

	pixels := &PixelData{
		OffsetsTag:    TagStripOffsets,
		ByteCountsTag: TagStripByteCounts,
		Chunks:        [][]byte{{1, 2, 3, 4, 5, 6, 7, 8}},
	}
	if _, err := w.WriteIFD(&buf, 8, ifd, pixels, 0); err != nil {
		t.Fatalf("write ifd: %v", err)
	}
	return buf.Bytes()
}

func TestIFDRoundTrip(t *testing.T) {
	data := writeMinimalClassicTIFF(t)

	hdr, ifds, err := ReadIFDs(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadIFDs: %v", err)
	}
	if hdr.Variant != VariantClassic {
		t.Fatalf("expected classic variant")
	}
	if len(ifds) != 1 {
		t.Fatalf("expected 1 ifd, got %d", len(ifds))
	}

	ifd := ifds[0]
	if ifd.Width() != 4 || ifd.Height() != 2 {
		t.Fatalf("dimensions mismatch: %dx%d", ifd.Width(), ifd.Height())
	}
	if got := ifd.SamplesPerPixel(); got != 1 {
		t.Fatalf("samplesPerPixel = %d", got)
	}
	if got := ifd.Compression(); got != CompressionNone {
		t.Fatalf("compression = %d", got)
	}
	if got := ifd.GeoAsciiParams(); got != "EPSG:2056" {
		t.Fatalf("geo ascii params = %q", got)
	}

	offs := ifd.StripOffsets()
	counts := ifd.StripByteCounts()
	if len(offs) != 1 || len(counts) != 1 || counts[0] != 8 {
		t.Fatalf("strip layout mismatch: offs=%v counts=%v", offs, counts)
	}

	strip := data[offs[0] : offs[0]+counts[0]]
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if !bytes.Equal(strip, want) {
		t.Fatalf("strip payload mismatch: %v", strip)
	}
}

func TestIFDUnknownKindSkipped(t *testing.T) {
	// A hand-built directory with one entry carrying an invalid kind
	// (0) must be skipped, not fail the whole read.
	var buf bytes.Buffer
	buf.WriteString("II")
	binary.Write(&buf, binary.LittleEndian, uint16(42))
	binary.Write(&buf, binary.LittleEndian, uint32(8))

	binary.Write(&buf, binary.LittleEndian, uint16(1)) // one entry
	binary.Write(&buf, binary.LittleEndian, uint16(TagImageWidth))
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // invalid kind
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	binary.Write(&buf, binary.LittleEndian, uint32(4))
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // next IFD offset

	_, ifds, err := ReadIFDs(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadIFDs: %v", err)
	}
	if len(ifds) != 1 {
		t.Fatalf("expected 1 ifd")
	}
	if ifds[0].Has(TagImageWidth) {
		t.Fatalf("unknown-kind entry should have been skipped")
	}
}
