package batch

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/hallertau/geotiffkit/internal/reproject"
	"github.com/hallertau/geotiffkit/internal/tiff"
)

func writeGeoTIFF(t *testing.T, path string, width, height int, originX, originY, scale float64) {
	t.Helper()

	buf := tiff.NewPixelBuffer(width, height, 1, 8, tiff.SampleFormatUint)
	codec, err := tiff.CodecFor(tiff.CompressionNone)
	if err != nil {
		t.Fatalf("CodecFor: %v", err)
	}
	offTag, cntTag, chunks, _, err := tiff.WriteChunks(buf, codec, tiff.PredictorNone, binary.LittleEndian, 0, 0, 0)
	if err != nil {
		t.Fatalf("WriteChunks: %v", err)
	}

	ifd := tiff.NewIFD()
	ifd.Set(tiff.TagImageWidth, tiff.NewUintValue(tiff.KindLong, []uint64{uint64(width)}))
	ifd.Set(tiff.TagImageLength, tiff.NewUintValue(tiff.KindLong, []uint64{uint64(height)}))
	ifd.Set(tiff.TagBitsPerSample, tiff.NewUintValue(tiff.KindShort, []uint64{8}))
	ifd.Set(tiff.TagSamplesPerPixel, tiff.NewUintValue(tiff.KindShort, []uint64{1}))
	ifd.Set(tiff.TagCompression, tiff.NewUintValue(tiff.KindShort, []uint64{tiff.CompressionNone}))
	ifd.Set(tiff.TagPhotometricInterpretation, tiff.NewUintValue(tiff.KindShort, []uint64{tiff.PhotometricBlackIsZero}))
	ifd.Set(tiff.TagRowsPerStrip, tiff.NewUintValue(tiff.KindLong, []uint64{uint64(height)}))
	ifd.Set(tiff.TagSampleFormat, tiff.NewUintValue(tiff.KindShort, []uint64{tiff.SampleFormatUint}))
	ifd.Set(tiff.TagModelPixelScaleTag, tiff.NewFloatValue(tiff.KindDouble, []float64{scale, scale, 0}))
	ifd.Set(tiff.TagModelTiepointTag, tiff.NewFloatValue(tiff.KindDouble, []float64{0, 0, 0, originX, originY, 0}))

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	iw := tiff.NewIFDWriter(binary.LittleEndian, tiff.VariantClassic)
	if _, err := iw.WriteHeader(f, 8); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	pixels := &tiff.PixelData{OffsetsTag: offTag, ByteCountsTag: cntTag, Chunks: chunks}
	if _, err := iw.WriteIFD(f, 8, ifd, pixels, 0); err != nil {
		t.Fatalf("WriteIFD: %v", err)
	}
}

func TestOpenAllMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, _, err := OpenAll([]string{filepath.Join(dir, "nope.tif")})
	if !tiff.Is(err, tiff.KindIo) {
		t.Fatalf("expected KindIo error, got %v", err)
	}
}

func TestCheckCoverageGapsNoGapForTwoAdjacentFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.tif")
	b := filepath.Join(dir, "b.tif")
	// Two 10x10 WGS84 tiles, origin scale 1 degree/pixel, adjacent along X.
	writeGeoTIFF(t, a, 10, 10, 0, 10, 1)
	writeGeoTIFF(t, b, 10, 10, 10, 10, 1)

	sources, files, err := OpenAll([]string{a, b})
	if err != nil {
		t.Fatalf("OpenAll: %v", err)
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	gaps, err := CheckCoverageGaps(sources, reproject.NewRegistry())
	if err != nil {
		t.Fatalf("CheckCoverageGaps: %v", err)
	}
	if len(gaps) != 0 {
		t.Fatalf("expected no gaps for adjacent coverage, got %v", gaps)
	}
}

func TestCheckCoverageGapsDetectsHole(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.tif")
	b := filepath.Join(dir, "b.tif")
	// Two far-apart 10x10 tiles leave a large hole between them.
	writeGeoTIFF(t, a, 10, 10, 0, 10, 1)
	writeGeoTIFF(t, b, 10, 10, 100, 10, 1)

	sources, files, err := OpenAll([]string{a, b})
	if err != nil {
		t.Fatalf("OpenAll: %v", err)
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	gaps, err := CheckCoverageGaps(sources, reproject.NewRegistry())
	if err != nil {
		t.Fatalf("CheckCoverageGaps: %v", err)
	}
	if len(gaps) == 0 {
		t.Fatal("expected at least one gap between far-apart sources")
	}
}

func TestSourceFor(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.tif")
	writeGeoTIFF(t, a, 10, 10, 0, 10, 1)

	sources, files, err := OpenAll([]string{a})
	if err != nil {
		t.Fatalf("OpenAll: %v", err)
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	if s := SourceFor(sources, 5, 5); s == nil {
		t.Fatal("expected a source covering (5,5)")
	}
	if s := SourceFor(sources, 500, 500); s != nil {
		t.Fatal("expected no source covering (500,500)")
	}
}
