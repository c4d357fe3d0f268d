package raster

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/hallertau/geotiffkit/internal/tiff"
)

func TestNewEncoder(t *testing.T) {
	tests := []struct {
		format  string
		wantExt string
		wantErr bool
	}{
		{"png", ".png", false},
		{"webp", ".webp", false},
		{"bmp", "", true},
	}
	for _, tt := range tests {
		enc, err := NewEncoder(tt.format, 85)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error, got nil", tt.format)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.format, err)
		}
		if enc.FileExtension() != tt.wantExt {
			t.Errorf("%s: FileExtension() = %q, want %q", tt.format, enc.FileExtension(), tt.wantExt)
		}
	}
}

func TestPNGEncoderRoundTrip(t *testing.T) {
	buf := tiff.NewPixelBuffer(4, 4, 4, 8, tiff.SampleFormatUint)
	for i := range buf.Pix {
		buf.Pix[i] = byte(i % 251)
	}
	img := ToImage(buf)

	enc := &PNGEncoder{}
	data, err := enc.Encode(img)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != 4 || bounds.Dy() != 4 {
		t.Fatalf("decoded size = %dx%d, want 4x4", bounds.Dx(), bounds.Dy())
	}
}

func TestToImageGrayscale(t *testing.T) {
	buf := tiff.NewPixelBuffer(2, 2, 1, 8, tiff.SampleFormatUint)
	buf.Pix[0] = 10
	buf.Pix[1] = 200
	buf.Pix[2] = 50
	buf.Pix[3] = 5

	img := ToImage(buf)
	r, g, b, _ := img.At(0, 0).RGBA()
	if r>>8 != 10 || g>>8 != 10 || b>>8 != 10 {
		t.Fatalf("grayscale pixel (0,0) = (%d,%d,%d), want (10,10,10)", r>>8, g>>8, b>>8)
	}
}

func TestToImageRGBA(t *testing.T) {
	buf := tiff.NewPixelBuffer(1, 1, 4, 8, tiff.SampleFormatUint)
	buf.Pix[0], buf.Pix[1], buf.Pix[2], buf.Pix[3] = 1, 2, 3, 4

	img := ToImage(buf)
	r, g, b, a := img.At(0, 0).RGBA()
	if r>>8 != 1 || g>>8 != 2 || b>>8 != 3 || a>>8 != 4 {
		t.Fatalf("got (%d,%d,%d,%d), want (1,2,3,4)", r>>8, g>>8, b>>8, a>>8)
	}
}
