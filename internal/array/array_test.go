package array

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hallertau/geotiffkit/internal/tiff"
)

func testBuffer() *tiff.PixelBuffer {
	buf := tiff.NewPixelBuffer(2, 2, 1, 8, tiff.SampleFormatUint)
	buf.Pix[0], buf.Pix[1] = 1, 2
	buf.Pix[2], buf.Pix[3] = 3, 4
	return buf
}

func TestWriteCSV(t *testing.T) {
	var out bytes.Buffer
	if err := WriteCSV(&out, testBuffer()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 rows, got %d: %q", len(lines), out.String())
	}
	if lines[0] != "1,2" || lines[1] != "3,4" {
		t.Fatalf("unexpected CSV content: %q", out.String())
	}
}

func TestWriteJSON2D(t *testing.T) {
	var out bytes.Buffer
	if err := WriteJSON(&out, testBuffer()); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var got [][]float64
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := [][]float64{{1, 2}, {3, 4}}
	if len(got) != 2 || got[0][0] != want[0][0] || got[1][1] != want[1][1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestWriteJSON3DMultiSample(t *testing.T) {
	buf := tiff.NewPixelBuffer(1, 1, 3, 8, tiff.SampleFormatUint)
	buf.Pix[0], buf.Pix[1], buf.Pix[2] = 10, 20, 30

	var out bytes.Buffer
	if err := WriteJSON(&out, buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var got [][][]float64
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got[0][0][0] != 10 || got[0][0][1] != 20 || got[0][0][2] != 30 {
		t.Fatalf("got %v", got)
	}
}

func TestWriteNPYHeader(t *testing.T) {
	var out bytes.Buffer
	if err := WriteNPY(&out, testBuffer()); err != nil {
		t.Fatalf("WriteNPY: %v", err)
	}
	data := out.Bytes()
	if string(data[:6]) != npyMagic {
		t.Fatalf("bad magic: %q", data[:6])
	}
	if data[6] != 1 || data[7] != 0 {
		t.Fatalf("expected version 1.0, got %d.%d", data[6], data[7])
	}
	headerLen := int(data[8]) | int(data[9])<<8
	dataStart := 10 + headerLen
	if dataStart%64 != 0 {
		t.Fatalf("data start %d not 64-byte aligned", dataStart)
	}
	dict := string(data[10:dataStart])
	if !strings.Contains(dict, "'<u1'") {
		t.Fatalf("expected uint8 dtype in header, got %q", dict)
	}
	if !strings.Contains(dict, "(2, 2)") {
		t.Fatalf("expected shape (2, 2) in header, got %q", dict)
	}

	payload := data[dataStart:]
	if !bytes.Equal(payload, []byte{1, 2, 3, 4}) {
		t.Fatalf("payload mismatch: %v", payload)
	}
}

func TestWriteNPYMultiSampleShape(t *testing.T) {
	buf := tiff.NewPixelBuffer(3, 2, 4, 8, tiff.SampleFormatUint)
	var out bytes.Buffer
	if err := WriteNPY(&out, buf); err != nil {
		t.Fatalf("WriteNPY: %v", err)
	}
	data := out.Bytes()
	headerLen := int(data[8]) | int(data[9])<<8
	dict := string(data[10 : 10+headerLen])
	if !strings.Contains(dict, "(2, 3, 4)") {
		t.Fatalf("expected shape (2, 3, 4), got %q", dict)
	}
}
