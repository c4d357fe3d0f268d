package tiff

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"
)

func roundTrip(t *testing.T, name string, codec Codec, data []byte) {
	t.Helper()
	enc, err := codec.Encode(data)
	if err != nil {
		t.Fatalf("%s encode: %v", name, err)
	}
	dec, err := codec.Decode(enc)
	if err != nil {
		t.Fatalf("%s decode: %v", name, err)
	}
	if !bytes.Equal(dec, data) {
		t.Fatalf("%s round trip mismatch: got %d bytes, want %d", name, len(dec), len(data))
	}
}

func TestCodecRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	random := make([]byte, 5000)
	rng.Read(random)

	repetitive := bytes.Repeat([]byte{0xAB}, 3000)

	mixed := append(append([]byte{}, repetitive...), random...)

	cases := []struct {
		name  string
		codec Codec
	}{
		{"none", noneCodec{}},
		{"packbits", packBitsCodec{}},
		{"lzw", lzwCodec{}},
		{"deflate", deflateCodec{}},
		{"zstd", zstdCodec{}},
	}

	for _, c := range cases {
		roundTrip(t, c.name, c.codec, random)
		roundTrip(t, c.name, c.codec, repetitive)
		roundTrip(t, c.name, c.codec, mixed)
		roundTrip(t, c.name, c.codec, nil)
	}
}

func TestPackBitsRepeatAndNoop(t *testing.T) {
	// A repeat run (count=4 of 0xAA) followed by the no-op byte (-128)
	// and a two-byte literal run.
	encoded := []byte{0xFD, 0xAA, 0x80, 0x01, 0x01, 0x02}
	dec, err := packBitsCodec{}.Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []byte{0xAA, 0xAA, 0xAA, 0xAA, 0x01, 0x02}
	if !bytes.Equal(dec, want) {
		t.Fatalf("got %v want %v", dec, want)
	}
}

func TestPredictorRoundTrip8(t *testing.T) {
	width, spp := 4, 3
	row := []byte{10, 20, 30, 15, 25, 35, 12, 22, 32, 40, 50, 60}
	original := append([]byte{}, row...)

	ApplyPredictor(row, width, spp, 8, binary.LittleEndian)
	UndoPredictor(row, width, spp, 8, binary.LittleEndian)

	if !bytes.Equal(row, original) {
		t.Fatalf("predictor round trip mismatch: got %v want %v", row, original)
	}
}
