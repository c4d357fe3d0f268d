package tiff

import (
	"bytes"
	"compress/zlib"
	"io"
)

// deflateCodec implements Compression=8 (Adobe Deflate) and the legacy
// tag value 32946, both zlib-wrapped per the TIFF Adobe extension.
type deflateCodec struct{}

func (deflateCodec) Decode(data []byte) ([]byte, error) {
	const op = "tiff.Deflate.Decode"
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, CodecError(op, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, CodecError(op, err)
	}
	return out, nil
}

func (deflateCodec) Encode(data []byte) ([]byte, error) {
	const op = "tiff.Deflate.Encode"
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, CodecError(op, err)
	}
	if err := w.Close(); err != nil {
		return nil, CodecError(op, err)
	}
	return buf.Bytes(), nil
}
