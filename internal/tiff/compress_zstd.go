package tiff

import (
	"github.com/klauspost/compress/zstd"
)

// zstdCodec implements Compression=50000 (the GDAL/libtiff convention
// for ZSTD-compressed strips/tiles), backed by klauspost/compress/zstd
// rather than a hand-rolled frame codec.
type zstdCodec struct{}

func (zstdCodec) Decode(data []byte) ([]byte, error) {
	const op = "tiff.ZStd.Decode"
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, CodecError(op, err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, CodecError(op, err)
	}
	return out, nil
}

func (zstdCodec) Encode(data []byte) ([]byte, error) {
	const op = "tiff.ZStd.Encode"
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, CodecError(op, err)
	}
	defer enc.Close()
	out := enc.EncodeAll(data, make([]byte, 0, len(data)))
	return out, nil
}
