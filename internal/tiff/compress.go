package tiff

import "fmt"

// Codec compresses and decompresses one strip or tile's worth of raw
// sample bytes. Implementations never see the predictor; ApplyPredictor
// and UndoPredictor run as a separate stage around the codec, per
// spec.md §4.4 ("compression and prediction are independent stages").
type Codec interface {
	Decode(data []byte) ([]byte, error)
	Encode(data []byte) ([]byte, error)
}

// CodecFor returns the Codec for a Compression tag value. Returns an
// UnsupportedError for anything not in spec.md §6's codec list.
func CodecFor(compression uint64) (Codec, error) {
	const op = "tiff.CodecFor"
	switch compression {
	case CompressionNone:
		return noneCodec{}, nil
	case CompressionPackBits:
		return packBitsCodec{}, nil
	case CompressionLZW:
		return lzwCodec{}, nil
	case CompressionDeflate, compressionOldDeflate:
		return deflateCodec{}, nil
	case CompressionZStd:
		return zstdCodec{}, nil
	default:
		return nil, UnsupportedError(op, fmt.Errorf("compression %d", compression))
	}
}
