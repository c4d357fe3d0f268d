package tiff

type noneCodec struct{}

func (noneCodec) Decode(data []byte) ([]byte, error) { return data, nil }
func (noneCodec) Encode(data []byte) ([]byte, error) { return data, nil }
