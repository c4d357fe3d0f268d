package tiff

import (
	"encoding/binary"
	"io"
)

// ByteCursor is an endian-aware byte stream, matching spec.md §4.1: a
// reading cursor wraps an io.ReadSeeker (an *os.File or a *bytes.Reader
// in tests) and can seek to absolute offsets, rejecting any offset
// beyond the stream's known length as KindRequest's OffsetOutOfRange;
// a writing cursor wraps a plain io.Writer and only ever advances
// forward, matching how IFDWriter lays out a TIFF in one sequential
// pass. A single ByteCursor is never asked to do both.
type ByteCursor struct {
	r     io.ReadSeeker
	w     io.Writer
	order binary.ByteOrder
	size  int64 // -1 if unknown; read cursors only
}

// NewCursor wraps r for reading, seekable to any offset up to the
// stream's total length, which it determines immediately via
// io.SeekEnd (leaving the cursor positioned at the start).
func NewCursor(r io.ReadSeeker, order binary.ByteOrder) (*ByteCursor, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, IoError("NewCursor", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, IoError("NewCursor", err)
	}
	return &ByteCursor{r: r, order: order, size: size}, nil
}

// NewWriteCursor wraps w for sequential writing; it has no Seek/Tell.
func NewWriteCursor(w io.Writer, order binary.ByteOrder) *ByteCursor {
	return &ByteCursor{w: w, order: order, size: -1}
}

// SetEndian changes the byte order used by subsequent integer reads/writes.
func (c *ByteCursor) SetEndian(order binary.ByteOrder) { c.order = order }

// Order returns the current byte order.
func (c *ByteCursor) Order() binary.ByteOrder { return c.order }

// Seek moves a read cursor to an absolute byte offset.
func (c *ByteCursor) Seek(offset int64) error {
	if c.size >= 0 && offset > c.size {
		return RequestError("ByteCursor.Seek", errOffsetOutOfRange)
	}
	_, err := c.r.Seek(offset, io.SeekStart)
	if err != nil {
		return IoError("ByteCursor.Seek", err)
	}
	return nil
}

// Tell returns a read cursor's current absolute byte offset.
func (c *ByteCursor) Tell() (int64, error) {
	off, err := c.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, IoError("ByteCursor.Tell", err)
	}
	return off, nil
}

func (c *ByteCursor) ReadBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return nil, IoError("ByteCursor.ReadBytes", err)
	}
	return buf, nil
}

func (c *ByteCursor) ReadU8() (uint8, error) {
	b, err := c.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *ByteCursor) ReadU16() (uint16, error) {
	b, err := c.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return c.order.Uint16(b), nil
}

func (c *ByteCursor) ReadU32() (uint32, error) {
	b, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return c.order.Uint32(b), nil
}

func (c *ByteCursor) ReadU64() (uint64, error) {
	b, err := c.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return c.order.Uint64(b), nil
}

func (c *ByteCursor) WriteBytes(b []byte) error {
	if _, err := c.w.Write(b); err != nil {
		return IoError("ByteCursor.WriteBytes", err)
	}
	return nil
}

func (c *ByteCursor) WriteU8(v uint8) error { return c.WriteBytes([]byte{v}) }

func (c *ByteCursor) WriteU16(v uint16) error {
	b := make([]byte, 2)
	c.order.PutUint16(b, v)
	return c.WriteBytes(b)
}

func (c *ByteCursor) WriteU32(v uint32) error {
	b := make([]byte, 4)
	c.order.PutUint32(b, v)
	return c.WriteBytes(b)
}

func (c *ByteCursor) WriteU64(v uint64) error {
	b := make([]byte, 8)
	c.order.PutUint64(b, v)
	return c.WriteBytes(b)
}

var errOffsetOutOfRange = errOffsetOutOfRangeType{}

type errOffsetOutOfRangeType struct{}

func (errOffsetOutOfRangeType) Error() string { return "offset exceeds stream length" }
