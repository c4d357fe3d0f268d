package tiff

import "math"

// Value is a typed TIFF field value. Exactly one payload slice/string is
// populated, selected by Kind. This is the "tagged variant over
// concrete kinds" (fifteen here, see Kind) design.md §9 calls for: IFDReader fills whichever
// payload matches Kind, and the As* accessors widen safely to whatever
// numeric type the caller needs.
type Value struct {
	Kind  Kind
	Count int

	uints   []uint64  // Byte, Short, Long, SByte*, SShort*, SLong*, Long8, SLong8, IFD8 (signed stored as-is via int64 reinterpret)
	floats  []float64 // Rational, SRational, Float, Double
	ascii   string    // ASCII
}

// NewUintValue builds an unsigned-integer-family Value.
func NewUintValue(kind Kind, vals []uint64) Value {
	return Value{Kind: kind, Count: len(vals), uints: vals}
}

// NewFloatValue builds a float/rational-family Value.
func NewFloatValue(kind Kind, vals []float64) Value {
	return Value{Kind: kind, Count: len(vals), floats: vals}
}

// NewASCIIValue builds an ASCII Value.
func NewASCIIValue(s string) Value {
	return Value{Kind: KindASCII, Count: len(s), ascii: s}
}

// AsUint64Slice widens the value to a []uint64, regardless of its
// concrete storage kind. Floats are truncated toward zero.
func (v Value) AsUint64Slice() []uint64 {
	if v.uints != nil {
		return v.uints
	}
	out := make([]uint64, len(v.floats))
	for i, f := range v.floats {
		out[i] = uint64(f)
	}
	return out
}

// AsFloat64Slice widens the value to a []float64.
func (v Value) AsFloat64Slice() []float64 {
	if v.floats != nil {
		return v.floats
	}
	out := make([]float64, len(v.uints))
	for i, u := range v.uints {
		out[i] = float64(u)
	}
	return out
}

// AsUint64 returns the first widened element, or 0 if empty.
func (v Value) AsUint64() uint64 {
	s := v.AsUint64Slice()
	if len(s) == 0 {
		return 0
	}
	return s[0]
}

// AsFloat64 returns the first widened element, or 0 if empty.
func (v Value) AsFloat64() float64 {
	s := v.AsFloat64Slice()
	if len(s) == 0 {
		return 0
	}
	return s[0]
}

// AsString returns the ASCII payload, trimmed of a single trailing NUL.
func (v Value) AsString() string {
	s := v.ascii
	if n := len(s); n > 0 && s[n-1] == 0 {
		s = s[:n-1]
	}
	return s
}

// float32bits/float64bits helpers used by the IFD reader/writer to
// reinterpret raw bit patterns without importing math at every call site.
func float32FromBits(b uint32) float64 { return float64(math.Float32frombits(b)) }
func float64FromBits(b uint64) float64 { return math.Float64frombits(b) }
func bitsFromFloat32(f float64) uint32 { return math.Float32bits(float32(f)) }
func bitsFromFloat64(f float64) uint64 { return math.Float64bits(f) }
