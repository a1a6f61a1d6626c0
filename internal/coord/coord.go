// Package coord implements the global coordinate <-> integer bijection from
// spec.md §6: the external contract every caller of the engine uses to
// address a block, independent of how any one partition indexes its own
// slot table.
//
// The bit-packing is deliberately odd — it overflows signed 16-bit
// coordinates into adjacent fields on purpose, decoded back out with a
// Python-style modulo — so the encode/decode pair is kept together here and
// exercised by round-trip tests rather than re-derived from first
// principles.
package coord

// Encode maps (x, y, z) to the external 64-bit block id.
//
// pos = z*2^24 + y*2^12 + x, computed as wrapping unsigned 64-bit
// arithmetic over the sign-extended coordinates (matching the studied C++
// source's implicit int16_t -> uint64_t conversions) and reinterpreted back
// as signed on return.
func Encode(x, y, z int16) int64 {
	ux := uint64(int64(x))
	uy := uint64(int64(y))
	uz := uint64(int64(z))
	pos := uz*0x1000000 + uy*0x1000 + ux
	return int64(pos)
}

// Decode inverts Encode for coordinates in [-2048, 2047]. Each field is 12
// bits wide, so a coordinate outside that range spills into the next field
// and Decode returns a different triple, one that Encode maps back to the
// same pos.
func Decode(pos int64) (x, y, z int16) {
	x = unsignedToSigned(pythonModulo(pos, 4096), 2048)
	pos = (pos - int64(x)) / 4096
	y = unsignedToSigned(pythonModulo(pos, 4096), 2048)
	pos = (pos - int64(y)) / 4096
	z = unsignedToSigned(pythonModulo(pos, 4096), 2048)
	return x, y, z
}

// pythonModulo mirrors Python's modulo semantics for negative i, which
// differs from Go/C's truncating "%" (spec.md §6 "python-modulo" split).
func pythonModulo(i int64, mod int32) int64 {
	if i >= 0 {
		return i % int64(mod)
	}
	return (int64(mod) - ((-i) % int64(mod))) % int64(mod)
}

func unsignedToSigned(i int64, maxPositive int32) int16 {
	if i < int64(maxPositive) {
		return int16(i)
	}
	return int16(i - int64(maxPositive)*2)
}
