package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		x, y, z int16
	}{
		{0, 0, 0},
		{1, 2, 3},
		{-1, -1, -1},
		{2047, 2047, 2047},
		{-2048, -2048, -2048},
		{32767, -32768, 0},
		{-17, 904, -333},
	}

	for _, c := range cases {
		pos := Encode(c.x, c.y, c.z)
		gotX, gotY, gotZ := Decode(pos)
		assert.Equal(t, c.x, gotX, "x mismatch for %+v", c)
		assert.Equal(t, c.y, gotY, "y mismatch for %+v", c)
		assert.Equal(t, c.z, gotZ, "z mismatch for %+v", c)
	}
}

func TestEncodeIdempotentThroughDecode(t *testing.T) {
	for _, pos := range []int64{0, 1, -1, 4096, -4096, 1 << 30, -(1 << 30), Encode(32767, -32768, 0)} {
		x, y, z := Decode(pos)
		assert.Equal(t, pos, Encode(x, y, z), "encode(decode(pos)) must equal pos for %d", pos)
	}
}

func TestPythonModuloMatchesPythonSemantics(t *testing.T) {
	assert.Equal(t, int64(1), pythonModulo(1, 4096))
	assert.Equal(t, int64(4095), pythonModulo(-1, 4096))
	assert.Equal(t, int64(0), pythonModulo(0, 4096))
	assert.Equal(t, int64(0), pythonModulo(4096, 4096))
	assert.Equal(t, int64(4095), pythonModulo(-4097, 4096))
}
