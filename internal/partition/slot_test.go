package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celeron55/chunkstore/internal/coord"
)

func TestLocalSlotGlobalIndexRoundTrip(t *testing.T) {
	const shardCount = 10

	cases := []struct{ x, y, z int16 }{
		{0, 0, 0},
		{5, -3, 7},
		{91, 8, 1023},
		{9, -14, 0},
	}

	for _, c := range cases {
		slot, ok := localSlot(c.x, c.y, c.z, shardCount)
		require.True(t, ok, "%+v should be in range", c)

		partitionIndex := int32(c.x) % shardCount
		gotPos := globalIndex(slot, shardCount, partitionIndex)

		gotX, gotY, gotZ := coord.Decode(gotPos)
		assert.Equal(t, c.x, gotX)
		assert.Equal(t, c.y, gotY)
		assert.Equal(t, c.z, gotZ)
	}
}

func TestLocalSlotRejectsNegativeXOrZ(t *testing.T) {
	_, ok := localSlot(-1, 0, 0, 10)
	assert.False(t, ok)

	_, ok = localSlot(0, 0, -1, 10)
	assert.False(t, ok)
}

func TestLocalSlotRejectsOutOfRangeY(t *testing.T) {
	_, ok := localSlot(0, 100, 0, 10)
	assert.False(t, ok)

	_, ok = localSlot(0, -100, 0, 10)
	assert.False(t, ok)
}

func TestLocalSlotRejectsOutOfRangeZ(t *testing.T) {
	_, ok := localSlot(0, 0, 1024, 10)
	assert.False(t, ok)
}

func TestLocalSlotDistinctCoordinatesGetDistinctSlots(t *testing.T) {
	seen := make(map[int32]struct{})
	for x := int16(0); x < 100; x += 10 {
		for y := int16(-14); y < 8; y++ {
			slot, ok := localSlot(x, y, 5, 10)
			require.True(t, ok)
			_, dup := seen[slot]
			assert.False(t, dup, "slot collision for x=%d y=%d", x, y)
			seen[slot] = struct{}{}
		}
	}
}
