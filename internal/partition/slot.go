package partition

import "github.com/celeron55/chunkstore/internal/coord"

const (
	localZBound = 1024
	localYBound = 23
	localXBound = 64
	localYBias  = 14
)

// localSlot computes the in-partition slot index for (x, y, z) given the
// shard count P (spec.md §6 "Local slot"): x' = x / P, require x >= 0 and
// z >= 0, slot = z + (x' << 10) + ((y+14) << 16), domain z<1024, x'<64,
// y+14<23. Returns ok=false for any coordinate outside that domain.
func localSlot(x, y, z int16, shardCount int32) (slot int32, ok bool) {
	if x < 0 || z < 0 {
		return 0, false
	}
	localX := int32(x) / shardCount
	localY := int32(y) + localYBias
	localZ := int32(z)

	if localZ < 0 || localZ >= localZBound {
		return 0, false
	}
	if localY < 0 || localY >= localYBound {
		return 0, false
	}
	if localX < 0 || localX >= localXBound {
		return 0, false
	}
	return localZ + (localX << 10) + (localY << 16), true
}

// globalIndex inverts localSlot for a given partition, reconstructing the
// global coordinate id (spec.md §6 "getGlobalIndex").
func globalIndex(slot int32, shardCount int32, partitionIndex int32) int64 {
	z := int16(slot & 1023)
	slot >>= 10
	x := int16(slot & 63)
	slot >>= 6
	y := int16(slot)

	globalX := x*int16(shardCount) + int16(partitionIndex)
	return coord.Encode(globalX, y-localYBias, z)
}
