package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestPartition(t *testing.T, maxNode int32) *Partition {
	t.Helper()
	p, err := Open(t.TempDir(), "mapdb_%d", 0, Config{
		ShardCount: 1,
		MaxNode:    maxNode,
	})
	require.NoError(t, err)
	t.Cleanup(func() { p.UnInit() })
	return p
}

func TestSaveLoadRoundTrip(t *testing.T) {
	p := openTestPartition(t, DefaultMaxNode)

	payload := []byte("a chunk of voxel data")
	require.NoError(t, p.SaveBlock(1, 2, 3, payload, true))

	got, hit, result, err := p.LoadBlock(1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, LoadOK, result)
	assert.True(t, hit) // served from the read cache
	assert.Equal(t, payload, got)
}

func TestLoadAbsentForNeverWrittenSlot(t *testing.T) {
	p := openTestPartition(t, DefaultMaxNode)

	_, hit, result, err := p.LoadBlock(9, 0, 9)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, LoadAbsent, result)
}

func TestDeleteIsIdempotent(t *testing.T) {
	p := openTestPartition(t, DefaultMaxNode)

	require.NoError(t, p.SaveBlock(1, 1, 1, []byte("x"), true))
	require.NoError(t, p.DeleteBlock(1, 1, 1))
	require.NoError(t, p.DeleteBlock(1, 1, 1))

	_, _, result, err := p.LoadBlock(1, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, LoadAbsent, result)
}

func TestSaveOverwriteReusesCapacityWhenItFits(t *testing.T) {
	p := openTestPartition(t, DefaultMaxNode)

	require.NoError(t, p.SaveBlock(2, 2, 2, make([]byte, 10), true))
	node := p.header.keyNode(slotFor(t, p, 2, 2, 2))
	posBefore := node.pos()
	sizeBefore, err := p.dataFile.Size()
	require.NoError(t, err)

	require.NoError(t, p.SaveBlock(2, 2, 2, []byte("world"), false))
	sizeAfter, err := p.dataFile.Size()
	require.NoError(t, err)

	assert.Equal(t, posBefore, p.header.keyNode(slotFor(t, p, 2, 2, 2)).pos())
	assert.Equal(t, sizeBefore, sizeAfter) // in-place overwrite, data file length unchanged

	got, _, result, err := p.LoadBlock(2, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, LoadOK, result)
	assert.Equal(t, []byte("world"), got)
	assert.Empty(t, p.GetModifyList(nil)) // changed=false does not mark the slot
}

func TestSaveGrowsWhenNewCapacityExceedsOld(t *testing.T) {
	p := openTestPartition(t, DefaultMaxNode)

	require.NoError(t, p.SaveBlock(3, 3, 3, []byte("hello"), true))
	sizeBefore, err := p.dataFile.Size()
	require.NoError(t, err)
	node := p.header.keyNode(slotFor(t, p, 3, 3, 3))
	capBefore := node.capacity()

	payload := make([]byte, 2000)
	for i := range payload {
		payload[i] = 'a'
	}
	require.NoError(t, p.SaveBlock(3, 3, 3, payload, true))

	sizeAfter, err := p.dataFile.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(ceilAlign(len(payload)+nodeHeaderSize)), sizeAfter-sizeBefore)

	node = p.header.keyNode(slotFor(t, p, 3, 3, 3))
	assert.Greater(t, node.capacity(), capBefore)

	got, _, result, err := p.LoadBlock(3, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, LoadOK, result)
	assert.Equal(t, payload, got)
}

func TestSaveRoutesDistinctCoordinatesToDistinctSlotsInSamePartition(t *testing.T) {
	p := openTestPartition(t, DefaultMaxNode)

	require.NoError(t, p.SaveBlock(10, 0, 0, []byte("a"), true))
	require.NoError(t, p.SaveBlock(20, 0, 0, []byte("b"), true))

	slotA := slotFor(t, p, 10, 0, 0)
	slotB := slotFor(t, p, 20, 0, 0)
	assert.NotEqual(t, slotA, slotB)

	gotA, _, resultA, err := p.LoadBlock(10, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, LoadOK, resultA)
	assert.Equal(t, []byte("a"), gotA)

	gotB, _, resultB, err := p.LoadBlock(20, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, LoadOK, resultB)
	assert.Equal(t, []byte("b"), gotB)
}

func TestGetModifyListReportsChangedSlots(t *testing.T) {
	p := openTestPartition(t, DefaultMaxNode)

	require.NoError(t, p.SaveBlock(1, 0, 0, []byte("a"), true))
	require.NoError(t, p.SaveBlock(2, 0, 0, []byte("b"), false))

	list := p.GetModifyList(nil)
	assert.Len(t, list, 1)
}

func TestModifiedCountMatchesGetModifyList(t *testing.T) {
	p := openTestPartition(t, DefaultMaxNode)

	require.NoError(t, p.SaveBlock(1, 0, 0, []byte("a"), true))
	require.NoError(t, p.SaveBlock(2, 0, 0, []byte("b"), true))
	require.NoError(t, p.SaveBlock(3, 0, 0, []byte("c"), false))

	assert.EqualValues(t, len(p.GetModifyList(nil)), p.ModifiedCount())
}

func TestCrcCorruptionIsDetectedOnReload(t *testing.T) {
	dir := t.TempDir()

	p, err := Open(dir, "mapdb_%d", 0, Config{ShardCount: 1, MaxNode: DefaultMaxNode})
	require.NoError(t, err)

	payload := []byte("durable bytes")
	require.NoError(t, p.SaveBlock(4, 4, 4, payload, true))
	require.NoError(t, p.Flush())
	require.NoError(t, p.UnInit())

	// Reopen fresh (empty cache) and corrupt the on-disk payload directly.
	p2, err := Open(dir, "mapdb_%d", 0, Config{ShardCount: 1, MaxNode: DefaultMaxNode})
	require.NoError(t, err)
	t.Cleanup(func() { p2.UnInit() })

	slot := slotFor(t, p2, 4, 4, 4)
	node := p2.header.keyNode(slot)
	buf := make([]byte, node.capacity()*extentAlignment)
	_, err = p2.dataFile.ReadAt(node.pos(), buf)
	require.NoError(t, err)
	buf[nodeHeaderSize] ^= 0xFF
	_, err = p2.dataFile.WriteAt(node.pos(), buf)
	require.NoError(t, err)

	_, _, result, err := p2.LoadBlock(4, 4, 4)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Equal(t, LoadCorrupt, result)
}

func TestConcurrentSavesToDisjointSlotsAreSafe(t *testing.T) {
	p := openTestPartition(t, DefaultMaxNode)

	done := make(chan error, 8)
	for i := int16(0); i < 8; i++ {
		i := i
		go func() {
			done <- p.SaveBlock(i, 0, 0, []byte{byte(i)}, true)
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}

	for i := int16(0); i < 8; i++ {
		got, _, result, err := p.LoadBlock(i, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, LoadOK, result)
		assert.Equal(t, []byte{byte(i)}, got)
	}
}

func slotFor(t *testing.T, p *Partition, x, y, z int16) int32 {
	t.Helper()
	slot, ok := localSlot(x, y, z, p.shardCount)
	require.True(t, ok)
	return slot
}
