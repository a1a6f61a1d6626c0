package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderSizeAlignment(t *testing.T) {
	size := headerSize(100)
	assert.Equal(t, int64(0), size%extentAlignment)
	assert.GreaterOrEqual(t, size, int64(headerFixedSize+100*keyNodeSize))
}

func TestKeyNodeSizeIsTwelveBytes(t *testing.T) {
	h := slotHeader{data: make([]byte, headerFixedSize+keyNodeSize)}
	n := h.keyNode(0)
	require.Len(t, n.data, keyNodeSize)
}

func TestKeyNodeFieldRoundTrip(t *testing.T) {
	h := slotHeader{data: make([]byte, headerFixedSize+keyNodeSize)}
	n := h.keyNode(0)

	n.setPos(2048)
	n.setCapacity(7)
	n.setLength(123)
	n.setFlags(true)

	assert.Equal(t, int64(2048), n.pos())
	assert.EqualValues(t, 7, n.capacity())
	assert.EqualValues(t, 123, n.length())
	assert.True(t, n.changed())
	assert.False(t, n.empty())

	n.setFlags(false)
	assert.False(t, n.changed())

	n.setLength(0)
	assert.True(t, n.empty())
}

func TestKeyNodeSetPosPanicsOnMisalignment(t *testing.T) {
	h := slotHeader{data: make([]byte, headerFixedSize+keyNodeSize)}
	n := h.keyNode(0)
	assert.Panics(t, func() { n.setPos(1023) })
}

func TestSlotHeaderCountAccumulates(t *testing.T) {
	h := slotHeader{data: make([]byte, headerFixedSize)}
	h.setCount(0)
	h.addCount(1)
	h.addCount(1)
	h.addCount(-1)
	assert.EqualValues(t, 1, h.count())
}

func TestSlotHeaderVersion(t *testing.T) {
	h := slotHeader{data: make([]byte, headerFixedSize)}
	h.setVersion(requiredVersion)
	assert.EqualValues(t, requiredVersion, h.version())
}

func TestKeyNodeOffsetsDoNotOverlap(t *testing.T) {
	h := slotHeader{data: make([]byte, headerFixedSize+3*keyNodeSize)}
	n0 := h.keyNode(0)
	n1 := h.keyNode(1)
	n2 := h.keyNode(2)

	n0.setCapacity(1)
	n1.setCapacity(2)
	n2.setCapacity(3)

	assert.EqualValues(t, 1, n0.capacity())
	assert.EqualValues(t, 2, n1.capacity())
	assert.EqualValues(t, 3, n2.capacity())
}
